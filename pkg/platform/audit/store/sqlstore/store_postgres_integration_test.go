//go:build integration

package sqlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"greenctf/pkg/testutil/containers"
)

// PostgresStoreSuite reruns the SQLite cases against Postgres.
type PostgresStoreSuite struct {
	SQLStoreSuite
	pg *containers.PostgresContainer
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, &PostgresStoreSuite{pg: containers.GetManager().GetPostgres(t)})
}

func (s *PostgresStoreSuite) SetupTest() {
	s.store = New(s.pg.Fresh(s.T()).DB())
	s.ctx = context.Background()
}
