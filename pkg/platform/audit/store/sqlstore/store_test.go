package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	audit "greenctf/pkg/platform/audit"
	"greenctf/pkg/testutil"
)

type SQLStoreSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
}

func TestSQLStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLStoreSuite))
}

func (s *SQLStoreSuite) SetupTest() {
	s.store = New(testutil.NewSQLite(s.T()).DB())
	s.ctx = context.Background()
}

func (s *SQLStoreSuite) TestSecurityEvents() {
	base := testutil.Epoch

	s.Run("round trips optional fields", func() {
		s.Require().NoError(s.store.AppendSecurityEvent(s.ctx, audit.SecurityEvent{
			ID:          uuid.New(),
			Type:        audit.EventLoginFailed,
			Severity:    audit.SeverityMedium,
			SourceIP:    "203.0.113.5",
			Description: "Failed login attempt for username: ghost",
			Timestamp:   base,
		}))
		s.Require().NoError(s.store.AppendSecurityEvent(s.ctx, audit.SecurityEvent{
			ID:        uuid.New(),
			Type:      audit.EventAccountLocked,
			Severity:  audit.SeverityHigh,
			AdminID:   audit.AdminRef(7),
			Metadata:  map[string]any{"failed_attempts": 5},
			Timestamp: base.Add(time.Second),
		}))

		events, err := s.store.RecentSecurityEvents(s.ctx, 10)
		s.Require().NoError(err)
		s.Require().Len(events, 2)

		s.Equal(audit.EventAccountLocked, events[0].Type)
		s.Require().NotNil(events[0].AdminID)
		s.Equal(int64(7), *events[0].AdminID)
		s.Equal(float64(5), events[0].Metadata["failed_attempts"])

		s.Nil(events[1].AdminID)
		s.Nil(events[1].Metadata)
		s.Equal(base, events[1].Timestamp)
	})

	s.Run("duplicate id is ignored", func() {
		id := uuid.New()
		e := audit.SecurityEvent{ID: id, Type: audit.EventLoginLocked, Severity: audit.SeverityHigh, Timestamp: base}
		s.Require().NoError(s.store.AppendSecurityEvent(s.ctx, e))
		s.Require().NoError(s.store.AppendSecurityEvent(s.ctx, e))

		events, err := s.store.RecentSecurityEvents(s.ctx, 0)
		s.Require().NoError(err)
		s.Len(events, 3)
	})
}

func (s *SQLStoreSuite) TestActivity() {
	s.Require().NoError(s.store.AppendActivity(s.ctx, audit.ActivityRecord{
		AdminID:     1,
		Action:      audit.ActionCredentialChange,
		Description: "Admin credentials updated",
		TargetType:  "admin_users",
		TargetID:    "1",
		OldValues:   map[string]any{"username": "alice"},
		NewValues:   map[string]any{"username": "alice2", "password": audit.HiddenValue},
		SourceIP:    "198.51.100.1",
		UserAgent:   "Mozilla/5.0",
		Timestamp:   testutil.Epoch,
	}))

	records, err := s.store.RecentActivity(s.ctx, 5)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	r := records[0]
	s.Equal(audit.ActionCredentialChange, r.Action)
	s.Equal("alice", r.OldValues["username"])
	s.Equal(audit.HiddenValue, r.NewValues["password"])
	s.Equal("Mozilla/5.0", r.UserAgent)
	s.NotEqual(uuid.Nil, r.ID)
}
