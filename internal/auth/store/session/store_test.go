package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"greenctf/internal/auth/models"
	"greenctf/internal/auth/store/account"
	"greenctf/pkg/platform/sentinel"
	"greenctf/pkg/testutil"
)

type sessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	Touch(ctx context.Context, tokenHash string, at time.Time) error
	UpdatePayload(ctx context.Context, tokenHash string, payload models.SessionPayload) error
	Delete(ctx context.Context, tokenHash string) error
	DeleteAllExcept(ctx context.Context, adminID int64, keepTokenHash string) (int, error)
	ListByAdmin(ctx context.Context, adminID int64) ([]*models.Session, error)
	DeleteIdleSince(ctx context.Context, cutoff time.Time) (int, error)
}

type accountCreator interface {
	Create(ctx context.Context, account *models.Account) error
}

// SessionStoreSuite runs the session store contract against one backend.
// Accounts are created first because the SQL schema enforces the foreign key.
type SessionStoreSuite struct {
	suite.Suite
	newStores func(t *testing.T) (sessionStore, accountCreator)
	store     sessionStore
	ctx       context.Context
	now       time.Time
	bobID     int64
	carolID   int64
}

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, &SessionStoreSuite{newStores: func(*testing.T) (sessionStore, accountCreator) {
		return NewInMemoryStore(), account.NewInMemoryStore()
	}})
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &SessionStoreSuite{newStores: func(t *testing.T) (sessionStore, accountCreator) {
		db := testutil.NewSQLite(t).DB()
		return NewSQLStore(db), account.NewSQLStore(db)
	}})
}

func (s *SessionStoreSuite) SetupTest() {
	var accounts accountCreator
	s.store, accounts = s.newStores(s.T())
	s.ctx = context.Background()
	s.now = testutil.Epoch

	for _, name := range []string{"bob", "carol"} {
		a := &models.Account{
			Username: name, Email: name + "@example.com", PasswordHash: "h",
			Role: models.RoleAdmin, Enabled: true, CreatedAt: s.now, UpdatedAt: s.now,
		}
		s.Require().NoError(accounts.Create(s.ctx, a))
		if name == "bob" {
			s.bobID = a.ID
		} else {
			s.carolID = a.ID
		}
	}
}

func (s *SessionStoreSuite) add(hash string, adminID int64, lastActivity time.Time) {
	s.Require().NoError(s.store.Create(s.ctx, &models.Session{
		TokenHash:    hash,
		AdminID:      adminID,
		IPAddress:    "192.0.2.10",
		UserAgent:    "Mozilla/5.0",
		Payload:      models.SessionPayload{AdminID: adminID, Username: "bob", Role: models.RoleAdmin, LoginTime: s.now},
		CreatedAt:    s.now,
		LastActivity: lastActivity,
	}))
}

func (s *SessionStoreSuite) TestCreateAndFind() {
	s.add("h1", s.bobID, s.now)

	got, err := s.store.FindByTokenHash(s.ctx, "h1")
	s.Require().NoError(err)
	s.Equal(s.bobID, got.AdminID)
	s.Equal("192.0.2.10", got.IPAddress)
	s.Equal("bob", got.Payload.Username)
	s.True(got.Payload.LoginTime.Equal(s.now))
	s.True(got.LastActivity.Equal(s.now))

	_, err = s.store.FindByTokenHash(s.ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().Error(s.store.Create(s.ctx, &models.Session{TokenHash: "h1", AdminID: s.bobID, CreatedAt: s.now, LastActivity: s.now}))
}

func (s *SessionStoreSuite) TestTouchIsMonotonic() {
	s.add("h1", s.bobID, s.now)

	s.Require().NoError(s.store.Touch(s.ctx, "h1", s.now.Add(10*time.Second)))
	s.Require().NoError(s.store.Touch(s.ctx, "h1", s.now.Add(5*time.Second)))

	got, err := s.store.FindByTokenHash(s.ctx, "h1")
	s.Require().NoError(err)
	s.True(got.LastActivity.Equal(s.now.Add(10 * time.Second)))

	s.NoError(s.store.Touch(s.ctx, "missing", s.now))
}

func (s *SessionStoreSuite) TestUpdatePayload() {
	s.add("h1", s.bobID, s.now)
	s.Require().NoError(s.store.UpdatePayload(s.ctx, "h1", models.SessionPayload{AdminID: s.bobID, Username: "robert", Role: models.RoleAdmin, LoginTime: s.now}))

	got, err := s.store.FindByTokenHash(s.ctx, "h1")
	s.Require().NoError(err)
	s.Equal("robert", got.Payload.Username)

	s.ErrorIs(s.store.UpdatePayload(s.ctx, "missing", models.SessionPayload{}), sentinel.ErrNotFound)
}

func (s *SessionStoreSuite) TestDeletes() {
	s.add("bob-1", s.bobID, s.now)
	s.add("bob-2", s.bobID, s.now.Add(time.Minute))
	s.add("bob-3", s.bobID, s.now.Add(2*time.Minute))
	s.add("carol-1", s.carolID, s.now)

	s.Run("list is newest activity first", func() {
		list, err := s.store.ListByAdmin(s.ctx, s.bobID)
		s.Require().NoError(err)
		s.Require().Len(list, 3)
		s.Equal("bob-3", list[0].TokenHash)
		s.Equal("bob-1", list[2].TokenHash)
	})

	s.Run("delete all except keeps the acting session and other admins", func() {
		n, err := s.store.DeleteAllExcept(s.ctx, s.bobID, "bob-2")
		s.Require().NoError(err)
		s.Equal(2, n)

		list, err := s.store.ListByAdmin(s.ctx, s.bobID)
		s.Require().NoError(err)
		s.Require().Len(list, 1)
		s.Equal("bob-2", list[0].TokenHash)

		_, err = s.store.FindByTokenHash(s.ctx, "carol-1")
		s.NoError(err)
	})

	s.Run("delete is idempotent", func() {
		s.NoError(s.store.Delete(s.ctx, "bob-2"))
		s.NoError(s.store.Delete(s.ctx, "bob-2"))
		_, err := s.store.FindByTokenHash(s.ctx, "bob-2")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *SessionStoreSuite) TestDeleteIdleSince() {
	s.add("old", s.bobID, s.now)
	s.add("fresh", s.bobID, s.now.Add(time.Hour))

	n, err := s.store.DeleteIdleSince(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(1, n)

	_, err = s.store.FindByTokenHash(s.ctx, "fresh")
	s.NoError(err)
}
