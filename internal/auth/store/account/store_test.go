package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"greenctf/internal/auth/models"
	rlmodels "greenctf/internal/ratelimit/models"
	"greenctf/pkg/platform/sentinel"
	"greenctf/pkg/testutil"
)

type accountStore interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id int64) (*models.Account, error)
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	UpdateCredentials(ctx context.Context, id int64, changes models.CredentialChanges, now time.Time) error
	SetEnabled(ctx context.Context, id int64, enabled bool, now time.Time) error
	RecordFailure(ctx context.Context, id int64, threshold int, lockFor time.Duration, now time.Time) (*rlmodels.FailureOutcome, error)
	ResetLockout(ctx context.Context, id int64, now time.Time) error
	ClearLockout(ctx context.Context, id int64, now time.Time) error
}

// AccountStoreSuite runs the credential store contract against one backend.
type AccountStoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) accountStore
	store    accountStore
	ctx      context.Context
	now      time.Time
	alice    *models.Account
}

func TestInMemoryStore(t *testing.T) {
	suite.Run(t, &AccountStoreSuite{newStore: func(*testing.T) accountStore { return NewInMemoryStore() }})
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &AccountStoreSuite{newStore: func(t *testing.T) accountStore {
		return NewSQLStore(testutil.NewSQLite(t).DB())
	}})
}

func (s *AccountStoreSuite) SetupTest() {
	s.store = s.newStore(s.T())
	s.ctx = context.Background()
	s.now = testutil.Epoch
	s.alice = s.create("alice", "alice@example.com", models.RoleAdmin)
}

func (s *AccountStoreSuite) create(username, email string, role models.Role) *models.Account {
	a := &models.Account{
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$04$hash-" + username,
		Role:         role,
		Enabled:      true,
		CreatedAt:    s.now,
		UpdatedAt:    s.now,
	}
	s.Require().NoError(s.store.Create(s.ctx, a))
	s.Require().NotZero(a.ID)
	return a
}

func (s *AccountStoreSuite) TestCreateAndFind() {
	s.Run("find by username", func() {
		got, err := s.store.FindByUsername(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal(s.alice.ID, got.ID)
		s.Equal("alice@example.com", got.Email)
		s.Equal(models.RoleAdmin, got.Role)
		s.True(got.Enabled)
		s.Zero(got.FailedAttempts)
		s.Nil(got.LockedUntil)
		s.True(got.CreatedAt.Equal(s.now))
	})

	s.Run("find by id and email", func() {
		got, err := s.store.FindByID(s.ctx, s.alice.ID)
		s.Require().NoError(err)
		s.Equal("alice", got.Username)

		got, err = s.store.FindByEmail(s.ctx, "alice@example.com")
		s.Require().NoError(err)
		s.Equal(s.alice.ID, got.ID)
	})

	s.Run("unknown username is not found", func() {
		_, err := s.store.FindByUsername(s.ctx, "mallory")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("duplicate username conflicts", func() {
		err := s.store.Create(s.ctx, &models.Account{
			Username: "alice", Email: "other@example.com", PasswordHash: "h", Role: models.RoleAdmin,
			Enabled: true, CreatedAt: s.now, UpdatedAt: s.now,
		})
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("list is ordered by id", func() {
		s.create("bob", "bob@example.com", models.RoleSuperAdmin)
		list, err := s.store.List(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(list, 2)
		s.Equal("alice", list[0].Username)
		s.Equal("bob", list[1].Username)
	})
}

func (s *AccountStoreSuite) TestUpdateCredentials() {
	bob := s.create("bob", "bob@example.com", models.RoleAdmin)

	s.Run("updates only supplied fields", func() {
		name := "alice2"
		hash := "$2a$04$new"
		s.Require().NoError(s.store.UpdateCredentials(s.ctx, s.alice.ID,
			models.CredentialChanges{Username: &name, PasswordHash: &hash}, s.now.Add(time.Minute)))

		got, err := s.store.FindByID(s.ctx, s.alice.ID)
		s.Require().NoError(err)
		s.Equal("alice2", got.Username)
		s.Equal("alice@example.com", got.Email)
		s.Equal(hash, got.PasswordHash)
		s.True(got.UpdatedAt.Equal(s.now.Add(time.Minute)))
	})

	s.Run("taken email conflicts", func() {
		email := "bob@example.com"
		err := s.store.UpdateCredentials(s.ctx, s.alice.ID, models.CredentialChanges{Email: &email}, s.now)
		s.ErrorIs(err, sentinel.ErrConflict)
		s.NotZero(bob.ID)
	})

	s.Run("missing account", func() {
		name := "ghost"
		err := s.store.UpdateCredentials(s.ctx, 9999, models.CredentialChanges{Username: &name}, s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *AccountStoreSuite) TestSetEnabled() {
	s.Require().NoError(s.store.SetEnabled(s.ctx, s.alice.ID, false, s.now))
	got, err := s.store.FindByID(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.False(got.Enabled)

	s.ErrorIs(s.store.SetEnabled(s.ctx, 9999, true, s.now), sentinel.ErrNotFound)
}

func (s *AccountStoreSuite) TestLockoutTransitions() {
	const threshold = 5
	lockFor := 30 * time.Minute

	s.Run("locks exactly at the threshold", func() {
		for i := 1; i < threshold; i++ {
			out, err := s.store.RecordFailure(s.ctx, s.alice.ID, threshold, lockFor, s.now)
			s.Require().NoError(err)
			s.Equal(i, out.FailedAttempts)
			s.Nil(out.LockedUntil)
			s.False(out.JustLocked)
		}
		out, err := s.store.RecordFailure(s.ctx, s.alice.ID, threshold, lockFor, s.now)
		s.Require().NoError(err)
		s.Equal(threshold, out.FailedAttempts)
		s.True(out.JustLocked)
		s.Require().NotNil(out.LockedUntil)
		s.True(out.LockedUntil.Equal(s.now.Add(lockFor)))
		s.True(out.IsLocked(s.now.Add(29 * time.Minute)))
	})

	s.Run("failure while locked keeps the original lock", func() {
		out, err := s.store.RecordFailure(s.ctx, s.alice.ID, threshold, lockFor, s.now.Add(time.Minute))
		s.Require().NoError(err)
		s.False(out.JustLocked)
		s.Require().NotNil(out.LockedUntil)
		s.True(out.LockedUntil.Equal(s.now.Add(lockFor)))
	})

	s.Run("failure after expiry restarts at one", func() {
		out, err := s.store.RecordFailure(s.ctx, s.alice.ID, threshold, lockFor, s.now.Add(31*time.Minute))
		s.Require().NoError(err)
		s.Equal(1, out.FailedAttempts)
		s.Nil(out.LockedUntil)
		s.False(out.JustLocked)
	})

	s.Run("reset clears state and stamps login", func() {
		at := s.now.Add(32 * time.Minute)
		s.Require().NoError(s.store.ResetLockout(s.ctx, s.alice.ID, at))
		got, err := s.store.FindByID(s.ctx, s.alice.ID)
		s.Require().NoError(err)
		s.Zero(got.FailedAttempts)
		s.Nil(got.LockedUntil)
		s.Require().NotNil(got.LastLoginAt)
		s.True(got.LastLoginAt.Equal(at))
	})

	s.Run("clear does not stamp login", func() {
		bob := s.create("bob", "bob@example.com", models.RoleAdmin)
		for range threshold {
			_, err := s.store.RecordFailure(s.ctx, bob.ID, threshold, lockFor, s.now)
			s.Require().NoError(err)
		}
		s.Require().NoError(s.store.ClearLockout(s.ctx, bob.ID, s.now))
		got, err := s.store.FindByID(s.ctx, bob.ID)
		s.Require().NoError(err)
		s.Zero(got.FailedAttempts)
		s.Nil(got.LockedUntil)
		s.Nil(got.LastLoginAt)
	})

	s.Run("unknown account", func() {
		_, err := s.store.RecordFailure(s.ctx, 9999, threshold, lockFor, s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *AccountStoreSuite) TestConcurrentFailuresAreCounted() {
	result := testutil.RunConcurrent(8, func(int) error {
		_, err := s.store.RecordFailure(s.ctx, s.alice.ID, 100, time.Minute, s.now)
		return err
	})
	s.Equal(int32(8), result.Successes)

	got, err := s.store.FindByID(s.ctx, s.alice.ID)
	s.Require().NoError(err)
	s.Equal(8, got.FailedAttempts)
}
