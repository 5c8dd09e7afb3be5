package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"greenctf/internal/auth/models"
	accountstore "greenctf/internal/auth/store/account"
	dErrors "greenctf/pkg/domain-errors"
	"greenctf/pkg/secrets"
)

type AdminCommandSuite struct {
	suite.Suite
	ctx      context.Context
	accounts *accountstore.InMemoryStore
	hasher   *secrets.Hasher
	now      time.Time
}

func TestAdminCommandSuite(t *testing.T) {
	suite.Run(t, new(AdminCommandSuite))
}

func (s *AdminCommandSuite) SetupTest() {
	s.ctx = context.Background()
	s.accounts = accountstore.NewInMemoryStore()
	s.hasher = secrets.NewHasher(bcrypt.MinCost)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *AdminCommandSuite) create(username, email string) *models.Account {
	account, err := createAccount(s.ctx, s.accounts, s.hasher, &models.CreateAccountRequest{
		Username: username, Email: email, Password: "correct-horse-battery",
	}, s.now)
	s.Require().NoError(err)
	return account
}

func (s *AdminCommandSuite) TestCreateAccount() {
	s.Run("stores a hashed, enabled account", func() {
		account := s.create("alice", "Alice@GreenCTF.org")
		s.NotZero(account.ID)

		stored, err := s.accounts.FindByUsername(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal("alice@greenctf.org", stored.Email)
		s.Equal(models.RoleAdmin, stored.Role)
		s.True(stored.Enabled)
		s.NotEqual("correct-horse-battery", stored.PasswordHash)

		ok, err := s.hasher.Verify("correct-horse-battery", stored.PasswordHash)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("duplicate username", func() {
		_, err := createAccount(s.ctx, s.accounts, s.hasher, &models.CreateAccountRequest{
			Username: "alice", Email: "other@greenctf.org", Password: "correct-horse-battery",
		}, s.now)
		s.Require().Error(err)
		s.Contains(err.Error(), "already taken")
	})

	s.Run("weak password", func() {
		_, err := createAccount(s.ctx, s.accounts, s.hasher, &models.CreateAccountRequest{
			Username: "carol", Email: "carol@greenctf.org", Password: "short",
		}, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *AdminCommandSuite) TestSetEnabled() {
	s.create("bob", "bob@greenctf.org")

	s.Require().NoError(setEnabled(s.ctx, s.accounts, "bob", false, s.now))
	bob, err := s.accounts.FindByUsername(s.ctx, "bob")
	s.Require().NoError(err)
	s.False(bob.Enabled)

	s.Require().NoError(setEnabled(s.ctx, s.accounts, " bob ", true, s.now))
	bob, err = s.accounts.FindByUsername(s.ctx, "bob")
	s.Require().NoError(err)
	s.True(bob.Enabled)

	err = setEnabled(s.ctx, s.accounts, "nobody", false, s.now)
	s.Require().Error(err)
	s.Contains(err.Error(), `no admin account named "nobody"`)
}

func (s *AdminCommandSuite) TestUnlock() {
	bob := s.create("bob", "bob@greenctf.org")
	for range 5 {
		_, err := s.accounts.RecordFailure(s.ctx, bob.ID, 5, 30*time.Minute, time.Now())
		s.Require().NoError(err)
	}
	locked, err := s.accounts.FindByUsername(s.ctx, "bob")
	s.Require().NoError(err)
	s.True(locked.Lockout().IsLocked(time.Now()))

	s.Require().NoError(unlockAccount(s.ctx, s.accounts, "bob"))

	unlocked, err := s.accounts.FindByUsername(s.ctx, "bob")
	s.Require().NoError(err)
	s.False(unlocked.Lockout().IsLocked(time.Now()))
	s.Zero(unlocked.FailedAttempts)
}

func (s *AdminCommandSuite) TestPrintAccounts() {
	var out bytes.Buffer
	s.Require().NoError(printAccounts(&out, nil, s.now))
	s.Equal("No admin accounts.\n", out.String())

	until := s.now.Add(10 * time.Minute)
	login := s.now.Add(-time.Hour)
	out.Reset()
	s.Require().NoError(printAccounts(&out, []*models.Account{
		{ID: 1, Username: "alice", Email: "alice@greenctf.org", Role: models.RoleSuperAdmin, Enabled: true, LastLoginAt: &login},
		{ID: 2, Username: "bob", Email: "bob@greenctf.org", Role: models.RoleAdmin, Enabled: true, LockedUntil: &until},
		{ID: 3, Username: "eve", Email: "eve@greenctf.org", Role: models.RoleAdmin},
	}, s.now))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	s.Require().Len(lines, 4)
	s.Contains(lines[1], "enabled")
	s.Contains(lines[1], "2026-03-01T11:00:00Z")
	s.Contains(lines[2], "locked until 2026-03-01T12:10:00Z")
	s.Contains(lines[3], "disabled")
	s.Contains(lines[3], "never")
}

func (s *AdminCommandSuite) TestReadPasswordFromPipe() {
	pw, err := readPassword(strings.NewReader("s3cret-pass\nignored\n"), &bytes.Buffer{})
	s.Require().NoError(err)
	s.Equal("s3cret-pass", pw)

	pw, err = readPassword(strings.NewReader("no-newline"), &bytes.Buffer{})
	s.Require().NoError(err)
	s.Equal("no-newline", pw)
}
