package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"greenctf/internal/auth/models"
	accountstore "greenctf/internal/auth/store/account"
	"greenctf/internal/ratelimit/service/authlockout"
	"greenctf/pkg/platform/sentinel"
	"greenctf/pkg/secrets"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
		Long:  "Provision back-office admin accounts and change their enabled and lockout state.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminSetEnabledCmd("enable", true))
	cmd.AddCommand(newAdminSetEnabledCmd("disable", false))
	cmd.AddCommand(newAdminUnlockCmd())

	return cmd
}

// accountAdmin is the store surface the admin commands need.
type accountAdmin interface {
	authlockout.Store
	Create(ctx context.Context, account *models.Account) error
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	SetEnabled(ctx context.Context, id int64, enabled bool, now time.Time) error
}

// withAccounts opens the configured database for one admin command.
func withAccounts(cmd *cobra.Command, fn func(ctx context.Context, accounts accountAdmin, bcryptCost int) error) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	pool, err := openDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, accountstore.NewSQLStore(pool.DB()), cfg.Auth.BcryptCost)
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var req models.CreateAccountRequest
	var role string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account",
		Example: `  greenctf admin create --username alice --email alice@greenctf.org --role super_admin
  echo "$PW" | greenctf admin create --username bob --email bob@greenctf.org`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Role = models.Role(role)
			if req.Password == "" {
				pw, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				req.Password = pw
			}
			return withAccounts(cmd, func(ctx context.Context, accounts accountAdmin, cost int) error {
				account, err := createAccount(ctx, accounts, secrets.NewHasher(cost), &req, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q (id %d)\n", account.Role, account.Username, account.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&req.Username, "username", "", "login name (required)")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (prompted if omitted)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleAdmin), "super_admin or admin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

type passwordHasher interface {
	Hash(password string) (string, error)
}

func createAccount(ctx context.Context, accounts accountAdmin, hasher passwordHasher, req *models.CreateAccountRequest, now time.Time) (*models.Account, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	hash, err := hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	account := &models.Account{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		Enabled:      true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := accounts.Create(ctx, account); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, fmt.Errorf("username %q or email %q is already taken", req.Username, req.Email)
		}
		return nil, err
	}
	return account, nil
}

// readPassword prompts twice on a terminal. Piped input supplies the
// password as its first line.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Password: ")
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprint(prompt, "Confirm password: ")
		confirm, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read confirmation: %w", err)
		}
		if string(pw) != string(confirm) {
			return "", errors.New("passwords do not match")
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List admin accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAccounts(cmd, func(ctx context.Context, accounts accountAdmin, _ int) error {
				list, err := accounts.List(ctx)
				if err != nil {
					return err
				}
				return printAccounts(cmd.OutOrStdout(), list, time.Now())
			})
		},
	}
}

func printAccounts(out io.Writer, accounts []*models.Account, now time.Time) error {
	if len(accounts) == 0 {
		_, err := fmt.Fprintln(out, "No admin accounts.")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tROLE\tSTATUS\tLAST LOGIN")
	for _, a := range accounts {
		status := "enabled"
		switch {
		case !a.Enabled:
			status = "disabled"
		case a.Lockout().IsLocked(now):
			status = "locked until " + a.LockedUntil.UTC().Format(time.RFC3339)
		}
		lastLogin := "never"
		if a.LastLoginAt != nil {
			lastLogin = a.LastLoginAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", a.ID, a.Username, a.Email, a.Role, status, lastLogin)
	}
	return tw.Flush()
}

// ---------- admin enable / disable ----------

func newAdminSetEnabledCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <username>",
		Short: strings.ToUpper(use[:1]) + use[1:] + " an admin account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccounts(cmd, func(ctx context.Context, accounts accountAdmin, _ int) error {
				if err := setEnabled(ctx, accounts, args[0], enabled, time.Now()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Account %q %sd\n", args[0], use)
				return nil
			})
		},
	}
}

// setEnabled toggles the soft-disable flag. Sessions of a disabled account
// are rejected and deleted on their next check.
func setEnabled(ctx context.Context, accounts accountAdmin, username string, enabled bool, now time.Time) error {
	account, err := findAccount(ctx, accounts, username)
	if err != nil {
		return err
	}
	return accounts.SetEnabled(ctx, account.ID, enabled, now)
}

// ---------- admin unlock ----------

func newAdminUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <username>",
		Short: "Clear a lockout and the failed attempt counter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAccounts(cmd, func(ctx context.Context, accounts accountAdmin, _ int) error {
				if err := unlockAccount(ctx, accounts, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Account %q unlocked\n", args[0])
				return nil
			})
		},
	}
}

func unlockAccount(ctx context.Context, accounts accountAdmin, username string) error {
	account, err := findAccount(ctx, accounts, username)
	if err != nil {
		return err
	}
	lockout, err := authlockout.New(accounts)
	if err != nil {
		return err
	}
	return lockout.Unlock(ctx, account.ID)
}

func findAccount(ctx context.Context, accounts accountAdmin, username string) (*models.Account, error) {
	account, err := accounts.FindByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("no admin account named %q", username)
	}
	return account, err
}
