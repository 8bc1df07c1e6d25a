package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/platinummonkey/spendwise/pkg/accounts"
	"github.com/platinummonkey/spendwise/pkg/activity"
	"github.com/platinummonkey/spendwise/pkg/auth"
	"github.com/platinummonkey/spendwise/pkg/config"
	"github.com/platinummonkey/spendwise/pkg/observability"
	"github.com/platinummonkey/spendwise/pkg/sessions"
	"github.com/platinummonkey/spendwise/pkg/storage/postgres"
)

const usage = `Usage: spendwise-admin <command> [flags]

Commands:
  create-admin   Create an administrator account
  purge          Delete activity records older than the retention period
  sweep          Delete expired sessions
  migrate        Create or update the database schema
`

var stdin = bufio.NewReader(os.Stdin)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.LogLevel(), os.Stderr)

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "create-admin":
		err = createAdmin(ctx, cfg, args)
	case "purge":
		err = purge(ctx, cfg, logger, args)
	case "sweep":
		err = sweep(ctx, cfg)
	case "migrate":
		err = migrate(ctx, cfg)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	return postgres.Open(ctx, postgres.ConnectionConfig{
		URL:            cfg.Database.URL,
		MaxOpenConns:   2,
		ConnectTimeout: cfg.Database.ConnectTimeout,
	})
}

func createAdmin(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ExitOnError)
	username := fs.String("username", "", "Admin username (required)")
	email := fs.String("email", "", "Admin email (required)")
	fullName := fs.String("full-name", "", "Full name")
	fs.Parse(args)

	if !auth.IsValidUsername(*username) {
		return fmt.Errorf("invalid username %q", *username)
	}
	if !auth.IsValidEmail(*email) {
		return fmt.Errorf("invalid email %q", *email)
	}

	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	if strength := auth.CheckPasswordStrength(password); !strength.IsStrong {
		return errors.New(strings.Join(strength.Violations, "; "))
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	store := accounts.NewStore(db, auth.NewPasswordHasher(cfg.Auth.BcryptCost))
	user, err := store.Create(ctx, accounts.NewUser{
		Username: *username,
		Email:    *email,
		Password: password,
		FullName: *fullName,
		Role:     auth.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	fmt.Printf("Created admin %s (id %d)\n", user.Username, user.ID)
	return nil
}

// readPassword prompts without echo on a terminal and reads a plain line otherwise
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func purge(ctx context.Context, cfg *config.Config, logger *observability.Logger, args []string) error {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	days := fs.Int("days", cfg.Activity.RetentionDays, "Delete records older than this many days")
	fs.Parse(args)

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	service, err := newPurgeService(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	deleted, err := service.PurgeOlderThan(ctx, *days, activity.Caller{Admin: true})
	if err != nil {
		return err
	}

	fmt.Printf("Removed %d activity records older than %d days\n", deleted, *days)
	return nil
}

// newPurgeService builds the activity service used by purge, archiving to the
// same bucket or directory the server's scheduled purge uses.
func newPurgeService(ctx context.Context, cfg *config.Config, db *sql.DB, logger *observability.Logger) (*activity.Service, error) {
	opts := []activity.ServiceOption{activity.WithRetentionDays(cfg.Activity.RetentionDays)}
	archive, err := postgres.OpenArchiveStore(ctx, cfg.Archive())
	if err != nil {
		return nil, err
	}
	if archive != nil {
		opts = append(opts, activity.WithArchiver(activity.NewArchiver(archive, "")))
	} else {
		logger.Warn("no archive bucket or directory configured; purged rows are not archived")
	}
	return activity.NewService(activity.NewPostgresStore(db, 5*time.Minute), logger, opts...), nil
}

func sweep(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	deleted, err := sessions.NewStore(db).DeleteExpired(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d expired sessions\n", deleted)
	return nil
}

func migrate(ctx context.Context, cfg *config.Config) error {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	fmt.Println("Schema is up to date")
	return nil
}
