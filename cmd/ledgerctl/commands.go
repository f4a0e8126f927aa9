package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/subcommands"
	"golang.org/x/crypto/bcrypt"

	"github.com/riteshkumar/billy-ledger/internal/repository"
	"github.com/riteshkumar/billy-ledger/internal/service"
)

func openDB(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("no database: pass -dsn or set DATABASE_URL")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

type migrateCmd struct {
	dsn string
}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "apply the ledger schema to a Postgres database" }
func (*migrateCmd) Usage() string {
	return `ledgerctl migrate [-dsn <postgres url>]

  Applies every pending schema migration. Running it on an up-to-date
  database does nothing.
`
}

func (c *migrateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dsn, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string.")
}

func (c *migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	db, err := openDB(ctx, c.dsn)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	if err := repository.Migrate(db); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Println("schema is up to date")
	return subcommands.ExitSuccess
}

type seedCmd struct {
	dsn   string
	seeds string
	grant int64
}

func (*seedCmd) Name() string     { return "seed" }
func (*seedCmd) Synopsis() string { return "create the bootstrap accounts that do not exist yet" }
func (*seedCmd) Usage() string {
	return `ledgerctl seed [-dsn <postgres url>] [-accounts <seeds>] [-grant <amount>]

  Seeds are written username:password:role:nickname and separated by ';'.
  Usernames that already exist are left untouched, so seeding twice is safe.
`
}

func (c *seedCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dsn, "dsn", os.Getenv("DATABASE_URL"), "Postgres connection string.")
	f.StringVar(&c.seeds, "accounts", os.Getenv("SEED_ACCOUNTS"), "Accounts to create.")
	f.Int64Var(&c.grant, "grant", service.DefaultInitialGrant, "Initial balance of each new account.")
}

func (c *seedCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	seeds, err := service.ParseSeedAccounts(c.seeds)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if len(seeds) == 0 {
		fmt.Fprintln(os.Stderr, "nothing to seed: pass -accounts or set SEED_ACCOUNTS")
		return subcommands.ExitUsageError
	}

	db, err := openDB(ctx, c.dsn)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	cfg := service.DefaultLedgerConfig()
	cfg.InitialGrant = c.grant

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	accounts := service.NewAccountService(repository.NewAccountRepository(db), repository.NewAuditRepository(db), cfg, logger)
	if err := accounts.Seed(ctx, seeds); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type hashCmd struct {
	cost int
}

func (*hashCmd) Name() string     { return "hash" }
func (*hashCmd) Synopsis() string { return "print the bcrypt hash of a password" }
func (*hashCmd) Usage() string {
	return `ledgerctl hash [-cost <n>] <password>
`
}

func (c *hashCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.cost, "cost", bcrypt.DefaultCost, "bcrypt cost.")
}

func (c *hashCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(f.Arg(0)), c.cost)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Println(string(hash))
	return subcommands.ExitSuccess
}
