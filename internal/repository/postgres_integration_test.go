//go:build integration

package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/riteshkumar/billy-ledger/internal/errors"
	"github.com/riteshkumar/billy-ledger/internal/models"
)

// setupPostgres starts a disposable Postgres, applies the schema and returns
// an open handle. The container is removed when the test ends.
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("ledger"),
		tcpostgres.WithPassword("ledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db), "migrating twice is a no-op")
	return db
}

func TestIntegration_PostgresAccounts(t *testing.T) {
	ctx := context.Background()
	repo := NewAccountRepository(setupPostgres(t))

	alice := newAccount("alice", 100)
	require.NoError(t, repo.CreateAccount(ctx, alice))
	assert.Positive(t, alice.ID)

	assert.ErrorIs(t, repo.CreateAccount(ctx, newAccount("alice", 1)), errors.ErrDuplicateUsername)

	byName, err := repo.GetAccountByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)
	assert.Equal(t, "hash", byName.PasswordHash)

	badge := true
	warnings := int64(3)
	updated, err := repo.UpdateAccount(ctx, alice.ID, models.AccountUpdate{HasBadge: &badge, WarningCount: &warnings})
	require.NoError(t, err)
	assert.True(t, updated.HasBadge)
	assert.Equal(t, int64(3), updated.WarningCount)
	assert.Equal(t, "alice-nick", updated.Nickname)

	_, err = repo.AdjustBalance(ctx, alice.ID, -101)
	assert.ErrorIs(t, err, errors.ErrInsufficientFunds)
	_, err = repo.AdjustBalance(ctx, 9999, 1)
	assert.ErrorIs(t, err, errors.ErrAccountNotFound)

	top := int64(math.MaxInt64)
	_, err = repo.UpdateAccount(ctx, alice.ID, models.AccountUpdate{BalanceCurrent: &top})
	require.NoError(t, err)
	_, err = repo.AdjustBalance(ctx, alice.ID, 1)
	assert.ErrorIs(t, err, errors.ErrInvalidAmount)

	require.NoError(t, repo.DeleteAccount(ctx, alice.ID))
	assert.ErrorIs(t, repo.DeleteAccount(ctx, alice.ID), errors.ErrAccountNotFound)
}

func TestIntegration_PostgresUnitOfWork(t *testing.T) {
	ctx := context.Background()
	db := setupPostgres(t)
	accounts := NewAccountRepository(db)
	transfers := NewTransferRepository(db)
	audits := NewAuditRepository(db)
	store := NewPostgresStore(db)

	alice := newAccount("alice", 100)
	bob := newAccount("bob", 100)
	require.NoError(t, accounts.CreateAccount(ctx, alice))
	require.NoError(t, accounts.CreateAccount(ctx, bob))

	boom := stderrors.New("boom")
	err := store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.AdjustBalance(ctx, alice.ID, -60); err != nil {
			return err
		}
		if _, err := tx.AdjustBalance(ctx, bob.ID, 60); err != nil {
			return err
		}
		if err := tx.AppendTransfer(ctx, &models.Transfer{FromAccountID: alice.ID, ToAccountID: bob.ID, Amount: 60, CreatedAt: time.Now().UTC()}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := accounts.GetAccountByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.BalanceCurrent)
	all, err := transfers.ListTransfers(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	var transfer models.Transfer
	err = store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetAccountByIDForUpdate(ctx, alice.ID); err != nil {
			return err
		}
		if _, err := tx.AdjustBalance(ctx, alice.ID, -60); err != nil {
			return err
		}
		if _, err := tx.AdjustBalance(ctx, bob.ID, 60); err != nil {
			return err
		}
		transfer = models.Transfer{FromAccountID: alice.ID, ToAccountID: bob.ID, Amount: 60, CreatedAt: time.Now().UTC()}
		if err := tx.AppendTransfer(ctx, &transfer); err != nil {
			return err
		}
		return tx.CreateAuditLog(ctx, &models.AuditLog{EntityType: models.EntityTypeTransfer, EntityID: "1", Action: models.AuditActionTransfer})
	})
	require.NoError(t, err)
	assert.Positive(t, transfer.ID)

	forBob, err := transfers.ListTransfersForAccount(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, forBob, 1)
	assert.Equal(t, int64(60), forBob[0].Amount)

	logs, err := audits.GetByEntityID(ctx, models.EntityTypeTransfer, "1")
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	require.NoError(t, accounts.DeleteAccount(ctx, alice.ID))
	forAlice, err := transfers.ListTransfersForAccount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, forAlice, 1, "history outlives the account")
}

func TestIntegration_PostgresConcurrentDebits(t *testing.T) {
	ctx := context.Background()
	db := setupPostgres(t)
	accounts := NewAccountRepository(db)
	transfers := NewTransferRepository(db)
	store := NewPostgresStore(db)

	alice := newAccount("alice", 1000)
	require.NoError(t, accounts.CreateAccount(ctx, alice))

	const attempts = 20
	recipients := make([]*models.Account, attempts)
	for i := range recipients {
		recipients[i] = newAccount(fmt.Sprintf("recipient-%02d", i), 0)
		require.NoError(t, accounts.CreateAccount(ctx, recipients[i]))
	}

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for _, recipient := range recipients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
				for _, id := range []int64{alice.ID, recipient.ID} {
					if _, err := tx.GetAccountByIDForUpdate(ctx, id); err != nil {
						return err
					}
				}
				if _, err := tx.AdjustBalance(ctx, alice.ID, -300); err != nil {
					return err
				}
				if _, err := tx.AdjustBalance(ctx, recipient.ID, 300); err != nil {
					return err
				}
				return tx.AppendTransfer(ctx, &models.Transfer{FromAccountID: alice.ID, ToAccountID: recipient.ID, Amount: 300, CreatedAt: time.Now().UTC()})
			})
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, errors.ErrInsufficientFunds)
	}
	assert.Equal(t, 3, succeeded)

	got, err := accounts.GetAccountByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.BalanceCurrent)

	sent, err := transfers.ListTransfersForAccount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, sent, 3)
}
