package repository

import (
	"context"
	stderrors "errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riteshkumar/billy-ledger/internal/errors"
	"github.com/riteshkumar/billy-ledger/internal/models"
)

func newAccount(username string, balance int64) *models.Account {
	return &models.Account{
		Username:       username,
		PasswordHash:   "hash",
		Role:           models.RoleUser,
		Nickname:       username + "-nick",
		BalanceCurrent: balance,
		BalanceNext:    balance,
	}
}

func mustCreate(t *testing.T, s *MemoryStore, username string, balance int64) *models.Account {
	t.Helper()
	account := newAccount(username, balance)
	require.NoError(t, s.CreateAccount(context.Background(), account))
	return account
}

func seedTransfer(t *testing.T, s *MemoryStore, from, to, amount int64, at time.Time) *models.Transfer {
	t.Helper()
	transfer := &models.Transfer{FromAccountID: from, ToAccountID: to, Amount: amount, CreatedAt: at}
	err := s.WithTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.AppendTransfer(ctx, transfer)
	})
	require.NoError(t, err)
	return transfer
}

func TestMemoryStore_CreateAssignsSequentialIDs(t *testing.T) {
	s := NewMemoryStore()

	a := mustCreate(t, s, "alice", 100)
	b := mustCreate(t, s, "bob", 100)

	assert.Equal(t, int64(1), a.ID)
	assert.Equal(t, int64(2), b.ID)
	assert.False(t, a.CreatedAt.IsZero())
}

func TestMemoryStore_CreateDuplicateUsername(t *testing.T) {
	s := NewMemoryStore()
	mustCreate(t, s, "alice", 100)

	err := s.CreateAccount(context.Background(), newAccount("alice", 5))
	assert.ErrorIs(t, err, errors.ErrDuplicateUsername)

	accounts, err := s.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestMemoryStore_GetByIDAndUsername(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := mustCreate(t, s, "alice", 100)

	byID, err := s.GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byName, err := s.GetAccountByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byName.ID)

	_, err = s.GetAccountByID(ctx, 42)
	assert.ErrorIs(t, err, errors.ErrAccountNotFound)
	_, err = s.GetAccountByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, errors.ErrAccountNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := mustCreate(t, s, "alice", 100)

	got, err := s.GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	got.BalanceCurrent = 1_000_000

	again, err := s.GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), again.BalanceCurrent)
}

func TestMemoryStore_ListAccountsInCreationOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, name := range []string{"carol", "alice", "bob"} {
		mustCreate(t, s, name, 1)
	}
	require.NoError(t, s.DeleteAccount(ctx, 2))
	mustCreate(t, s, "dave", 1)

	accounts, err := s.ListAccounts(ctx)
	require.NoError(t, err)

	var names []string
	for _, a := range accounts {
		names = append(names, a.Username)
	}
	assert.Equal(t, []string{"carol", "bob", "dave"}, names)
}

func TestMemoryStore_UpdateAccount(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := mustCreate(t, s, "alice", 100)

	nickname := "Al"
	badge := true
	updated, err := s.UpdateAccount(ctx, a.ID, models.AccountUpdate{Nickname: &nickname, HasBadge: &badge})
	require.NoError(t, err)
	assert.Equal(t, "Al", updated.Nickname)
	assert.True(t, updated.HasBadge)
	assert.Equal(t, int64(100), updated.BalanceCurrent)

	_, err = s.UpdateAccount(ctx, 99, models.AccountUpdate{Nickname: &nickname})
	assert.ErrorIs(t, err, errors.ErrAccountNotFound)
}

func TestMemoryStore_DeleteKeepsTransfersAndFreesUsername(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := mustCreate(t, s, "alice", 100)
	b := mustCreate(t, s, "bob", 100)
	seedTransfer(t, s, a.ID, b.ID, 10, time.Now())

	require.NoError(t, s.DeleteAccount(ctx, a.ID))
	assert.ErrorIs(t, s.DeleteAccount(ctx, a.ID), errors.ErrAccountNotFound)

	transfers, err := s.ListTransfersForAccount(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, a.ID, transfers[0].FromAccountID)

	again := mustCreate(t, s, "alice", 100)
	assert.NotEqual(t, a.ID, again.ID)
}

func TestMemoryStore_AdjustBalance(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := mustCreate(t, s, "alice", 100)

	got, err := s.AdjustBalance(ctx, a.ID, -100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.BalanceCurrent)

	_, err = s.AdjustBalance(ctx, a.ID, -1)
	assert.ErrorIs(t, err, errors.ErrInsufficientFunds)

	current, err := s.GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), current.BalanceCurrent)

	_, err = s.AdjustBalance(ctx, 77, 5)
	assert.ErrorIs(t, err, errors.ErrAccountNotFound)
}

func TestMemoryStore_AdjustBalanceRefusesOverflow(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := mustCreate(t, s, "alice", 100)

	top := int64(math.MaxInt64)
	_, err := s.UpdateAccount(ctx, a.ID, models.AccountUpdate{BalanceCurrent: &top})
	require.NoError(t, err)

	_, err = s.AdjustBalance(ctx, a.ID, 1)
	assert.ErrorIs(t, err, errors.ErrInvalidAmount)
	assert.False(t, errors.IsInsufficientFunds(err))

	current, err := s.GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, top, current.BalanceCurrent)

	_, err = s.AdjustBalance(ctx, a.ID, -1)
	assert.NoError(t, err)
}

func TestMemoryStore_TransfersOrderedNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := mustCreate(t, s, "alice", 100)
	b := mustCreate(t, s, "bob", 100)
	c := mustCreate(t, s, "carol", 100)

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	t1 := seedTransfer(t, s, a.ID, b.ID, 1, base)
	t2 := seedTransfer(t, s, b.ID, c.ID, 2, base.Add(time.Minute))
	t3 := seedTransfer(t, s, c.ID, a.ID, 3, base.Add(time.Minute))
	t4 := seedTransfer(t, s, b.ID, c.ID, 4, base.Add(-time.Minute))

	all, err := s.ListTransfers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{t3.ID, t2.ID, t1.ID, t4.ID}, transferIDs(all))

	forA, err := s.ListTransfersForAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{t3.ID, t1.ID}, transferIDs(forA))

	none, err := s.ListTransfersForAccount(ctx, 404)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStore_WithTxRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := mustCreate(t, s, "alice", 100)
	b := mustCreate(t, s, "bob", 100)
	boom := stderrors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.AdjustBalance(ctx, a.ID, -60); err != nil {
			return err
		}
		if _, err := tx.AdjustBalance(ctx, b.ID, 60); err != nil {
			return err
		}
		if err := tx.AppendTransfer(ctx, &models.Transfer{FromAccountID: a.ID, ToAccountID: b.ID, Amount: 60, CreatedAt: time.Now()}); err != nil {
			return err
		}
		if err := tx.CreateAuditLog(ctx, &models.AuditLog{EntityType: models.EntityTypeAccount, EntityID: "1", Action: models.AuditActionDebit}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	alice, _ := s.GetAccountByID(ctx, a.ID)
	bob, _ := s.GetAccountByID(ctx, b.ID)
	assert.Equal(t, int64(100), alice.BalanceCurrent)
	assert.Equal(t, int64(100), bob.BalanceCurrent)
	assert.Equal(t, a.UpdatedAt, alice.UpdatedAt)

	transfers, _ := s.ListTransfers(ctx)
	assert.Empty(t, transfers)
	logs, _ := s.GetByEntityID(ctx, models.EntityTypeAccount, "1")
	assert.Empty(t, logs)
}

func TestMemoryStore_WithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := mustCreate(t, s, "alice", 100)

	assert.Panics(t, func() {
		_ = s.WithTx(ctx, func(ctx context.Context, tx Tx) error {
			_, _ = tx.AdjustBalance(ctx, a.ID, -50)
			panic("storage fault")
		})
	})

	alice, err := s.GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), alice.BalanceCurrent)
}

func TestMemoryStore_WithTxHonoursCancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithTx(ctx, func(context.Context, Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestMemoryStore_ConcurrentAdjustNeverNegative(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := mustCreate(t, s, "alice", 1000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AdjustBalance(ctx, a.ID, -30); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	alice, err := s.GetAccountByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 33, succeeded)
	assert.Equal(t, int64(10), alice.BalanceCurrent)
}

func TestMemoryStore_AuditLogsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Create(ctx, &models.AuditLog{EntityType: models.EntityTypeAccount, EntityID: "1", Action: models.AuditActionCreate}))
	require.NoError(t, s.Create(ctx, &models.AuditLog{EntityType: models.EntityTypeAccount, EntityID: "2", Action: models.AuditActionCreate}))
	require.NoError(t, s.Create(ctx, &models.AuditLog{EntityType: models.EntityTypeAccount, EntityID: "1", Action: models.AuditActionUpdate}))

	logs, err := s.GetByEntityID(ctx, models.EntityTypeAccount, "1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.AuditActionUpdate, logs[0].Action)
	assert.Equal(t, models.AuditActionCreate, logs[1].Action)
	assert.NotEmpty(t, logs[0].ID)
}

func transferIDs(transfers []*models.Transfer) []int64 {
	ids := make([]int64, 0, len(transfers))
	for _, t := range transfers {
		ids = append(ids, t.ID)
	}
	return ids
}
