package repository

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/riteshkumar/billy-ledger/internal/errors"
	"github.com/riteshkumar/billy-ledger/internal/models"
)

// MemoryStore keeps accounts, transfers and audit logs in process memory.
// A single RWMutex guards all of it: units of work and standalone mutations
// hold the write lock, reads hold the read lock, so a reader never sees a
// transfer half applied.
type MemoryStore struct {
	mu             sync.RWMutex
	accounts       map[int64]*models.Account
	byUsername     map[string]int64
	order          []int64
	transfers      []*models.Transfer
	auditLogs      []*models.AuditLog
	nextAccountID  int64
	nextTransferID int64
	now            func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:   make(map[int64]*models.Account),
		byUsername: make(map[string]int64),
		now:        time.Now,
	}
}

func (s *MemoryStore) CreateAccount(ctx context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, exists := s.byUsername[account.Username]; exists {
		return errors.ErrDuplicateUsername
	}

	s.nextAccountID++
	now := s.now()
	account.ID = s.nextAccountID
	account.CreatedAt = now
	account.UpdatedAt = now

	stored := *account
	s.accounts[stored.ID] = &stored
	s.byUsername[stored.Username] = stored.ID
	s.order = append(s.order, stored.ID)
	return nil
}

func (s *MemoryStore) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

func (s *MemoryStore) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getByUsernameLocked(username)
}

// ListAccounts returns every account in creation order.
func (s *MemoryStore) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	accounts := make([]*models.Account, 0, len(s.order))
	for _, id := range s.order {
		account := *s.accounts[id]
		accounts = append(accounts, &account)
	}
	return accounts, nil
}

func (s *MemoryStore) UpdateAccount(ctx context.Context, id int64, update models.AccountUpdate) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	update.Apply(account)
	account.UpdatedAt = s.now()

	out := *account
	return &out, nil
}

// DeleteAccount removes the account. Transfers that reference it are kept.
func (s *MemoryStore) DeleteAccount(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return errors.ErrAccountNotFound
	}
	delete(s.accounts, id)
	delete(s.byUsername, account.Username)
	for i, accountID := range s.order {
		if accountID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) AdjustBalance(ctx context.Context, id int64, delta int64) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.adjustLocked(id, delta)
}

func (s *MemoryStore) ListTransfers(ctx context.Context) ([]*models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectTransfers(func(*models.Transfer) bool { return true }), nil
}

func (s *MemoryStore) ListTransfersForAccount(ctx context.Context, accountID int64) ([]*models.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectTransfers(func(t *models.Transfer) bool {
		return t.FromAccountID == accountID || t.ToAccountID == accountID
	}), nil
}

func (s *MemoryStore) Create(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendAuditLocked(log)
	return nil
}

// GetByEntityID returns audit logs for one entity, newest first.
func (s *MemoryStore) GetByEntityID(ctx context.Context, entityType, entityID string) ([]*models.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var logs []*models.AuditLog
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		log := s.auditLogs[i]
		if log.EntityType == entityType && log.EntityID == entityID {
			entry := *log
			logs = append(logs, &entry)
		}
	}
	return logs, nil
}

// WithTx holds the write lock for the whole of fn and keeps an undo journal
// of every mutation made through the Tx. On error or panic the journal is
// replayed backwards before the lock is released.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{store: s}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *MemoryStore) getLocked(id int64) (*models.Account, error) {
	account, ok := s.accounts[id]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	out := *account
	return &out, nil
}

func (s *MemoryStore) getByUsernameLocked(username string) (*models.Account, error) {
	id, ok := s.byUsername[username]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	return s.getLocked(id)
}

// adjustLocked applies delta to the current balance, refusing any change that
// would leave it negative or overflow it.
func (s *MemoryStore) adjustLocked(id int64, delta int64) (*models.Account, error) {
	account, ok := s.accounts[id]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	if delta > 0 && account.BalanceCurrent > math.MaxInt64-delta {
		return nil, fmt.Errorf("balance of account %d would overflow: %w", id, errors.ErrInvalidAmount)
	}
	if account.BalanceCurrent+delta < 0 {
		return nil, errors.ErrInsufficientFunds
	}
	account.BalanceCurrent += delta
	account.UpdatedAt = s.now()

	out := *account
	return &out, nil
}

func (s *MemoryStore) appendAuditLocked(log *models.AuditLog) {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	log.CreatedAt = s.now()
	entry := *log
	s.auditLogs = append(s.auditLogs, &entry)
}

// collectTransfers returns copies of the matching transfers, most recent
// first with ties broken by the higher id.
func (s *MemoryStore) collectTransfers(match func(*models.Transfer) bool) []*models.Transfer {
	transfers := make([]*models.Transfer, 0)
	for _, t := range s.transfers {
		if match(t) {
			transfer := *t
			transfers = append(transfers, &transfer)
		}
	}
	sortTransfers(transfers)
	return transfers
}

func sortTransfers(transfers []*models.Transfer) {
	sort.SliceStable(transfers, func(i, j int) bool {
		if !transfers[i].CreatedAt.Equal(transfers[j].CreatedAt) {
			return transfers[i].CreatedAt.After(transfers[j].CreatedAt)
		}
		return transfers[i].ID > transfers[j].ID
	})
}

type memoryTx struct {
	store *MemoryStore
	undo  []func()
}

func (tx *memoryTx) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return tx.store.getByUsernameLocked(username)
}

// GetAccountByIDForUpdate needs no extra locking: the unit of work already
// holds the store's write lock.
func (tx *memoryTx) GetAccountByIDForUpdate(ctx context.Context, id int64) (*models.Account, error) {
	return tx.store.getLocked(id)
}

func (tx *memoryTx) AdjustBalance(ctx context.Context, id int64, delta int64) (*models.Account, error) {
	stored, ok := tx.store.accounts[id]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	previous := *stored

	account, err := tx.store.adjustLocked(id, delta)
	if err != nil {
		return nil, err
	}
	tx.undo = append(tx.undo, func() {
		stored.BalanceCurrent = previous.BalanceCurrent
		stored.UpdatedAt = previous.UpdatedAt
	})
	return account, nil
}

func (tx *memoryTx) AppendTransfer(ctx context.Context, transfer *models.Transfer) error {
	s := tx.store
	s.nextTransferID++
	transfer.ID = s.nextTransferID

	stored := *transfer
	s.transfers = append(s.transfers, &stored)
	n := len(s.transfers)
	tx.undo = append(tx.undo, func() {
		s.transfers = s.transfers[:n-1]
	})
	return nil
}

func (tx *memoryTx) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s := tx.store
	s.appendAuditLocked(log)
	n := len(s.auditLogs)
	tx.undo = append(tx.undo, func() {
		s.auditLogs = s.auditLogs[:n-1]
	})
	return nil
}

func (tx *memoryTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}
