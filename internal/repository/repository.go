package repository

import (
	"context"

	"github.com/riteshkumar/billy-ledger/internal/models"
)

type AccountRepository interface {
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByID(ctx context.Context, id int64) (*models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]*models.Account, error)
	UpdateAccount(ctx context.Context, id int64, update models.AccountUpdate) (*models.Account, error)
	DeleteAccount(ctx context.Context, id int64) error
	AdjustBalance(ctx context.Context, id int64, delta int64) (*models.Account, error)
}

// TransferRepository is the read side of the transfer ledger. Transfers are
// only ever appended through a Tx.
type TransferRepository interface {
	ListTransfers(ctx context.Context) ([]*models.Transfer, error)
	ListTransfersForAccount(ctx context.Context, accountID int64) ([]*models.Transfer, error)
}

type AuditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	GetByEntityID(ctx context.Context, entityType, entityID string) ([]*models.AuditLog, error)
}

// Tx is the store as seen from inside one unit of work. Every mutation made
// through a Tx is undone if the unit of work fails.
type Tx interface {
	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	GetAccountByIDForUpdate(ctx context.Context, id int64) (*models.Account, error)
	AdjustBalance(ctx context.Context, id int64, delta int64) (*models.Account, error)
	AppendTransfer(ctx context.Context, transfer *models.Transfer) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Store runs fn as a single atomic unit of work. If fn returns an error the
// store is left exactly as it was before WithTx was called.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
