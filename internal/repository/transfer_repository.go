package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riteshkumar/billy-ledger/internal/models"
)

const transferColumns = `id, from_account_id, to_account_id, amount, created_at`

type PostgresTransferRepository struct {
	db *sql.DB
}

func NewTransferRepository(db *sql.DB) *PostgresTransferRepository {
	return &PostgresTransferRepository{db: db}
}

func appendTransfer(ctx context.Context, q querier, transfer *models.Transfer) error {
	query := `INSERT INTO transfers (from_account_id, to_account_id, amount, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := q.QueryRowContext(ctx, query,
		transfer.FromAccountID,
		transfer.ToAccountID,
		transfer.Amount,
		transfer.CreatedAt,
	).Scan(&transfer.ID)

	if err != nil {
		return fmt.Errorf("failed to append transfer: %w", err)
	}
	return nil
}

func (r *PostgresTransferRepository) ListTransfers(ctx context.Context) ([]*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers ORDER BY created_at DESC, id DESC`
	return r.query(ctx, query)
}

func (r *PostgresTransferRepository) ListTransfersForAccount(ctx context.Context, accountID int64) ([]*models.Transfer, error) {
	query := `SELECT ` + transferColumns + `
		FROM transfers
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY created_at DESC, id DESC`
	return r.query(ctx, query, accountID)
}

func (r *PostgresTransferRepository) query(ctx context.Context, query string, args ...any) ([]*models.Transfer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers: %w", err)
	}
	defer rows.Close()

	transfers := make([]*models.Transfer, 0)
	for rows.Next() {
		transfer := &models.Transfer{}
		err := rows.Scan(&transfer.ID, &transfer.FromAccountID, &transfer.ToAccountID, &transfer.Amount, &transfer.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, transfer)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transfers: %w", err)
	}
	return transfers, nil
}
