package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/riteshkumar/billy-ledger/internal/errors"
	"github.com/riteshkumar/billy-ledger/internal/models"
)

const accountColumns = `id, username, password_hash, role, nickname, warning_count, alert_count,
	has_badge, balance_current, balance_next, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(
		&account.ID, &account.Username, &account.PasswordHash, &account.Role, &account.Nickname,
		&account.WarningCount, &account.AlertCount, &account.HasBadge,
		&account.BalanceCurrent, &account.BalanceNext, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}

type PostgresAccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

func (r *PostgresAccountRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `INSERT INTO accounts (username, password_hash, role, nickname, warning_count, alert_count,
			has_badge, balance_current, balance_next, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		account.Username,
		account.PasswordHash,
		account.Role,
		account.Nickname,
		account.WarningCount,
		account.AlertCount,
		account.HasBadge,
		account.BalanceCurrent,
		account.BalanceNext,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errors.ErrDuplicateUsername
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *PostgresAccountRepository) GetAccountByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by ID: %w", err)
	}
	return account, nil
}

func (r *PostgresAccountRepository) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return getAccountByUsername(ctx, r.db, username)
}

func getAccountByUsername(ctx context.Context, q querier, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`

	account, err := scanAccount(q.QueryRowContext(ctx, query, username))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by username: %w", err)
	}
	return account, nil
}

func (r *PostgresAccountRepository) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over accounts: %w", err)
	}
	return accounts, nil
}

// UpdateAccount applies a partial edit in one statement; unset fields keep
// their stored value.
func (r *PostgresAccountRepository) UpdateAccount(ctx context.Context, id int64, update models.AccountUpdate) (*models.Account, error) {
	query := `UPDATE accounts SET
			nickname = COALESCE($2, nickname),
			warning_count = COALESCE($3, warning_count),
			alert_count = COALESCE($4, alert_count),
			has_badge = COALESCE($5, has_badge),
			balance_current = COALESCE($6, balance_current),
			balance_next = COALESCE($7, balance_next),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING ` + accountColumns

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id,
		nullString(update.Nickname),
		nullInt64(update.WarningCount),
		nullInt64(update.AlertCount),
		nullBool(update.HasBadge),
		nullInt64(update.BalanceCurrent),
		nullInt64(update.BalanceNext),
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return account, nil
}

// DeleteAccount hard-deletes the account row. The transfers table has no
// foreign key to accounts so history is kept.
func (r *PostgresAccountRepository) DeleteAccount(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after deleting account: %w", err)
	}
	if rowsAffected == 0 {
		return errors.ErrAccountNotFound
	}
	return nil
}

func (r *PostgresAccountRepository) AdjustBalance(ctx context.Context, id int64, delta int64) (*models.Account, error) {
	return adjustBalance(ctx, r.db, id, delta)
}

// adjustBalance applies delta only if the result stays non-negative. When no
// row is updated a second lookup tells a missing account from a short one.
// A result beyond the BIGINT range (22003) is an invalid amount.
func adjustBalance(ctx context.Context, q querier, id int64, delta int64) (*models.Account, error) {
	query := `UPDATE accounts
		SET balance_current = balance_current + $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND balance_current + $1 >= 0
		RETURNING ` + accountColumns

	account, err := scanAccount(q.QueryRowContext(ctx, query, delta, id))
	if err == nil {
		return account, nil
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "22003" {
		return nil, fmt.Errorf("balance of account %d would overflow: %w", id, errors.ErrInvalidAmount)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to update account balance: %w", err)
	}

	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check if account exists: %w", err)
	}
	if !exists {
		return nil, errors.ErrAccountNotFound
	}
	return nil, errors.ErrInsufficientFunds
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
