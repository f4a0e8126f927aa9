package models

import (
	"encoding/json"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleUser:
		return true
	}
	return false
}

type Account struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	Role           Role      `json:"role"`
	Nickname       string    `json:"nickname"`
	WarningCount   int64     `json:"warning_count"`
	AlertCount     int64     `json:"alert_count"`
	HasBadge       bool      `json:"has_badge"`
	BalanceCurrent int64     `json:"balance_current"`
	BalanceNext    int64     `json:"balance_next"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Transfer struct {
	ID            int64     `json:"id"`
	FromAccountID int64     `json:"from_account_id"`
	ToAccountID   int64     `json:"to_account_id"`
	Amount        int64     `json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
}

// TransferView is a transfer joined with the display names of both parties.
// A party deleted after the transfer has an empty nickname.
type TransferView struct {
	Transfer
	FromNickname string `json:"from_nickname"`
	ToNickname   string `json:"to_nickname"`
}

type AuditLog struct {
	ID         string          `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Action     string          `json:"action"`
	OldValue   json.RawMessage `json:"old_value"`
	NewValue   json.RawMessage `json:"new_value"`
	CreatedAt  time.Time       `json:"created_at"`
}

const (
	AuditActionCreate   = "CREATE"
	AuditActionUpdate   = "UPDATE"
	AuditActionDelete   = "DELETE"
	AuditActionDebit    = "DEBIT"
	AuditActionCredit   = "CREDIT"
	AuditActionTransfer = "TRANSFER"
)

const (
	EntityTypeAccount  = "ACCOUNT"
	EntityTypeTransfer = "TRANSFER"
)

type CreateAccountRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     Role   `json:"role" validate:"required,oneof=admin moderator user"`
	Nickname string `json:"nickname" validate:"max=128"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Account   Account   `json:"account"`
}

type CreateTransferRequest struct {
	RecipientUsername string `json:"to_username" validate:"required"`
	Amount            int64  `json:"amount"`
}

type AccountBalanceSnapshot struct {
	ID             int64 `json:"id"`
	BalanceCurrent int64 `json:"balance_current"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
