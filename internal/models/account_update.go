package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/riteshkumar/billy-ledger/internal/errors"
)

// Editable account fields, keyed as they appear in edit requests.
const (
	FieldNickname       = "nickname"
	FieldWarningCount   = "warningCount"
	FieldAlertCount     = "alertCount"
	FieldHasBadge       = "hasBadge"
	FieldBalanceCurrent = "balanceCurrent"
	FieldBalanceNext    = "balanceNext"
)

// AccountUpdate is a partial account edit. Nil fields are left unchanged.
type AccountUpdate struct {
	Nickname       *string
	WarningCount   *int64
	AlertCount     *int64
	HasBadge       *bool
	BalanceCurrent *int64
	BalanceNext    *int64
}

func (u AccountUpdate) IsEmpty() bool {
	return u.Nickname == nil && u.WarningCount == nil && u.AlertCount == nil &&
		u.HasBadge == nil && u.BalanceCurrent == nil && u.BalanceNext == nil
}

// Apply copies the set fields onto account.
func (u AccountUpdate) Apply(account *Account) {
	if u.Nickname != nil {
		account.Nickname = *u.Nickname
	}
	if u.WarningCount != nil {
		account.WarningCount = *u.WarningCount
	}
	if u.AlertCount != nil {
		account.AlertCount = *u.AlertCount
	}
	if u.HasBadge != nil {
		account.HasBadge = *u.HasBadge
	}
	if u.BalanceCurrent != nil {
		account.BalanceCurrent = *u.BalanceCurrent
	}
	if u.BalanceNext != nil {
		account.BalanceNext = *u.BalanceNext
	}
}

// ParseAccountUpdate turns raw edit fields into an AccountUpdate. Any unknown
// field or malformed value rejects the whole edit.
func ParseAccountUpdate(fields map[string]string) (AccountUpdate, error) {
	var update AccountUpdate

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := strings.TrimSpace(fields[key])
		switch key {
		case FieldNickname:
			nickname := fields[key]
			update.Nickname = &nickname
		case FieldWarningCount:
			n, err := parseNonNegative(key, raw)
			if err != nil {
				return AccountUpdate{}, err
			}
			update.WarningCount = &n
		case FieldAlertCount:
			n, err := parseNonNegative(key, raw)
			if err != nil {
				return AccountUpdate{}, err
			}
			update.AlertCount = &n
		case FieldBalanceCurrent:
			n, err := parseNonNegative(key, raw)
			if err != nil {
				return AccountUpdate{}, err
			}
			update.BalanceCurrent = &n
		case FieldBalanceNext:
			n, err := parseNonNegative(key, raw)
			if err != nil {
				return AccountUpdate{}, err
			}
			update.BalanceNext = &n
		case FieldHasBadge:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return AccountUpdate{}, errors.NewValidationError(key, "must be a boolean")
			}
			update.HasBadge = &b
		default:
			return AccountUpdate{}, errors.NewValidationError(key, "field is not editable")
		}
	}

	if update.IsEmpty() {
		return AccountUpdate{}, errors.NewValidationError("fields", "at least one editable field is required")
	}
	return update, nil
}

func parseNonNegative(field, raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.NewValidationError(field, fmt.Sprintf("%q is not an integer", raw))
	}
	if n < 0 {
		return 0, errors.NewValidationError(field, "must be non-negative")
	}
	return n, nil
}
