// Package policy decides which roles may perform which classes of ledger
// operation. Every mutating entry point consults Authorize.
package policy

import (
	"fmt"

	"github.com/riteshkumar/billy-ledger/internal/errors"
	"github.com/riteshkumar/billy-ledger/internal/models"
)

type Operation int

const (
	ViewOwnHistory Operation = iota + 1
	ViewAllAndAdminister
	CreateAccount
	EditAccount
	DeleteAccount
	CreateTransfer
)

func (op Operation) String() string {
	switch op {
	case ViewOwnHistory:
		return "view_own_history"
	case ViewAllAndAdminister:
		return "view_all_and_administer"
	case CreateAccount:
		return "create_account"
	case EditAccount:
		return "edit_account"
	case DeleteAccount:
		return "delete_account"
	case CreateTransfer:
		return "create_transfer"
	}
	return fmt.Sprintf("operation(%d)", int(op))
}

// userOperations are the only classes open to the plain user role.
var userOperations = map[Operation]bool{
	ViewOwnHistory: true,
	CreateTransfer: true,
}

// Authorize returns nil when role may perform op. An empty role means no
// resolved identity and yields ErrUnauthenticated; any other denial yields
// ErrForbidden.
func Authorize(role models.Role, op Operation) error {
	switch role {
	case "":
		return errors.ErrUnauthenticated
	case models.RoleAdmin, models.RoleModerator:
		if op >= ViewOwnHistory && op <= CreateTransfer {
			return nil
		}
	case models.RoleUser:
		if userOperations[op] {
			return nil
		}
	}
	return fmt.Errorf("%s as %q: %w", op, role, errors.ErrForbidden)
}

// IsPrivileged reports whether role administers other accounts.
func IsPrivileged(role models.Role) bool {
	return Authorize(role, ViewAllAndAdminister) == nil
}
