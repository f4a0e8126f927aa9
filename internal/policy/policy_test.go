package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/riteshkumar/billy-ledger/internal/errors"
	"github.com/riteshkumar/billy-ledger/internal/models"
)

var allOperations = []Operation{
	ViewOwnHistory,
	ViewAllAndAdminister,
	CreateAccount,
	EditAccount,
	DeleteAccount,
	CreateTransfer,
}

func TestAuthorize_PrivilegedRolesMayDoEverything(t *testing.T) {
	for _, role := range []models.Role{models.RoleAdmin, models.RoleModerator} {
		for _, op := range allOperations {
			assert.NoError(t, Authorize(role, op), "%s should be allowed %s", role, op)
		}
	}
}

func TestAuthorize_UserRole(t *testing.T) {
	allowed := map[Operation]bool{
		ViewOwnHistory: true,
		CreateTransfer: true,
	}

	for _, op := range allOperations {
		err := Authorize(models.RoleUser, op)
		if allowed[op] {
			assert.NoError(t, err, "user should be allowed %s", op)
			continue
		}
		assert.True(t, errors.IsForbidden(err), "user should be forbidden %s, got %v", op, err)
	}
}

func TestAuthorize_Unauthenticated(t *testing.T) {
	for _, op := range allOperations {
		err := Authorize("", op)
		assert.ErrorIs(t, err, errors.ErrUnauthenticated)
		assert.False(t, errors.IsForbidden(err))
	}
}

func TestAuthorize_UnknownRoleAndOperation(t *testing.T) {
	assert.True(t, errors.IsForbidden(Authorize("superuser", ViewOwnHistory)))
	assert.True(t, errors.IsForbidden(Authorize(models.RoleAdmin, Operation(99))))
	assert.True(t, errors.IsForbidden(Authorize(models.RoleUser, Operation(0))))
}

func TestIsPrivileged(t *testing.T) {
	assert.True(t, IsPrivileged(models.RoleAdmin))
	assert.True(t, IsPrivileged(models.RoleModerator))
	assert.False(t, IsPrivileged(models.RoleUser))
	assert.False(t, IsPrivileged(""))
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "create_transfer", CreateTransfer.String())
	assert.Equal(t, "operation(42)", Operation(42).String())
}
