package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riteshkumar/billy-ledger/internal/errors"
	"github.com/riteshkumar/billy-ledger/internal/models"
)

func TestParseSeedAccounts(t *testing.T) {
	seeds, err := ParseSeedAccounts(" admin:pw1:admin:Big Boss ; alice:pw2:user ;; bob:pw3:moderator:a:b ")
	require.NoError(t, err)

	assert.Equal(t, []SeedAccount{
		{Username: "admin", Password: "pw1", Role: models.RoleAdmin, Nickname: "Big Boss"},
		{Username: "alice", Password: "pw2", Role: models.RoleUser},
		{Username: "bob", Password: "pw3", Role: models.RoleModerator, Nickname: "a:b"},
	}, seeds)
}

func TestParseSeedAccounts_Empty(t *testing.T) {
	seeds, err := ParseSeedAccounts("")
	require.NoError(t, err)
	assert.Empty(t, seeds)
}

func TestParseSeedAccounts_Rejects(t *testing.T) {
	for _, raw := range []string{
		"alice:pw",
		":pw:user",
		"alice::user",
		"alice:pw:root",
		"admin:pw:admin;broken",
	} {
		_, err := ParseSeedAccounts(raw)
		assert.True(t, errors.IsValidationError(err), "%q", raw)
	}
}
