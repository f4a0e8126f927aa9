package service

import (
	"fmt"
	"strings"

	"github.com/riteshkumar/billy-ledger/internal/errors"
	"github.com/riteshkumar/billy-ledger/internal/models"
)

// ParseSeedAccounts reads seeds written as
// "username:password:role:nickname;username:password:role:nickname".
// The nickname may be omitted and may itself contain colons.
func ParseSeedAccounts(raw string) ([]SeedAccount, error) {
	var seeds []SeedAccount
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		parts := strings.SplitN(entry, ":", 4)
		if len(parts) < 3 {
			return nil, errors.NewValidationError("seed", fmt.Sprintf("%q needs username:password:role", entry))
		}

		seed := SeedAccount{
			Username: strings.TrimSpace(parts[0]),
			Password: parts[1],
			Role:     models.Role(strings.TrimSpace(parts[2])),
		}
		if len(parts) == 4 {
			seed.Nickname = parts[3]
		}
		if seed.Username == "" || seed.Password == "" {
			return nil, errors.NewValidationError("seed", fmt.Sprintf("%q has an empty username or password", entry))
		}
		if !seed.Role.Valid() {
			return nil, errors.NewValidationError("seed", fmt.Sprintf("%q has unknown role %q", entry, seed.Role))
		}
		seeds = append(seeds, seed)
	}
	return seeds, nil
}
