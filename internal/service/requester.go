package service

import (
	"context"
	"fmt"

	"github.com/riteshkumar/billy-ledger/internal/errors"
	"github.com/riteshkumar/billy-ledger/internal/models"
	"github.com/riteshkumar/billy-ledger/internal/policy"
	"github.com/riteshkumar/billy-ledger/internal/repository"
)

// loadRequester turns the resolved caller id into its account. The identity
// is trusted as given; an id that no longer names an account is treated as
// unauthenticated.
func loadRequester(ctx context.Context, accounts repository.AccountRepository, requesterID int64) (*models.Account, error) {
	if requesterID <= 0 {
		return nil, errors.ErrUnauthenticated
	}

	requester, err := accounts.GetAccountByID(ctx, requesterID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, fmt.Errorf("requester %d: %w", requesterID, errors.ErrUnauthenticated)
		}
		return nil, err
	}
	return requester, nil
}

// authorize loads the requester and checks its role against op.
func authorize(ctx context.Context, accounts repository.AccountRepository, requesterID int64, op policy.Operation) (*models.Account, error) {
	requester, err := loadRequester(ctx, accounts, requesterID)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(requester.Role, op); err != nil {
		return nil, err
	}
	return requester, nil
}
