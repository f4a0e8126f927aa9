package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/riteshkumar/billy-ledger/internal/errors"
	"github.com/riteshkumar/billy-ledger/internal/models"
	"github.com/riteshkumar/billy-ledger/internal/policy"
	"github.com/riteshkumar/billy-ledger/internal/repository"
)

type TransferService interface {
	Transfer(ctx context.Context, requesterID int64, req *models.CreateTransferRequest) (*models.Transfer, error)
	ListTransfers(ctx context.Context, requesterID int64) ([]*models.TransferView, error)
	ListTransfersForAccount(ctx context.Context, requesterID, accountID int64) ([]*models.TransferView, error)
}

type TransferServiceImpl struct {
	store        repository.Store
	accountRepo  repository.AccountRepository
	transferRepo repository.TransferRepository
	cfg          LedgerConfig
	logger       *slog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

func NewTransferService(store repository.Store, accountRepo repository.AccountRepository, transferRepo repository.TransferRepository, cfg LedgerConfig, logger *slog.Logger, opts ...Option) *TransferServiceImpl {
	o := newOptions(logger, opts)
	return &TransferServiceImpl{
		store:        store,
		accountRepo:  accountRepo,
		transferRepo: transferRepo,
		cfg:          cfg,
		logger:       o.logger,
		tracer:       o.tracer,
		now:          o.now,
	}
}

// Transfer moves amount from the requester to the named recipient. The
// balance check, debit, credit, ledger append and audit entries run as one
// unit of work: either all of them take effect or none do.
func (s *TransferServiceImpl) Transfer(ctx context.Context, requesterID int64, req *models.CreateTransferRequest) (*models.Transfer, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.transfer", trace.WithAttributes(
		attribute.Int64("requester.id", requesterID),
		attribute.Int64("transfer.amount", req.Amount),
	))
	defer span.End()

	transfer, err := s.transfer(ctx, requesterID, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int64("transfer.id", transfer.ID))
	s.logger.Info("transfer completed",
		"transfer_id", transfer.ID,
		"from_account_id", transfer.FromAccountID,
		"to_account_id", transfer.ToAccountID,
		"amount", transfer.Amount,
	)
	return transfer, nil
}

func (s *TransferServiceImpl) transfer(ctx context.Context, requesterID int64, req *models.CreateTransferRequest) (*models.Transfer, error) {
	requester, err := authorize(ctx, s.accountRepo, requesterID, policy.CreateTransfer)
	if err != nil {
		s.logger.Warn("transfer denied",
			"requester_id", requesterID,
			"error", err.Error(),
		)
		return nil, err
	}

	if err := s.validateTransferRequest(req); err != nil {
		s.logger.Warn("invalid transfer request",
			"requester_id", requesterID,
			"to_username", req.RecipientUsername,
			"amount", req.Amount,
			"error", err.Error(),
		)
		return nil, err
	}

	var transfer *models.Transfer
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		t, err := s.transferInTx(ctx, tx, requester.ID, req)
		if err != nil {
			return err
		}
		transfer = t
		return nil
	})
	if err != nil {
		switch {
		case errors.IsTransferFailed(err):
		case errors.IsDomainError(err):
			s.logger.Warn("transfer rejected",
				"requester_id", requesterID,
				"to_username", req.RecipientUsername,
				"amount", req.Amount,
				"error", err.Error(),
			)
			return nil, err
		default:
			err = errors.NewTransactionError("commit", err)
		}
		s.logger.Error("transfer rolled back",
			"requester_id", requesterID,
			"to_username", req.RecipientUsername,
			"amount", req.Amount,
			"error", err.Error(),
		)
		return nil, err
	}
	return transfer, nil
}

func (s *TransferServiceImpl) transferInTx(ctx context.Context, tx repository.Tx, requesterID int64, req *models.CreateTransferRequest) (*models.Transfer, error) {
	recipient, err := tx.GetAccountByUsername(ctx, req.RecipientUsername)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, fmt.Errorf("%q: %w", req.RecipientUsername, errors.ErrRecipientNotFound)
		}
		return nil, errors.NewTransactionError("get recipient", err)
	}

	if recipient.ID == requesterID && !s.cfg.AllowSelfTransfer {
		return nil, errors.ErrInvalidRecipient
	}

	// Lock in ascending id order so two opposite transfers cannot deadlock.
	locked := make(map[int64]*models.Account, 2)
	for _, id := range lockOrder(requesterID, recipient.ID) {
		account, err := tx.GetAccountByIDForUpdate(ctx, id)
		if err != nil {
			switch {
			case errors.IsNotFound(err) && id == requesterID:
				return nil, fmt.Errorf("requester %d: %w", id, errors.ErrUnauthenticated)
			case errors.IsNotFound(err):
				return nil, fmt.Errorf("%q: %w", req.RecipientUsername, errors.ErrRecipientNotFound)
			}
			return nil, errors.NewTransactionError("lock account", err)
		}
		locked[id] = account
	}

	source := locked[requesterID]
	if source.BalanceCurrent < req.Amount {
		s.logger.Warn("insufficient balance in source account",
			"from_account_id", requesterID,
			"available_balance", source.BalanceCurrent,
			"requested_amount", req.Amount,
		)
		return nil, errors.ErrInsufficientFunds
	}

	debited, err := tx.AdjustBalance(ctx, requesterID, -req.Amount)
	if err != nil {
		return nil, wrapTxError("debit source account", err)
	}

	credited, err := tx.AdjustBalance(ctx, recipient.ID, req.Amount)
	if err != nil {
		return nil, wrapTxError("credit destination account", err)
	}

	transfer := &models.Transfer{
		FromAccountID: requesterID,
		ToAccountID:   recipient.ID,
		Amount:        req.Amount,
		CreatedAt:     s.now().UTC(),
	}
	if err := tx.AppendTransfer(ctx, transfer); err != nil {
		return nil, errors.NewTransactionError("append transfer", err)
	}

	if err := s.createTransferAuditLogs(ctx, tx, transfer, source, debited, locked[recipient.ID], credited); err != nil {
		return nil, errors.NewTransactionError("create audit logs", err)
	}
	return transfer, nil
}

// ListTransfers returns the whole ledger to privileged roles and the caller's
// own history to everyone else.
func (s *TransferServiceImpl) ListTransfers(ctx context.Context, requesterID int64) ([]*models.TransferView, error) {
	requester, err := loadRequester(ctx, s.accountRepo, requesterID)
	if err != nil {
		return nil, err
	}

	if !policy.IsPrivileged(requester.Role) {
		return s.ListTransfersForAccount(ctx, requesterID, requester.ID)
	}

	transfers, err := s.transferRepo.ListTransfers(ctx)
	if err != nil {
		s.logger.Error("failed to list transfers", "error", err.Error())
		return nil, err
	}
	return s.enrich(ctx, transfers)
}

// ListTransfersForAccount returns every transfer the account sent or received.
// The account does not need to exist any more.
func (s *TransferServiceImpl) ListTransfersForAccount(ctx context.Context, requesterID, accountID int64) ([]*models.TransferView, error) {
	if accountID <= 0 {
		return nil, errors.ErrInvalidAccountID
	}

	op := policy.ViewAllAndAdminister
	if accountID == requesterID {
		op = policy.ViewOwnHistory
	}
	if _, err := authorize(ctx, s.accountRepo, requesterID, op); err != nil {
		return nil, err
	}

	transfers, err := s.transferRepo.ListTransfersForAccount(ctx, accountID)
	if err != nil {
		s.logger.Error("failed to list transfers for account",
			"account_id", accountID,
			"error", err.Error(),
		)
		return nil, err
	}
	return s.enrich(ctx, transfers)
}

// enrich joins each transfer with the nicknames of both parties. Deleted
// parties are left blank.
func (s *TransferServiceImpl) enrich(ctx context.Context, transfers []*models.Transfer) ([]*models.TransferView, error) {
	accounts, err := s.accountRepo.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	nicknames := make(map[int64]string, len(accounts))
	for _, account := range accounts {
		nicknames[account.ID] = account.Nickname
	}

	views := make([]*models.TransferView, 0, len(transfers))
	for _, t := range transfers {
		views = append(views, &models.TransferView{
			Transfer:     *t,
			FromNickname: nicknames[t.FromAccountID],
			ToNickname:   nicknames[t.ToAccountID],
		})
	}
	return views, nil
}

func (s *TransferServiceImpl) validateTransferRequest(req *models.CreateTransferRequest) error {
	if req.RecipientUsername == "" {
		return errors.NewValidationError("to_username", "must be non-empty")
	}
	if req.Amount <= 0 || req.Amount > s.cfg.TransferCeiling {
		return fmt.Errorf("%d not in (0, %d]: %w", req.Amount, s.cfg.TransferCeiling, errors.ErrInvalidAmount)
	}
	return nil
}

func (s *TransferServiceImpl) createTransferAuditLogs(ctx context.Context, tx repository.Tx, transfer *models.Transfer, sourceBefore, sourceAfter, destinationBefore, destinationAfter *models.Account) error {
	entries := []struct {
		action        string
		before, after *models.Account
	}{
		{models.AuditActionDebit, sourceBefore, sourceAfter},
		{models.AuditActionCredit, destinationBefore, destinationAfter},
	}

	for _, entry := range entries {
		oldValue, err := json.Marshal(models.AccountBalanceSnapshot{ID: entry.before.ID, BalanceCurrent: entry.before.BalanceCurrent})
		if err != nil {
			return err
		}
		newValue, err := json.Marshal(models.AccountBalanceSnapshot{ID: entry.after.ID, BalanceCurrent: entry.after.BalanceCurrent})
		if err != nil {
			return err
		}

		if err := tx.CreateAuditLog(ctx, &models.AuditLog{
			EntityType: models.EntityTypeAccount,
			EntityID:   strconv.FormatInt(entry.before.ID, 10),
			Action:     entry.action,
			OldValue:   oldValue,
			NewValue:   newValue,
		}); err != nil {
			return fmt.Errorf("failed to create %s audit log: %w", entry.action, err)
		}
	}

	txValue, err := json.Marshal(transfer)
	if err != nil {
		return err
	}
	if err := tx.CreateAuditLog(ctx, &models.AuditLog{
		EntityType: models.EntityTypeTransfer,
		EntityID:   strconv.FormatInt(transfer.ID, 10),
		Action:     models.AuditActionTransfer,
		NewValue:   txValue,
	}); err != nil {
		return fmt.Errorf("failed to create transfer audit log: %w", err)
	}
	return nil
}

func lockOrder(a, b int64) []int64 {
	switch {
	case a == b:
		return []int64{a}
	case a < b:
		return []int64{a, b}
	}
	return []int64{b, a}
}

// wrapTxError keeps domain errors as they are and marks anything else as a
// failed transfer.
func wrapTxError(operation string, err error) error {
	if errors.IsDomainError(err) {
		return err
	}
	return errors.NewTransactionError(operation, err)
}
