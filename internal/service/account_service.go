package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/riteshkumar/billy-ledger/internal/errors"
	"github.com/riteshkumar/billy-ledger/internal/models"
	"github.com/riteshkumar/billy-ledger/internal/policy"
	"github.com/riteshkumar/billy-ledger/internal/repository"
)

type AccountService interface {
	CreateAccount(ctx context.Context, requesterID int64, req *models.CreateAccountRequest) (*models.Account, error)
	GetAccount(ctx context.Context, requesterID, id int64) (*models.Account, error)
	ListAccounts(ctx context.Context, requesterID int64) ([]*models.Account, error)
	UpdateAccount(ctx context.Context, requesterID, id int64, fields map[string]string) (*models.Account, error)
	DeleteAccount(ctx context.Context, requesterID, id int64) error
	Authenticate(ctx context.Context, username, password string) (*models.Account, error)
	Seed(ctx context.Context, seeds []SeedAccount) error
	Authorize(ctx context.Context, requesterID int64, op policy.Operation) error
}

// SeedAccount is one account the bootstrap routine ensures exists.
type SeedAccount struct {
	Username string
	Password string
	Role     models.Role
	Nickname string
}

type AccountServiceImpl struct {
	accountRepo repository.AccountRepository
	auditRepo   repository.AuditRepository
	cfg         LedgerConfig
	logger      *slog.Logger
}

func NewAccountService(accountRepo repository.AccountRepository, auditRepo repository.AuditRepository, cfg LedgerConfig, logger *slog.Logger) *AccountServiceImpl {
	return &AccountServiceImpl{
		accountRepo: accountRepo,
		auditRepo:   auditRepo,
		cfg:         cfg,
		logger:      newOptions(logger, nil).logger,
	}
}

func (s *AccountServiceImpl) CreateAccount(ctx context.Context, requesterID int64, req *models.CreateAccountRequest) (*models.Account, error) {
	requester, err := authorize(ctx, s.accountRepo, requesterID, policy.CreateAccount)
	if err != nil {
		s.logger.Warn("create account denied",
			"requester_id", requesterID,
			"error", err.Error(),
		)
		return nil, err
	}

	account, err := s.createAccount(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account created successfully",
		"account_id", account.ID,
		"username", account.Username,
		"role", account.Role,
		"created_by", requester.ID,
	)
	return account, nil
}

func (s *AccountServiceImpl) createAccount(ctx context.Context, req *models.CreateAccountRequest) (*models.Account, error) {
	if err := s.validateCreateRequest(req); err != nil {
		s.logger.Warn("invalid create account request",
			"username", req.Username,
			"error", err.Error(),
		)
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.PasswordCost)
	if err != nil {
		return nil, errors.NewValidationError("password", err.Error())
	}

	account := &models.Account{
		Username:       strings.TrimSpace(req.Username),
		PasswordHash:   string(hash),
		Role:           req.Role,
		Nickname:       req.Nickname,
		BalanceCurrent: s.cfg.InitialGrant,
		BalanceNext:    s.cfg.InitialGrant,
	}

	if err := s.accountRepo.CreateAccount(ctx, account); err != nil {
		if errors.IsDuplicateUsername(err) {
			s.logger.Warn("username already exists",
				"username", account.Username,
			)
			return nil, err
		}

		s.logger.Error("failed to create account",
			"username", account.Username,
			"error", err.Error(),
		)
		return nil, err
	}

	s.recordAudit(ctx, account.ID, models.AuditActionCreate, nil, account)
	return account, nil
}

func (s *AccountServiceImpl) GetAccount(ctx context.Context, requesterID, id int64) (*models.Account, error) {
	if id <= 0 {
		return nil, errors.ErrInvalidAccountID
	}

	op := policy.ViewAllAndAdminister
	if id == requesterID {
		op = policy.ViewOwnHistory
	}
	if _, err := authorize(ctx, s.accountRepo, requesterID, op); err != nil {
		return nil, err
	}

	account, err := s.accountRepo.GetAccountByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			s.logger.Warn("account not found",
				"account_id", id,
			)
			return nil, err
		}
		s.logger.Error("failed to get account",
			"account_id", id,
			"error", err.Error(),
		)
		return nil, err
	}
	return account, nil
}

func (s *AccountServiceImpl) ListAccounts(ctx context.Context, requesterID int64) ([]*models.Account, error) {
	if _, err := authorize(ctx, s.accountRepo, requesterID, policy.ViewAllAndAdminister); err != nil {
		return nil, err
	}

	accounts, err := s.accountRepo.ListAccounts(ctx)
	if err != nil {
		s.logger.Error("failed to list accounts", "error", err.Error())
		return nil, err
	}
	return accounts, nil
}

// UpdateAccount parses the raw edit fields and applies them all or not at all.
func (s *AccountServiceImpl) UpdateAccount(ctx context.Context, requesterID, id int64, fields map[string]string) (*models.Account, error) {
	requester, err := authorize(ctx, s.accountRepo, requesterID, policy.EditAccount)
	if err != nil {
		s.logger.Warn("edit account denied",
			"requester_id", requesterID,
			"account_id", id,
			"error", err.Error(),
		)
		return nil, err
	}

	update, err := models.ParseAccountUpdate(fields)
	if err != nil {
		s.logger.Warn("invalid account edit",
			"account_id", id,
			"error", err.Error(),
		)
		return nil, err
	}

	before, err := s.accountRepo.GetAccountByID(ctx, id)
	if err != nil {
		return nil, err
	}

	account, err := s.accountRepo.UpdateAccount(ctx, id, update)
	if err != nil {
		if !errors.IsNotFound(err) {
			s.logger.Error("failed to update account",
				"account_id", id,
				"error", err.Error(),
			)
		}
		return nil, err
	}

	s.recordAudit(ctx, id, models.AuditActionUpdate, before, account)
	s.logger.Info("account updated",
		"account_id", id,
		"updated_by", requester.ID,
	)
	return account, nil
}

// DeleteAccount hard-deletes the account; its transfers stay in the ledger.
func (s *AccountServiceImpl) DeleteAccount(ctx context.Context, requesterID, id int64) error {
	requester, err := authorize(ctx, s.accountRepo, requesterID, policy.DeleteAccount)
	if err != nil {
		s.logger.Warn("delete account denied",
			"requester_id", requesterID,
			"account_id", id,
			"error", err.Error(),
		)
		return err
	}

	before, err := s.accountRepo.GetAccountByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.accountRepo.DeleteAccount(ctx, id); err != nil {
		if !errors.IsNotFound(err) {
			s.logger.Error("failed to delete account",
				"account_id", id,
				"error", err.Error(),
			)
		}
		return err
	}

	s.recordAudit(ctx, id, models.AuditActionDelete, before, nil)
	s.logger.Info("account deleted",
		"account_id", id,
		"deleted_by", requester.ID,
	)
	return nil
}

// Authenticate checks a username and password against the stored bcrypt hash.
func (s *AccountServiceImpl) Authenticate(ctx context.Context, username, password string) (*models.Account, error) {
	account, err := s.accountRepo.GetAccountByUsername(ctx, username)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("failed login attempt", "username", username)
		return nil, errors.ErrInvalidCredentials
	}
	return account, nil
}

// Seed creates every seed account whose username is not taken yet. Running it
// again is a no-op.
func (s *AccountServiceImpl) Seed(ctx context.Context, seeds []SeedAccount) error {
	for _, seed := range seeds {
		if _, err := s.accountRepo.GetAccountByUsername(ctx, seed.Username); err == nil {
			continue
		} else if !errors.IsNotFound(err) {
			return err
		}

		account, err := s.createAccount(ctx, &models.CreateAccountRequest{
			Username: seed.Username,
			Password: seed.Password,
			Role:     seed.Role,
			Nickname: seed.Nickname,
		})
		if err != nil {
			if errors.IsDuplicateUsername(err) {
				continue
			}
			return err
		}
		s.logger.Info("seeded account",
			"account_id", account.ID,
			"username", account.Username,
			"role", account.Role,
		)
	}
	return nil
}

// Authorize checks that the requester may perform op at all, before any
// request payload is looked at.
func (s *AccountServiceImpl) Authorize(ctx context.Context, requesterID int64, op policy.Operation) error {
	if _, err := authorize(ctx, s.accountRepo, requesterID, op); err != nil {
		s.logger.Warn("request denied",
			"requester_id", requesterID,
			"operation", op.String(),
			"error", err.Error(),
		)
		return err
	}
	return nil
}

func (s *AccountServiceImpl) validateCreateRequest(req *models.CreateAccountRequest) error {
	if strings.TrimSpace(req.Username) == "" {
		return errors.NewValidationError("username", "must be non-empty")
	}
	if req.Password == "" {
		return errors.NewValidationError("password", "must be non-empty")
	}
	if !req.Role.Valid() {
		return errors.NewValidationError("role", "must be one of admin, moderator, user")
	}
	return nil
}

// recordAudit writes a best-effort audit entry; a failure is logged and the
// already committed change stands.
func (s *AccountServiceImpl) recordAudit(ctx context.Context, id int64, action string, before, after *models.Account) {
	auditLog := &models.AuditLog{
		EntityType: models.EntityTypeAccount,
		EntityID:   strconv.FormatInt(id, 10),
		Action:     action,
	}

	if before != nil {
		oldValue, err := json.Marshal(before)
		if err == nil {
			auditLog.OldValue = oldValue
		}
	}
	if after != nil {
		newValue, err := json.Marshal(after)
		if err == nil {
			auditLog.NewValue = newValue
		}
	}

	if err := s.auditRepo.Create(ctx, auditLog); err != nil {
		s.logger.Error("failed to create audit log for account",
			"account_id", id,
			"action", action,
			"error", err.Error(),
		)
	}
}
