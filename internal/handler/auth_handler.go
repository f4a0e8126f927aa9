package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/riteshkumar/billy-ledger/internal/models"
	"github.com/riteshkumar/billy-ledger/internal/service"
	u "github.com/riteshkumar/billy-ledger/internal/utils"
)

type TokenIssuer interface {
	Issue(accountID int64) (string, time.Time, error)
}

type AuthHandler struct {
	accountService service.AccountService
	issuer         TokenIssuer
	logger         *slog.Logger
}

func NewAuthHandler(accountService service.AccountService, issuer TokenIssuer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accountService: accountService,
		issuer:         issuer,
		logger:         logger,
	}
}

func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/login", h.Login).Methods(http.MethodPost)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := u.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("invalid login request", "error", err.Error())
		writeServiceError(w, h.logger, err, "login")
		return
	}

	account, err := h.accountService.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err, "login")
		return
	}

	token, expiresAt, err := h.issuer.Issue(account.ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "issue token")
		return
	}

	u.WriteJSON(w, http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Account:   *account,
	})
}
