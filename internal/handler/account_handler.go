package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/riteshkumar/billy-ledger/internal/errors"
	"github.com/riteshkumar/billy-ledger/internal/models"
	"github.com/riteshkumar/billy-ledger/internal/policy"
	"github.com/riteshkumar/billy-ledger/internal/service"
	u "github.com/riteshkumar/billy-ledger/internal/utils"
)

type AccountHandler struct {
	accountService service.AccountService
	logger         *slog.Logger
}

func NewAccountHandler(accountService service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// RegisterRoutes expects a router guarded by RequireAccount.
func (h *AccountHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/me", h.GetMe).Methods(http.MethodGet)
	router.HandleFunc("/accounts", h.ListAccounts).Methods(http.MethodGet)
	router.HandleFunc("/accounts", h.CreateAccount).Methods(http.MethodPost)
	router.HandleFunc("/accounts/{id}", h.GetAccount).Methods(http.MethodGet)
	router.HandleFunc("/accounts/{id}", h.UpdateAccount).Methods(http.MethodPatch)
	router.HandleFunc("/accounts/{id}", h.DeleteAccount).Methods(http.MethodDelete)
}

func (h *AccountHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	id := requesterID(r)
	account, err := h.accountService.GetAccount(r.Context(), id, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "get own account")
		return
	}
	u.WriteJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accountService.ListAccounts(r.Context(), requesterID(r))
	if err != nil {
		writeServiceError(w, h.logger, err, "list accounts")
		return
	}
	u.WriteJSON(w, http.StatusOK, accounts)
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accountService.Authorize(r.Context(), requesterID(r), policy.CreateAccount); err != nil {
		writeServiceError(w, h.logger, err, "create account")
		return
	}

	var req models.CreateAccountRequest
	if err := u.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("invalid create account request", "error", err.Error())
		writeServiceError(w, h.logger, err, "create account")
		return
	}

	account, err := h.accountService.CreateAccount(r.Context(), requesterID(r), &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "create account")
		return
	}
	u.WriteJSON(w, http.StatusCreated, account)
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, h.logger, err, "get account")
		return
	}

	account, err := h.accountService.GetAccount(r.Context(), requesterID(r), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "get account")
		return
	}
	u.WriteJSON(w, http.StatusOK, account)
}

// UpdateAccount takes a flat JSON object of editable fields. Values may be
// strings, numbers or booleans; numbers keep their literal text and are
// parsed as a whole by the service.
func (h *AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accountService.Authorize(r.Context(), requesterID(r), policy.EditAccount); err != nil {
		writeServiceError(w, h.logger, err, "update account")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, h.logger, err, "update account")
		return
	}

	fields, err := decodeFields(r.Body)
	if err != nil {
		writeServiceError(w, h.logger, err, "update account")
		return
	}

	account, err := h.accountService.UpdateAccount(r.Context(), requesterID(r), id, fields)
	if err != nil {
		writeServiceError(w, h.logger, err, "update account")
		return
	}
	u.WriteJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accountService.Authorize(r.Context(), requesterID(r), policy.DeleteAccount); err != nil {
		writeServiceError(w, h.logger, err, "delete account")
		return
	}

	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, h.logger, err, "delete account")
		return
	}

	if err := h.accountService.DeleteAccount(r.Context(), requesterID(r), id); err != nil {
		writeServiceError(w, h.logger, err, "delete account")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeFields(body io.Reader) (map[string]string, error) {
	dec := json.NewDecoder(io.LimitReader(body, 1<<20))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.NewValidationError("body", err.Error())
	}

	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			fields[key] = v
		case json.Number:
			fields[key] = v.String()
		case bool:
			fields[key] = strconv.FormatBool(v)
		default:
			return nil, errors.NewValidationError(key, "must be a string, number or boolean")
		}
	}
	return fields, nil
}
