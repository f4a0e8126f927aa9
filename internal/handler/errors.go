package handler

import (
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/riteshkumar/billy-ledger/internal/errors"
	u "github.com/riteshkumar/billy-ledger/internal/utils"
)

// Error kinds returned to clients. Translating them into display text is the
// client's job.
const (
	kindUnauthenticated   = "unauthenticated"
	kindForbidden         = "forbidden"
	kindNotFound          = "not_found"
	kindRecipientNotFound = "recipient_not_found"
	kindDuplicateUsername = "duplicate_username"
	kindInvalidInput      = "invalid_input"
	kindInvalidAmount     = "invalid_amount"
	kindInvalidRecipient  = "invalid_recipient"
	kindInsufficientFunds = "insufficient_funds"
	kindTransferFailed    = "transfer_failed"
	kindInternal          = "internal_error"
)

// writeServiceError maps a core error kind onto an HTTP status.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error, action string) {
	switch {
	case errors.IsUnauthenticated(err):
		u.WriteError(w, http.StatusUnauthorized, kindUnauthenticated, "")
	case errors.IsForbidden(err):
		u.WriteError(w, http.StatusForbidden, kindForbidden, "")
	case stderrors.Is(err, errors.ErrRecipientNotFound):
		u.WriteError(w, http.StatusNotFound, kindRecipientNotFound, "")
	case errors.IsNotFound(err):
		u.WriteError(w, http.StatusNotFound, kindNotFound, "")
	case errors.IsDuplicateUsername(err):
		u.WriteError(w, http.StatusConflict, kindDuplicateUsername, "")
	case errors.IsValidationError(err):
		u.WriteError(w, http.StatusBadRequest, kindInvalidInput, err.Error())
	case stderrors.Is(err, errors.ErrInvalidAccountID):
		u.WriteError(w, http.StatusBadRequest, kindInvalidInput, err.Error())
	case stderrors.Is(err, errors.ErrInvalidAmount):
		u.WriteError(w, http.StatusBadRequest, kindInvalidAmount, err.Error())
	case stderrors.Is(err, errors.ErrInvalidRecipient):
		u.WriteError(w, http.StatusBadRequest, kindInvalidRecipient, "")
	case errors.IsInsufficientFunds(err):
		u.WriteError(w, http.StatusUnprocessableEntity, kindInsufficientFunds, "")
	case errors.IsTransferFailed(err):
		logger.Error("transfer failed during "+action, "error", err.Error())
		u.WriteError(w, http.StatusServiceUnavailable, kindTransferFailed, "")
	default:
		logger.Error("internal server error during "+action, "error", err.Error())
		u.WriteError(w, http.StatusInternalServerError, kindInternal, "")
	}
}

// pathID reads a positive integer route variable.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.ErrInvalidAccountID
	}
	return id, nil
}
