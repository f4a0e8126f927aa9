package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/riteshkumar/billy-ledger/internal/models"
	"github.com/riteshkumar/billy-ledger/internal/service"
	u "github.com/riteshkumar/billy-ledger/internal/utils"
)

type TransferHandler struct {
	transferService service.TransferService
	logger          *slog.Logger
}

func NewTransferHandler(transferService service.TransferService, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
		logger:          logger,
	}
}

// RegisterRoutes expects a router guarded by RequireAccount.
func (h *TransferHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/transfers", h.CreateTransfer).Methods(http.MethodPost)
	router.HandleFunc("/transfers", h.ListTransfers).Methods(http.MethodGet)
	router.HandleFunc("/accounts/{id}/transfers", h.ListAccountTransfers).Methods(http.MethodGet)
}

func (h *TransferHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTransferRequest
	if err := u.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("invalid create transfer request", "error", err.Error())
		writeServiceError(w, h.logger, err, "create transfer")
		return
	}

	transfer, err := h.transferService.Transfer(r.Context(), requesterID(r), &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "create transfer")
		return
	}
	u.WriteJSON(w, http.StatusCreated, transfer)
}

func (h *TransferHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.transferService.ListTransfers(r.Context(), requesterID(r))
	if err != nil {
		writeServiceError(w, h.logger, err, "list transfers")
		return
	}
	u.WriteJSON(w, http.StatusOK, transfers)
}

func (h *TransferHandler) ListAccountTransfers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, h.logger, err, "list account transfers")
		return
	}

	transfers, err := h.transferService.ListTransfersForAccount(r.Context(), requesterID(r), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "list account transfers")
		return
	}
	u.WriteJSON(w, http.StatusOK, transfers)
}
