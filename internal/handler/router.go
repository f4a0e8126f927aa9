package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/riteshkumar/billy-ledger/internal/service"
)

// Tokens both issues and resolves bearer tokens.
type Tokens interface {
	TokenIssuer
	TokenResolver
}

// NewRouter wires the public routes and the token-guarded API routes.
func NewRouter(accountService service.AccountService, transferService service.TransferService, tokens Tokens, logger *slog.Logger) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	NewAuthHandler(accountService, tokens, logger).RegisterRoutes(router)

	api := router.NewRoute().Subrouter()
	api.Use(RequireAccount(tokens, logger))
	NewAccountHandler(accountService, logger).RegisterRoutes(api)
	NewTransferHandler(transferService, logger).RegisterRoutes(api)

	router.Use(LoggingMiddleware(logger))
	return router
}
