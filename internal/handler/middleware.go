package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/riteshkumar/billy-ledger/internal/auth"
	u "github.com/riteshkumar/billy-ledger/internal/utils"
)

const RequestIDHeader = "X-Request-ID"

// TokenResolver maps a bearer token to the account id it was issued for.
type TokenResolver interface {
	Resolve(token string) (int64, error)
}

// RequireAccount resolves the bearer token into an account id on the request
// context. Requests without a valid token are answered with 401.
func RequireAccount(resolver TokenResolver, logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				u.WriteError(w, http.StatusUnauthorized, kindUnauthenticated, "missing bearer token")
				return
			}

			accountID, err := resolver.Resolve(token)
			if err != nil {
				logger.Warn("rejected bearer token",
					"path", r.URL.Path,
					"error", err.Error(),
				)
				u.WriteError(w, http.StatusUnauthorized, kindUnauthenticated, "")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithAccountID(r.Context(), accountID)))
		})
	}
}

// LoggingMiddleware logs incoming HTTP requests and tags each with a request id.
func LoggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, requestID)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			logger.Info("incoming request",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// requesterID is the account id resolved by RequireAccount, or 0.
func requesterID(r *http.Request) int64 {
	id, _ := auth.AccountIDFromContext(r.Context())
	return id
}
