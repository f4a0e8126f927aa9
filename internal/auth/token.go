// Package auth resolves bearer tokens to account ids. It stands in for the
// session layer: it vouches for who is calling, never for what they may do.
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/riteshkumar/billy-ledger/internal/errors"
)

const issuer = "billy-ledger"

type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) < 16 {
		return nil, stderrors.New("token secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		return nil, stderrors.New("token ttl must be positive")
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs an HS256 token whose subject is the account id.
func (i *TokenIssuer) Issue(accountID int64) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)

	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   strconv.FormatInt(accountID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Resolve verifies the token and returns the account id it was issued for.
// Any malformed, expired or foreign token yields ErrUnauthenticated.
func (i *TokenIssuer) Resolve(token string) (int64, error) {
	claims := &jwt.RegisteredClaims{}

	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	if !claims.VerifyIssuer(issuer, true) {
		return 0, fmt.Errorf("%w: unexpected issuer %q", errors.ErrUnauthenticated, claims.Issuer)
	}

	accountID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || accountID <= 0 {
		return 0, fmt.Errorf("%w: bad subject %q", errors.ErrUnauthenticated, claims.Subject)
	}
	return accountID, nil
}

type contextKey struct{}

// WithAccountID returns a context carrying the resolved account id.
func WithAccountID(ctx context.Context, accountID int64) context.Context {
	return context.WithValue(ctx, contextKey{}, accountID)
}

// AccountIDFromContext returns the resolved account id, if any.
func AccountIDFromContext(ctx context.Context) (int64, bool) {
	accountID, ok := ctx.Value(contextKey{}).(int64)
	return accountID, ok && accountID > 0
}
