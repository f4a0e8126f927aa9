package service

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultInitialGrant    int64 = 100000
	DefaultTransferCeiling int64 = 500000
)

// LedgerConfig holds the policy knobs of the ledger core.
type LedgerConfig struct {
	// InitialGrant seeds both balances of every new account.
	InitialGrant int64
	// TransferCeiling is the largest amount a single transfer may move, inclusive.
	TransferCeiling int64
	// AllowSelfTransfer lets an account name itself as recipient.
	AllowSelfTransfer bool
	// PasswordCost is the bcrypt cost used when hashing credentials.
	PasswordCost int
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		InitialGrant:    DefaultInitialGrant,
		TransferCeiling: DefaultTransferCeiling,
		PasswordCost:    bcrypt.DefaultCost,
	}
}

// Option customises a service at construction.
type Option func(*options)

type options struct {
	now    func() time.Time
	tracer trace.Tracer
	logger *slog.Logger
}

func newOptions(logger *slog.Logger, opts []Option) options {
	o := options{
		now:    time.Now,
		tracer: otel.Tracer("github.com/riteshkumar/billy-ledger/internal/service"),
		logger: logger,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// WithClock replaces time.Now as the source of transfer timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}
