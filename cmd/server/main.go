package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/riteshkumar/billy-ledger/internal/auth"
	"github.com/riteshkumar/billy-ledger/internal/handler"
	"github.com/riteshkumar/billy-ledger/internal/repository"
	"github.com/riteshkumar/billy-ledger/internal/service"
)

type Config struct {
	StoreDriver       string
	DBHost            string
	DBPort            string
	DBUser            string
	DBPassword        string
	DBName            string
	DBSSLMode         string
	ServerPort        string
	JWTSecret         string
	TokenTTL          time.Duration
	TransferCeiling   int64
	InitialGrant      int64
	AllowSelfTransfer bool
	SeedAccounts      string
}

// backend bundles the store implementations chosen by STORE_DRIVER.
type backend struct {
	store     repository.Store
	accounts  repository.AccountRepository
	transfers repository.TransferRepository
	audit     repository.AuditRepository
	close     func() error
}

func main() {
	// Initialise logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	config, err := loadConfig()
	if err != nil {
		logger.Error("invalid configuration", "error", err.Error())
		os.Exit(1)
	}

	b, err := openBackend(config, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", config.StoreDriver, "error", err.Error())
		os.Exit(1)
	}
	defer b.close()

	ledgerConfig := service.DefaultLedgerConfig()
	ledgerConfig.TransferCeiling = config.TransferCeiling
	ledgerConfig.InitialGrant = config.InitialGrant
	ledgerConfig.AllowSelfTransfer = config.AllowSelfTransfer

	// Initialise services
	accountService := service.NewAccountService(b.accounts, b.audit, ledgerConfig, logger)
	transferService := service.NewTransferService(b.store, b.accounts, b.transfers, ledgerConfig, logger)

	if err := seed(context.Background(), accountService, config.SeedAccounts, logger); err != nil {
		logger.Error("failed to seed accounts", "error", err.Error())
		os.Exit(1)
	}

	secret := config.JWTSecret
	if secret == "" {
		secret = randomSecret()
		logger.Warn("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}
	tokens, err := auth.NewTokenIssuer(secret, config.TokenTTL)
	if err != nil {
		logger.Error("failed to create token issuer", "error", err.Error())
		os.Exit(1)
	}

	router := handler.NewRouter(accountService, transferService, tokens, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + config.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a go routine
	go func() {
		logger.Info("starting server on port "+config.ServerPort, "store", config.StoreDriver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "error", err.Error())
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err.Error())
	}

	logger.Info("server exited gracefully")
}

// loads config from environment variables
func loadConfig() (Config, error) {
	cfg := Config{
		StoreDriver:  getEnv("STORE_DRIVER", "memory"),
		DBHost:       getEnv("DB_HOST", "localhost"),
		DBPort:       getEnv("DB_PORT", "5432"),
		DBUser:       getEnv("DB_USER", "postgres"),
		DBPassword:   getEnv("DB_PASSWORD", "password"),
		DBName:       getEnv("DB_NAME", "ledger"),
		DBSSLMode:    getEnv("DB_SSLMODE", "disable"),
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		JWTSecret:    getEnv("JWT_SECRET", ""),
		SeedAccounts: getEnv("SEED_ACCOUNTS", ""),
	}

	var err error
	if cfg.TokenTTL, err = time.ParseDuration(getEnv("TOKEN_TTL", "12h")); err != nil {
		return cfg, fmt.Errorf("TOKEN_TTL: %w", err)
	}
	if cfg.TransferCeiling, err = strconv.ParseInt(getEnv("TRANSFER_CEILING", strconv.FormatInt(service.DefaultTransferCeiling, 10)), 10, 64); err != nil {
		return cfg, fmt.Errorf("TRANSFER_CEILING: %w", err)
	}
	if cfg.InitialGrant, err = strconv.ParseInt(getEnv("INITIAL_GRANT", strconv.FormatInt(service.DefaultInitialGrant, 10)), 10, 64); err != nil {
		return cfg, fmt.Errorf("INITIAL_GRANT: %w", err)
	}
	if cfg.AllowSelfTransfer, err = strconv.ParseBool(getEnv("ALLOW_SELF_TRANSFER", "false")); err != nil {
		return cfg, fmt.Errorf("ALLOW_SELF_TRANSFER: %w", err)
	}
	if cfg.TransferCeiling <= 0 || cfg.InitialGrant < 0 {
		return cfg, fmt.Errorf("TRANSFER_CEILING must be positive and INITIAL_GRANT non-negative")
	}
	return cfg, nil
}

// getEnv fetches environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func openBackend(cfg Config, logger *slog.Logger) (*backend, error) {
	switch cfg.StoreDriver {
	case "memory":
		store := repository.NewMemoryStore()
		return &backend{
			store:     store,
			accounts:  store,
			transfers: store,
			audit:     store,
			close:     func() error { return nil },
		}, nil
	case "postgres":
		db, err := connectDB(cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to database successfully")

		if err := repository.Migrate(db); err != nil {
			db.Close()
			return nil, err
		}
		return &backend{
			store:     repository.NewPostgresStore(db),
			accounts:  repository.NewAccountRepository(db),
			transfers: repository.NewTransferRepository(db),
			audit:     repository.NewAuditRepository(db),
			close:     db.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}

// connectDB establishes a connection to the Postgres database
func connectDB(cfg Config) (*sql.DB, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Confirm connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(10 * time.Minute)

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func seed(ctx context.Context, accountService service.AccountService, raw string, logger *slog.Logger) error {
	seeds, err := service.ParseSeedAccounts(raw)
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		logger.Warn("SEED_ACCOUNTS is empty; no administrator will exist on a fresh store")
		return nil
	}
	return accountService.Seed(ctx, seeds)
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}
