package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// InitDB opens a MySQL pool. parseTime is forced on so DATETIME and DATE
// columns scan into time.Time.
func InitDB(dbURL string, logger zerolog.Logger) *sql.DB {
	cfg, err := mysql.ParseDSN(dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid MySQL DSN")
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		logger.Fatal().Err(err).Msg("Could not connect to database")
	}

	if err = db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Database is not responding")
	}

	logger.Info().Msg("Connected to MySQL")
	return db
}

func RunMigrations(db *sql.DB, logger zerolog.Logger) {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id BIGINT PRIMARY KEY,
			display_name VARCHAR(255) NOT NULL,
			balance DECIMAL(24,8) NOT NULL DEFAULT 0,
			referral_count INT NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			CHECK (balance >= 0),
			CHECK (referral_count >= 0)
		);`,
		`CREATE TABLE IF NOT EXISTS daily_bonus_claims (
			account_id BIGINT PRIMARY KEY,
			claimed_on DATE NOT NULL,
			FOREIGN KEY (account_id) REFERENCES accounts(id)
		);`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id CHAR(36) PRIMARY KEY,
			account_id BIGINT NOT NULL,
			change_amount DECIMAL(24,8) NOT NULL,
			balance_after DECIMAL(24,8) NOT NULL,
			reason VARCHAR(32) NOT NULL,
			created_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6),
			INDEX idx_account_created (account_id, created_at),
			FOREIGN KEY (account_id) REFERENCES accounts(id)
		);`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			logger.Fatal().Err(err).Msg("Migration failed")
		}
	}
	logger.Info().Msg("Migrations completed")
}

func InitPostgres(ctx context.Context, dbURL string, logger zerolog.Logger) *pgxpool.Pool {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Could not connect to database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Database is not responding")
	}

	logger.Info().Msg("Connected to Postgres")
	return pool
}

func RunPostgresMigrations(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id BIGINT PRIMARY KEY,
			display_name TEXT NOT NULL,
			balance NUMERIC(24,8) NOT NULL DEFAULT 0 CHECK (balance >= 0),
			referral_count INT NOT NULL DEFAULT 0 CHECK (referral_count >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS daily_bonus_claims (
			account_id BIGINT PRIMARY KEY REFERENCES accounts(id),
			claimed_on DATE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id UUID PRIMARY KEY,
			account_id BIGINT NOT NULL REFERENCES accounts(id),
			change_amount NUMERIC(24,8) NOT NULL,
			balance_after NUMERIC(24,8) NOT NULL,
			reason TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_account_created ON ledger_entries (account_id, created_at DESC)`,
	}

	for _, q := range queries {
		if _, err := pool.Exec(ctx, q); err != nil {
			logger.Fatal().Err(err).Msg("Migration failed")
		}
	}
	logger.Info().Msg("Migrations completed")
}
