package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"referral-bot/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PostgresStore keeps NUMERIC columns and moves them through text so no
// precision is lost on the way to decimal.Decimal.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

func (s *PostgresStore) GetOrCreate(ctx context.Context, id int64, displayName string) (models.Account, bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, display_name, balance, referral_count)
		VALUES ($1, $2, 0, 0)
		ON CONFLICT (id) DO NOTHING
	`, id, DefaultDisplayName(id, displayName))
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", id).Msg("Error initializing account")
		return models.Account{}, false, fmt.Errorf("failed to initialize account: %w", err)
	}

	acc, err := s.Get(ctx, id)
	if err != nil {
		return models.Account{}, false, err
	}
	return acc, tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (models.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `
		SELECT id, display_name, balance::text, referral_count, created_at
		FROM accounts WHERE id = $1
	`, id))
}

func (s *PostgresStore) Credit(ctx context.Context, id int64, amount decimal.Decimal, reason models.EntryReason) (models.Account, error) {
	if !amount.IsPositive() {
		return models.Account{}, ErrInvalidAmount
	}
	return s.updateBalance(ctx, id, amount, reason)
}

func (s *PostgresStore) Debit(ctx context.Context, id int64, amount decimal.Decimal, reason models.EntryReason) (models.Account, error) {
	if !amount.IsPositive() {
		return models.Account{}, ErrInvalidAmount
	}
	return s.updateBalance(ctx, id, amount.Neg(), reason)
}

func (s *PostgresStore) updateBalance(ctx context.Context, id int64, change decimal.Decimal, reason models.EntryReason) (models.Account, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var raw string
	err = tx.QueryRow(ctx, "SELECT balance::text FROM accounts WHERE id = $1 FOR UPDATE", id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to fetch balance: %w", err)
	}
	current, err := decimal.NewFromString(raw)
	if err != nil {
		return models.Account{}, fmt.Errorf("corrupt balance %q: %w", raw, err)
	}

	newBalance := current.Add(change)
	if newBalance.IsNegative() {
		return models.Account{}, ErrInsufficientBalance
	}

	if _, err = tx.Exec(ctx,
		"UPDATE accounts SET balance = $1::numeric, updated_at = now() WHERE id = $2",
		newBalance.String(), id,
	); err != nil {
		return models.Account{}, fmt.Errorf("failed to update balance: %w", err)
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, account_id, change_amount, balance_after, reason)
		VALUES ($1::uuid, $2, $3::numeric, $4::numeric, $5)
	`, uuid.NewString(), id, change.String(), newBalance.String(), string(reason)); err != nil {
		return models.Account{}, fmt.Errorf("failed to record ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Account{}, fmt.Errorf("failed to commit balance update: %w", err)
	}

	s.logger.Info().
		Int64("user_id", id).
		Str("amount_change", change.String()).
		Str("reason", string(reason)).
		Msg("Balance updated successfully")

	return s.Get(ctx, id)
}

func (s *PostgresStore) IncrementReferrals(ctx context.Context, id int64) (models.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx, `
		UPDATE accounts SET referral_count = referral_count + 1, updated_at = now()
		WHERE id = $1
		RETURNING id, display_name, balance::text, referral_count, created_at
	`, id))
}

func (s *PostgresStore) HasClaimedBonusToday(ctx context.Context, id int64, today time.Time) (bool, error) {
	var claimed bool
	err := s.pool.QueryRow(ctx,
		"SELECT claimed_on = $2::date FROM daily_bonus_claims WHERE account_id = $1",
		id, today.Format(time.DateOnly),
	).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return claimed, nil
}

func (s *PostgresStore) RecordBonusClaim(ctx context.Context, id int64, today time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO daily_bonus_claims (account_id, claimed_on) VALUES ($1, $2::date)
		ON CONFLICT (account_id) DO UPDATE SET claimed_on = EXCLUDED.claimed_on
	`, id, today.Format(time.DateOnly))
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", id).Msg("Error recording bonus claim")
		return fmt.Errorf("failed to record bonus claim: %w", err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, id int64, limit, offset int) ([]models.LedgerEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, account_id, change_amount::text, balance_after::text, reason, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var history []models.LedgerEntry
	for rows.Next() {
		var (
			e             models.LedgerEntry
			change, after string
			reason        string
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &change, &after, &reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning ledger entry: %w", err)
		}
		if e.Change, err = decimal.NewFromString(change); err != nil {
			return nil, err
		}
		if e.BalanceAfter, err = decimal.NewFromString(after); err != nil {
			return nil, err
		}
		e.Reason = models.EntryReason(reason)
		history = append(history, e)
	}
	return history, rows.Err()
}

func scanAccount(row pgx.Row) (models.Account, error) {
	var (
		acc models.Account
		raw string
	)
	err := row.Scan(&acc.ID, &acc.DisplayName, &raw, &acc.ReferralCount, &acc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("database error: %w", err)
	}
	if acc.Balance, err = decimal.NewFromString(raw); err != nil {
		return models.Account{}, fmt.Errorf("corrupt balance %q: %w", raw, err)
	}
	return acc, nil
}
