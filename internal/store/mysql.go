package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"referral-bot/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type MySQLStore struct {
	db     *sql.DB
	logger zerolog.Logger
	locks  KeyedMutex
}

func NewMySQLStore(db *sql.DB, logger zerolog.Logger) *MySQLStore {
	return &MySQLStore{
		db:     db,
		logger: logger,
	}
}

func (s *MySQLStore) GetOrCreate(ctx context.Context, id int64, displayName string) (models.Account, bool, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT IGNORE INTO accounts (id, display_name, balance, referral_count) VALUES (?, ?, 0, 0)",
		id, DefaultDisplayName(id, displayName),
	)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", id).Msg("Error initializing account")
		return models.Account{}, false, fmt.Errorf("failed to initialize account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Account{}, false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	acc, err := s.Get(ctx, id)
	if err != nil {
		return models.Account{}, false, err
	}
	if n == 1 {
		s.logger.Info().Int64("user_id", id).Msg("Account created")
	}
	return acc, n == 1, nil
}

func (s *MySQLStore) Get(ctx context.Context, id int64) (models.Account, error) {
	var acc models.Account
	err := s.db.QueryRowContext(ctx,
		"SELECT id, display_name, balance, referral_count, created_at FROM accounts WHERE id = ?",
		id,
	).Scan(&acc.ID, &acc.DisplayName, &acc.Balance, &acc.ReferralCount, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrAccountNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", id).Msg("Error fetching account")
		return models.Account{}, fmt.Errorf("database error: %w", err)
	}
	return acc, nil
}

func (s *MySQLStore) Credit(ctx context.Context, id int64, amount decimal.Decimal, reason models.EntryReason) (models.Account, error) {
	if !amount.IsPositive() {
		return models.Account{}, ErrInvalidAmount
	}
	return s.updateBalance(ctx, id, amount, reason)
}

func (s *MySQLStore) Debit(ctx context.Context, id int64, amount decimal.Decimal, reason models.EntryReason) (models.Account, error) {
	if !amount.IsPositive() {
		return models.Account{}, ErrInvalidAmount
	}
	return s.updateBalance(ctx, id, amount.Neg(), reason)
}

func (s *MySQLStore) updateBalance(ctx context.Context, id int64, change decimal.Decimal, reason models.EntryReason) (models.Account, error) {
	mu := s.locks.For(id)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error starting balance update transaction")
		return models.Account{}, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var current decimal.Decimal
	err = tx.QueryRowContext(ctx, "SELECT balance FROM accounts WHERE id = ? FOR UPDATE", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to fetch balance: %w", err)
	}

	newBalance := current.Add(change)
	if newBalance.IsNegative() {
		return models.Account{}, ErrInsufficientBalance
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE accounts SET balance = ?, updated_at = NOW() WHERE id = ?",
		newBalance, id,
	); err != nil {
		return models.Account{}, fmt.Errorf("failed to update balance: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO ledger_entries (id, account_id, change_amount, balance_after, reason) VALUES (?, ?, ?, ?, ?)",
		uuid.NewString(), id, change, newBalance, string(reason),
	); err != nil {
		return models.Account{}, fmt.Errorf("failed to record ledger entry: %w", err)
	}

	if err = tx.Commit(); err != nil {
		s.logger.Error().Err(err).Msg("Error committing balance update")
		return models.Account{}, fmt.Errorf("failed to commit balance update: %w", err)
	}

	s.logger.Info().
		Int64("user_id", id).
		Str("amount_change", change.String()).
		Str("reason", string(reason)).
		Msg("Balance updated successfully")

	return s.Get(ctx, id)
}

func (s *MySQLStore) IncrementReferrals(ctx context.Context, id int64) (models.Account, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE accounts SET referral_count = referral_count + 1 WHERE id = ?", id)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", id).Msg("Error incrementing referrals")
		return models.Account{}, fmt.Errorf("failed to increment referrals: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Account{}, ErrAccountNotFound
	}
	return s.Get(ctx, id)
}

func (s *MySQLStore) HasClaimedBonusToday(ctx context.Context, id int64, today time.Time) (bool, error) {
	var claimedOn time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT claimed_on FROM daily_bonus_claims WHERE account_id = ?", id,
	).Scan(&claimedOn)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return sameDay(claimedOn, today), nil
}

func (s *MySQLStore) RecordBonusClaim(ctx context.Context, id int64, today time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_bonus_claims (account_id, claimed_on) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE claimed_on = VALUES(claimed_on)`,
		id, today.Format(time.DateOnly),
	)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", id).Msg("Error recording bonus claim")
		return fmt.Errorf("failed to record bonus claim: %w", err)
	}
	return nil
}

func (s *MySQLStore) History(ctx context.Context, id int64, limit, offset int) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, change_amount, balance_after, reason, created_at
		FROM ledger_entries
		WHERE account_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, id, limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", id).Msg("Error fetching ledger history")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var history []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var reason string
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Change, &e.BalanceAfter, &reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning ledger entry: %w", err)
		}
		e.Reason = models.EntryReason(reason)
		history = append(history, e)
	}
	return history, rows.Err()
}
