package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"referral-bot/internal/metrics"
	"referral-bot/internal/models"
	"referral-bot/internal/store"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AmountPrecision is the number of fractional digits the ledger columns hold.
const AmountPrecision = 8

// maxInputScale bounds the exponent of a typed amount, trailing zeros included.
const maxInputScale = 18

// Notifier tells a referrer that one of their links was used.
type Notifier interface {
	NotifyReferral(ctx context.Context, referrerID, newUserID int64, reward decimal.Decimal) error
}

type Rules struct {
	ReferralReward    decimal.Decimal
	MinimumWithdrawal decimal.Decimal
	BonusMin          int
	BonusMax          int
}

func DefaultRules() Rules {
	return Rules{
		ReferralReward:    decimal.NewFromInt(15),
		MinimumWithdrawal: decimal.NewFromInt(150),
		BonusMin:          5,
		BonusMax:          20,
	}
}

// Engine runs referral attribution, the daily bonus and the withdrawal flow
// on top of a store.Store. Intents for one account are serialized by a
// per-account lock; intents for different accounts never wait on each other.
type Engine struct {
	store    store.Store
	links    LinkBuilder
	rules    Rules
	logger   zerolog.Logger
	notifier Notifier
	metrics  *metrics.LedgerMetrics
	draw     BonusDrawer
	now      func() time.Time
	loc      *time.Location

	locks    store.KeyedMutex
	sessions sessions
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

func WithMetrics(m *metrics.LedgerMetrics) Option { return func(e *Engine) { e.metrics = m } }

func WithBonusDrawer(d BonusDrawer) Option { return func(e *Engine) { e.draw = d } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithLocation(loc *time.Location) Option { return func(e *Engine) { e.loc = loc } }

func NewEngine(st store.Store, links LinkBuilder, rules Rules, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		links:  links,
		rules:  rules,
		logger: logger,
		draw:   UniformBonus,
		now:    time.Now,
		loc:    time.UTC,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetNotifier wires a transport that is built after the engine. Call it
// before serving intents.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

func (e *Engine) Rules() Rules { return e.rules }

// Today is the current calendar day in the configured timezone.
func (e *Engine) Today() time.Time {
	return Day(e.now(), e.loc)
}

func (e *Engine) ReferralLink(userID int64) string {
	return e.links.Link(userID)
}

func (e *Engine) withAccountLock(id int64, fn func() error) error {
	mu := e.locks.For(id)
	mu.Lock()
	defer mu.Unlock()
	return fn()
}

// Start registers the user on first contact and, only then, credits the
// referrer named by referrerToken. Bad tokens are logged and ignored.
func (e *Engine) Start(ctx context.Context, userID int64, displayName, referrerToken string) (models.WelcomeInfo, error) {
	var (
		acc     models.Account
		created bool
	)
	err := e.withAccountLock(userID, func() error {
		var err error
		acc, created, err = e.store.GetOrCreate(ctx, userID, displayName)
		return err
	})
	if err != nil {
		return models.WelcomeInfo{}, fmt.Errorf("failed to load account: %w", err)
	}

	referrerToken = strings.TrimSpace(referrerToken)
	switch {
	case referrerToken == "":
	case !created:
		e.logger.Debug().Int64("user_id", userID).Str("token", referrerToken).Msg("Referral ignored for returning user")
	default:
		e.attributeReferral(ctx, userID, referrerToken)
	}

	return models.WelcomeInfo{
		ReferralLink:  e.links.Link(userID),
		Balance:       acc.Balance,
		ReferralCount: acc.ReferralCount,
	}, nil
}

func (e *Engine) attributeReferral(ctx context.Context, newUserID int64, token string) {
	referrerID, err := ParseReferrerToken(token)
	if err != nil {
		e.logger.Warn().Str("token", token).Int64("user_id", newUserID).Msg("Invalid referral ID")
		return
	}
	if referrerID == newUserID {
		e.logger.Info().Int64("user_id", newUserID).Msg("Self-referral ignored")
		return
	}

	reward := e.rules.ReferralReward
	err = e.withAccountLock(referrerID, func() error {
		if _, err := e.store.Get(ctx, referrerID); err != nil {
			return err
		}
		if _, err := e.store.Credit(ctx, referrerID, reward, models.ReasonReferral); err != nil {
			return err
		}
		_, err := e.store.IncrementReferrals(ctx, referrerID)
		return err
	})
	if errors.Is(err, store.ErrAccountNotFound) {
		e.logger.Info().Int64("referrer_id", referrerID).Int64("user_id", newUserID).Msg("Referrer has no account, referral ignored")
		return
	}
	if err != nil {
		e.logger.Error().Err(err).Int64("referrer_id", referrerID).Int64("user_id", newUserID).Msg("Failed to credit referrer")
		return
	}

	e.logger.Info().
		Int64("referrer_id", referrerID).
		Int64("user_id", newUserID).
		Str("reward", reward.String()).
		Msg("Referral reward credited")
	e.metrics.ObserveReferral(reward.InexactFloat64())

	if e.notifier == nil {
		return
	}
	if err := e.notifier.NotifyReferral(ctx, referrerID, newUserID, reward); err != nil {
		e.logger.Error().Err(err).Int64("referrer_id", referrerID).Msg("Failed to notify referrer")
		e.metrics.ObserveNotifyFailure()
	}
}

func (e *Engine) CheckBalance(ctx context.Context, userID int64, displayName string) (models.BalanceInfo, error) {
	acc, _, err := e.store.GetOrCreate(ctx, userID, displayName)
	if err != nil {
		return models.BalanceInfo{}, fmt.Errorf("failed to load account: %w", err)
	}
	return models.BalanceInfo{Balance: acc.Balance, ReferralCount: acc.ReferralCount}, nil
}

// ClaimBonus pays a random bonus at most once per calendar day. The claim is
// recorded before the credit, so a failed credit forfeits the day's bonus
// rather than allowing a second payout.
func (e *Engine) ClaimBonus(ctx context.Context, userID int64, displayName string, today time.Time) (models.BonusResult, error) {
	var result models.BonusResult
	err := e.withAccountLock(userID, func() error {
		if _, _, err := e.store.GetOrCreate(ctx, userID, displayName); err != nil {
			return fmt.Errorf("failed to load account: %w", err)
		}

		claimed, err := e.store.HasClaimedBonusToday(ctx, userID, today)
		if err != nil {
			return fmt.Errorf("failed to check bonus claim: %w", err)
		}
		if claimed {
			result = models.BonusResult{Status: models.BonusAlreadyClaimed, Amount: decimal.Zero}
			return nil
		}

		amount := decimal.NewFromInt(int64(e.draw(e.rules.BonusMin, e.rules.BonusMax)))
		if err := e.store.RecordBonusClaim(ctx, userID, today); err != nil {
			return fmt.Errorf("failed to record bonus claim: %w", err)
		}
		if _, err := e.store.Credit(ctx, userID, amount, models.ReasonDailyBonus); err != nil {
			return fmt.Errorf("failed to credit bonus: %w", err)
		}
		result = models.BonusResult{Status: models.BonusClaimed, Amount: amount}
		return nil
	})
	if err != nil {
		e.logger.Error().Err(err).Int64("user_id", userID).Msg("Daily bonus failed")
		return models.BonusResult{}, err
	}

	e.logger.Info().
		Int64("user_id", userID).
		Str("status", string(result.Status)).
		Str("amount", result.Amount.String()).
		Msg("Daily bonus processed")
	e.metrics.ObserveBonus(string(result.Status), result.Amount.InexactFloat64())
	return result, nil
}

// WithdrawStart opens the withdrawal flow when the balance meets the minimum.
func (e *Engine) WithdrawStart(ctx context.Context, userID int64, displayName string) (models.WithdrawStartResult, error) {
	var result models.WithdrawStartResult
	err := e.withAccountLock(userID, func() error {
		acc, _, err := e.store.GetOrCreate(ctx, userID, displayName)
		if err != nil {
			return fmt.Errorf("failed to load account: %w", err)
		}

		if acc.Balance.LessThan(e.rules.MinimumWithdrawal) {
			e.sessions.end(userID)
			result = models.WithdrawStartResult{Status: models.WithdrawBelowMinimum, Balance: acc.Balance}
			return nil
		}

		e.sessions.await(userID)
		result = models.WithdrawStartResult{Status: models.WithdrawPromptForAmount, Balance: acc.Balance}
		return nil
	})
	if err != nil {
		return models.WithdrawStartResult{}, err
	}
	e.metrics.ObserveWithdrawal(string(result.Status), 0)
	return result, nil
}

// WithdrawAmount validates the entered amount and debits it. Every outcome,
// including a rejection, returns the flow to Idle.
func (e *Engine) WithdrawAmount(ctx context.Context, userID int64, rawAmount string) (models.WithdrawResult, error) {
	var result models.WithdrawResult
	err := e.withAccountLock(userID, func() error {
		if e.sessions.end(userID) != StateAwaitingAmount {
			result = models.WithdrawResult{Status: models.WithdrawNoPending}
			return nil
		}

		amount, ok := parseAmount(rawAmount)
		if !ok {
			result = models.WithdrawResult{Status: models.WithdrawInvalidNumber}
			return nil
		}
		if !amount.IsPositive() {
			result = models.WithdrawResult{Status: models.WithdrawMustBePositive}
			return nil
		}

		acc, _, err := e.store.GetOrCreate(ctx, userID, "")
		if err != nil {
			return fmt.Errorf("failed to load account: %w", err)
		}
		if amount.GreaterThan(acc.Balance) {
			result = models.WithdrawResult{Status: models.WithdrawExceedsBalance, Balance: acc.Balance}
			return nil
		}
		if amount.LessThan(e.rules.MinimumWithdrawal) {
			minimum := e.rules.MinimumWithdrawal
			result = models.WithdrawResult{Status: models.WithdrawBelowMinimum, Minimum: &minimum}
			return nil
		}

		updated, err := e.store.Debit(ctx, userID, amount, models.ReasonWithdrawal)
		if errors.Is(err, store.ErrInsufficientBalance) {
			current, gerr := e.store.Get(ctx, userID)
			if gerr != nil {
				return fmt.Errorf("failed to reload account: %w", gerr)
			}
			result = models.WithdrawResult{Status: models.WithdrawExceedsBalance, Balance: current.Balance}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to debit withdrawal: %w", err)
		}

		e.logger.Info().
			Int64("user_id", userID).
			Str("amount", amount.String()).
			Str("new_balance", updated.Balance.String()).
			Msg("Withdrawal processed")
		e.metrics.ObserveWithdrawal(string(models.WithdrawSuccess), amount.InexactFloat64())
		result = models.WithdrawResult{Status: models.WithdrawSuccess, Balance: updated.Balance}
		return nil
	})
	if err != nil {
		e.logger.Error().Err(err).Int64("user_id", userID).Msg("Withdrawal failed")
		return models.WithdrawResult{}, err
	}
	if result.Status != models.WithdrawSuccess {
		e.metrics.ObserveWithdrawal(string(result.Status), 0)
	}
	return result, nil
}

// WithdrawCancel ends any pending withdrawal without touching the balance.
func (e *Engine) WithdrawCancel(_ context.Context, userID int64) models.WithdrawResult {
	_ = e.withAccountLock(userID, func() error {
		e.sessions.end(userID)
		return nil
	})
	return models.WithdrawResult{Status: models.WithdrawCancelled}
}

func (e *Engine) State(userID int64) WithdrawState {
	return e.sessions.state(userID)
}

func (e *Engine) AwaitingAmount(userID int64) bool {
	return e.State(userID) == StateAwaitingAmount
}

// History lists ledger entries newest first. A limit outside [1, 100]
// falls back to 50.
func (e *Engine) History(ctx context.Context, userID int64, limit, offset int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if _, _, err := e.store.GetOrCreate(ctx, userID, ""); err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return e.store.History(ctx, userID, limit, offset)
}

// parseAmount accepts plain decimal notation only. The scale is checked
// before any comparison; rescaling is proportional to the exponent.
func parseAmount(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if strings.ContainsAny(raw, "eE") {
		return decimal.Decimal{}, false
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if exp := amount.Exponent(); exp < -maxInputScale || exp > maxInputScale {
		return decimal.Decimal{}, false
	}
	if amount.Exponent() < -AmountPrecision && !amount.Equal(amount.Truncate(AmountPrecision)) {
		return decimal.Decimal{}, false
	}
	return amount, true
}
