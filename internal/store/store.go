// Package store holds account balances, referral counts and daily bonus
// claims. Every mutation of a single account is atomic; different accounts
// never contend on a shared lock.
package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"referral-bot/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountNotFound     = errors.New("account not found")
)

type Store interface {
	// GetOrCreate returns the account for id, creating it with a zero
	// balance if it does not exist. created reports whether this call
	// created it.
	GetOrCreate(ctx context.Context, id int64, displayName string) (acc models.Account, created bool, err error)
	Get(ctx context.Context, id int64) (models.Account, error)
	Credit(ctx context.Context, id int64, amount decimal.Decimal, reason models.EntryReason) (models.Account, error)
	Debit(ctx context.Context, id int64, amount decimal.Decimal, reason models.EntryReason) (models.Account, error)
	IncrementReferrals(ctx context.Context, id int64) (models.Account, error)
	HasClaimedBonusToday(ctx context.Context, id int64, today time.Time) (bool, error)
	RecordBonusClaim(ctx context.Context, id int64, today time.Time) error
	History(ctx context.Context, id int64, limit, offset int) ([]models.LedgerEntry, error)
}

// DefaultDisplayName is used when the platform gives no username.
func DefaultDisplayName(id int64, name string) string {
	if name != "" {
		return name
	}
	return "user" + strconv.FormatInt(id, 10)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
