package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	ID            int64           `json:"id"`
	Balance       decimal.Decimal `json:"balance"`
	ReferralCount int             `json:"referral_count"`
	DisplayName   string          `json:"display_name"`
	CreatedAt     time.Time       `json:"created_at"`
}

type EntryReason string

const (
	ReasonReferral   EntryReason = "referral"
	ReasonDailyBonus EntryReason = "daily_bonus"
	ReasonWithdrawal EntryReason = "withdrawal"
)

// LedgerEntry is one balance change. Change is negative for debits.
type LedgerEntry struct {
	ID           string          `json:"id"`
	AccountID    int64           `json:"account_id"`
	Change       decimal.Decimal `json:"change"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Reason       EntryReason     `json:"reason"`
	CreatedAt    time.Time       `json:"created_at"`
}
