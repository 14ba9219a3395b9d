package models

import "github.com/shopspring/decimal"

type WelcomeInfo struct {
	ReferralLink  string          `json:"referral_link"`
	Balance       decimal.Decimal `json:"balance"`
	ReferralCount int             `json:"referral_count"`
}

type BalanceInfo struct {
	Balance       decimal.Decimal `json:"balance"`
	ReferralCount int             `json:"referral_count"`
}

type BonusStatus string

const (
	BonusClaimed        BonusStatus = "claimed"
	BonusAlreadyClaimed BonusStatus = "already_claimed"
)

type BonusResult struct {
	Status BonusStatus     `json:"status"`
	Amount decimal.Decimal `json:"amount"`
}

type WithdrawStatus string

const (
	WithdrawPromptForAmount WithdrawStatus = "prompt_for_amount"
	WithdrawBelowMinimum    WithdrawStatus = "below_minimum"
	WithdrawSuccess         WithdrawStatus = "success"
	WithdrawInvalidNumber   WithdrawStatus = "invalid_number"
	WithdrawMustBePositive  WithdrawStatus = "must_be_positive"
	WithdrawExceedsBalance  WithdrawStatus = "exceeds_balance"
	WithdrawCancelled       WithdrawStatus = "cancelled"
	WithdrawNoPending       WithdrawStatus = "no_pending_withdrawal"
)

// WithdrawStartResult is PromptForAmount or BelowMinimum; Balance is the
// balance at the time of the request in both cases.
type WithdrawStartResult struct {
	Status  WithdrawStatus  `json:"status"`
	Balance decimal.Decimal `json:"balance"`
}

// WithdrawResult carries the variant of a withdrawal amount entry. Balance is
// set for Success (new balance) and ExceedsBalance (current balance); Minimum
// is set for BelowMinimum.
type WithdrawResult struct {
	Status  WithdrawStatus   `json:"status"`
	Balance decimal.Decimal  `json:"balance"`
	Minimum *decimal.Decimal `json:"minimum,omitempty"`
}
