package store

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"referral-bot/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetOrCreateIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, created, err := s.GetOrCreate(ctx, 42, "alice")
	require.NoError(t, err)
	require.True(t, created)
	require.True(t, first.Balance.IsZero())

	second, created, err := s.GetOrCreate(ctx, 42, "someone-else")
	require.NoError(t, err)
	require.False(t, created)
	require.True(t, second.Balance.IsZero())
	require.Equal(t, "alice", second.DisplayName)
}

func TestMemoryDefaultDisplayName(t *testing.T) {
	s := NewMemoryStore()
	acc, _, err := s.GetOrCreate(context.Background(), 7, "")
	require.NoError(t, err)
	require.Equal(t, "user7", acc.DisplayName)
}

func TestMemoryConcurrentGetOrCreateCreatesOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		creates int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := s.GetOrCreate(ctx, 1, "")
			assert.NoError(t, err)
			if created {
				mu.Lock()
				creates++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, creates)
}

func TestMemoryCreditDebitValidation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Credit(ctx, 1, decimal.NewFromInt(5), models.ReasonDailyBonus)
	require.ErrorIs(t, err, ErrAccountNotFound)

	_, _, err = s.GetOrCreate(ctx, 1, "")
	require.NoError(t, err)

	_, err = s.Credit(ctx, 1, decimal.Zero, models.ReasonDailyBonus)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = s.Debit(ctx, 1, decimal.NewFromInt(-3), models.ReasonWithdrawal)
	require.ErrorIs(t, err, ErrInvalidAmount)

	acc, err := s.Credit(ctx, 1, decimal.NewFromInt(10), models.ReasonDailyBonus)
	require.NoError(t, err)
	require.True(t, acc.Balance.Equal(decimal.NewFromInt(10)))

	_, err = s.Debit(ctx, 1, decimal.NewFromInt(11), models.ReasonWithdrawal)
	require.ErrorIs(t, err, ErrInsufficientBalance)

	acc, err = s.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, acc.Balance.Equal(decimal.NewFromInt(10)), "failed debit must not change balance")

	acc, err = s.Debit(ctx, 1, decimal.NewFromInt(10), models.ReasonWithdrawal)
	require.NoError(t, err)
	require.True(t, acc.Balance.IsZero())
}

func TestMemoryBalanceNeverNegative(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, _, err := s.GetOrCreate(ctx, 9, "")
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	expected := decimal.Zero
	for i := 0; i < 2000; i++ {
		amount := decimal.NewFromInt(int64(rng.IntN(50) + 1))
		if rng.IntN(2) == 0 {
			_, err := s.Credit(ctx, 9, amount, models.ReasonDailyBonus)
			require.NoError(t, err)
			expected = expected.Add(amount)
		} else {
			_, err := s.Debit(ctx, 9, amount, models.ReasonWithdrawal)
			if amount.GreaterThan(expected) {
				require.ErrorIs(t, err, ErrInsufficientBalance)
			} else {
				require.NoError(t, err)
				expected = expected.Sub(amount)
			}
		}

		acc, err := s.Get(ctx, 9)
		require.NoError(t, err)
		require.False(t, acc.Balance.IsNegative())
		require.True(t, acc.Balance.Equal(expected))
	}
}

func TestMemoryConcurrentCredits(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, _, err := s.GetOrCreate(ctx, 3, "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Credit(ctx, 3, decimal.RequireFromString("0.5"), models.ReasonReferral)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	acc, err := s.Get(ctx, 3)
	require.NoError(t, err)
	require.True(t, acc.Balance.Equal(decimal.NewFromInt(50)), "got %s", acc.Balance)
}

func TestMemoryBonusClaims(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	claimed, err := s.HasClaimedBonusToday(ctx, 5, day)
	require.NoError(t, err)
	require.False(t, claimed)

	require.ErrorIs(t, s.RecordBonusClaim(ctx, 5, day), ErrAccountNotFound)

	_, _, err = s.GetOrCreate(ctx, 5, "")
	require.NoError(t, err)
	require.NoError(t, s.RecordBonusClaim(ctx, 5, day))

	claimed, err = s.HasClaimedBonusToday(ctx, 5, day)
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = s.HasClaimedBonusToday(ctx, 5, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.False(t, claimed)
}

func TestMemoryReferralsAndHistory(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.IncrementReferrals(ctx, 8)
	require.ErrorIs(t, err, ErrAccountNotFound)

	_, _, err = s.GetOrCreate(ctx, 8, "")
	require.NoError(t, err)

	acc, err := s.IncrementReferrals(ctx, 8)
	require.NoError(t, err)
	require.Equal(t, 1, acc.ReferralCount)

	_, err = s.Credit(ctx, 8, decimal.NewFromInt(15), models.ReasonReferral)
	require.NoError(t, err)
	_, err = s.Credit(ctx, 8, decimal.NewFromInt(7), models.ReasonDailyBonus)
	require.NoError(t, err)
	_, err = s.Debit(ctx, 8, decimal.NewFromInt(2), models.ReasonWithdrawal)
	require.NoError(t, err)

	entries, err := s.History(ctx, 8, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, models.ReasonWithdrawal, entries[0].Reason)
	require.True(t, entries[0].Change.Equal(decimal.NewFromInt(-2)))
	require.True(t, entries[0].BalanceAfter.Equal(decimal.NewFromInt(20)))
	require.Equal(t, models.ReasonReferral, entries[2].Reason)
	require.NotEmpty(t, entries[2].ID)

	page, err := s.History(ctx, 8, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, models.ReasonDailyBonus, page[0].Reason)

	empty, err := s.History(ctx, 8, 10, 5)
	require.NoError(t, err)
	require.Empty(t, empty)
}
