package store

import (
	"context"
	"sync"
	"time"

	"referral-bot/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type memAccount struct {
	mu        sync.Mutex
	acc       models.Account
	lastBonus time.Time
	history   []models.LedgerEntry
}

// MemoryStore keeps accounts for the lifetime of the process. Each account
// carries its own mutex, so operations on different ids run in parallel.
type MemoryStore struct {
	accounts sync.Map // int64 -> *memAccount
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) GetOrCreate(_ context.Context, id int64, displayName string) (models.Account, bool, error) {
	if v, ok := s.accounts.Load(id); ok {
		return v.(*memAccount).snapshot(), false, nil
	}

	fresh := &memAccount{acc: models.Account{
		ID:          id,
		Balance:     decimal.Zero,
		DisplayName: DefaultDisplayName(id, displayName),
		CreatedAt:   s.now(),
	}}
	v, loaded := s.accounts.LoadOrStore(id, fresh)
	return v.(*memAccount).snapshot(), !loaded, nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (models.Account, error) {
	m, err := s.load(id)
	if err != nil {
		return models.Account{}, err
	}
	return m.snapshot(), nil
}

func (s *MemoryStore) Credit(_ context.Context, id int64, amount decimal.Decimal, reason models.EntryReason) (models.Account, error) {
	if !amount.IsPositive() {
		return models.Account{}, ErrInvalidAmount
	}
	m, err := s.load(id)
	if err != nil {
		return models.Account{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.acc.Balance = m.acc.Balance.Add(amount)
	m.appendEntry(amount, reason, s.now())
	return m.acc, nil
}

func (s *MemoryStore) Debit(_ context.Context, id int64, amount decimal.Decimal, reason models.EntryReason) (models.Account, error) {
	if !amount.IsPositive() {
		return models.Account{}, ErrInvalidAmount
	}
	m, err := s.load(id)
	if err != nil {
		return models.Account{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if amount.GreaterThan(m.acc.Balance) {
		return models.Account{}, ErrInsufficientBalance
	}
	m.acc.Balance = m.acc.Balance.Sub(amount)
	m.appendEntry(amount.Neg(), reason, s.now())
	return m.acc, nil
}

func (s *MemoryStore) IncrementReferrals(_ context.Context, id int64) (models.Account, error) {
	m, err := s.load(id)
	if err != nil {
		return models.Account{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.acc.ReferralCount++
	return m.acc, nil
}

func (s *MemoryStore) HasClaimedBonusToday(_ context.Context, id int64, today time.Time) (bool, error) {
	v, ok := s.accounts.Load(id)
	if !ok {
		return false, nil
	}
	m := v.(*memAccount)

	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.lastBonus.IsZero() && sameDay(m.lastBonus, today), nil
}

func (s *MemoryStore) RecordBonusClaim(_ context.Context, id int64, today time.Time) error {
	m, err := s.load(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastBonus = today
	return nil
}

// History returns entries newest first.
func (s *MemoryStore) History(_ context.Context, id int64, limit, offset int) ([]models.LedgerEntry, error) {
	m, err := s.load(id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.LedgerEntry
	for i := len(m.history) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.history[i])
	}
	return out, nil
}

func (s *MemoryStore) load(id int64) (*memAccount, error) {
	v, ok := s.accounts.Load(id)
	if !ok {
		return nil, ErrAccountNotFound
	}
	return v.(*memAccount), nil
}

func (m *memAccount) snapshot() models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acc
}

// appendEntry must be called with m.mu held.
func (m *memAccount) appendEntry(change decimal.Decimal, reason models.EntryReason, at time.Time) {
	m.history = append(m.history, models.LedgerEntry{
		ID:           uuid.NewString(),
		AccountID:    m.acc.ID,
		Change:       change,
		BalanceAfter: m.acc.Balance,
		Reason:       reason,
		CreatedAt:    at,
	})
}
