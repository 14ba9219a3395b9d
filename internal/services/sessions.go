package services

import (
	"math/rand/v2"
	"sync"
	"time"
)

type WithdrawState int

const (
	StateIdle WithdrawState = iota
	StateAwaitingAmount
)

func (s WithdrawState) String() string {
	if s == StateAwaitingAmount {
		return "awaiting_amount"
	}
	return "idle"
}

// sessions is the ephemeral withdrawal conversation table. A missing key
// means Idle.
type sessions struct {
	m sync.Map // int64 -> WithdrawState
}

func (s *sessions) state(id int64) WithdrawState {
	if v, ok := s.m.Load(id); ok {
		return v.(WithdrawState)
	}
	return StateIdle
}

func (s *sessions) await(id int64) {
	s.m.Store(id, StateAwaitingAmount)
}

// end moves id back to Idle and returns the state it was in.
func (s *sessions) end(id int64) WithdrawState {
	if v, loaded := s.m.LoadAndDelete(id); loaded {
		return v.(WithdrawState)
	}
	return StateIdle
}

// BonusDrawer returns an integer in [lo, hi].
type BonusDrawer func(lo, hi int) int

// UniformBonus draws from the runtime-seeded generator, which is safe for
// concurrent use.
func UniformBonus(lo, hi int) int {
	return lo + rand.IntN(hi-lo+1)
}

// Day maps an instant to its calendar date in loc, returned as midnight UTC
// so dates compare equal regardless of the zone they came from.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
