package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type LedgerMetrics struct {
	referrals      prometheus.Counter
	referralReward prometheus.Counter
	bonusClaims    *prometheus.CounterVec
	bonusIssued    prometheus.Counter
	withdrawals    *prometheus.CounterVec
	withdrawn      prometheus.Counter
	notifyFailures prometheus.Counter
}

var (
	ledgerOnce     sync.Once
	ledgerRegistry *LedgerMetrics
)

// Ledger returns the process-wide metrics, registering them on first use.
func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			referrals: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "referralbot_referrals_total",
				Help: "Referrals credited to an existing account.",
			}),
			referralReward: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "referralbot_referral_reward_credits_total",
				Help: "Credits paid out as referral rewards.",
			}),
			bonusClaims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "referralbot_bonus_claims_total",
				Help: "Daily bonus claim attempts by outcome.",
			}, []string{"status"}),
			bonusIssued: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "referralbot_bonus_credits_total",
				Help: "Credits paid out as daily bonuses.",
			}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "referralbot_withdrawals_total",
				Help: "Withdrawal flow outcomes by status.",
			}, []string{"status"}),
			withdrawn: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "referralbot_withdrawn_credits_total",
				Help: "Credits debited by successful withdrawals.",
			}),
			notifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "referralbot_referrer_notify_failures_total",
				Help: "Referrer notifications the transport failed to deliver.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.referrals,
			ledgerRegistry.referralReward,
			ledgerRegistry.bonusClaims,
			ledgerRegistry.bonusIssued,
			ledgerRegistry.withdrawals,
			ledgerRegistry.withdrawn,
			ledgerRegistry.notifyFailures,
		)
	})
	return ledgerRegistry
}

func (m *LedgerMetrics) ObserveReferral(reward float64) {
	if m == nil {
		return
	}
	m.referrals.Inc()
	m.referralReward.Add(reward)
}

func (m *LedgerMetrics) ObserveBonus(status string, amount float64) {
	if m == nil {
		return
	}
	m.bonusClaims.WithLabelValues(status).Inc()
	if amount > 0 {
		m.bonusIssued.Add(amount)
	}
}

func (m *LedgerMetrics) ObserveWithdrawal(status string, amount float64) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(status).Inc()
	if amount > 0 {
		m.withdrawn.Add(amount)
	}
}

func (m *LedgerMetrics) ObserveNotifyFailure() {
	if m == nil {
		return
	}
	m.notifyFailures.Inc()
}
