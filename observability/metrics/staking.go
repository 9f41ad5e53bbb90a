package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type StakingMetrics struct {
	staked        prometheus.Counter
	withdrawn     prometheus.Counter
	rewardsClaims prometheus.Counter
	usdSplits     prometheus.Counter
	usdClaims     prometheus.Counter
	conditionID   prometheus.Gauge
	rewardPool    prometheus.Gauge
}

var (
	stakingOnce     sync.Once
	stakingRegistry *StakingMetrics
)

func Staking() *StakingMetrics {
	stakingOnce.Do(func() {
		stakingRegistry = &StakingMetrics{
			staked: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_tokens_staked_total",
				Help: "Count of collectibles locked into the stake ledger.",
			}),
			withdrawn: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_tokens_withdrawn_total",
				Help: "Count of collectibles released from the stake ledger.",
			}),
			rewardsClaims: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_reward_claims_total",
				Help: "Count of reward payouts.",
			}),
			usdSplits: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_usd_splits_total",
				Help: "Count of pro-rata USD distributions.",
			}),
			usdClaims: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_usd_claims_total",
				Help: "Count of USD payouts.",
			}),
			conditionID: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_active_condition_id",
				Help: "Id of the currently open staking condition.",
			}),
			rewardPool: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_reward_pool",
				Help: "Reward token balance available for claims.",
			}),
		}
		prometheus.MustRegister(
			stakingRegistry.staked,
			stakingRegistry.withdrawn,
			stakingRegistry.rewardsClaims,
			stakingRegistry.usdSplits,
			stakingRegistry.usdClaims,
			stakingRegistry.conditionID,
			stakingRegistry.rewardPool,
		)
	})
	return stakingRegistry
}

func (m *StakingMetrics) ObserveStaked(count float64) {
	if m == nil || count <= 0 {
		return
	}
	m.staked.Add(count)
}

func (m *StakingMetrics) ObserveWithdrawn(count float64) {
	if m == nil || count <= 0 {
		return
	}
	m.withdrawn.Add(count)
}

func (m *StakingMetrics) ObserveRewardClaim() {
	if m == nil {
		return
	}
	m.rewardsClaims.Inc()
}

func (m *StakingMetrics) ObserveUSDSplit() {
	if m == nil {
		return
	}
	m.usdSplits.Inc()
}

func (m *StakingMetrics) ObserveUSDClaim() {
	if m == nil {
		return
	}
	m.usdClaims.Inc()
}

func (m *StakingMetrics) SetActiveConditionID(id float64) {
	if m == nil {
		return
	}
	m.conditionID.Set(id)
}

func (m *StakingMetrics) SetRewardPool(amount float64) {
	if m == nil {
		return
	}
	m.rewardPool.Set(amount)
}
