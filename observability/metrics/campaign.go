// Package metrics exposes Prometheus instruments for the campaign and
// staking engines. Each set registers once on first use.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type CampaignMetrics struct {
	investments *prometheus.CounterVec
	donations   *prometheus.CounterVec
	refunds     prometheus.Counter
	minted      prometheus.Counter
	withdrawals *prometheus.CounterVec
	soldRateBps prometheus.Gauge
}

var (
	campaignOnce     sync.Once
	campaignRegistry *CampaignMetrics
)

func Campaign() *CampaignMetrics {
	campaignOnce.Do(func() {
		campaignRegistry = &CampaignMetrics{
			investments: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "campaign_investments_total",
				Help: "Count of accepted investments by coin.",
			}, []string{"coin"}),
			donations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "campaign_donations_total",
				Help: "Count of accepted donations by coin.",
			}, []string{"coin"}),
			refunds: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "campaign_refunds_total",
				Help: "Count of refunded investment records.",
			}),
			minted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "campaign_tokens_minted_total",
				Help: "Count of collectibles issued through the mint.",
			}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "campaign_withdrawals_total",
				Help: "Count of proceeds withdrawals by coin.",
			}, []string{"coin"}),
			soldRateBps: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "campaign_sold_rate_bps",
				Help: "Aggregate sold share across tiers in basis points.",
			}),
		}
		prometheus.MustRegister(
			campaignRegistry.investments,
			campaignRegistry.donations,
			campaignRegistry.refunds,
			campaignRegistry.minted,
			campaignRegistry.withdrawals,
			campaignRegistry.soldRateBps,
		)
	})
	return campaignRegistry
}

func (m *CampaignMetrics) ObserveInvestment(coin string) {
	if m == nil {
		return
	}
	if coin == "" {
		coin = "unknown"
	}
	m.investments.WithLabelValues(coin).Inc()
}

func (m *CampaignMetrics) ObserveDonation(coin string) {
	if m == nil {
		return
	}
	if coin == "" {
		coin = "unknown"
	}
	m.donations.WithLabelValues(coin).Inc()
}

func (m *CampaignMetrics) ObserveRefund() {
	if m == nil {
		return
	}
	m.refunds.Inc()
}

func (m *CampaignMetrics) ObserveMinted(count float64) {
	if m == nil || count <= 0 {
		return
	}
	m.minted.Add(count)
}

func (m *CampaignMetrics) ObserveWithdrawal(coin string) {
	if m == nil {
		return
	}
	if coin == "" {
		coin = "unknown"
	}
	m.withdrawals.WithLabelValues(coin).Inc()
}

func (m *CampaignMetrics) SetSoldRateBps(rate float64) {
	if m == nil {
		return
	}
	m.soldRateBps.Set(rate)
}
