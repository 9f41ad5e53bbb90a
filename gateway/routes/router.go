// Package routes wires the read-only HTTP surface over the campaign and
// staking engines. All mutations go through the engines directly; the
// gateway only serves snapshots and the Prometheus endpoint.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fundmint/native/crowdfund"
	"fundmint/native/staking"
)

// CampaignReader is the snapshot surface of the campaign engine.
type CampaignReader interface {
	Status() (*crowdfund.CampaignStatus, error)
	RecordsOf(investor [20]byte) ([]*crowdfund.InvestmentRecord, error)
}

// StakingReader is the snapshot surface of the staking engine.
type StakingReader interface {
	View(staker [20]byte) (*staking.StakerView, error)
	ActiveCondition() (*staking.StakingCondition, error)
	Conditions() ([]*staking.StakingCondition, error)
}

// NewRouter builds the gateway router over the two engines.
func NewRouter(campaign CampaignReader, stake StakingReader) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/campaign", handleCampaignStatus(campaign))
		r.Get("/campaign/records/{address}", handleCampaignRecords(campaign))
		r.Get("/staking/condition", handleStakingCondition(stake))
		r.Get("/staking/conditions", handleStakingConditions(stake))
		r.Get("/staking/{address}", handleStakerView(stake))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
