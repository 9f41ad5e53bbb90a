package routes

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fundmint/core/types"
	"fundmint/native/crowdfund"
)

type tierCountsPayload struct {
	Low     uint64 `json:"low"`
	Regular uint64 `json:"regular"`
	High    uint64 `json:"high"`
}

type coinAmountsPayload struct {
	Native  string `json:"native"`
	Stable  string `json:"stable"`
	Partner string `json:"partner"`
}

type campaignStatusPayload struct {
	DueDate        int64              `json:"dueDate"`
	Paused         bool               `json:"paused"`
	SoldRateBps    uint32             `json:"soldRateBps"`
	MinSoldRateBps uint32             `json:"minSoldRateBps"`
	Bought         tierCountsPayload  `json:"bought"`
	Caps           tierCountsPayload  `json:"caps"`
	Collected      coinAmountsPayload `json:"collected"`
	Withdrawn      map[string]bool    `json:"withdrawn"`
}

type recordPayload struct {
	ID             uint64            `json:"id"`
	Receipt        string            `json:"receipt"`
	Investor       string            `json:"investor"`
	Quantities     tierCountsPayload `json:"quantities"`
	Coin           string            `json:"coin"`
	TotalPayment   string            `json:"totalPayment"`
	RefundDeadline int64             `json:"refundDeadline"`
	Consumed       bool              `json:"consumed"`
}

func handleCampaignStatus(campaign CampaignReader) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status, err := campaign.Status()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		payload := campaignStatusPayload{
			DueDate:        status.DueDate,
			Paused:         status.Paused,
			SoldRateBps:    status.SoldRateBps,
			MinSoldRateBps: status.MinSoldRateBps,
			Bought:         tierCounts(status.Bought),
			Caps:           tierCounts(status.Caps),
			Withdrawn:      map[string]bool{},
		}
		amounts := [crowdfund.CoinCount]string{}
		for _, coin := range crowdfund.Coins() {
			amounts[coin] = "0"
			if status.Collected[coin] != nil {
				amounts[coin] = status.Collected[coin].String()
			}
			payload.Withdrawn[coin.String()] = status.Withdrawn[coin]
		}
		payload.Collected = coinAmountsPayload{Native: amounts[crowdfund.CoinNative], Stable: amounts[crowdfund.CoinStable], Partner: amounts[crowdfund.CoinPartner]}
		writeJSON(w, http.StatusOK, payload)
	}
}

func handleCampaignRecords(campaign CampaignReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr, err := parseAddressParam(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		records, err := campaign.RecordsOf(addr)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		payload := make([]recordPayload, 0, len(records))
		for _, record := range records {
			total := "0"
			if record.TotalPayment != nil {
				total = record.TotalPayment.String()
			}
			payload = append(payload, recordPayload{
				ID:             record.ID,
				Receipt:        hex.EncodeToString(record.Receipt[:]),
				Investor:       hex.EncodeToString(record.Investor[:]),
				Quantities:     tierCounts(record.Quantities),
				Coin:           record.Coin.String(),
				TotalPayment:   total,
				RefundDeadline: record.RefundDeadline,
				Consumed:       record.Consumed,
			})
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

func tierCounts(counts [types.TierCount]uint64) tierCountsPayload {
	return tierCountsPayload{
		Low:     counts[types.TierLow],
		Regular: counts[types.TierRegular],
		High:    counts[types.TierHigh],
	}
}

func parseAddressParam(r *http.Request) ([20]byte, error) {
	var addr [20]byte
	raw := strings.TrimPrefix(chi.URLParam(r, "address"), "0x")
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q", raw)
	}
	if len(decoded) != len(addr) {
		return addr, fmt.Errorf("address must be %d bytes", len(addr))
	}
	copy(addr[:], decoded)
	return addr, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
