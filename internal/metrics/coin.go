package metrics

import (
	"math"
	"sort"
	"time"

	"sei-tracker/internal/domain"
)

// whaleShare is the fraction of holders classified as whales.
const whaleShare = 0.1

// Coin computes flow summaries and whale analytics for a coin.
func Coin(history []domain.FlowRecord, snapshot domain.CoinSnapshot, now time.Time) domain.CoinMetrics {
	whales := AnalyzeWhales(snapshot.Whales)
	return domain.CoinMetrics{
		Flow24h:            SummarizeFlows(history, domain.Timeframe24h, now),
		Flow7d:             SummarizeFlows(history, domain.Timeframe7d, now),
		Whales:             whales,
		WhaleConcentration: whales.WhaleConcentration,
	}
}

// SummarizeFlows aggregates flow records inside tf.
// An empty window yields a zero summary with DataPoints 0.
func SummarizeFlows(history []domain.FlowRecord, tf domain.Timeframe, now time.Time) domain.FlowSummary {
	s := domain.FlowSummary{Timeframe: tf}

	window := domain.Window(history, tf, now)
	for _, f := range window {
		s.TotalInflow += finite(f.Inflow)
		s.TotalOutflow += finite(f.Outflow)
	}
	s.NetFlow = s.TotalInflow - s.TotalOutflow
	s.TotalVolume = s.TotalInflow + s.TotalOutflow
	s.FlowRatio = s.TotalInflow / math.Max(s.TotalOutflow, 1)
	s.DataPoints = len(window)
	if s.DataPoints > 0 {
		s.AverageInflow = s.TotalInflow / float64(s.DataPoints)
		s.AverageOutflow = s.TotalOutflow / float64(s.DataPoints)
	}
	return s
}

// FlowFromTransfer splits a transfer amount into inflow and outflow.
// Mints (to only) are inflow, burns (from only) are outflow, and
// wallet-to-wallet transfers count half each way.
func FlowFromTransfer(from, to string, amount float64) (inflow, outflow float64) {
	amount = finite(amount)
	switch {
	case to != "" && from == "":
		return amount, 0
	case from != "" && to == "":
		return 0, amount
	default:
		return amount * 0.5, amount * 0.5
	}
}

// SelectWhales returns the top decile of holders by balance (at least one
// when holders exist), with each whale's share of totalSupply.
func SelectWhales(holders []domain.Holder, totalSupply float64) []domain.Whale {
	if len(holders) == 0 {
		return nil
	}

	sorted := make([]domain.Holder, len(holders))
	copy(sorted, holders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Balance > sorted[j].Balance
	})

	n := int(math.Ceil(float64(len(sorted)) * whaleShare))
	whales := make([]domain.Whale, 0, n)
	for _, h := range sorted[:n] {
		pct := 0.0
		if totalSupply > 0 {
			pct = finite(h.Balance / totalSupply * 100)
		}
		whales = append(whales, domain.Whale{
			Address:      h.Address,
			Balance:      h.Balance,
			Percentage:   pct,
			LastActivity: h.LastActivity,
		})
	}
	return whales
}

// WhaleConcentration sums whale supply shares. Negative shares count as zero.
func WhaleConcentration(whales []domain.Whale) float64 {
	total := 0.0
	for _, w := range whales {
		if p := finite(w.Percentage); p > 0 {
			total += p
		}
	}
	return total
}

// AnalyzeWhales summarizes a whale set ordered by balance descending.
func AnalyzeWhales(whales []domain.Whale) domain.WhaleAnalytics {
	a := domain.WhaleAnalytics{
		WhaleCount:         len(whales),
		WhaleConcentration: WhaleConcentration(whales),
		Distribution:       whales,
	}
	if len(whales) == 0 {
		a.Distribution = []domain.Whale{}
		return a
	}

	for _, w := range whales {
		a.TotalWhaleBalance += finite(w.Balance)
	}
	a.AverageWhaleBalance = a.TotalWhaleBalance / float64(len(whales))
	top := whales[0]
	a.TopWhale = &top
	return a
}
