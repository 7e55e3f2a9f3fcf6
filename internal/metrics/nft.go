package metrics

import (
	"time"

	"sei-tracker/internal/domain"
)

const (
	month             = 30 * day
	year              = 365 * day
	recentOwnerWindow = 10
)

// NFT computes performance, movement, and ownership analytics for an NFT.
func NFT(history []domain.NFTMovement, _ domain.NFTSnapshot, now time.Time) domain.NFTMetrics {
	return domain.NFTMetrics{
		Performance: Performance(history, now),
		Movements:   Movements(history, domain.TimeframeAll, now),
		Ownership:   Ownership(history),
	}
}

// Performance computes the performance analysis of a movement history.
func Performance(history []domain.NFTMovement, now time.Time) domain.NFTPerformance {
	return domain.NFTPerformance{
		TotalTransfers:   len(transfers(history)),
		TotalVolume:      TotalVolume(history),
		AveragePrice:     AveragePrice(history),
		PriceChange:      PriceChangeOf(history),
		HoldingPeriods:   HoldingPeriodsOf(history),
		Rarity:           Rarity(history),
		MarketActivity:   MarketActivity(history, now),
		PerformanceScore: PerformanceScore(history, now),
	}
}

func transfers(history []domain.NFTMovement) []domain.NFTMovement {
	var out []domain.NFTMovement
	for _, m := range history {
		if m.IsTransfer() {
			out = append(out, m)
		}
	}
	return out
}

func pricedTransfers(history []domain.NFTMovement) []domain.NFTMovement {
	var out []domain.NFTMovement
	for _, m := range history {
		if m.IsTransfer() && finite(m.Price) > 0 {
			out = append(out, m)
		}
	}
	return out
}

// TotalVolume sums prices of priced transfers.
func TotalVolume(history []domain.NFTMovement) float64 {
	total := 0.0
	for _, m := range pricedTransfers(history) {
		total += m.Price
	}
	return total
}

// AveragePrice is the mean price of priced transfers, 0 if none.
func AveragePrice(history []domain.NFTMovement) float64 {
	priced := pricedTransfers(history)
	if len(priced) == 0 {
		return 0
	}
	return TotalVolume(history) / float64(len(priced))
}

// PriceChangeOf compares the first and last priced transfer.
func PriceChangeOf(history []domain.NFTMovement) domain.PriceChange {
	priced := pricedTransfers(history)
	if len(priced) < 2 {
		return domain.PriceChange{}
	}
	first := priced[0].Price
	last := priced[len(priced)-1].Price
	change := last - first
	return domain.PriceChange{
		Change:     change,
		Percentage: finite(change / first * 100),
	}
}

// HoldingPeriodsOf summarizes the gaps between consecutive transfers.
func HoldingPeriodsOf(history []domain.NFTMovement) domain.HoldingPeriods {
	ts := transfers(history)
	if len(ts) < 2 {
		return domain.HoldingPeriods{}
	}

	var sum int64
	hp := domain.HoldingPeriods{}
	for i := 1; i < len(ts); i++ {
		gap := ts[i].Timestamp - ts[i-1].Timestamp
		sum += gap
		if i == 1 || gap < hp.Shortest {
			hp.Shortest = gap
		}
		if i == 1 || gap > hp.Longest {
			hp.Longest = gap
		}
	}
	hp.Average = float64(sum) / float64(len(ts)-1)
	return hp
}

// Rarity classifies an NFT by how rarely it changed hands over its lifetime.
func Rarity(history []domain.NFTMovement) string {
	n := len(transfers(history))
	var span time.Duration
	if len(history) > 1 {
		span = time.Duration(history[len(history)-1].Timestamp-history[0].Timestamp) * time.Millisecond
	}

	switch {
	case n <= 1 && span > year:
		return domain.RarityLegendary
	case n <= 2 && span > 180*day:
		return domain.RarityRare
	default:
		return domain.RarityCommon
	}
}

// MarketActivity classifies the trailing 30-day movement count.
func MarketActivity(history []domain.NFTMovement, now time.Time) string {
	n := countWithin(history, month, now)
	switch {
	case n == 0:
		return domain.ActivityInactive
	case n < 3:
		return domain.ActivityLow
	case n < 8:
		return domain.ActivityMedium
	default:
		return domain.ActivityHigh
	}
}

// PerformanceScore scores an NFT in [0, 100].
func PerformanceScore(history []domain.NFTMovement, now time.Time) int {
	score := 50

	n := len(transfers(history))
	if n > 5 {
		score += 15
	}
	if n > 10 {
		score += 10
	}

	pct := PriceChangeOf(history).Percentage
	switch {
	case pct > 100:
		score += 20
	case pct > 50:
		score += 15
	case pct > 0:
		score += 10
	}

	if countWithin(history, week, now) > 0 {
		score += 5
	}

	return clampScore(score)
}

// Movements summarizes movements inside tf.
func Movements(history []domain.NFTMovement, tf domain.Timeframe, now time.Time) domain.MovementAnalytics {
	window := domain.Window(history, tf, now)
	ts := transfers(window)

	a := domain.MovementAnalytics{
		Timeframe:      tf,
		TotalMovements: len(window),
		Transfers:      len(ts),
	}

	owners := make(map[string]struct{})
	for _, m := range ts {
		a.TotalVolume += finite(m.Price)
		if m.From != "" {
			owners[m.From] = struct{}{}
		}
		if m.To != "" {
			owners[m.To] = struct{}{}
		}
	}
	if len(ts) > 0 {
		a.AveragePrice = a.TotalVolume / float64(len(ts))
	}
	a.UniqueOwners = len(owners)
	return a
}

// Ownership walks the mint/transfer chain.
func Ownership(history []domain.NFTMovement) domain.OwnershipAnalytics {
	var (
		current string
		changes []domain.OwnershipChange
	)
	owners := make(map[string]struct{})

	for _, m := range history {
		switch m.Type {
		case domain.EventTypeMint:
			current = m.To
		case domain.EventTypeTransfer:
			from := m.From
			if from == "" {
				from = current
			}
			changes = append(changes, domain.OwnershipChange{
				From:      from,
				To:        m.To,
				Price:     m.Price,
				Timestamp: m.Timestamp,
			})
			current = m.To
		default:
			continue
		}
		if current != "" {
			owners[current] = struct{}{}
		}
	}

	a := domain.OwnershipAnalytics{
		CurrentOwner:     current,
		TotalOwners:      len(owners),
		OwnershipHistory: changes,
	}
	if len(changes) > recentOwnerWindow {
		a.OwnershipHistory = changes[len(changes)-recentOwnerWindow:]
	}
	if a.OwnershipHistory == nil {
		a.OwnershipHistory = []domain.OwnershipChange{}
	}
	if len(changes) >= 2 {
		var sum int64
		for i := 1; i < len(changes); i++ {
			sum += changes[i].Timestamp - changes[i-1].Timestamp
		}
		a.AverageOwnershipDuration = float64(sum) / float64(len(changes)-1)
	}
	return a
}
