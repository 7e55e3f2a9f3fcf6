package metrics

import (
	"sort"
	"time"

	"sei-tracker/internal/domain"
)

// Wallet thresholds
const (
	largeTransactionAmount = 1_000_000 // 1M usei
	rapidWindowMs          = 60_000
	rapidSampleSize        = 10
	variationMinSamples    = 5
	variationFactor        = 10
	trendMinSamples        = 10
	topTokenPreferences    = 5
)

// Wallet computes the full behavior analysis for a wallet history.
func Wallet(history []domain.WalletTx, now time.Time) domain.WalletMetrics {
	m := domain.WalletMetrics{
		TransactionCount: len(history),
		TotalVolume:      WalletVolume(history),
		ActivityLevel:    ActivityLevel(history, now),
		SpendingPatterns: SpendingPatterns(history),
		TokenPreferences: TokenPreferences(history),
		RiskScore:        RiskScore(history),
		BehaviorType:     BehaviorType(history, now),
		UnusualActivity:  UnusualActivity(history),
		Trends:           Trends(history, now),
	}
	if n := len(history); n > 0 {
		last := history[n-1]
		m.LastActivity = &domain.LastActivity{
			Timestamp: last.Timestamp,
			Type:      last.Type,
			Amount:    last.Amount,
		}
	}
	return m
}

// WalletVolume sums transaction amounts.
func WalletVolume(history []domain.WalletTx) float64 {
	total := 0.0
	for _, tx := range history {
		total += finite(tx.Amount)
	}
	return total
}

// ActivityLevel classifies the trailing 7-day transaction count.
func ActivityLevel(history []domain.WalletTx, now time.Time) string {
	n := countWithin(history, week, now)
	switch {
	case n == 0:
		return domain.ActivityInactive
	case n < 5:
		return domain.ActivityLow
	case n < 20:
		return domain.ActivityMedium
	default:
		return domain.ActivityHigh
	}
}

// RiskScore scores a wallet in [0, 100] from volume of activity and large transfers.
func RiskScore(history []domain.WalletTx) int {
	score := 0
	if len(history) > 100 {
		score += 20
	}
	if len(history) < 5 {
		score += 15
	}

	large := 0
	for _, tx := range history {
		if tx.Amount > largeTransactionAmount {
			large++
		}
	}
	if large > 10 {
		score += 25
	}

	return clampScore(score)
}

// BehaviorType classifies the trailing 24h transaction count.
func BehaviorType(history []domain.WalletTx, now time.Time) string {
	n := countWithin(history, day, now)
	switch {
	case n > 50:
		return domain.BehaviorTrader
	case n > 20:
		return domain.BehaviorActive
	case n > 5:
		return domain.BehaviorRegular
	case n > 0:
		return domain.BehaviorOccasional
	default:
		return domain.BehaviorInactive
	}
}

// UnusualActivity flags bursts of transactions and outsized amounts.
func UnusualActivity(history []domain.WalletTx) []string {
	flags := []string{}

	if n := len(history); n >= rapidSampleSize {
		recent := history[n-rapidSampleSize:]
		span := recent[len(recent)-1].Timestamp - recent[0].Timestamp
		if span < 0 {
			span = -span
		}
		if span < rapidWindowMs {
			flags = append(flags, domain.UnusualRapidTransactions)
		}
	}

	if len(history) >= variationMinSamples {
		amounts := make([]float64, len(history))
		for i, tx := range history {
			amounts[i] = finite(tx.Amount)
		}
		mean := computeMean(amounts)
		for _, a := range amounts {
			if a > mean*variationFactor {
				flags = append(flags, domain.UnusualLargeVariations)
				break
			}
		}
	}

	return flags
}

// Trends compares the trailing week to the week before it.
func Trends(history []domain.WalletTx, now time.Time) domain.Trend {
	if len(history) < trendMinSamples {
		return domain.Trend{Trend: domain.TrendInsufficientData}
	}

	recent := float64(countWithin(history, week, now))
	previous := float64(countBetween(history, 2*week, week, now))

	switch {
	case recent == 0 && previous == 0:
		return domain.Trend{Trend: domain.TrendStable, Change: "stable"}
	case recent >= previous*1.5:
		return domain.Trend{Trend: domain.TrendIncreasing, Change: "up"}
	case recent <= previous*0.7:
		return domain.Trend{Trend: domain.TrendDecreasing, Change: "down"}
	default:
		return domain.Trend{Trend: domain.TrendStable, Change: "stable"}
	}
}

// SpendingPatterns summarizes positive amounts.
func SpendingPatterns(history []domain.WalletTx) domain.SpendingPatterns {
	var p domain.SpendingPatterns
	var amounts []float64
	for _, tx := range history {
		if a := finite(tx.Amount); a > 0 {
			amounts = append(amounts, a)
		}
	}
	if len(amounts) == 0 {
		return p
	}

	p.AverageTransactionSize = computeMean(amounts)
	p.LargestTransaction = amounts[0]
	p.SmallestTransaction = amounts[0]
	for _, a := range amounts[1:] {
		if a > p.LargestTransaction {
			p.LargestTransaction = a
		}
		if a < p.SmallestTransaction {
			p.SmallestTransaction = a
		}
	}
	return p
}

// TokenPreferences returns the most used denoms, most frequent first.
func TokenPreferences(history []domain.WalletTx) []domain.TokenPreference {
	counts := make(map[string]int)
	for _, tx := range history {
		denom := tx.Denom
		if denom == "" {
			denom = "unknown"
		}
		counts[denom]++
	}

	prefs := make([]domain.TokenPreference, 0, len(counts))
	for denom, count := range counts {
		prefs = append(prefs, domain.TokenPreference{Denom: denom, Count: count})
	}
	sort.Slice(prefs, func(i, j int) bool {
		if prefs[i].Count != prefs[j].Count {
			return prefs[i].Count > prefs[j].Count
		}
		return prefs[i].Denom < prefs[j].Denom
	})

	if len(prefs) > topTokenPreferences {
		prefs = prefs[:topTokenPreferences]
	}
	return prefs
}
