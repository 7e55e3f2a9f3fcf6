package metrics

import (
	"math/rand"
	"testing"
	"time"

	"sei-tracker/internal/domain"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func txAgo(ago time.Duration, amount float64) domain.WalletTx {
	return domain.WalletTx{
		Hash:      "h",
		Amount:    amount,
		Denom:     "usei",
		Type:      domain.EventTypeSend,
		Timestamp: testNow.Add(-ago).UnixMilli(),
	}
}

func TestActivityLevel_Thresholds(t *testing.T) {
	tests := []struct {
		name   string
		recent int
		want   string
	}{
		{"none", 0, domain.ActivityInactive},
		{"low", 4, domain.ActivityLow},
		{"medium", 19, domain.ActivityMedium},
		{"high", 20, domain.ActivityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var history []domain.WalletTx
			// Old activity outside the 7-day window never counts
			history = append(history, txAgo(30*day, 1))
			for i := 0; i < tt.recent; i++ {
				history = append(history, txAgo(time.Duration(i+1)*time.Hour, 1))
			}
			if got := ActivityLevel(history, testNow); got != tt.want {
				t.Errorf("ActivityLevel = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRiskScore_Factors(t *testing.T) {
	// Fewer than 5 records
	if got := RiskScore(nil); got != 15 {
		t.Errorf("empty history risk = %d, want 15", got)
	}

	// More than 100 records
	var busy []domain.WalletTx
	for i := 0; i < 101; i++ {
		busy = append(busy, txAgo(time.Duration(i)*time.Minute, 10))
	}
	if got := RiskScore(busy); got != 20 {
		t.Errorf("busy history risk = %d, want 20", got)
	}

	// More than 10 records above 1M plus high count
	for i := 0; i < 11; i++ {
		busy[i].Amount = 2_000_000
	}
	if got := RiskScore(busy); got != 45 {
		t.Errorf("busy large history risk = %d, want 45", got)
	}

	// Exactly 10 large records does not trigger the large-transfer factor
	var mid []domain.WalletTx
	for i := 0; i < 10; i++ {
		mid = append(mid, txAgo(time.Duration(i)*time.Minute, 1_500_000))
	}
	if got := RiskScore(mid); got != 0 {
		t.Errorf("ten large records risk = %d, want 0", got)
	}
}

func TestRiskScore_AlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		n := rng.Intn(300)
		history := make([]domain.WalletTx, n)
		for j := range history {
			history[j] = txAgo(time.Duration(rng.Intn(1000))*time.Hour, rng.Float64()*5_000_000-1_000_000)
		}
		if got := RiskScore(history); got < 0 || got > 100 {
			t.Fatalf("risk score %d out of range for %d records", got, n)
		}
	}
}

func TestBehaviorType_Thresholds(t *testing.T) {
	tests := []struct {
		recent int
		want   string
	}{
		{0, domain.BehaviorInactive},
		{1, domain.BehaviorOccasional},
		{6, domain.BehaviorRegular},
		{21, domain.BehaviorActive},
		{51, domain.BehaviorTrader},
	}

	for _, tt := range tests {
		var history []domain.WalletTx
		for i := 0; i < tt.recent; i++ {
			history = append(history, txAgo(time.Duration(i+1)*time.Minute, 1))
		}
		history = append(history, txAgo(2*day, 1))
		if got := BehaviorType(history, testNow); got != tt.want {
			t.Errorf("BehaviorType(%d recent) = %s, want %s", tt.recent, got, tt.want)
		}
	}
}

func TestUnusualActivity_RapidTransactions(t *testing.T) {
	var history []domain.WalletTx
	history = append(history, txAgo(10*day, 1))
	for i := 10; i > 0; i-- {
		history = append(history, txAgo(time.Duration(i)*time.Second, 1))
	}

	flags := UnusualActivity(history)
	if len(flags) != 1 || flags[0] != domain.UnusualRapidTransactions {
		t.Errorf("expected rapid_transactions only, got %v", flags)
	}
}

func TestUnusualActivity_LargeVariation(t *testing.T) {
	history := []domain.WalletTx{
		txAgo(5*day, 1), txAgo(4*day, 1), txAgo(3*day, 1), txAgo(2*day, 1),
		txAgo(1*day, 1), txAgo(12*time.Hour, 1), txAgo(6*time.Hour, 1),
		txAgo(3*time.Hour, 1), txAgo(2*time.Hour, 1), txAgo(time.Hour, 1),
		txAgo(30*time.Minute, 1), txAgo(10*time.Minute, 100),
	}

	flags := UnusualActivity(history)
	if len(flags) != 1 || flags[0] != domain.UnusualLargeVariations {
		t.Errorf("expected large_amount_variations only, got %v", flags)
	}

	// Four records are not enough to judge variation
	if flags := UnusualActivity(history[8:]); len(flags) != 0 {
		t.Errorf("expected no flags for 4 records, got %v", flags)
	}
}

func TestTrends(t *testing.T) {
	build := func(recent, previous int) []domain.WalletTx {
		var h []domain.WalletTx
		for i := 0; i < previous; i++ {
			h = append(h, txAgo(8*day+time.Duration(i)*time.Hour, 1))
		}
		for i := 0; i < recent; i++ {
			h = append(h, txAgo(time.Duration(i+1)*time.Hour, 1))
		}
		return h
	}

	tests := []struct {
		name             string
		recent, previous int
		want             string
	}{
		{"insufficient", 3, 3, domain.TrendInsufficientData},
		{"increasing", 15, 10, domain.TrendIncreasing},
		{"decreasing", 7, 10, domain.TrendDecreasing},
		{"stable", 10, 10, domain.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Trends(build(tt.recent, tt.previous), testNow)
			if got.Trend != tt.want {
				t.Errorf("Trends = %s, want %s", got.Trend, tt.want)
			}
		})
	}
}

func TestTokenPreferences_TopFive(t *testing.T) {
	denoms := []string{"a", "b", "b", "c", "c", "c", "d", "e", "f", ""}
	var history []domain.WalletTx
	for _, d := range denoms {
		history = append(history, domain.WalletTx{Denom: d})
	}

	prefs := TokenPreferences(history)
	if len(prefs) != 5 {
		t.Fatalf("expected 5 preferences, got %d", len(prefs))
	}
	if prefs[0].Denom != "c" || prefs[0].Count != 3 {
		t.Errorf("top preference = %+v, want c:3", prefs[0])
	}
	if prefs[1].Denom != "b" || prefs[1].Count != 2 {
		t.Errorf("second preference = %+v, want b:2", prefs[1])
	}
}

func TestWallet_LastActivityIsNewest(t *testing.T) {
	history := []domain.WalletTx{txAgo(2*time.Hour, 5), txAgo(time.Hour, 7)}

	m := Wallet(history, testNow)

	if m.LastActivity == nil {
		t.Fatal("expected last activity")
	}
	if m.LastActivity.Amount != 7 {
		t.Errorf("last activity amount = %f, want 7", m.LastActivity.Amount)
	}
	if m.TransactionCount != 2 || m.TotalVolume != 12 {
		t.Errorf("count/volume = %d/%f, want 2/12", m.TransactionCount, m.TotalVolume)
	}
}
