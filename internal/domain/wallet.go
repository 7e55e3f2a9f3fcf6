package domain

import "github.com/shopspring/decimal"

// WalletTx is one transaction in a wallet's history.
type WalletTx struct {
	Hash        string  `json:"hash"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Amount      float64 `json:"amount"`
	Denom       string  `json:"denom"`
	Type        string  `json:"type"`
	BlockHeight int64   `json:"blockHeight"`
	Timestamp   int64   `json:"timestamp"` // Unix ms
}

// UnixMilli implements Timestamped.
func (t WalletTx) UnixMilli() int64 { return t.Timestamp }

// Holding is a single token position held by a wallet.
type Holding struct {
	Amount decimal.Decimal `json:"amount"`
	Denom  string          `json:"denom"`
}

// WalletSnapshot is the point-in-time view of a wallet.
type WalletSnapshot struct {
	Address       string             `json:"address"`
	Balance       decimal.Decimal    `json:"balance"`
	Denom         string             `json:"denom"`
	TokenHoldings map[string]Holding `json:"tokenHoldings"`
	LastUpdated   int64              `json:"lastUpdated"`
}

// Activity levels
const (
	ActivityInactive = "inactive"
	ActivityLow      = "low"
	ActivityMedium   = "medium"
	ActivityHigh     = "high"
)

// Behavior types
const (
	BehaviorTrader     = "trader"
	BehaviorActive     = "active_user"
	BehaviorRegular    = "regular_user"
	BehaviorOccasional = "occasional_user"
	BehaviorInactive   = "inactive"
)

// Unusual activity flags
const (
	UnusualRapidTransactions = "rapid_transactions"
	UnusualLargeVariations   = "large_amount_variations"
)

// Trend labels
const (
	TrendInsufficientData = "insufficient_data"
	TrendIncreasing       = "increasing"
	TrendDecreasing       = "decreasing"
	TrendStable           = "stable"
)

// SpendingPatterns summarizes positive transaction amounts.
type SpendingPatterns struct {
	AverageTransactionSize float64 `json:"averageTransactionSize"`
	LargestTransaction     float64 `json:"largestTransaction"`
	SmallestTransaction    float64 `json:"smallestTransaction"`
}

// TokenPreference counts transactions per denom.
type TokenPreference struct {
	Denom string `json:"denom"`
	Count int    `json:"count"`
}

// LastActivity describes the most recent transaction.
type LastActivity struct {
	Timestamp int64   `json:"timestamp"`
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
}

// Trend compares recent activity to the preceding period.
type Trend struct {
	Trend  string `json:"trend"`
	Change string `json:"change,omitempty"` // up | down | stable
}

// WalletMetrics is the derived behavior analysis of a wallet.
type WalletMetrics struct {
	TransactionCount int               `json:"transactionCount"`
	TotalVolume      float64           `json:"totalVolume"`
	ActivityLevel    string            `json:"activityLevel"`
	SpendingPatterns SpendingPatterns  `json:"spendingPatterns"`
	TokenPreferences []TokenPreference `json:"tokenPreferences"`
	RiskScore        int               `json:"riskScore"`
	BehaviorType     string            `json:"behaviorType"`
	UnusualActivity  []string          `json:"unusualActivity"`
	LastActivity     *LastActivity     `json:"lastActivity"`
	Trends           Trend             `json:"trends"`
}
