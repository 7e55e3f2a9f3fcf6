package domain

import "github.com/shopspring/decimal"

// FlowRecord is one inflow/outflow sample for a coin.
type FlowRecord struct {
	Timestamp int64   `json:"timestamp"` // Unix ms
	Inflow    float64 `json:"inflow"`
	Outflow   float64 `json:"outflow"`
	NetFlow   float64 `json:"netFlow"`
	Volume    float64 `json:"volume"`
	TxHash    string  `json:"transactionHash,omitempty"`
}

// UnixMilli implements Timestamped.
func (f FlowRecord) UnixMilli() int64 { return f.Timestamp }

// NewFlowRecord derives net flow and volume from inflow/outflow.
func NewFlowRecord(ts int64, inflow, outflow float64, hash string) FlowRecord {
	return FlowRecord{
		Timestamp: ts,
		Inflow:    inflow,
		Outflow:   outflow,
		NetFlow:   inflow - outflow,
		Volume:    inflow + outflow,
		TxHash:    hash,
	}
}

// Holder is a coin holder as reported by the upstream feed.
type Holder struct {
	Address      string  `json:"address"`
	Balance      float64 `json:"balance"`
	LastActivity int64   `json:"lastActivity,omitempty"`
}

// Whale is a holder in the top decile by balance.
type Whale struct {
	Address      string  `json:"address"`
	Balance      float64 `json:"balance"`
	Percentage   float64 `json:"percentage"` // share of total supply, 0-100
	LastActivity int64   `json:"lastActivity,omitempty"`
}

// TokenInfo is the static and market description of a coin.
type TokenInfo struct {
	Symbol            string          `json:"symbol"`
	Name              string          `json:"name"`
	Denom             string          `json:"denom"`
	Decimals          int             `json:"decimals"`
	Price             decimal.Decimal `json:"price"`
	MarketCap         decimal.Decimal `json:"marketCap"`
	Volume24h         decimal.Decimal `json:"volume24h"`
	PriceChange24h    float64         `json:"priceChange24h"`
	PriceChange7d     float64         `json:"priceChange7d"`
	TotalSupply       decimal.Decimal `json:"totalSupply"`
	CirculatingSupply decimal.Decimal `json:"circulatingSupply"`
}

// CoinSnapshot is the point-in-time view of a coin.
type CoinSnapshot struct {
	TokenInfo
	Whales            []Whale `json:"whales"`
	WhalesRefreshedAt int64   `json:"whalesRefreshedAt"` // Unix ms
	LastUpdated       int64   `json:"lastUpdated"`
}

// FlowSummary aggregates flow records over a timeframe.
type FlowSummary struct {
	Timeframe      Timeframe `json:"timeframe"`
	TotalInflow    float64   `json:"totalInflow"`
	TotalOutflow   float64   `json:"totalOutflow"`
	NetFlow        float64   `json:"netFlow"`
	TotalVolume    float64   `json:"totalVolume"`
	FlowRatio      float64   `json:"flowRatio"`
	AverageInflow  float64   `json:"averageInflow"`
	AverageOutflow float64   `json:"averageOutflow"`
	DataPoints     int       `json:"dataPoints"`
}

// WhaleAnalytics summarizes the whale set of a coin.
type WhaleAnalytics struct {
	WhaleCount          int     `json:"whaleCount"`
	TotalWhaleBalance   float64 `json:"totalWhaleBalance"`
	AverageWhaleBalance float64 `json:"averageWhaleBalance"`
	TopWhale            *Whale  `json:"topWhale"`
	WhaleConcentration  float64 `json:"whaleConcentration"`
	Distribution        []Whale `json:"distribution"`
}

// CoinMetrics is the derived flow and whale analysis of a coin.
type CoinMetrics struct {
	Flow24h            FlowSummary    `json:"flow24h"`
	Flow7d             FlowSummary    `json:"flow7d"`
	Whales             WhaleAnalytics `json:"whales"`
	WhaleConcentration float64        `json:"whaleConcentration"`
}
