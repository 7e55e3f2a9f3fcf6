package domain

// NFTMovement is one mint or transfer in an NFT's history.
type NFTMovement struct {
	Type        string  `json:"type"` // mint | transfer
	From        string  `json:"from"`
	To          string  `json:"to"`
	Price       float64 `json:"price"`
	TxHash      string  `json:"transactionHash"`
	BlockHeight int64   `json:"blockHeight"`
	Timestamp   int64   `json:"timestamp"` // Unix ms
}

// UnixMilli implements Timestamped.
func (m NFTMovement) UnixMilli() int64 { return m.Timestamp }

// IsTransfer reports whether the movement is a transfer.
func (m NFTMovement) IsTransfer() bool { return m.Type == EventTypeTransfer }

// NFTAttribute is one metadata trait.
type NFTAttribute struct {
	Trait string `json:"trait"`
	Value string `json:"value"`
}

// NFTInfo is the upstream description of a token.
type NFTInfo struct {
	TokenID    string         `json:"tokenId"`
	Name       string         `json:"name"`
	Collection string         `json:"collection"`
	Image      string         `json:"image"`
	Attributes []NFTAttribute `json:"attributes"`
	Owner      string         `json:"owner"`
	MintDate   int64          `json:"mintDate"`
}

// NFTMarket is marketplace data for a token.
type NFTMarket struct {
	CurrentPrice  float64 `json:"currentPrice"`
	FloorPrice    float64 `json:"floorPrice"`
	LastSalePrice float64 `json:"lastSalePrice"`
	Offers        int     `json:"offers"`
	Views         int     `json:"views"`
}

// NFTSnapshot is the point-in-time view of an NFT.
type NFTSnapshot struct {
	NFTInfo
	Market      NFTMarket `json:"market"`
	LastUpdated int64     `json:"lastUpdated"`
}

// Rarity labels
const (
	RarityLegendary = "legendary"
	RarityRare      = "rare"
	RarityCommon    = "common"
)

// PriceChange compares the first and last transfer price.
type PriceChange struct {
	Change     float64 `json:"change"`
	Percentage float64 `json:"percentage"`
}

// HoldingPeriods summarizes gaps between transfers in ms.
type HoldingPeriods struct {
	Average  float64 `json:"average"`
	Shortest int64   `json:"shortest"`
	Longest  int64   `json:"longest"`
}

// NFTPerformance is the derived performance analysis of an NFT.
type NFTPerformance struct {
	TotalTransfers   int            `json:"totalTransfers"`
	TotalVolume      float64        `json:"totalVolume"`
	AveragePrice     float64        `json:"averagePrice"`
	PriceChange      PriceChange    `json:"priceChange"`
	HoldingPeriods   HoldingPeriods `json:"holdingPeriods"`
	Rarity           string         `json:"rarity"`
	MarketActivity   string         `json:"marketActivity"`
	PerformanceScore int            `json:"performanceScore"`
}

// MovementAnalytics summarizes movements inside a timeframe.
type MovementAnalytics struct {
	Timeframe      Timeframe `json:"timeframe"`
	TotalMovements int       `json:"totalMovements"`
	Transfers      int       `json:"transfers"`
	TotalVolume    float64   `json:"totalVolume"`
	AveragePrice   float64   `json:"averagePrice"`
	UniqueOwners   int       `json:"uniqueOwners"`
}

// OwnershipChange is a single change of hands.
type OwnershipChange struct {
	From      string  `json:"from"`
	To        string  `json:"to"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"`
}

// OwnershipAnalytics describes the ownership chain of an NFT.
type OwnershipAnalytics struct {
	CurrentOwner             string            `json:"currentOwner"`
	TotalOwners              int               `json:"totalOwners"`
	OwnershipHistory         []OwnershipChange `json:"ownershipHistory"`
	AverageOwnershipDuration float64           `json:"averageOwnershipDuration"` // ms
}

// NFTMetrics is the full derived analysis of an NFT.
type NFTMetrics struct {
	Performance NFTPerformance     `json:"performance"`
	Movements   MovementAnalytics  `json:"movements"`
	Ownership   OwnershipAnalytics `json:"ownership"`
}
