package metrics

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sei-tracker/internal/domain"
)

func moveAgo(kind string, ago time.Duration, from, to string, price float64) domain.NFTMovement {
	return domain.NFTMovement{
		Type:      kind,
		From:      from,
		To:        to,
		Price:     price,
		Timestamp: testNow.Add(-ago).UnixMilli(),
	}
}

func TestPerformance_MintThenSingleTransfer(t *testing.T) {
	history := []domain.NFTMovement{
		moveAgo(domain.EventTypeMint, time.Hour, "", "sei1creator", 0),
		moveAgo(domain.EventTypeTransfer, time.Minute, "sei1creator", "sei1buyer", 100),
	}

	p := Performance(history, testNow)

	assert.Equal(t, 1, p.TotalTransfers)
	assert.InDelta(t, 100, p.TotalVolume, 1e-9)
	assert.InDelta(t, 100, p.AveragePrice, 1e-9)
	assert.Zero(t, p.PriceChange.Percentage)
	assert.Zero(t, p.PriceChange.Change)
	assert.Equal(t, domain.HoldingPeriods{}, p.HoldingPeriods)
	assert.Equal(t, domain.RarityCommon, p.Rarity)
	assert.Equal(t, domain.ActivityLow, p.MarketActivity)
	// base 50 + recent activity 5
	assert.Equal(t, 55, p.PerformanceScore)
}

func TestPriceChangeOf_IgnoresUnpricedTransfers(t *testing.T) {
	history := []domain.NFTMovement{
		moveAgo(domain.EventTypeTransfer, 4*day, "a", "b", 0),
		moveAgo(domain.EventTypeTransfer, 3*day, "b", "c", 100),
		moveAgo(domain.EventTypeTransfer, 2*day, "c", "d", 250),
	}

	pc := PriceChangeOf(history)

	assert.InDelta(t, 150, pc.Change, 1e-9)
	assert.InDelta(t, 150, pc.Percentage, 1e-9)
}

func TestPerformanceScore_PriceBonusIsExclusive(t *testing.T) {
	// Old transfers, no recent activity, doubling-plus price
	history := []domain.NFTMovement{
		moveAgo(domain.EventTypeTransfer, 60*day, "a", "b", 100),
		moveAgo(domain.EventTypeTransfer, 40*day, "b", "c", 300),
	}
	assert.Equal(t, 70, PerformanceScore(history, testNow))

	history[1].Price = 160
	assert.Equal(t, 65, PerformanceScore(history, testNow))

	history[1].Price = 110
	assert.Equal(t, 60, PerformanceScore(history, testNow))

	history[1].Price = 90
	assert.Equal(t, 50, PerformanceScore(history, testNow))
}

func TestPerformanceScore_TransferCountBonuses(t *testing.T) {
	var history []domain.NFTMovement
	for i := 0; i < 11; i++ {
		history = append(history, moveAgo(domain.EventTypeTransfer, time.Duration(60-i)*day, "a", "b", 10))
	}
	// 50 + 15 + 10, flat price, nothing in the last week
	assert.Equal(t, 75, PerformanceScore(history, testNow))
}

func TestPerformanceScore_AlwaysInRange(t *testing.T) {
	assert.Equal(t, 50, PerformanceScore(nil, testNow))

	rng := rand.New(rand.NewSource(3))
	types := []string{domain.EventTypeMint, domain.EventTypeTransfer, "burn"}
	for i := 0; i < 300; i++ {
		history := make([]domain.NFTMovement, rng.Intn(60))
		for j := range history {
			history[j] = moveAgo(types[rng.Intn(len(types))],
				time.Duration(rng.Intn(800))*day, "a", "b", rng.Float64()*2000-500)
		}
		score := PerformanceScore(history, testNow)
		require.GreaterOrEqual(t, score, 0)
		require.LessOrEqual(t, score, 100)
	}
}

func TestRarity(t *testing.T) {
	legendary := []domain.NFTMovement{
		moveAgo(domain.EventTypeMint, 400*day, "", "a", 0),
		moveAgo(domain.EventTypeTransfer, time.Hour, "a", "b", 10),
	}
	assert.Equal(t, domain.RarityLegendary, Rarity(legendary))

	rare := []domain.NFTMovement{
		moveAgo(domain.EventTypeMint, 200*day, "", "a", 0),
		moveAgo(domain.EventTypeTransfer, 100*day, "a", "b", 10),
		moveAgo(domain.EventTypeTransfer, time.Hour, "b", "c", 10),
	}
	assert.Equal(t, domain.RarityRare, Rarity(rare))

	assert.Equal(t, domain.RarityCommon, Rarity(rare[:1]))
}

func TestHoldingPeriodsOf(t *testing.T) {
	history := []domain.NFTMovement{
		moveAgo(domain.EventTypeMint, 10*day, "", "a", 0),
		moveAgo(domain.EventTypeTransfer, 9*day, "a", "b", 1),
		moveAgo(domain.EventTypeTransfer, 7*day, "b", "c", 1),
		moveAgo(domain.EventTypeTransfer, 6*day, "c", "d", 1),
	}

	hp := HoldingPeriodsOf(history)

	assert.Equal(t, day.Milliseconds(), hp.Shortest)
	assert.Equal(t, (2 * day).Milliseconds(), hp.Longest)
	assert.InDelta(t, float64((3*day).Milliseconds())/2, hp.Average, 1e-6)
}

func TestMovements_Timeframe(t *testing.T) {
	history := []domain.NFTMovement{
		moveAgo(domain.EventTypeMint, 100*day, "", "a", 0),
		moveAgo(domain.EventTypeTransfer, 20*day, "a", "b", 40),
		moveAgo(domain.EventTypeTransfer, 2*day, "b", "c", 60),
	}

	week := Movements(history, domain.Timeframe7d, testNow)
	assert.Equal(t, 1, week.TotalMovements)
	assert.Equal(t, 2, week.UniqueOwners)
	assert.InDelta(t, 60, week.AveragePrice, 1e-9)

	all := Movements(history, domain.TimeframeAll, testNow)
	assert.Equal(t, 3, all.TotalMovements)
	assert.Equal(t, 2, all.Transfers)
	assert.Equal(t, 3, all.UniqueOwners)
	assert.InDelta(t, 50, all.AveragePrice, 1e-9)
}

func TestOwnership(t *testing.T) {
	history := []domain.NFTMovement{
		moveAgo(domain.EventTypeMint, 10*day, "", "a", 0),
	}
	for i := 0; i < 12; i++ {
		history = append(history, moveAgo(domain.EventTypeTransfer, time.Duration(9-i/2)*day, "", string(rune('b'+i)), 5))
	}

	o := Ownership(history)

	assert.Equal(t, "m", o.CurrentOwner)
	assert.Equal(t, 13, o.TotalOwners)
	assert.Len(t, o.OwnershipHistory, 10)
	assert.Equal(t, "m", o.OwnershipHistory[9].To)

	empty := Ownership(nil)
	assert.Empty(t, empty.CurrentOwner)
	assert.NotNil(t, empty.OwnershipHistory)
}
