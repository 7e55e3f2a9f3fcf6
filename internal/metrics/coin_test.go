package metrics

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sei-tracker/internal/domain"
)

func flowAgo(ago time.Duration, in, out float64) domain.FlowRecord {
	return domain.NewFlowRecord(testNow.Add(-ago).UnixMilli(), in, out, "")
}

func TestSummarizeFlows_Window(t *testing.T) {
	history := []domain.FlowRecord{
		flowAgo(48*time.Hour, 9999, 0), // outside 24h
		flowAgo(3*time.Hour, 1000, 500),
		flowAgo(time.Hour/2, 3000, 1500),
	}

	s := SummarizeFlows(history, domain.Timeframe24h, testNow)

	assert.Equal(t, domain.Timeframe24h, s.Timeframe)
	assert.Equal(t, 2, s.DataPoints)
	assert.InDelta(t, 4000, s.TotalInflow, 1e-9)
	assert.InDelta(t, 2000, s.TotalOutflow, 1e-9)
	assert.InDelta(t, 2000, s.NetFlow, 1e-9)
	assert.InDelta(t, 6000, s.TotalVolume, 1e-9)
	assert.InDelta(t, 2.0, s.FlowRatio, 1e-9)
	assert.InDelta(t, 2000, s.AverageInflow, 1e-9)
	assert.InDelta(t, 1000, s.AverageOutflow, 1e-9)

	hour := SummarizeFlows(history, domain.Timeframe1h, testNow)
	assert.Equal(t, 1, hour.DataPoints)

	all := SummarizeFlows(history, domain.TimeframeAll, testNow)
	assert.Equal(t, 3, all.DataPoints)
}

func TestSummarizeFlows_RatioFloorsOutflowAtOne(t *testing.T) {
	s := SummarizeFlows([]domain.FlowRecord{flowAgo(time.Minute, 50, 0)}, domain.Timeframe1h, testNow)
	assert.InDelta(t, 50, s.FlowRatio, 1e-9)

	empty := SummarizeFlows(nil, domain.Timeframe24h, testNow)
	assert.Equal(t, 0, empty.DataPoints)
	assert.Zero(t, empty.FlowRatio)
}

func TestSummarizeFlows_AddingRecordShiftsNetFlow(t *testing.T) {
	history := []domain.FlowRecord{
		flowAgo(5*time.Hour, 1200, 800),
		flowAgo(2*time.Hour, 700, 900),
	}
	before := SummarizeFlows(history, domain.Timeframe24h, testNow)

	history = append(history, flowAgo(0, 5000, 1000))
	after := SummarizeFlows(history, domain.Timeframe24h, testNow)

	assert.InDelta(t, before.NetFlow+4000, after.NetFlow, 1e-9)
}

func TestFlowFromTransfer(t *testing.T) {
	in, out := FlowFromTransfer("", "sei1to", 100)
	assert.Equal(t, 100.0, in)
	assert.Equal(t, 0.0, out)

	in, out = FlowFromTransfer("sei1from", "", 100)
	assert.Equal(t, 0.0, in)
	assert.Equal(t, 100.0, out)

	in, out = FlowFromTransfer("sei1from", "sei1to", 100)
	assert.Equal(t, 50.0, in)
	assert.Equal(t, 50.0, out)
}

func TestSelectWhales_TopDecile(t *testing.T) {
	var holders []domain.Holder
	for i := 1; i <= 15; i++ {
		holders = append(holders, domain.Holder{Address: string(rune('a' + i)), Balance: float64(i * 100)})
	}

	whales := SelectWhales(holders, 10000)

	// ceil(15 * 0.1) = 2
	require.Len(t, whales, 2)
	assert.Equal(t, 1500.0, whales[0].Balance)
	assert.Equal(t, 1400.0, whales[1].Balance)
	assert.InDelta(t, 15.0, whales[0].Percentage, 1e-9)
	assert.InDelta(t, 29.0, WhaleConcentration(whales), 1e-9)
}

func TestSelectWhales_ZeroSupply(t *testing.T) {
	whales := SelectWhales([]domain.Holder{{Address: "a", Balance: 10}}, 0)
	require.Len(t, whales, 1)
	assert.Zero(t, whales[0].Percentage)
	assert.Nil(t, SelectWhales(nil, 100))
}

func TestWhaleConcentration_NeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		holders := make([]domain.Holder, rng.Intn(40))
		for j := range holders {
			holders[j] = domain.Holder{Balance: rng.Float64()*2e6 - 1e6}
		}
		supply := rng.Float64()*2e6 - 5e5
		c := WhaleConcentration(SelectWhales(holders, supply))
		require.GreaterOrEqual(t, c, 0.0)
	}
}

func TestAnalyzeWhales(t *testing.T) {
	whales := []domain.Whale{
		{Address: "w1", Balance: 600, Percentage: 6},
		{Address: "w2", Balance: 400, Percentage: 4},
	}

	a := AnalyzeWhales(whales)

	assert.Equal(t, 2, a.WhaleCount)
	assert.InDelta(t, 1000, a.TotalWhaleBalance, 1e-9)
	assert.InDelta(t, 500, a.AverageWhaleBalance, 1e-9)
	assert.InDelta(t, 10, a.WhaleConcentration, 1e-9)
	require.NotNil(t, a.TopWhale)
	assert.Equal(t, "w1", a.TopWhale.Address)

	empty := AnalyzeWhales(nil)
	assert.Nil(t, empty.TopWhale)
	assert.Empty(t, empty.Distribution)
}
