package execution

import (
	"testing"
	"time"

	"github.com/Gfz-arka/MFE-5250/internal/event"
	"github.com/Gfz-arka/MFE-5250/internal/pkg/nullable"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTieredCommission(t *testing.T) {
	cases := []struct {
		qty  int64
		want float64
	}{
		{1, 1.3},
		{100, 1.3},
		{200, 2.6},
		{500, 6.5},
		{501, 4.008},
		{1000, 8},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, TieredCommission(c.qty), 1e-9, "qty=%d", c.qty)
	}
}

func TestCommissionFromConfig(t *testing.T) {
	assert.Equal(t, 0.0, CommissionFromConfig(0)(1000))
	assert.Equal(t, 2.5, CommissionFromConfig(2.5)(1))
	assert.InDelta(t, 8.0, CommissionFromConfig(-1)(1000), 1e-9)
}

func TestExecuteFillsAtReferencePrice(t *testing.T) {
	d := time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)
	sim := NewSimulator(nil)
	fill := sim.Execute(event.OrderEvent{
		ID: 7, SignalID: 3, Date: d, Symbol: "A", Quantity: 50, Side: event.SideBuy,
		ReferencePrice: nullable.Of(10), Direction: event.DirectionLong,
	})
	require.NotNil(t, fill)
	assert.Equal(t, int64(7), fill.OrderID)
	assert.Equal(t, 10.0, fill.FillCost)
	assert.Equal(t, 1.3, fill.Commission)
	assert.Equal(t, 500.0, fill.Notional())

	recs := sim.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, Record{Date: d, Symbol: "A", Direction: event.DirectionLong, Side: event.SideBuy, Quantity: 50, Price: 10, Commission: 1.3, SignalID: 3, OrderID: 7}, recs[0])
}

func TestExecuteRejects(t *testing.T) {
	sim := NewSimulator(FixedCommission(1))
	assert.Nil(t, sim.Execute(event.OrderEvent{Symbol: "A", Quantity: 0, ReferencePrice: nullable.Of(10)}))
	assert.Nil(t, sim.Execute(event.OrderEvent{Symbol: "A", Quantity: 5, ReferencePrice: nullable.Null()}))
	assert.Nil(t, sim.Execute(event.OrderEvent{Symbol: "A", Quantity: 5, ReferencePrice: nullable.Of(0)}))
	assert.Equal(t, 3, sim.Rejected())
	assert.Empty(t, sim.Records())
}
