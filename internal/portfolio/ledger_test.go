package portfolio

import (
	"testing"
	"time"

	"github.com/Gfz-arka/MFE-5250/internal/event"
	"github.com/Gfz-arka/MFE-5250/internal/pkg/nullable"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type fakePrices struct {
	symbols []string
	close   map[string]nullable.Float
	date    time.Time
}

func (f *fakePrices) Symbols() []string { return f.symbols }

func (f *fakePrices) LatestValue(symbol, _ string) (nullable.Float, error) {
	return f.close[symbol], nil
}

func (f *fakePrices) LatestDate() time.Time { return f.date }

func newPrices(date string, closes map[string]float64, symbols ...string) *fakePrices {
	d, _ := time.Parse("2006-01-02", date)
	f := &fakePrices{symbols: symbols, close: map[string]nullable.Float{}, date: d}
	for s, v := range closes {
		f.close[s] = nullable.Of(v)
	}
	return f
}

func long(symbol string, price float64) event.SignalEvent {
	return event.SignalEvent{ID: 1, Symbol: symbol, Direction: event.DirectionLong, ReferencePrice: nullable.Of(price)}
}

func exit(symbol string, price float64) event.SignalEvent {
	return event.SignalEvent{ID: 2, Symbol: symbol, Direction: event.DirectionExit, ReferencePrice: nullable.Of(price)}
}

func fillFor(o *event.OrderEvent, price, fee float64) event.FillEvent {
	return event.FillEvent{OrderID: o.ID, Date: o.Date, Symbol: o.Symbol, Quantity: o.Quantity, Side: o.Side, FillCost: price, Commission: fee}
}

func TestLongSizingUsesSlots(t *testing.T) {
	prices := newPrices("2020-01-31", map[string]float64{"A": 7}, "A", "B")
	l := NewLedger(prices, Config{InitialCapital: 1000, Slots: 2})

	o, err := l.OnSignal(long("A", 7))
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, event.SideBuy, o.Side)
	assert.Equal(t, int64(71), o.Quantity) // floor(1000/2/7)
	assert.Equal(t, int64(1), o.SignalID)
	assert.Equal(t, event.OrderTypeMarket, o.OrderType)
}

func TestUndefinedPriceGivesZeroQuantity(t *testing.T) {
	prices := newPrices("2020-01-31", nil, "A")
	l := NewLedger(prices, Config{InitialCapital: 1000, Slots: 1})

	o, err := l.OnSignal(long("A", 0))
	require.NoError(t, err)
	require.NotNil(t, o, "order still emitted")
	assert.Zero(t, o.Quantity)

	sig := long("A", 1)
	sig.ReferencePrice = nullable.Null()
	o, err = l.OnSignal(sig)
	require.NoError(t, err)
	assert.Zero(t, o.Quantity)
	assert.Equal(t, 1000.0, l.Cash())
}

func TestSizingMatrix(t *testing.T) {
	prices := newPrices("2020-01-31", map[string]float64{"A": 10}, "A")
	l := NewLedger(prices, Config{InitialCapital: 1000, Slots: 1})

	o, err := l.OnSignal(exit("A", 10))
	require.NoError(t, err)
	assert.Nil(t, o, "EXIT while flat")

	short := event.SignalEvent{Symbol: "A", Direction: event.DirectionShort, ReferencePrice: nullable.Of(10)}
	o, err = l.OnSignal(short)
	require.NoError(t, err)
	assert.Nil(t, o, "shorting disabled")

	o, _ = l.OnSignal(long("A", 10))
	require.NoError(t, l.OnFill(fillFor(o, 10, 1.3)))
	assert.Equal(t, int64(100), l.Position("A"))

	o, err = l.OnSignal(long("A", 10))
	require.NoError(t, err)
	assert.Nil(t, o, "LONG while long")

	o, err = l.OnSignal(exit("A", 12))
	require.NoError(t, err)
	assert.Equal(t, event.SideSell, o.Side)
	assert.Equal(t, int64(100), o.Quantity)
	assert.Equal(t, 3, l.Skipped())
	assert.Equal(t, int64(2), o.ID)
}

func TestShortAndCover(t *testing.T) {
	prices := newPrices("2020-01-31", map[string]float64{"A": 10}, "A")
	l := NewLedger(prices, Config{InitialCapital: 1000, Slots: 1, AllowShort: true})

	o, err := l.OnSignal(event.SignalEvent{Symbol: "A", Direction: event.DirectionShort, ReferencePrice: nullable.Of(10)})
	require.NoError(t, err)
	assert.Equal(t, event.SideSell, o.Side)
	require.NoError(t, l.OnFill(fillFor(o, 10, 0)))
	assert.Equal(t, int64(-100), l.Position("A"))
	assert.Equal(t, 2000.0, l.Cash())

	o, err = l.OnSignal(exit("A", 9))
	require.NoError(t, err)
	assert.Equal(t, event.SideBuy, o.Side)
	assert.Equal(t, int64(100), o.Quantity)
	require.NoError(t, l.OnFill(fillFor(o, 9, 0)))
	assert.Equal(t, 1100.0, l.Cash())
}

func TestFillUpdatesCashWithCommission(t *testing.T) {
	prices := newPrices("2020-01-31", map[string]float64{"A": 10}, "A")
	l := NewLedger(prices, Config{InitialCapital: 1000, Slots: 1})
	o, _ := l.OnSignal(long("A", 10))
	require.NoError(t, l.OnFill(fillFor(o, 10, 1.3)))
	assert.InDelta(t, -1.3, l.Cash(), 1e-9, "commission may push cash below zero")

	o, _ = l.OnSignal(exit("A", 11))
	require.NoError(t, l.OnFill(fillFor(o, 11, 1.3)))
	assert.InDelta(t, 1097.4, l.Cash(), 1e-9)
	assert.Zero(t, l.Position("A"))
}

func TestUnknownSymbol(t *testing.T) {
	l := NewLedger(newPrices("2020-01-31", nil, "A"), Config{InitialCapital: 1, Slots: 1})
	_, err := l.OnSignal(long("Z", 1))
	assert.ErrorIs(t, err, ErrUnknownSymbol)
	err = l.OnFill(event.FillEvent{Symbol: "Z", Quantity: 1, Side: event.SideBuy})
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestMarkToMarketAndSameDateReplace(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := newPrices("2020-01-31", map[string]float64{"A": 10}, "A")
	l := NewLedger(prices, Config{InitialCapital: 1000, Slots: 1, Start: start})

	require.NoError(t, l.UpdateTimeIndex())
	o, _ := l.OnSignal(long("A", 10))
	require.NoError(t, l.OnFill(fillFor(o, 10, 0)))
	prices.close["A"] = nullable.Of(12)
	require.NoError(t, l.UpdateTimeIndex())

	curve := l.EquityCurve()
	require.Len(t, curve, 2, "initial point plus one date")
	assert.Equal(t, 1200.0, curve[1].Total)
	assert.Equal(t, 1200.0, curve[1].Holdings["A"])
	assert.Zero(t, curve[1].Cash)

	prices.date = prices.date.AddDate(0, 1, 0)
	prices.close["A"] = nullable.Of(6)
	require.NoError(t, l.UpdateTimeIndex())

	curve = l.Finalize()
	require.Len(t, curve, 3)
	assert.InDelta(t, 0.2, curve[1].Returns, 1e-12)
	assert.InDelta(t, -0.5, curve[2].Returns, 1e-12)
	assert.InDelta(t, 0.6, curve[2].Equity, 1e-12)
	assert.ErrorIs(t, l.UpdateTimeIndex(), ErrFinalized)
	assert.True(t, l.Finalized())
}

func TestPropertyLongQuantityIsFloor(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cash := float64(rapid.IntRange(0, 1_000_000).Draw(t, "cash"))
		slots := rapid.IntRange(1, 20).Draw(t, "slots")
		cents := rapid.IntRange(1, 100_000).Draw(t, "cents")
		price := float64(cents) / 100

		l := NewLedger(newPrices("2020-01-31", nil, "A"), Config{InitialCapital: cash, Slots: slots})
		o, err := l.OnSignal(long("A", price))
		if err != nil || o == nil {
			t.Fatalf("order missing: %v", err)
		}
		// 以整数分计算精确值
		want := int64(cash) * 100 / (int64(slots) * int64(cents))
		if o.Quantity != want {
			t.Fatalf("cash=%v slots=%d price=%v qty=%d want=%d", cash, slots, price, o.Quantity, want)
		}
	})
}
