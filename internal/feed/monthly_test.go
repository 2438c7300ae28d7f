package feed

import (
	"testing"
	"time"

	"github.com/Gfz-arka/MFE-5250/internal/market"
	"github.com/Gfz-arka/MFE-5250/internal/pkg/nullable"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation(market.DateLayout, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func bars(closeBase float64, dates ...string) []market.Bar {
	out := make([]market.Bar, len(dates))
	for i, d := range dates {
		c := closeBase + float64(i)
		out[i] = market.Bar{Date: day(d), Open: c, High: c, Low: c, Close: c, Factor: nullable.Of(c)}
	}
	return out
}

func newTable(t *testing.T, series map[string][]market.Bar, symbols ...string) *market.Table {
	t.Helper()
	table, err := market.NewTable("pe", symbols, series)
	require.NoError(t, err)
	return table
}

// drain 推进直到数据耗尽，返回每次 tick 时的"当前月"。
func drain(f *Monthly) []market.Month {
	var months []market.Month
	for f.Continue() {
		if f.Step() {
			months = append(months, f.CurrentMonth())
		}
	}
	return months
}

func TestStepEmitsOneTickPerMonth(t *testing.T) {
	table := newTable(t, map[string][]market.Bar{
		"A": bars(10, "2020-01-30", "2020-01-31", "2020-02-03", "2020-02-28", "2020-03-02", "2020-03-03"),
		"B": bars(20, "2020-01-30", "2020-01-31", "2020-02-03", "2020-02-28", "2020-03-02", "2020-03-03"),
	}, "A", "B")
	f := NewMonthly(table, day("2020-01-30"))

	months := drain(f)
	assert.Equal(t, []market.Month{{Year: 2020, Month: time.February}, {Year: 2020, Month: time.March}}, months)
	assert.Equal(t, 2, f.Diagnostics().Ticks)
}

func TestTickHappensAtMonthEndWithNextBarBuffered(t *testing.T) {
	table := newTable(t, map[string][]market.Bar{
		"A": bars(10, "2020-01-30", "2020-01-31", "2020-02-03"),
	}, "A")
	f := NewMonthly(table, time.Time{})

	assert.False(t, f.Step())
	assert.False(t, f.Step())
	require.True(t, f.Step())
	b, err := f.LatestBar("A")
	require.NoError(t, err)
	assert.Equal(t, day("2020-01-31"), b.Date, "ranking sees the last bar of the finished month")

	assert.False(t, f.Step(), "promoting the buffered bar does not tick again")
	b, _ = f.LatestBar("A")
	assert.Equal(t, day("2020-02-03"), b.Date)
}

func TestAsynchronousCalendarsStillTickOnce(t *testing.T) {
	// B 在 1 月多一个交易日，跨月时落后 A 一步
	table := newTable(t, map[string][]market.Bar{
		"A": bars(10, "2020-01-30", "2020-02-03", "2020-02-04", "2020-02-05"),
		"B": bars(20, "2020-01-29", "2020-01-30", "2020-02-03", "2020-02-04"),
	}, "A", "B")
	f := NewMonthly(table, day("2020-01-01"))

	months := drain(f)
	assert.Len(t, months, 1)
	bs, err := f.LatestBars("B", 10)
	require.NoError(t, err)
	assert.Len(t, bs, 4)
}

func TestExhaustionStopsFeed(t *testing.T) {
	table := newTable(t, map[string][]market.Bar{
		"A": bars(10, "2020-01-30", "2020-01-31", "2020-02-03", "2020-02-04"),
		"B": bars(20, "2020-01-30"),
	}, "A", "B")
	f := NewMonthly(table, time.Time{})
	assert.False(t, f.Step())
	assert.True(t, f.Continue())
	f.Step()
	assert.False(t, f.Continue())
}

func TestZeroBarSymbolStopsHarmlessly(t *testing.T) {
	table := newTable(t, map[string][]market.Bar{
		"A": bars(10, "2020-01-30", "2020-02-03"),
	}, "A", "EMPTY")
	f := NewMonthly(table, day("2020-01-01"))
	assert.False(t, f.Step())
	assert.False(t, f.Continue())
	v, err := f.LatestValue("EMPTY", "close")
	require.NoError(t, err)
	assert.True(t, v.IsNull())
	_, err = f.LatestBar("EMPTY")
	assert.ErrorIs(t, err, ErrNoBars)
}

func TestUnknownSymbolIsFatal(t *testing.T) {
	table := newTable(t, map[string][]market.Bar{"A": bars(10, "2020-01-30")}, "A")
	f := NewMonthly(table, time.Time{})
	_, err := f.LatestBar("ZZZ")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
	_, err = f.LatestBars("ZZZ", 3)
	assert.ErrorIs(t, err, ErrUnknownSymbol)
	_, err = f.LatestValue("ZZZ", "close")
	assert.ErrorIs(t, err, ErrUnknownSymbol)
}

func TestLatestBarsReturnsFewerWhenHistoryShort(t *testing.T) {
	table := newTable(t, map[string][]market.Bar{"A": bars(10, "2020-01-29", "2020-01-30", "2020-01-31")}, "A")
	f := NewMonthly(table, time.Time{})
	f.Step()
	f.Step()
	got, err := f.LatestBars("A", 5)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	vals, err := f.LatestValues("A", "close", 5)
	require.NoError(t, err)
	assert.Equal(t, []nullable.Float{nullable.Of(10), nullable.Of(11)}, vals)
}

func TestFactorNACountedOnFirstMonthOnly(t *testing.T) {
	a := bars(10, "2020-01-31", "2020-02-03", "2020-02-28", "2020-03-02")
	b := bars(20, "2020-01-31", "2020-02-03", "2020-02-28", "2020-03-02")
	b[0].Factor = nullable.Null()
	a[2].Factor = nullable.Null()
	table := newTable(t, map[string][]market.Bar{"A": a, "B": b}, "A", "B")
	f := NewMonthly(table, day("2020-01-31"))

	drain(f)
	d := f.Diagnostics()
	assert.Equal(t, 1, d.FactorNA)
	assert.Equal(t, []string{"B"}, d.FactorNASymbols)
}

func TestResetRewinds(t *testing.T) {
	table := newTable(t, map[string][]market.Bar{
		"A": bars(10, "2020-01-30", "2020-01-31", "2020-02-03", "2020-03-02"),
	}, "A")
	f := NewMonthly(table, time.Time{})
	first := drain(f)
	require.False(t, f.Continue())

	f.Reset()
	assert.True(t, f.Continue())
	_, err := f.LatestBar("A")
	assert.ErrorIs(t, err, ErrNoBars)
	assert.Equal(t, first, drain(f))
}

func TestPropertyAtMostOneTickPerMonth(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nSym := rapid.IntRange(1, 4).Draw(t, "symbols")
		series := make(map[string][]market.Bar, nSym)
		symbols := make([]string, nSym)
		for i := range symbols {
			sym := string(rune('A' + i))
			symbols[i] = sym
			d := day("2020-01-01")
			n := rapid.IntRange(0, 120).Draw(t, "bars")
			list := make([]market.Bar, 0, n)
			for j := 0; j < n; j++ {
				d = d.AddDate(0, 0, rapid.IntRange(1, 20).Draw(t, "gap"))
				list = append(list, market.Bar{Date: d, Close: 1})
			}
			series[sym] = list
		}
		table, err := market.NewTable("close", symbols, series)
		if err != nil {
			t.Fatal(err)
		}
		f := NewMonthly(table, day("2020-01-01"))
		seen := map[market.Month]bool{}
		for steps := 0; f.Continue(); steps++ {
			if steps > 10000 {
				t.Fatal("feed did not terminate")
			}
			if !f.Step() {
				continue
			}
			m := f.CurrentMonth()
			if seen[m] {
				t.Fatalf("second tick for %s", m)
			}
			seen[m] = true
		}
	})
}
