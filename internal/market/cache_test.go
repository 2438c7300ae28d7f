package market

import (
	"context"
	"testing"

	"github.com/Gfz-arka/MFE-5250/internal/pkg/nullable"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheRoundTripKeepsNulls(t *testing.T) {
	ctx := context.Background()
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	bars := []Bar{
		{Date: day("2020-01-02"), Open: 1, High: 2, Low: 0.5, Close: 1.5, Factor: nullable.Of(3)},
		{Date: day("2020-01-03"), Open: 1.5, High: 2, Low: 1, Close: 1.8, PctChange: nullable.Of(0.2)},
	}
	table, err := NewTable("PE", []string{"AAA"}, map[string][]Bar{"AAA": bars})
	require.NoError(t, err)
	require.NoError(t, cache.SaveTable(ctx, table))

	m, err := cache.Manifest(ctx, "AAA")
	require.NoError(t, err)
	assert.Equal(t, int64(2), m.Rows)
	assert.Equal(t, "PE", m.Factor)
	assert.Equal(t, "2020-01-02", m.MinDate)

	restored, err := cache.LoadTable(ctx, []string{"AAA"}, "PE", day("2020-01-03"))
	require.NoError(t, err)
	got, _ := restored.Bars("AAA")
	require.Len(t, got, 1)
	assert.True(t, got[0].Factor.IsNull())
	assert.Equal(t, 0.2, got[0].PctChange.Or(0))

	_, err = cache.LoadTable(ctx, []string{"AAA"}, "PB", day("2020-01-01"))
	assert.Error(t, err)
}
