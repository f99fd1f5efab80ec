package station_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifleet/voucher-engine/station"
	"github.com/unifleet/voucher-engine/voucher"
)

func newTestRegistry(t *testing.T) *station.Registry {
	r, err := station.New(filepath.Join(t.TempDir(), "station_prices.json"))
	require.NoError(t, err)
	return r
}

func TestNew_SeedsDefaults(t *testing.T) {
	r := newTestRegistry(t)

	stations, err := r.List()
	require.NoError(t, err)
	require.NotEmpty(t, stations)

	s, err := r.Get("cleanfuel_valenzuela")
	require.NoError(t, err)
	assert.Equal(t, "Cleanfuel", s.Brand)
	assert.True(t, s.Price.Equal(decimal.RequireFromString("60.0")))
}

func TestGet_Unknown(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Get("no_such_station")
	require.Error(t, err)
	assert.True(t, voucher.IsNotFound(err))
}

func TestSetPrice(t *testing.T) {
	fixed := time.Date(2025, time.September, 1, 8, 0, 0, 0, time.UTC)
	r := newTestRegistry(t).WithClock(func() time.Time { return fixed })

	s, err := r.SetPrice("seaoil_bicutan", decimal.RequireFromString("61.456"))
	require.NoError(t, err)
	assert.True(t, s.Price.Equal(decimal.RequireFromString("61.46")), "rounds to 2 decimals")
	assert.Equal(t, fixed.Unix(), s.UpdatedAt)

	// The change persists across a fresh read.
	got, err := r.Get("seaoil_bicutan")
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("61.46")))
}

func TestSetPrice_Validation(t *testing.T) {
	r := newTestRegistry(t)

	for _, raw := range []string{"0", "-1", "200.01", "5000"} {
		_, err := r.SetPrice("seaoil_bicutan", decimal.RequireFromString(raw))
		require.Error(t, err, "price %s", raw)
		assert.ErrorIs(t, err, voucher.ErrInvalidValue, "price %s", raw)
	}

	// The boundary itself is allowed.
	_, err := r.SetPrice("seaoil_bicutan", decimal.RequireFromString("200"))
	assert.NoError(t, err)
}

func TestSetPrice_UnknownStation(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.SetPrice("no_such_station", decimal.RequireFromString("60"))
	assert.True(t, voucher.IsNotFound(err))
}

func TestResolve(t *testing.T) {
	r := newTestRegistry(t)

	// By id.
	s, ok := r.Resolve("unioil_mandaluyong")
	require.True(t, ok)
	assert.Equal(t, "unioil_mandaluyong", s.ID)

	// By display name with a different dash character.
	s, ok = r.Resolve("Unioil - Mandaluyong")
	require.True(t, ok)
	assert.Equal(t, "unioil_mandaluyong", s.ID)

	// By slug of the display name.
	s, ok = r.Resolve("UNIOIL MANDALUYONG")
	require.True(t, ok)
	assert.Equal(t, "unioil_mandaluyong", s.ID)

	_, ok = r.Resolve("Shell - Katipunan")
	assert.False(t, ok)
}

func TestResolveByName(t *testing.T) {
	r := newTestRegistry(t)

	s, ok := r.ResolveByName("cleanfuel – valenzuela")
	require.True(t, ok)
	assert.Equal(t, "cleanfuel_valenzuela", s.ID)

	// Name-only: ids do not match here.
	_, ok = r.ResolveByName("cleanfuel_valenzuela")
	assert.False(t, ok)
}

func TestUpsert(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Upsert(station.Station{ID: "shell_katipunan"})
	assert.Error(t, err, "name is required")

	s, err := r.Upsert(station.Station{
		ID:    "shell_katipunan",
		Brand: "Shell",
		Name:  "Shell – Katipunan",
		Price: decimal.RequireFromString("59.5"),
	})
	require.NoError(t, err)
	assert.NotZero(t, s.UpdatedAt)

	got, err := r.Get("shell_katipunan")
	require.NoError(t, err)
	assert.Equal(t, "Shell", got.Brand)
}

func TestHistoryAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_history.csv")
	h, err := station.NewHistory(path)
	require.NoError(t, err)

	require.NoError(t, h.Append(station.PriceChange{
		UpdatedUnix: 1756654640,
		StationID:   "seaoil_bicutan",
		OldPrice:    decimal.NullDecimal{Decimal: decimal.RequireFromString("58.9"), Valid: true},
		NewPrice:    decimal.RequireFromString("59.2"),
		Actor:       "ops",
		UserAgent:   "test",
	}))
	require.NoError(t, h.Append(station.PriceChange{
		UpdatedUnix: 1756654700,
		StationID:   "seaoil_bicutan",
		NewPrice:    decimal.RequireFromString("59.4"),
		Actor:       "ops",
	}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two changes")
	assert.Equal(t, "station_id", rows[0][2])
	assert.Equal(t, "seaoil_bicutan", rows[1][2])
	assert.Equal(t, "59.2", rows[1][4])
	assert.Equal(t, "", rows[2][3], "missing old price stays blank")
}
