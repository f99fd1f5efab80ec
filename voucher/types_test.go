package voucher_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifleet/voucher-engine/voucher"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    voucher.Status
		wantErr bool
	}{
		{"Unverified", voucher.StatusUnverified, false},
		{"Unredeemed", voucher.StatusUnredeemed, false},
		{"Redeemed", voucher.StatusRedeemed, false},
		{"", voucher.StatusUnverified, false},
		{"  Redeemed  ", voucher.StatusRedeemed, false},
		{"unredeemed", "", true},
		{"Cancelled", "", true},
	}
	for _, tt := range tests {
		got, err := voucher.ParseStatus(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			assert.ErrorIs(t, err, voucher.ErrInvalidValue)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestStatusNormalize(t *testing.T) {
	assert.Equal(t, voucher.StatusUnverified, voucher.Status("").Normalize())
	assert.Equal(t, voucher.StatusUnverified, voucher.Status("  ").Normalize())
	assert.Equal(t, voucher.StatusRedeemed, voucher.StatusRedeemed.Normalize())
}

func TestNewVoucherID(t *testing.T) {
	now := time.Date(2025, time.September, 1, 12, 0, 0, 0, time.UTC)
	id := voucher.NewVoucherID(now)

	require.True(t, strings.HasPrefix(id, "UF-20250901-"), "id %q", id)
	suffix := strings.TrimPrefix(id, "UF-20250901-")
	require.Len(t, suffix, 6)
	// The alphabet excludes lookalike characters.
	assert.NotContains(t, suffix, "O")
	assert.NotContains(t, suffix, "0")
	assert.NotContains(t, suffix, "I")
	assert.NotContains(t, suffix, "1")
}

func TestParseTransactionDate(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"2025-09-02T08:00:00", true},
		{"2025-09-02T08:00", true},
		{"2025-09-02 08:00:00", true},
		{"2025-09-02", true},
		{"9/2/2025", true},
		{"9/2/25", true},
		{"", false},
		{"yesterday", false},
	}
	for _, tt := range tests {
		_, ok := voucher.ParseTransactionDate(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
	}
}

func TestFormatManila(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "—"},
		{"2025-09-02T08:00", "2025-09-02 08:00"},
		{"2025-09-02T08:00:00", "2025-09-02 08:00"},
		{"2025-09-02 08:00:00", "2025-09-02 08:00"},
		{"2025-09-02", "2025-09-02 00:00"},
		// Offset-bearing timestamps convert to Manila local.
		{"2025-09-01T02:00:00Z", "2025-09-01 10:00"},
		// Legacy short dates pass through untouched.
		{"7/19/25", "7/19/25"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, voucher.FormatManila(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeStation(t *testing.T) {
	// Em dash, en dash, and plain hyphen all fold to the same form.
	assert.Equal(t,
		voucher.NormalizeStation("Cleanfuel — Valenzuela"),
		voucher.NormalizeStation("cleanfuel - valenzuela"))
	assert.Equal(t,
		voucher.NormalizeStation("Cleanfuel – Valenzuela"),
		voucher.NormalizeStation("Cleanfuel - Valenzuela"))
}

func TestSlugStation(t *testing.T) {
	assert.Equal(t, "cleanfuel_valenzuela", voucher.SlugStation("Cleanfuel – Valenzuela"))
	assert.Equal(t, "petro_g_san_jose", voucher.SlugStation("Petro G – San Jose"))
	assert.Equal(t, "filoil_sta_mesa", voucher.SlugStation("FilOil – Sta. Mesa"))
}
