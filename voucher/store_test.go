package voucher_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifleet/voucher-engine/voucher"
)

func TestSortRecent(t *testing.T) {
	// GIVEN: Three dated vouchers out of order plus one with no parsable date
	// THEN: Most recent first, unparsable date last
	rows := []voucher.Voucher{
		{VoucherID: "T1", TransactionDate: "2025-09-01"},
		{VoucherID: "T3", TransactionDate: "2025-09-03"},
		{VoucherID: "NODATE", TransactionDate: "sometime"},
		{VoucherID: "T2", TransactionDate: "2025-09-02"},
	}
	voucher.SortRecent(rows)

	got := make([]string, len(rows))
	for i, v := range rows {
		got[i] = v.VoucherID
	}
	assert.Equal(t, []string{"T3", "T2", "T1", "NODATE"}, got)
}

func TestSortRecent_TiesKeepInsertionOrder(t *testing.T) {
	rows := []voucher.Voucher{
		{VoucherID: "A", TransactionDate: "2025-09-01"},
		{VoucherID: "B", TransactionDate: "2025-09-01"},
		{VoucherID: "C", TransactionDate: "2025-09-01"},
	}
	voucher.SortRecent(rows)

	assert.Equal(t, "A", rows[0].VoucherID)
	assert.Equal(t, "B", rows[1].VoucherID)
	assert.Equal(t, "C", rows[2].VoucherID)
}

func TestSortRecent_MixedLayouts(t *testing.T) {
	// Legacy M/D/YY rows sort against ISO rows by parsed value.
	rows := []voucher.Voucher{
		{VoucherID: "OLD", TransactionDate: "1/15/24"},
		{VoucherID: "NEW", TransactionDate: "2025-09-02T08:00"},
	}
	voucher.SortRecent(rows)
	assert.Equal(t, "NEW", rows[0].VoucherID)
}

func TestTruncate(t *testing.T) {
	rows := []voucher.Voucher{{VoucherID: "A"}, {VoucherID: "B"}, {VoucherID: "C"}}

	assert.Len(t, voucher.Truncate(rows, 2), 2)
	assert.Len(t, voucher.Truncate(rows, 10), 3)
	assert.Len(t, voucher.Truncate(rows, 0), 0)
	assert.Len(t, voucher.Truncate(rows, -5), 0)
}

func TestPrepareBooking(t *testing.T) {
	now := time.Date(2025, time.September, 1, 10, 30, 0, 0, time.UTC)

	v := voucher.PrepareBooking(
		voucher.Voucher{
			Station:             "Cleanfuel – Valenzuela",
			RefuelDatetime:      "2025-09-02T08:00",
			Status:              voucher.StatusRedeemed, // must be forced back
			RedemptionTimestamp: "2025-08-01T00:00:00",
		},
		now,
		func(id string) bool { return false },
		func() string { return "UF-20250901-AAAAAA" },
	)

	assert.Equal(t, "UF-20250901-AAAAAA", v.VoucherID)
	assert.Equal(t, voucher.StatusUnverified, v.Status)
	assert.Empty(t, v.RedemptionTimestamp)
	assert.Equal(t, "2025-09-01 10:30:00", v.CreatedAt)
	assert.Equal(t, "2025-09-01 10:30:00", v.UpdatedAt)
	assert.Equal(t, "2025-09-02T08:00", v.ExpectedRefillDate)
	assert.Equal(t, "2025-09-02T08:00", v.TransactionDate)
}

func TestPrepareBooking_RegeneratesOnCollision(t *testing.T) {
	ids := []string{"TAKEN-1", "TAKEN-2", "FRESH"}
	i := 0
	newID := func() string {
		id := ids[i]
		i++
		return id
	}
	taken := map[string]bool{"TAKEN-1": true, "TAKEN-2": true}

	v := voucher.PrepareBooking(voucher.Voucher{}, time.Now(),
		func(id string) bool { return taken[id] }, newID)

	assert.Equal(t, "FRESH", v.VoucherID)
}

func TestPrepareBooking_KeepsProvidedValues(t *testing.T) {
	now := time.Date(2025, time.September, 1, 10, 30, 0, 0, time.UTC)

	v := voucher.PrepareBooking(
		voucher.Voucher{
			VoucherID:       "UF-20250801-IMPORT",
			CreatedAt:       "2025-08-01 00:00:00",
			RefuelDatetime:  "2025-09-02T08:00",
			TransactionDate: "2025-08-15", // import already filled it
		},
		now,
		func(id string) bool { return false },
		func() string { t.Fatal("id should not be regenerated"); return "" },
	)

	require.Equal(t, "UF-20250801-IMPORT", v.VoucherID)
	assert.Equal(t, "2025-08-01 00:00:00", v.CreatedAt, "existing created_at survives")
	assert.Equal(t, "2025-09-01 10:30:00", v.UpdatedAt, "updated_at is re-stamped")
	assert.Equal(t, "2025-08-15", v.TransactionDate, "filled columns are not overwritten")
	assert.Equal(t, "2025-09-02T08:00", v.ExpectedRefillDate)
}
