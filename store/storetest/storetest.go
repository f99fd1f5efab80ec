/*
Package storetest is the shared parity suite for voucher stores.

Both backends must pass the identical expectations; each backend's test file
calls Run with its own constructor. Behavior that only one backend exhibits
(flat-file whole-file rewrite, SQLite upsert-by-primary-key) is tested in
that backend's own file, not here.
*/
package storetest

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifleet/voucher-engine/voucher"
)

// Factory opens a fresh, empty store for one test.
type Factory func(t *testing.T) voucher.Store

// Run executes the parity suite against one backend.
func Run(t *testing.T, open Factory) {
	t.Run("EmptyStore", func(t *testing.T) { testEmptyStore(t, open) })
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, open) })
	t.Run("ListRecentOrdering", func(t *testing.T) { testListRecentOrdering(t, open) })
	t.Run("ListRecentLimit", func(t *testing.T) { testListRecentLimit(t, open) })
	t.Run("SetStatus", func(t *testing.T) { testSetStatus(t, open) })
	t.Run("SetStatusClearsRedemption", func(t *testing.T) { testSetStatusClearsRedemption(t, open) })
	t.Run("UpdateFields", func(t *testing.T) { testUpdateFields(t, open) })
	t.Run("UpdateFieldsUnknownColumn", func(t *testing.T) { testUpdateFieldsUnknownColumn(t, open) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, open) })
	t.Run("Append", func(t *testing.T) { testAppend(t, open) })
}

func booking(station, txDate string) voucher.Voucher {
	return voucher.Voucher{
		AccountCode:     "ACME",
		Station:         station,
		RequestedAmount: decimal.RequireFromString("1000"),
		RefuelDatetime:  txDate,
		DriverName:      "J. Cruz",
		VehiclePlate:    "ABC-1234",
		FuelType:        "Diesel",
	}
}

func testEmptyStore(t *testing.T, open Factory) {
	s := open(t)
	ctx := context.Background()

	rows, err := s.ListRecent(ctx, 50)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = s.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func testCreateAndGet(t *testing.T, open Factory) {
	s := open(t)
	ctx := context.Background()

	created, err := s.CreateUnverifiedBooking(ctx, booking("Cleanfuel – Valenzuela", "2025-09-02T08:00"))
	require.NoError(t, err)
	require.NotEmpty(t, created.VoucherID)
	assert.Equal(t, voucher.StatusUnverified, created.Status)
	assert.NotEmpty(t, created.CreatedAt)
	assert.Equal(t, "2025-09-02T08:00", created.TransactionDate, "refuel datetime feeds transaction date")

	got, err := s.Get(ctx, created.VoucherID)
	require.NoError(t, err)
	assert.Equal(t, created.VoucherID, got.VoucherID)
	assert.Equal(t, "Cleanfuel – Valenzuela", got.Station)
	assert.True(t, got.RequestedAmount.Equal(decimal.RequireFromString("1000")))
}

func testListRecentOrdering(t *testing.T, open Factory) {
	s := open(t)
	ctx := context.Background()

	// Inserted out of order; one row has no parsable date.
	v1, err := s.CreateUnverifiedBooking(ctx, booking("A", "2025-09-01"))
	require.NoError(t, err)
	v3, err := s.CreateUnverifiedBooking(ctx, booking("B", "2025-09-03"))
	require.NoError(t, err)
	vX, err := s.CreateUnverifiedBooking(ctx, booking("C", ""))
	require.NoError(t, err)
	v2, err := s.CreateUnverifiedBooking(ctx, booking("D", "2025-09-02"))
	require.NoError(t, err)

	rows, err := s.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, v3.VoucherID, rows[0].VoucherID)
	assert.Equal(t, v2.VoucherID, rows[1].VoucherID)
	assert.Equal(t, v1.VoucherID, rows[2].VoucherID)
	assert.Equal(t, vX.VoucherID, rows[3].VoucherID, "undated rows sort last")
}

func testListRecentLimit(t *testing.T, open Factory) {
	s := open(t)
	ctx := context.Background()

	for _, d := range []string{"2025-09-01", "2025-09-02", "2025-09-03"} {
		_, err := s.CreateUnverifiedBooking(ctx, booking("A", d))
		require.NoError(t, err)
	}

	rows, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2025-09-03", rows[0].TransactionDate)
	assert.Equal(t, "2025-09-02", rows[1].TransactionDate)
}

func testSetStatus(t *testing.T, open Factory) {
	s := open(t)
	ctx := context.Background()

	v, err := s.CreateUnverifiedBooking(ctx, booking("A", "2025-09-02"))
	require.NoError(t, err)

	require.NoError(t, s.SetStatus(ctx, v.VoucherID, voucher.StatusRedeemed, "2025-09-05T14:30:00"))

	got, err := s.Get(ctx, v.VoucherID)
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusRedeemed, got.Status)
	assert.Equal(t, "2025-09-05T14:30:00", got.RedemptionTimestamp)
	assert.NotEmpty(t, got.UpdatedAt)
}

func testSetStatusClearsRedemption(t *testing.T, open Factory) {
	s := open(t)
	ctx := context.Background()

	v, err := s.CreateUnverifiedBooking(ctx, booking("A", "2025-09-02"))
	require.NoError(t, err)

	require.NoError(t, s.SetStatus(ctx, v.VoucherID, voucher.StatusRedeemed, "2025-09-05T14:30:00"))
	require.NoError(t, s.SetStatus(ctx, v.VoucherID, voucher.StatusUnverified, "ignored"))

	got, err := s.Get(ctx, v.VoucherID)
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusUnverified, got.Status)
	assert.Empty(t, got.RedemptionTimestamp, "non-Redeemed target clears the stamp")
}

func testUpdateFields(t *testing.T, open Factory) {
	s := open(t)
	ctx := context.Background()

	v, err := s.CreateUnverifiedBooking(ctx, booking("A", "2025-09-02"))
	require.NoError(t, err)

	require.NoError(t, s.UpdateFields(ctx, v.VoucherID, map[string]string{
		voucher.ColLitersRequested: "16.67",
		voucher.ColTotalDispensed:  "1041.68",
		voucher.ColComputedAt:      "2025-09-03 09:00:00",
	}))

	got, err := s.Get(ctx, v.VoucherID)
	require.NoError(t, err)
	require.True(t, got.LitersRequested.Valid)
	assert.True(t, got.LitersRequested.Decimal.Equal(decimal.RequireFromString("16.67")))
	require.True(t, got.TotalDispensed.Valid)
	assert.True(t, got.TotalDispensed.Decimal.Equal(decimal.RequireFromString("1041.68")))
	assert.Equal(t, "2025-09-03 09:00:00", got.ComputedAt)
	assert.Equal(t, "A", got.Station, "untouched columns survive")
}

func testUpdateFieldsUnknownColumn(t *testing.T, open Factory) {
	s := open(t)
	ctx := context.Background()

	v, err := s.CreateUnverifiedBooking(ctx, booking("A", "2025-09-02"))
	require.NoError(t, err)

	err = s.UpdateFields(ctx, v.VoucherID, map[string]string{"bogus": "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, voucher.ErrInvalidValue)
}

func testNotFound(t *testing.T, open Factory) {
	s := open(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "UF-00000000-MISSING")
	assert.True(t, voucher.IsNotFound(err))

	err = s.SetStatus(ctx, "UF-00000000-MISSING", voucher.StatusRedeemed, "")
	assert.True(t, voucher.IsNotFound(err))

	err = s.UpdateFields(ctx, "UF-00000000-MISSING", map[string]string{voucher.ColComputedAt: "x"})
	assert.True(t, voucher.IsNotFound(err))
}

func testAppend(t *testing.T, open Factory) {
	s := open(t)
	ctx := context.Background()

	rows := []voucher.Voucher{
		{VoucherID: "UF-20250901-IMPRT1", Station: "A", TransactionDate: "2025-09-01"},
		{VoucherID: "UF-20250901-IMPRT2", Station: "B", TransactionDate: "2025-09-02"},
	}
	require.NoError(t, s.Append(ctx, rows))

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := s.Get(ctx, "UF-20250901-IMPRT2")
	require.NoError(t, err)
	assert.Equal(t, "B", got.Station)

	// Re-importing an existing id replaces the row instead of duplicating.
	require.NoError(t, s.Append(ctx, []voucher.Voucher{
		{VoucherID: "UF-20250901-IMPRT2", Station: "B2", TransactionDate: "2025-09-02"},
	}))

	all, err = s.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "upsert keeps the row count stable")

	got, err = s.Get(ctx, "UF-20250901-IMPRT2")
	require.NoError(t, err)
	assert.Equal(t, "B2", got.Station)
}
