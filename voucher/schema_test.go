package voucher_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifleet/voucher-engine/voucher"
)

func sampleVoucher() voucher.Voucher {
	return voucher.Voucher{
		VoucherID:       "UF-20250901-X7K2QD",
		AccountCode:     "ACME",
		Station:         "Cleanfuel – Valenzuela",
		RequestedAmount: d("1000"),
		RefuelDatetime:  "2025-09-02T08:00",
		TransactionDate: "2025-09-02T08:00",
		DriverName:      "J. Cruz",
		VehiclePlate:    "ABC-1234",
		FuelType:        "Diesel",
		Status:          voucher.StatusUnverified,
		PriceSnapshot:   decimal.NullDecimal{Decimal: d("60"), Valid: true},
		CreatedAt:       "2025-09-01 10:00:00",
		UpdatedAt:       "2025-09-01 10:00:00",
	}
}

func TestFieldsRoundTrip(t *testing.T) {
	v := sampleVoucher()
	v.PriceSnapshotUpdatedAt = 1756654640
	v.DiscountSnapshot = decimal.NullDecimal{Decimal: decimal.Zero, Valid: true}

	got := voucher.FromFields(v.Fields())

	assert.Equal(t, v.VoucherID, got.VoucherID)
	assert.Equal(t, v.Station, got.Station)
	assert.True(t, got.RequestedAmount.Equal(v.RequestedAmount))
	assert.True(t, got.PriceSnapshot.Valid)
	assert.True(t, got.PriceSnapshot.Decimal.Equal(d("60")))
	assert.Equal(t, int64(1756654640), got.PriceSnapshotUpdatedAt)

	// "present but zero" survives the round trip as present.
	assert.True(t, got.DiscountSnapshot.Valid)
	assert.True(t, got.DiscountSnapshot.Decimal.IsZero())

	// Never-set fields stay absent.
	assert.False(t, got.LitersRequested.Valid)
	assert.False(t, got.TotalDispensed.Valid)
}

func TestRecordMatchesColumnOrder(t *testing.T) {
	v := sampleVoucher()
	row := v.Record()

	require.Len(t, row, len(voucher.Columns))
	assert.Equal(t, v.VoucherID, row[0], "voucher_id is the first column")

	got := voucher.FromRecord(row)
	assert.Equal(t, v.VoucherID, got.VoucherID)
	assert.Equal(t, v.DriverName, got.DriverName)
}

func TestFromRecord_PadsShortRows(t *testing.T) {
	// Legacy files carry fewer columns; missing cells read as empty.
	got := voucher.FromRecord([]string{"UF-20240101-ABCDEF", "ACME"})
	assert.Equal(t, "UF-20240101-ABCDEF", got.VoucherID)
	assert.Equal(t, "ACME", got.AccountCode)
	assert.Equal(t, voucher.StatusUnverified, got.CurrentStatus())
}

func TestFromFields_TolerantNumericParsing(t *testing.T) {
	got := voucher.FromFields(map[string]string{
		voucher.ColVoucherID:       "UF-20240101-ABCDEF",
		voucher.ColLivePrice:       "nan",
		voucher.ColDiscountTotal:   "not-a-number",
		voucher.ColPriceSnapshotAt: "garbage",
	})
	assert.False(t, got.LivePrice.Valid)
	assert.False(t, got.DiscountTotal.Valid)
	assert.Zero(t, got.PriceSnapshotUpdatedAt)
}

func TestApplyFields(t *testing.T) {
	v := sampleVoucher()

	got, err := voucher.ApplyFields(v, map[string]string{
		voucher.ColLitersRequested: "16.67",
		voucher.ColComputedAt:      "2025-09-03 09:00:00",
	})
	require.NoError(t, err)
	assert.True(t, got.LitersRequested.Valid)
	assert.True(t, got.LitersRequested.Decimal.Equal(d("16.67")))
	assert.Equal(t, "2025-09-03 09:00:00", got.ComputedAt)
	assert.Equal(t, v.Station, got.Station, "untouched columns survive")
}

func TestApplyFields_RejectsUnknownColumn(t *testing.T) {
	_, err := voucher.ApplyFields(sampleVoucher(), map[string]string{"bogus_column": "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, voucher.ErrInvalidValue)
}

func TestApplyFields_VoucherIDImmutable(t *testing.T) {
	_, err := voucher.ApplyFields(sampleVoucher(), map[string]string{
		voucher.ColVoucherID: "UF-20250901-OTHER1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, voucher.ErrInvalidValue)
}

func TestKnownColumn(t *testing.T) {
	assert.True(t, voucher.KnownColumn(voucher.ColStatus))
	assert.False(t, voucher.KnownColumn("status "))
	assert.False(t, voucher.KnownColumn("drop table"))
}
