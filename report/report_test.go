package report_test

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifleet/voucher-engine/report"
	"github.com/unifleet/voucher-engine/voucher"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func nd(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func sampleVouchers() []voucher.Voucher {
	return []voucher.Voucher{
		{
			VoucherID:        "UF-20250901-AAAAAA",
			Station:          "Cleanfuel – Valenzuela",
			TransactionDate:  "2025-09-02",
			RequestedAmount:  d("1000"),
			PriceSnapshot:    nd("60"),
			DiscountSnapshot: nd("2.5"),
			Status:           voucher.StatusUnredeemed,
		},
		{
			// Pre-snapshot import: only the live columns are filled.
			VoucherID:        "UF-20250801-BBBBBB",
			Station:          "Seaoil – Bicutan",
			TransactionDate:  "2025-08-15",
			RequestedAmount:  d("600"),
			LivePrice:        nd("58.9"),
			DiscountPerLiter: nd("1.25"),
			Status:           voucher.StatusRedeemed,
		},
		{
			// Blank id: skipped entirely.
			Station:         "Seaoil – Bicutan",
			RequestedAmount: d("500"),
		},
	}
}

func TestBuildRows_RecomputesFromSnapshots(t *testing.T) {
	rows := report.BuildRows(sampleVouchers(), report.Filter{})
	require.Len(t, rows, 2, "blank-id row is dropped")

	first := rows[0]
	assert.Equal(t, "UF-20250901-AAAAAA", first.VoucherID)
	assert.True(t, first.PricePerLiter.Equal(d("60")))
	assert.True(t, first.LitersRequested.Equal(d("16.67")))
	assert.True(t, first.DiscountTotal.Equal(d("41.68")))
	assert.True(t, first.TotalDispensed.Equal(d("1041.68")))
	assert.True(t, first.LitersDispensed.Equal(d("17.36")))
}

func TestBuildRow_MatchesBulkExport(t *testing.T) {
	vouchers := sampleVouchers()
	rows := report.BuildRows(vouchers, report.Filter{})
	require.Len(t, rows, 2)

	assert.Equal(t, rows[0], report.BuildRow(vouchers[0]))
	assert.Equal(t, rows[1], report.BuildRow(vouchers[1]))
}

func TestBuildRows_FallsBackToLiveColumns(t *testing.T) {
	rows := report.BuildRows(sampleVouchers(), report.Filter{})
	second := rows[1]

	assert.True(t, second.PricePerLiter.Equal(d("58.9")), "no snapshot, live price used")
	assert.True(t, second.DiscountPerLiter.Equal(d("1.25")))
	assert.True(t, second.LitersRequested.Equal(d("10.19")))
}

func TestBuildRows_StationFilter(t *testing.T) {
	// Filter values match regardless of dash style.
	rows := report.BuildRows(sampleVouchers(), report.Filter{
		Stations: []string{"Cleanfuel - Valenzuela"},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "UF-20250901-AAAAAA", rows[0].VoucherID)
}

func TestBuildRows_StatusFilter(t *testing.T) {
	rows := report.BuildRows(sampleVouchers(), report.Filter{
		Statuses: []voucher.Status{voucher.StatusRedeemed},
	})
	require.Len(t, rows, 1)
	assert.Equal(t, "UF-20250801-BBBBBB", rows[0].VoucherID)
}

func TestBuildSupplierCSV(t *testing.T) {
	data, err := report.BuildSupplierCSV(report.BuildRows(sampleVouchers(), report.Filter{}))
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "voucher_id", records[0][0])
	assert.Equal(t, "total_dispensed", records[0][10])
	assert.Equal(t, "1041.68", records[1][10])
	assert.Equal(t, "Unredeemed", records[1][12])
}

func TestBuildSupplierXLSX(t *testing.T) {
	data, err := report.BuildSupplierXLSX(report.BuildRows(sampleVouchers(), report.Filter{}))
	require.NoError(t, err)
	// XLSX files are zip archives.
	require.Greater(t, len(data), 4)
	assert.Equal(t, []byte{'P', 'K'}, data[:2])
}

func TestBuildSupplierPDF(t *testing.T) {
	rows := report.BuildRows(sampleVouchers(), report.Filter{})
	data, err := report.BuildSupplierPDF("Supplier Fuel Voucher Summary", rows, time.Date(2025, time.September, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, []byte("%PDF"), data[:4])
}

func TestBuildSupplierPDF_EmptyRows(t *testing.T) {
	data, err := report.BuildSupplierPDF("Supplier Fuel Voucher Summary", nil, time.Now())
	require.NoError(t, err)
	assert.NotEmpty(t, data, "an empty sheet still renders headers")
}
