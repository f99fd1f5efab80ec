/*
Package report builds printable supplier documents from finalized vouchers.

PURPOSE:
  Stateless and read-only: callers pass the voucher rows and an optional
  station filter; the builders return document bytes. Three output forms
  share one row model so the PDF, XLSX, and CSV exports always agree.

SNAPSHOT MATH:
  Rows recompute their totals from the frozen snapshot values (falling back
  to the live columns when no snapshot was captured) rather than trusting
  whatever the stored computed columns hold. This keeps old rows, imported
  before snapshots existed, consistent with freshly approved ones.
*/
package report

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/unifleet/voucher-engine/voucher"
)

// Row is one line of the supplier sheet.
type Row struct {
	VoucherID       string
	Station         string
	TransactionDate string
	DriverName      string
	VehiclePlate    string

	RequestedAmount  decimal.Decimal
	PricePerLiter    decimal.Decimal
	DiscountPerLiter decimal.Decimal
	LitersRequested  decimal.Decimal
	DiscountTotal    decimal.Decimal
	TotalDispensed   decimal.Decimal
	LitersDispensed  decimal.Decimal

	Status voucher.Status
}

// Filter restricts which vouchers appear on the sheet.
type Filter struct {
	// Stations is a set of station names; empty means all stations.
	Stations []string

	// Statuses restricts by lifecycle state; empty means all.
	Statuses []voucher.Status
}

func (f Filter) matches(v voucher.Voucher) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if v.CurrentStatus() == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.Stations) == 0 {
		return true
	}
	target := voucher.NormalizeStation(v.Station)
	for _, s := range f.Stations {
		if voucher.NormalizeStation(s) == target {
			return true
		}
	}
	return false
}

// BuildRows converts vouchers to sheet rows, applying the filter and the
// snapshot-preferred recompute.
func BuildRows(vouchers []voucher.Voucher, f Filter) []Row {
	rows := make([]Row, 0, len(vouchers))
	for _, v := range vouchers {
		if strings.TrimSpace(v.VoucherID) == "" || !f.matches(v) {
			continue
		}
		rows = append(rows, BuildRow(v))
	}
	return rows
}

// BuildRow converts a single voucher with the same snapshot-preferred
// recompute the sheet builders use, so per-voucher supplier views and the
// bulk exports always agree.
func BuildRow(v voucher.Voucher) Row {
	price := coalesce(v.PriceSnapshot, v.LivePrice)
	dpl := coalesce(v.DiscountSnapshot, v.DiscountPerLiter)
	comp := voucher.Compute(v.RequestedAmount, price, dpl)

	return Row{
		VoucherID:        v.VoucherID,
		Station:          v.Station,
		TransactionDate:  v.TransactionDate,
		DriverName:       v.DriverName,
		VehiclePlate:     v.VehiclePlate,
		RequestedAmount:  v.RequestedAmount.Round(2),
		PricePerLiter:    price,
		DiscountPerLiter: dpl,
		LitersRequested:  comp.LitersRequested,
		DiscountTotal:    comp.DiscountTotal,
		TotalDispensed:   comp.TotalDispensed,
		LitersDispensed:  comp.LitersDispensed,
		Status:           v.CurrentStatus(),
	}
}

// coalesce returns the first present, non-zero value.
func coalesce(vals ...decimal.NullDecimal) decimal.Decimal {
	for _, v := range vals {
		if v.Valid && !v.Decimal.IsZero() {
			return v.Decimal
		}
	}
	return decimal.Zero
}

var columns = []string{
	"voucher_id", "station", "transaction_date", "driver_name", "vehicle_plate",
	"requested_amount", "price_per_liter", "discount_per_liter",
	"liters_requested", "discount_total", "total_dispensed", "liters_dispensed",
	"status",
}

func (r Row) cells() []string {
	return []string{
		r.VoucherID,
		r.Station,
		r.TransactionDate,
		r.DriverName,
		r.VehiclePlate,
		r.RequestedAmount.StringFixed(2),
		r.PricePerLiter.StringFixed(2),
		r.DiscountPerLiter.String(),
		r.LitersRequested.StringFixed(2),
		r.DiscountTotal.StringFixed(2),
		r.TotalDispensed.StringFixed(2),
		r.LitersDispensed.StringFixed(2),
		string(r.Status),
	}
}
