/*
schema.go - Canonical voucher column set shared by both storage backends

PURPOSE:
  The flat-file backend and the SQLite backend must expose the identical
  column set in the identical order. Both are generated from the single
  Columns slice below and the Fields/FromFields codec, so they cannot drift
  apart by convention. A parity test suite exercises both backends against
  the same expectations.

FIELD CONVENTIONS:
  - All values are carried as strings at the storage boundary (CSV cells,
    TEXT columns). Typed access lives on the Voucher struct.
  - The empty string encodes "absent" for optional numeric fields.
  - Epoch-second fields serialize as decimal integers; zero means "never".
*/
package voucher

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COLUMN NAMES
// =============================================================================

const (
	ColVoucherID          = "voucher_id"
	ColAccountCode        = "account_code"
	ColStation            = "station"
	ColRequestedAmount    = "requested_amount"
	ColLitersRequested    = "liters_requested"
	ColTransactionDate    = "transaction_date"
	ColExpectedRefillDate = "expected_refill_date"
	ColRefuelDatetime     = "refuel_datetime"
	ColLivePrice          = "live_price_per_liter"
	ColDiscountPerLiter   = "discount_per_liter"
	ColDiscountTotal      = "discount_total"
	ColTotalDispensed     = "total_dispensed"
	ColLitersDispensed    = "liters_dispensed"
	ColDriverName         = "driver_name"
	ColVehiclePlate       = "vehicle_plate"
	ColTruckMake          = "truck_make"
	ColTruckModel         = "truck_model"
	ColNumberOfWheels     = "number_of_wheels"
	ColFuelType           = "fuel_type"
	ColStatus             = "status"
	ColRedemptionTS       = "redemption_timestamp"
	ColCreatedAt          = "created_at"
	ColUpdatedAt          = "updated_at"
	ColPriceSnapshot      = "price_snapshot_per_liter"
	ColPriceSnapshotAt    = "price_snapshot_updated_at"
	ColDiscountSnapshot   = "discount_snapshot_per_liter"
	ColDiscountSnapshotAt = "discount_snapshot_captured_at"
	ColComputedAt         = "computed_at"
)

// Columns is the canonical, ordered column set. The flat-file header and the
// SQLite table definition are both derived from it.
var Columns = []string{
	ColVoucherID,
	ColAccountCode,
	ColStation,
	ColRequestedAmount,
	ColLitersRequested,
	ColTransactionDate,
	ColExpectedRefillDate,
	ColRefuelDatetime,
	ColLivePrice,
	ColDiscountPerLiter,
	ColDiscountTotal,
	ColTotalDispensed,
	ColLitersDispensed,
	ColDriverName,
	ColVehiclePlate,
	ColTruckMake,
	ColTruckModel,
	ColNumberOfWheels,
	ColFuelType,
	ColStatus,
	ColRedemptionTS,
	ColCreatedAt,
	ColUpdatedAt,
	ColPriceSnapshot,
	ColPriceSnapshotAt,
	ColDiscountSnapshot,
	ColDiscountSnapshotAt,
	ColComputedAt,
}

var columnSet = func() map[string]bool {
	m := make(map[string]bool, len(Columns))
	for _, c := range Columns {
		m[c] = true
	}
	return m
}()

// KnownColumn reports whether name is part of the shared schema.
func KnownColumn(name string) bool { return columnSet[name] }

// =============================================================================
// RECORD CODEC - Voucher <-> column-keyed string map
// =============================================================================

// Fields flattens a voucher into the storage form: one string per column.
func (v Voucher) Fields() map[string]string {
	return map[string]string{
		ColVoucherID:          v.VoucherID,
		ColAccountCode:        v.AccountCode,
		ColStation:            v.Station,
		ColRequestedAmount:    formatDecimal(decimal.NullDecimal{Decimal: v.RequestedAmount, Valid: true}),
		ColLitersRequested:    formatDecimal(v.LitersRequested),
		ColTransactionDate:    v.TransactionDate,
		ColExpectedRefillDate: v.ExpectedRefillDate,
		ColRefuelDatetime:     v.RefuelDatetime,
		ColLivePrice:          formatDecimal(v.LivePrice),
		ColDiscountPerLiter:   formatDecimal(v.DiscountPerLiter),
		ColDiscountTotal:      formatDecimal(v.DiscountTotal),
		ColTotalDispensed:     formatDecimal(v.TotalDispensed),
		ColLitersDispensed:    formatDecimal(v.LitersDispensed),
		ColDriverName:         v.DriverName,
		ColVehiclePlate:       v.VehiclePlate,
		ColTruckMake:          v.TruckMake,
		ColTruckModel:         v.TruckModel,
		ColNumberOfWheels:     v.NumberOfWheels,
		ColFuelType:           v.FuelType,
		ColStatus:             string(v.Status),
		ColRedemptionTS:       v.RedemptionTimestamp,
		ColCreatedAt:          v.CreatedAt,
		ColUpdatedAt:          v.UpdatedAt,
		ColPriceSnapshot:      formatDecimal(v.PriceSnapshot),
		ColPriceSnapshotAt:    formatEpoch(v.PriceSnapshotUpdatedAt),
		ColDiscountSnapshot:   formatDecimal(v.DiscountSnapshot),
		ColDiscountSnapshotAt: formatEpoch(v.DiscountSnapshotCapturedAt),
		ColComputedAt:         v.ComputedAt,
	}
}

// Record returns the voucher as a row in canonical column order.
func (v Voucher) Record() []string {
	fields := v.Fields()
	row := make([]string, len(Columns))
	for i, c := range Columns {
		row[i] = fields[c]
	}
	return row
}

// FromFields rebuilds a voucher from a column-keyed string map. Unparsable
// numeric cells are treated as absent rather than failing the whole row;
// legacy imports carry blanks and stray text in numeric columns.
func FromFields(fields map[string]string) Voucher {
	amount, _ := parseDecimal(fields[ColRequestedAmount])
	return Voucher{
		VoucherID:                  strings.TrimSpace(fields[ColVoucherID]),
		AccountCode:                fields[ColAccountCode],
		Station:                    fields[ColStation],
		RequestedAmount:            amount.Decimal,
		LitersRequested:            mustNull(fields[ColLitersRequested]),
		TransactionDate:            fields[ColTransactionDate],
		ExpectedRefillDate:         fields[ColExpectedRefillDate],
		RefuelDatetime:             fields[ColRefuelDatetime],
		LivePrice:                  mustNull(fields[ColLivePrice]),
		DiscountPerLiter:           mustNull(fields[ColDiscountPerLiter]),
		DiscountTotal:              mustNull(fields[ColDiscountTotal]),
		TotalDispensed:             mustNull(fields[ColTotalDispensed]),
		LitersDispensed:            mustNull(fields[ColLitersDispensed]),
		DriverName:                 fields[ColDriverName],
		VehiclePlate:               fields[ColVehiclePlate],
		TruckMake:                  fields[ColTruckMake],
		TruckModel:                 fields[ColTruckModel],
		NumberOfWheels:             fields[ColNumberOfWheels],
		FuelType:                   fields[ColFuelType],
		Status:                     Status(strings.TrimSpace(fields[ColStatus])),
		RedemptionTimestamp:        fields[ColRedemptionTS],
		CreatedAt:                  fields[ColCreatedAt],
		UpdatedAt:                  fields[ColUpdatedAt],
		PriceSnapshot:              mustNull(fields[ColPriceSnapshot]),
		PriceSnapshotUpdatedAt:     parseEpoch(fields[ColPriceSnapshotAt]),
		DiscountSnapshot:           mustNull(fields[ColDiscountSnapshot]),
		DiscountSnapshotCapturedAt: parseEpoch(fields[ColDiscountSnapshotAt]),
		ComputedAt:                 fields[ColComputedAt],
	}
}

// FromRecord rebuilds a voucher from a row in canonical column order. Short
// rows are padded with empty cells.
func FromRecord(row []string) Voucher {
	fields := make(map[string]string, len(Columns))
	for i, c := range Columns {
		if i < len(row) {
			fields[c] = row[i]
		}
	}
	return FromFields(fields)
}

// ApplyFields returns a copy of v with the named columns overwritten. A name
// outside the shared schema fails with ErrUnknownColumn; the voucher id is
// immutable and cannot be patched.
func ApplyFields(v Voucher, updates map[string]string) (Voucher, error) {
	fields := v.Fields()
	for name, value := range updates {
		if !KnownColumn(name) {
			return Voucher{}, &InvalidValueError{Field: name, Value: value, Reason: ErrUnknownColumn.Error()}
		}
		if name == ColVoucherID {
			return Voucher{}, &InvalidValueError{Field: name, Value: value, Reason: "voucher_id is immutable"}
		}
		fields[name] = value
	}
	out := FromFields(fields)
	out.VoucherID = v.VoucherID
	return out, nil
}

// =============================================================================
// CELL HELPERS
// =============================================================================

func formatDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func formatEpoch(ts int64) string {
	if ts == 0 {
		return ""
	}
	return strconv.FormatInt(ts, 10)
}

func parseDecimal(raw string) (decimal.NullDecimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "nan") {
		return decimal.NullDecimal{}, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, false
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, true
}

func mustNull(raw string) decimal.NullDecimal {
	d, _ := parseDecimal(raw)
	return d
}

func parseEpoch(raw string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
