/*
Package voucher defines the core domain model for fuel-purchase vouchers.

PURPOSE:
  A voucher is booked by a fleet customer against a station's live price and
  per-station discount, later approved (which freezes a financial computation
  and triggers redemption-asset generation), and finally redeemed at the pump.

KEY CONCEPTS IN THIS FILE (types.go):
  - Voucher: The central record, one row per voucher
  - Status: Lifecycle state (Unverified -> Unredeemed -> Redeemed)
  - Snapshots: Price/discount values frozen at booking time
  - Derived fields: Monetary totals written only by the approval step

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Explicit absence: Optional numeric fields use decimal.NullDecimal so
     "present but zero" and "never set" are distinct, checked states
  3. Forward-only lifecycle: Status transitions never move backwards

SEE ALSO:
  - schema.go: Canonical column set shared by both storage backends
  - compute.go: The approval-time financial computation
  - store.go: Persistence contract
  - errors.go: Error taxonomy
*/
package voucher

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS - Lifecycle state machine values
// =============================================================================

type Status string

const (
	// StatusUnverified is the booking state. An empty/missing status reads
	// as Unverified.
	StatusUnverified Status = "Unverified"

	// StatusUnredeemed means the voucher was approved: computed totals are
	// frozen and redemption assets exist.
	StatusUnredeemed Status = "Unredeemed"

	// StatusRedeemed is terminal. Redemption stamps a timestamp.
	StatusRedeemed Status = "Redeemed"
)

// ParseStatus maps a raw status string to a Status. Empty input is treated
// as Unverified; anything else unknown is rejected.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.TrimSpace(raw)) {
	case "", StatusUnverified:
		return StatusUnverified, nil
	case StatusUnredeemed:
		return StatusUnredeemed, nil
	case StatusRedeemed:
		return StatusRedeemed, nil
	default:
		return "", &InvalidValueError{Field: "status", Value: raw, Reason: "unknown status"}
	}
}

// Normalize maps the empty status to Unverified. Stored rows from older
// imports may carry an empty status column.
func (s Status) Normalize() Status {
	if strings.TrimSpace(string(s)) == "" {
		return StatusUnverified
	}
	return s
}

// =============================================================================
// VOUCHER - The central entity
// =============================================================================

type Voucher struct {
	// Identity. Immutable once assigned.
	VoucherID string

	// Booking fields.
	AccountCode        string
	Station            string
	RequestedAmount    decimal.Decimal
	RefuelDatetime     string
	TransactionDate    string
	ExpectedRefillDate string
	DriverName         string
	VehiclePlate       string
	TruckMake          string
	TruckModel         string
	NumberOfWheels     string
	FuelType           string

	// Values actually used by the approval computation.
	LivePrice        decimal.NullDecimal
	DiscountPerLiter decimal.NullDecimal

	// Booking-time snapshots. Once non-zero they are never silently
	// overwritten, only backfilled by an explicit recompute.
	PriceSnapshot              decimal.NullDecimal
	PriceSnapshotUpdatedAt     int64
	DiscountSnapshot           decimal.NullDecimal
	DiscountSnapshotCapturedAt int64

	// Derived fields, written only by the approval step.
	LitersRequested decimal.NullDecimal
	DiscountTotal   decimal.NullDecimal
	TotalDispensed  decimal.NullDecimal
	LitersDispensed decimal.NullDecimal
	ComputedAt      string

	// Lifecycle fields.
	Status              Status
	RedemptionTimestamp string
	CreatedAt           string
	UpdatedAt           string
}

// CurrentStatus returns the effective status, mapping empty to Unverified.
func (v Voucher) CurrentStatus() Status {
	return v.Status.Normalize()
}

// =============================================================================
// TIME LAYOUTS
// =============================================================================

const (
	// TimestampLayout is used for created_at/updated_at/computed_at (UTC).
	TimestampLayout = "2006-01-02 15:04:05"

	// RedemptionLayout is the ISO-8601 seconds form stamped on redemption.
	RedemptionLayout = "2006-01-02T15:04:05"
)

// manila is the local zone for human-facing audit timestamps. LoadLocation
// needs tzdata on the host; fall back to a fixed +08:00 offset without it.
var manila = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Manila"); err == nil {
		return loc
	}
	return time.FixedZone("+08", 8*3600)
}()

// Manila returns the audit-log display zone.
func Manila() *time.Location { return manila }

// transactionDateLayouts are the accepted forms for transaction/refuel dates,
// most specific first. Legacy CSV imports carry short M/D/YY dates.
var transactionDateLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"1/2/2006",
	"1/2/06",
}

// ParseTransactionDate parses a transaction date in any accepted layout.
// Returns ok=false for empty or unparsable input.
func ParseTransactionDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range transactionDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatManila renders a stored date or timestamp for human-facing supplier
// views as Manila local time in "2006-01-02 15:04" form. Naive timestamps
// are taken as already Manila local; offset-bearing ones are converted.
// Legacy short dates and anything unparsable pass through untouched, and
// empty input renders as an em dash.
func FormatManila(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "—"
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(manila).Format("2006-01-02 15:04")
	}
	for _, layout := range []string{RedemptionLayout, "2006-01-02T15:04", TimestampLayout, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, manila); err == nil {
			return t.Format("2006-01-02 15:04")
		}
	}
	return raw
}

// =============================================================================
// VOUCHER IDS
// =============================================================================

const idAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewVoucherID builds an id of the form UF-20250901-X7K2QD. The random
// suffix keeps the collision probability negligible for a single fleet's
// volume; callers still check the store and regenerate on collision.
func NewVoucherID(now time.Time) string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = idAlphabet[rand.Intn(len(idAlphabet))]
	}
	return fmt.Sprintf("UF-%s-%s", now.Format("20060102"), suffix)
}

// =============================================================================
// STATION NAME NORMALIZATION
// =============================================================================

var (
	dashVariants = strings.NewReplacer("—", "-", "–", "-")
	slugStripRe  = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugJoinRe   = regexp.MustCompile(`[\s-]+`)
)

// NormalizeStation folds em/en dashes to '-', trims, and lowercases. Station
// names arrive from web forms and CSVs with inconsistent dash characters.
func NormalizeStation(s string) string {
	return strings.ToLower(strings.TrimSpace(dashVariants.Replace(s)))
}

// SlugStation reduces a station name to a slug comparable with registry ids,
// e.g. "Cleanfuel – Valenzuela" -> "cleanfuel_valenzuela".
func SlugStation(s string) string {
	out := NormalizeStation(s)
	out = slugStripRe.ReplaceAllString(out, "")
	out = slugJoinRe.ReplaceAllString(out, "_")
	return strings.Trim(out, "_")
}
