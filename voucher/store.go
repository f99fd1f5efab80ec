/*
store.go - Persistence contract for voucher records

PURPOSE:
  Defines the interface between the lifecycle controller and the two
  interchangeable storage backends:

    store/flatfile: header + rows CSV, whole file rewritten per mutation
    store/sqlite:   one row per voucher, voucher_id primary key

  Both must yield identical observable behavior. The ordering rules and the
  booking normalization live here as shared helpers so the backends cannot
  diverge by reimplementation.

CONCURRENCY:
  Each backend serializes its own mutations behind one mutex per instance.
  Concurrent processes sharing the same flat files are unsupported; there is
  no cross-process lock.

SEE ALSO:
  - store/flatfile/flatfile.go
  - store/sqlite/sqlite.go
  - store/storetest: parity suite run against both backends
*/
package voucher

import (
	"context"
	"sort"
	"time"
)

// Store handles persistence of voucher records. Records are never deleted by
// the engine.
type Store interface {
	// ListRecent returns vouchers ordered by parsed transaction date, most
	// recent first; rows without a parsable date sort last, insertion order
	// breaks ties. The result is truncated to limit.
	ListRecent(ctx context.Context, limit int) ([]Voucher, error)

	// ListAll returns the full, unordered snapshot.
	ListAll(ctx context.Context) ([]Voucher, error)

	// Get returns a single voucher or ErrNotFound.
	Get(ctx context.Context, voucherID string) (Voucher, error)

	// SetStatus updates the status column. A Redeemed target stores the
	// supplied timestamp; any other target clears it. Bumps updated_at.
	SetStatus(ctx context.Context, voucherID string, status Status, redemptionTimestamp string) error

	// Append bulk-upserts voucher rows (import/upload flows). Rows whose
	// voucher id already exists replace the stored row in both backends.
	Append(ctx context.Context, rows []Voucher) error

	// CreateUnverifiedBooking persists a new booking. Assigns a voucher id
	// if absent (regenerating on collision), force-sets status Unverified,
	// clears the redemption timestamp, stamps created_at/updated_at, and
	// maps refuel_datetime into the expected/transaction date columns when
	// those are empty. Returns the stored voucher.
	CreateUnverifiedBooking(ctx context.Context, v Voucher) (Voucher, error)

	// UpdateFields patches the named columns of one voucher and bumps
	// updated_at. Fails with ErrNotFound for unknown ids and with
	// ErrInvalidValue for columns outside the shared schema.
	UpdateFields(ctx context.Context, voucherID string, fields map[string]string) error

	// Close releases backend resources.
	Close() error
}

// =============================================================================
// SHARED ORDERING
// =============================================================================

// SortRecent orders vouchers in place: parsed transaction date descending,
// unparsable dates after parsable ones, original order as tie-break. Both
// backends route ListRecent through this one comparator.
func SortRecent(vouchers []Voucher) {
	type keyed struct {
		v  Voucher
		t  time.Time
		ok bool
	}
	keys := make([]keyed, len(vouchers))
	for i, v := range vouchers {
		t, ok := ParseTransactionDate(v.TransactionDate)
		keys[i] = keyed{v: v, t: t, ok: ok}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.ok != b.ok {
			return a.ok
		}
		if !a.ok {
			return false
		}
		return a.t.After(b.t)
	})
	for i, k := range keys {
		vouchers[i] = k.v
	}
}

// Truncate caps a slice at limit, tolerating limit <= 0 as "no rows".
func Truncate(vouchers []Voucher, limit int) []Voucher {
	if limit < 0 {
		limit = 0
	}
	if len(vouchers) > limit {
		return vouchers[:limit]
	}
	return vouchers
}

// =============================================================================
// SHARED BOOKING NORMALIZATION
// =============================================================================

// PrepareBooking applies the backend-independent parts of
// CreateUnverifiedBooking. The caller supplies newID, which is consulted
// until it produces an id not present in the store.
func PrepareBooking(v Voucher, now time.Time, exists func(id string) bool, newID func() string) Voucher {
	if v.VoucherID == "" {
		id := newID()
		for exists(id) {
			id = newID()
		}
		v.VoucherID = id
	}

	v.Status = StatusUnverified
	v.RedemptionTimestamp = ""

	stamp := now.UTC().Format(TimestampLayout)
	if v.CreatedAt == "" {
		v.CreatedAt = stamp
	}
	v.UpdatedAt = stamp

	// A single refuel_datetime from the booking form feeds both date
	// columns unless an import already filled them.
	if v.RefuelDatetime != "" {
		if v.ExpectedRefillDate == "" {
			v.ExpectedRefillDate = v.RefuelDatetime
		}
		if v.TransactionDate == "" {
			v.TransactionDate = v.RefuelDatetime
		}
	}
	return v
}
