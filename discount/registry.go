/*
Package discount is the keyed store of per-station fuel discounts.

PURPOSE:
  Maps a normalized (trimmed) station name to its current discount per
  liter. Entries vanish when explicitly cleared; "no entry" means "no
  discount". Every mutation - set, change, and removal - appends exactly one
  row to a never-truncated audit CSV with the old and new value, where the
  empty string encodes "absent".

PERSISTENCE:
  Current state lives in one JSON object (station_discounts.json), atomically
  replaced on write. The audit CSV (discount_history.csv) is append-only.
  All reads and writes of both files are serialized behind a single mutex
  per registry instance so concurrent callers never interleave a
  read-modify-write.

VALUES:
  Discounts must be non-negative and are rounded to 4 decimal places before
  storage - small per-liter amounts need more precision than money totals.
*/
package discount

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/unifleet/voucher-engine/atomicfile"
	"github.com/unifleet/voucher-engine/voucher"
)

const valuePrecision = 4

var historyHeader = []string{
	"timestamp", "station", "old_discount", "new_discount", "actor", "reason",
}

// Registry persists per-station discounts with a full audit history.
type Registry struct {
	jsonPath    string
	historyPath string
	mu          sync.Mutex
	now         func() time.Time
}

// New opens (or creates) the registry files.
func New(jsonPath, historyPath string) (*Registry, error) {
	r := &Registry{jsonPath: jsonPath, historyPath: historyPath, now: time.Now}
	if err := r.ensureFiles(); err != nil {
		return nil, err
	}
	return r, nil
}

// WithClock overrides the time source for tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// =============================================================================
// PUBLIC API
// =============================================================================

// GetAll returns a copy of every station -> discount mapping.
func (r *Registry) GetAll() (map[string]decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Get returns the discount for a station, or ErrNotFound when the station
// has no entry.
func (r *Registry) Get(stationName string) (decimal.Decimal, error) {
	key := normalizeKey(stationName)

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.load()
	if err != nil {
		return decimal.Decimal{}, err
	}
	v, ok := data[key]
	if !ok {
		return decimal.Decimal{}, &voucher.NotFoundError{Kind: "discount", ID: key}
	}
	return v, nil
}

// Set stores (or, with a nil value, clears) a station's discount and appends
// one audit row. Clearing a station that has no entry is a no-op with no row.
func (r *Registry) Set(stationName string, value *decimal.Decimal, actor, reason string) error {
	key := normalizeKey(stationName)

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.load()
	if err != nil {
		return err
	}
	old, had := data[key]

	if value == nil {
		if !had {
			return nil
		}
		delete(data, key)
		if err := r.save(data); err != nil {
			return err
		}
		return r.appendHistory([]historyRow{{station: key, old: &old, new: nil, actor: actor, reason: reason}})
	}

	rounded, err := validateValue(*value)
	if err != nil {
		return err
	}
	data[key] = rounded
	if err := r.save(data); err != nil {
		return err
	}
	oldPtr := (*decimal.Decimal)(nil)
	if had {
		oldPtr = &old
	}
	return r.appendHistory([]historyRow{{station: key, old: oldPtr, new: &rounded, actor: actor, reason: reason}})
}

// SetMany applies a batch of upserts/removals under one critical section and
// writes one audit row per change. Values are validated before anything is
// persisted so a bad entry rejects the whole batch.
func (r *Registry) SetMany(updates map[string]*decimal.Decimal, actor, reason string) error {
	type change struct {
		key   string
		value *decimal.Decimal
	}
	changes := make([]change, 0, len(updates))
	for name, value := range updates {
		if value == nil {
			changes = append(changes, change{key: normalizeKey(name)})
			continue
		}
		rounded, err := validateValue(*value)
		if err != nil {
			return err
		}
		changes = append(changes, change{key: normalizeKey(name), value: &rounded})
	}
	// Deterministic audit order for map input.
	sort.Slice(changes, func(i, j int) bool { return changes[i].key < changes[j].key })

	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.load()
	if err != nil {
		return err
	}

	var rows []historyRow
	for _, c := range changes {
		old, had := data[c.key]
		if c.value == nil {
			if !had {
				continue
			}
			delete(data, c.key)
			oldCopy := old
			rows = append(rows, historyRow{station: c.key, old: &oldCopy, actor: actor, reason: reason})
			continue
		}
		data[c.key] = *c.value
		var oldPtr *decimal.Decimal
		if had {
			oldCopy := old
			oldPtr = &oldCopy
		}
		rows = append(rows, historyRow{station: c.key, old: oldPtr, new: c.value, actor: actor, reason: reason})
	}

	if err := r.save(data); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return r.appendHistory(rows)
}

// ClearAll removes every discount, one audit row per cleared station.
func (r *Registry) ClearAll(actor, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := r.load()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]historyRow, 0, len(keys))
	for _, k := range keys {
		old := data[k]
		rows = append(rows, historyRow{station: k, old: &old, actor: actor, reason: reason})
	}

	if err := r.save(map[string]decimal.Decimal{}); err != nil {
		return err
	}
	return r.appendHistory(rows)
}

// Resolve finds a discount for a booking-form station value: exact
// normalized-key match first, then dash/slug-normalized comparison against
// every stored key.
func (r *Registry) Resolve(stationName string) (decimal.Decimal, bool) {
	all, err := r.GetAll()
	if err != nil {
		return decimal.Decimal{}, false
	}
	if v, ok := all[normalizeKey(stationName)]; ok {
		return v, true
	}
	norm := voucher.NormalizeStation(stationName)
	slug := voucher.SlugStation(stationName)
	for k, v := range all {
		if voucher.NormalizeStation(k) == norm || voucher.SlugStation(k) == slug {
			return v, true
		}
	}
	return decimal.Decimal{}, false
}

// =============================================================================
// INTERNALS
// =============================================================================

func normalizeKey(station string) string { return strings.TrimSpace(station) }

func validateValue(v decimal.Decimal) (decimal.Decimal, error) {
	if v.IsNegative() {
		return decimal.Decimal{}, &voucher.InvalidValueError{
			Field:  "discount_per_liter",
			Value:  v.String(),
			Reason: "cannot be negative",
		}
	}
	return v.Round(valuePrecision), nil
}

func (r *Registry) ensureFiles() error {
	if _, err := os.Stat(r.jsonPath); os.IsNotExist(err) {
		if err := r.save(map[string]decimal.Decimal{}); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(r.historyPath), 0o755); err != nil {
		return &voucher.StorageError{Op: "create discount history dir", Err: err}
	}
	if _, err := os.Stat(r.historyPath); err == nil {
		return nil
	}
	f, err := os.OpenFile(r.historyPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return &voucher.StorageError{Op: "create discount history", Err: err}
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(historyHeader); err != nil {
		return &voucher.StorageError{Op: "write discount history header", Err: err}
	}
	w.Flush()
	return w.Error()
}

func (r *Registry) load() (map[string]decimal.Decimal, error) {
	raw, err := os.ReadFile(r.jsonPath)
	if err != nil {
		return nil, &voucher.StorageError{Op: "read discount store", Err: err}
	}
	var wire map[string]json.Number
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, &voucher.StorageError{Op: "decode discount store", Err: err}
	}

	out := make(map[string]decimal.Decimal, len(wire))
	for k, n := range wire {
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			continue // skip junk values rather than fail every read
		}
		out[normalizeKey(k)] = d
	}
	return out, nil
}

func (r *Registry) save(data map[string]decimal.Decimal) error {
	wire := make(map[string]json.Number, len(data))
	for k, v := range data {
		wire[k] = json.Number(v.String())
	}
	raw, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return &voucher.StorageError{Op: "encode discount store", Err: err}
	}
	if err := atomicfile.WriteFile(r.jsonPath, raw); err != nil {
		return &voucher.StorageError{Op: "write discount store", Err: err}
	}
	return nil
}

type historyRow struct {
	station string
	old     *decimal.Decimal
	new     *decimal.Decimal
	actor   string
	reason  string
}

func (r *Registry) appendHistory(rows []historyRow) error {
	f, err := os.OpenFile(r.historyPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &voucher.StorageError{Op: "open discount history", Err: err}
	}
	defer f.Close()

	ts := r.now().In(voucher.Manila()).Format("2006-01-02T15:04:05-07:00")
	w := csv.NewWriter(f)
	for _, row := range rows {
		old, newVal := "", ""
		if row.old != nil {
			old = row.old.String()
		}
		if row.new != nil {
			newVal = row.new.String()
		}
		if err := w.Write([]string{ts, row.station, old, newVal, row.actor, row.reason}); err != nil {
			return &voucher.StorageError{Op: "append discount history", Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &voucher.StorageError{Op: "flush discount history", Err: err}
	}
	return nil
}
