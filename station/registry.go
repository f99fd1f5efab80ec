/*
Package station is the keyed store of fuel stations and their live prices.

PURPOSE:
  Each station carries a stable slug id, display metadata, the current price
  per liter, and the epoch time of its last price change. Prices are set
  manually through SetPrice; there is no feed. The registry is the source of
  the booking-time price snapshot and the approval-time live fallback.

PERSISTENCE:
  One JSON document (station_prices.json) rewritten atomically on every
  mutation. A companion append-only CSV (history.go) records every price
  change. Both are serialized behind one mutex per registry instance;
  concurrent processes sharing the file are unsupported.

SEE ALSO:
  - history.go: price-change audit CSV
  - discount/: the per-station discount registry, same persistence shape
*/
package station

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/unifleet/voucher-engine/atomicfile"
	"github.com/unifleet/voucher-engine/voucher"
)

// MaxPrice is the sanity ceiling for a per-liter price. A price above it is
// assumed to be a typo (e.g. a total pasted into the price box).
var MaxPrice = decimal.NewFromInt(200)

// Station is one fuel outlet.
type Station struct {
	ID        string
	Brand     string
	Name      string
	Location  string
	Price     decimal.Decimal
	UpdatedAt int64
}

// Registry stores stations in a JSON document with atomic replacement.
type Registry struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New opens (or seeds) the registry at path. A missing file is created with
// the default station list so a fresh deployment starts usable.
func New(path string) (*Registry, error) {
	r := &Registry{path: path, now: time.Now}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := r.save(defaultStations()); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, &voucher.StorageError{Op: "stat price registry", Err: err}
	}
	return r, nil
}

// WithClock overrides the time source. Tests use this to pin updated_at.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// List returns all stations.
func (r *Registry) List() ([]Station, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

// Get returns a single station by id.
func (r *Registry) Get(id string) (Station, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stations, err := r.load()
	if err != nil {
		return Station{}, err
	}
	for _, s := range stations {
		if s.ID == id {
			return s, nil
		}
	}
	return Station{}, &voucher.NotFoundError{Kind: "station", ID: id}
}

// SetPrice validates 0 < price <= 200, rounds to 2 decimals, stamps
// updated_at, persists, and returns the updated station.
func (r *Registry) SetPrice(id string, newPrice decimal.Decimal) (Station, error) {
	if !newPrice.IsPositive() || newPrice.GreaterThan(MaxPrice) {
		return Station{}, &voucher.InvalidValueError{
			Field:  "price",
			Value:  newPrice.String(),
			Reason: "must satisfy 0 < price <= 200",
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stations, err := r.load()
	if err != nil {
		return Station{}, err
	}

	for i := range stations {
		if stations[i].ID == id {
			stations[i].Price = newPrice.Round(2)
			stations[i].UpdatedAt = r.now().Unix()
			if err := r.save(stations); err != nil {
				return Station{}, err
			}
			return stations[i], nil
		}
	}
	return Station{}, &voucher.NotFoundError{Kind: "station", ID: id}
}

// Upsert adds or replaces a station wholesale. Not used by the admin flow,
// kept for import scripts.
func (r *Registry) Upsert(s Station) (Station, error) {
	if s.ID == "" || s.Name == "" {
		return Station{}, &voucher.InvalidValueError{Field: "station", Value: s.ID, Reason: "id and name are required"}
	}
	if s.UpdatedAt == 0 {
		s.UpdatedAt = r.now().Unix()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stations, err := r.load()
	if err != nil {
		return Station{}, err
	}
	for i := range stations {
		if stations[i].ID == s.ID {
			stations[i] = s
			return s, r.save(stations)
		}
	}
	stations = append(stations, s)
	return s, r.save(stations)
}

// Resolve finds a station for a booking-form value: id match first, then
// display-name match (case-insensitive, dash-normalized), then slug match.
// Returns ok=false when nothing matches; booking treats that as "no price
// snapshot", not an error.
func (r *Registry) Resolve(nameOrID string) (Station, bool) {
	stations, err := r.List()
	if err != nil {
		return Station{}, false
	}

	norm := voucher.NormalizeStation(nameOrID)
	slug := voucher.SlugStation(nameOrID)

	for _, s := range stations {
		if voucher.NormalizeStation(s.ID) == norm {
			return s, true
		}
	}
	for _, s := range stations {
		if voucher.NormalizeStation(s.Name) == norm {
			return s, true
		}
	}
	for _, s := range stations {
		if voucher.SlugStation(s.Name) == slug {
			return s, true
		}
	}
	return Station{}, false
}

// ResolveByName is the approval-time fallback: name match only,
// case-insensitive.
func (r *Registry) ResolveByName(name string) (Station, bool) {
	stations, err := r.List()
	if err != nil {
		return Station{}, false
	}
	target := strings.ToLower(strings.TrimSpace(name))
	for _, s := range stations {
		if strings.ToLower(strings.TrimSpace(s.Name)) == target {
			return s, true
		}
	}
	return Station{}, false
}

// =============================================================================
// FILE FORMAT
// =============================================================================

type stationJSON struct {
	ID        string      `json:"id"`
	Brand     string      `json:"brand"`
	Name      string      `json:"name"`
	Location  string      `json:"location"`
	Price     json.Number `json:"price"`
	UpdatedAt int64       `json:"updated_at"`
}

type registryJSON struct {
	Stations []stationJSON `json:"stations"`
}

func (r *Registry) load() ([]Station, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, &voucher.StorageError{Op: "read price registry", Err: err}
	}
	var doc registryJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &voucher.StorageError{Op: "decode price registry", Err: err}
	}

	out := make([]Station, 0, len(doc.Stations))
	for _, s := range doc.Stations {
		price, err := decimal.NewFromString(s.Price.String())
		if err != nil {
			price = decimal.Zero
		}
		out = append(out, Station{
			ID:        s.ID,
			Brand:     s.Brand,
			Name:      s.Name,
			Location:  s.Location,
			Price:     price,
			UpdatedAt: s.UpdatedAt,
		})
	}
	return out, nil
}

func (r *Registry) save(stations []Station) error {
	doc := registryJSON{Stations: make([]stationJSON, 0, len(stations))}
	for _, s := range stations {
		doc.Stations = append(doc.Stations, stationJSON{
			ID:        s.ID,
			Brand:     s.Brand,
			Name:      s.Name,
			Location:  s.Location,
			Price:     json.Number(s.Price.String()),
			UpdatedAt: s.UpdatedAt,
		})
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode price registry: %w", err)
	}
	if err := atomicfile.WriteFile(r.path, raw); err != nil {
		return &voucher.StorageError{Op: "write price registry", Err: err}
	}
	return nil
}

// defaultStations seeds a fresh registry. Prices are placeholders until the
// first SetPrice.
func defaultStations() []Station {
	mk := func(id, brand, name, location, price string, updatedAt int64) Station {
		return Station{
			ID:        id,
			Brand:     brand,
			Name:      name,
			Location:  location,
			Price:     decimal.RequireFromString(price),
			UpdatedAt: updatedAt,
		}
	}
	return []Station{
		mk("cleanfuel_valenzuela", "Cleanfuel", "Cleanfuel – Valenzuela", "NLEX Southbound", "60.0", 1756654640),
		mk("unioil_mandaluyong", "Unioil", "Unioil – Mandaluyong", "EDSA", "59.1", 0),
		mk("seaoil_bicutan", "Seaoil", "Seaoil – Bicutan", "SLEX Northbound", "58.9", 0),
		mk("ecooil_qc", "EcoOil", "EcoOil – QC", "Commonwealth", "58.3", 0),
		mk("maximumfuel_val", "Maximum Fuel", "Maximum Fuel – Valenzuela", "Punturin", "57.95", 0),
		mk("phoenix_meyc", "Phoenix", "Phoenix – Meycauayan", "NLEX", "58.2", 0),
		mk("petro_gsanj", "Petro G", "Petro G – San Jose", "Bulacan", "58.0", 0),
		mk("gazz_binan", "Gazz", "Gazz – Biñan", "SLEX Southbound", "57.8", 0),
		mk("filoil_stamesa", "FilOil", "FilOil – Sta. Mesa", "Manila", "59.4", 0),
		mk("petron_port", "Petron", "Petron – Port Area", "Port of Manila", "59.9", 0),
	}
}
