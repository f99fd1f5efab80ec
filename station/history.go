/*
history.go - Append-only price-change audit

Every successful SetPrice appends one row here. The file is never truncated
or rewritten; rows are advisory and a write failure does not roll back the
price change itself.
*/
package station

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/unifleet/voucher-engine/voucher"
)

var historyHeader = []string{
	"timestamp_iso", "timestamp_unix", "station_id",
	"old_price", "new_price", "actor", "user_agent",
}

// PriceChange is one audit row.
type PriceChange struct {
	UpdatedUnix int64
	StationID   string
	OldPrice    decimal.NullDecimal
	NewPrice    decimal.Decimal
	Actor       string
	UserAgent   string
}

// History appends price changes to a CSV file.
type History struct {
	path string
	mu   sync.Mutex
}

// NewHistory creates the audit file with its header if missing.
func NewHistory(path string) (*History, error) {
	h := &History{path: path}
	if err := h.ensure(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *History) ensure() error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return &voucher.StorageError{Op: "create price history dir", Err: err}
	}
	if _, err := os.Stat(h.path); err == nil {
		return nil
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return &voucher.StorageError{Op: "create price history", Err: err}
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(historyHeader); err != nil {
		return &voucher.StorageError{Op: "write price history header", Err: err}
	}
	w.Flush()
	return w.Error()
}

// Append writes one row. timestamp_iso renders the change time in the
// Manila zone to match the rest of the audit files.
func (h *History) Append(c PriceChange) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &voucher.StorageError{Op: "open price history", Err: err}
	}
	defer f.Close()

	old := ""
	if c.OldPrice.Valid {
		old = c.OldPrice.Decimal.String()
	}
	row := []string{
		time.Unix(c.UpdatedUnix, 0).In(voucher.Manila()).Format("2006-01-02T15:04:05-07:00"),
		strconv.FormatInt(c.UpdatedUnix, 10),
		c.StationID,
		old,
		c.NewPrice.String(),
		c.Actor,
		c.UserAgent,
	}

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return &voucher.StorageError{Op: "append price history", Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &voucher.StorageError{Op: "flush price history", Err: err}
	}
	return nil
}
