/*
Package flatfile is the CSV-backed voucher store.

PURPOSE:
  The whole voucher table lives in one header+rows CSV file. Every mutating
  call reads the file into memory, applies the change, and rewrites the
  entire file through a temp-file rename. That makes each mutation atomic
  for a single process; concurrent processes racing on the same file are
  unsupported (no cross-process lock), which is why every operation also
  funnels through one mutex per store instance.

COLUMNS:
  The header is generated from voucher.Columns, the same schema constant the
  SQLite backend builds its table from. Rows from older files with fewer or
  reordered columns are mapped by header name on read and rewritten in
  canonical order on the next mutation.

SEE ALSO:
  - store/sqlite: the relational backend with identical observable behavior
  - store/storetest: the shared parity suite
*/
package flatfile

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/unifleet/voucher-engine/atomicfile"
	"github.com/unifleet/voucher-engine/voucher"
)

// Store implements voucher.Store on one CSV file.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New opens a store at path. The file is created lazily on first write.
func New(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// WithClock overrides the time source for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Close is a no-op; the file is not held open between calls.
func (s *Store) Close() error { return nil }

// =============================================================================
// READS
// =============================================================================

func (s *Store) ListRecent(ctx context.Context, limit int) ([]voucher.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.read()
	if err != nil {
		return nil, err
	}
	voucher.SortRecent(rows)
	return voucher.Truncate(rows, limit), nil
}

func (s *Store) ListAll(ctx context.Context) ([]voucher.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) Get(ctx context.Context, voucherID string) (voucher.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.read()
	if err != nil {
		return voucher.Voucher{}, err
	}
	for _, v := range rows {
		if v.VoucherID == voucherID {
			return v, nil
		}
	}
	return voucher.Voucher{}, &voucher.NotFoundError{Kind: "voucher", ID: voucherID}
}

// =============================================================================
// MUTATIONS - read, modify, rewrite whole file
// =============================================================================

func (s *Store) SetStatus(ctx context.Context, voucherID string, status voucher.Status, redemptionTimestamp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.read()
	if err != nil {
		return err
	}
	for i := range rows {
		if rows[i].VoucherID != voucherID {
			continue
		}
		rows[i].Status = status
		if status == voucher.StatusRedeemed {
			rows[i].RedemptionTimestamp = redemptionTimestamp
		} else {
			rows[i].RedemptionTimestamp = ""
		}
		rows[i].UpdatedAt = s.stamp()
		return s.write(rows)
	}
	return &voucher.NotFoundError{Kind: "voucher", ID: voucherID}
}

func (s *Store) Append(ctx context.Context, newRows []voucher.Voucher) error {
	if len(newRows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.read()
	if err != nil {
		return err
	}

	// Upsert by voucher id so re-imports replace rather than duplicate,
	// matching the SQLite backend's primary-key semantics.
	index := make(map[string]int, len(rows))
	for i, r := range rows {
		if r.VoucherID != "" {
			index[r.VoucherID] = i
		}
	}
	for _, nr := range newRows {
		if i, ok := index[nr.VoucherID]; ok {
			rows[i] = nr
			continue
		}
		if nr.VoucherID != "" {
			index[nr.VoucherID] = len(rows)
		}
		rows = append(rows, nr)
	}
	return s.write(rows)
}

func (s *Store) CreateUnverifiedBooking(ctx context.Context, v voucher.Voucher) (voucher.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.read()
	if err != nil {
		return voucher.Voucher{}, err
	}

	ids := make(map[string]bool, len(rows))
	for _, r := range rows {
		ids[r.VoucherID] = true
	}
	now := s.now()
	v = voucher.PrepareBooking(v, now,
		func(id string) bool { return ids[id] },
		func() string { return voucher.NewVoucherID(now) },
	)
	if ids[v.VoucherID] {
		return voucher.Voucher{}, &voucher.InvalidValueError{
			Field: "voucher_id", Value: v.VoucherID, Reason: "already exists",
		}
	}

	if err := s.write(append(rows, v)); err != nil {
		return voucher.Voucher{}, err
	}
	return v, nil
}

func (s *Store) UpdateFields(ctx context.Context, voucherID string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.read()
	if err != nil {
		return err
	}
	for i := range rows {
		if rows[i].VoucherID != voucherID {
			continue
		}
		updated, err := voucher.ApplyFields(rows[i], fields)
		if err != nil {
			return err
		}
		updated.UpdatedAt = s.stamp()
		rows[i] = updated
		return s.write(rows)
	}
	return &voucher.NotFoundError{Kind: "voucher", ID: voucherID}
}

// =============================================================================
// FILE I/O
// =============================================================================

func (s *Store) stamp() string {
	return s.now().UTC().Format(voucher.TimestampLayout)
}

func (s *Store) read() ([]voucher.Voucher, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &voucher.StorageError{Op: "open voucher file", Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // tolerate legacy rows with fewer columns

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &voucher.StorageError{Op: "read voucher header", Err: err}
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	var out []voucher.Voucher
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &voucher.StorageError{Op: "read voucher row", Err: err}
		}
		fields := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(row) {
				fields[strings.TrimSpace(col)] = row[i]
			}
		}
		out = append(out, voucher.FromFields(fields))
	}
	return out, nil
}

func (s *Store) write(rows []voucher.Voucher) error {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(voucher.Columns); err != nil {
		return &voucher.StorageError{Op: "encode voucher header", Err: err}
	}
	for _, v := range rows {
		if err := w.Write(v.Record()); err != nil {
			return &voucher.StorageError{Op: "encode voucher row", Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &voucher.StorageError{Op: "flush voucher rows", Err: err}
	}

	if err := atomicfile.WriteFile(s.path, []byte(sb.String())); err != nil {
		return &voucher.StorageError{Op: "write voucher file", Err: err}
	}
	return nil
}
