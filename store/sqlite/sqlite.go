/*
Package sqlite is the relational voucher store.

PURPOSE:
  One row per voucher, voucher_id as primary key. Bulk inserts use upsert
  semantics (INSERT OR REPLACE by primary key); status changes and partial
  updates are single-row UPDATE statements.

SCHEMA:
  The table definition is generated from voucher.Columns - the same schema
  constant the flat-file backend derives its header from - so the two
  backends cannot drift apart. All columns are TEXT; typed access lives on
  the voucher.Voucher struct, identically for both backends.

ORDERING:
  ListRecent loads candidate rows in insertion (rowid) order and sorts
  through voucher.SortRecent, the shared comparator, rather than SQL ORDER
  BY. Transaction dates arrive in several legacy layouts that lexicographic
  TEXT ordering would mangle.

WAL MODE:
  SQLite is opened with WAL for better crash recovery. A sync.Mutex per
  store instance serializes mutations, same as the flat-file backend.

SEE ALSO:
  - store/flatfile: the CSV backend with identical observable behavior
  - store/storetest: the shared parity suite
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/unifleet/voucher-engine/voucher"
)

// Store implements voucher.Store on a SQLite database.
type Store struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// New opens (or creates) the database at dbPath. Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, &voucher.StorageError{Op: "open database", Err: err}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, &voucher.StorageError{Op: "migrate database", Err: err}
	}
	return s, nil
}

// WithClock overrides the time source for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	cols := make([]string, 0, len(voucher.Columns))
	for _, c := range voucher.Columns {
		if c == voucher.ColVoucherID {
			cols = append(cols, c+" TEXT PRIMARY KEY")
			continue
		}
		cols = append(cols, c+" TEXT")
	}
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS vouchers (%s);

	CREATE INDEX IF NOT EXISTS idx_vouchers_status ON vouchers(status);
	CREATE INDEX IF NOT EXISTS idx_vouchers_station ON vouchers(station);
	`, strings.Join(cols, ",\n\t\t"))

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// READS
// =============================================================================

func (s *Store) ListRecent(ctx context.Context, limit int) ([]voucher.Voucher, error) {
	rows, err := s.queryVouchers(ctx, "SELECT "+strings.Join(voucher.Columns, ", ")+" FROM vouchers ORDER BY rowid ASC")
	if err != nil {
		return nil, err
	}
	voucher.SortRecent(rows)
	return voucher.Truncate(rows, limit), nil
}

func (s *Store) ListAll(ctx context.Context) ([]voucher.Voucher, error) {
	return s.queryVouchers(ctx, "SELECT "+strings.Join(voucher.Columns, ", ")+" FROM vouchers")
}

func (s *Store) Get(ctx context.Context, voucherID string) (voucher.Voucher, error) {
	rows, err := s.queryVouchers(ctx,
		"SELECT "+strings.Join(voucher.Columns, ", ")+" FROM vouchers WHERE "+voucher.ColVoucherID+" = ?",
		voucherID)
	if err != nil {
		return voucher.Voucher{}, err
	}
	if len(rows) == 0 {
		return voucher.Voucher{}, &voucher.NotFoundError{Kind: "voucher", ID: voucherID}
	}
	return rows[0], nil
}

func (s *Store) queryVouchers(ctx context.Context, query string, args ...any) ([]voucher.Voucher, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &voucher.StorageError{Op: "query vouchers", Err: err}
	}
	defer rows.Close()

	var out []voucher.Voucher
	for rows.Next() {
		cells := make([]sql.NullString, len(voucher.Columns))
		dest := make([]any, len(cells))
		for i := range cells {
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, &voucher.StorageError{Op: "scan voucher", Err: err}
		}
		record := make([]string, len(cells))
		for i, c := range cells {
			record[i] = c.String
		}
		out = append(out, voucher.FromRecord(record))
	}
	if err := rows.Err(); err != nil {
		return nil, &voucher.StorageError{Op: "iterate vouchers", Err: err}
	}
	return out, nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

func (s *Store) SetStatus(ctx context.Context, voucherID string, status voucher.Status, redemptionTimestamp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status != voucher.StatusRedeemed {
		redemptionTimestamp = ""
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE vouchers SET %s = ?, %s = ?, %s = ? WHERE %s = ?",
			voucher.ColStatus, voucher.ColRedemptionTS, voucher.ColUpdatedAt, voucher.ColVoucherID),
		string(status), redemptionTimestamp, s.stamp(), voucherID)
	if err != nil {
		return &voucher.StorageError{Op: "update status", Err: err}
	}
	return requireRow(res, voucherID)
}

func (s *Store) Append(ctx context.Context, newRows []voucher.Voucher) error {
	if len(newRows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &voucher.StorageError{Op: "begin append", Err: err}
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(voucher.Columns)), ",")
	stmt := fmt.Sprintf("INSERT OR REPLACE INTO vouchers (%s) VALUES (%s)",
		strings.Join(voucher.Columns, ", "), placeholders)

	for _, v := range newRows {
		record := v.Record()
		args := make([]any, len(record))
		for i, cell := range record {
			args[i] = cell
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return &voucher.StorageError{Op: "insert voucher", Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &voucher.StorageError{Op: "commit append", Err: err}
	}
	return nil
}

func (s *Store) CreateUnverifiedBooking(ctx context.Context, v voucher.Voucher) (voucher.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	v = voucher.PrepareBooking(v, now,
		func(id string) bool { return s.idExists(ctx, id) },
		func() string { return voucher.NewVoucherID(now) },
	)
	if s.idExists(ctx, v.VoucherID) {
		return voucher.Voucher{}, &voucher.InvalidValueError{
			Field: "voucher_id", Value: v.VoucherID, Reason: "already exists",
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(voucher.Columns)), ",")
	record := v.Record()
	args := make([]any, len(record))
	for i, cell := range record {
		args[i] = cell
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO vouchers (%s) VALUES (%s)",
			strings.Join(voucher.Columns, ", "), placeholders),
		args...)
	if err != nil {
		return voucher.Voucher{}, &voucher.StorageError{Op: "insert booking", Err: err}
	}
	return v, nil
}

func (s *Store) UpdateFields(ctx context.Context, voucherID string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate column names through the shared schema before touching SQL.
	for name, value := range fields {
		if !voucher.KnownColumn(name) {
			return &voucher.InvalidValueError{Field: name, Value: value, Reason: voucher.ErrUnknownColumn.Error()}
		}
		if name == voucher.ColVoucherID {
			return &voucher.InvalidValueError{Field: name, Value: value, Reason: "voucher_id is immutable"}
		}
	}

	assignments := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for _, col := range voucher.Columns { // deterministic statement shape
		if col == voucher.ColUpdatedAt {
			continue // always stamped below, never caller-supplied
		}
		if value, ok := fields[col]; ok {
			assignments = append(assignments, col+" = ?")
			args = append(args, value)
		}
	}
	assignments = append(assignments, voucher.ColUpdatedAt+" = ?")
	args = append(args, s.stamp(), voucherID)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE vouchers SET %s WHERE %s = ?",
			strings.Join(assignments, ", "), voucher.ColVoucherID),
		args...)
	if err != nil {
		return &voucher.StorageError{Op: "update voucher fields", Err: err}
	}
	return requireRow(res, voucherID)
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) stamp() string {
	return s.now().UTC().Format(voucher.TimestampLayout)
}

func (s *Store) idExists(ctx context.Context, id string) bool {
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vouchers WHERE "+voucher.ColVoucherID+" = ?", id).Scan(&n); err != nil {
		return false
	}
	return n > 0
}

func requireRow(res sql.Result, voucherID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return &voucher.StorageError{Op: "rows affected", Err: err}
	}
	if n == 0 {
		return &voucher.NotFoundError{Kind: "voucher", ID: voucherID}
	}
	return nil
}
