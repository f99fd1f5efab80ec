/*
Package audit records voucher status transitions in an append-only CSV.

Every lifecycle outcome - success, denial, or failure - appends one row
capturing the previous and requested status plus a free-text note (which
policy mode was active, why a transition was denied, what an upstream token
check decided). Rows are advisory: a failed append is logged and swallowed,
it never rolls back the transition it describes.
*/
package audit

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/unifleet/voucher-engine/voucher"
)

var header = []string{
	"timestamp", "entry_id", "action", "voucher_id",
	"from_status", "to_status", "actor", "note",
}

// Action names the lifecycle event being recorded.
type Action string

const (
	ActionBook          Action = "book"
	ActionApprove       Action = "approve"
	ActionApproveSkip   Action = "approve_compute_skip"
	ActionApproveFailed Action = "approve_assets_error"
	ActionRedeemSuccess Action = "redeem_success"
	ActionRedeemDenied  Action = "redeem_denied"
	ActionImport        Action = "import"
	ActionSetStatus     Action = "ops_set_status"
	ActionStatusDenied  Action = "ops_set_status_denied"
	ActionPriceSnapshot Action = "price_snapshot_miss"
)

// Entry is one row of the status-history log.
type Entry struct {
	Action     Action
	VoucherID  string
	FromStatus voucher.Status
	ToStatus   voucher.Status
	Actor      string
	Note       string
}

// Log appends entries to a CSV file.
type Log struct {
	path   string
	mu     sync.Mutex
	now    func() time.Time
	logger *logrus.Logger
}

// New creates the log file with its header if missing.
func New(path string, logger *logrus.Logger) (*Log, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	l := &Log{path: path, now: time.Now, logger: logger}
	if err := l.ensure(); err != nil {
		return nil, err
	}
	return l, nil
}

// WithClock overrides the time source for tests.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

// Append writes one entry. Errors are reported to the logger and returned,
// but callers in the lifecycle path deliberately ignore them.
func (l *Log) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.logger.WithError(err).Warn("audit log open failed")
		return &voucher.StorageError{Op: "open audit log", Err: err}
	}
	defer f.Close()

	row := []string{
		l.now().In(voucher.Manila()).Format("2006-01-02T15:04:05-07:00"),
		uuid.NewString(),
		string(e.Action),
		e.VoucherID,
		string(e.FromStatus),
		string(e.ToStatus),
		e.Actor,
		e.Note,
	}

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		l.logger.WithError(err).Warn("audit log append failed")
		return &voucher.StorageError{Op: "append audit log", Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		l.logger.WithError(err).Warn("audit log flush failed")
		return &voucher.StorageError{Op: "flush audit log", Err: err}
	}
	return nil
}

func (l *Log) ensure() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return &voucher.StorageError{Op: "create audit log dir", Err: err}
	}
	if _, err := os.Stat(l.path); err == nil {
		return nil
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return &voucher.StorageError{Op: "create audit log", Err: err}
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return &voucher.StorageError{Op: "write audit log header", Err: err}
	}
	w.Flush()
	return w.Error()
}
