package audit_test

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifleet/voucher-engine/audit"
	"github.com/unifleet/voucher-engine/voucher"
)

func TestAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voucher_audit.csv")
	fixed := time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)

	l, err := audit.New(path, nil)
	require.NoError(t, err)
	l.WithClock(func() time.Time { return fixed })

	require.NoError(t, l.Append(audit.Entry{
		Action:     audit.ActionApprove,
		VoucherID:  "UF-20250901-X7K2QD",
		FromStatus: voucher.StatusUnverified,
		ToStatus:   voucher.StatusUnredeemed,
		Actor:      "ops",
		Note:       "price=60 discount=2.5 total=1041.68",
	}))
	require.NoError(t, l.Append(audit.Entry{
		Action:    audit.ActionRedeemDenied,
		VoucherID: "UF-20250901-X7K2QD",
		Actor:     "pump-3",
		Note:      "strict=true",
	}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two entries")

	assert.Equal(t, []string{
		"timestamp", "entry_id", "action", "voucher_id",
		"from_status", "to_status", "actor", "note",
	}, rows[0])

	first := rows[1]
	assert.Equal(t, "approve", first[2])
	assert.Equal(t, "UF-20250901-X7K2QD", first[3])
	assert.Equal(t, "Unverified", first[4])
	assert.Equal(t, "Unredeemed", first[5])
	assert.NotEmpty(t, first[1], "entry id assigned")
	assert.NotEqual(t, first[1], rows[2][1], "entry ids are unique")

	// Timestamps render in the Manila zone.
	assert.Equal(t, fixed.In(voucher.Manila()).Format("2006-01-02T15:04:05-07:00"), first[0])
}

func TestNew_IdempotentHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voucher_audit.csv")

	l, err := audit.New(path, nil)
	require.NoError(t, err)
	require.NoError(t, l.Append(audit.Entry{Action: audit.ActionBook, VoucherID: "V1"}))

	// Reopening must not truncate or re-write the header.
	_, err = audit.New(path, nil)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
