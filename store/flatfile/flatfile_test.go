package flatfile_test

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifleet/voucher-engine/store/flatfile"
	"github.com/unifleet/voucher-engine/store/storetest"
	"github.com/unifleet/voucher-engine/voucher"
)

func TestParity(t *testing.T) {
	storetest.Run(t, func(t *testing.T) voucher.Store {
		return flatfile.New(filepath.Join(t.TempDir(), "vouchers.csv"))
	})
}

func TestWritesCanonicalHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vouchers.csv")
	s := flatfile.New(path)

	_, err := s.CreateUnverifiedBooking(context.Background(), voucher.Voucher{Station: "A"})
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, voucher.Columns, rows[0])
}

func TestReadsLegacyColumnOrder(t *testing.T) {
	// A file written with a shuffled, partial header must still map cells
	// by column name.
	path := filepath.Join(t.TempDir(), "vouchers.csv")
	content := "station,voucher_id,status\nCleanfuel,UF-20240101-LEGACY,Redeemed\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s := flatfile.New(path)
	got, err := s.Get(context.Background(), "UF-20240101-LEGACY")
	require.NoError(t, err)
	assert.Equal(t, "Cleanfuel", got.Station)
	assert.Equal(t, voucher.StatusRedeemed, got.Status)
}

func TestReadsBOMHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vouchers.csv")
	content := "\uFEFFvoucher_id,station\nUF-20240101-BOMMED,Seaoil\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s := flatfile.New(path)
	got, err := s.Get(context.Background(), "UF-20240101-BOMMED")
	require.NoError(t, err)
	assert.Equal(t, "Seaoil", got.Station)
}

func TestMutationRewritesInCanonicalOrder(t *testing.T) {
	// After any mutation the legacy layout is upgraded to the full header.
	path := filepath.Join(t.TempDir(), "vouchers.csv")
	content := "station,voucher_id\nCleanfuel,UF-20240101-LEGACY\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s := flatfile.New(path)
	require.NoError(t, s.SetStatus(context.Background(), "UF-20240101-LEGACY", voucher.StatusUnredeemed, ""))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, voucher.Columns, rows[0])
	assert.Equal(t, "UF-20240101-LEGACY", rows[1][0])
}

func TestAppendPreservesExistingRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vouchers.csv")
	s := flatfile.New(path)
	ctx := context.Background()

	first, err := s.CreateUnverifiedBooking(ctx, voucher.Voucher{Station: "A"})
	require.NoError(t, err)

	require.NoError(t, s.Append(ctx, []voucher.Voucher{{VoucherID: "UF-20250901-IMPRT1", Station: "B"}}))

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.VoucherID, all[0].VoucherID)

	// Replacing by id keeps the row in its original file position.
	require.NoError(t, s.Append(ctx, []voucher.Voucher{{VoucherID: first.VoucherID, Station: "A2"}}))
	all, err = s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.VoucherID, all[0].VoucherID)
	assert.Equal(t, "A2", all[0].Station)
}
