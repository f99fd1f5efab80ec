package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifleet/voucher-engine/store/sqlite"
	"github.com/unifleet/voucher-engine/store/storetest"
	"github.com/unifleet/voucher-engine/voucher"
)

func newTestStore(t *testing.T) *sqlite.Store {
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestParity(t *testing.T) {
	storetest.Run(t, func(t *testing.T) voucher.Store {
		return newTestStore(t)
	})
}

func TestAppendUpsertsByPrimaryKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, []voucher.Voucher{
		{VoucherID: "UF-20250901-UPSERT", Station: "Old Name"},
	}))
	require.NoError(t, s.Append(ctx, []voucher.Voucher{
		{VoucherID: "UF-20250901-UPSERT", Station: "New Name"},
	}))

	all, err := s.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "re-import replaces, not duplicates")
	assert.Equal(t, "New Name", all[0].Station)
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.CreateUnverifiedBooking(ctx, voucher.Voucher{VoucherID: "UF-20250901-DUPDUP", Station: "A"})
	require.NoError(t, err)

	_, err = s.CreateUnverifiedBooking(ctx, voucher.Voucher{VoucherID: "UF-20250901-DUPDUP", Station: "B"})
	require.Error(t, err)
	assert.ErrorIs(t, err, voucher.ErrInvalidValue)
}

func TestUpdateFieldsStampsUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v, err := s.CreateUnverifiedBooking(ctx, voucher.Voucher{Station: "A"})
	require.NoError(t, err)

	// A caller-supplied updated_at is ignored in favor of the store's own
	// stamp, same as the flat-file backend.
	require.NoError(t, s.UpdateFields(ctx, v.VoucherID, map[string]string{
		voucher.ColUpdatedAt:  "1999-01-01 00:00:00",
		voucher.ColComputedAt: "2025-09-03 09:00:00",
	}))

	got, err := s.Get(ctx, v.VoucherID)
	require.NoError(t, err)
	assert.NotEqual(t, "1999-01-01 00:00:00", got.UpdatedAt)
	assert.Equal(t, "2025-09-03 09:00:00", got.ComputedAt)
}
