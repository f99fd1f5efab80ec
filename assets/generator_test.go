package assets_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifleet/voucher-engine/assets"
	"github.com/unifleet/voucher-engine/voucher"
)

func TestGenerate(t *testing.T) {
	g := assets.NewQRGenerator(t.TempDir()+"/qrcodes", "https://vouchers.example.com/")
	v := voucher.Voucher{VoucherID: "UF-20250901-X7K2QD"}

	require.NoError(t, g.Generate(context.Background(), v))
	require.True(t, g.Exists(v.VoucherID))

	data, err := os.ReadFile(g.Path(v.VoucherID))
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}

func TestGenerate_Idempotent(t *testing.T) {
	g := assets.NewQRGenerator(t.TempDir(), "https://vouchers.example.com")
	v := voucher.Voucher{VoucherID: "UF-20250901-X7K2QD"}
	ctx := context.Background()

	require.NoError(t, g.Generate(ctx, v))
	first, err := os.Stat(g.Path(v.VoucherID))
	require.NoError(t, err)

	require.NoError(t, g.Generate(ctx, v))
	second, err := os.Stat(g.Path(v.VoucherID))
	require.NoError(t, err)
	assert.Equal(t, first.ModTime(), second.ModTime(), "existing artifact untouched")
}

func TestGenerate_RequiresID(t *testing.T) {
	g := assets.NewQRGenerator(t.TempDir(), "https://vouchers.example.com")
	err := g.Generate(context.Background(), voucher.Voucher{})
	assert.ErrorIs(t, err, voucher.ErrInvalidValue)
}

func TestRemove_MissingIsFine(t *testing.T) {
	g := assets.NewQRGenerator(t.TempDir(), "https://vouchers.example.com")
	assert.NoError(t, g.Remove("UF-20250901-MISSING"))
}
