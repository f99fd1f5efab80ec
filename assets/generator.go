/*
Package assets produces redemption artifacts for finalized vouchers.

The generator writes one scannable QR code PNG per voucher, encoding the
public redemption URL. It is deliberately idempotent: an artifact that
already exists is left untouched, so the approval step can be retried
without duplicating work. The generator never reads or writes the voucher
store.
*/
package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/unifleet/voucher-engine/atomicfile"
	"github.com/unifleet/voucher-engine/voucher"
)

const qrSize = 512

// QRGenerator implements lifecycle.AssetGenerator with QR code PNGs.
type QRGenerator struct {
	outputDir string
	baseURL   string
}

// NewQRGenerator writes artifacts under outputDir. baseURL is the public
// prefix of the redemption page, e.g. "https://vouchers.example.com".
func NewQRGenerator(outputDir, baseURL string) *QRGenerator {
	return &QRGenerator{
		outputDir: outputDir,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// Path returns where a voucher's QR artifact lives.
func (g *QRGenerator) Path(voucherID string) string {
	return filepath.Join(g.outputDir, voucherID+".png")
}

// Exists reports whether the artifact has been generated.
func (g *QRGenerator) Exists(voucherID string) bool {
	_, err := os.Stat(g.Path(voucherID))
	return err == nil
}

// Generate writes the QR PNG for v unless it already exists.
func (g *QRGenerator) Generate(ctx context.Context, v voucher.Voucher) error {
	id := strings.TrimSpace(v.VoucherID)
	if id == "" {
		return &voucher.InvalidValueError{Field: "voucher_id", Value: "", Reason: "required for asset generation"}
	}
	if g.Exists(id) {
		return nil
	}

	content := fmt.Sprintf("%s/redeem/%s", g.baseURL, id)
	png, err := qrcode.Encode(content, qrcode.Medium, qrSize)
	if err != nil {
		return fmt.Errorf("encode qr for %s: %w", id, err)
	}
	if err := atomicfile.WriteFile(g.Path(id), png); err != nil {
		return fmt.Errorf("write qr for %s: %w", id, err)
	}
	return nil
}

// Remove deletes a voucher's artifacts. Missing files are not an error.
func (g *QRGenerator) Remove(voucherID string) error {
	err := os.Remove(g.Path(voucherID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
