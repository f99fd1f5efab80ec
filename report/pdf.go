package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// BuildSupplierPDF renders the supplier sheet as a landscape A4 PDF.
func BuildSupplierPDF(title string, rows []Row, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, title)
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 5, fmt.Sprintf("Generated: %s", generatedAt.Format("2006-01-02 15:04")))
	pdf.Ln(5)
	pdf.Cell(0, 5, fmt.Sprintf("Vouchers: %d", len(rows)))
	pdf.Ln(8)

	type col struct {
		label string
		width float64
		align string
	}
	cols := []col{
		{"Voucher ID", 36, "L"},
		{"Station", 46, "L"},
		{"Date", 28, "L"},
		{"Driver", 36, "L"},
		{"Plate", 20, "L"},
		{"Amount", 22, "R"},
		{"Price/L", 18, "R"},
		{"Disc/L", 16, "R"},
		{"Liters", 18, "R"},
		{"Disc Total", 20, "R"},
		{"Dispensed", 22, "R"},
	}

	pdf.SetFont("Arial", "B", 8)
	for _, c := range cols {
		pdf.CellFormat(c.width, 6, c.label, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, r := range rows {
		cells := []string{
			r.VoucherID,
			r.Station,
			r.TransactionDate,
			r.DriverName,
			r.VehiclePlate,
			r.RequestedAmount.StringFixed(2),
			r.PricePerLiter.StringFixed(2),
			r.DiscountPerLiter.String(),
			r.LitersRequested.StringFixed(2),
			r.DiscountTotal.StringFixed(2),
			r.TotalDispensed.StringFixed(2),
		}
		for i, c := range cols {
			pdf.CellFormat(c.width, 6, cells[i], "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
