package report

import (
	"bytes"
	"encoding/csv"
)

// BuildSupplierCSV renders the supplier sheet as UTF-8 CSV with the same
// columns and values as the XLSX form.
func BuildSupplierCSV(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(columns); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := w.Write(r.cells()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
