/*
handlers.go - HTTP handlers for the voucher engine

PURPOSE:
  Translates HTTP requests into engine calls and engine results back into
  JSON. Handlers parse and validate; all lifecycle decisions live in the
  lifecycle package, all registry rules in station/ and discount/.
*/
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/unifleet/voucher-engine/audit"
	"github.com/unifleet/voucher-engine/discount"
	"github.com/unifleet/voucher-engine/lifecycle"
	"github.com/unifleet/voucher-engine/metrics"
	"github.com/unifleet/voucher-engine/report"
	"github.com/unifleet/voucher-engine/station"
	"github.com/unifleet/voucher-engine/voucher"
)

const defaultRecentLimit = 100

// AssetRemover deletes generated redemption artifacts for a voucher.
type AssetRemover interface {
	Remove(voucherID string) error
}

// Handler bundles the engine collaborators the HTTP layer needs.
type Handler struct {
	Controller   *lifecycle.Controller
	Store        voucher.Store
	Stations     *station.Registry
	PriceHistory *station.History
	Discounts    *discount.Registry
	Audit        *audit.Log
	Assets       AssetRemover
	Logger       *logrus.Logger

	// OpsToken guards operator routes; empty disables the check.
	OpsToken string

	// SupplierToken guards the per-voucher supplier view.
	SupplierToken string

	// Clock is a test hook; nil means time.Now.
	Clock func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RequireOpsToken rejects requests whose X-Ops-Token header does not match
// the configured token. With no token configured, the route stays open.
func (h *Handler) RequireOpsToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.OpsToken != "" && r.Header.Get("X-Ops-Token") != h.OpsToken {
			writeJSON(w, http.StatusForbidden, errorResponse{Code: "forbidden", Error: "invalid operator token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// VOUCHERS
// =============================================================================

func (h *Handler) ListRecentVouchers(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, &voucher.InvalidValueError{Field: "limit", Value: raw, Reason: "must be a positive integer"})
			return
		}
		limit = n
	}
	vs, err := h.Store.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vouchers": vouchersJSON(vs)})
}

func (h *Handler) ListAllVouchers(w http.ResponseWriter, r *http.Request) {
	vs, err := h.Store.ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"vouchers": vouchersJSON(vs), "count": len(vs)})
}

func (h *Handler) GetVoucher(w http.ResponseWriter, r *http.Request) {
	v, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voucherJSON(v))
}

func (h *Handler) BookVoucher(w http.ResponseWriter, r *http.Request) {
	var req BookVoucherRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	amount, err := decimal.NewFromString(req.RequestedAmount)
	if err != nil {
		writeError(w, &voucher.InvalidValueError{Field: "requested_amount", Value: req.RequestedAmount, Reason: "not a number"})
		return
	}
	if _, ok := voucher.ParseTransactionDate(req.RefuelDatetime); !ok {
		writeError(w, &voucher.InvalidValueError{Field: "refuel_datetime", Value: req.RefuelDatetime, Reason: "unrecognized date format"})
		return
	}

	v, err := h.Controller.Book(r.Context(), lifecycle.BookingRequest{
		AccountCode:     req.AccountCode,
		Station:         req.Station,
		RequestedAmount: amount,
		RefuelDatetime:  req.RefuelDatetime,
		DriverName:      req.DriverName,
		VehiclePlate:    req.VehiclePlate,
		TruckMake:       req.TruckMake,
		TruckModel:      req.TruckModel,
		NumberOfWheels:  req.NumberOfWheels,
		FuelType:        req.FuelType,
		Actor:           req.AccountCode,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, voucherJSON(v))
}

func (h *Handler) RedeemVoucher(w http.ResponseWriter, r *http.Request) {
	v, err := h.Controller.Redeem(r.Context(), chi.URLParam(r, "id"), actorFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voucherJSON(v))
}

func (h *Handler) SetVoucherStatus(w http.ResponseWriter, r *http.Request) {
	target, err := voucher.ParseStatus(chi.URLParam(r, "status"))
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := h.Controller.ForceStatus(r.Context(), chi.URLParam(r, "id"), target, actorFrom(r), r.URL.Query().Get("note"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voucherJSON(v))
}

// ImportVouchers bulk-loads column-keyed rows, assigning ids where missing.
// Existing ids are overwritten in both store backends.
func (h *Handler) ImportVouchers(w http.ResponseWriter, r *http.Request) {
	var req ImportVouchersRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rows := make([]voucher.Voucher, 0, len(req.Rows))
	for i, fields := range req.Rows {
		for col := range fields {
			if !voucher.KnownColumn(col) {
				writeError(w, &voucher.InvalidValueError{
					Field:  fmt.Sprintf("rows[%d]", i),
					Value:  col,
					Reason: "unknown column",
				})
				return
			}
		}
		v := voucher.FromFields(fields)
		if v.VoucherID == "" {
			v.VoucherID = voucher.NewVoucherID(time.Now())
		}
		rows = append(rows, v)
	}
	if err := h.Store.Append(r.Context(), rows); err != nil {
		writeError(w, err)
		return
	}

	actor := actorFrom(r)
	for _, v := range rows {
		if err := h.Audit.Append(audit.Entry{
			Action: audit.ActionImport, VoucherID: v.VoucherID,
			ToStatus: v.CurrentStatus(), Actor: actor, Note: "bulk import",
		}); err != nil {
			// Advisory log; the rows are already in the store.
			h.Logger.WithError(err).Warn("import audit append failed")
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"imported": len(rows)})
}

// DeleteVoucherAssets removes a voucher's generated artifacts so the next
// approval regenerates them. The voucher record itself is untouched.
func (h *Handler) DeleteVoucherAssets(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Store.Get(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	if h.Assets != nil {
		if err := h.Assets.Remove(id); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// =============================================================================
// STATIONS
// =============================================================================

type stationJSON struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	Name      string `json:"name"`
	Location  string `json:"location"`
	Price     string `json:"price"`
	UpdatedAt int64  `json:"updated_at"`
}

func toStationJSON(s station.Station) stationJSON {
	return stationJSON{
		ID:        s.ID,
		Brand:     s.Brand,
		Name:      s.Name,
		Location:  s.Location,
		Price:     s.Price.StringFixed(2),
		UpdatedAt: s.UpdatedAt,
	}
}

func (h *Handler) ListStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.Stations.List()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]stationJSON, 0, len(stations))
	for _, s := range stations {
		out = append(out, toStationJSON(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"stations": out})
}

func (h *Handler) GetStation(w http.ResponseWriter, r *http.Request) {
	s, err := h.Stations.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStationJSON(s))
}

func (h *Handler) SetStationPrice(w http.ResponseWriter, r *http.Request) {
	var req SetPriceRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, &voucher.InvalidValueError{Field: "price", Value: req.Price, Reason: "not a number"})
		return
	}

	id := chi.URLParam(r, "id")
	prev, prevErr := h.Stations.Get(id)

	s, err := h.Stations.SetPrice(id, price)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.PriceUpdates.Inc()

	change := station.PriceChange{
		UpdatedUnix: s.UpdatedAt,
		StationID:   s.ID,
		NewPrice:    s.Price,
		Actor:       firstNonEmpty(req.Actor, actorFrom(r)),
		UserAgent:   r.UserAgent(),
	}
	if prevErr == nil {
		change.OldPrice = decimal.NullDecimal{Decimal: prev.Price, Valid: true}
	}
	if err := h.PriceHistory.Append(change); err != nil {
		// Advisory log; the price change already took effect.
		h.Logger.WithError(err).Warn("price history append failed")
	}

	writeJSON(w, http.StatusOK, toStationJSON(s))
}

// priceStaleAfter marks a registry price as suspect when nobody has
// refreshed it for a week.
const priceStaleAfter = 7 * 24 * time.Hour

// PricePreview quotes the voucher math for a station before anything is
// booked: same formulas, no persistence. The stale flag warns the caller
// when the registry price has not been refreshed recently.
func (h *Handler) PricePreview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	amount, err := decimal.NewFromString(strings.TrimSpace(q.Get("amount")))
	if err != nil {
		writeError(w, &voucher.InvalidValueError{Field: "amount", Value: q.Get("amount"), Reason: "not a number"})
		return
	}
	dpl := decimal.Zero
	if raw := strings.TrimSpace(q.Get("discount_per_liter")); raw != "" {
		if parsed, err := decimal.NewFromString(raw); err == nil {
			dpl = parsed
		}
	}

	s, ok := h.Stations.Resolve(q.Get("station"))
	if !ok {
		writeError(w, &voucher.NotFoundError{Kind: "station", ID: q.Get("station")})
		return
	}

	if amount.Sign() <= 0 || s.Price.Sign() <= 0 {
		writeError(w, &voucher.InvalidValueError{Field: "amount", Value: amount.String(), Reason: "amount and station price must be positive"})
		return
	}

	comp := voucher.Compute(amount, s.Price, dpl)
	stale := s.UpdatedAt <= 0 || h.now().Sub(time.Unix(s.UpdatedAt, 0)) >= priceStaleAfter

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":                   true,
		"station_id":           s.ID,
		"station_name":         s.Name,
		"price_php_per_liter":  s.Price.String(),
		"price_updated_at":     s.UpdatedAt,
		"price_is_stale":       stale,
		"requested_amount_php": amount.String(),
		"discount_per_liter":   dpl.String(),
		"liters_requested":     comp.LitersRequested.String(),
		"discount_total":       comp.DiscountTotal.String(),
		"total_dispensed":      comp.TotalDispensed.String(),
		"liters_dispensed":     comp.LitersDispensed.String(),
	})
}

// =============================================================================
// DISCOUNTS
// =============================================================================

func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	all, err := h.Discounts.GetAll()
	if err != nil {
		writeError(w, err)
		return
	}
	out := make(map[string]string, len(all))
	for k, v := range all {
		out[k] = v.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{"discounts": out})
}

func (h *Handler) UpdateDiscounts(w http.ResponseWriter, r *http.Request) {
	var req UpdateDiscountsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	updates := make(map[string]*decimal.Decimal, len(req.Updates))
	for stationName, raw := range req.Updates {
		if raw == nil {
			updates[stationName] = nil
			continue
		}
		d, err := decimal.NewFromString(*raw)
		if err != nil {
			writeError(w, &voucher.InvalidValueError{Field: stationName, Value: *raw, Reason: "not a number"})
			return
		}
		updates[stationName] = &d
	}
	if err := h.Discounts.SetMany(updates, firstNonEmpty(req.Actor, actorFrom(r)), req.Reason); err != nil {
		writeError(w, err)
		return
	}
	metrics.DiscountWrites.Add(float64(len(updates)))
	writeJSON(w, http.StatusOK, map[string]any{"updated": len(updates)})
}

func (h *Handler) ClearDiscounts(w http.ResponseWriter, r *http.Request) {
	var req ClearDiscountsRequest
	// An empty body is fine; the actor falls back to the header.
	decodeAndValidate(r, &req)
	if err := h.Discounts.ClearAll(firstNonEmpty(req.Actor, actorFrom(r)), req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// =============================================================================
// REPORTS
// =============================================================================

func (h *Handler) reportRows(r *http.Request) ([]report.Row, error) {
	vs, err := h.Store.ListAll(r.Context())
	if err != nil {
		return nil, err
	}
	f := report.Filter{Stations: r.URL.Query()["station"]}
	for _, raw := range r.URL.Query()["status"] {
		s, err := voucher.ParseStatus(raw)
		if err != nil {
			return nil, err
		}
		f.Statuses = append(f.Statuses, s)
	}
	return report.BuildRows(vs, f), nil
}

func (h *Handler) SupplierPDF(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reportRows(r)
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := report.BuildSupplierPDF("Supplier Fuel Voucher Summary", rows, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	serveDownload(w, data, "application/pdf", "supplier-summary.pdf")
}

func (h *Handler) SupplierXLSX(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reportRows(r)
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := report.BuildSupplierXLSX(rows)
	if err != nil {
		writeError(w, err)
		return
	}
	serveDownload(w, data, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "supplier-summary.xlsx")
}

func (h *Handler) SupplierCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reportRows(r)
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := report.BuildSupplierCSV(rows)
	if err != nil {
		writeError(w, err)
		return
	}
	serveDownload(w, data, "text/csv; charset=utf-8", "supplier-summary.csv")
}

// SupplierVoucher renders one voucher's snapshot math for the fuel supplier,
// using the same row recompute as the bulk exports. The supplier integration
// authenticates with a query token rather than a header.
func (h *Handler) SupplierVoucher(w http.ResponseWriter, r *http.Request) {
	if h.SupplierToken == "" || r.URL.Query().Get("token") != h.SupplierToken {
		writeJSON(w, http.StatusForbidden, errorResponse{Code: "forbidden", Error: "invalid or missing supplier token"})
		return
	}

	v, err := h.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	row := report.BuildRow(v)

	refuel := firstNonEmpty(v.RefuelDatetime, v.ExpectedRefillDate, v.TransactionDate)
	writeJSON(w, http.StatusOK, map[string]any{
		"customer":            "UniFleet",
		"fuelProduct":         "Diesel",
		"invoice":             row.VoucherID,
		"station":             row.Station,
		"pricePhpPerLiter":    row.PricePerLiter.String(),
		"discountPhpPerLiter": row.DiscountPerLiter.String(),
		"requestedAmountPhp":  row.RequestedAmount.String(),
		"freeFuelValuePhp":    row.DiscountTotal.String(),
		"totalValuePhp":       row.TotalDispensed.String(),
		"litersRequested":     row.LitersRequested.String(),
		"litersDispensed":     row.LitersDispensed.String(),
		"driver":              row.DriverName,
		"plate":               row.VehiclePlate,
		"status":              string(row.Status),
		"refuelDate":          voucher.FormatManila(refuel),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func serveDownload(w http.ResponseWriter, data []byte, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func actorFrom(r *http.Request) string {
	if actor := r.Header.Get("X-Actor"); actor != "" {
		return actor
	}
	return "api"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
