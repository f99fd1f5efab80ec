/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions. This
  is the wiring layer that connects URLs to handlers; it contributes no
  domain logic.

ROUTE GROUPS:
  /api/vouchers/*    Booking, lookup, redemption
  /api/ops/*         Operator overrides and bulk import (token-guarded)
  /api/stations/*    Price registry
  /api/discounts     Discount registry
  /api/reports/*     Supplier sheet downloads
  /supplier-api/*    Per-voucher supplier view (query-token guarded)
  /metrics           Prometheus metrics
  /healthz           Liveness probe

SECURITY NOTE:
  Operator and admin routes check a shared token when OPS_TOKEN is set.
  Everything else is public.
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Ops-Token"},
	}))

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/supplier-api/{id}", h.SupplierVoucher)

	r.Route("/api", func(r chi.Router) {
		r.Route("/vouchers", func(r chi.Router) {
			r.Get("/", h.ListRecentVouchers)
			r.Post("/", h.BookVoucher)
			r.Get("/all", h.ListAllVouchers)
			r.Get("/{id}", h.GetVoucher)
			r.Post("/{id}/redeem", h.RedeemVoucher)
		})

		// Operator overrides share the lifecycle code path; the token is
		// checked here, the outcome always audited there.
		r.Route("/ops", func(r chi.Router) {
			r.Use(h.RequireOpsToken)
			r.Post("/vouchers/import", h.ImportVouchers)
			r.Post("/vouchers/{id}/status/{status}", h.SetVoucherStatus)
			r.Delete("/vouchers/{id}/assets", h.DeleteVoucherAssets)
		})

		r.Route("/stations", func(r chi.Router) {
			r.Get("/", h.ListStations)
			r.Get("/price-preview", h.PricePreview)
			r.Get("/{id}", h.GetStation)
			r.With(h.RequireOpsToken).Put("/{id}/price", h.SetStationPrice)
		})

		r.Route("/discounts", func(r chi.Router) {
			r.Get("/", h.ListDiscounts)
			r.With(h.RequireOpsToken).Put("/", h.UpdateDiscounts)
			r.With(h.RequireOpsToken).Delete("/", h.ClearDiscounts)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/supplier.pdf", h.SupplierPDF)
			r.Get("/supplier.xlsx", h.SupplierXLSX)
			r.Get("/supplier.csv", h.SupplierCSV)
		})
	})

	return r
}
