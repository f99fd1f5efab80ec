/*
Package lifecycle orchestrates the voucher state machine.

PURPOSE:
  The Controller owns the three transitions and the financial computation:

    Book    -> creates an Unverified voucher with price/discount snapshots
               frozen at booking time
    Approve -> Unverified/unknown to Unredeemed: resolves price and discount
               (snapshots first, live registries as fallback), computes and
               persists the derived totals, generates redemption assets, and
               only then flips the status
    Redeem  -> flips to Redeemed with a timestamp, subject to the active
               policy mode

ORDERING GUARANTEE:
  Approve persists computed fields BEFORE invoking the asset generator and
  flips the status only after both succeed. A computation or asset failure
  leaves the voucher in its pre-transition status, so the step is safely
  retriable and re-running it never duplicates artifacts.

POLICY MODES:
  Lenient (default): a voucher may be redeemed from Unverified or
  Unredeemed. Strict: only Unredeemed vouchers can be redeemed. The mode is
  fixed at construction.

AUDIT:
  Every transition - success, denial, or failure - appends one audit row
  with the previous and requested status and a note naming the active
  policy mode or the failure reason. Audit rows are advisory and never
  block the transition they describe.

SEE ALSO:
  - voucher/compute.go: the financial computation itself
  - station/, discount/: snapshot sources
  - assets/: the supplied asset generator implementation
*/
package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/unifleet/voucher-engine/audit"
	"github.com/unifleet/voucher-engine/discount"
	"github.com/unifleet/voucher-engine/metrics"
	"github.com/unifleet/voucher-engine/station"
	"github.com/unifleet/voucher-engine/voucher"
)

// AssetGenerator produces redemption artifacts for a finalized voucher. It
// must be idempotent (repeat calls must not duplicate work) and must not
// mutate the voucher record.
type AssetGenerator interface {
	Generate(ctx context.Context, v voucher.Voucher) error
}

// Config carries the controller's collaborators. Everything is injected;
// the controller holds no global state.
type Config struct {
	Store     voucher.Store
	Stations  *station.Registry
	Discounts *discount.Registry
	Audit     *audit.Log
	Assets    AssetGenerator

	// StrictRedemption restricts Redeem to Unredeemed vouchers.
	StrictRedemption bool

	Logger *logrus.Logger
}

// Controller runs the voucher lifecycle.
type Controller struct {
	store     voucher.Store
	stations  *station.Registry
	discounts *discount.Registry
	audit     *audit.Log
	assets    AssetGenerator
	strict    bool
	logger    *logrus.Logger
	now       func() time.Time
}

func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Controller{
		store:     cfg.Store,
		stations:  cfg.Stations,
		discounts: cfg.Discounts,
		audit:     cfg.Audit,
		assets:    cfg.Assets,
		strict:    cfg.StrictRedemption,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the time source for tests.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// StrictRedemption reports the active policy mode.
func (c *Controller) StrictRedemption() bool { return c.strict }

// =============================================================================
// BOOK
// =============================================================================

// BookingRequest is the input to Book.
type BookingRequest struct {
	AccountCode     string
	Station         string
	RequestedAmount decimal.Decimal
	RefuelDatetime  string
	DriverName      string
	VehiclePlate    string
	TruckMake       string
	TruckModel      string
	NumberOfWheels  string
	FuelType        string
	Actor           string
}

// Book creates a new Unverified voucher with booking-time snapshots of the
// station's price and discount. A station missing from the registries is
// not an error: the snapshot stays zero and approval falls back to live
// values.
func (c *Controller) Book(ctx context.Context, req BookingRequest) (voucher.Voucher, error) {
	if req.Station == "" {
		return voucher.Voucher{}, &voucher.InvalidValueError{Field: "station", Value: "", Reason: "required"}
	}
	if !req.RequestedAmount.IsPositive() {
		return voucher.Voucher{}, &voucher.InvalidValueError{
			Field: "requested_amount", Value: req.RequestedAmount.String(), Reason: "must be positive",
		}
	}

	v := voucher.Voucher{
		AccountCode:     req.AccountCode,
		Station:         req.Station,
		RequestedAmount: req.RequestedAmount.Round(2),
		RefuelDatetime:  req.RefuelDatetime,
		DriverName:      req.DriverName,
		VehiclePlate:    req.VehiclePlate,
		TruckMake:       req.TruckMake,
		TruckModel:      req.TruckModel,
		NumberOfWheels:  req.NumberOfWheels,
		FuelType:        req.FuelType,
	}

	// Booking-time price snapshot: id match first, then name, then slug.
	if st, ok := c.stations.Resolve(req.Station); ok {
		v.PriceSnapshot = decimal.NullDecimal{Decimal: st.Price, Valid: true}
		v.PriceSnapshotUpdatedAt = st.UpdatedAt
	} else {
		c.appendAudit(audit.Entry{
			Action: audit.ActionPriceSnapshot, VoucherID: "", Actor: req.Actor,
			Note: fmt.Sprintf("no registry match for station %q at booking", req.Station),
		})
	}

	// Booking-time discount snapshot. No live discount means snapshot 0
	// with its capture time still stamped.
	v.DiscountSnapshotCapturedAt = c.now().Unix()
	if dpl, ok := c.discounts.Resolve(req.Station); ok {
		v.DiscountSnapshot = decimal.NullDecimal{Decimal: dpl, Valid: true}
	} else {
		v.DiscountSnapshot = decimal.NullDecimal{Decimal: decimal.Zero, Valid: true}
	}

	created, err := c.store.CreateUnverifiedBooking(ctx, v)
	if err != nil {
		metrics.ObserveTransition("book", metrics.OutcomeError)
		return voucher.Voucher{}, err
	}

	metrics.ObserveTransition("book", metrics.OutcomeOK)
	c.appendAudit(audit.Entry{
		Action:    audit.ActionBook,
		VoucherID: created.VoucherID,
		ToStatus:  voucher.StatusUnverified,
		Actor:     req.Actor,
		Note: fmt.Sprintf("price_snapshot=%s discount_snapshot=%s",
			nullString(created.PriceSnapshot), nullString(created.DiscountSnapshot)),
	})
	c.logger.WithFields(logrus.Fields{
		"voucher_id": created.VoucherID,
		"station":    created.Station,
		"amount":     created.RequestedAmount.String(),
	}).Info("booking created")
	return created, nil
}

// =============================================================================
// APPROVE
// =============================================================================

// Approve moves a voucher to Unredeemed. The computed fields are persisted
// before asset generation; the status flips only after both succeed.
func (c *Controller) Approve(ctx context.Context, voucherID, actor string) (voucher.Voucher, error) {
	v, err := c.store.Get(ctx, voucherID)
	if err != nil {
		metrics.ObserveTransition("approve", metrics.OutcomeError)
		return voucher.Voucher{}, err
	}
	prev := v.CurrentStatus()

	price, priceUpdatedAt := c.resolvePrice(v)
	dpl, discCapturedAt := c.resolveDiscount(v)

	comp := voucher.Compute(v.RequestedAmount, price, dpl)

	updates := map[string]string{
		// The values the computation actually used.
		voucher.ColLivePrice:        comp.Price.String(),
		voucher.ColDiscountPerLiter: comp.DiscountPerLiter.String(),

		// Computed totals.
		voucher.ColLitersRequested: comp.LitersRequested.String(),
		voucher.ColDiscountTotal:   comp.DiscountTotal.String(),
		voucher.ColTotalDispensed:  comp.TotalDispensed.String(),
		voucher.ColLitersDispensed: comp.LitersDispensed.String(),

		// Bookkeeping.
		voucher.ColComputedAt: c.now().UTC().Format(voucher.TimestampLayout),
	}
	// Backfill snapshots only where booking left them empty; frozen
	// snapshots are never silently overwritten.
	if !v.PriceSnapshot.Valid || v.PriceSnapshot.Decimal.IsZero() {
		updates[voucher.ColPriceSnapshot] = comp.Price.String()
		updates[voucher.ColPriceSnapshotAt] = strconv.FormatInt(priceUpdatedAt, 10)
	}
	if !v.DiscountSnapshot.Valid || v.DiscountSnapshot.Decimal.IsZero() {
		updates[voucher.ColDiscountSnapshot] = comp.DiscountPerLiter.String()
		updates[voucher.ColDiscountSnapshotAt] = strconv.FormatInt(discCapturedAt, 10)
	}

	if err := c.store.UpdateFields(ctx, voucherID, updates); err != nil {
		metrics.ObserveTransition("approve", metrics.OutcomeError)
		return voucher.Voucher{}, err
	}

	// Reload and fail fast while the status is still untouched.
	fresh, err := c.store.Get(ctx, voucherID)
	if err != nil {
		metrics.ObserveTransition("approve", metrics.OutcomeError)
		return voucher.Voucher{}, err
	}
	if !fresh.RequestedAmount.IsPositive() || !price.IsPositive() {
		c.appendAudit(audit.Entry{
			Action: audit.ActionApproveSkip, VoucherID: voucherID,
			FromStatus: prev, ToStatus: voucher.StatusUnredeemed, Actor: actor,
			Note: "missing amount/price after compute",
		})
		metrics.ObserveTransition("approve", metrics.OutcomeDenied)
		return voucher.Voucher{}, fmt.Errorf("voucher %s: %w", voucherID, voucher.ErrComputation)
	}

	if err := c.assets.Generate(ctx, fresh); err != nil {
		c.appendAudit(audit.Entry{
			Action: audit.ActionApproveFailed, VoucherID: voucherID,
			FromStatus: prev, ToStatus: voucher.StatusUnredeemed, Actor: actor,
			Note: err.Error(),
		})
		metrics.ObserveTransition("approve", metrics.OutcomeError)
		return voucher.Voucher{}, fmt.Errorf("voucher %s: %w: %v", voucherID, voucher.ErrAssetGeneration, err)
	}

	if err := c.store.SetStatus(ctx, voucherID, voucher.StatusUnredeemed, ""); err != nil {
		metrics.ObserveTransition("approve", metrics.OutcomeError)
		return voucher.Voucher{}, err
	}

	metrics.ObserveTransition("approve", metrics.OutcomeOK)
	c.appendAudit(audit.Entry{
		Action: audit.ActionApprove, VoucherID: voucherID,
		FromStatus: prev, ToStatus: voucher.StatusUnredeemed, Actor: actor,
		Note: fmt.Sprintf("price=%s discount=%s total=%s",
			comp.Price.String(), comp.DiscountPerLiter.String(), comp.TotalDispensed.String()),
	})
	c.logger.WithFields(logrus.Fields{
		"voucher_id": voucherID,
		"price":      comp.Price.String(),
		"total":      comp.TotalDispensed.String(),
	}).Info("voucher approved")

	return c.store.Get(ctx, voucherID)
}

// resolvePrice prefers a positive booking snapshot, then the live registry
// by station name. Returns the price and the registry timestamp that goes
// with it.
func (c *Controller) resolvePrice(v voucher.Voucher) (decimal.Decimal, int64) {
	if v.PriceSnapshot.Valid && v.PriceSnapshot.Decimal.IsPositive() {
		return v.PriceSnapshot.Decimal, v.PriceSnapshotUpdatedAt
	}
	if st, ok := c.stations.ResolveByName(v.Station); ok {
		return st.Price, st.UpdatedAt
	}
	return decimal.Zero, 0
}

// resolveDiscount prefers a captured non-zero snapshot, then the live
// registry, then zero. A negative stored snapshot is clamped to zero.
func (c *Controller) resolveDiscount(v voucher.Voucher) (decimal.Decimal, int64) {
	if v.DiscountSnapshot.Valid && v.DiscountSnapshot.Decimal.IsPositive() {
		return v.DiscountSnapshot.Decimal, v.DiscountSnapshotCapturedAt
	}
	capturedAt := v.DiscountSnapshotCapturedAt
	if capturedAt == 0 {
		capturedAt = c.now().Unix()
	}
	if dpl, err := c.discounts.Get(v.Station); err == nil {
		return dpl, capturedAt
	}
	return decimal.Zero, capturedAt
}

// =============================================================================
// REDEEM
// =============================================================================

// Redeem flips a voucher to Redeemed and stamps the redemption time. The
// lenient mode accepts Unverified and Unredeemed vouchers; strict mode only
// Unredeemed.
func (c *Controller) Redeem(ctx context.Context, voucherID, actor string) (voucher.Voucher, error) {
	v, err := c.store.Get(ctx, voucherID)
	if err != nil {
		metrics.ObserveTransition("redeem", metrics.OutcomeError)
		return voucher.Voucher{}, err
	}
	current := v.CurrentStatus()

	allowed := current == voucher.StatusUnverified || current == voucher.StatusUnredeemed
	if c.strict {
		allowed = current == voucher.StatusUnredeemed
	}
	if !allowed {
		c.appendAudit(audit.Entry{
			Action: audit.ActionRedeemDenied, VoucherID: voucherID,
			FromStatus: current, ToStatus: voucher.StatusRedeemed, Actor: actor,
			Note: fmt.Sprintf("strict=%t", c.strict),
		})
		metrics.ObserveTransition("redeem", metrics.OutcomeDenied)
		return voucher.Voucher{}, &voucher.InvalidTransitionError{
			VoucherID: voucherID, From: current, To: voucher.StatusRedeemed, Strict: c.strict,
		}
	}

	ts := c.now().Format(voucher.RedemptionLayout)
	if err := c.store.SetStatus(ctx, voucherID, voucher.StatusRedeemed, ts); err != nil {
		metrics.ObserveTransition("redeem", metrics.OutcomeError)
		return voucher.Voucher{}, err
	}

	metrics.ObserveTransition("redeem", metrics.OutcomeOK)
	c.appendAudit(audit.Entry{
		Action: audit.ActionRedeemSuccess, VoucherID: voucherID,
		FromStatus: current, ToStatus: voucher.StatusRedeemed, Actor: actor,
		Note: fmt.Sprintf("strict=%t", c.strict),
	})
	return c.store.Get(ctx, voucherID)
}

// =============================================================================
// OPERATOR OVERRIDE
// =============================================================================

// ForceStatus lets an operator push a voucher to any of the three statuses.
// The Unredeemed target routes through Approve and Redeemed stamps a
// redemption time, so the compute-then-assets-then-flip ordering and the
// audit trail are never bypassed.
func (c *Controller) ForceStatus(ctx context.Context, voucherID string, target voucher.Status, actor, note string) (voucher.Voucher, error) {
	parsed, err := voucher.ParseStatus(string(target))
	if err != nil {
		return voucher.Voucher{}, err
	}

	v, err := c.store.Get(ctx, voucherID)
	if err != nil {
		return voucher.Voucher{}, err
	}
	prev := v.CurrentStatus()

	switch parsed {
	case voucher.StatusUnredeemed:
		// Routed through the full approval path so compute, asset
		// generation, and their audit rows are never bypassed. The
		// override itself still gets its own row below.
		if _, err := c.Approve(ctx, voucherID, actor); err != nil {
			c.appendAudit(audit.Entry{
				Action: audit.ActionStatusDenied, VoucherID: voucherID,
				FromStatus: prev, ToStatus: parsed, Actor: actor, Note: err.Error(),
			})
			return voucher.Voucher{}, err
		}

	case voucher.StatusRedeemed:
		ts := c.now().Format(voucher.RedemptionLayout)
		if err := c.store.SetStatus(ctx, voucherID, voucher.StatusRedeemed, ts); err != nil {
			metrics.ObserveTransition("force_status", metrics.OutcomeError)
			return voucher.Voucher{}, err
		}

	default: // Unverified
		if err := c.store.SetStatus(ctx, voucherID, voucher.StatusUnverified, ""); err != nil {
			metrics.ObserveTransition("force_status", metrics.OutcomeError)
			return voucher.Voucher{}, err
		}
	}

	metrics.ObserveTransition("force_status", metrics.OutcomeOK)
	c.appendAudit(audit.Entry{
		Action: audit.ActionSetStatus, VoucherID: voucherID,
		FromStatus: prev, ToStatus: parsed, Actor: actor, Note: note,
	})
	return c.store.Get(ctx, voucherID)
}

// =============================================================================
// HELPERS
// =============================================================================

// appendAudit swallows audit failures; the log is advisory.
func (c *Controller) appendAudit(e audit.Entry) {
	if c.audit == nil {
		return
	}
	_ = c.audit.Append(e)
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
