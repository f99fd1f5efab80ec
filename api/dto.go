/*
dto.go - Request/response shapes and error mapping

Requests are validated with go-playground/validator before they reach the
engine; engine errors map onto the structured error codes the status
endpoint contract requires.
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/unifleet/voucher-engine/voucher"
)

var validate = validator.New()

// =============================================================================
// REQUESTS
// =============================================================================

// BookVoucherRequest is the booking form payload. The amount travels as a
// string so decimals survive the wire untouched.
type BookVoucherRequest struct {
	AccountCode     string `json:"account_code" validate:"required,min=2,max=16"`
	Station         string `json:"station" validate:"required"`
	RequestedAmount string `json:"requested_amount" validate:"required"`
	RefuelDatetime  string `json:"refuel_datetime" validate:"required"`
	DriverName      string `json:"driver_name" validate:"required"`
	VehiclePlate    string `json:"vehicle_plate" validate:"required"`
	TruckMake       string `json:"truck_make"`
	TruckModel      string `json:"truck_model"`
	NumberOfWheels  string `json:"number_of_wheels"`
	FuelType        string `json:"fuel_type"`
}

// SetPriceRequest updates one station's price.
type SetPriceRequest struct {
	Price string `json:"price" validate:"required"`
	Actor string `json:"actor"`
}

// UpdateDiscountsRequest applies a batch of discount upserts/removals.
// A null value clears the station's entry.
type UpdateDiscountsRequest struct {
	Updates map[string]*string `json:"updates" validate:"required,min=1"`
	Actor   string             `json:"actor"`
	Reason  string             `json:"reason"`
}

// ClearDiscountsRequest wipes the discount registry.
type ClearDiscountsRequest struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason"`
}

// ImportVouchersRequest bulk-inserts voucher rows keyed by column name.
type ImportVouchersRequest struct {
	Rows []map[string]string `json:"rows" validate:"required,min=1"`
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &voucher.InvalidValueError{Field: "body", Value: "", Reason: "malformed JSON"}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &voucher.InvalidValueError{
				Field:  verrs[0].Field(),
				Value:  "",
				Reason: "failed " + verrs[0].Tag() + " validation",
			}
		}
		return &voucher.InvalidValueError{Field: "body", Value: "", Reason: err.Error()}
	}
	return nil
}

// =============================================================================
// RESPONSES
// =============================================================================

// voucherJSON renders a voucher as a column-keyed object, matching the
// storage schema one for one.
func voucherJSON(v voucher.Voucher) map[string]string {
	fields := v.Fields()
	fields[voucher.ColStatus] = string(v.CurrentStatus())
	return fields
}

func vouchersJSON(vs []voucher.Voucher) []map[string]string {
	out := make([]map[string]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, voucherJSON(v))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

type errorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// writeError maps engine errors to the structured result contract:
// not_found, invalid_value, invalid_transition, computation_error,
// asset_generation_error, storage_error.
func writeError(w http.ResponseWriter, err error) {
	var (
		status = http.StatusInternalServerError
		code   = "internal_error"
	)
	switch {
	case errors.Is(err, voucher.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, voucher.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, voucher.ErrComputation):
		status, code = http.StatusUnprocessableEntity, "computation_error"
	case errors.Is(err, voucher.ErrAssetGeneration):
		status, code = http.StatusBadGateway, "asset_generation_error"
	case errors.Is(err, voucher.ErrInvalidValue), errors.Is(err, voucher.ErrUnknownColumn):
		status, code = http.StatusBadRequest, "invalid_value"
	case errors.Is(err, voucher.ErrStorageIO):
		status, code = http.StatusInternalServerError, "storage_error"
	}
	writeJSON(w, status, errorResponse{Code: code, Error: err.Error()})
}
