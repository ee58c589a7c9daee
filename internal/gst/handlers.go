package gst

import (
	"net/http"
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/order-financials/internal/common"
	"github.com/noah-isme/order-financials/internal/obs"
)

// Handler exposes standalone regime and breakdown quotes over HTTP.
type Handler struct {
	Classifier Classifier
	Calculator Calculator
	Validate   *validator.Validate
}

type regimeRequest struct {
	BillingState  *string `json:"billingState"`
	ShippingState *string `json:"shippingState"`
}

type calculateRequest struct {
	TaxableAmount *float64 `json:"taxableAmount" validate:"required"`
	Regime        string   `json:"regime" validate:"omitempty,oneof=INTRA INTER intra inter"`
	BillingState  *string  `json:"billingState"`
	ShippingState *string  `json:"shippingState"`
}

// Regime classifies a billing/shipping pair.
func (h Handler) Regime(w http.ResponseWriter, r *http.Request) {
	var req regimeRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	regime := h.Classifier.DetermineRegime(req.BillingState, req.ShippingState)
	obs.ObserveClassification(string(regime))
	common.Data(w, http.StatusOK, map[string]any{
		"regime":    regime,
		"homeState": h.Classifier.HomeState(),
	})
}

// Calculate returns a GST breakdown for a taxable amount. The regime is taken from the
// request when present, otherwise derived from the billing/shipping pair.
func (h Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if appErr := common.ValidateStruct(h.Validate, req); appErr != nil {
		common.WriteAppError(w, appErr)
		return
	}
	if req.TaxableAmount == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "taxableAmount is required", nil)
		return
	}
	var regime Regime
	if strings.TrimSpace(req.Regime) != "" {
		regime = ParseRegime(req.Regime)
	} else {
		regime = h.Classifier.DetermineRegime(req.BillingState, req.ShippingState)
		obs.ObserveClassification(string(regime))
	}
	common.Data(w, http.StatusOK, ResultView(h.Calculator.Calculate(*req.TaxableAmount, regime)))
}

// ResultView renders a breakdown with display-rounded amounts.
func ResultView(res Result) map[string]any {
	return map[string]any{
		"regime":         res.Regime,
		"cgstPercent":    common.Percent(res.CGSTPercent),
		"sgstPercent":    common.Percent(res.SGSTPercent),
		"igstPercent":    common.Percent(res.IGSTPercent),
		"cgstAmount":     common.Amount(res.CGSTAmount),
		"sgstAmount":     common.Amount(res.SGSTAmount),
		"igstAmount":     common.Amount(res.IGSTAmount),
		"totalGstAmount": common.Amount(res.TotalGSTAmount),
	}
}
