package order

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/order-financials/internal/common"
	"github.com/noah-isme/order-financials/internal/gst"
	"github.com/noah-isme/order-financials/internal/lineitem"
	"github.com/noah-isme/order-financials/internal/obs"
)

// maxCalculateLines bounds the stateless calculate endpoint.
const maxCalculateLines = 500

// Handler wires the draft workflow and line calculation to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
}

type jurisdictionRequest struct {
	BillingState  *string `json:"billingState"`
	ShippingState *string `json:"shippingState"`
}

type promotionRequest struct {
	Locked             bool    `json:"isLocked"`
	PromotionID        string  `json:"promotionId" validate:"omitempty,max=64"`
	PromotionCode      string  `json:"promotionCode" validate:"omitempty,max=64"`
	FreeQuantity       float64 `json:"freeQuantity" validate:"gte=0"`
	BillOnStockArrival bool    `json:"billWhenStockArrives"`
}

type addItemRequest struct {
	SKUID           string            `json:"skuId" validate:"required,max=64"`
	SKUName         string            `json:"skuName" validate:"max=256"`
	SKUCode         string            `json:"skuCode" validate:"max=64"`
	Quantity        float64           `json:"quantity" validate:"gte=1"`
	UnitPrice       float64           `json:"unitPrice" validate:"gte=0"`
	DiscountPercent float64           `json:"discountPercent" validate:"gte=0,lte=100"`
	CGSTPercent     *float64          `json:"cgstPercent" validate:"omitempty,gte=0,lte=100"`
	SGSTPercent     *float64          `json:"sgstPercent" validate:"omitempty,gte=0,lte=100"`
	IGSTPercent     *float64          `json:"igstPercent" validate:"omitempty,gte=0,lte=100"`
	Promotion       *promotionRequest `json:"promotion"`
}

type updateItemRequest struct {
	Quantity        *float64          `json:"quantity" validate:"omitempty,gte=1"`
	UnitPrice       *float64          `json:"unitPrice" validate:"omitempty,gte=0"`
	DiscountPercent *float64          `json:"discountPercent" validate:"omitempty,gte=0,lte=100"`
	CGSTPercent     *float64          `json:"cgstPercent" validate:"omitempty,gte=0,lte=100"`
	SGSTPercent     *float64          `json:"sgstPercent" validate:"omitempty,gte=0,lte=100"`
	IGSTPercent     *float64          `json:"igstPercent" validate:"omitempty,gte=0,lte=100"`
	Promotion       *promotionRequest `json:"promotion"`
}

type calculateLinesRequest struct {
	Items []lineitem.Item `json:"items" validate:"required,min=1"`
}

// CreateDraft opens a draft for a billing/shipping pair.
func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req jurisdictionRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	d, err := h.Svc.CreateDraft(r.Context(), CreateDraftInput{BillingState: req.BillingState, ShippingState: req.ShippingState})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusCreated, DraftView(d))
}

// GetDraft returns a draft with its summary.
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	d, _, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, DraftView(d))
}

// DeleteDraft discards a draft.
func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if err := h.Svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangeJurisdiction re-classifies a draft and reprices every line.
func (h *Handler) ChangeJurisdiction(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req jurisdictionRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	d, err := h.Svc.ChangeJurisdiction(r.Context(), chi.URLParam(r, "id"), req.BillingState, req.ShippingState)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, DraftView(d))
}

// AddItem appends a line to a draft.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req addItemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if appErr := common.ValidateStruct(h.Validate, req); appErr != nil {
		common.WriteAppError(w, appErr)
		return
	}
	in := ItemInput{
		SKUID:           req.SKUID,
		SKUName:         req.SKUName,
		SKUCode:         req.SKUCode,
		Quantity:        req.Quantity,
		UnitPrice:       req.UnitPrice,
		DiscountPercent: req.DiscountPercent,
		GST:             explicitPercentages(req.CGSTPercent, req.SGSTPercent, req.IGSTPercent),
	}
	if req.Promotion != nil {
		in.Promotion = req.Promotion.toPromotion()
	}
	d, item, err := h.Svc.AddItem(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusCreated, map[string]any{
		"item":    LineView(item),
		"summary": SummaryView(d.Items),
	})
}

// UpdateItem edits a line's commercial inputs.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req updateItemRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if appErr := common.ValidateStruct(h.Validate, req); appErr != nil {
		common.WriteAppError(w, appErr)
		return
	}
	draftID := chi.URLParam(r, "id")
	rowID := chi.URLParam(r, "rowId")
	patch := ItemPatch{
		Quantity:        req.Quantity,
		UnitPrice:       req.UnitPrice,
		DiscountPercent: req.DiscountPercent,
		CGSTPercent:     req.CGSTPercent,
		SGSTPercent:     req.SGSTPercent,
		IGSTPercent:     req.IGSTPercent,
	}
	if req.Promotion != nil {
		promo := req.Promotion.toPromotion()
		patch.Promotion = &promo
	}
	d, item, err := h.Svc.UpdateItem(r.Context(), draftID, rowID, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{
		"item":    LineView(item),
		"summary": SummaryView(d.Items),
	})
}

// RemoveItem drops a line from a draft.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	d, err := h.Svc.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "rowId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, DraftView(d))
}

// Recalculate recomputes every line of a draft.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	d, err := h.Svc.Recalculate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	common.Data(w, http.StatusOK, DraftView(d))
}

// CalculateLines prices ad-hoc lines without touching any draft. Derived fields sent by the
// caller are ignored and recomputed; inputs are taken as given.
func (h *Handler) CalculateLines(w http.ResponseWriter, r *http.Request) {
	var req calculateLinesRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if appErr := common.ValidateStruct(h.Validate, req); appErr != nil {
		common.WriteAppError(w, appErr)
		return
	}
	if len(req.Items) == 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "items are required", nil)
		return
	}
	if len(req.Items) > maxCalculateLines {
		common.JSONError(w, http.StatusRequestEntityTooLarge, "TOO_MANY_ITEMS", "too many items", map[string]any{"max": maxCalculateLines})
		return
	}
	items := lineitem.ApplyAll(req.Items)
	obs.ObserveRecalculation("calculate", len(items))
	lines := make([]map[string]any, 0, len(items))
	for _, it := range items {
		lines = append(lines, LineView(it))
	}
	common.Data(w, http.StatusOK, map[string]any{
		"items":   lines,
		"summary": SummaryView(items),
	})
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.WriteAppError(w, appErr)
		return
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrUnavailable):
		w.Header().Set("Retry-After", "5")
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "draft store unavailable", nil)
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("order request failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to process order draft", nil)
	}
}

func (p promotionRequest) toPromotion() lineitem.Promotion {
	return lineitem.Promotion{
		Locked:             p.Locked,
		PromotionID:        p.PromotionID,
		PromotionCode:      p.PromotionCode,
		FreeQuantity:       p.FreeQuantity,
		BillOnStockArrival: p.BillOnStockArrival,
	}
}

// explicitPercentages returns nil when no percentage was supplied; unsupplied components are zero.
func explicitPercentages(cgst, sgst, igst *float64) *gst.Percentages {
	if cgst == nil && sgst == nil && igst == nil {
		return nil
	}
	var out gst.Percentages
	if cgst != nil {
		out.CGST = *cgst
	}
	if sgst != nil {
		out.SGST = *sgst
	}
	if igst != nil {
		out.IGST = *igst
	}
	return &out
}

// DraftView renders a draft with its lines and summary.
func DraftView(d *Draft) map[string]any {
	lines := make([]map[string]any, 0, len(d.Items))
	for _, it := range d.Items {
		lines = append(lines, LineView(it))
	}
	return map[string]any{
		"id":            d.ID,
		"billingState":  d.BillingState,
		"shippingState": d.ShippingState,
		"regime":        d.Regime,
		"items":         lines,
		"summary":       SummaryView(d.Items),
		"createdAt":     d.CreatedAt,
		"updatedAt":     d.UpdatedAt,
	}
}

// LineView renders one line. Inputs are echoed as numbers; computed amounts use 2 decimals.
func LineView(it lineitem.Item) map[string]any {
	return map[string]any{
		"rowId":                it.RowID,
		"skuId":                it.SKUID,
		"skuName":              it.SKUName,
		"skuCode":              it.SKUCode,
		"quantity":             it.Quantity,
		"unitPrice":            it.UnitPrice,
		"discountPercent":      it.DiscountPercent,
		"cgstPercent":          it.CGST,
		"sgstPercent":          it.SGST,
		"igstPercent":          it.IGST,
		"subTotal":             common.Amount(it.SubTotal),
		"discountAmount":       common.Amount(it.DiscountAmount),
		"taxableAmount":        common.Amount(it.TaxableAmount),
		"cgstAmount":           common.Amount(it.CGSTAmount),
		"sgstAmount":           common.Amount(it.SGSTAmount),
		"igstAmount":           common.Amount(it.IGSTAmount),
		"taxAmount":            common.Amount(it.TaxAmount),
		"totalAmount":          common.Amount(it.TotalAmount),
		"isLocked":             it.Locked,
		"promotionId":          it.PromotionID,
		"promotionCode":        it.PromotionCode,
		"freeQuantity":         it.FreeQuantity,
		"billWhenStockArrives": it.BillOnStockArrival,
	}
}

// SummaryView renders order totals as the sum of the 2-decimal line amounts LineView shows.
func SummaryView(items []lineitem.Item) map[string]any {
	total := func(field func(lineitem.Derived) float64) string {
		values := make([]float64, len(items))
		for i, it := range items {
			values[i] = field(it.Derived)
		}
		return common.AmountSum(values...)
	}
	return map[string]any{
		"itemCount":      len(items),
		"subTotal":       total(func(d lineitem.Derived) float64 { return d.SubTotal }),
		"discountAmount": total(func(d lineitem.Derived) float64 { return d.DiscountAmount }),
		"taxableAmount":  total(func(d lineitem.Derived) float64 { return d.TaxableAmount }),
		"cgstAmount":     total(func(d lineitem.Derived) float64 { return d.CGSTAmount }),
		"sgstAmount":     total(func(d lineitem.Derived) float64 { return d.SGSTAmount }),
		"igstAmount":     total(func(d lineitem.Derived) float64 { return d.IGSTAmount }),
		"taxAmount":      total(func(d lineitem.Derived) float64 { return d.TaxAmount }),
		"totalAmount":    total(func(d lineitem.Derived) float64 { return d.TotalAmount }),
	}
}
