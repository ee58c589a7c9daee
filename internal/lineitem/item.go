package lineitem

import "github.com/noah-isme/order-financials/internal/gst"

// Commercial holds the inputs a line is priced from. Zero values mean "not yet entered"
// and contribute nothing to the totals.
type Commercial struct {
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unitPrice"`
	DiscountPercent float64 `json:"discountPercent"`
	// Written once per order from the billing/shipping regime and trusted as-is here.
	gst.Percentages
}

// Derived holds the computed amounts. They are always recomputed in full from Commercial.
type Derived struct {
	SubTotal       float64 `json:"subTotal"`
	DiscountAmount float64 `json:"discountAmount"`
	TaxableAmount  float64 `json:"taxableAmount"`
	CGSTAmount     float64 `json:"cgstAmount"`
	SGSTAmount     float64 `json:"sgstAmount"`
	IGSTAmount     float64 `json:"igstAmount"`
	TaxAmount      float64 `json:"taxAmount"`
	TotalAmount    float64 `json:"totalAmount"`
}

// Promotion carries promotion metadata that passes through pricing untouched.
type Promotion struct {
	Locked             bool    `json:"isLocked"`
	PromotionID        string  `json:"promotionId,omitempty"`
	PromotionCode      string  `json:"promotionCode,omitempty"`
	FreeQuantity       float64 `json:"freeQuantity,omitempty"`
	BillOnStockArrival bool    `json:"billWhenStockArrives"`
}

// Item is one SKU row of an order. The embedded structs flatten into a single JSON object.
type Item struct {
	RowID   string `json:"rowId"`
	SKUID   string `json:"skuId"`
	SKUName string `json:"skuName"`
	SKUCode string `json:"skuCode"`

	Commercial
	Derived
	Promotion
}
