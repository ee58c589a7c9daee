package order

import (
	"time"

	"github.com/noah-isme/order-financials/internal/gst"
	"github.com/noah-isme/order-financials/internal/lineitem"
)

// Draft is an order being edited. Items keep insertion order for display; each line is
// computed on its own.
type Draft struct {
	ID            string          `json:"id"`
	BillingState  *string         `json:"billingState"`
	ShippingState *string         `json:"shippingState"`
	Regime        gst.Regime      `json:"regime"`
	Items         []lineitem.Item `json:"items"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Summary totals the derived amounts of every line in a draft.
type Summary struct {
	ItemCount      int     `json:"itemCount"`
	SubTotal       float64 `json:"subTotal"`
	DiscountAmount float64 `json:"discountAmount"`
	TaxableAmount  float64 `json:"taxableAmount"`
	CGSTAmount     float64 `json:"cgstAmount"`
	SGSTAmount     float64 `json:"sgstAmount"`
	IGSTAmount     float64 `json:"igstAmount"`
	TaxAmount      float64 `json:"taxAmount"`
	TotalAmount    float64 `json:"totalAmount"`
}

// Summarize adds up the already computed line amounts, so the order totals always agree
// with what each line shows.
func Summarize(items []lineitem.Item) Summary {
	s := Summary{ItemCount: len(items)}
	for _, it := range items {
		s.SubTotal += it.SubTotal
		s.DiscountAmount += it.DiscountAmount
		s.TaxableAmount += it.TaxableAmount
		s.CGSTAmount += it.CGSTAmount
		s.SGSTAmount += it.SGSTAmount
		s.IGSTAmount += it.IGSTAmount
		s.TaxAmount += it.TaxAmount
		s.TotalAmount += it.TotalAmount
	}
	return s
}

// Summary is a convenience for Summarize(d.Items).
func (d *Draft) Summary() Summary {
	if d == nil {
		return Summary{}
	}
	return Summarize(d.Items)
}

func (d *Draft) indexOf(rowID string) int {
	for i := range d.Items {
		if d.Items[i].RowID == rowID {
			return i
		}
	}
	return -1
}

// clone returns a deep copy so stores never share slices or state pointers with callers.
func (d *Draft) clone() *Draft {
	if d == nil {
		return nil
	}
	cp := *d
	cp.BillingState = cloneString(d.BillingState)
	cp.ShippingState = cloneString(d.ShippingState)
	if d.Items != nil {
		cp.Items = make([]lineitem.Item, len(d.Items))
		copy(cp.Items, d.Items)
	}
	return &cp
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
