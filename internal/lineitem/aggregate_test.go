package lineitem

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/order-financials/internal/gst"
)

func intraLine(qty, price, discount float64) Item {
	return Item{
		RowID:   "row-1",
		SKUID:   "sku-1",
		SKUName: "Widget",
		SKUCode: "W-1",
		Commercial: Commercial{
			Quantity:        qty,
			UnitPrice:       price,
			DiscountPercent: discount,
			Percentages:     gst.Percentages{CGST: 9, SGST: 9},
		},
	}
}

func TestComputeFieldsDiscountBeforeTax(t *testing.T) {
	d := ComputeFields(intraLine(2, 100, 10).Commercial)

	assert.Equal(t, 200.0, d.SubTotal)
	assert.Equal(t, 20.0, d.DiscountAmount)
	assert.Equal(t, 180.0, d.TaxableAmount)
	assert.Equal(t, 16.2, d.CGSTAmount)
	assert.Equal(t, 16.2, d.SGSTAmount)
	assert.Zero(t, d.IGSTAmount)
	assert.Equal(t, 32.4, d.TaxAmount)
	assert.InDelta(t, 212.4, d.TotalAmount, 1e-9)
}

func TestComputeFieldsInterState(t *testing.T) {
	d := ComputeFields(Commercial{Quantity: 5, UnitPrice: 200, Percentages: gst.Percentages{IGST: 18}})
	require.Equal(t, 1000.0, d.TaxableAmount)
	require.Equal(t, 180.0, d.IGSTAmount)
	require.Equal(t, 180.0, d.TaxAmount)
	require.Equal(t, 1180.0, d.TotalAmount)
}

func TestComputeFieldsZeroDefault(t *testing.T) {
	d := ComputeFields(Commercial{DiscountPercent: 10, Percentages: gst.Percentages{CGST: 9, SGST: 9}})
	require.Equal(t, Derived{}, d)
}

func TestComputeFieldsHonoursOutOfRangeDiscount(t *testing.T) {
	d := ComputeFields(Commercial{Quantity: 1, UnitPrice: 100, DiscountPercent: 150})
	require.Equal(t, 150.0, d.DiscountAmount)
	require.Equal(t, -50.0, d.TaxableAmount)
	require.Equal(t, -50.0, d.TotalAmount)
}

func TestComputeFieldsCreditNoteIsProportional(t *testing.T) {
	d := ComputeFields(Commercial{Quantity: -2, UnitPrice: 100, Percentages: gst.Percentages{IGST: 18}})
	require.Equal(t, -200.0, d.TaxableAmount)
	require.Equal(t, -36.0, d.IGSTAmount)
	require.Equal(t, -236.0, d.TotalAmount)
}

func TestApplyIsIdempotent(t *testing.T) {
	once := Apply(intraLine(3, 49.99, 7.5))
	twice := Apply(once)
	require.Equal(t, once.Derived, twice.Derived)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	in := intraLine(2, 100, 10)
	in.Derived = Derived{TotalAmount: 999}
	out := Apply(in)

	require.Equal(t, 999.0, in.TotalAmount)
	require.InDelta(t, 212.4, out.TotalAmount, 1e-9)
}

func TestApplyOverwritesStaleFieldsWhenQuantityReset(t *testing.T) {
	computed := Apply(intraLine(2, 100, 10))
	require.NotZero(t, computed.TotalAmount)

	computed.Quantity = 0
	reset := Apply(computed)
	require.Equal(t, Derived{}, reset.Derived)
}

func TestApplyIgnoresStaleDerivedInput(t *testing.T) {
	stale := intraLine(1, 10, 0)
	stale.Derived = Derived{SubTotal: 5000, TaxAmount: 1, TotalAmount: 5001}
	fresh := intraLine(1, 10, 0)
	require.Equal(t, Apply(fresh).Derived, Apply(stale).Derived)
}

func TestApplyPassesPromotionThrough(t *testing.T) {
	in := intraLine(4, 25, 0)
	in.Promotion = Promotion{Locked: true, PromotionID: "p-1", PromotionCode: "BOGO", FreeQuantity: 1, BillOnStockArrival: true}
	out := Apply(in)
	require.Equal(t, in.Promotion, out.Promotion)
	require.Equal(t, in.RowID, out.RowID)
	require.Equal(t, in.SKUCode, out.SKUCode)
	require.Equal(t, 100.0, out.SubTotal)
}

func TestApplyAllKeepsOrderAndCopies(t *testing.T) {
	items := []Item{intraLine(1, 10, 0), intraLine(2, 10, 0)}
	items[1].RowID = "row-2"
	out := ApplyAll(items)

	require.Len(t, out, 2)
	require.Equal(t, "row-1", out[0].RowID)
	require.Equal(t, "row-2", out[1].RowID)
	require.Equal(t, 20.0, out[1].SubTotal)
	require.Zero(t, items[1].SubTotal)
	require.Nil(t, ApplyAll(nil))
}

func TestApplyConcurrentCallers(t *testing.T) {
	base := intraLine(7, 13.5, 2)
	want := Apply(base).Derived

	var wg sync.WaitGroup
	results := make([]Derived, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Apply(base).Derived
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		require.Equal(t, want, got)
	}
}
