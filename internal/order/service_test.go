package order

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/order-financials/internal/gst"
	"github.com/noah-isme/order-financials/internal/lineitem"
)

func strPtr(v string) *string { return &v }

func floatPtr(v float64) *float64 { return &v }

func newTestService(store Store) *Service {
	svc := NewService(gst.NewClassifier("maharashtra"), gst.NewCalculator(gst.DefaultRates()), store, zerolog.Nop())
	fixed := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return fixed }
	seq := 0
	svc.NewID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return svc
}

func TestCreateDraftClassifiesOnce(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()

	intra, err := svc.CreateDraft(ctx, CreateDraftInput{BillingState: strPtr(" MAHARASHTRA "), ShippingState: strPtr("maharashtra")})
	require.NoError(t, err)
	require.Equal(t, gst.RegimeIntra, intra.Regime)
	require.Empty(t, intra.Items)

	inter, err := svc.CreateDraft(ctx, CreateDraftInput{BillingState: strPtr("Maharashtra")})
	require.NoError(t, err)
	require.Equal(t, gst.RegimeInter, inter.Regime)
}

func TestAddItemStampsRegimePercentages(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	d, err := svc.CreateDraft(ctx, CreateDraftInput{BillingState: strPtr("Maharashtra"), ShippingState: strPtr("Maharashtra")})
	require.NoError(t, err)

	d, item, err := svc.AddItem(ctx, d.ID, ItemInput{SKUID: "sku-1", Quantity: 2, UnitPrice: 100, DiscountPercent: 10})
	require.NoError(t, err)
	require.Len(t, d.Items, 1)
	assert.Equal(t, gst.Percentages{CGST: 9, SGST: 9}, item.Percentages)
	assert.Equal(t, 180.0, item.TaxableAmount)
	assert.Equal(t, 32.4, item.TaxAmount)
	assert.InDelta(t, 212.4, item.TotalAmount, 1e-9)

	_, explicit, err := svc.AddItem(ctx, d.ID, ItemInput{SKUID: "sku-2", Quantity: 1, UnitPrice: 50, GST: &gst.Percentages{IGST: 5}})
	require.NoError(t, err)
	assert.Equal(t, 2.5, explicit.IGSTAmount)
	assert.Zero(t, explicit.CGSTAmount)
}

func TestServiceAddItemValidation(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	_, _, err := svc.AddItem(context.Background(), "missing", ItemInput{})
	require.True(t, errors.Is(err, ErrInvalidInput))

	_, _, err = svc.AddItem(context.Background(), "missing", ItemInput{SKUID: "sku"})
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateItemRecomputesInFull(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	d, err := svc.CreateDraft(ctx, CreateDraftInput{BillingState: strPtr("Maharashtra"), ShippingState: strPtr("Gujarat")})
	require.NoError(t, err)
	d, item, err := svc.AddItem(ctx, d.ID, ItemInput{SKUID: "sku-1", Quantity: 5, UnitPrice: 200})
	require.NoError(t, err)
	require.Equal(t, 180.0, item.IGSTAmount)

	_, updated, err := svc.UpdateItem(ctx, d.ID, item.RowID, ItemPatch{Quantity: floatPtr(0)})
	require.NoError(t, err)
	require.Equal(t, lineitem.Derived{}, updated.Derived)
	require.Equal(t, 200.0, updated.UnitPrice)

	_, updated, err = svc.UpdateItem(ctx, d.ID, item.RowID, ItemPatch{Quantity: floatPtr(1), DiscountPercent: floatPtr(50)})
	require.NoError(t, err)
	require.Equal(t, 100.0, updated.TaxableAmount)
	require.Equal(t, 18.0, updated.IGSTAmount)

	_, _, err = svc.UpdateItem(ctx, d.ID, "nope", ItemPatch{})
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateItemOverlaysGSTOnStoredRow(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	d, err := svc.CreateDraft(ctx, CreateDraftInput{BillingState: strPtr("Maharashtra"), ShippingState: strPtr("Maharashtra")})
	require.NoError(t, err)
	d, item, err := svc.AddItem(ctx, d.ID, ItemInput{SKUID: "sku-1", Quantity: 1, UnitPrice: 100})
	require.NoError(t, err)
	_, err = svc.ChangeJurisdiction(ctx, d.ID, strPtr("Maharashtra"), strPtr("Gujarat"))
	require.NoError(t, err)

	_, updated, err := svc.UpdateItem(ctx, d.ID, item.RowID, ItemPatch{CGSTPercent: floatPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, gst.Percentages{CGST: 5, IGST: 18}, updated.Percentages)
	assert.Equal(t, 23.0, updated.TaxAmount)
}

func TestUpdateItemKeepsPromotionUnlessPatched(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	d, err := svc.CreateDraft(ctx, CreateDraftInput{})
	require.NoError(t, err)
	promo := lineitem.Promotion{Locked: true, PromotionCode: "FREE1", FreeQuantity: 1}
	d, item, err := svc.AddItem(ctx, d.ID, ItemInput{SKUID: "sku-1", Quantity: 3, UnitPrice: 10, Promotion: promo})
	require.NoError(t, err)

	_, updated, err := svc.UpdateItem(ctx, d.ID, item.RowID, ItemPatch{UnitPrice: floatPtr(20)})
	require.NoError(t, err)
	require.Equal(t, promo, updated.Promotion)
	require.Equal(t, 60.0, updated.SubTotal)
}

func TestChangeJurisdictionRewritesEveryLine(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	d, err := svc.CreateDraft(ctx, CreateDraftInput{BillingState: strPtr("Maharashtra"), ShippingState: strPtr("Gujarat")})
	require.NoError(t, err)
	_, _, err = svc.AddItem(ctx, d.ID, ItemInput{SKUID: "a", Quantity: 1, UnitPrice: 1000})
	require.NoError(t, err)
	_, _, err = svc.AddItem(ctx, d.ID, ItemInput{SKUID: "b", Quantity: 2, UnitPrice: 500})
	require.NoError(t, err)

	d, err = svc.ChangeJurisdiction(ctx, d.ID, strPtr("maharashtra"), strPtr("Maharashtra "))
	require.NoError(t, err)
	require.Equal(t, gst.RegimeIntra, d.Regime)
	for _, it := range d.Items {
		require.Equal(t, gst.Percentages{CGST: 9, SGST: 9}, it.Percentages)
		require.Equal(t, 90.0, it.CGSTAmount)
		require.Equal(t, 90.0, it.SGSTAmount)
		require.Zero(t, it.IGSTAmount)
	}

	summary := d.Summary()
	require.Equal(t, 2, summary.ItemCount)
	require.Equal(t, 2000.0, summary.TaxableAmount)
	require.Equal(t, 360.0, summary.TaxAmount)
	require.Equal(t, 2360.0, summary.TotalAmount)
}

func TestRecalculateIsIdempotent(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	d, err := svc.CreateDraft(ctx, CreateDraftInput{BillingState: strPtr("Maharashtra"), ShippingState: strPtr("Maharashtra")})
	require.NoError(t, err)
	_, _, err = svc.AddItem(ctx, d.ID, ItemInput{SKUID: "a", Quantity: 3, UnitPrice: 33.33, DiscountPercent: 3})
	require.NoError(t, err)

	first, err := svc.Recalculate(ctx, d.ID)
	require.NoError(t, err)
	second, err := svc.Recalculate(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, first.Items, second.Items)
}

func TestRemoveItemAndGet(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	d, err := svc.CreateDraft(ctx, CreateDraftInput{})
	require.NoError(t, err)
	_, first, err := svc.AddItem(ctx, d.ID, ItemInput{SKUID: "a", Quantity: 1, UnitPrice: 10})
	require.NoError(t, err)
	_, second, err := svc.AddItem(ctx, d.ID, ItemInput{SKUID: "b", Quantity: 1, UnitPrice: 20})
	require.NoError(t, err)

	_, err = svc.RemoveItem(ctx, d.ID, first.RowID)
	require.NoError(t, err)

	got, summary, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	require.Equal(t, second.RowID, got.Items[0].RowID)
	require.Equal(t, 1, summary.ItemCount)
	require.Equal(t, 20.0, summary.SubTotal)

	_, err = svc.RemoveItem(ctx, d.ID, first.RowID)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteDraft(t *testing.T) {
	svc := newTestService(NewMemoryStore())
	ctx := context.Background()
	d, err := svc.CreateDraft(ctx, CreateDraftInput{})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, d.ID))
	_, _, err = svc.Get(ctx, d.ID)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestServiceWithoutStore(t *testing.T) {
	svc := &Service{}
	_, err := svc.CreateDraft(context.Background(), CreateDraftInput{})
	require.Error(t, err)
}

func TestSummarizeMatchesLines(t *testing.T) {
	items := lineitem.ApplyAll([]lineitem.Item{
		{Commercial: lineitem.Commercial{Quantity: 2, UnitPrice: 100, DiscountPercent: 10, Percentages: gst.Percentages{CGST: 9, SGST: 9}}},
		{Commercial: lineitem.Commercial{Quantity: 1, UnitPrice: 1000, Percentages: gst.Percentages{IGST: 18}}},
	})
	s := Summarize(items)
	require.Equal(t, items[0].SubTotal+items[1].SubTotal, s.SubTotal)
	require.Equal(t, items[0].TotalAmount+items[1].TotalAmount, s.TotalAmount)
	require.Equal(t, items[0].TaxAmount+items[1].TaxAmount, s.TaxAmount)
	require.Equal(t, Summary{}, Summarize(nil))
}
