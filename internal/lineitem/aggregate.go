package lineitem

// ComputeFields derives every amount of a line from its commercial inputs.
// Discount is applied before tax; the steps below must stay in this order.
func ComputeFields(c Commercial) Derived {
	subTotal := c.UnitPrice * c.Quantity
	discount := subTotal * c.DiscountPercent / 100
	taxable := subTotal - discount
	tax := c.Percentages.Amounts(taxable)
	return Derived{
		SubTotal:       subTotal,
		DiscountAmount: discount,
		TaxableAmount:  taxable,
		CGSTAmount:     tax.CGST,
		SGSTAmount:     tax.SGST,
		IGSTAmount:     tax.IGST,
		TaxAmount:      tax.Total,
		TotalAmount:    taxable + tax.Total,
	}
}

// Apply returns a copy of item with Derived replaced wholesale. Stale derived values on the
// argument are ignored and never merged, and the argument itself is left untouched.
func Apply(item Item) Item {
	item.Derived = ComputeFields(item.Commercial)
	return item
}

// ApplyAll applies every item into a fresh slice, keeping order.
func ApplyAll(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = Apply(it)
	}
	return out
}
