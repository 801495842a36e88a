package billing

// LineItem is a single billable row on an invoice or receipt draft.
type LineItem struct {
	Description string  `json:"description"`
	Quantity    Numeric `json:"quantity"`
	UnitPrice   Numeric `json:"unit_price"`
}

// LineTotal is a line item with its computed amount, in entry order.
type LineTotal struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
}

// Summary is the fully itemised financial projection of a document draft.
// Every field is derived from the inputs; nothing here is stored or mutated
// independently, so recomputing from the same inputs is bit-for-bit stable.
type Summary struct {
	LineTotals            []LineTotal `json:"line_totals"`
	SubTotal              float64     `json:"sub_total"`
	DiscountPercentage    float64     `json:"discount_percentage"`
	DiscountAmount        float64     `json:"discount_amount"`
	SubTotalAfterDiscount float64     `json:"sub_total_after_discount"`
	TaxPercentage         float64     `json:"tax_percentage"`
	TaxAmount             float64     `json:"tax_amount"`
	GrandTotal            float64     `json:"grand_total"`
	AmountPaid            float64     `json:"amount_paid"`
	BalanceDue            float64     `json:"balance_due"`
}

// Compute derives a Summary from line items and scalar inputs. The order is
// fixed: subtotal, then discount, then tax on the discounted base. The
// post-discount subtotal floors at zero so an oversized discount can never
// produce a negative taxable base. Balance due is deliberately not floored;
// a negative value means the customer overpaid.
//
// Compute never fails. Malformed numerics have already been degraded to zero
// by Numeric, and out-of-range percentages are tolerated rather than
// rejected; clamping is a caller concern.
func Compute(items []LineItem, discountPct, taxPct, amountPaid float64) Summary {
	lines := make([]LineTotal, 0, len(items))
	var subTotal float64
	for _, it := range items {
		qty := it.Quantity.Float()
		price := it.UnitPrice.Float()
		total := qty * price
		lines = append(lines, LineTotal{
			Description: it.Description,
			Quantity:    qty,
			UnitPrice:   price,
			Total:       total,
		})
		subTotal += total
	}

	discountAmount := subTotal * discountPct / 100
	afterDiscount := subTotal - discountAmount
	if afterDiscount < 0 {
		afterDiscount = 0
	}
	taxAmount := afterDiscount * taxPct / 100
	grandTotal := afterDiscount + taxAmount

	return Summary{
		LineTotals:            lines,
		SubTotal:              subTotal,
		DiscountPercentage:    discountPct,
		DiscountAmount:        discountAmount,
		SubTotalAfterDiscount: afterDiscount,
		TaxPercentage:         taxPct,
		TaxAmount:             taxAmount,
		GrandTotal:            grandTotal,
		AmountPaid:            amountPaid,
		BalanceDue:            grandTotal - amountPaid,
	}
}
