package billing

import (
	"encoding/json"
	"testing"
)

func TestComputeItemisedInvoice(t *testing.T) {
	items := []LineItem{
		{Description: "design", Quantity: 2, UnitPrice: 100},
		{Description: "hosting", Quantity: 1, UnitPrice: 50},
	}
	s := Compute(items, 10, 7.5, 200)

	if s.SubTotal != 250 {
		t.Fatalf("subtotal = %v, want 250", s.SubTotal)
	}
	if s.DiscountAmount != 25 {
		t.Fatalf("discount = %v, want 25", s.DiscountAmount)
	}
	if s.SubTotalAfterDiscount != 225 {
		t.Fatalf("after discount = %v, want 225", s.SubTotalAfterDiscount)
	}
	if s.TaxAmount != 16.875 {
		t.Fatalf("tax = %v, want 16.875", s.TaxAmount)
	}
	if s.GrandTotal != 241.875 {
		t.Fatalf("grand total = %v, want 241.875", s.GrandTotal)
	}
	if s.BalanceDue != 41.875 {
		t.Fatalf("balance due = %v, want 41.875", s.BalanceDue)
	}
	if len(s.LineTotals) != 2 || s.LineTotals[0].Total != 200 || s.LineTotals[1].Total != 50 {
		t.Fatalf("unexpected line totals: %+v", s.LineTotals)
	}
}

func TestComputeEmpty(t *testing.T) {
	s := Compute(nil, 0, 0, 0)
	if s.SubTotal != 0 || s.GrandTotal != 0 || s.BalanceDue != 0 {
		t.Fatalf("empty compute should be all zero, got %+v", s)
	}
}

func TestComputeMalformedQuantityDegradesToZero(t *testing.T) {
	var item LineItem
	payload := []byte(`{"description":"misc","quantity":"abc","unit_price":10}`)
	if err := json.Unmarshal(payload, &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	s := Compute([]LineItem{item}, 0, 0, 0)
	if s.LineTotals[0].Total != 0 {
		t.Fatalf("computed total = %v, want 0", s.LineTotals[0].Total)
	}
	if s.SubTotal != 0 {
		t.Fatalf("subtotal = %v, want 0", s.SubTotal)
	}
}

func TestComputeOversizedDiscountFloorsTaxableBase(t *testing.T) {
	items := []LineItem{{Description: "one", Quantity: 1, UnitPrice: 100}}
	s := Compute(items, 150, 20, 0)
	if s.DiscountAmount != 150 {
		t.Fatalf("discount = %v, want 150", s.DiscountAmount)
	}
	if s.SubTotalAfterDiscount != 0 {
		t.Fatalf("after discount = %v, want 0", s.SubTotalAfterDiscount)
	}
	if s.TaxAmount != 0 {
		t.Fatalf("tax on floored base = %v, want 0", s.TaxAmount)
	}
	if s.GrandTotal != 0 {
		t.Fatalf("grand total = %v, want 0", s.GrandTotal)
	}
}

func TestComputeTaxFollowsDiscount(t *testing.T) {
	items := []LineItem{{Description: "one", Quantity: 1, UnitPrice: 100}}
	noDiscount := Compute(items, 0, 10, 0)
	withDiscount := Compute(items, 50, 10, 0)
	if noDiscount.TaxAmount != 10 {
		t.Fatalf("tax without discount = %v, want 10", noDiscount.TaxAmount)
	}
	if withDiscount.TaxAmount != 5 {
		t.Fatalf("tax after 50%% discount = %v, want 5", withDiscount.TaxAmount)
	}
}

func TestComputeOverpaymentKeepsNegativeBalance(t *testing.T) {
	items := []LineItem{{Description: "one", Quantity: 1, UnitPrice: 100}}
	s := Compute(items, 0, 0, 150)
	if s.BalanceDue != -50 {
		t.Fatalf("balance due = %v, want -50", s.BalanceDue)
	}
}

func TestComputeIdempotent(t *testing.T) {
	items := []LineItem{
		{Description: "a", Quantity: 3, UnitPrice: 19.99},
		{Description: "b", Quantity: 7, UnitPrice: 0.01},
	}
	first := Compute(items, 12.5, 11, 42)
	second := Compute(items, 12.5, 11, 42)
	if first.GrandTotal != second.GrandTotal || first.BalanceDue != second.BalanceDue {
		t.Fatalf("recompute drifted: %+v vs %+v", first, second)
	}
}
