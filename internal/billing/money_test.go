package billing

import (
	"math"
	"testing"
)

func TestFormatMoney(t *testing.T) {
	cases := []struct {
		value  float64
		symbol string
		want   string
	}{
		{0, "$", "$0.00"},
		{5, "$", "$5.00"},
		{1234.5, "$", "$1,234.50"},
		{1234567.891, "€", "€1,234,567.89"},
		{999.999, "$", "$1,000.00"},
		{100, "", "100.00"},
		{-1234.5, "£", "-£1,234.50"},
		{41.875, "$", "$41.88"},
		{math.NaN(), "$", "$0.00"},
		{math.Inf(1), "R", "R0.00"},
	}
	for _, tc := range cases {
		got := FormatMoney(tc.value, tc.symbol)
		if got != tc.want {
			t.Fatalf("FormatMoney(%v, %q) = %q, want %q", tc.value, tc.symbol, got, tc.want)
		}
	}
}

func TestFormatMoneyIdempotent(t *testing.T) {
	first := FormatMoney(98765.432, "$")
	second := FormatMoney(98765.432, "$")
	if first != second {
		t.Fatalf("formatting drifted: %q vs %q", first, second)
	}
}
