package billing

import (
	"math"
	"strconv"
	"strings"
)

// FormatMoney renders an amount as "{symbol}{grouped value}" with exactly two
// decimals and comma thousands separators. The grouping and decimal marks are
// fixed rather than locale-derived so stored and displayed amounts are
// reproducible across environments. Non-finite input formats as the zero
// amount; the formatter never fails.
func FormatMoney(v float64, symbol string) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}

	fixed := strconv.FormatFloat(v, 'f', 2, 64)
	neg := strings.HasPrefix(fixed, "-")
	if neg {
		fixed = fixed[1:]
	}

	intPart, decPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	b.Grow(len(symbol) + len(fixed) + len(intPart)/3 + 1)
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(symbol)
	writeGrouped(&b, intPart)
	b.WriteByte('.')
	b.WriteString(decPart)
	return b.String()
}

func writeGrouped(b *strings.Builder, digits string) {
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
		if len(digits) > lead {
			b.WriteByte(',')
		}
	}
	for i := lead; i < len(digits); i += 3 {
		b.WriteString(digits[i : i+3])
		if i+3 < len(digits) {
			b.WriteByte(',')
		}
	}
}
