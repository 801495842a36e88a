package billing

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Numeric is a float64 that survives loosely-typed upstream payloads.
// Numbers, quoted numbers, null, and outright garbage all decode without
// error; anything that is not a finite number decodes to zero. This is the
// boundary between ad-hoc client JSON and the typed calculator inputs.
type Numeric float64

// UnmarshalJSON decodes the value leniently, degrading malformed input to zero.
func (n *Numeric) UnmarshalJSON(data []byte) error {
	*n = 0
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	raw := string(trimmed)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil
		}
		raw = strings.TrimSpace(s)
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return nil
	}
	*n = Numeric(parsed)
	return nil
}

// MarshalJSON encodes the value as a plain JSON number.
func (n Numeric) MarshalJSON() ([]byte, error) {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
}

// Float returns the underlying value with non-finite inputs treated as zero.
func (n Numeric) Float() float64 {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
