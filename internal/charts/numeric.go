package charts

import (
	"math"
	"strconv"
	"strings"
)

// MinNumericSample is the smallest sample treated as a distribution
const MinNumericSample = 10

// ClassifyObservations returns the numeric form of rows when the sample is
// large enough and every value is a finite number. A single empty or
// non-numeric value makes the whole sample categorical.
func ClassifyObservations(rows []Observation) ([]NumericObservation, bool) {
	if len(rows) < MinNumericSample {
		return nil, false
	}

	result := make([]NumericObservation, 0, len(rows))
	for _, row := range rows {
		value, ok := parseNumber(row.Value)
		if !ok {
			return nil, false
		}
		result = append(result, NumericObservation{Value: value, Total: row.Total})
	}
	return result, true
}

// parseNumber accepts decimal and exponent notation plus unsigned 0x, 0o and
// 0b integer literals. Surrounding whitespace is ignored. Hex floats
// ("0x1p4"), signed prefixed literals and digit separators are rejected.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "_") {
		return 0, false
	}

	if hasBasePrefix(strings.TrimLeft(s, "+-")) {
		if !hasBasePrefix(s) {
			return 0, false
		}
		n, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return 0, false
		}
		return float64(n), true
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, !math.IsInf(f, 0) && !math.IsNaN(f)
}

func hasBasePrefix(s string) bool {
	return len(s) > 2 && s[0] == '0' && strings.ContainsRune("xXoObB", rune(s[1]))
}
