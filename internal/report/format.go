package report

import (
	"fmt"
	"strings"
)

// FormatBRL renders a monetary value in Brazilian convention: thousands
// separated by dots, decimals by a comma (R$ 1.234.567,89).
func FormatBRL(value float64) string {
	s := fmt.Sprintf("%.2f", value)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	intPart := s[:len(s)-3]
	decPart := s[len(s)-2:]

	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}

	out := "R$ " + b.String() + "," + decPart
	if neg {
		out = "R$ -" + b.String() + "," + decPart
	}
	return out
}

// FormatBRLValue is FormatBRL for optional values; nil renders as "-".
func FormatBRLValue(value *float64) string {
	if value == nil {
		return "-"
	}
	return FormatBRL(*value)
}

// FormatPercent renders an optional percentage with two decimals, or "-".
func FormatPercent(value *float64) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", *value)
}
