package cli

import (
	"strconv"
	"strings"
)

// FormatPrice renders a price with the shortest exact decimal form, grouping
// the integer part in thousands.
func FormatPrice(price float64) string {
	s := strconv.FormatFloat(price, 'f', -1, 64)

	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}
	intPart, decPart, hasDec := strings.Cut(s, ".")

	result := groupThousands(intPart)
	if hasDec {
		result += "." + decPart
	}
	if negative {
		result = "-" + result
	}
	return result
}

func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var b strings.Builder
	first := n % 3
	if first > 0 {
		b.WriteString(s[:first])
	}
	for i := first; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
