package candidate

import "strings"

// MaskNumber keeps the first 6 and last 4 digits and masks the rest, the PCI DSS
// display rule. Numbers of 10 digits or fewer are returned unchanged.
//
// Example:
//
//	MaskNumber("2202200000425688") => "220220******5688"
func MaskNumber(number string) string {
	n := len(number)
	if n <= 10 {
		return number
	}

	var masked strings.Builder
	masked.Grow(n)
	masked.WriteString(number[:6])
	masked.WriteString(strings.Repeat("*", n-10))
	masked.WriteString(number[n-4:])
	return masked.String()
}
