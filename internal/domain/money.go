package domain

import "fmt"

// FormatAmount renders minor units as a decimal string, e.g. 20000 -> "200.00".
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
