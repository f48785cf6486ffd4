package utils

import (
	"fmt"
	"strings"
)

// FormatCents memformat jumlah dalam minor unit (sen) ke string mata uang.
// Contoh: 1500050 -> "Rp 15.000,50". Seluruh nominal di sistem disimpan
// sebagai integer minor unit, tidak pernah float.
func FormatCents(cents int64) string {
	negative := cents < 0
	if negative {
		cents = -cents
	}

	integerPart := fmt.Sprintf("%d", cents/100)
	decimalPart := fmt.Sprintf("%02d", cents%100)

	// Tambahkan pemisah ribuan
	var result []string
	for i := len(integerPart); i > 0; i -= 3 {
		start := i - 3
		if start < 0 {
			start = 0
		}
		result = append([]string{integerPart[start:i]}, result...)
	}

	formatted := "Rp " + strings.Join(result, ".") + "," + decimalPart
	if negative {
		return "-" + formatted
	}
	return formatted
}
