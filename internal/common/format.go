package common

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	fmt.Println()
	PrintSeparator("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	fmt.Println()
	PrintSeparator("=", width)
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintSection opens a boxed group, e.g. one user in a report.
func PrintSection(title string, details ...string) {
	fmt.Printf("\n┌─ %s\n", title)
	for _, d := range details {
		fmt.Printf("│  %s\n", d)
	}
	fmt.Println("├" + strings.Repeat("─", DefaultWidth-2))
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// ShortId keeps the first eight characters of an id for tables.
func ShortId(id string) string {
	if id == "" {
		return "none"
	}
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

// FormatAmount renders an amount without trailing zeros, or "-" for zero.
func FormatAmount(d decimal.Decimal) string {
	if d.IsZero() {
		return "-"
	}
	return d.String()
}

// FormatUSD renders a dollar value with two decimals.
func FormatUSD(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
