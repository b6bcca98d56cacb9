package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/wonny/limitup/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a formatted command header
func PrintHeader(title string, fields map[string]string, order ...string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	if len(order) > 0 {
		PrintSeparator()
		for _, key := range order {
			if v, ok := fields[key]; ok && v != "" {
				fmt.Printf("  %-10s: %s\n", key, v)
			}
		}
	}
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintJSON writes v as indented JSON
func PrintJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintRecommendations prints recommendations as a table
func PrintRecommendations(recs []*contracts.Recommendation) {
	if len(recs) == 0 {
		PrintInfo("No recommendations")
		return
	}
	widths := []int{10, 10, 10, 7, 7, 10, 8}
	PrintTableHeader([]string{"SYMBOL", "NAME", "T-DATE", "T-DAY", "TOTAL", "STATUS", "ACTION"}, widths)
	for _, r := range recs {
		action := "-"
		if r.Decision != nil {
			action = string(r.Decision.Action)
		}
		PrintTableRow([]string{
			r.Symbol,
			r.Name,
			r.TradeDate.Format(contracts.DateLayout),
			fmt.Sprintf("%.1f", r.TDayScore),
			fmt.Sprintf("%.1f", r.TotalScore),
			string(r.Status),
			action,
		}, widths)
	}
}

// parseDate parses YYYYMMDD (or YYYY-MM-DD) in loc; empty means today
func parseDate(s string, loc *time.Location, now time.Time) (time.Time, error) {
	if s == "" {
		n := now.In(loc)
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc), nil
	}
	for _, layout := range []string{contracts.DateLayout, "2006-01-02"} {
		if d, err := time.ParseInLocation(layout, s, loc); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (expected YYYYMMDD)", s)
}
