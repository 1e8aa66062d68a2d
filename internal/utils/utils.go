package utils

import "strings"

const ellipsis = "..."

// Preview flattens s onto one line and cuts it to at most limit runes, so
// multi-line prompts and model replies fit a log field or a table cell.
func Preview(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	flat := strings.Join(strings.Fields(s), " ")
	if n := len([]rune(flat)); n <= limit {
		return flat
	}
	return string([]rune(flat)[:limit]) + ellipsis
}
