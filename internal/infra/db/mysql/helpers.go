package mysql

import "strings"

// stringOrDash returns "-" when the input is empty/whitespace, so required
// columns never get an empty value
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
