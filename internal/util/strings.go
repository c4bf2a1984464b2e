// Package util provides shared utility functions used across the codebase.
package util

// TruncateString truncates a string to maxLen runes, adding "..." if
// truncated. Used to keep long error messages and reasons readable in
// terminal output.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
