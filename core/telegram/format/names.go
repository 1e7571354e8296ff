// Package format renders user-facing fragments shared by several handlers.
package format

import "strings"

// FullName joins a first name with an optional last name. An empty result
// falls back to placeholder.
func FullName(first string, last *string, placeholder string) string {
	parts := make([]string, 0, 2)
	if f := strings.TrimSpace(first); f != "" {
		parts = append(parts, f)
	}
	if last != nil {
		if l := strings.TrimSpace(*last); l != "" {
			parts = append(parts, l)
		}
	}
	if len(parts) == 0 {
		return placeholder
	}
	return strings.Join(parts, " ")
}
