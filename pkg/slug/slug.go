package slug

import "strings"

// Make derives a URL slug from a display title: lower-cased, surrounding
// whitespace dropped, internal whitespace runs collapsed to single hyphens.
func Make(title string) string {
	fields := strings.Fields(strings.ToLower(title))
	return strings.Join(fields, "-")
}
