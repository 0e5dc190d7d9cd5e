package artifact

import "strings"

// Slugify turns a domain label into a directory name. Every character outside
// [a-z0-9_] becomes an underscore, so a label can never name a parent or
// nested directory.
func Slugify(text string) string {
	return sanitize(strings.ReplaceAll(strings.ToLower(text), " & ", "_"))
}

// TableSlug turns a possibly schema-qualified table name into a file name.
func TableSlug(table string) string {
	return sanitize(strings.ToLower(table))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, s)
}
