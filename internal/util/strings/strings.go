// Package strings provides small string utility functions used by the CLI's
// human-readable output.
package strings

// Pluralize returns singular or plural form based on count.
// Example: Pluralize("file", 1) returns "file", Pluralize("file", 2) returns "files"
func Pluralize(word string, count int64) string {
	if count == 1 {
		return word
	}
	return word + "s"
}
