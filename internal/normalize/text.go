package normalize

import "strings"

func Trim(value string) string {
	return strings.TrimSpace(value)
}

func Lower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func EqualFoldTrimmed(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// CollapseSpaces trims the value and folds interior whitespace runs into a
// single space. Vendor display names arrive with arbitrary padding.
func CollapseSpaces(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
