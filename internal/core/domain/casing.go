package domain

import (
	"strings"
	"unicode"
)

// ToCamelCase removes every run of non-alphanumeric characters and upper-cases
// the character that follows it. The first character is left untouched.
func ToCamelCase(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	upperNext := false
	for _, r := range s {
		if !isASCIIAlnum(r) {
			upperNext = true
			continue
		}
		if upperNext {
			r = unicode.ToUpper(r)
		}
		upperNext = false
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return s
	}
	return b.String()
}

// ToSnakeCase replaces every run of upper-case letters with an underscore
// followed by the lower-cased run. A leading underscore is dropped.
func ToSnakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	inUpper := false
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			if !inUpper {
				b.WriteByte('_')
			}
			inUpper = true
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		inUpper = false
		b.WriteRune(r)
	}
	return strings.TrimPrefix(b.String(), "_")
}

// ApplyCasing converts a name with the given convention.
func ApplyCasing(name string, casing NameCasing) string {
	if casing == SnakeCase {
		return ToSnakeCase(name)
	}
	return ToCamelCase(name)
}

// TranslateColumns renames the keys of fields using columnMap, then applies
// casing to the result. Entries with nil values are dropped.
func TranslateColumns(fields map[string]any, columnMap map[string]string, casing NameCasing) map[string]any {
	result := make(map[string]any, len(fields))
	for key, value := range fields {
		if value == nil {
			continue
		}
		if mapped, ok := columnMap[key]; ok {
			key = mapped
		}
		result[ApplyCasing(key, casing)] = value
	}
	return result
}

// ReverseColumnMap swaps the keys and values of a column map.
func ReverseColumnMap(columnMap map[string]string) map[string]string {
	reversed := make(map[string]string, len(columnMap))
	for external, local := range columnMap {
		reversed[local] = external
	}
	return reversed
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
