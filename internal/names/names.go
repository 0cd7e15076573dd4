// Package names builds filesystem-safe output names for per-annotation
// artifacts.
package names

import (
	"fmt"
	"strings"
)

// Sanitize replaces every rune outside [A-Za-z0-9_-] with '_'.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isAlphaNum(r) || r == '_' || r == '-' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

// StripExtension removes the final filename extension. Names without one, or
// that are nothing but an extension, pass through.
func StripExtension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return name
	}
	return name[:i]
}

// OutputBase is the shared stem of an annotation's image/mask pair:
// {sanitizedBase}_annot{index}_{sanitizedClassification}.
func OutputBase(imageName string, index int, classification string) string {
	return fmt.Sprintf("%s_annot%d_%s",
		Sanitize(StripExtension(imageName)), index, Sanitize(classification))
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
