// Package naming provides filesystem-safe name sanitization for
// user-supplied file names and filter identifiers.
package naming

import "strings"

// MaxBaseNameLength caps every sanitizer input before processing.
const MaxBaseNameLength = 255

// SanitizeBaseName maps every character outside [A-Za-z0-9._-] to an
// underscore. The input is truncated to MaxBaseNameLength first, so the
// output never exceeds that length.
func SanitizeBaseName(name string) string {
	if len(name) > MaxBaseNameLength {
		name = name[:MaxBaseNameLength]
	}

	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		ch := name[i]
		allowed := (ch >= 'a' && ch <= 'z') ||
			(ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') ||
			ch == '.' || ch == '_' || ch == '-'
		if allowed {
			out[i] = ch
		} else {
			out[i] = '_'
		}
	}
	return string(out)
}

// StripTrailingDelimiters removes the maximal trailing run of underscores,
// hyphens and dots. Returns the empty string when the whole (truncated)
// input consists of delimiters.
func StripTrailingDelimiters(name string) string {
	if len(name) > MaxBaseNameLength {
		name = name[:MaxBaseNameLength]
	}
	return strings.TrimRight(name, "_-.")
}

// CollapseUnderscores replaces every run of consecutive underscores with a
// single underscore.
func CollapseUnderscores(name string) string {
	if len(name) > MaxBaseNameLength {
		name = name[:MaxBaseNameLength]
	}

	var b strings.Builder
	b.Grow(len(name))
	prevUnderscore := false
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if ch == '_' {
			if !prevUnderscore {
				b.WriteByte('_')
			}
			prevUnderscore = true
			continue
		}
		b.WriteByte(ch)
		prevUnderscore = false
	}
	return b.String()
}

// OutputBase derives the output artifact base name from an already
// sanitized input file name: the .md extension is stripped
// case-insensitively, trailing delimiters removed and underscore runs
// collapsed. When that leaves nothing (names that sanitize to pure
// punctuation), the pre-strip sanitized name is used as-is.
func OutputBase(sanitized string) string {
	base := sanitized
	if len(base) >= 3 && strings.EqualFold(base[len(base)-3:], ".md") {
		base = base[:len(base)-3]
	}

	cleaned := CollapseUnderscores(StripTrailingDelimiters(base))
	if cleaned == "" {
		return sanitized
	}
	return cleaned
}
