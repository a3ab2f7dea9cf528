// Package multivalue owns the delimited representation of composite catalog
// fields. One item may stand for several physical covers bundled under a
// single id; their per-part values are stored joined by Separator and every
// completeness decision works on the split []string form produced here.
package multivalue

import "strings"

// Separator joins sub-values of a composite field.
const Separator = ";"

// PlotSeparator joins multi-part plot text. Plots routinely contain plain
// semicolons, so they get a separator that survives round-trips.
const PlotSeparator = ";\n"

// Split breaks a stored composite value into its trimmed, non-empty parts.
// An empty or whitespace-only input yields a nil slice.
func Split(value string) []string {
	return SplitWith(value, Separator)
}

// SplitWith splits value on the given separator, trimming each part and
// dropping empties.
func SplitWith(value, separator string) []string {
	text := strings.TrimSpace(value)
	if text == "" {
		return nil
	}
	var parts []string
	for _, part := range strings.Split(text, separator) {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// Join renders parts back into the stored form, trimming each part and
// dropping empties so Split(Join(x)) is stable.
func Join(parts []string) string {
	return JoinWith(parts, Separator)
}

// JoinWith joins parts with the given separator.
func JoinWith(parts []string, separator string) string {
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			cleaned = append(cleaned, part)
		}
	}
	return strings.Join(cleaned, separator)
}

// Count reports the number of sub-values in a stored composite field.
func Count(value string) int {
	return len(Split(value))
}

// CountWith reports the number of sub-values using a custom separator.
func CountWith(value, separator string) int {
	return len(SplitWith(value, separator))
}
