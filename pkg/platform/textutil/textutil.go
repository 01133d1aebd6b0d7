// Package textutil normalizes free-text list inputs.
package textutil

import (
	"slices"
	"strings"
)

// DedupeAndTrim trims each value and drops blanks and repeats, keeping
// first-seen order. Comparison is case-sensitive. Inputs are short request
// lists, so the linear membership check is fine.
func DedupeAndTrim(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
