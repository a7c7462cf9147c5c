package species

import "golang.org/x/text/cases"

// Fold returns the Unicode case-folded form of s. Names compare and match
// case-insensitively through their folded forms.
func Fold(s string) string {
	// A Caser is stateful, so one is built per call.
	return cases.Fold().String(s)
}
