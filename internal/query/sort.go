package query

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/ecowatch/internal/species"
)

// SortMode selects how the result list is ordered.
type SortMode int

const (
	// ByName orders by name ascending, ignoring case.
	ByName SortMode = iota
	// ByCreatedDescending orders newest first; a zero CreatedAt sorts as 0.
	ByCreatedDescending
	// ByMaxTempDescending orders by maxTemp, highest first; entries without
	// maxTemp sort last.
	ByMaxTempDescending
)

var sortModeNames = map[SortMode]string{
	ByName:              "name",
	ByCreatedDescending: "created",
	ByMaxTempDescending: "max-temp",
}

// SortModes lists every mode in declaration order.
var SortModes = []SortMode{ByName, ByCreatedDescending, ByMaxTempDescending}

func (m SortMode) String() string {
	if s, ok := sortModeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("SortMode(%d)", int(m))
}

// ParseSortMode parses "name", "created" or "max-temp".
func ParseSortMode(s string) (SortMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, m := range SortModes {
		if sortModeNames[m] == s {
			return m, nil
		}
	}
	return ByName, fmt.Errorf("unknown sort mode %q (want name, created or max-temp)", s)
}

// Sort returns a sorted copy of entries. The sort is stable: entries that
// compare equal keep their incoming order.
func Sort(entries []species.Entry, mode SortMode) []species.Entry {
	out := slices.Clone(entries)
	if out == nil {
		out = []species.Entry{}
	}

	switch mode {
	case ByCreatedDescending:
		slices.SortStableFunc(out, func(a, b species.Entry) int {
			return cmp.Compare(b.CreatedAt, a.CreatedAt)
		})
	case ByMaxTempDescending:
		slices.SortStableFunc(out, func(a, b species.Entry) int {
			return cmp.Compare(maxTempKey(b), maxTempKey(a))
		})
	default:
		slices.SortStableFunc(out, func(a, b species.Entry) int {
			return strings.Compare(species.Fold(a.Name), species.Fold(b.Name))
		})
	}
	return out
}

func maxTempKey(e species.Entry) float64 {
	if e.MaxTemp == nil {
		return math.Inf(-1)
	}
	return *e.MaxTemp
}
