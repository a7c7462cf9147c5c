// Package threshold compares a species entry's recorded thresholds against
// live ambient readings.
//
// Evaluate is pure: no I/O, no clock, no shared state. Calling it twice with
// the same inputs yields the same violations in the same order.
package threshold

import (
	"fmt"
	"strconv"

	"github.com/roach88/ecowatch/internal/species"
)

// Kind identifies which bound a reading crossed.
type Kind string

const (
	KindBelowMinTemp     Kind = "below_min_temp"
	KindAboveMaxTemp     Kind = "above_max_temp"
	KindBelowMinHumidity Kind = "below_min_humidity"
	KindAboveMaxHumidity Kind = "above_max_humidity"
)

// Violation is a single out-of-range reading.
type Violation struct {
	Kind     Kind    `json:"kind"`
	Observed float64 `json:"observed"`
	Limit    float64 `json:"limit"`
	Message  string  `json:"message"`
}

// Evaluate returns every threshold the readings fall outside of, in the
// order minTemp, maxTemp, minHumidity, maxHumidity.
//
// A nil reading skips the checks that depend on it. A nil threshold skips
// its own check. Every check runs; there is no short-circuit.
func Evaluate(e species.Entry, temp, humidity *float64) []Violation {
	var out []Violation

	if e.MinTemp != nil && temp != nil && *temp < *e.MinTemp {
		out = append(out, violation(KindBelowMinTemp, *temp, *e.MinTemp))
	}
	if e.MaxTemp != nil && temp != nil && *temp > *e.MaxTemp {
		out = append(out, violation(KindAboveMaxTemp, *temp, *e.MaxTemp))
	}
	if e.MinHumidity != nil && humidity != nil && *humidity < *e.MinHumidity {
		out = append(out, violation(KindBelowMinHumidity, *humidity, *e.MinHumidity))
	}
	if e.MaxHumidity != nil && humidity != nil && *humidity > *e.MaxHumidity {
		out = append(out, violation(KindAboveMaxHumidity, *humidity, *e.MaxHumidity))
	}

	return out
}

// Messages flattens violations into their human-readable messages.
func Messages(vs []Violation) []string {
	msgs := make([]string, 0, len(vs))
	for _, v := range vs {
		msgs = append(msgs, v.Message)
	}
	return msgs
}

func violation(kind Kind, observed, limit float64) Violation {
	return Violation{
		Kind:     kind,
		Observed: observed,
		Limit:    limit,
		Message:  message(kind, observed, limit),
	}
}

func message(kind Kind, observed, limit float64) string {
	o, l := formatNumber(observed), formatNumber(limit)
	switch kind {
	case KindBelowMinTemp:
		return fmt.Sprintf("current temperature %s°C is below minimum %s°C", o, l)
	case KindAboveMaxTemp:
		return fmt.Sprintf("current temperature %s°C is above maximum %s°C", o, l)
	case KindBelowMinHumidity:
		return fmt.Sprintf("current humidity %s%% is below minimum %s%%", o, l)
	default:
		return fmt.Sprintf("current humidity %s%% is above maximum %s%%", o, l)
	}
}

// formatNumber prints the shortest representation: 5 rather than 5.000000.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
