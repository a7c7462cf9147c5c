package cli

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/roach88/ecowatch/internal/species"
	"github.com/roach88/ecowatch/internal/threshold"
)

const none = "-"

// writeEntries prints entries as an aligned table.
func writeEntries(w io.Writer, entries []species.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "(no entries)")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tHABITAT\tSTATUS\tTEMP °C\tHUMIDITY %\tADDRESS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Name, text(e.Habitat), text(e.Status),
			bounds(e.MinTemp, e.MaxTemp), bounds(e.MinHumidity, e.MaxHumidity),
			text(e.Address))
	}
	tw.Flush()
}

// writeEntry prints one entry, one field per line.
func writeEntry(w io.Writer, e species.Entry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%d\n", e.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", e.Name)
	fmt.Fprintf(tw, "Habitat:\t%s\n", text(e.Habitat))
	fmt.Fprintf(tw, "Status:\t%s\n", text(e.Status))
	if e.Population != nil {
		fmt.Fprintf(tw, "Population:\t%d\n", *e.Population)
	} else {
		fmt.Fprintf(tw, "Population:\t%s\n", none)
	}
	fmt.Fprintf(tw, "Temperature:\t%s °C\n", bounds(e.MinTemp, e.MaxTemp))
	fmt.Fprintf(tw, "Humidity:\t%s %%\n", bounds(e.MinHumidity, e.MaxHumidity))
	if e.HasLocation() {
		fmt.Fprintf(tw, "Position:\t%s, %s\n", number(e.Lat), number(e.Lng))
	} else {
		fmt.Fprintf(tw, "Position:\t%s\n", none)
	}
	fmt.Fprintf(tw, "Address:\t%s\n", text(e.Address))
	fmt.Fprintf(tw, "Created:\t%s\n", e.Created().UTC().Format(time.RFC3339))
	tw.Flush()
}

// writeViolations prints the outcome of a threshold check.
func writeViolations(w io.Writer, vs []threshold.Violation) {
	if len(vs) == 0 {
		fmt.Fprintln(w, "✓ Within thresholds")
		return
	}
	fmt.Fprintf(w, "✗ %d threshold violation(s)\n", len(vs))
	for _, v := range vs {
		fmt.Fprintf(w, "  %s\n", v.Message)
	}
}

// writeReadings prints the ambient readings a check was made against.
func writeReadings(w io.Writer, temp, humidity *float64) {
	t, h := "unknown", "unknown"
	if temp != nil {
		t = number(temp) + " °C"
	}
	if humidity != nil {
		h = number(humidity) + " %"
	}
	fmt.Fprintf(w, "Readings: temperature %s, humidity %s\n", t, h)
}

func text(s *string) string {
	if s == nil {
		return none
	}
	return *s
}

func number(v *float64) string {
	if v == nil {
		return none
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// bounds renders a min/max pair as "10..25", "≥10", "≤25" or "-".
func bounds(lo, hi *float64) string {
	switch {
	case lo != nil && hi != nil:
		return number(lo) + ".." + number(hi)
	case lo != nil:
		return "≥" + number(lo)
	case hi != nil:
		return "≤" + number(hi)
	default:
		return none
	}
}
