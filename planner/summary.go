package planner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Summary renders a plain text report of r.
func Summary(r *Result) string {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	b.WriteString("Summary\n")
	p.Fprintf(&b, "Completed in %s\n", r.Elapsed.Round(10*time.Millisecond))
	p.Fprintf(&b, "Searched %d possible routes\n", r.SearchCount)
	p.Fprintf(&b, "Searched %d additional routes for optimizations\n", r.OptimizeCount)
	p.Fprintf(&b, "Found %d valid routes given mission constraints\n", r.ValidRouteCount)
	p.Fprintf(&b, "Considered %d airports in %d geo hash buckets\n", r.Airports, r.Buckets)
	if r.Cancelled {
		b.WriteString("Search was cancelled; showing the best routes found so far\n")
	}
	p.Fprintf(&b, "Showing top %d\n", len(r.Routes))

	for _, rr := range r.Routes {
		p.Fprintf(&b, "\nRoute #%d\n", rr.Rank)
		for i, stop := range rr.Stops {
			p.Fprintf(&b, "%s %s %s ", stop.Code, stop.Continent, stop.Country)
			if i == 0 {
				b.WriteString("(start)\n")
			} else {
				leg := rr.Legs[i-1]
				p.Fprintf(&b, "(%.0f mi / %.1f hrs / %d mph / %s)\n", leg.LengthMi, leg.DurationHrs, int(leg.SpeedMph), leg.Plane)
			}
			p.Fprintf(&b, "\tname: %s\n", orNA(stop.Name))
			p.Fprintf(&b, "\tcountry: %s\n", orNA(stop.CountryName))
			p.Fprintf(&b, "\televation: %dft\n", stop.ElevationFt)
			p.Fprintf(&b, "\ttype: %s\n", orNA(stop.Type))
			for _, alt := range stop.Alternates {
				p.Fprintf(&b, "\tnearest alternate %s: %s (%s, %s), %.2f mi\n", alt.Kind, alt.Code, alt.Name, alt.Country, alt.DistanceMi)
			}
		}
		p.Fprintf(&b, "Total Distance: %.2f miles\n", rr.TotalLengthMi)
		p.Fprintf(&b, "Duration: %.2f hrs", rr.TotalDurationHrs)
		if rr.ImprovementPct > 0 {
			p.Fprintf(&b, " (optimized from %.2f hrs, %.2f%%)", rr.OriginalDurationHrs, rr.ImprovementPct)
		}
		b.WriteString("\n")
	}

	if len(r.Warnings) > 0 {
		p.Fprintf(&b, "\n%d warnings\n", len(r.Warnings))
		for _, w := range r.Warnings {
			b.WriteString("\t" + w.String() + "\n")
		}
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

// WriteJSON writes r to path as indented JSON. The file is written to a
// temporary name first and renamed, so readers never see a partial file.
func WriteJSON(path string, r *Result) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}
