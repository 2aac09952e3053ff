// Package planes holds the aircraft capability table and the assignment of
// aircraft to route legs.
//
// Ranges and speeds are approximate. Cruise speeds come from quoted flight
// times on longer flights where most of the time is spent near cruise.
package planes

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrUnknownLeg is returned when no profile is assigned to a leg.
var ErrUnknownLeg = errors.New("no plane assigned to leg")

// Profile describes one aircraft.
type Profile struct {
	ID          string  `yaml:"-" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	ShortName   string  `yaml:"short_name" json:"short_name"`
	MaxRangeMi  float64 `yaml:"max_range_mi" json:"max_range_mi"`
	AvgSpeedMph float64 `yaml:"avg_speed_mph" json:"avg_speed_mph"`
	MinRunwayFt int     `yaml:"min_runway_length_ft" json:"min_runway_length_ft"`
}

// Table is the set of known profiles plus the leg → profile assignment.
// Legs are numbered from 1.
type Table struct {
	Profiles map[string]Profile `yaml:"planes"`
	Legs     map[int]string     `yaml:"legs"`
}

// Default returns the built-in table.
func Default() Table {
	profiles := map[string]Profile{
		"737":          {Name: "Airbus 737", ShortName: "737", MaxRangeMi: 3000, AvgSpeedMph: 450, MinRunwayFt: 5000},
		"g450":         {Name: "Gulfstream g450", ShortName: "g450", MaxRangeMi: 4100, AvgSpeedMph: 525, MinRunwayFt: 5000},
		"g550":         {Name: "Gulfstream g550", ShortName: "g550", MaxRangeMi: 5800, AvgSpeedMph: 550, MinRunwayFt: 5000},
		"g550_lowfuel": {Name: "Gulfstream g550", ShortName: "g550", MaxRangeMi: 2700, AvgSpeedMph: 550, MinRunwayFt: 5000},
		"g650":         {Name: "Gulfstream g650", ShortName: "g650", MaxRangeMi: 6500, AvgSpeedMph: 575, MinRunwayFt: 5000},
		"global_6000":  {Name: "Global 6000", ShortName: "global_6000", MaxRangeMi: 6500, AvgSpeedMph: 550, MinRunwayFt: 5000},
	}
	t := Table{
		Profiles: profiles,
		Legs: map[int]string{
			1: "g550",
			2: "global_6000",
			3: "global_6000",
			4: "global_6000",
			5: "global_6000",
			6: "global_6000",
		},
	}
	t.fillIDs()
	return t
}

// LoadYAML reads a table from a YAML file of the form
//
//	planes:
//	  g550: {name: Gulfstream g550, max_range_mi: 5800, avg_speed_mph: 550, min_runway_length_ft: 5000}
//	legs:
//	  1: g550
func LoadYAML(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read plane table: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("parse plane table %s: %w", path, err)
	}
	t.fillIDs()
	if err := t.Validate(); err != nil {
		return Table{}, fmt.Errorf("plane table %s: %w", path, err)
	}
	return t, nil
}

func (t *Table) fillIDs() {
	for id, p := range t.Profiles {
		p.ID = id
		if p.ShortName == "" {
			p.ShortName = id
		}
		t.Profiles[id] = p
	}
}

// Validate checks that every assigned leg refers to a usable profile.
func (t Table) Validate() error {
	if len(t.Legs) == 0 {
		return errors.New("no legs assigned")
	}
	var errs []error
	for _, leg := range t.LegNumbers() {
		id := t.Legs[leg]
		p, ok := t.Profiles[id]
		if !ok {
			errs = append(errs, fmt.Errorf("leg %d: unknown plane %q", leg, id))
			continue
		}
		if p.MaxRangeMi <= 0 || p.AvgSpeedMph <= 0 {
			errs = append(errs, fmt.Errorf("plane %q: range and speed must be positive", id))
		}
	}
	return errors.Join(errs...)
}

// ForLeg returns the profile flying leg n.
func (t Table) ForLeg(n int) (Profile, error) {
	id, ok := t.Legs[n]
	if !ok {
		return Profile{}, fmt.Errorf("%w %d", ErrUnknownLeg, n)
	}
	p, ok := t.Profiles[id]
	if !ok {
		return Profile{}, fmt.Errorf("leg %d: unknown plane %q", n, id)
	}
	return p, nil
}

// LegNumbers returns the assigned legs in ascending order.
func (t Table) LegNumbers() []int {
	legs := make([]int, 0, len(t.Legs))
	for n := range t.Legs {
		legs = append(legs, n)
	}
	sort.Ints(legs)
	return legs
}

// MinRunwayFt is the runway requirement used to filter airports: the first
// leg's aircraft, as every route starts with it.
func (t Table) MinRunwayFt() int {
	p, err := t.ForLeg(1)
	if err != nil {
		return 0
	}
	return p.MinRunwayFt
}
