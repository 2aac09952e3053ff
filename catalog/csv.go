package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Runway is one runway record.
type Runway struct {
	AirportIdent string
	LengthFt     int
	Surface      string
	Closed       bool
}

// Country maps an ISO code to its display name.
type Country struct {
	Code string
	Name string
}

// Raw is the unfiltered data set.
type Raw struct {
	Airports  []*Airport
	Runways   []Runway
	Countries []Country
}

// LoadDir reads airports.csv, runways.csv and countries.csv from dir, plus
// supplemental_airports.csv and supplemental_runways.csv when present.
func LoadDir(dir string) (Raw, error) {
	var raw Raw

	for _, name := range []string{"airports.csv", "supplemental_airports.csv"} {
		airports, err := readAirports(filepath.Join(dir, name))
		if err != nil {
			if name != "airports.csv" && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Raw{}, err
		}
		raw.Airports = append(raw.Airports, airports...)
	}

	for _, name := range []string{"runways.csv", "supplemental_runways.csv"} {
		runways, err := readRunways(filepath.Join(dir, name))
		if err != nil {
			if name != "runways.csv" && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Raw{}, err
		}
		raw.Runways = append(raw.Runways, runways...)
	}

	countries, err := readCountries(filepath.Join(dir, "countries.csv"))
	if err != nil {
		return Raw{}, err
	}
	raw.Countries = countries

	return raw, nil
}

// eachRecord calls fn with a column accessor for every data row of a CSV file.
func eachRecord(path string, fn func(line int, col func(string) string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}

	line := 1
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}
		col := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		if err := fn(line, col); err != nil {
			return fmt.Errorf("%s line %d: %w", path, line, err)
		}
	}
}

func readAirports(path string) ([]*Airport, error) {
	var out []*Airport
	err := eachRecord(path, func(_ int, col func(string) string) error {
		id, err := strconv.Atoi(col("id"))
		if err != nil {
			return fmt.Errorf("airport id: %w", err)
		}
		lat, err := strconv.ParseFloat(col("latitude_deg"), 64)
		if err != nil {
			return fmt.Errorf("airport %d latitude: %w", id, err)
		}
		lon, err := strconv.ParseFloat(col("longitude_deg"), 64)
		if err != nil {
			return fmt.Errorf("airport %d longitude: %w", id, err)
		}
		elevation, _ := strconv.Atoi(col("elevation_ft"))
		out = append(out, &Airport{
			ID:            id,
			Code:          col("ident"),
			Name:          col("name"),
			Type:          col("type"),
			Lat:           lat,
			Lon:           lon,
			ElevationFt:   elevation,
			Continent:     col("continent"),
			Country:       col("iso_country"),
			Region:        col("iso_region"),
			HomeLink:      col("home_link"),
			WikipediaLink: col("wikipedia_link"),
		})
		return nil
	})
	return out, err
}

func readRunways(path string) ([]Runway, error) {
	var out []Runway
	err := eachRecord(path, func(_ int, col func(string) string) error {
		length, _ := strconv.Atoi(col("length_ft"))
		out = append(out, Runway{
			AirportIdent: col("airport_ident"),
			LengthFt:     length,
			Surface:      col("surface"),
			Closed:       col("closed") == "1",
		})
		return nil
	})
	return out, err
}

func readCountries(path string) ([]Country, error) {
	var out []Country
	err := eachRecord(path, func(_ int, col func(string) string) error {
		out = append(out, Country{Code: col("code"), Name: col("name")})
		return nil
	})
	return out, err
}
