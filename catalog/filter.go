package catalog

import (
	"slices"
	"strings"

	anyascii "github.com/anyascii/go"

	"github.com/gilby125/seven-continents/pkg/logger"
)

// PavedSurfaces are the accepted runway surface prefixes.
var PavedSurfaces = []string{"ICE", "ASP", "CON", "BIT", "PEM"}

// FilterOptions controls which airports survive Filter. Nil blacklists fall
// back to the package defaults.
type FilterOptions struct {
	MinRunwayFt         int
	GeoOverridesEnabled bool
	PinnedIDs           []int
	PinnedCodes         []string

	CountryBlacklist []string
	GeoOverrides     []GeoOverride
	RegionBlacklist  []string
	AirportBlacklist []string
}

// Stats reports how many records each filter stage kept.
type Stats struct {
	Runways      int `json:"runways"`
	ValidRunways int `json:"valid_runways"`
	Candidates   int `json:"candidates"`
	Airports     int `json:"airports"`
	Pinned       int `json:"pinned_readded"`
}

// normalizeName folds a country name for lookup so that accents, case and
// stray whitespace do not break a blacklist match.
func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(anyascii.Transliterate(name)), " "))
}

// Filter reduces raw to the airports a route may use. An airport survives if
// it has a long enough paved runway, is not closed, and is not blacklisted by
// country, region or ident. Pinned airports are added back regardless.
// Blacklisted or overridden country names missing from raw.Countries produce
// a warning.
func Filter(raw Raw, opts FilterOptions, warnings *logger.Warnings) (*Set, Stats) {
	if opts.CountryBlacklist == nil {
		opts.CountryBlacklist = CountryBlacklist
	}
	if opts.GeoOverrides == nil {
		opts.GeoOverrides = GeoOverrides
	}
	if opts.RegionBlacklist == nil {
		opts.RegionBlacklist = RegionBlacklist
	}
	if opts.AirportBlacklist == nil {
		opts.AirportBlacklist = AirportBlacklist
	}

	stats := Stats{Runways: len(raw.Runways)}

	withRunway := map[string]bool{}
	for _, r := range raw.Runways {
		if r.LengthFt < opts.MinRunwayFt || !pavedSurface(r.Surface) {
			continue
		}
		stats.ValidRunways++
		withRunway[r.AirportIdent] = true
	}

	codeToName := make(map[string]string, len(raw.Countries))
	nameToCode := make(map[string]string, len(raw.Countries))
	for _, c := range raw.Countries {
		codeToName[c.Code] = c.Name
		nameToCode[normalizeName(c.Name)] = c.Code
	}

	blockedCountries := map[string]bool{}
	for _, name := range opts.CountryBlacklist {
		code, ok := nameToCode[normalizeName(name)]
		if !ok {
			warnings.Add("country_not_found", "country code not found for blacklisted country", "country", name)
			continue
		}
		blockedCountries[code] = true
	}

	overrides := map[string]GeoOverride{}
	if opts.GeoOverridesEnabled {
		for _, o := range opts.GeoOverrides {
			code, ok := nameToCode[normalizeName(o.Country)]
			if !ok {
				warnings.Add("country_not_found", "country code not found for geo override", "country", o.Country)
				continue
			}
			overrides[code] = o
		}
	}

	var kept []*Airport
	for _, a := range raw.Airports {
		if !withRunway[a.Code] || a.Type == "closed" {
			continue
		}
		stats.Candidates++
		if blockedCountries[a.Country] {
			continue
		}
		if slices.Contains(opts.AirportBlacklist, a.Code) || slices.Contains(opts.RegionBlacklist, a.Region) {
			continue
		}
		a.CountryName = codeToName[a.Country]
		if o, ok := overrides[a.Country]; ok && a.Continent == o.From {
			a.Continent = o.To
		}
		kept = append(kept, a)
	}

	present := make(map[int]bool, len(kept))
	for _, a := range kept {
		present[a.ID] = true
	}
	for _, a := range raw.Airports {
		if present[a.ID] {
			continue
		}
		if slices.Contains(opts.PinnedIDs, a.ID) || slices.Contains(opts.PinnedCodes, a.Code) {
			a.CountryName = codeToName[a.Country]
			kept = append(kept, a)
			present[a.ID] = true
			stats.Pinned++
		}
	}

	set := NewSet(kept)
	stats.Airports = set.Len()
	return set, stats
}

func pavedSurface(surface string) bool {
	s := strings.ToUpper(surface)
	if len(s) > 3 {
		s = s[:3]
	}
	return slices.Contains(PavedSurfaces, s)
}
