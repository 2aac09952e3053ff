package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/seven-continents/pkg/logger"
)

const airportsCSV = `"id","ident","type","name","latitude_deg","longitude_deg","elevation_ft","continent","iso_country","iso_region","home_link","wikipedia_link"
1,"KLAX","large_airport","Los Angeles International Airport",33.942501,-118.407997,125,"NA","US","US-CA","",""
2,"KJFK","large_airport","John F Kennedy International Airport",40.639801,-73.7789,13,"NA","US","US-NY","https://www.jfkairport.com",""
3,"EGLL","large_airport","London Heathrow Airport",51.4706,-0.461941,83,"EU","GB","GB-ENG","",""
4,"UUEE","large_airport","Sheremetyevo International Airport",55.972599,37.4146,622,"EU","RU","RU-MOS","",""
5,"PHNL","large_airport","Daniel K Inouye International Airport",21.32062,-157.924228,13,"OC","US","US-HI","",""
6,"OAKB","large_airport","Kabul International Airport",34.565899,69.212303,5877,"AS","AF","AF-KAB","",""
7,"KSMO","closed","Santa Monica Airport",34.015800,-118.450996,177,"NA","US","US-CA","",""
8,"X01","small_airport","Grass Strip",10.0,10.0,0,"AF","NG","NG-X","",""
9,"LPMA","medium_airport","Madeira Airport",32.697899,-16.7745,192,"EU","PT","PT-30","",""
`

const runwaysCSV = `"id","airport_ref","airport_ident","length_ft","width_ft","surface","lighted","closed"
1,1,"KLAX",12091,150,"CON",1,0
2,2,"KJFK",14511,200,"ASPH-CONC",1,0
3,3,"EGLL",12799,164,"ASP",1,0
4,4,"UUEE",12139,197,"CON",1,0
5,5,"PHNL",12300,150,"ASP",1,0
6,6,"OAKB",11483,164,"ASP",1,0
7,7,"KSMO",4973,150,"ASP",1,0
8,8,"X01",6000,50,"GRS",0,0
9,9,"LPMA",9124,148,"ASP",1,0
`

const countriesCSV = `"id","code","name","continent"
1,"US","United States","NA"
2,"GB","United Kingdom","EU"
3,"RU","Russia","EU"
4,"AF","Afghanistan","AS"
5,"NG","Nigeria","AF"
6,"PT","Portugal","EU"
`

func writeData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "airports.csv"), []byte(airportsCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runways.csv"), []byte(runwaysCSV), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "countries.csv"), []byte(countriesCSV), 0o644))
	return dir
}

func TestLoadDir(t *testing.T) {
	dir := writeData(t)

	raw, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Len(t, raw.Airports, 9)
	assert.Len(t, raw.Runways, 9)
	assert.Len(t, raw.Countries, 6)

	jfk := raw.Airports[1]
	assert.Equal(t, "KJFK", jfk.Code)
	assert.InDelta(t, 40.639801, jfk.Lat, 1e-9)
	assert.Equal(t, "US-NY", jfk.Region)
	assert.Equal(t, "https://www.jfkairport.com", jfk.Link())
}

func TestLoadDir_Supplemental(t *testing.T) {
	dir := writeData(t)
	extra := `"id","ident","type","name","latitude_deg","longitude_deg","continent","iso_country","iso_region"
100,"SCRM","small_airport","Teniente R. Marsh Airport",-62.1908,-58.9867,"AN","AQ","AQ-U-A"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "supplemental_airports.csv"), []byte(extra), 0o644))

	raw, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, raw.Airports, 10)
	assert.Equal(t, "AN", raw.Airports[9].Continent)
}

func TestLoadDir_Errors(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.Error(t, err)

	dir := writeData(t)
	bad := "\"id\",\"ident\",\"latitude_deg\",\"longitude_deg\"\n1,\"A\",north,0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "airports.csv"), []byte(bad), 0o644))
	_, err = LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "latitude")
}

func TestFilter(t *testing.T) {
	raw, err := LoadDir(writeData(t))
	require.NoError(t, err)

	warnings := logger.NewWarnings(nil)
	set, stats := Filter(raw, FilterOptions{MinRunwayFt: 5000, GeoOverridesEnabled: true}, warnings)

	var codes []string
	for _, a := range set.All() {
		codes = append(codes, a.Code)
	}
	// KSMO short and closed, X01 grass, PHNL region, OAKB and Nigeria
	// country, LPMA ident.
	assert.Equal(t, []string{"KLAX", "KJFK", "EGLL", "UUEE"}, codes)

	assert.Equal(t, 9, stats.Runways)
	assert.Equal(t, 7, stats.ValidRunways)
	assert.Equal(t, 7, stats.Candidates)
	assert.Equal(t, 4, stats.Airports)

	svo, ok := set.ByCode("UUEE")
	require.True(t, ok)
	assert.Equal(t, "AS", svo.Continent, "Russia is moved to Asia")
	assert.Equal(t, "Russia", svo.CountryName)

	assert.Equal(t, []string{"AS", "EU", "NA"}, set.Continents())

	// Most blacklisted names are absent from the small country table.
	assert.Greater(t, warnings.Len(), 10)
	for _, w := range warnings.List() {
		assert.Equal(t, "country_not_found", w.Code)
	}
}

func TestFilter_GeoOverridesDisabled(t *testing.T) {
	raw, err := LoadDir(writeData(t))
	require.NoError(t, err)

	set, _ := Filter(raw, FilterOptions{MinRunwayFt: 5000}, nil)
	svo, ok := set.ByCode("UUEE")
	require.True(t, ok)
	assert.Equal(t, "EU", svo.Continent)
}

func TestFilter_PinnedReadded(t *testing.T) {
	raw, err := LoadDir(writeData(t))
	require.NoError(t, err)

	set, stats := Filter(raw, FilterOptions{
		MinRunwayFt: 5000,
		PinnedIDs:   []int{5},
		PinnedCodes: []string{"KSMO", "KLAX"},
	}, nil)

	assert.Equal(t, 2, stats.Pinned)
	_, ok := set.ByID(5)
	assert.True(t, ok)
	smo, ok := set.ByCode("KSMO")
	require.True(t, ok)
	assert.Equal(t, "United States", smo.CountryName)
	assert.Equal(t, 6, set.Len())
}

func TestFilter_NormalizedCountryNames(t *testing.T) {
	raw := Raw{
		Airports: []*Airport{
			{ID: 1, Code: "AAAA", Country: "CI", Continent: "AF"},
			{ID: 2, Code: "BBBB", Country: "FR", Continent: "EU"},
		},
		Runways: []Runway{
			{AirportIdent: "AAAA", LengthFt: 8000, Surface: "ASP"},
			{AirportIdent: "BBBB", LengthFt: 8000, Surface: "asphalt"},
		},
		Countries: []Country{
			{Code: "CI", Name: "Côte d'Ivoire"},
			{Code: "FR", Name: "France"},
		},
	}

	set, _ := Filter(raw, FilterOptions{
		MinRunwayFt:      5000,
		CountryBlacklist: []string{"cote  D'IVOIRE"},
		GeoOverrides:     []GeoOverride{},
	}, logger.NewWarnings(nil))

	assert.Equal(t, 1, set.Len())
	_, ok := set.ByCode("BBBB")
	assert.True(t, ok)
}

func TestSet_Resolve(t *testing.T) {
	set := NewSet([]*Airport{
		{ID: 1, Code: "KLAX"},
		{ID: 2, Code: "KJFK"},
		{ID: 1, Code: "DUPE"},
	})
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []int{1, 2}, set.IDs())

	ids, err := set.ResolveCodes([]string{"KJFK", "KLAX"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, ids)

	_, err = set.ResolveCodes([]string{"ZZZZ"})
	assert.True(t, errors.Is(err, ErrUnknownAirport))

	airports, err := set.ResolveIDs([]int{2})
	require.NoError(t, err)
	assert.Equal(t, "KJFK", airports[0].Code)

	_, err = set.ResolveIDs([]int{42})
	assert.True(t, errors.Is(err, ErrUnknownAirport))
}
