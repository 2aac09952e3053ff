// Package plannertest provides a small on-disk data set for tests that need
// a prepared planning session.
package plannertest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gilby125/seven-continents/config"
)

const airportsCSV = `"id","ident","type","name","latitude_deg","longitude_deg","elevation_ft","continent","iso_country","iso_region","home_link","wikipedia_link"
1,"SCGC","small_airport","Union Glacier Blue-Ice Runway",-79.777,-83.320,2461,"AN","AQ","AQ-U-A","",""
2,"NZPG","small_airport","Phoenix Airfield",-77.956,166.766,0,"AN","AQ","AQ-U-A","",""
3,"SCEL","large_airport","Santiago International Airport",-33.393,-70.786,1555,"SA","CL","CL-RM","",""
4,"SCCI","medium_airport","Punta Arenas Airport",-53.003,-70.855,139,"SA","CL","CL-MA","",""
5,"KMIA","large_airport","Miami International Airport",25.793,-80.291,8,"NA","US","US-FL","",""
6,"KLAX","large_airport","Los Angeles International Airport",33.943,-118.408,125,"NA","US","US-CA","",""
7,"EGLL","large_airport","London Heathrow Airport",51.471,-0.462,83,"EU","GB","GB-ENG","",""
8,"LEMD","large_airport","Madrid Barajas Airport",40.472,-3.561,1998,"EU","ES","ES-M","",""
9,"FACT","large_airport","Cape Town International Airport",-33.965,18.602,151,"AF","ZA","ZA-WC","",""
10,"HKJK","large_airport","Jomo Kenyatta International Airport",-1.319,36.928,5330,"AF","KE","KE-110","",""
11,"VIDP","large_airport","Indira Gandhi International Airport",28.567,77.103,777,"AS","IN","IN-DL","",""
12,"WSSS","large_airport","Singapore Changi Airport",1.350,103.994,22,"AS","SG","SG-04","",""
13,"YSSY","large_airport","Sydney Kingsford Smith Airport",-33.946,151.177,21,"OC","AU","AU-NSW","",""
14,"NZAA","large_airport","Auckland International Airport",-37.008,174.792,23,"OC","NZ","NZ-AUK","",""
15,"UUEE","large_airport","Sheremetyevo International Airport",55.973,37.415,622,"EU","RU","RU-MOS","",""
`

const runwaysCSV = `"airport_ident","length_ft","surface","closed"
"SCGC",9843,"ICE",0
"NZPG",10000,"ICE",0
"SCEL",12300,"ASP",0
"SCCI",9153,"ASP",0
"KMIA",13016,"ASP",0
"KLAX",12091,"CON",0
"EGLL",12799,"ASP",0
"LEMD",14272,"ASP",0
"FACT",10502,"ASP",0
"HKJK",13507,"ASP",0
"VIDP",14534,"ASP",0
"WSSS",13123,"ASP",0
"YSSY",12999,"ASP",0
"NZAA",11926,"ASP",0
"UUEE",12139,"CON",0
`

const countriesCSV = `"code","name"
"AQ","Antarctica"
"CL","Chile"
"US","United States"
"GB","United Kingdom"
"ES","Spain"
"ZA","South Africa"
"KE","Kenya"
"IN","India"
"SG","Singapore"
"AU","Australia"
"NZ","New Zealand"
"RU","Russia"
`

const planesYAML = `
planes:
  long:
    name: Long Range Test
    short_name: long
    max_range_mi: 13000
    avg_speed_mph: 500
    min_runway_length_ft: 5000
legs: {1: long, 2: long, 3: long, 4: long, 5: long, 6: long}
`

// Config writes a fifteen airport data set spanning all seven continents to
// a temp dir and returns a test configuration reading it. The single test
// plane has near global range.
func Config(t testing.TB) config.Config {
	t.Helper()
	dir := t.TempDir()
	for name, content := range map[string]string{
		"airports.csv":  airportsCSV,
		"runways.csv":   runwaysCSV,
		"countries.csv": countriesCSV,
		"planes.yaml":   planesYAML,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	cfg := *config.LoadTestConfig()
	cfg.DataConfig.DataPath = dir
	cfg.DataConfig.DistCacheFile = filepath.Join(dir, "dist_cache.dat")
	cfg.DataConfig.PlanesFile = filepath.Join(dir, "planes.yaml")
	cfg.SearchConfig.MaxSearches = 500
	cfg.SearchConfig.OptimizationMaxSearches = 50
	cfg.SearchConfig.NumBestRoutes = 3
	cfg.SearchConfig.ProgressInterval = 0
	return cfg
}
