package catalog

// CountryBlacklist names countries whose airports are never used: those under
// a level 3 or 4 travel advisory (as of March 2019), plus island nations and
// territories that are not part of a continental mainland.
var CountryBlacklist = []string{
	"Venezuela",
	"Yemen",
	"Haiti",
	"Afghanistan",
	"Somalia",
	"North Korea",
	"South Sudan",
	"Iraq",
	"Iran",
	"Central African Republic",
	"Syria",
	"Mali",
	"Libya",
	"Guinea-Bissau",
	"Turkey",
	"Burkina Faso",
	"Pakistan",
	"Nigeria",
	"Congo (Kinshasa)",
	"Congo (Brazzaville)",
	"Chad",
	"El Salvador",
	"Sudan",
	"Mauritania",
	"Niger",
	"Honduras",
	"Nicaragua",
	"Lebanon",
	"Burundi",
	"Algeria",
	"Tunisia",
	"Morocco",

	// not mainland
	"Saint Vincent and the Grenadines",
	"Seychelles",
	"Antigua and Barbuda",
	"Puerto Rico",
	"Saint Lucia",
	"Saint Kitts and Nevis",
	"Christmas Island",
	"Cook Islands",
	"Guam",
	"Micronesia",
	"Dominican Republic",
	"Martinique",
	"Barbados",
	"Anguilla",
	"Faroe Islands",
	"British Virgin Islands",
	"U.S. Virgin Islands",
	"Solomon Islands",
	"Maldives",
	"Northern Mariana Islands",
	"Marshall Islands",
	"Cayman Islands",
	"Gibraltar",
	"Fiji",
	"Falkland Islands",
	"Iceland",
	"Caribbean Netherlands",
	"Taiwan",
	"Sint Maarten",
	"Jamaica",
	"Cape Verde",
	"Sri Lanka",
	"Guadeloupe",
	"Saint Helena",
	"Bermuda",
	"Mauritius",
}

// GeoOverride moves a country's airports from one continent to another when
// the country sits on the other continent's plate or shelf.
type GeoOverride struct {
	Country string
	From    string
	To      string
}

// GeoOverrides are applied unless disabled in configuration.
var GeoOverrides = []GeoOverride{
	{Country: "Trinidad and Tobago", From: "NA", To: "SA"},
	{Country: "Aruba", From: "NA", To: "SA"},
	{Country: "Russia", From: "EU", To: "AS"},
}

// RegionBlacklist holds ISO region codes excluded entirely.
var RegionBlacklist = []string{
	"US-HI",
}

// AirportBlacklist holds airport idents that are off the continental
// mainland despite their country, or otherwise unusable.
var AirportBlacklist = []string{
	// Pacific islands
	"NTMD", "NTGJ", "PMDY", "NTTO", "PKMA", "PLCH", "SCIP", "ANG", "PWAK",
	"PKWA", "PGSN", "PGWT", "PTKK", "C23", "PGRO", "PTRO", "NGTA", "PTPN",
	"NTAA", "PKMJ", "NTTG", "PCIS", "ANYN", "PHNG", "AYKT", "AYGA", "NCAI",
	"RPLB", "PADK", "PASY", "PAAT",

	// Atlantic islands
	"LPPI", "LPPD", "GCLA", "LPAZ", "LPHR", "GVSV", "SBFN", "GCXO", "GCRR",
	"GCTS", "GCLP", "LPMA", "LPLA", "LPPS",

	// Indian Ocean
	"FMEE", "FMNM", "FM43", "FMEP", "FJDG",

	// Caribbean
	"TNCC", "TGPY",

	// other
	"SJDB", // duplicate record, not in South America
	"CYLT", // military only, gravel runway
	"ENSB",
}
