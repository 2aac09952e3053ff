package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Mode           string // "run" or "serve"
	Port           string
	HTTPBindAddr   string
	Environment    string
	LoggingConfig  LoggingConfig
	DataConfig     DataConfig
	SearchConfig   SearchConfig
	WorkerConfig   WorkerConfig
	RedisConfig    RedisConfig
	PostgresConfig PostgresConfig
	AuthConfig     AuthConfig
	NotifyConfig   NotifyConfig
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// DataConfig locates the airport data set and the distance cache.
type DataConfig struct {
	DataPath            string
	DistCacheFile       string
	RebuildDistCache    bool
	PlanesFile          string
	GeoOverridesEnabled bool
	ResultsFile         string
}

// SearchConfig is the full set of options honored by the search core. It is
// built once and handed by value to each component.
type SearchConfig struct {
	MaxSearches         int
	RoutingOverheadPct  float64
	StartAirportIDs     []int
	StartAirportCodes   []string
	StartContinentCodes []string

	WindCorrectionEnabled bool
	WindCorrectionMph     float64

	OptimizationEnabled     bool
	OptimizationRadiusMi    float64
	OptimizationMaxSearches int
	OptimizationCandidates  int

	GeoHashResolutionDeg float64
	GeoHashShuffles      int
	NumBestRoutes        int

	DuplicatePenaltyMi float64
	MaxPickAttempts    int
	ProgressInterval   time.Duration
	Seed               int64
	Workers            int
	SegmentMemoSize    int
}

// ContinentCodes are the codes used in the airport data set.
var ContinentCodes = []string{"AF", "AN", "AS", "EU", "NA", "OC", "SA"}

// WorkerConfig bounds background runs in serve mode.
type WorkerConfig struct {
	MaxConcurrentRuns int
	RunTimeout        time.Duration
	ShutdownTimeout   time.Duration
	// RetainRuns is how many finished runs stay in memory. Older ones are
	// served from the result cache.
	RetainRuns int
}

// AuthConfig guards the endpoints that start and cancel runs.
type AuthConfig struct {
	Enabled  bool
	Token    string
	Username string
	Password string
}

// NotifyConfig points run notifications at an ntfy topic.
type NotifyConfig struct {
	Enabled   bool
	ServerURL string
	Topic     string
	Username  string
	Password  string
	MinGap    time.Duration
}

// RedisConfig holds Redis connection configuration for the result cache.
type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         string
	Password     string
	DB           int
	ResultPrefix string
	ResultTTL    time.Duration
}

// PostgresConfig holds PostgreSQL connection configuration for run history.
type PostgresConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DefaultSearchConfig returns the search defaults.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		MaxSearches:             10000000,
		RoutingOverheadPct:      10,
		StartContinentCodes:     []string{"AN"},
		WindCorrectionEnabled:   true,
		WindCorrectionMph:       50,
		OptimizationEnabled:     true,
		OptimizationRadiusMi:    200,
		OptimizationMaxSearches: 250000,
		OptimizationCandidates:  12,
		GeoHashResolutionDeg:    5.0,
		GeoHashShuffles:         10,
		NumBestRoutes:           20,
		DuplicatePenaltyMi:      9999.9,
		MaxPickAttempts:         10,
		ProgressInterval:        5 * time.Second,
		Workers:                 1,
		SegmentMemoSize:         1 << 20,
	}
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	dataPath := getEnv("DATA_PATH", "data/")
	geoOverrides, _ := strconv.ParseBool(getEnv("GEO_OVERRIDES_ENABLED", "true"))
	rebuild, _ := strconv.ParseBool(getEnv("REBUILD_DIST_CACHE", "false"))

	dataConfig := DataConfig{
		DataPath:            dataPath,
		DistCacheFile:       getEnv("DIST_CACHE_FILE", filepath.Join(dataPath, "dist_cache.dat")),
		RebuildDistCache:    rebuild,
		PlanesFile:          getEnv("PLANES_FILE", ""),
		GeoOverridesEnabled: geoOverrides,
		ResultsFile:         getEnv("RESULTS_FILE", "results.json"),
	}

	searchConfig, err := loadSearchConfig()
	if err != nil {
		return nil, err
	}

	maxRuns, _ := strconv.Atoi(getEnv("WORKER_MAX_CONCURRENT_RUNS", "2"))
	runTimeout, _ := time.ParseDuration(getEnv("WORKER_RUN_TIMEOUT", "1h"))
	shutdownTimeout, _ := time.ParseDuration(getEnv("WORKER_SHUTDOWN_TIMEOUT", "30s"))
	retainRuns, _ := strconv.Atoi(getEnv("WORKER_RETAIN_RUNS", "100"))
	workerConfig := WorkerConfig{
		MaxConcurrentRuns: maxRuns,
		RunTimeout:        runTimeout,
		ShutdownTimeout:   shutdownTimeout,
		RetainRuns:        retainRuns,
	}

	redisEnabled, _ := strconv.ParseBool(getEnv("REDIS_ENABLED", "false"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	resultTTL, err := time.ParseDuration(getEnv("REDIS_RESULT_TTL", "168h"))
	if err != nil {
		resultTTL = 7 * 24 * time.Hour
	}
	redisConfig := RedisConfig{
		Enabled:      redisEnabled,
		Host:         getEnv("REDIS_HOST", "redis"),
		Port:         getEnv("REDIS_PORT", "6379"),
		Password:     getEnv("REDIS_PASSWORD", ""),
		DB:           redisDB,
		ResultPrefix: getEnv("REDIS_RESULT_PREFIX", "sevencontinents"),
		ResultTTL:    resultTTL,
	}

	pgEnabled, _ := strconv.ParseBool(getEnv("DB_ENABLED", "false"))
	postgresConfig := PostgresConfig{
		Enabled:  pgEnabled,
		Host:     getEnv("DB_HOST", "postgres"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "flights"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "sevencontinents"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	authEnabled, _ := strconv.ParseBool(getEnv("API_AUTH_ENABLED", "false"))
	authConfig := AuthConfig{
		Enabled:  authEnabled,
		Token:    getEnv("API_AUTH_TOKEN", ""),
		Username: getEnv("API_AUTH_USERNAME", ""),
		Password: getEnv("API_AUTH_PASSWORD", ""),
	}

	ntfyEnabled, _ := strconv.ParseBool(getEnv("NTFY_ENABLED", "false"))
	ntfyGap, _ := time.ParseDuration(getEnv("NTFY_MIN_GAP", "0s"))
	notifyConfig := NotifyConfig{
		Enabled:   ntfyEnabled,
		ServerURL: getEnv("NTFY_SERVER_URL", "https://ntfy.sh"),
		Topic:     getEnv("NTFY_TOPIC", ""),
		Username:  getEnv("NTFY_USERNAME", ""),
		Password:  getEnv("NTFY_PASSWORD", ""),
		MinGap:    ntfyGap,
	}

	return &Config{
		Mode:         strings.ToLower(getEnv("MODE", "run")),
		Port:         getEnv("PORT", "8080"),
		HTTPBindAddr: getEnv("HTTP_BIND_ADDR", ""),
		Environment:  getEnv("ENVIRONMENT", "development"),
		LoggingConfig: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		DataConfig:     dataConfig,
		SearchConfig:   searchConfig,
		WorkerConfig:   workerConfig,
		RedisConfig:    redisConfig,
		PostgresConfig: postgresConfig,
		AuthConfig:     authConfig,
		NotifyConfig:   notifyConfig,
	}, nil
}

func loadSearchConfig() (SearchConfig, error) {
	d := DefaultSearchConfig()
	var errs []error

	intVar := func(key string, def int) int {
		v, err := strconv.Atoi(getEnv(key, strconv.Itoa(def)))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return v
	}
	floatVar := func(key string, def float64) float64 {
		v, err := strconv.ParseFloat(getEnv(key, strconv.FormatFloat(def, 'f', -1, 64)), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return v
	}
	boolVar := func(key string, def bool) bool {
		v, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(def)))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return v
	}

	cfg := SearchConfig{
		MaxSearches:             intVar("MAX_SEARCHES", d.MaxSearches),
		RoutingOverheadPct:      floatVar("ROUTING_OVERHEAD_PCT", d.RoutingOverheadPct),
		StartAirportCodes:       splitList(getEnv("START_AIRPORT_CODES", ""), false),
		StartContinentCodes:     splitList(getEnv("START_CONTINENT_CODES", strings.Join(d.StartContinentCodes, ",")), true),
		WindCorrectionEnabled:   boolVar("WIND_CORRECTION_ENABLED", d.WindCorrectionEnabled),
		WindCorrectionMph:       floatVar("WIND_CORRECTION_MPH", d.WindCorrectionMph),
		OptimizationEnabled:     boolVar("OPTIMIZATION_ENABLED", d.OptimizationEnabled),
		OptimizationRadiusMi:    floatVar("OPTIMIZATION_RADIUS_MI", d.OptimizationRadiusMi),
		OptimizationMaxSearches: intVar("OPTIMIZATION_MAX_SEARCHES", d.OptimizationMaxSearches),
		OptimizationCandidates:  intVar("OPTIMIZATION_CANDIDATES", d.OptimizationCandidates),
		GeoHashResolutionDeg:    floatVar("GEO_HASH_RESOLUTION_DEG", d.GeoHashResolutionDeg),
		GeoHashShuffles:         intVar("GEO_HASH_SHUFFLES", d.GeoHashShuffles),
		NumBestRoutes:           intVar("NUM_BEST_ROUTES", d.NumBestRoutes),
		DuplicatePenaltyMi:      floatVar("DUPLICATE_PENALTY_MI", d.DuplicatePenaltyMi),
		MaxPickAttempts:         intVar("MAX_PICK_ATTEMPTS", d.MaxPickAttempts),
		Workers:                 intVar("SEARCH_WORKERS", d.Workers),
		SegmentMemoSize:         intVar("SEGMENT_MEMO_SIZE", d.SegmentMemoSize),
	}

	seed, err := strconv.ParseInt(getEnv("SEARCH_SEED", "0"), 10, 64)
	if err != nil {
		errs = append(errs, fmt.Errorf("SEARCH_SEED: %w", err))
	}
	cfg.Seed = seed

	interval, err := time.ParseDuration(getEnv("PROGRESS_INTERVAL", d.ProgressInterval.String()))
	if err != nil {
		errs = append(errs, fmt.Errorf("PROGRESS_INTERVAL: %w", err))
		interval = d.ProgressInterval
	}
	cfg.ProgressInterval = interval

	for _, s := range splitList(getEnv("START_AIRPORT_IDS", ""), false) {
		id, err := strconv.Atoi(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("START_AIRPORT_IDS: %w", err))
			continue
		}
		cfg.StartAirportIDs = append(cfg.StartAirportIDs, id)
	}

	if len(errs) > 0 {
		return SearchConfig{}, errors.Join(errs...)
	}
	if err := cfg.Validate(); err != nil {
		return SearchConfig{}, err
	}
	return cfg, nil
}

// Validate reports settings the search core cannot run with.
func (c SearchConfig) Validate() error {
	var errs []error
	if c.MaxSearches < 0 {
		errs = append(errs, errors.New("max searches must not be negative"))
	}
	if c.NumBestRoutes < 1 {
		errs = append(errs, errors.New("number of best routes must be at least 1"))
	}
	if c.MaxPickAttempts < 1 {
		errs = append(errs, errors.New("max pick attempts must be at least 1"))
	}
	if c.Workers < 1 {
		errs = append(errs, errors.New("search workers must be at least 1"))
	}
	if c.GeoHashResolutionDeg < 0 {
		errs = append(errs, errors.New("geo hash resolution must not be negative"))
	}
	if c.GeoHashShuffles < 0 {
		errs = append(errs, errors.New("geo hash shuffles must not be negative"))
	}
	if c.RoutingOverheadPct <= -100 {
		errs = append(errs, errors.New("routing overhead must be greater than -100%"))
	}
	if c.DuplicatePenaltyMi <= 0 {
		errs = append(errs, errors.New("duplicate waypoint penalty must be positive"))
	}
	if c.WindCorrectionMph < 0 {
		errs = append(errs, errors.New("wind correction must not be negative"))
	}
	if c.OptimizationCandidates < 1 {
		errs = append(errs, errors.New("optimization candidates must be at least 1"))
	}
	for _, code := range c.StartContinentCodes {
		if !slices.Contains(ContinentCodes, code) {
			errs = append(errs, fmt.Errorf("unknown continent code %q", code))
		}
	}
	if len(c.StartAirportIDs) > 7 || len(c.StartAirportCodes) > 7 {
		errs = append(errs, errors.New("at most 7 start airports may be pinned"))
	}
	return errors.Join(errs...)
}

// PinnedAirports returns the number of leading waypoints fixed by configuration.
func (c SearchConfig) PinnedAirports() int {
	return len(c.StartAirportIDs)
}

// WithStartAirportIDs returns a copy with the pinned airport ids replaced.
func (c SearchConfig) WithStartAirportIDs(ids []int) SearchConfig {
	c.StartAirportIDs = append([]int(nil), ids...)
	return c
}

// LoadTestConfig loads test configuration
func LoadTestConfig() *Config {
	search := DefaultSearchConfig()
	search.MaxSearches = 1000
	search.OptimizationMaxSearches = 100
	search.Seed = 1
	return &Config{
		Mode:          "run",
		Environment:   "test",
		LoggingConfig: LoggingConfig{Level: "error", Format: "text"},
		DataConfig: DataConfig{
			DataPath:            getEnv("DATA_PATH", "testdata/"),
			DistCacheFile:       filepath.Join(os.TempDir(), "sevencontinents_test_dist_cache.dat"),
			RebuildDistCache:    true,
			GeoOverridesEnabled: true,
		},
		SearchConfig: search,
		WorkerConfig: WorkerConfig{MaxConcurrentRuns: 1, RunTimeout: time.Minute, ShutdownTimeout: 5 * time.Second},
		RedisConfig: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			ResultPrefix: "sevencontinents_test",
			ResultTTL:    time.Hour,
		},
		PostgresConfig: PostgresConfig{
			Host:    getEnv("DB_HOST", "localhost"),
			Port:    getEnv("DB_PORT", "5432"),
			User:    getEnv("DB_USER", "flights"),
			DBName:  getEnv("DB_NAME_TEST", "sevencontinents_test"),
			SSLMode: "disable",
		},
	}
}

// splitList splits a comma separated value, trimming blanks. upper uppercases
// each item.
func splitList(s string, upper bool) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if upper {
			item = strings.ToUpper(item)
		}
		out = append(out, item)
	}
	return out
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if len(strings.TrimSpace(value)) == 0 {
		return defaultValue
	}
	return strings.TrimSpace(value)
}
