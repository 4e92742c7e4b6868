// Package constants provides shared constants for the gift card basket engine.
package constants

// DateLayout is the format expected for promo dates in catalogues and is also
// the output date format for calendar days.
const DateLayout = "2006-01-02"

// HistoryTimestampLayout names history and session files.
const HistoryTimestampLayout = "20060102150405.000"

// Engine defaults
const (
	// DefaultFixedCost is the overhead charged against every basket
	DefaultFixedCost = 0.50

	// DefaultCurrencyRate converts basket waste into the profit currency
	DefaultCurrencyRate = 0.183

	// DefaultMinItems is the minimum number of items in a basket
	DefaultMinItems = 1

	// DefaultMaxItems caps the number of items in a basket and the backfill recursion depth
	DefaultMaxItems = 6

	// DefaultMinFillFraction is the share of the denomination a basket must consume
	DefaultMinFillFraction = 0.97

	// DefaultExtraBuyLimitFraction bounds how far past the required count an item may be bought
	DefaultExtraBuyLimitFraction = 1.5

	// DefaultWasteThreshold gates the waste-minimising strategy
	DefaultWasteThreshold = 1.0

	// DefaultBackfillFanout caps the branches explored per backfill search depth
	DefaultBackfillFanout = 12
)

// DefaultDenominations returns the default card face values.
func DefaultDenominations() []int {
	return []int{10, 30, 50, 100}
}

// Selector defaults
const (
	PolicyUCB1          = "ucb1"
	PolicyEpsilonGreedy = "epsilon-greedy"

	DefaultIterations       = 200
	DefaultUCBC             = 2.0
	DefaultUnseenBonus      = 1e6
	DefaultExplorationNoise = 10.0
	DefaultEpsilonStart     = 0.3
	DefaultEpsilonMin       = 0.02
	DefaultEpsilonDecay     = 0.99
	DefaultRollingWindow    = 64
	DefaultTrimEvery        = 25

	// EvolvedStrategy is the statistics bucket for refiner offspring
	EvolvedStrategy = "EVOLVED"
)

// Refiner defaults
const (
	DefaultEliteK                  = 10
	DefaultGenerations             = 5
	DefaultMutantsPerElite         = 3
	DefaultCrossoversPerGeneration = 10
)

// Schedule defaults
const (
	DefaultWorkers    = 3
	DefaultDailyLimit = 150
)

// Storage constants
const (
	StorageBackendFile   = "file"
	StorageBackendRedis  = "redis"
	StorageBackendMemory = "memory"

	DefaultStatsPath     = "history/strategy_stats.json"
	DefaultHistoryDir    = "history"
	DefaultRedisAddr     = "localhost:6379"
	DefaultRedisKey      = "giftcard:strategy-stats"
	DefaultResultHistory = 100
)

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatJSON is the JSON output format
	OutputFormatJSON = "json"
)

// Configuration file constants
const (
	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix prefixes environment overrides, e.g. GIFTCARD_ENGINE_MAXITEMS
	EnvPrefix = "GIFTCARD"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum job request body size (256 KB)
	DefaultMaxUploadSizeBytes int64 = 256 * 1024

	// DefaultRateLimit is the number of job submissions admitted per second
	DefaultRateLimit = 5.0

	// DefaultRateBurst is the job submission burst size
	DefaultRateBurst = 10

	// DefaultTrainerIntervalSeconds is the pause between continuous trainer runs
	DefaultTrainerIntervalSeconds = 2

	// DefaultCatalogueCacheMinutes is how long a parsed catalogue stays cached
	DefaultCatalogueCacheMinutes = 5
)

// Comparison constants
const (
	// BudgetEpsilon absorbs float drift when comparing sums against a denomination
	BudgetEpsilon = 1e-9

	// CurrencyTolerance is the tolerance for currency comparisons (1 cent)
	CurrencyTolerance = 0.01
)
