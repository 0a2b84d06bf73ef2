package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type RatingProvider = string

const (
	RatingProviderOff       RatingProvider = "off"
	RatingProviderHttp      RatingProvider = "http"
	RatingProviderSql       RatingProvider = "sql"
	RatingProviderSynthetic RatingProvider = "synthetic"
)

const envPrefix = "AUTOHOST_"

type Info struct {
	InstanceName string
	BridgePort   uint
	StatusAddr   string
	LogLevel     int
	LogPath      string

	BalanceEnabled bool
	ExcludeHost    bool
	ShuffleTeams   bool
	AutoStart      time.Duration
	StaleAfter     time.Duration
	DefaultRating  float64

	MinGames  int
	MinRating float64
	MinRank   int
	MinWins   int

	RatingProvider    RatingProvider
	RatingApiRoot     string
	RatingApiKey      string `json:"-"`
	RatingDatabaseUrl string `json:"-"`
	RatingCacheTTL    time.Duration
	RatingTimeout     time.Duration

	MapCatalogUrl     string
	MapCatalogPath    string
	MapCatalogRefresh time.Duration
}

// NewInfoFromFlags loads an optional .env file and parses the process command line.
// Every flag falls back to its AUTOHOST_* environment variable.
func NewInfoFromFlags() *Info {
	_ = godotenv.Load()

	info, err := NewInfoFromArgs(os.Args[1:])
	if err != nil {
		fmt.Printf("Failed to parse command line arguments: %v\n", err)
		os.Exit(2)
	}
	return info
}

func NewInfoFromArgs(args []string) (*Info, error) {
	fs := flag.NewFlagSet("autohost", flag.ContinueOnError)

	instanceName := fs.String(
		"instance-name", getEnv("INSTANCE_NAME", "default"), "Name of this host instance, used for log files")
	bridgePort := fs.Uint(
		"bridge-port", uint(getEnvInt("BRIDGE_PORT", 7410)), "The port the game client bridge connects to")
	statusAddr := fs.String(
		"status-addr", getEnv("STATUS_ADDR", "127.0.0.1:7411"), "Listen address of the status API, empty disables it")
	logLevel := fs.Int(
		"log-level", getEnvInt("LOG_LEVEL", 0), "Log level: -1 - Debug, 0 - Info, 1 - Warn, 2 - Error")
	logPath := fs.String(
		"log-path", getEnv("LOG_PATH", ""), "Directory for log files, defaults to 'logs' in the working directory")

	balanceEnabled := fs.Bool(
		"balance", getEnvBool("BALANCE", true), "Automatically balance teams before starting")
	excludeHost := fs.Bool(
		"exclude-host", getEnvBool("EXCLUDE_HOST", false), "Never swap the host out of its team")
	shuffleTeams := fs.Bool(
		"shuffle", getEnvBool("SHUFFLE", false), "Shuffle teams randomly instead of balancing by rating")
	autoStart := fs.Duration(
		"auto-start", getEnvDuration("AUTO_START", 0), "Start countdown once the lobby is ready and full, 0 disables")
	staleAfter := fs.Duration(
		"stale-after", getEnvDuration("STALE_AFTER", 15*time.Minute), "Lobby is considered stale after this long without changes")
	defaultRating := fs.Float64(
		"default-rating", getEnvFloat("DEFAULT_RATING", 1200), "Rating used for players without a record")

	minGames := fs.Int(
		"min-games", getEnvInt("MIN_GAMES", 0), "Minimum games played to stay in the lobby, 0 disables")
	minRating := fs.Float64(
		"min-rating", getEnvFloat("MIN_RATING", 0), "Minimum rating to stay in the lobby, 0 disables")
	minRank := fs.Int(
		"min-rank", getEnvInt("MIN_RANK", 0), "Worst allowed ladder rank, 0 disables")
	minWins := fs.Int(
		"min-wins", getEnvInt("MIN_WINS", 0), "Minimum wins to stay in the lobby, 0 disables")

	ratingProvider := fs.String(
		"rating-provider", getEnv("RATING_PROVIDER", RatingProviderOff), "Rating provider: off, http, sql, synthetic")
	ratingApiRoot := fs.String(
		"rating-api-root", getEnv("RATING_API_ROOT", ""), "Root url of the rating HTTP api")
	ratingApiKey := fs.String(
		"rating-api-key", getEnv("RATING_API_KEY", ""), "Optional bearer token for the rating HTTP api")
	ratingDatabaseUrl := fs.String(
		"rating-database-url", getEnv("RATING_DATABASE_URL", ""), "Postgres connection string for the sql rating provider")
	ratingCacheTTL := fs.Duration(
		"rating-cache-ttl", getEnvDuration("RATING_CACHE_TTL", 10*time.Minute), "How long fetched ratings are reused")
	ratingTimeout := fs.Duration(
		"rating-timeout", getEnvDuration("RATING_TIMEOUT", 10*time.Second), "Timeout of a single rating lookup")

	mapCatalogUrl := fs.String(
		"map-catalog-url", getEnv("MAP_CATALOG_URL", ""), "Url of the map name to rating key table, empty disables refresh")
	mapCatalogPath := fs.String(
		"map-catalog-path", getEnv("MAP_CATALOG_PATH", ""), "Cache file of the map table, defaults to the user cache dir")
	mapCatalogRefresh := fs.Duration(
		"map-catalog-refresh", getEnvDuration("MAP_CATALOG_REFRESH", 24*time.Hour), "Refresh interval of the map table")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return &Info{
		InstanceName:      *instanceName,
		BridgePort:        *bridgePort,
		StatusAddr:        *statusAddr,
		LogLevel:          *logLevel,
		LogPath:           *logPath,
		BalanceEnabled:    *balanceEnabled,
		ExcludeHost:       *excludeHost,
		ShuffleTeams:      *shuffleTeams,
		AutoStart:         *autoStart,
		StaleAfter:        *staleAfter,
		DefaultRating:     *defaultRating,
		MinGames:          *minGames,
		MinRating:         *minRating,
		MinRank:           *minRank,
		MinWins:           *minWins,
		RatingProvider:    strings.ToLower(strings.TrimSpace(*ratingProvider)),
		RatingApiRoot:     strings.TrimRight(strings.TrimSpace(*ratingApiRoot), "/"),
		RatingApiKey:      *ratingApiKey,
		RatingDatabaseUrl: *ratingDatabaseUrl,
		RatingCacheTTL:    *ratingCacheTTL,
		RatingTimeout:     *ratingTimeout,
		MapCatalogUrl:     strings.TrimSpace(*mapCatalogUrl),
		MapCatalogPath:    *mapCatalogPath,
		MapCatalogRefresh: *mapCatalogRefresh,
	}, nil
}

// Validate reports the first setting the process cannot run with.
// Rating provider problems are not reported here, see RatingProviderIssue.
func (c *Info) Validate() error {
	if c.BridgePort == 0 || c.BridgePort > 65535 {
		return fmt.Errorf("--bridge-port is required and must be a valid port")
	}

	if c.StaleAfter <= 0 {
		return fmt.Errorf("--stale-after must be positive")
	}

	if c.AutoStart < 0 {
		return fmt.Errorf("--auto-start cannot be negative")
	}

	if c.MinGames < 0 || c.MinRank < 0 || c.MinWins < 0 || c.MinRating < 0 {
		return fmt.Errorf("minimum requirements cannot be negative")
	}

	if c.MapCatalogUrl != "" && c.MapCatalogRefresh <= 0 {
		return fmt.Errorf("--map-catalog-refresh must be positive when --map-catalog-url is set")
	}

	return nil
}

var (
	ErrUnknownRatingProvider = errors.New("unknown rating provider")
	ErrMissingRatingApiRoot  = errors.New("--rating-api-root is required for the http rating provider")
	ErrMissingDatabaseUrl    = errors.New("--rating-database-url is required for the sql rating provider")
)

// RatingProviderIssue returns why the selected rating provider cannot be used.
// A non-nil result means the rating subsystem runs as "off".
func (c *Info) RatingProviderIssue() error {
	switch c.RatingProvider {
	case RatingProviderOff, RatingProviderSynthetic:
		return nil
	case RatingProviderHttp:
		if c.RatingApiRoot == "" {
			return ErrMissingRatingApiRoot
		}
		return nil
	case RatingProviderSql:
		if c.RatingDatabaseUrl == "" {
			return ErrMissingDatabaseUrl
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRatingProvider, c.RatingProvider)
	}
}

func (c *Info) HasMinimumRequirements() bool {
	return c.MinGames > 0 || c.MinRating > 0 || c.MinRank > 0 || c.MinWins > 0
}

// Redacted returns a view safe for logging.
func (c *Info) Redacted() map[string]any {
	return map[string]any{
		"instanceName":         c.InstanceName,
		"bridgePort":           c.BridgePort,
		"statusAddr":           c.StatusAddr,
		"logLevel":             c.LogLevel,
		"balanceEnabled":       c.BalanceEnabled,
		"excludeHost":          c.ExcludeHost,
		"shuffleTeams":         c.ShuffleTeams,
		"autoStart":            c.AutoStart.String(),
		"staleAfter":           c.StaleAfter.String(),
		"minGames":             c.MinGames,
		"minRating":            c.MinRating,
		"minRank":              c.MinRank,
		"minWins":              c.MinWins,
		"ratingProvider":       c.RatingProvider,
		"ratingApiRoot":        c.RatingApiRoot,
		"ratingApiKeySet":      c.RatingApiKey != "",
		"ratingDatabaseUrlSet": c.RatingDatabaseUrl != "",
		"mapCatalogUrl":        c.MapCatalogUrl,
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(envPrefix + key); v != "" {
		iv, err := strconv.Atoi(v)
		if err == nil {
			return iv
		}
		fmt.Printf("invalid int for %s%s: %s\n", envPrefix, key, v)
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(envPrefix + key); v != "" {
		fv, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return fv
		}
		fmt.Printf("invalid float for %s%s: %s\n", envPrefix, key, v)
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(envPrefix + key); v != "" {
		bv, err := strconv.ParseBool(v)
		if err == nil {
			return bv
		}
		fmt.Printf("invalid bool for %s%s: %s\n", envPrefix, key, v)
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(envPrefix + key); v != "" {
		dv, err := time.ParseDuration(v)
		if err == nil {
			return dv
		}
		fmt.Printf("invalid duration for %s%s: %s\n", envPrefix, key, v)
	}
	return def
}
