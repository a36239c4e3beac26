package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/andryanduta/predikta/internal/platform/logging"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv         string
	ServiceName    string
	ServiceVersion string

	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	CORSAllowedOrigins []string

	FootballDataBaseURL              string
	FootballDataToken                string
	FootballDataTimeout              time.Duration
	FootballDataCircuitEnabled       bool
	FootballDataCircuitFailureCount  int
	FootballDataCircuitOpenTimeout   time.Duration
	FootballDataCircuitHalfOpenMaxRq int

	TrackedCompetitions []string
	LookaheadDays       int
	PredictionWorkers   int

	TeamStatsCacheTTL time.Duration
	FixturesCacheTTL  time.Duration

	CacheSnapshotEnabled bool
	CacheSnapshotPath    string

	RequestDelay        time.Duration
	MaxRetryAttempts    int
	RetryBaseWait       time.Duration
	RetryMaxJitter      time.Duration
	MaxRequestDelay     time.Duration
	RateLimitAdaptAfter int
	RequestDelayStep    time.Duration

	RefreshInterval time.Duration

	UptraceEnabled bool
	UptraceDSN     string

	PyroscopeEnabled       bool
	PyroscopeServerAddress string
	PyroscopeAppName       string
	PyroscopeAuthToken     string

	LogLevel logging.Level
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	readTimeout, err := time.ParseDuration(getEnv("READ_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := time.ParseDuration(getEnv("WRITE_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse WRITE_TIMEOUT: %w", err)
	}

	footballDataTimeout, err := time.ParseDuration(getEnv("FOOTBALL_DATA_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FOOTBALL_DATA_TIMEOUT: %w", err)
	}
	circuitEnabled, err := strconv.ParseBool(getEnv("FOOTBALL_DATA_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FOOTBALL_DATA_CIRCUIT_ENABLED: %w", err)
	}
	circuitFailureCount, err := getEnvAsInt("FOOTBALL_DATA_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse FOOTBALL_DATA_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	circuitOpenTimeout, err := time.ParseDuration(getEnv("FOOTBALL_DATA_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FOOTBALL_DATA_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	circuitHalfOpenMaxReq, err := getEnvAsInt("FOOTBALL_DATA_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse FOOTBALL_DATA_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}

	trackedCompetitions := splitCSV(getEnv("TRACKED_COMPETITIONS",
		"Premier League,La Liga,Serie A,Bundesliga,Ligue 1"))
	if len(trackedCompetitions) == 0 {
		return Config{}, fmt.Errorf("TRACKED_COMPETITIONS must name at least one competition")
	}

	lookaheadDays, err := getEnvAsInt("LOOKAHEAD_DAYS", 7)
	if err != nil {
		return Config{}, fmt.Errorf("parse LOOKAHEAD_DAYS: %w", err)
	}
	if lookaheadDays < 1 || lookaheadDays > 30 {
		return Config{}, fmt.Errorf("LOOKAHEAD_DAYS must be between 1 and 30, got %d", lookaheadDays)
	}
	predictionWorkers, err := getEnvAsInt("PREDICTION_WORKERS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse PREDICTION_WORKERS: %w", err)
	}

	teamStatsCacheTTL, err := time.ParseDuration(getEnv("TEAM_STATS_CACHE_TTL", "90m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse TEAM_STATS_CACHE_TTL: %w", err)
	}
	fixturesCacheTTL, err := time.ParseDuration(getEnv("FIXTURES_CACHE_TTL", "10m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse FIXTURES_CACHE_TTL: %w", err)
	}

	cacheSnapshotEnabled, err := strconv.ParseBool(getEnv("CACHE_SNAPSHOT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CACHE_SNAPSHOT_ENABLED: %w", err)
	}

	requestDelay, err := time.ParseDuration(getEnv("REQUEST_DELAY", "2s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse REQUEST_DELAY: %w", err)
	}
	maxRetryAttempts, err := getEnvAsInt("MAX_RETRY_ATTEMPTS", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_RETRY_ATTEMPTS: %w", err)
	}
	retryBaseWait, err := time.ParseDuration(getEnv("RETRY_BASE_WAIT", "1500ms"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RETRY_BASE_WAIT: %w", err)
	}
	retryMaxJitter, err := time.ParseDuration(getEnv("RETRY_MAX_JITTER", "1s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse RETRY_MAX_JITTER: %w", err)
	}
	maxRequestDelay, err := time.ParseDuration(getEnv("MAX_REQUEST_DELAY", "5s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_REQUEST_DELAY: %w", err)
	}
	rateLimitAdaptAfter, err := getEnvAsInt("RATE_LIMIT_ADAPT_AFTER", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse RATE_LIMIT_ADAPT_AFTER: %w", err)
	}
	requestDelayStep, err := time.ParseDuration(getEnv("REQUEST_DELAY_STEP", "500ms"))
	if err != nil {
		return Config{}, fmt.Errorf("parse REQUEST_DELAY_STEP: %w", err)
	}

	refreshInterval, err := time.ParseDuration(getEnv("REFRESH_INTERVAL", "0s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse REFRESH_INTERVAL: %w", err)
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}

	serviceName := getEnv("SERVICE_NAME", "predikta")

	return Config{
		AppEnv:         appEnv,
		ServiceName:    serviceName,
		ServiceVersion: getEnv("SERVICE_VERSION", "dev"),

		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),

		FootballDataBaseURL:              getEnv("FOOTBALL_DATA_BASE_URL", "https://api.football-data.org/v4"),
		FootballDataToken:                strings.TrimSpace(getEnv("FOOTBALL_DATA_TOKEN", "")),
		FootballDataTimeout:              footballDataTimeout,
		FootballDataCircuitEnabled:       circuitEnabled,
		FootballDataCircuitFailureCount:  circuitFailureCount,
		FootballDataCircuitOpenTimeout:   circuitOpenTimeout,
		FootballDataCircuitHalfOpenMaxRq: circuitHalfOpenMaxReq,

		TrackedCompetitions: trackedCompetitions,
		LookaheadDays:       lookaheadDays,
		PredictionWorkers:   predictionWorkers,

		TeamStatsCacheTTL: teamStatsCacheTTL,
		FixturesCacheTTL:  fixturesCacheTTL,

		CacheSnapshotEnabled: cacheSnapshotEnabled,
		CacheSnapshotPath:    getEnv("CACHE_SNAPSHOT_PATH", serviceName+"-cache.db"),

		RequestDelay:        requestDelay,
		MaxRetryAttempts:    maxRetryAttempts,
		RetryBaseWait:       retryBaseWait,
		RetryMaxJitter:      retryMaxJitter,
		MaxRequestDelay:     maxRequestDelay,
		RateLimitAdaptAfter: rateLimitAdaptAfter,
		RequestDelayStep:    requestDelayStep,

		RefreshInterval: refreshInterval,

		UptraceEnabled: uptraceEnabled,
		UptraceDSN:     uptraceDSN,

		PyroscopeEnabled:       pyroscopeEnabled,
		PyroscopeServerAddress: pyroscopeServerAddress,
		PyroscopeAppName:       getEnv("PYROSCOPE_APP_NAME", serviceName),
		PyroscopeAuthToken:     getEnv("PYROSCOPE_AUTH_TOKEN", ""),

		LogLevel: parseLogLevel(getEnv("LOG_LEVEL", "info")),
	}, nil
}

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}
