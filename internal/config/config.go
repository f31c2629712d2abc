package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"valorant-live-tracker/internal/constants"
	"valorant-live-tracker/internal/rank"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	Region          string
	Shard           string
	LockfilePath    string
	DBPath          string
	StatusPort      string
	PushURL         string
	LogLevel        string
	ContentLanguage string

	CacheTTL         time.Duration
	PollInterval     time.Duration
	ErrorBackoff     time.Duration
	RankCallDelay    time.Duration
	HistoryCallDelay time.Duration

	StatsWindow        int
	HistoryDepth       int
	RankMinSampleGames int
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		Region:          strings.ToLower(getEnv("REGION", "")),
		Shard:           strings.ToLower(getEnv("SHARD", "")),
		LockfilePath:    getEnv("LOCKFILE_PATH", ""),
		DBPath:          getEnv("DB_PATH", "tracker.db"),
		StatusPort:      getEnv("STATUS_PORT", "8080"),
		PushURL:         strings.TrimRight(getEnv("PUSH_URL", ""), "/"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ContentLanguage: getEnv("CONTENT_LANGUAGE", "en-US"),
	}

	var err error
	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"CACHE_TTL", constants.DefaultCacheTTL, &cfg.CacheTTL},
		{"POLL_INTERVAL", constants.PollInterval, &cfg.PollInterval},
		{"ERROR_BACKOFF", constants.ErrorBackoff, &cfg.ErrorBackoff},
		{"RANK_CALL_DELAY", constants.RankCallDelay, &cfg.RankCallDelay},
		{"HISTORY_CALL_DELAY", constants.HistoryCallDelay, &cfg.HistoryCallDelay},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, d.fallback); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		key      string
		fallback int
		dst      *int
	}{
		{"STATS_WINDOW", constants.StatsWindow, &cfg.StatsWindow},
		{"HISTORY_DEPTH", constants.HistoryDepth, &cfg.HistoryDepth},
		{"RANK_MIN_SAMPLE_GAMES", rank.DefaultMinSampleGames, &cfg.RankMinSampleGames},
	}
	for _, i := range ints {
		if *i.dst, err = getInt(i.key, i.fallback); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("region", cfg.Region).
		Str("shard", cfg.Shard).
		Str("db_path", cfg.DBPath).
		Str("status_port", cfg.StatusPort).
		Str("push_url", cfg.PushURL).
		Str("log_level", cfg.LogLevel).
		Dur("cache_ttl", cfg.CacheTTL).
		Dur("poll_interval", cfg.PollInterval).
		Int("stats_window", cfg.StatsWindow).
		Msg("configuration loaded")

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Region == "" {
		return fmt.Errorf("REGION is required")
	}
	if c.Shard == "" {
		c.Shard = c.Region
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.ErrorBackoff <= 0 {
		return fmt.Errorf("ERROR_BACKOFF must be positive")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.StatsWindow <= 0 {
		return fmt.Errorf("STATS_WINDOW must be positive")
	}
	if c.HistoryDepth < c.StatsWindow {
		return fmt.Errorf("HISTORY_DEPTH (%d) must be at least STATS_WINDOW (%d)", c.HistoryDepth, c.StatsWindow)
	}
	if c.RankMinSampleGames < 0 {
		return fmt.Errorf("RANK_MIN_SAMPLE_GAMES must not be negative")
	}
	return nil
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: negative duration", key, v)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

var Module = fx.Provide(Load)
