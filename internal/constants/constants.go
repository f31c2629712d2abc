package constants

import "time"

const (
	DefaultCacheTTL  = 15 * time.Minute
	ContentCacheTTL  = time.Hour
	PollInterval     = 25 * time.Second
	ErrorBackoff     = 5 * time.Second
	RankCallDelay    = 2 * time.Second
	HistoryCallDelay = time.Second
)

const (
	ExternalAPITimeout = 10 * time.Second
	LocalAPITimeout    = 5 * time.Second
	DatabaseTimeout    = 5 * time.Second
	PushTimeout        = 3 * time.Second
	AssembleTimeout    = 5 * time.Minute
)

const (
	RateLimitCooldown  = 30 * time.Second
	RateLimitTripCount = 3
)

const (
	StatsWindow  = 5
	MapWindow    = 5
	HistoryDepth = 15
)

const (
	DBMaxOpenConns    = 4
	DBMaxIdleConns    = 2
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	HistoryListLimit = 20
)
