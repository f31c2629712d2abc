package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REGION", "EU")

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "eu", cfg.Region)
	assert.Equal(t, "eu", cfg.Shard, "shard defaults to region")
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 25*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.ErrorBackoff)
	assert.Equal(t, 2*time.Second, cfg.RankCallDelay)
	assert.Equal(t, time.Second, cfg.HistoryCallDelay)
	assert.Equal(t, 5, cfg.StatsWindow)
	assert.Equal(t, 15, cfg.HistoryDepth)
	assert.Equal(t, 3, cfg.RankMinSampleGames)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REGION", "na")
	t.Setenv("SHARD", "pbe")
	t.Setenv("PUSH_URL", "http://localhost:3000/")
	t.Setenv("CACHE_TTL", "1m")
	t.Setenv("RANK_MIN_SAMPLE_GAMES", "0")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load(zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "pbe", cfg.Shard)
	assert.Equal(t, "http://localhost:3000", cfg.PushURL)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, 0, cfg.RankMinSampleGames)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing region", map[string]string{"REGION": ""}},
		{"bad duration", map[string]string{"POLL_INTERVAL": "soon"}},
		{"negative duration", map[string]string{"CACHE_TTL": "-1s"}},
		{"zero cache ttl", map[string]string{"CACHE_TTL": "0s"}},
		{"zero backoff", map[string]string{"ERROR_BACKOFF": "0"}},
		{"bad int", map[string]string{"STATS_WINDOW": "five"}},
		{"depth below window", map[string]string{"HISTORY_DEPTH": "2"}},
		{"negative sample", map[string]string{"RANK_MIN_SAMPLE_GAMES": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REGION", "eu")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(zerolog.Nop())
			assert.Error(t, err)
		})
	}
}
