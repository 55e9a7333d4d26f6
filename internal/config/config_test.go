package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"BROKER_BOOTSTRAP_ADDR", "DOCSTORE_URI", "KV_ADDR", "MAX_CONCURRENT",
		"WINDOW_DURATION", "WINDOW_HOP", "TITLE_SIMILARITY_THRESHOLD", "DATA_DIR",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:9092", cfg.BrokerBootstrapAddr)
	assert.Equal(t, 3, cfg.MaxConcurrentAgents)
	assert.Equal(t, 900*time.Minute, cfg.WindowDuration)
	assert.Equal(t, 5*time.Minute, cfg.WindowHop)
	assert.Equal(t, 0.65, cfg.TitleSimilarityThresh)
	assert.Equal(t, 200, cfg.MaxFuzzyScan)
}

func TestValidate_RejectsMissingBroker(t *testing.T) {
	cfg := &Config{
		DocumentStoreURI:    "ws://x",
		KVAddr:              "localhost:6379",
		MaxConcurrentAgents: 3,
		WindowDuration:      time.Hour,
		WindowHop:           time.Minute,
		TitleSimilarityThresh: 0.5,
	}
	err := cfg.Validate()
	assert.ErrorContains(t, err, "BROKER_BOOTSTRAP_ADDR")
}

func TestValidate_RejectsBadSimilarityThreshold(t *testing.T) {
	cfg := &Config{
		BrokerBootstrapAddr:   "x",
		DocumentStoreURI:      "x",
		KVAddr:                "x",
		MaxConcurrentAgents:   3,
		WindowDuration:        time.Hour,
		WindowHop:             time.Minute,
		TitleSimilarityThresh: 1.5,
	}
	err := cfg.Validate()
	assert.ErrorContains(t, err, "TITLE_SIMILARITY_THRESHOLD")
}

func TestGetEnvAsDuration_FallsBackOnBadValue(t *testing.T) {
	t.Setenv("SOME_DURATION", "not-a-duration")
	got := getEnvAsDuration("SOME_DURATION", 5*time.Second)
	assert.Equal(t, 5*time.Second, got)
}

func TestGetEnvAsBool_FallsBackOnBadValue(t *testing.T) {
	t.Setenv("SOME_BOOL", "maybe")
	got := getEnvAsBool("SOME_BOOL", true)
	assert.True(t, got)
}
