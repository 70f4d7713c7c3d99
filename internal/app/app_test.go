package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edumorph/core/internal/config"
)

func TestMatchOriginPattern(t *testing.T) {
	assert.True(t, matchOriginPattern("study.example.com", "study.example.com"))
	assert.True(t, matchOriginPattern("*.example.com", "app.example.com"))
	assert.True(t, matchOriginPattern("localhost:*", "localhost:5173"))
	assert.False(t, matchOriginPattern("*.example.com", "example.org"))
	assert.False(t, matchOriginPattern("study.example.com", "other.example.com"))
}

func TestExtractOriginHost(t *testing.T) {
	assert.Equal(t, "app.example.com", extractOriginHost("https://app.example.com"))
	assert.Equal(t, "localhost:5173", extractOriginHost("http://localhost:5173"))
	assert.Equal(t, "bare-host", extractOriginHost("bare-host"))
}

func TestParseTimezoneLocation(t *testing.T) {
	loc, err := parseTimezoneLocation("UTC")
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	loc, err = parseTimezoneLocation("+08:00")
	require.NoError(t, err)
	_, offset := time.Now().In(loc).Zone()
	assert.Equal(t, 8*3600, offset)

	_, err = parseTimezoneLocation("not/a/zone")
	assert.Error(t, err)
}

func TestBuildPipelineSkipsKeylessProvider(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.AI.Providers = []config.AIProvider{
		{ID: "primary", Type: "OpenAI", Enabled: true}, // no api key
	}

	pipe, err := buildPipeline(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, pipe)
}

func TestBuildPipelineKeepsUsableProviders(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.AI.Providers = []config.AIProvider{
		{ID: "keyless", Type: "OpenAI", Enabled: true},
		{ID: "backup", Type: "OpenAI-Compatible", APIKey: "sk-test", Endpoint: "https://llm.internal/v1", Enabled: true},
	}

	pipe, err := buildPipeline(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, pipe)
}

func TestHumanizeDuration(t *testing.T) {
	assert.Equal(t, "42s", humanizeDuration(42*time.Second))
	assert.Equal(t, "5m0s", humanizeDuration(5*time.Minute+20*time.Second))
	assert.Equal(t, "3h0m0s", humanizeDuration(3*time.Hour+7*time.Minute))
}
