package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		environment string
		want        zerolog.Level
	}{
		{"explicit level", "warn", "", zerolog.WarnLevel},
		{"invalid level", "loud", "", zerolog.InfoLevel},
		{"production default", "", "production", zerolog.InfoLevel},
		{"development default", "", "development", zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			t.Setenv("EVENTWORKER_ENVIRONMENT", tt.environment)
			assert.Equal(t, tt.want, getLogLevel())
		})
	}
}

func TestWithFieldWritesJSON(t *testing.T) {
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })

	var buf bytes.Buffer
	New(&buf).WithField("spider", "bhf").Info().Int("events", 3).Msg("Spider finished")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "bhf", line["spider"])
	assert.Equal(t, float64(3), line["events"])
	assert.Equal(t, "Spider finished", line["message"])
	assert.Equal(t, "info", line["level"])
}

func TestComponentLoggersInitDefault(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	prev, prevLevel := Default, zerolog.GlobalLevel()
	Default = nil
	t.Cleanup(func() {
		Default = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	for _, l := range []*Logger{ForSpider("bhf"), ForGeocoder(), ForIngest(), ForStore(), ForWorker(), ForPublisher(), ForCache()} {
		assert.NotNil(t, l)
	}
	assert.NotNil(t, Default)
}
