package logger

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediacrawl/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{"info level", &config.LoggingConfig{Level: "info"}, false},
		{"debug level", &config.LoggingConfig{Level: "debug"}, false},
		{"invalid level", &config.LoggingConfig{Level: "invalid"}, true},
		{"file output", &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "crawl.log")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zerolog.Level
		wantErr  bool
	}{
		{"debug", zerolog.DebugLevel, false},
		{"INFO", zerolog.InfoLevel, false},
		{"warning", zerolog.WarnLevel, false},
		{"error", zerolog.ErrorLevel, false},
		{"disabled", zerolog.Disabled, false},
		{"", zerolog.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			level, err := parseLogLevel(tt.level)
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestZerologLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel)

	l.WithField("page", 3).WithError(errors.New("boom")).Warn("retrying")
	out := buf.String()
	assert.Contains(t, out, `"page":3`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"message":"retrying"`)
	assert.Contains(t, out, `"app":"mediacrawl"`)

	buf.Reset()
	l.InfoWithFields("downloaded", map[string]interface{}{"bytes": int64(42), "filename": "a.jpg"})
	assert.Contains(t, buf.String(), `"bytes":42`)
	assert.Contains(t, buf.String(), `"filename":"a.jpg"`)
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel)

	l.Info("hidden")
	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.Error("shown")
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestTestLogger(t *testing.T) {
	tl := NewTestLogger()
	scoped := tl.WithField("component", "queue")
	scoped.WithError(errors.New("HTTP 404")).Warn("Download failed")
	tl.Info("plain")

	msgs := tl.GetMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "WARN", msgs[0].Level)
	assert.Equal(t, "queue", msgs[0].Fields["component"])
	assert.EqualError(t, msgs[0].Error, "HTTP 404")
	assert.True(t, tl.HasMessage("plain"))
	assert.False(t, tl.HasError())

	tl.Clear()
	assert.Empty(t, tl.GetMessages())
}

func TestHelpers(t *testing.T) {
	tl := NewTestLogger()

	LogPage(tl, 4, "https://x.com/p4", map[string]interface{}{"queued": 3})
	LogDownload(tl, "https://x.com/a.jpg", "a.jpg", true, nil)
	LogDownload(tl, "https://x.com/b.jpg", "b.jpg", false, nil)
	LogDownload(tl, "https://x.com/c.jpg", "c.jpg", false, errors.New("HTTP 500"))
	LogSessionEvent(tl, "established", "alice", 2)

	msgs := tl.GetMessages()
	require.Len(t, msgs, 5)
	assert.Equal(t, 4, msgs[0].Fields["page"])
	assert.Equal(t, 3, msgs[0].Fields["queued"])
	assert.Equal(t, "Download completed", msgs[1].Message)
	assert.Equal(t, "DEBUG", msgs[2].Level)
	assert.Equal(t, "WARN", msgs[3].Level)
	assert.Equal(t, "Session established", msgs[4].Message)
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	assert.NotPanics(t, func() {
		l.WithField("a", 1).WithError(errors.New("x")).Error("ignored")
	})
}
