package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs(t *testing.T) {
	got := sanitizeKVs([]interface{}{
		"project_id", "p1",
		"access_token", "abc",
		"remote", "https://user:pw@example.com/org/repo.git",
		"dangling",
	})

	require.Len(t, got, 7)
	assert.Equal(t, "p1", got[1])
	assert.Equal(t, "[REDACTED]", got[3])
	assert.Equal(t, "https://example.com/org/repo.git", got[5])
	assert.Equal(t, "dangling", got[6])
}

func TestStripUserinfo(t *testing.T) {
	tests := map[string]string{
		"https://example.com/repo.git":         "https://example.com/repo.git",
		"https://tok@example.com/repo.git":     "https://example.com/repo.git",
		"file:///tmp/remote.git":               "file:///tmp/remote.git",
		"git@github.com:org/repo.git":          "git@github.com:org/repo.git",
		"https://example.com/path/with@at.git": "https://example.com/path/with@at.git",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripUserinfo(in), in)
	}
}

func TestWith_CarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("project_id", "p1").Warn("push failed", "secret", "x")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "p1", fields["project_id"])
	assert.Equal(t, "[REDACTED]", fields["secret"])
}

func TestNew(t *testing.T) {
	for _, mode := range []string{"development", "production"} {
		l, err := New(mode)
		require.NoError(t, err)
		l.Info("hello", "mode", mode)
	}
}
