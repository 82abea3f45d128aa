package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitWritesToLogFile(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, Init(home))
	defer Close()

	Info(context.Background(), "hello")
	Close()

	logsDir := filepath.Join(home, ".ai-barometer", LogsDirName)
	entries, err := os.ReadDir(logsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(logsDir, entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
}

func TestContextAttributesAreAttached(t *testing.T) {
	var buf bytes.Buffer
	mu.Lock()
	logger = createLogger(&buf, parseLogLevel("DEBUG"))
	mu.Unlock()
	defer func() {
		mu.Lock()
		logger = nil
		mu.Unlock()
	}()

	ctx := WithRepo(context.Background(), "/tmp/r")
	ctx = WithComponent(ctx, "hookpipeline")
	ctx = WithCommit(ctx, "abc123")

	Info(ctx, "note attached")

	out := buf.String()
	require.Contains(t, out, `"repo":"/tmp/r"`)
	require.Contains(t, out, `"component":"hookpipeline"`)
	require.Contains(t, out, `"commit":"abc123"`)
}

func TestParseLogLevelDefaultsToInfo(t *testing.T) {
	require.Equal(t, parseLogLevel(""), parseLogLevel("bogus"))
}

func TestInitFallsBackToStderrWhenDirUnwritable(t *testing.T) {
	home := t.TempDir()
	blocked := filepath.Join(home, ".ai-barometer")
	require.NoError(t, os.WriteFile(blocked, []byte("not a dir"), 0o644))

	require.NoError(t, Init(home))
	defer Close()
}
