package hydrate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/entireio/ai-barometer/internal/gitadapter"
	"github.com/entireio/ai-barometer/internal/locator"
	"github.com/entireio/ai-barometer/internal/testutil/cmdtest"
)

func TestParseSinceValid(t *testing.T) {
	d, err := ParseSince("7d")
	require.NoError(t, err)
	require.Equal(t, 7*24*time.Hour, d)
}

func TestParseSinceRejectsMalformed(t *testing.T) {
	_, err := ParseSince("1w")
	require.Error(t, err)

	_, err = ParseSince("0d")
	require.Error(t, err)
}

func writeTranscript(t *testing.T, home, repoRoot, sessionID, cwd string, hashes []string) string {
	t.Helper()
	dir := filepath.Join(home, ".claude", "projects", locator.EncodeClaudeRepoPath(repoRoot))
	require.NoError(t, os.MkdirAll(dir, 0o755))

	content := `{"session_id":"` + sessionID + `","cwd":"` + cwd + `"}` + "\n"
	for _, h := range hashes {
		content += `{"message":"refers to ` + h + `"}` + "\n"
	}
	path := filepath.Join(dir, sessionID+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunAttachesNotesForDiscoveredHashes(t *testing.T) {
	home := t.TempDir()
	repo := t.TempDir()
	cmdtest.InitRepo(t, repo)
	hash := cmdtest.WriteAndCommit(t, repo, "a.txt", "hello", "init")

	writeTranscript(t, home, repo, "session-abc", repo, []string{hash})

	adapter := gitadapter.New()
	h := New(adapter, nil, home, "test-version")

	summary := h.Run(context.Background(), repo, 30*24*time.Hour, false, time.Now())
	require.Equal(t, 1, summary.Attached)

	exists, err := adapter.NoteExists(context.Background(), repo, hash)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestRunSkipsAlreadyAttached(t *testing.T) {
	home := t.TempDir()
	repo := t.TempDir()
	cmdtest.InitRepo(t, repo)
	hash := cmdtest.WriteAndCommit(t, repo, "a.txt", "hello", "init")

	adapter := gitadapter.New()
	require.NoError(t, adapter.AddNote(context.Background(), repo, hash, []byte("agent: codex\n\nalready here")))

	writeTranscript(t, home, repo, "session-abc", repo, []string{hash})

	h := New(adapter, nil, home, "test-version")
	summary := h.Run(context.Background(), repo, 30*24*time.Hour, false, time.Now())
	require.Equal(t, 0, summary.Attached)
	require.Equal(t, 1, summary.SkippedAlreadyAttached)
}

func TestRunSkipsNoHashesFile(t *testing.T) {
	home := t.TempDir()
	repo := t.TempDir()
	cmdtest.InitRepo(t, repo)
	cmdtest.WriteAndCommit(t, repo, "a.txt", "hello", "init")

	writeTranscript(t, home, repo, "session-abc", repo, nil)

	adapter := gitadapter.New()
	h := New(adapter, nil, home, "test-version")
	summary := h.Run(context.Background(), repo, 30*24*time.Hour, false, time.Now())
	require.Equal(t, 0, summary.Attached)
	require.Equal(t, 1, summary.SkippedNoHashes)
}

func TestRunIgnoresHashFromAnotherRepo(t *testing.T) {
	home := t.TempDir()
	repoA := t.TempDir()
	repoB := t.TempDir()
	cmdtest.InitRepo(t, repoA)
	cmdtest.InitRepo(t, repoB)
	cmdtest.WriteAndCommit(t, repoA, "a.txt", "hello", "init")
	hashB := cmdtest.WriteAndCommit(t, repoB, "b.txt", "hello", "init")

	// Transcript claims to belong to repoA but references repoB's commit.
	writeTranscript(t, home, repoA, "session-xyz", repoA, []string{hashB})

	adapter := gitadapter.New()
	h := New(adapter, nil, home, "test-version")
	summary := h.Run(context.Background(), repoA, 30*24*time.Hour, false, time.Now())
	require.Equal(t, 0, summary.Attached)

	exists, err := adapter.NoteExists(context.Background(), repoB, hashB)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestRunWritesScanAndAttachProgressToOut(t *testing.T) {
	home := t.TempDir()
	repo := t.TempDir()
	cmdtest.InitRepo(t, repo)
	hash := cmdtest.WriteAndCommit(t, repo, "a.txt", "hello", "init")

	writeTranscript(t, home, repo, "session-abc", repo, []string{hash})

	adapter := gitadapter.New()
	h := New(adapter, nil, home, "test-version")
	var out bytes.Buffer
	h.Out = &out

	summary := h.Run(context.Background(), repo, 30*24*time.Hour, false, time.Now())
	require.Equal(t, 1, summary.Attached)

	printed := out.String()
	require.Contains(t, printed, "Scanning claude logs (last 30d)...")
	require.Contains(t, printed, "found 1 file(s)")
	require.Contains(t, printed, "commit hash(es) found")
	require.Contains(t, printed, "commit "+hash+": note attached")
}

func TestSummaryStringFormat(t *testing.T) {
	s := Summary{Attached: 2, SkippedAlreadyAttached: 1, SkippedNoHashes: 3, Errors: 4}
	require.Equal(t, "Done. 2 attached, 4 skipped, 4 errors.", s.String())
}
