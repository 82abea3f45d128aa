package gitadapter

import (
	"context"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entireio/ai-barometer/internal/model"
	"github.com/entireio/ai-barometer/internal/testutil/cmdtest"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cmdtest.InitRepo(t, dir)
	cmdtest.WriteAndCommit(t, dir, "f.txt", "hello\n", "initial")
	return dir
}

func TestRepoRootAndHead(t *testing.T) {
	dir := initRepo(t)
	a := New()
	ctx := context.Background()

	root, err := a.RepoRoot(ctx, dir)
	require.NoError(t, err)
	require.NotEmpty(t, root)

	hash, err := a.HeadHash(ctx, dir)
	require.NoError(t, err)
	require.Len(t, hash, 40)

	ts, err := a.HeadCommitTime(ctx, dir)
	require.NoError(t, err)
	require.Greater(t, ts, int64(0))

	exists, err := a.CommitExists(ctx, dir, hash)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = a.CommitExists(ctx, dir, "0000000")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestNoteLifecycle(t *testing.T) {
	dir := initRepo(t)
	a := New()
	ctx := context.Background()

	hash, err := a.HeadHash(ctx, dir)
	require.NoError(t, err)

	exists, err := a.NoteExists(ctx, dir, hash)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, a.AddNote(ctx, dir, hash, []byte("hello note\n")))

	exists, err = a.NoteExists(ctx, dir, hash)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestAddNoteRejectsShortHash(t *testing.T) {
	dir := initRepo(t)
	a := New()
	err := a.AddNote(context.Background(), dir, "abcdef0", []byte("x"))
	require.Error(t, err)
}

func TestConfigGetSetUnsetKey(t *testing.T) {
	dir := initRepo(t)
	a := New()
	ctx := context.Background()

	v, err := a.ConfigGet(ctx, dir, false, "ai-barometer.does-not-exist")
	require.NoError(t, err)
	require.Empty(t, v)

	cmd := exec.Command("git", "config", "ai-barometer.push-consent", "true")
	cmd.Dir = dir
	require.NoError(t, cmd.Run())

	v, err = a.ConfigGet(ctx, dir, false, "ai-barometer.push-consent")
	require.NoError(t, err)
	require.Equal(t, "true", v)
}

func TestRepoRootFromPath(t *testing.T) {
	dir := initRepo(t)
	root, err := RepoRootFromPath(dir)
	require.NoError(t, err)
	require.NotEmpty(t, root)
}

func TestRemotesEmpty(t *testing.T) {
	dir := initRepo(t)
	remotes, err := Remotes(dir)
	require.NoError(t, err)
	require.Empty(t, remotes)
	require.False(t, HasUpstreamRemote(dir))
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
	return string(out)
}

func TestFetchNotesNoUpstreamIsNotAnError(t *testing.T) {
	remoteDir := t.TempDir()
	runGit(t, remoteDir, "init", "-q", "--bare")

	dir := initRepo(t)
	runGit(t, dir, "remote", "add", "origin", remoteDir)
	runGit(t, dir, "push", "-q", "origin", "HEAD:refs/heads/main")

	a := New()
	ctx := context.Background()

	outcome, err := a.FetchNotes(ctx, dir, "origin")
	require.NoError(t, err)
	require.Equal(t, OutcomeNoUpstream, outcome)

	// Nothing was fetched, so merging has nothing to do and must not error.
	require.NoError(t, a.MergeNotes(ctx, dir, "origin"))
}

func TestFetchAndMergeNotesUnionsBothSides(t *testing.T) {
	remoteDir := t.TempDir()
	runGit(t, remoteDir, "init", "-q", "--bare")

	repoA := initRepo(t)
	hash := runGitRevParseHEAD(t, repoA)
	runGit(t, repoA, "remote", "add", "origin", remoteDir)
	runGit(t, repoA, "push", "-q", "origin", "HEAD:refs/heads/main")

	a := New()
	ctx := context.Background()
	require.NoError(t, a.AddNote(ctx, repoA, hash, []byte("from repo A\n")))
	outcome, err := a.PushNotes(ctx, repoA, "origin")
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, outcome)

	repoB := t.TempDir()
	runGit(t, "", "clone", "-q", remoteDir, repoB)
	runGit(t, repoB, "config", "user.email", "test@example.com")
	runGit(t, repoB, "config", "user.name", "Test User")
	runGit(t, repoB, "config", "commit.gpgsign", "false")
	require.NoError(t, a.AddNote(ctx, repoB, hash, []byte("from repo B\n")))

	// repoA's remote tracking ref for origin's notes doesn't exist yet locally;
	// pushing repoB's note first, then repoA pushes and collides.
	outcomeB, err := a.PushNotes(ctx, repoB, "origin")
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, outcomeB)

	outcomeA, err := a.PushNotes(ctx, repoA, "origin")
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, outcomeA)

	fetchOutcome, err := a.FetchNotes(ctx, repoA, "origin")
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, fetchOutcome)

	require.NoError(t, a.MergeNotes(ctx, repoA, "origin"))

	merged, _, err := a.run(ctx, repoA, "notes", "--ref", model.NotesRef, "show", "--", hash)
	require.NoError(t, err)
	require.Contains(t, merged, "from repo A")
	require.Contains(t, merged, "from repo B")

	retryOutcome, err := a.PushNotes(ctx, repoA, "origin")
	require.NoError(t, err)
	require.Equal(t, OutcomeOK, retryOutcome)
}

func runGitRevParseHEAD(t *testing.T, dir string) string {
	t.Helper()
	out := runGit(t, dir, "rev-parse", "HEAD")
	return strings.TrimSpace(out)
}
