// Package cmdtest shells out to the real git binary to build
// repositories for integration tests that exercise git-notes
// semantics go-git cannot reproduce (note add/show, ref locking).
package cmdtest

import (
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

// InitRepo runs `git init` plus a test identity in dir using the real
// git binary, and returns dir for chaining.
func InitRepo(t *testing.T, dir string) string {
	t.Helper()
	run(t, dir, "init", "-q")
	run(t, dir, "config", "user.email", "test@example.com")
	run(t, dir, "config", "user.name", "Test User")
	run(t, dir, "config", "commit.gpgsign", "false")
	return dir
}

// WriteAndCommit writes content to name under dir, stages it, and
// commits with message, returning the new commit hash.
func WriteAndCommit(t *testing.T, dir, name, content, message string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(dir+"/"+name, []byte(content), 0o644))
	run(t, dir, "add", name)
	run(t, dir, "commit", "-q", "-m", message)
	return HeadHash(t, dir)
}

// HeadHash returns the current HEAD commit hash via the real git
// binary.
func HeadHash(t *testing.T, dir string) string {
	t.Helper()
	out := runOutput(t, dir, "rev-parse", "HEAD")
	return out
}

func run(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoErrorf(t, err, "git %v: %s", args, out)
}

func runOutput(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	require.NoError(t, err)
	s := string(out)
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
