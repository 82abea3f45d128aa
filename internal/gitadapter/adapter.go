// Package gitadapter provides typed wrappers over the local Git binary:
// repo root, HEAD hash and timestamp, note existence/add/fetch/push on
// the fixed ai-barometer notes ref, config get/set, and validation of
// commit identifiers. Every mutating or note-related operation shells
// out to the real git executable in subprocess form (never through a
// shell), matching git's own notes/ref locking guarantees; a handful
// of read-only lookups use go-git directly against an arbitrary path
// without spawning a process.
package gitadapter

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/entireio/ai-barometer/internal/model"
)

// Sentinel errors for the taxonomy described in spec.md section 7.
var (
	ErrNotARepo      = errors.New("not a git repository")
	ErrNoHead        = errors.New("HEAD could not be resolved")
	ErrNoteAddFailed = errors.New("failed to add note")
)

// PushOutcome describes the structured result of a fetch or push
// attempt against the notes ref.
type PushOutcome int

const (
	OutcomeOK PushOutcome = iota
	OutcomeNoUpstream
	OutcomeRejected
	OutcomeOther
)

// Adapter wraps the git binary for a given working directory context.
// The zero value is ready to use.
type Adapter struct{}

// New returns a ready-to-use Adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) run(ctx context.Context, cwd string, args ...string) (stdout, stderr string, err error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if cwd != "" {
		cmd.Dir = cwd
	}
	var outBuf, errBuf strings.Builder
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	err = cmd.Run()
	return strings.TrimSpace(outBuf.String()), strings.TrimSpace(errBuf.String()), err
}

// RepoRoot returns the absolute repository root for cwd (empty cwd
// means the process's current directory).
func (a *Adapter) RepoRoot(ctx context.Context, cwd string) (string, error) {
	out, _, err := a.run(ctx, cwd, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotARepo, err)
	}
	return out, nil
}

// HeadHash returns the 40-char hex hash of HEAD.
func (a *Adapter) HeadHash(ctx context.Context, cwd string) (string, error) {
	out, _, err := a.run(ctx, cwd, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoHead, err)
	}
	if err := model.ValidateFullCommitHash(out); err != nil {
		return "", fmt.Errorf("%w: unexpected output from rev-parse: %v", ErrNoHead, err)
	}
	return out, nil
}

// HeadCommitTime returns the committer time of HEAD, seconds since
// the Unix epoch.
func (a *Adapter) HeadCommitTime(ctx context.Context, cwd string) (int64, error) {
	out, _, err := a.run(ctx, cwd, "show", "-s", "--format=%ct", "HEAD")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNoHead, err)
	}
	t, err := strconv.ParseInt(out, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unexpected timestamp %q: %v", ErrNoHead, out, err)
	}
	return t, nil
}

// CommitExists reports whether hash resolves to a commit object.
// Absence is not an error.
func (a *Adapter) CommitExists(ctx context.Context, cwd, hash string) (bool, error) {
	if err := model.ValidateCommitHash(hash); err != nil {
		return false, err
	}
	_, _, err := a.run(ctx, cwd, "cat-file", "-e", "--", hash+"^{commit}")
	return err == nil, nil
}

// NoteExists reports whether a note already exists for hash on the
// fixed notes ref.
func (a *Adapter) NoteExists(ctx context.Context, cwd, hash string) (bool, error) {
	if err := model.ValidateFullCommitHash(hash); err != nil {
		return false, err
	}
	_, _, err := a.run(ctx, cwd, "notes", "--ref", model.NotesRef, "show", "--", hash)
	return err == nil, nil
}

// AddNote attaches value as the note content for hash on the fixed
// notes ref. Dedup (NoteExists) must precede every call per spec.
func (a *Adapter) AddNote(ctx context.Context, cwd, hash string, value []byte) error {
	if err := model.ValidateFullCommitHash(hash); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, "git", "notes", "--ref", model.NotesRef, "add", "-F", "-", "--", hash)
	if cwd != "" {
		cmd.Dir = cwd
	}
	cmd.Stdin = strings.NewReader(string(value))
	var errBuf strings.Builder
	cmd.Stderr = &errBuf
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNoteAddFailed, strings.TrimSpace(errBuf.String()), err)
	}
	return nil
}

// ConfigGet reads a git config value. cwd selects which repository's
// local config applies when global is false; it is ignored (but still
// must be a valid directory, or "" for the process's own) when global
// is true. Returns ("", nil) if the key is unset.
func (a *Adapter) ConfigGet(ctx context.Context, cwd string, global bool, key string) (string, error) {
	args := []string{"config"}
	if global {
		args = append(args, "--global")
	}
	args = append(args, "--get", key)
	out, _, err := a.run(ctx, cwd, args...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", nil // key unset, not an error
		}
		return "", fmt.Errorf("git config get %s: %w", key, err)
	}
	return out, nil
}

// ConfigSet writes a git config value. See ConfigGet for the meaning
// of cwd relative to global.
func (a *Adapter) ConfigSet(ctx context.Context, cwd string, global bool, key, value string) error {
	args := []string{"config"}
	if global {
		args = append(args, "--global")
	}
	args = append(args, key, value)
	if _, stderr, err := a.run(ctx, cwd, args...); err != nil {
		return fmt.Errorf("git config set %s: %s: %w", key, stderr, err)
	}
	return nil
}

// RemoteTrackingNotesRef returns the remote-tracking ref FetchNotes
// writes into for remote, e.g. "refs/remotes/origin/notes/ai-sessions".
// MergeNotes merges from this ref; nothing ever writes straight into
// the local notes ref on fetch, so a concurrent remote update can
// never clobber notes added locally since the last push.
func RemoteTrackingNotesRef(remote string) string {
	return fmt.Sprintf("refs/remotes/%s/%s", remote, strings.TrimPrefix(model.NotesRef, "refs/"))
}

// FetchNotes fetches the notes ref from remote into its remote-tracking
// ref (see RemoteTrackingNotesRef), never straight into the local ref.
func (a *Adapter) FetchNotes(ctx context.Context, cwd, remote string) (PushOutcome, error) {
	refspec := fmt.Sprintf("%s:%s", model.NotesRef, RemoteTrackingNotesRef(remote))
	_, stderr, err := a.run(ctx, cwd, "fetch", remote, refspec)
	if err == nil {
		return OutcomeOK, nil
	}
	if noRemoteRef(stderr, err) {
		return OutcomeNoUpstream, nil
	}
	return OutcomeOther, fmt.Errorf("fetch notes: %s: %w", stderr, err)
}

// MergeNotes merges the remote-tracking notes ref last fetched for
// remote into the local notes ref using the cat_sort_uniq strategy,
// which unions each side's note content instead of picking one. A
// missing remote-tracking ref (nothing fetched yet) or an up-to-date
// merge is not an error; a real conflict aborts the merge and returns
// an error so the caller skips its retry push.
func (a *Adapter) MergeNotes(ctx context.Context, cwd, remote string) error {
	trackingRef := RemoteTrackingNotesRef(remote)
	if _, _, err := a.run(ctx, cwd, "rev-parse", "--verify", "--quiet", trackingRef); err != nil {
		return nil
	}

	_, _, _ = a.run(ctx, cwd, "notes", "--ref", model.NotesRef, "merge", "--abort")

	_, stderr, err := a.run(ctx, cwd, "notes", "--ref", model.NotesRef, "merge", "-s", "cat_sort_uniq", "--", trackingRef)
	if err == nil {
		return nil
	}
	lower := strings.ToLower(stderr)
	if strings.Contains(lower, "already up to date") || strings.Contains(lower, "nothing to merge") {
		return nil
	}
	_, _, _ = a.run(ctx, cwd, "notes", "--ref", model.NotesRef, "merge", "--abort")
	return fmt.Errorf("merge notes: %s: %w", stderr, err)
}

// PushNotes pushes the local notes ref to remote.
func (a *Adapter) PushNotes(ctx context.Context, cwd, remote string) (PushOutcome, error) {
	_, stderr, err := a.run(ctx, cwd, "push", remote, model.NotesRef)
	if err == nil {
		return OutcomeOK, nil
	}
	lower := strings.ToLower(stderr)
	if strings.Contains(lower, "non-fast-forward") || strings.Contains(lower, "rejected") {
		return OutcomeRejected, nil
	}
	return OutcomeOther, fmt.Errorf("push notes: %s: %w", stderr, err)
}

func noRemoteRef(stderr string, err error) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "couldn't find remote ref") ||
		strings.Contains(lower, "no such ref") ||
		strings.Contains(lower, "invalid refspec") ||
		strings.Contains(err.Error(), "exit status 128")
}

// RepoRootFromPath opens (without spawning git) the repository that
// contains path and returns its canonical worktree root. Used by the
// scanner to verify a transcript's recorded cwd against a commit's
// repository without a subprocess per candidate file.
func RepoRootFromPath(path string) (string, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotARepo, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotARepo, err)
	}
	return wt.Filesystem.Root(), nil
}

// Remote describes a configured Git remote, as needed by the push
// gate's organization allow-list check.
type Remote struct {
	Name string
	URLs []string
}

// Remotes lists the repository's configured remotes without spawning
// git, using go-git's config reader.
func Remotes(cwd string) ([]Remote, error) {
	repo, err := git.PlainOpenWithOptions(cwd, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotARepo, err)
	}
	remotes, err := repo.Remotes()
	if err != nil {
		return nil, fmt.Errorf("listing remotes: %w", err)
	}
	out := make([]Remote, 0, len(remotes))
	for _, r := range remotes {
		cfg := r.Config()
		out = append(out, Remote{Name: cfg.Name, URLs: cfg.URLs})
	}
	return out, nil
}

// HasUpstreamRemote reports whether the repository has any remote
// configured at all (used by the push gate's step 1).
func HasUpstreamRemote(cwd string) bool {
	remotes, err := Remotes(cwd)
	if err != nil {
		return false
	}
	for _, r := range remotes {
		if len(r.URLs) > 0 {
			return true
		}
	}
	return false
}

// ensure plumbing import stays used if go-git internals shift under us.
var _ = plumbing.ZeroHash
