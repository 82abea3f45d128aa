// Package hookpipeline implements the post-commit orchestrator: it
// calls the Git adapter, locator, scanner, and note formatter in
// sequence to attach a note for the new commit, then drains the
// repository's retry queue. The outer entry point never lets a panic
// or error escape: a commit must never be blocked by this system.
package hookpipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/entireio/ai-barometer/internal/gitadapter"
	"github.com/entireio/ai-barometer/internal/locator"
	"github.com/entireio/ai-barometer/internal/logging"
	"github.com/entireio/ai-barometer/internal/model"
	"github.com/entireio/ai-barometer/internal/noteformat"
	"github.com/entireio/ai-barometer/internal/pending"
	"github.com/entireio/ai-barometer/internal/pushgate"
	"github.com/entireio/ai-barometer/internal/scanner"
)

// hookWindow and retryWindow are the fixed anchor windows from
// spec.md §4.G step 5 and step 9.
const (
	hookWindow  = 10 * time.Minute
	retryWindow = 24 * time.Hour
)

const configKeyEnabled = "ai.barometer.enabled"

// Pipeline bundles every dependency the hook pipeline needs. The zero
// value is not usable; construct with New.
type Pipeline struct {
	Adapter     *gitadapter.Adapter
	Pending     *pending.Store
	Gate        *pushgate.Gate
	Home        string
	ToolVersion string
}

// New returns a ready-to-use Pipeline.
func New(adapter *gitadapter.Adapter, pendingStore *pending.Store, gate *pushgate.Gate, home, toolVersion string) *Pipeline {
	return &Pipeline{Adapter: adapter, Pending: pendingStore, Gate: gate, Home: home, ToolVersion: toolVersion}
}

// RunPostCommit runs the full post-commit sequence for the repository
// at cwd. It never panics out of this call and never returns an error
// the caller is expected to act on: every failure is already logged.
// Callers (the CLI's hook command) must exit 0 regardless of what
// happens here.
func (p *Pipeline) RunPostCommit(ctx context.Context, cwd string) {
	defer func() {
		if r := recover(); r != nil {
			logging.Fprintf(os.Stderr, "recovered from panic in hook pipeline: %v\n", r)
		}
	}()

	if err := p.runPostCommit(ctx, cwd); err != nil {
		logging.Fprintf(os.Stderr, "hook error: %v\n", err)
	}
}

func (p *Pipeline) runPostCommit(ctx context.Context, cwd string) error {
	// Step 1: resolve repo root; not a repo means exit silently.
	repoRoot, err := p.Adapter.RepoRoot(ctx, cwd)
	if err != nil {
		return nil //nolint:nilerr // not a repo is an expected, silent exit per spec
	}
	ctx = logging.WithRepo(ctx, repoRoot)
	ctx = logging.WithComponent(ctx, "hookpipeline")

	// Step 2: repo-level enable flag.
	enabled, err := p.Adapter.ConfigGet(ctx, repoRoot, false, configKeyEnabled)
	if err != nil {
		return fmt.Errorf("reading enabled config: %w", err)
	}
	if enabled == "false" {
		return nil
	}

	// Step 3: HEAD hash and commit time.
	hash, err := p.Adapter.HeadHash(ctx, repoRoot)
	if err != nil {
		return nil //nolint:nilerr // NoHead is an expected, silent exit per spec
	}
	headTime, err := p.Adapter.HeadCommitTime(ctx, repoRoot)
	if err != nil {
		return fmt.Errorf("reading head commit time: %w", err)
	}
	ctx = logging.WithCommit(ctx, hash)

	// Step 4: dedup.
	exists, err := p.Adapter.NoteExists(ctx, repoRoot, hash)
	if err != nil {
		return fmt.Errorf("checking note existence: %w", err)
	}
	if !exists {
		p.attachOrDefer(ctx, repoRoot, hash, headTime, hookWindow)
	}

	// Step 9: drain retries.
	p.drainRetries(ctx, repoRoot)

	// Step 10: push gate, best-effort.
	if p.Gate != nil {
		p.Gate.Run(ctx, repoRoot)
	}
	return nil
}

// Retry drains the retry queue for the repository at cwd and invokes
// the push gate, corresponding to the `retry` command's steps 9-10
// only. Unlike RunPostCommit, a hard failure to resolve the repository
// is returned to the caller instead of swallowed, since `retry` is a
// command the user runs on demand and expects to see an error from.
func (p *Pipeline) Retry(ctx context.Context, cwd string) error {
	repoRoot, err := p.Adapter.RepoRoot(ctx, cwd)
	if err != nil {
		return fmt.Errorf("resolving repository: %w", err)
	}
	ctx = logging.WithRepo(ctx, repoRoot)
	ctx = logging.WithComponent(ctx, "retry")

	p.drainRetries(ctx, repoRoot)

	if p.Gate != nil {
		p.Gate.Run(ctx, repoRoot)
	}
	return nil
}

// attachOrDefer runs steps 5-8 for one commit: gather candidates,
// scan, verify, format, attach. On any failure to attach, it upserts
// a pending record instead of propagating an error, per spec.md §4.G.
func (p *Pipeline) attachOrDefer(ctx context.Context, repoRoot, hash string, headTime int64, window time.Duration) {
	if p.attach(ctx, repoRoot, hash, headTime, window) {
		return
	}
	if _, _, err := p.Pending.Upsert(repoRoot, hash, headTime, time.Now().Unix()); err != nil {
		logging.Warn(ctx, "failed to upsert pending record", "error", err)
	}
}

// attach returns true iff a note was attached for hash.
func (p *Pipeline) attach(ctx context.Context, repoRoot, hash string, headTime int64, window time.Duration) bool {
	anchor := time.Unix(headTime, 0)
	dirs := locator.Discover(p.Home, repoRoot)
	dirPaths := make([]string, 0, len(dirs))
	for _, d := range dirs {
		dirPaths = append(dirPaths, d.Path)
	}
	files := locator.CandidateFiles(dirPaths, anchor, window)

	match, found, err := scanner.FindSessionForCommit(files, hash)
	if err != nil {
		logging.Warn(ctx, "scanner rejected hash", "error", err)
		return false
	}
	if !found {
		return false
	}

	meta := scanner.ParseSessionMetadata(match.File)
	if !scanner.VerifyMatch(ctx, repoRoot, meta, hash, p.Adapter) {
		logging.Debug(ctx, "match failed verification", "file", match.File)
		return false
	}

	payload, err := os.ReadFile(match.File) // TODO: stream directly into `git notes add -F -` once large transcripts warrant it.
	if err != nil {
		logging.Warn(ctx, "failed to read transcript payload", "file", match.File, "error", err)
		return false
	}

	header := model.NoteHeader{
		Agent:       meta.AgentKind,
		SessionID:   meta.SessionID,
		ToolVersion: p.ToolVersion,
	}
	value := noteformat.Format(header, payload)

	if err := p.Adapter.AddNote(ctx, repoRoot, hash, value); err != nil {
		logging.Warn(ctx, "add note failed", "error", err)
		return false
	}

	if err := p.Pending.Remove(repoRoot, hash); err != nil {
		logging.Warn(ctx, "failed to remove pending record after attach", "error", err)
	}
	logging.Info(ctx, "note attached", "agent", string(meta.AgentKind))
	return true
}

// drainRetries re-attempts every pending record for repoRoot with a
// widened ±24h window, abandoning records whose attempt count reaches
// the ceiling.
func (p *Pipeline) drainRetries(ctx context.Context, repoRoot string) {
	records, err := p.Pending.List(repoRoot)
	if err != nil {
		logging.Warn(ctx, "failed to list pending records", "error", err)
		return
	}
	for _, rec := range records {
		if p.attach(ctx, repoRoot, rec.CommitHash, rec.HeadTime, retryWindow) {
			continue
		}
		_, abandoned, err := p.Pending.Upsert(repoRoot, rec.CommitHash, rec.HeadTime, time.Now().Unix())
		if err != nil {
			logging.Warn(ctx, "failed to upsert retry record", "commit", rec.CommitHash, "error", err)
			continue
		}
		if abandoned {
			logging.Info(ctx, "pending record abandoned at retry ceiling", "commit", rec.CommitHash)
		}
	}
}
