// Package hydrate implements the backfill pipeline: it scans every
// supported agent's recent transcript files, extracts every commit
// hash they reference, and attaches a note wherever one is missing
// and the referenced commit actually exists in the repository the
// transcript claims to belong to.
package hydrate

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/entireio/ai-barometer/internal/gitadapter"
	"github.com/entireio/ai-barometer/internal/locator"
	"github.com/entireio/ai-barometer/internal/logging"
	"github.com/entireio/ai-barometer/internal/model"
	"github.com/entireio/ai-barometer/internal/noteformat"
	"github.com/entireio/ai-barometer/internal/pushgate"
	"github.com/entireio/ai-barometer/internal/scanner"
)

const configKeyEnabled = "ai.barometer.enabled"

// sinceRegex parses the `<N>d` form of the --since flag.
var sinceRegex = regexp.MustCompile(`^(\d+)d$`)

// ParseSince parses a duration string in the fixed "<N>d" form used by
// the --since flag, e.g. "7d".
func ParseSince(raw string) (time.Duration, error) {
	m := sinceRegex.FindStringSubmatch(raw)
	if m == nil {
		return 0, fmt.Errorf("invalid --since value %q: expected form like \"7d\"", raw)
	}
	days, err := strconv.Atoi(m[1])
	if err != nil || days <= 0 {
		return 0, fmt.Errorf("invalid --since value %q: day count must be positive", raw)
	}
	return time.Duration(days) * 24 * time.Hour, nil
}

// Summary is the accumulated outcome of one hydration run.
type Summary struct {
	Attached               int
	SkippedAlreadyAttached int
	SkippedNoHashes        int
	Errors                 int
}

// String renders the final summary line per spec.md §4.H step 4.
func (s Summary) String() string {
	return fmt.Sprintf("Done. %d attached, %d skipped, %d errors.", s.Attached, s.SkippedAlreadyAttached+s.SkippedNoHashes, s.Errors)
}

// Hydrator runs the backfill pipeline.
type Hydrator struct {
	Adapter     *gitadapter.Adapter
	Gate        *pushgate.Gate
	Home        string
	ToolVersion string

	// Out receives the user-facing scan/file-count/per-commit progress
	// lines required by spec.md §4.H steps 1 and 3. The structured
	// logging calls alongside these always go to the log file instead;
	// Out is this run's own stdout/stderr, nil (discarded) by default.
	Out io.Writer
}

// New returns a ready-to-use Hydrator.
func New(adapter *gitadapter.Adapter, gate *pushgate.Gate, home, toolVersion string) *Hydrator {
	return &Hydrator{Adapter: adapter, Gate: gate, Home: home, ToolVersion: toolVersion}
}

func (h *Hydrator) out() io.Writer {
	if h.Out == nil {
		return io.Discard
	}
	return h.Out
}

// Run executes one hydration pass: since is the lookback window, push
// requests the final best-effort push for the repository at cwd.
// runAt is the anchor "now" for recent_files; callers pass time.Now()
// in production and a fixed value in tests.
func (h *Hydrator) Run(ctx context.Context, cwd string, since time.Duration, push bool, runAt time.Time) Summary {
	runID := uuid.New().String()
	ctx = logging.WithComponent(ctx, "hydrate")
	logging.Info(ctx, "hydration run starting", "run_id", runID, "since", since.String())

	sinceLabel := fmt.Sprintf("%dd", int(since.Hours()/24))

	var summary Summary
	for _, dir := range locator.Discover(h.Home, cwd) {
		files := locator.RecentFiles([]string{dir.Path}, runAt, since)
		fmt.Fprintf(h.out(), "Scanning %s logs (last %s)...\n", dir.Kind, sinceLabel)
		logging.Info(ctx, "scanning agent logs", "run_id", runID, "agent", string(dir.Kind), "file_count", len(files))
		fmt.Fprintf(h.out(), "  found %d file(s)\n", len(files))
		for _, file := range files {
			h.processFile(ctx, runID, file, &summary)
		}
	}

	if push {
		if repoRoot, err := h.Adapter.RepoRoot(ctx, cwd); err == nil {
			h.Gate.Run(ctx, repoRoot)
		}
	}

	logging.Info(ctx, "hydration run finished", "run_id", runID, "summary", summary.String())
	return summary
}

// processFile extracts every hash in file, resolves each to a
// repository via the file's own cwd metadata, and attaches a note
// wherever one is missing. Payload bytes are read once and reused
// across every hash extracted from the same file.
func (h *Hydrator) processFile(ctx context.Context, runID, file string, summary *Summary) {
	hashes, err := scanner.ExtractCommitHashes(file)
	if err != nil {
		logging.Warn(ctx, "failed to extract commit hashes", "run_id", runID, "file", file, "error", err)
		summary.Errors++
		return
	}
	if len(hashes) == 0 {
		summary.SkippedNoHashes++
		return
	}
	fmt.Fprintf(h.out(), "  %s: %d commit hash(es) found\n", file, len(hashes))

	meta := scanner.ParseSessionMetadata(file)
	if meta.Cwd == "" {
		return // no cwd recorded: every hash in this file is unresolvable, uncounted per spec
	}

	repoRoot, err := gitadapter.RepoRootFromPath(meta.Cwd)
	if err != nil {
		return // not a repo (any more): uncounted per spec
	}

	var payload []byte
	for hash := range hashes {
		h.processHash(ctx, runID, file, repoRoot, hash, meta, &payload, summary)
	}
}

func (h *Hydrator) processHash(ctx context.Context, runID, file, repoRoot, hash string, meta model.SessionMetadata, payload *[]byte, summary *Summary) {
	exists, err := h.Adapter.CommitExists(ctx, repoRoot, hash)
	if err != nil || !exists {
		return // not this repo's commit, or a rebased-away commit: uncounted
	}

	enabled, err := h.Adapter.ConfigGet(ctx, repoRoot, false, configKeyEnabled)
	if err != nil {
		summary.Errors++
		return
	}
	if enabled == "false" {
		return // uncounted per spec
	}

	noteExists, err := h.Adapter.NoteExists(ctx, repoRoot, hash)
	if err != nil {
		logging.Warn(ctx, "note_exists check failed", "run_id", runID, "commit", hash, "error", err)
		summary.Errors++
		return
	}
	if noteExists {
		summary.SkippedAlreadyAttached++
		fmt.Fprintf(h.out(), "    commit %s: note already attached, skipping\n", hash)
		return
	}

	if *payload == nil {
		data, err := os.ReadFile(file)
		if err != nil {
			logging.Warn(ctx, "failed to read transcript payload", "run_id", runID, "file", file, "error", err)
			summary.Errors++
			return
		}
		*payload = data
	}

	header := model.NoteHeader{
		Agent:       meta.AgentKind,
		SessionID:   meta.SessionID,
		ToolVersion: h.ToolVersion,
	}
	value := noteformat.Format(header, *payload)

	if err := h.Adapter.AddNote(ctx, repoRoot, hash, value); err != nil {
		logging.Warn(ctx, "add note failed", "run_id", runID, "commit", hash, "error", err)
		summary.Errors++
		return
	}

	logging.Info(ctx, "note attached", "run_id", runID, "commit", hash, "agent", string(meta.AgentKind))
	fmt.Fprintf(h.out(), "    commit %s: note attached\n", hash)
	summary.Attached++
}
