// Package pushgate decides whether and when to push the ai-sessions
// notes ref to a remote: one-time persisted consent, an optional
// organization allow-list, and fetch-then-retry-push semantics.
package pushgate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/entireio/ai-barometer/internal/gitadapter"
)

const (
	configKeyOrg     = "ai.barometer.org"
	configKeyConsent = "ai.barometer.push-consent"
)

// httpsRemoteRegex matches "https://host/<org>/<repo>(.git)?" forms.
var httpsRemoteRegex = regexp.MustCompile(`^https?://[^/]+/([^/]+)/[^/]+?(?:\.git)?$`)

// sshRemoteRegex matches "git@host:<org>/<repo>.git" forms.
var sshRemoteRegex = regexp.MustCompile(`^[^@]+@[^:]+:([^/]+)/[^/]+?(?:\.git)?$`)

// extractOrg returns the organization/owner segment of a remote URL in
// either its HTTPS or SCP-like SSH form. Returns "" if the URL matches
// neither convention.
func extractOrg(url string) string {
	if m := httpsRemoteRegex.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	if m := sshRemoteRegex.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

// Gate evaluates and executes the push decision procedure.
type Gate struct {
	adapter     *gitadapter.Adapter
	stdin       io.Reader
	interactive func() bool
	logger      *slog.Logger
}

// New returns a Gate using adapter for all Git operations. A nil
// logger falls back to slog.Default().
func New(adapter *gitadapter.Adapter, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		adapter:     adapter,
		stdin:       os.Stdin,
		interactive: stdinIsTerminal,
		logger:      logger,
	}
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Run executes the full decision procedure for repoRoot: remote
// selection, org filter, consent, and push. Every failure is logged
// and absorbed; Run never returns an error that should propagate to
// the hook pipeline's exit status.
func (g *Gate) Run(ctx context.Context, repoRoot string) {
	remotes, err := gitadapter.Remotes(repoRoot)
	if err != nil || len(remotes) == 0 {
		g.logger.Debug("push gate: no remote configured, skipping", "repo", repoRoot)
		return
	}

	targets := g.selectTargets(ctx, repoRoot, remotes)
	if len(targets) == 0 {
		g.logger.Debug("push gate: no remote passed the organization filter, skipping", "repo", repoRoot)
		return
	}

	consent, err := g.consent(ctx, repoRoot)
	if err != nil {
		g.logger.Warn("push gate: consent check failed", "error", err)
		return
	}
	if !consent {
		g.logger.Debug("push gate: consent declined, skipping push")
		return
	}

	for _, remote := range targets {
		g.pushOne(ctx, repoRoot, remote)
	}
}

// selectTargets returns the remote names that pass the organization
// allow-list filter, or all remote names if no filter is configured.
func (g *Gate) selectTargets(ctx context.Context, repoRoot string, remotes []gitadapter.Remote) []string {
	org, err := g.adapter.ConfigGet(ctx, repoRoot, true, configKeyOrg)
	if err != nil {
		g.logger.Warn("push gate: reading org config failed", "error", err)
		return nil
	}
	if org == "" {
		names := make([]string, 0, len(remotes))
		for _, r := range remotes {
			names = append(names, r.Name)
		}
		return names
	}

	var names []string
	for _, r := range remotes {
		for _, url := range r.URLs {
			if extractOrg(url) == org {
				names = append(names, r.Name)
				break
			}
		}
	}
	return names
}

// consent reads the persisted consent value, prompting interactively
// exactly once and persisting the answer if it is unset. Stdin being
// non-interactive means the default answer is no, persisted as such.
func (g *Gate) consent(ctx context.Context, repoRoot string) (bool, error) {
	raw, err := g.adapter.ConfigGet(ctx, repoRoot, true, configKeyConsent)
	if err != nil {
		return false, err
	}
	switch raw {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}

	answer := g.promptConsent()
	value := "no"
	if answer {
		value = "yes"
	}
	if err := g.adapter.ConfigSet(ctx, repoRoot, true, configKeyConsent, value); err != nil {
		g.logger.Warn("push gate: failed to persist consent answer", "error", err)
	}
	return answer, nil
}

// promptConsent asks the user once whether ai-barometer may push the
// notes ref. Defaults to no when stdin is not a terminal.
func (g *Gate) promptConsent() bool {
	if !g.interactive() {
		return false
	}

	if os.Getenv("ACCESSIBLE") != "" {
		return promptConsentPlain(g.stdin)
	}

	consent := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Allow ai-barometer to push session notes?").
				Description("Pushes the refs/notes/ai-sessions ref to your remote so teammates see AI session attachments.").
				Affirmative("Yes").
				Negative("No").
				Value(&consent),
		),
	)
	if err := form.Run(); err != nil {
		g.logger.Warn("push gate: consent prompt failed, defaulting to no", "error", err)
		return false
	}
	return consent
}

// promptConsentPlain is the accessibility-mode fallback: a plain
// stdin read instead of the huh TUI form.
func promptConsentPlain(stdin io.Reader) bool {
	fmt.Fprint(os.Stderr, "[ai-barometer] Allow pushing session notes to your remote? [y/N] ")
	scanner := bufio.NewScanner(stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

// pushOne performs the fetch-then-retry-push sequence for a single
// remote, absorbing every failure as a warning-level log line.
func (g *Gate) pushOne(ctx context.Context, repoRoot, remote string) {
	fetchOutcome, err := g.adapter.FetchNotes(ctx, repoRoot, remote)
	if err != nil {
		g.logger.Warn("push gate: fetch notes failed", "remote", remote, "error", err)
	}

	outcome, err := g.adapter.PushNotes(ctx, repoRoot, remote)
	if err != nil {
		g.logger.Warn("push gate: push notes failed", "remote", remote, "error", err)
		return
	}

	switch outcome {
	case gitadapter.OutcomeOK:
		g.logger.Info("push gate: pushed notes", "remote", remote)
	case gitadapter.OutcomeRejected:
		if fetchOutcome == gitadapter.OutcomeNoUpstream {
			// Remote has no notes ref yet: treat as trivially fast-forward,
			// matching spec.md's explicit rule for this case.
			g.logger.Info("push gate: pushed notes to new remote ref", "remote", remote)
			return
		}
		g.logger.Warn("push gate: push rejected, merging remote notes before retry", "remote", remote)
		if err := g.adapter.MergeNotes(ctx, repoRoot, remote); err != nil {
			g.logger.Warn("push gate: merge notes failed, skipping retry", "remote", remote, "error", err)
			return
		}
		if outcome2, err2 := g.adapter.PushNotes(ctx, repoRoot, remote); err2 != nil || outcome2 != gitadapter.OutcomeOK {
			g.logger.Warn("push gate: retry push failed", "remote", remote, "outcome", outcome2, "error", err2)
		} else {
			g.logger.Info("push gate: pushed notes after merge retry", "remote", remote)
		}
	default:
		g.logger.Warn("push gate: push returned unexpected outcome", "remote", remote, "outcome", outcome)
	}
}
