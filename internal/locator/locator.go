// Package locator discovers on-disk transcript directories for the
// supported coding agents and enumerates candidate transcript files
// filtered by modification time. It never errors on a missing home
// directory or agent root: absence of logs is not a failure mode.
package locator

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/entireio/ai-barometer/internal/model"
)

// nonAlphanumericRegex matches any character that is not a letter or
// digit, mirroring the agent's own project-directory encoding.
var nonAlphanumericRegex = regexp.MustCompile(`[^a-zA-Z0-9]`)

// EncodeClaudeRepoPath converts an absolute repo path into the form
// Claude Code uses for its project directory name: every non-
// alphanumeric character becomes a dash.
func EncodeClaudeRepoPath(repoPath string) string {
	return nonAlphanumericRegex.ReplaceAllString(repoPath, "-")
}

// ClaudeProjectDirs returns every directory under
// $HOME/.claude/projects whose name contains the encoded form of
// repoPath, tolerating arbitrary prefixes/suffixes the agent appends.
// Returns an empty slice, never an error, if $HOME or the projects
// root does not exist.
func ClaudeProjectDirs(home, repoPath string) []string {
	root := filepath.Join(home, ".claude", "projects")
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	needle := EncodeClaudeRepoPath(repoPath)
	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.Contains(e.Name(), needle) {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	return dirs
}

// CodexSessionDirs returns every child directory of
// $HOME/.codex/sessions, unconditionally: Codex sessions are not
// scoped to a repository, so every directory is a candidate.
func CodexSessionDirs(home string) []string {
	root := filepath.Join(home, ".codex", "sessions")
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	return dirs
}

// TaggedDir is one candidate transcript directory, tagged with the
// agent kind whose convention produced it.
type TaggedDir struct {
	Path string
	Kind model.AgentKind
}

// Discover returns every transcript directory relevant to repoPath,
// across both agent conventions.
func Discover(home, repoPath string) []TaggedDir {
	var out []TaggedDir
	for _, d := range ClaudeProjectDirs(home, repoPath) {
		out = append(out, TaggedDir{Path: d, Kind: model.AgentClaude})
	}
	for _, d := range CodexSessionDirs(home) {
		out = append(out, TaggedDir{Path: d, Kind: model.AgentCodex})
	}
	return out
}

// CandidateFiles enumerates *.jsonl files directly within dirs whose
// modification time falls within window of anchor (both directions).
// Unreadable directories and entries are skipped silently; non-UTF-8
// entry names are handled like any other name; symlinked files are
// followed via os.Stat.
func CandidateFiles(dirs []string, anchor time.Time, window time.Duration) []string {
	lower := anchor.Add(-window)
	upper := anchor.Add(window)
	var out []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
				continue
			}
			path := filepath.Join(dir, e.Name())
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			mt := info.ModTime()
			if mt.Before(lower) || mt.After(upper) {
				continue
			}
			out = append(out, path)
		}
	}
	return out
}

// RecentFiles is the one-sided variant used by hydration: files with
// mtime >= now - since.
func RecentFiles(dirs []string, now time.Time, since time.Duration) []string {
	cutoff := now.Add(-since)
	var out []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
				continue
			}
			path := filepath.Join(dir, e.Name())
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				continue
			}
			out = append(out, path)
		}
	}
	return out
}
