// Package scanner performs the streaming substring search that
// correlates a commit hash to a session transcript, extracts session
// metadata from a matched file, verifies the match against the real
// repository, and (for hydration) extracts every commit hash a file
// references.
package scanner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/entireio/ai-barometer/internal/gitadapter"
	"github.com/entireio/ai-barometer/internal/model"
)

// scannerBufferSize bounds the longest single line this package will
// buffer; transcripts can contain very large tool-output lines.
const scannerBufferSize = 10 * 1024 * 1024

// FindSessionForCommit scans files in order, returning the first file
// whose content contains hash as a plain byte substring (either the
// full 40-char form or the 7-char short form). Scanning of a file
// stops at first match, and no file is ever loaded in full: each is
// read line by line. hash must already be a validated full commit
// hash; shorter inputs are rejected.
func FindSessionForCommit(files []string, hash string) (model.Match, bool, error) {
	if err := model.ValidateFullCommitHash(hash); err != nil {
		return model.Match{}, false, err
	}
	short := model.ShortHash(hash)
	full := []byte(hash)
	shortBytes := []byte(short)

	for _, file := range files {
		found, err := fileContainsHash(file, full, shortBytes)
		if err != nil {
			continue // unreadable file: skip silently, not fatal to the search
		}
		if found {
			meta := ParseSessionMetadata(file)
			return model.Match{File: file, Metadata: meta}, true, nil
		}
	}
	return model.Match{}, false, nil
}

func fileContainsHash(path string, full, short []byte) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), scannerBufferSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if bytes.Contains(line, full) || bytes.Contains(line, short) {
			return true, nil
		}
	}
	return false, scanner.Err()
}

// ParseSessionMetadata streams file line by line, parsing each as a
// single JSON value and ignoring lines that fail to parse. The first
// occurrence of session_id wins; the first occurrence of cwd (under
// any of cwd, workdir, working_directory) wins. Scanning stops once
// both fields are set. If metadata is never found, an empty record is
// returned with agent_kind inferred from the file path alone.
func ParseSessionMetadata(path string) model.SessionMetadata {
	meta := model.SessionMetadata{AgentKind: model.InferAgentKind(path)}

	f, err := os.Open(path)
	if err != nil {
		return meta
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), scannerBufferSize)
	for scanner.Scan() {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			continue
		}
		if meta.SessionID == "" {
			if v, ok := stringField(raw, "session_id"); ok {
				meta.SessionID = v
			}
		}
		if meta.Cwd == "" {
			for _, key := range []string{"cwd", "workdir", "working_directory"} {
				if v, ok := stringField(raw, key); ok {
					meta.Cwd = v
					break
				}
			}
		}
		if meta.SessionID != "" && meta.Cwd != "" {
			break
		}
	}
	return meta
}

func stringField(raw map[string]json.RawMessage, key string) (string, bool) {
	v, ok := raw[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, s != ""
}

// VerifyMatch reports whether metadata genuinely belongs to the
// repository at repoRoot: its cwd must be set, the Git repo root
// discovered from that cwd must canonicalize to repoRoot, and the
// hash must resolve to a real commit from that cwd. Canonicalization
// failures fall back to raw string comparison, a safe-negative
// direction that only ever causes an extra retry.
func VerifyMatch(ctx context.Context, repoRoot string, metadata model.SessionMetadata, hash string, adapter *gitadapter.Adapter) bool {
	if metadata.Cwd == "" {
		return false
	}

	candidateRoot, err := gitadapter.RepoRootFromPath(metadata.Cwd)
	if err != nil {
		candidateRoot = metadata.Cwd
	}
	if c, err := filepath.EvalSymlinks(candidateRoot); err == nil {
		candidateRoot = c
	}
	wantRoot := repoRoot
	if c, err := filepath.EvalSymlinks(repoRoot); err == nil {
		wantRoot = c
	}
	if candidateRoot != wantRoot {
		return false
	}

	exists, err := adapter.CommitExists(ctx, metadata.Cwd, hash)
	if err != nil || !exists {
		return false
	}
	return true
}

// ExtractCommitHashes streams file and returns the set of every
// maximal run of exactly 40 lowercase (after folding) hex characters.
// Runs of 39 or 41 characters do not match.
func ExtractCommitHashes(path string) (map[string]struct{}, error) {
	result := make(map[string]struct{})

	f, err := os.Open(path)
	if err != nil {
		return result, err
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, 64*1024)
	var run []byte
	flush := func() {
		if len(run) == model.FullHashLen {
			result[string(run)] = struct{}{}
		}
		run = run[:0]
	}
	for {
		b, err := reader.ReadByte()
		if err != nil {
			flush()
			if err == io.EOF {
				return result, nil
			}
			return result, err
		}
		if isHexByte(b) {
			run = append(run, lowerHexByte(b))
			continue
		}
		flush()
	}
}

func isHexByte(b byte) bool {
	switch {
	case b >= '0' && b <= '9':
		return true
	case b >= 'a' && b <= 'f':
		return true
	case b >= 'A' && b <= 'F':
		return true
	default:
		return false
	}
}

func lowerHexByte(b byte) byte {
	if b >= 'A' && b <= 'F' {
		return b - 'A' + 'a'
	}
	return b
}
