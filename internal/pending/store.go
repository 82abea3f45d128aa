// Package pending implements the per-repository retry store: one
// JSON record per commit with no currently matched session, written
// atomically via write-to-temp-then-rename, with a bounded retry
// ceiling after which a record is abandoned.
package pending

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/entireio/ai-barometer/internal/jsonutil"
	"github.com/entireio/ai-barometer/internal/model"
)

// Fingerprint returns a stable, filesystem-safe encoding of an
// absolute repository root, used as the per-repo subdirectory name
// under the pending root.
func Fingerprint(repoRoot string) string {
	sum := sha256.Sum256([]byte(repoRoot))
	return hex.EncodeToString(sum[:])
}

// Store manages pending records under root (typically
// $HOME/.ai-barometer/pending).
type Store struct {
	root string
}

// New returns a Store rooted at root.
func New(root string) *Store {
	return &Store{root: root}
}

func (s *Store) repoDir(repoRoot string) string {
	return filepath.Join(s.root, Fingerprint(repoRoot))
}

func (s *Store) recordPath(repoRoot, hash string) string {
	return filepath.Join(s.repoDir(repoRoot), hash+".json")
}

// Upsert increments the attempt counter for hash if a record already
// exists, or creates one with attempts = 1. If the incremented count
// reaches the retry ceiling, the record is removed instead of being
// rewritten, and the caller observes Abandoned=true.
func (s *Store) Upsert(repoRoot, hash string, headTime, now int64) (rec model.PendingRecord, abandoned bool, err error) {
	if err := model.ValidateCommitHash(hash); err != nil {
		return model.PendingRecord{}, false, err
	}

	dir := s.repoDir(repoRoot)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return model.PendingRecord{}, false, fmt.Errorf("creating pending dir: %w", err)
	}

	path := s.recordPath(repoRoot, hash)
	existing, ok, err := readRecord(path)
	if err != nil {
		return model.PendingRecord{}, false, err
	}

	if ok {
		rec = existing
		rec.Attempts++
	} else {
		rec = model.PendingRecord{
			CommitHash: hash,
			HeadTime:   headTime,
			Attempts:   1,
			FirstSeen:  now,
		}
	}

	if rec.Abandoned() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return rec, true, fmt.Errorf("removing abandoned record: %w", rmErr)
		}
		return rec, true, nil
	}

	if err := writeAtomic(path, rec); err != nil {
		return rec, false, err
	}
	return rec, false, nil
}

// List returns every well-formed record for repoRoot. Malformed files
// are skipped, not deleted, so operators have a breadcrumb to inspect.
func (s *Store) List(repoRoot string) ([]model.PendingRecord, error) {
	dir := s.repoDir(repoRoot)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing pending dir: %w", err)
	}

	var out []model.PendingRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rec, ok, err := readRecord(filepath.Join(dir, e.Name()))
		if err != nil || !ok {
			continue // malformed file left in place as a breadcrumb
		}
		out = append(out, rec)
	}
	return out, nil
}

// Remove deletes the pending record for hash, if any. Absence is not
// an error.
func (s *Store) Remove(repoRoot, hash string) error {
	err := os.Remove(s.recordPath(repoRoot, hash))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing pending record: %w", err)
	}
	return nil
}

func readRecord(path string) (model.PendingRecord, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return model.PendingRecord{}, false, nil
	}
	if err != nil {
		return model.PendingRecord{}, false, fmt.Errorf("reading pending record: %w", err)
	}
	var rec model.PendingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.PendingRecord{}, false, nil // malformed: treat as absent, caller skips
	}
	return rec, true, nil
}

func writeAtomic(path string, rec model.PendingRecord) error {
	data, err := jsonutil.MarshalIndented(rec)
	if err != nil {
		return fmt.Errorf("marshaling pending record: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("writing pending record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming pending record: %w", err)
	}
	return nil
}
