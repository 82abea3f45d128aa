// Package settings loads ai-barometer's local, non-Git-config
// settings: the hook enable/disable flag is Git config (see
// internal/gitadapter), but the hydration default window and an
// optional notes-ref override for advanced users live in a small JSON
// file plus an optional YAML layer of human-editable defaults.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/entireio/ai-barometer/internal/jsonutil"
)

// FileName is the JSON settings file written by `install` and read by
// every other command.
const FileName = "settings.json"

// YAMLFileName is the optional, hand-edited defaults file. Git config
// always wins over both; the JSON file wins over the YAML file.
const YAMLFileName = "config.yaml"

// Settings is ai-barometer's local configuration, layered underneath
// Git config.
type Settings struct {
	DefaultSinceDays int    `json:"default_since_days,omitempty" yaml:"default_since_days,omitempty"`
	NotesRefOverride string `json:"notes_ref_override,omitempty" yaml:"notes_ref_override,omitempty"`
}

// defaultSettings returns the built-in defaults applied when neither
// file sets a value.
func defaultSettings() Settings {
	return Settings{DefaultSinceDays: 7}
}

// Load reads settings.json and config.yaml under
// $HOME/.ai-barometer, applying JSON over YAML over built-in
// defaults. Missing files are not an error.
func Load(home string) (Settings, error) {
	s := defaultSettings()

	dir := filepath.Join(home, ".ai-barometer")

	yamlPath := filepath.Join(dir, YAMLFileName)
	if data, err := os.ReadFile(yamlPath); err == nil {
		var y Settings
		if err := yaml.Unmarshal(data, &y); err != nil {
			return Settings{}, fmt.Errorf("parsing %s: %w", yamlPath, err)
		}
		mergeInto(&s, y)
	} else if !os.IsNotExist(err) {
		return Settings{}, fmt.Errorf("reading %s: %w", yamlPath, err)
	}

	jsonPath := filepath.Join(dir, FileName)
	if data, err := os.ReadFile(jsonPath); err == nil {
		var j Settings
		if err := json.Unmarshal(data, &j); err != nil {
			return Settings{}, fmt.Errorf("parsing %s: %w", jsonPath, err)
		}
		mergeInto(&s, j)
	} else if !os.IsNotExist(err) {
		return Settings{}, fmt.Errorf("reading %s: %w", jsonPath, err)
	}

	return s, nil
}

// mergeInto copies every non-zero field of overlay onto base.
func mergeInto(base *Settings, overlay Settings) {
	if overlay.DefaultSinceDays != 0 {
		base.DefaultSinceDays = overlay.DefaultSinceDays
	}
	if overlay.NotesRefOverride != "" {
		base.NotesRefOverride = overlay.NotesRefOverride
	}
}

// Save writes settings.json, overwriting any existing file, with a
// trailing newline.
func Save(home string, s Settings) error {
	dir := filepath.Join(home, ".ai-barometer")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating settings dir: %w", err)
	}

	buf, err := jsonutil.MarshalIndented(s)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}

	return os.WriteFile(filepath.Join(dir, FileName), buf, 0o644)
}
