package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LastTurnState is the file written by "ssechat chat" after every turn.
const LastTurnState = "last_turn"

// SaveState writes v as indented JSON to <dir>/<name>.json.
func (m *Manager) SaveState(name string, v any, overrideDir string) error {
	path, err := m.statePath(name, overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s state: %w", name, err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s state: %w", name, err)
	}

	return nil
}

// LoadState reads <dir>/<name>.json into v. It reports false, with no error,
// when the state file does not exist.
func (m *Manager) LoadState(name string, v any, overrideDir string) (bool, error) {
	path, err := m.statePath(name, overrideDir)
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s state: %w", name, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parsing %s state: %w", name, err)
	}

	return true, nil
}

// ClearState removes <dir>/<name>.json. Removing a missing file is not an
// error.
func (m *Manager) ClearState(name, overrideDir string) error {
	path, err := m.statePath(name, overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s state: %w", name, err)
	}

	return nil
}

func (m *Manager) statePath(name, overrideDir string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid state name %q", name)
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, name+".json"), nil
}
