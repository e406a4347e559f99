// Package dotdir manages the .ssechat/ and ~/.ssechat directories.
//
// The directory holds config.toml and small JSON state files written by the
// CLI, such as the last assembled chat turn.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the ssechat directory.
	dirName = ".ssechat"

	// HomeEnv names an ssechat directory to use instead of ./.ssechat and
	// ~/.ssechat.
	HomeEnv = "SSECHAT_HOME"
)

// Source records which rule picked a directory.
type Source int

const (
	SourceOverride Source = iota
	SourceEnv
	SourceLocal
	SourceHome
)

func (s Source) String() string {
	switch s {
	case SourceOverride:
		return "--config-dir"
	case SourceEnv:
		return HomeEnv
	case SourceLocal:
		return "local"
	case SourceHome:
		return "home"
	default:
		return "unknown"
	}
}

// Location is a resolved ssechat directory.
type Location struct {
	// Dir is absolute and exists.
	Dir    string
	Source Source
}

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Resolve picks the ssechat directory and creates it if needed.
// Order of precedence is as follows:
//  1. Provided override
//  2. $SSECHAT_HOME
//  3. Local ./.ssechat/ dir, if it already exists
//  4. Home ~/.ssechat/ dir
func (m *Manager) Resolve(overrideDir string) (Location, error) {
	loc, err := m.pick(overrideDir)
	if err != nil {
		return Location{}, err
	}

	if err := os.MkdirAll(loc.Dir, 0o755); err != nil {
		return Location{}, fmt.Errorf("creating ssechat directory %s (%s): %w", loc.Dir, loc.Source, err)
	}

	loc.Dir, err = filepath.Abs(loc.Dir)
	if err != nil {
		return Location{}, err
	}
	return loc, nil
}

// Target returns the absolute path of the resolved ssechat directory.
func (m *Manager) Target(overrideDir string) (string, error) {
	loc, err := m.Resolve(overrideDir)
	return loc.Dir, err
}

func (m *Manager) pick(overrideDir string) (Location, error) {
	if overrideDir != "" {
		return Location{Dir: overrideDir, Source: SourceOverride}, nil
	}

	if env := os.Getenv(HomeEnv); env != "" {
		return Location{Dir: env, Source: SourceEnv}, nil
	}

	cwd, err := os.Getwd()
	if err == nil {
		local := filepath.Join(cwd, dirName)
		if info, statErr := os.Stat(local); statErr == nil && info.IsDir() {
			return Location{Dir: local, Source: SourceLocal}, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Location{}, fmt.Errorf("getting home directory: %w", err)
	}
	return Location{Dir: filepath.Join(home, dirName), Source: SourceHome}, nil
}
