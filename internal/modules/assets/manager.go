// Package assets discovers candidate tickers from YAML lists on disk.
//
// The layout is one subdirectory per category, each holding *.yml files with
// a top-level tickers list:
//
//	assets/ETFs/core.yml
//	  tickers: [SPY, AGG, GLD]
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrUnknownCategory is returned when a category directory does not exist.
var ErrUnknownCategory = errors.New("unknown asset category")

type tickerFile struct {
	Tickers []string `yaml:"tickers"`
}

// Manager reads ticker lists from an assets directory
type Manager struct {
	dir string
	log zerolog.Logger
}

// NewManager creates a manager rooted at dir
func NewManager(dir string, log zerolog.Logger) *Manager {
	return &Manager{
		dir: dir,
		log: log.With().Str("component", "assets").Logger(),
	}
}

// LoadTickers returns the unique, sorted tickers of one category. An empty
// category searches the whole tree. Malformed files are logged and skipped.
func (m *Manager) LoadTickers(category string) ([]string, error) {
	root := m.dir
	if category != "" {
		if strings.ContainsAny(category, `/\`) || category == ".." {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
		}
		root = filepath.Join(m.dir, category)
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
		}
	}

	files, err := m.ymlFiles(root, category == "")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	for _, path := range files {
		tickers, err := readTickerFile(path)
		if err != nil {
			m.log.Warn().Err(err).Str("file", path).Msg("Skipping malformed asset file")
			continue
		}
		for _, t := range tickers {
			t = strings.TrimSpace(t)
			if t != "" {
				seen[t] = true
			}
		}
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// Discover maps each category directory to its tickers.
func (m *Manager) Discover() (map[string][]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string][]string{}, nil
		}
		return nil, fmt.Errorf("failed to read assets directory: %w", err)
	}

	out := make(map[string][]string)
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || e.Name() == "__pycache__" {
			continue
		}
		tickers, err := m.LoadTickers(e.Name())
		if err != nil {
			return nil, err
		}
		out[e.Name()] = tickers
	}
	return out, nil
}

func (m *Manager) ymlFiles(root string, recursive bool) ([]string, error) {
	if !recursive {
		files, err := filepath.Glob(filepath.Join(root, "*.yml"))
		if err != nil {
			return nil, fmt.Errorf("failed to list asset files: %w", err)
		}
		return files, nil
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return fs.SkipDir
			}
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".yml" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk assets directory: %w", err)
	}
	return files, nil
}

func readTickerFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f tickerFile
	if err := yaml.Unmarshal(content, &f); err != nil {
		return nil, err
	}
	return f.Tickers, nil
}
