package runstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// ErrRunNotFound is returned by Load for an unknown run identifier.
var ErrRunNotFound = errors.New("run not found")

// Store keeps one JSON file per run under a directory.
type Store struct {
	dir    string
	logger *zap.Logger
}

// New creates the store, creating the directory if needed.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir %s: %w", dir, err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Dir returns the directory runs are written to.
func (s *Store) Dir() string { return s.dir }

// Save writes the run record to run_<id>.json.
func (s *Store) Save(result *RunResult) error {
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run %s: %w", result.RunID, err)
	}
	path := s.path(result.RunID)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write run file %s: %w", path, err)
	}
	s.logger.Debug("saved run", zap.String("run_id", result.RunID), zap.String("path", path))
	return nil
}

// Load reads one run record back by identifier.
func (s *Store) Load(runID string) (*RunResult, error) {
	raw, err := os.ReadFile(s.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
		}
		return nil, fmt.Errorf("read run %s: %w", runID, err)
	}
	var result RunResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("parse run %s: %w", runID, err)
	}
	return &result, nil
}

// List reads all persisted runs, oldest first. Files that do not look like
// run records are skipped.
func (s *Store) List() ([]*RunResult, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read run dir %s: %w", s.dir, err)
	}
	var results []*RunResult
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "run_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read run file %s: %w", name, err)
		}
		var result RunResult
		if err := json.Unmarshal(raw, &result); err != nil {
			s.logger.Warn("skipping malformed run file", zap.String("file", name), zap.Error(err))
			continue
		}
		results = append(results, &result)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Timestamp.Before(results[j].Timestamp) })
	return results, nil
}

func (s *Store) path(runID string) string {
	return filepath.Join(s.dir, "run_"+runID+".json")
}
