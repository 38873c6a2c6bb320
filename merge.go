package articlestore

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// SweepResult lists what Sweep found in the bodies directory.
type SweepResult struct {
	// Removed holds body files deleted because no record referenced them.
	Removed []string
	// Missing holds digests of records whose body file is gone.
	Missing []string
}

// Sweep deletes body files that no record references and reports records
// whose body file is missing. Only files named <uint32 digest>.txt are
// considered; anything else in the directory is left alone. Missing bodies are reported, not repaired.
func (s *Store) Sweep() (SweepResult, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var result SweepResult
	if s.closed {
		return result, ErrClosed
	}

	bodyFiles, err := filepath.Glob(filepath.Join(s.config.BodiesDir, "*.txt"))
	if err != nil {
		return result, fmt.Errorf("%w: failed to glob body files: %w", ErrIOFailure, err)
	}

	dbPath, err := filepath.Abs(s.config.DatabasePath)
	if err != nil {
		return result, fmt.Errorf("%w: failed to resolve database path: %w", ErrIOFailure, err)
	}

	referenced := make(map[string]bool, s.primary.Len())
	for _, r := range s.primary.Values() {
		referenced[r.BodyFileName] = true
		if _, err := os.Stat(s.getBodyPath(r.BodyFileName)); os.IsNotExist(err) {
			result.Missing = append(result.Missing, r.Digest)
		}
	}

	for _, file := range bodyFiles {
		name := filepath.Base(file)
		if referenced[name] || !isBodyFileName(name) {
			continue
		}
		if abs, err := filepath.Abs(file); err == nil && abs == dbPath {
			continue
		}
		if err := s.removeBody(name); err != nil {
			return result, err
		}
		result.Removed = append(result.Removed, name)
		s.logger.Info("removed orphan body file", "file", name)
	}

	slices.Sort(result.Removed)
	slices.Sort(result.Missing)
	return result, nil
}
