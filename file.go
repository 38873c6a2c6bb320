package articlestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

func bodyFileName(digest string) string {
	return digest + ".txt"
}

// isBodyFileName reports whether name has the form bodyFileName produces
// for a canonical decimal uint32 digest.
func isBodyFileName(name string) bool {
	digest, ok := strings.CutSuffix(name, ".txt")
	return ok && isDigest(digest)
}

func isDigest(digest string) bool {
	n, err := strconv.ParseUint(digest, 10, 32)
	return err == nil && strconv.FormatUint(n, 10) == digest
}

func (s *Store) getBodyPath(name string) string {
	return filepath.Join(s.config.BodiesDir, name)
}

func (s *Store) writeBody(name string, content []byte) error {
	path := s.getBodyPath(name)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: failed to create body file: %w", ErrIOFailure, err)
	}
	if _, err := file.Write(content); err != nil {
		file.Close()
		os.Remove(path)
		return fmt.Errorf("%w: failed to write body file: %w", ErrIOFailure, err)
	}
	if s.config.SyncWrites {
		if err := file.Sync(); err != nil {
			file.Close()
			os.Remove(path)
			return fmt.Errorf("%w: failed to sync body file: %w", ErrIOFailure, err)
		}
	}
	if err := file.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("%w: failed to close body file: %w", ErrIOFailure, err)
	}
	return nil
}

// removeBody deletes a body file; a file that is already gone is not an
// error.
func (s *Store) removeBody(name string) error {
	err := os.Remove(s.getBodyPath(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: failed to delete body file: %w", ErrIOFailure, err)
	}
	return nil
}

// readBody maps the body file read-only and returns a copy of its bytes.
func (s *Store) readBody(name string) ([]byte, error) {
	file, err := os.Open(s.getBodyPath(name))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open body file: %w", ErrIOFailure, err)
	}
	defer file.Close()

	fi, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to stat body file: %w", ErrIOFailure, err)
	}
	size := fi.Size()
	if size == 0 {
		return []byte{}, nil
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to mmap body file: %w", ErrIOFailure, err)
	}
	content := make([]byte, len(data))
	copy(content, data)
	if err := unix.Munmap(data); err != nil {
		return nil, fmt.Errorf("%w: failed to unmap body file: %w", ErrIOFailure, err)
	}
	return content, nil
}

// saveDatabase rewrites the whole database file from the primary index.
func (s *Store) saveDatabase() error {
	return writeDatabaseFile(s.config.DatabasePath, s.primary.Values(), s.config.SyncWrites)
}

// writeDatabaseFile writes records to a temporary file next to path and
// renames it over path, so readers see either the old or the new file.
func writeDatabaseFile(path string, records []*Record, sync bool) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: failed to create database file: %w", ErrIOFailure, err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteRecords(tmp, records); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: failed to write database file: %w", ErrIOFailure, err)
	}
	if sync {
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			return fmt.Errorf("%w: failed to sync database file: %w", ErrIOFailure, err)
		}
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: failed to close database file: %w", ErrIOFailure, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: failed to replace database file: %w", ErrIOFailure, err)
	}
	return nil
}

// loadDatabase fills the indexes from the database file. A missing file
// is an empty store.
func (s *Store) loadDatabase() error {
	file, err := os.Open(s.config.DatabasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: failed to open database file: %w", ErrIOFailure, err)
	}
	defer file.Close()

	records, skipped, err := ReadRecords(file)
	if err != nil {
		return fmt.Errorf("%w: failed to read database file: %w", ErrIOFailure, err)
	}
	for _, r := range records {
		if old, ok := s.primary.Get(r.Digest); ok {
			s.secondary.remove(old)
			s.logger.Warn("duplicate digest in database, keeping last", "digest", r.Digest)
		}
		s.primary.Insert(r.Digest, r)
		s.secondary.add(r)
	}
	for i := range skipped {
		s.logger.Warn("skipping malformed database line",
			"path", s.config.DatabasePath, "line", skipped[i].Line, "reason", skipped[i].Reason)
	}
	s.skipped = skipped
	return nil
}

// fileLock is an exclusive advisory lock held for the life of a Store.
type fileLock struct {
	file *os.File
}

func acquireLock(path string) (*fileLock, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open lock file: %w", ErrIOFailure, err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		return nil, fmt.Errorf("%w: failed to lock %s: %w", ErrIOFailure, path, err)
	}
	return &fileLock{file: file}, nil
}

func (l *fileLock) release() error {
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		return err
	}
	return l.file.Close()
}
