package articlestore

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"unicode/utf8"
)

// Open opens the article store described by opts, creating the bodies
// directory if needed and loading the database file.
func Open(opts ...ConfOption) (*Store, error) {
	config, lock, err := prepare(opts)
	if err != nil {
		return nil, err
	}
	return openLocked(config, lock)
}

// prepare builds and validates the configuration, creates the bodies
// directory and takes the database lock.
func prepare(opts []ConfOption) (*Config, *fileLock, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	config.Normalize()
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(config.BodiesDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to create bodies directory: %w", ErrIOFailure, err)
	}

	lock, err := acquireLock(config.DatabasePath + ".lock")
	if err != nil {
		return nil, nil, err
	}
	return config, lock, nil
}

// openLocked loads the store while lock is held. The lock is released if
// loading fails.
func openLocked(config *Config, lock *fileLock) (*Store, error) {
	s := &Store{
		config:    config,
		logger:    config.Logger,
		primary:   NewStringTable[*Record](config.TableCapacity),
		secondary: newSecondaryIndexes(),
		lock:      lock,
	}

	if err := s.loadDatabase(); err != nil {
		lock.release()
		return nil, err
	}

	s.logger.Info("article store opened",
		"database", config.DatabasePath,
		"records", s.primary.Len(),
		"skipped", len(s.skipped))

	return s, nil
}

// Add reads an article body from content and stores it with the given
// metadata. The body must be UTF-8 text; it is hashed and stored byte for
// byte, line endings included. It fails with ErrDuplicateContent if an
// article with the same digest is already stored.
func (s *Store) Add(title, authors string, year int, content io.Reader) (Record, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return Record{}, ErrClosed
	}
	if err := validateField("title", title); err != nil {
		return Record{}, err
	}
	if err := validateField("authors", authors); err != nil {
		return Record{}, err
	}

	body, digest, err := DigestReader(content)
	if err != nil {
		return Record{}, err
	}
	if !utf8.Valid(body) {
		return Record{}, fmt.Errorf("%w: content is not valid UTF-8 text", ErrInvalidField)
	}
	if s.primary.Exists(digest) {
		return Record{}, fmt.Errorf("%w: digest %s", ErrDuplicateContent, digest)
	}

	r := &Record{
		Digest:       digest,
		Title:        title,
		Authors:      authors,
		Year:         year,
		BodyFileName: bodyFileName(digest),
	}
	if err := s.writeBody(r.BodyFileName, body); err != nil {
		return Record{}, err
	}

	s.primary.Insert(digest, r)
	s.secondary.add(r)

	if err := s.saveDatabase(); err != nil {
		s.secondary.remove(r)
		s.primary.Delete(digest)
		s.removeBody(r.BodyFileName)
		return Record{}, err
	}

	s.logger.Debug("article added", "digest", digest, "title", title)
	return *r, nil
}

// AddFile is Add with the body read from the file at path.
func (s *Store) AddFile(title, authors string, year int, path string) (Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return Record{}, fmt.Errorf("%w: failed to open %s: %w", ErrIOFailure, path, err)
	}
	defer file.Close()
	return s.Add(title, authors, year, file)
}

// Update changes the authors and/or year of the article with digest. The
// title cannot be changed.
func (s *Store) Update(digest string, fields UpdateFields) (Record, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return Record{}, ErrClosed
	}
	r, ok := s.primary.Get(digest)
	if !ok {
		return Record{}, fmt.Errorf("%w: digest %s", ErrNotFound, digest)
	}
	if fields.Authors != nil {
		if err := validateField("authors", *fields.Authors); err != nil {
			return Record{}, err
		}
	}

	oldAuthors, oldYear := r.Authors, r.Year
	if fields.Authors != nil {
		r.Authors = *fields.Authors
	}
	if fields.Year != nil {
		r.Year = *fields.Year
	}
	s.secondary.relocate(r, oldAuthors, oldYear)

	if err := s.saveDatabase(); err != nil {
		newAuthors, newYear := r.Authors, r.Year
		r.Authors, r.Year = oldAuthors, oldYear
		s.secondary.relocate(r, newAuthors, newYear)
		return Record{}, err
	}

	s.logger.Debug("article updated", "digest", digest, "authors", r.Authors, "year", r.Year)
	return *r, nil
}

// Delete removes the article with digest and its body file. If the
// database rewrite fails the record is still gone from memory, and the
// next successful rewrite drops it from the file.
func (s *Store) Delete(digest string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return ErrClosed
	}
	r, ok := s.primary.Get(digest)
	if !ok {
		return fmt.Errorf("%w: digest %s", ErrNotFound, digest)
	}
	if err := s.removeBody(r.BodyFileName); err != nil {
		return err
	}

	s.secondary.remove(r)
	s.primary.Delete(digest)

	if err := s.saveDatabase(); err != nil {
		return err
	}

	s.logger.Debug("article deleted", "digest", digest)
	return nil
}

// Get returns the article with digest.
func (s *Store) Get(digest string) (Record, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.closed {
		return Record{}, ErrClosed
	}
	r, ok := s.primary.Get(digest)
	if !ok {
		return Record{}, fmt.Errorf("%w: digest %s", ErrNotFound, digest)
	}
	return *r, nil
}

// ReadBody returns the stored body of the article with digest.
func (s *Store) ReadBody(digest string) ([]byte, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	r, ok := s.primary.Get(digest)
	if !ok {
		return nil, fmt.Errorf("%w: digest %s", ErrNotFound, digest)
	}
	return s.readBody(r.BodyFileName)
}

// FindByAuthor returns the articles whose authors match author, ignoring
// case, sorted by title.
func (s *Store) FindByAuthor(author string) []Record {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.sortedByTitle(s.resolve(s.secondary.author(author)))
}

// FindByYear returns the articles published in year, sorted by title.
func (s *Store) FindByYear(year int) []Record {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.sortedByTitle(s.resolve(s.secondary.year(year)))
}

// ListByTitle returns every article sorted by title, ignoring case.
func (s *Store) ListByTitle() []Record {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.sortedByTitle(s.primary.Values())
}

// ListByAuthor returns every article sorted by authors, ignoring case.
func (s *Store) ListByAuthor() []Record {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return sortRecords(s.primary.Values(), func(r *Record) string { return r.Authors })
}

// Len returns the number of stored articles.
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.primary.Len()
}

// Stats reports the occupancy of the primary index.
func (s *Store) Stats() TableStats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.primary.Stats()
}

// LoadReport returns the database lines skipped as malformed when the store
// was opened.
func (s *Store) LoadReport() []MalformedLineError {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return slices.Clone(s.skipped)
}

// Close releases the database lock. The store cannot be used afterwards.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.lock.release(); err != nil {
		return fmt.Errorf("%w: failed to release lock: %w", ErrIOFailure, err)
	}
	return nil
}

func (s *Store) resolve(digests []string) []*Record {
	records := make([]*Record, 0, len(digests))
	for _, d := range digests {
		if r, ok := s.primary.Get(d); ok {
			records = append(records, r)
		}
	}
	return records
}

func (s *Store) sortedByTitle(records []*Record) []Record {
	return sortRecords(records, func(r *Record) string { return r.Title })
}

// sortRecords copies records sorted case-insensitively by field, breaking
// ties by digest so the order does not depend on bucket placement.
func sortRecords(records []*Record, field func(*Record) string) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = *r
	}
	slices.SortFunc(out, func(a, b Record) int {
		if c := cmp.Compare(strings.ToLower(field(&a)), strings.ToLower(field(&b))); c != 0 {
			return c
		}
		return cmp.Compare(a.Digest, b.Digest)
	})
	return out
}
