package articlestore

// Iterator walks the digests present when it was created. Records deleted
// after that point are skipped.
type Iterator struct {
	store   *Store
	digests []string
	index   int
	current Record
}

// Iterator creates an iterator over the articles in the store, in primary
// index order.
func (s *Store) Iterator() *Iterator {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	records := s.primary.Values()
	digests := make([]string, len(records))
	for i, r := range records {
		digests[i] = r.Digest
	}

	return &Iterator{
		store:   s,
		digests: digests,
		index:   -1,
	}
}

// Next advances the iterator to the next article that still exists.
func (it *Iterator) Next() bool {
	for {
		it.index++
		if it.index >= len(it.digests) {
			return false
		}
		r, err := it.store.Get(it.digests[it.index])
		if err == nil {
			it.current = r
			return true
		}
	}
}

// Digest returns the digest of the current article.
func (it *Iterator) Digest() string {
	return it.current.Digest
}

// Record returns the current article.
func (it *Iterator) Record() Record {
	return it.current
}

// Body returns the stored body of the current article.
func (it *Iterator) Body() ([]byte, error) {
	return it.store.ReadBody(it.current.Digest)
}
