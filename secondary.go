package articlestore

import (
	"slices"
	"strings"
)

// secondaryIndexes maps lower-cased authors and years to the digests of
// the records carrying them. Entries are digests, resolved through the
// primary table, so a record's fields live in exactly one place.
type secondaryIndexes struct {
	byAuthor map[string][]string
	byYear   map[int][]string
}

func newSecondaryIndexes() *secondaryIndexes {
	return &secondaryIndexes{
		byAuthor: make(map[string][]string),
		byYear:   make(map[int][]string),
	}
}

func authorKey(authors string) string {
	return strings.ToLower(authors)
}

func (s *secondaryIndexes) add(r *Record) {
	k := authorKey(r.Authors)
	s.byAuthor[k] = append(s.byAuthor[k], r.Digest)
	s.byYear[r.Year] = append(s.byYear[r.Year], r.Digest)
}

func (s *secondaryIndexes) remove(r *Record) {
	k := authorKey(r.Authors)
	if digests := removeDigest(s.byAuthor[k], r.Digest); len(digests) > 0 {
		s.byAuthor[k] = digests
	} else {
		delete(s.byAuthor, k)
	}
	if digests := removeDigest(s.byYear[r.Year], r.Digest); len(digests) > 0 {
		s.byYear[r.Year] = digests
	} else {
		delete(s.byYear, r.Year)
	}
}

// relocate moves r from the buckets for its old author/year to the buckets
// for its current values.
func (s *secondaryIndexes) relocate(r *Record, oldAuthors string, oldYear int) {
	s.remove(&Record{Digest: r.Digest, Authors: oldAuthors, Year: oldYear})
	s.add(r)
}

func (s *secondaryIndexes) author(authors string) []string {
	return s.byAuthor[authorKey(authors)]
}

func (s *secondaryIndexes) year(year int) []string {
	return s.byYear[year]
}

func removeDigest(digests []string, digest string) []string {
	i := slices.Index(digests, digest)
	if i < 0 {
		return digests
	}
	return slices.Delete(digests, i, i+1)
}
