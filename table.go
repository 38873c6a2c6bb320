package articlestore

import "hash/maphash"

// DefaultTableCapacity is the default number of buckets in a Table.
const DefaultTableCapacity = 200

type pair[K comparable, V any] struct {
	key   K
	value V
}

// Table is a chained hash table with a fixed number of buckets. The bucket
// count never grows, so lookups degrade linearly once the load factor
// climbs well above 1; pick the capacity for the expected record count.
//
// A Table is not safe for concurrent use.
type Table[K comparable, V any] struct {
	buckets [][]pair[K, V]
	count   int
	hash    func(K) uint64
}

// NewTable creates a table with capacity buckets using hash to map keys to
// buckets. A capacity <= 0 falls back to DefaultTableCapacity.
func NewTable[K comparable, V any](capacity int, hash func(K) uint64) *Table[K, V] {
	if capacity <= 0 {
		capacity = DefaultTableCapacity
	}
	return &Table[K, V]{
		buckets: make([][]pair[K, V], capacity),
		hash:    hash,
	}
}

// NewStringTable creates a table keyed by strings, hashed with a per-table
// maphash seed. Bucket placement is stable for the life of the table only.
func NewStringTable[V any](capacity int) *Table[string, V] {
	seed := maphash.MakeSeed()
	return NewTable[string, V](capacity, func(key string) uint64 {
		return maphash.String(seed, key)
	})
}

func (t *Table[K, V]) bucket(key K) int {
	return int(t.hash(key) % uint64(len(t.buckets)))
}

// Insert stores value under key, replacing the value in place if the key
// is already present.
func (t *Table[K, V]) Insert(key K, value V) {
	i := t.bucket(key)
	for j := range t.buckets[i] {
		if t.buckets[i][j].key == key {
			t.buckets[i][j].value = value
			return
		}
	}
	t.buckets[i] = append(t.buckets[i], pair[K, V]{key: key, value: value})
	t.count++
}

// Get returns the value stored under key.
func (t *Table[K, V]) Get(key K) (V, bool) {
	for _, p := range t.buckets[t.bucket(key)] {
		if p.key == key {
			return p.value, true
		}
	}
	var zero V
	return zero, false
}

// Delete removes key and reports whether it was present.
func (t *Table[K, V]) Delete(key K) bool {
	i := t.bucket(key)
	for j, p := range t.buckets[i] {
		if p.key == key {
			t.buckets[i] = append(t.buckets[i][:j], t.buckets[i][j+1:]...)
			t.count--
			return true
		}
	}
	return false
}

// Exists reports whether key is present.
func (t *Table[K, V]) Exists(key K) bool {
	_, ok := t.Get(key)
	return ok
}

// Values returns every value in bucket order, then insertion order within
// a bucket. The order is stable but not meaningful; sort it if needed.
func (t *Table[K, V]) Values() []V {
	values := make([]V, 0, t.count)
	for _, b := range t.buckets {
		for _, p := range b {
			values = append(values, p.value)
		}
	}
	return values
}

// Len returns the number of keys in the table.
func (t *Table[K, V]) Len() int {
	return t.count
}

// Capacity returns the number of buckets.
func (t *Table[K, V]) Capacity() int {
	return len(t.buckets)
}

// TableStats describes how keys are spread over a table's buckets.
type TableStats struct {
	Count         int
	Capacity      int
	LoadFactor    float64
	LongestBucket int
	EmptyBuckets  int
}

// Stats reports the table's occupancy.
func (t *Table[K, V]) Stats() TableStats {
	s := TableStats{
		Count:      t.count,
		Capacity:   len(t.buckets),
		LoadFactor: float64(t.count) / float64(len(t.buckets)),
	}
	for _, b := range t.buckets {
		if len(b) == 0 {
			s.EmptyBuckets++
		}
		if len(b) > s.LongestBucket {
			s.LongestBucket = len(b)
		}
	}
	return s
}
