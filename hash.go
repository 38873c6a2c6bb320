package articlestore

import (
	"fmt"
	"hash/fnv"
	"io"
	"strconv"
)

// Digest computes the 32-bit FNV-1 hash of content (offset basis
// 2166136261, prime 16777619, multiply then XOR, bytes in order).
func Digest(content []byte) uint32 {
	h := fnv.New32()
	h.Write(content)
	return h.Sum32()
}

// DigestString returns the decimal string form of Digest, the form used as
// a record's primary key.
func DigestString(content []byte) string {
	return strconv.FormatUint(uint64(Digest(content)), 10)
}

// DigestReader reads r to the end and returns both the content and its
// digest string.
func DigestReader(r io.Reader) ([]byte, string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read content: %w", ErrIOFailure, err)
	}
	return content, DigestString(content), nil
}
