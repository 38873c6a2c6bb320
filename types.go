package articlestore

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Record is the metadata of one stored article. Digest and Title never
// change after creation; Authors and Year are updated through Store.Update.
type Record struct {
	Digest       string
	Title        string
	Authors      string
	Year         int
	BodyFileName string
}

// Store is an article store backed by a flat database file and a directory
// of body files. All methods are serialized by an internal lock, and a
// process-level file lock keeps a second process from opening the same
// database.
type Store struct {
	config    *Config
	logger    *slog.Logger
	primary   *Table[string, *Record]
	secondary *secondaryIndexes
	skipped   []MalformedLineError
	lock      *fileLock
	mutex     sync.RWMutex
	closed    bool
}

// UpdateFields lists the mutable fields to change; nil leaves a field as is.
type UpdateFields struct {
	Authors *string
	Year    *int
}

var (
	ErrDuplicateContent = errors.New("article with identical content already exists")
	ErrNotFound         = errors.New("article not found")
	ErrIOFailure        = errors.New("I/O operation failed")
	ErrMalformedRecord  = errors.New("malformed record")
	ErrInvalidField     = errors.New("invalid field value")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrLocked           = errors.New("database is locked by another process")
	ErrClosed           = errors.New("store is closed")
	ErrCorruptSnapshot  = errors.New("corrupt snapshot")
)

// MalformedLineError describes a database line that could not be parsed.
type MalformedLineError struct {
	Line   int
	Text   string
	Reason string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func (e *MalformedLineError) Unwrap() error {
	return ErrMalformedRecord
}

// Outcome converts the error returned by a store operation into the
// success flag and message shown to a user.
func Outcome(err error) (bool, string) {
	if err == nil {
		return true, "ok"
	}
	return false, err.Error()
}
