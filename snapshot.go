package articlestore

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

const (
	snapshotManifestName = "manifest.cbor"
	snapshotDatabaseName = "database.txt"
	snapshotBodiesDir    = "bodies"
	snapshotBodySuffix   = ".zst"
	snapshotVersion      = 1
)

// SnapshotManifest describes the contents of a snapshot directory.
type SnapshotManifest struct {
	Version   int             `cbor:"version"`
	ID        string          `cbor:"id"`
	CreatedAt int64           `cbor:"created_at"`
	Entries   []SnapshotEntry `cbor:"entries"`
}

// SnapshotEntry is one article in a snapshot. Checksum is the BLAKE3-256
// of the uncompressed body.
type SnapshotEntry struct {
	Digest       string `cbor:"digest"`
	Title        string `cbor:"title"`
	Authors      string `cbor:"authors"`
	Year         int    `cbor:"year"`
	BodyFileName string `cbor:"body_file"`
	Size         int64  `cbor:"size"`
	Checksum     []byte `cbor:"checksum"`
}

var (
	manifestEncMode cbor.EncMode
	zstdEncoder     *zstd.Encoder
	zstdDecoder     *zstd.Decoder
)

func init() {
	var err error
	manifestEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("articlestore: CBOR encoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithZeroFrames(true),
	)
	if err != nil {
		panic("articlestore: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("articlestore: zstd decoder initialization failed: " + err.Error())
	}
}

// Snapshot writes a self-contained copy of the store to snapshotDir: the
// database file, every body compressed with zstd, and a CBOR manifest with
// a checksum per body.
func (s *Store) Snapshot(snapshotDir string) (*SnapshotManifest, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if err := os.MkdirAll(filepath.Join(snapshotDir, snapshotBodiesDir), 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create snapshot directory: %w", ErrIOFailure, err)
	}

	dbDst := filepath.Join(snapshotDir, snapshotDatabaseName)
	if err := writeDatabaseFile(dbDst, s.primary.Values(), s.config.SyncWrites); err != nil {
		return nil, fmt.Errorf("snapshot database: %w", err)
	}

	manifest := &SnapshotManifest{
		Version:   snapshotVersion,
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UnixNano(),
	}
	for _, r := range s.sortedByTitle(s.primary.Values()) {
		body, err := s.readBody(r.BodyFileName)
		if err != nil {
			return nil, fmt.Errorf("snapshot of %s: %w", r.Digest, err)
		}
		sum := blake3.Sum256(body)
		compressed := zstdEncoder.EncodeAll(body, nil)
		path := filepath.Join(snapshotDir, snapshotBodiesDir, r.BodyFileName+snapshotBodySuffix)
		if err := os.WriteFile(path, compressed, 0644); err != nil {
			return nil, fmt.Errorf("%w: failed to write snapshot body: %w", ErrIOFailure, err)
		}
		manifest.Entries = append(manifest.Entries, SnapshotEntry{
			Digest:       r.Digest,
			Title:        r.Title,
			Authors:      r.Authors,
			Year:         r.Year,
			BodyFileName: r.BodyFileName,
			Size:         int64(len(body)),
			Checksum:     sum[:],
		})
	}

	data, err := manifestEncMode.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(snapshotDir, snapshotManifestName), data, 0644); err != nil {
		return nil, fmt.Errorf("%w: failed to write snapshot manifest: %w", ErrIOFailure, err)
	}

	s.logger.Info("snapshot written", "dir", snapshotDir, "id", manifest.ID, "records", len(manifest.Entries))
	return manifest, nil
}

// VerifySnapshot checks that every body in snapshotDir decompresses to the
// size and checksum recorded in the manifest, and that the snapshot's
// database file lists exactly the manifest's articles.
func VerifySnapshot(snapshotDir string) (*SnapshotManifest, error) {
	manifest, err := readManifest(snapshotDir)
	if err != nil {
		return nil, err
	}

	for _, e := range manifest.Entries {
		if _, err := readSnapshotBody(snapshotDir, e); err != nil {
			return nil, err
		}
	}

	records, err := readSnapshotDatabase(snapshotDir)
	if err != nil {
		return nil, err
	}
	listed := make(map[string]bool, len(records))
	for _, r := range records {
		listed[r.Digest] = true
	}
	if len(listed) != len(manifest.Entries) {
		return nil, fmt.Errorf("%w: database lists %d articles, manifest %d",
			ErrCorruptSnapshot, len(listed), len(manifest.Entries))
	}
	for _, e := range manifest.Entries {
		if !listed[e.Digest] {
			return nil, fmt.Errorf("%w: %s missing from database", ErrCorruptSnapshot, e.Digest)
		}
	}
	return manifest, nil
}

// RestoreSnapshot verifies snapshotDir, writes its database file and
// bodies to the locations named by opts, and opens the restored store. The
// target's database lock is taken before anything is written, so a store
// that is open on the target is left untouched.
func RestoreSnapshot(snapshotDir string, opts ...ConfOption) (*Store, error) {
	manifest, err := VerifySnapshot(snapshotDir)
	if err != nil {
		return nil, err
	}
	records, err := readSnapshotDatabase(snapshotDir)
	if err != nil {
		return nil, err
	}

	config, lock, err := prepare(opts)
	if err != nil {
		return nil, err
	}
	if err := restoreFiles(snapshotDir, manifest, records, config); err != nil {
		lock.release()
		return nil, err
	}
	return openLocked(config, lock)
}

func restoreFiles(snapshotDir string, manifest *SnapshotManifest, records []*Record, config *Config) error {
	for _, e := range manifest.Entries {
		body, err := readSnapshotBody(snapshotDir, e)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(config.BodiesDir, e.BodyFileName), body, 0644); err != nil {
			return fmt.Errorf("%w: failed to restore body: %w", ErrIOFailure, err)
		}
	}
	if err := writeDatabaseFile(config.DatabasePath, records, config.SyncWrites); err != nil {
		return fmt.Errorf("restore database: %w", err)
	}
	return nil
}

func readSnapshotDatabase(snapshotDir string) ([]*Record, error) {
	file, err := os.Open(filepath.Join(snapshotDir, snapshotDatabaseName))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open snapshot database: %w", ErrIOFailure, err)
	}
	defer file.Close()
	records, skipped, err := ReadRecords(file)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read snapshot database: %w", ErrIOFailure, err)
	}
	if len(skipped) > 0 {
		return nil, fmt.Errorf("%w: database has %d malformed lines", ErrCorruptSnapshot, len(skipped))
	}
	for _, r := range records {
		if !isDigest(r.Digest) || r.BodyFileName != bodyFileName(r.Digest) {
			return nil, fmt.Errorf("%w: database entry %q has body file %q", ErrCorruptSnapshot, r.Digest, r.BodyFileName)
		}
	}
	return records, nil
}

func readManifest(snapshotDir string) (*SnapshotManifest, error) {
	data, err := os.ReadFile(filepath.Join(snapshotDir, snapshotManifestName))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read snapshot manifest: %w", ErrIOFailure, err)
	}
	var manifest SnapshotManifest
	if err := cbor.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: manifest: %w", ErrCorruptSnapshot, err)
	}
	if manifest.Version != snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported manifest version %d", ErrCorruptSnapshot, manifest.Version)
	}
	for _, e := range manifest.Entries {
		if !isDigest(e.Digest) || e.BodyFileName != bodyFileName(e.Digest) {
			return nil, fmt.Errorf("%w: entry %q has body file %q", ErrCorruptSnapshot, e.Digest, e.BodyFileName)
		}
	}
	return &manifest, nil
}

func readSnapshotBody(snapshotDir string, e SnapshotEntry) ([]byte, error) {
	path := filepath.Join(snapshotDir, snapshotBodiesDir, e.BodyFileName+snapshotBodySuffix)
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read snapshot body: %w", ErrIOFailure, err)
	}
	body, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptSnapshot, e.Digest, err)
	}
	sum := blake3.Sum256(body)
	if int64(len(body)) != e.Size || !bytes.Equal(sum[:], e.Checksum) {
		return nil, fmt.Errorf("%w: %s: body checksum mismatch", ErrCorruptSnapshot, e.Digest)
	}
	return body, nil
}
