// Package persistence implements the append-only, content-addressed log
// store described in §6: each entry is named by the SHA-256 of its
// canonical JSON payload (or the reserved name "aril_state" for the
// serialized sidecar state, which overwrites in place), backed by SQLite
// with zstd-compressed blobs and an in-memory xxhash index for O(1)
// existence checks.
package persistence

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/flowchartsman/retry"
	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/semaphore"
)

// ReservedStateID is the interactionId that denotes the serialized
// sidecar state; writes to this id overwrite the prior slot instead of
// appending.
const ReservedStateID = "aril_state"

// Entry is one stored record, decompressed.
type Entry struct {
	InteractionID string
	Hash          string
	Sequence      int64
	Payload       []byte
	Reserved      bool
}

// LogStore is the append-only persistence contract. Implementations must
// make Append content-addressed (the hash is derived from payload, not
// caller-supplied) and PutReserved idempotent-overwrite.
type LogStore interface {
	Append(ctx context.Context, interactionID string, payload []byte) (Entry, error)
	PutReserved(ctx context.Context, id string, payload []byte) (Entry, error)
	Get(ctx context.Context, interactionID string) (Entry, bool, error)
	GetReserved(ctx context.Context, id string) (Entry, bool, error)
	IndexCounts(ctx context.Context) (total int, hashes []string, err error)
	Close() error
}

// SQLiteLogStore is the reference LogStore backed by a single SQLite
// file. Writers are serialized: a non-blocking semaphore enforces the
// single-writer-per-agent concurrency model (§5) rather than silently
// queuing concurrent callers.
type SQLiteLogStore struct {
	db        *sql.DB
	writeLock *semaphore.Weighted
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder

	indexMu      sync.RWMutex
	index        map[uint64]int64 // xxhash(interactionID) -> row id, latest write wins
	hashList     []string
	total        int
	reservedHash map[string]string // reserved interactionID -> its current hash in hashList
}

// ErrWriteInFlight is returned when a caller attempts a concurrent write
// while another write is already in progress.
var ErrWriteInFlight = fmt.Errorf("persistence: a write is already in flight")

// OpenSQLiteLogStore opens (creating if necessary) a SQLite-backed log
// store at path.
func OpenSQLiteLogStore(path string) (*SQLiteLogStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("persistence: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("persistence: open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: migrate: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("persistence: zstd decoder: %w", err)
	}
	s := &SQLiteLogStore{
		db:           db,
		writeLock:    semaphore.NewWeighted(1),
		encoder:      enc,
		decoder:      dec,
		index:        make(map[uint64]int64),
		reservedHash: make(map[string]string),
	}
	if err := s.rebuildIndex(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	interaction_id TEXT NOT NULL,
	hash TEXT NOT NULL,
	seq INTEGER NOT NULL,
	reserved INTEGER NOT NULL DEFAULT 0,
	payload BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_interaction_id ON entries(interaction_id);
`

func (s *SQLiteLogStore) rebuildIndex() error {
	rows, err := s.db.Query(`SELECT id, interaction_id, hash, reserved FROM entries ORDER BY id ASC`)
	if err != nil {
		return fmt.Errorf("persistence: rebuild index: %w", err)
	}
	defer rows.Close()

	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	for rows.Next() {
		var id int64
		var interactionID, hash string
		var reserved bool
		if err := rows.Scan(&id, &interactionID, &hash, &reserved); err != nil {
			return fmt.Errorf("persistence: scan index row: %w", err)
		}
		s.index[xxhash.Sum64String(interactionID)] = id
		s.hashList = append(s.hashList, hash)
		s.total++
		if reserved {
			s.reservedHash[interactionID] = hash
		}
	}
	return rows.Err()
}

// contentHash is the SHA-256 hex digest of payload, used as the
// content-addressed entry name.
func contentHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Append stores a new, content-addressed, never-overwritten entry.
func (s *SQLiteLogStore) Append(ctx context.Context, interactionID string, payload []byte) (Entry, error) {
	if !s.writeLock.TryAcquire(1) {
		return Entry{}, ErrWriteInFlight
	}
	defer s.writeLock.Release(1)

	hash := contentHash(payload)
	compressed := s.encoder.EncodeAll(payload, nil)

	var seq int64
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM entries`)
	if err := row.Scan(&seq); err != nil {
		return Entry{}, fmt.Errorf("persistence: next sequence: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (interaction_id, hash, seq, reserved, payload) VALUES (?, ?, ?, 0, ?)`,
		interactionID, hash, seq, compressed)
	if err != nil {
		return Entry{}, fmt.Errorf("persistence: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("persistence: last insert id: %w", err)
	}

	s.indexMu.Lock()
	s.index[xxhash.Sum64String(interactionID)] = id
	s.hashList = append(s.hashList, hash)
	s.total++
	s.indexMu.Unlock()

	return Entry{InteractionID: interactionID, Hash: hash, Sequence: seq, Payload: payload}, nil
}

// PutReserved writes to a reserved slot (e.g. "aril_state"), overwriting
// whatever was there before rather than appending.
func (s *SQLiteLogStore) PutReserved(ctx context.Context, id string, payload []byte) (Entry, error) {
	if !s.writeLock.TryAcquire(1) {
		return Entry{}, ErrWriteInFlight
	}
	defer s.writeLock.Release(1)

	hash := contentHash(payload)
	compressed := s.encoder.EncodeAll(payload, nil)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("persistence: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE interaction_id = ? AND reserved = 1`, id); err != nil {
		return Entry{}, fmt.Errorf("persistence: clear reserved slot: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO entries (interaction_id, hash, seq, reserved, payload) VALUES (?, ?, 0, 1, ?)`,
		id, hash, compressed)
	if err != nil {
		return Entry{}, fmt.Errorf("persistence: insert reserved: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("persistence: commit: %w", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return Entry{}, fmt.Errorf("persistence: last insert id: %w", err)
	}

	s.indexMu.Lock()
	s.index[xxhash.Sum64String(id)] = rowID
	if oldHash, existed := s.reservedHash[id]; existed {
		replaceFirst(s.hashList, oldHash, hash)
	} else {
		s.hashList = append(s.hashList, hash)
		s.total++
	}
	s.reservedHash[id] = hash
	s.indexMu.Unlock()

	return Entry{InteractionID: id, Hash: hash, Reserved: true, Payload: payload}, nil
}

// replaceFirst overwrites the first occurrence of old in list with new,
// in place. Used to keep the reserved slot's hash current in hashList
// without disturbing total (PutReserved overwrites, it doesn't append).
func replaceFirst(list []string, old, new string) {
	for i, v := range list {
		if v == old {
			list[i] = new
			return
		}
	}
}

// Get looks up the latest entry for interactionID via the in-memory
// index, falling back to "not found" without touching SQLite when the
// index shows no row.
func (s *SQLiteLogStore) Get(ctx context.Context, interactionID string) (Entry, bool, error) {
	s.indexMu.RLock()
	rowID, ok := s.index[xxhash.Sum64String(interactionID)]
	s.indexMu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}
	return s.getByRowID(ctx, rowID)
}

// GetReserved looks up a reserved slot by id.
func (s *SQLiteLogStore) GetReserved(ctx context.Context, id string) (Entry, bool, error) {
	return s.Get(ctx, id)
}

func (s *SQLiteLogStore) getByRowID(ctx context.Context, rowID int64) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT interaction_id, hash, seq, reserved, payload FROM entries WHERE id = ?`, rowID)
	var interactionID, hash string
	var seq int64
	var reservedInt int
	var compressed []byte
	if err := row.Scan(&interactionID, &hash, &seq, &reservedInt, &compressed); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("persistence: scan entry: %w", err)
	}
	payload, err := s.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return Entry{}, false, fmt.Errorf("persistence: decompress: %w", err)
	}
	return Entry{
		InteractionID: interactionID,
		Hash:          hash,
		Sequence:      seq,
		Payload:       payload,
		Reserved:      reservedInt == 1,
	}, true, nil
}

// IndexCounts returns the total entry count and the hash list from the
// in-memory index, mirroring the spec's "specially-named index file".
func (s *SQLiteLogStore) IndexCounts(ctx context.Context) (int, []string, error) {
	s.indexMu.RLock()
	defer s.indexMu.RUnlock()
	out := make([]string, len(s.hashList))
	copy(out, s.hashList)
	return s.total, out, nil
}

// Close releases the underlying database handle.
func (s *SQLiteLogStore) Close() error {
	return s.db.Close()
}

// RetryPolicy returns the caller-opt-in retry helper for transient
// persistence errors (e.g. a momentarily locked SQLite file); nothing in
// this package retries automatically.
func RetryPolicy() *retry.Retrier {
	return retry.NewRetrier(5, 0, 0)
}

// SaveWithRetry is a convenience wrapper applying RetryPolicy to a single
// save operation; callers that want no retry should call Append/PutReserved
// directly instead.
func SaveWithRetry(op func() error) error {
	return RetryPolicy().Run(func() error { return op() })
}
