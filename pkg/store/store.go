// Package store persists the raw map-data payload per region so that a
// failed live fetch can fall back to the last known good response.
package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"time"

	"wikimap/pkg/db"
)

// MapCache is the cache contract the pipeline depends on.
type MapCache interface {
	GetMapCache(ctx context.Context, regionKey string) (payload []byte, fetchedAt time.Time, found bool)
	SetMapCache(ctx context.Context, regionKey string, payload []byte, fetchedAt time.Time) error
}

// StateStore is a small string KV for run bookkeeping.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
}

// SQLiteStore implements MapCache and StateStore on top of pkg/db.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d}
}

func (s *SQLiteStore) GetMapCache(ctx context.Context, regionKey string) ([]byte, time.Time, bool) {
	var val []byte
	var fetchedAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT payload, fetched_at FROM map_cache WHERE region_key = ?", regionKey).Scan(&val, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false
	}
	if err != nil {
		return nil, time.Time{}, false
	}

	// Values are stored compressed; tolerate legacy uncompressed rows.
	if decompressed, err := decompress(val); err == nil {
		val = decompressed
	}
	return val, fetchedAt, true
}

func (s *SQLiteStore) SetMapCache(ctx context.Context, regionKey string, payload []byte, fetchedAt time.Time) error {
	// Transparent compression
	if compressed, err := compress(payload); err == nil {
		payload = compressed
	}

	query := `INSERT OR REPLACE INTO map_cache (region_key, payload, fetched_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, regionKey, payload, fetchedAt.UTC())
	return err
}

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM state WHERE key = ?", key).Scan(&val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO state (key, value, updated_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now().UTC())
	return err
}

var (
	bufferPool = sync.Pool{
		New: func() interface{} { return new(bytes.Buffer) },
	}
	gzipWriterPool = sync.Pool{
		New: func() interface{} { return gzip.NewWriter(io.Discard) },
	}
)

func compress(data []byte) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	w := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)
	w.Reset(buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	// Must copy because buf is returned to pool
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
