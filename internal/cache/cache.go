// Package cache keeps fetched token metadata documents on disk, keyed by the
// token URI they were fetched from.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const lockTimeout = 5 * time.Second

type Store struct {
	db   *sqlx.DB
	lock *flock.Flock
	now  func() time.Time
}

// Document is one cached body.
type Document struct {
	URI        string `db:"uri"`
	Body       []byte `db:"body"`
	FetchedAt  int64  `db:"fetched_at"`
	TTLSeconds int64  `db:"ttl_seconds"`
}

// Age is measured against now.
func (d Document) Age(now time.Time) time.Duration {
	age := now.Sub(time.Unix(d.FetchedAt, 0))
	if age < 0 {
		return 0
	}
	return age
}

func (d Document) Fresh(now time.Time) bool {
	return d.Age(now) <= time.Duration(d.TTLSeconds)*time.Second
}

func Open(path, lockPath string) (*Store, error) {
	for _, dir := range []string{filepath.Dir(path), filepath.Dir(lockPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache: %w", err)
	}
	store := &Store{db: db, lock: flock.New(lockPath), now: time.Now}

	unlock, err := store.acquire(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	defer unlock()
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		uri TEXT PRIMARY KEY,
		body BLOB NOT NULL,
		fetched_at INTEGER NOT NULL,
		ttl_seconds INTEGER NOT NULL
	);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init cache schema: %w", err)
	}
	_ = store.prune(context.Background())
	return store, nil
}

// DSN sets the connection pragmas for every pooled connection, busy_timeout first.
func DSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
}

func (s *Store) acquire(ctx context.Context) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := s.lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock cache: %w", err)
	}
	if !locked {
		return nil, errors.New("lock cache: timeout acquiring lock")
	}
	return func() { _ = s.lock.Unlock() }, nil
}

func (s *Store) usable() bool { return s != nil && s.db != nil }

func (s *Store) Close() error {
	if !s.usable() {
		return nil
	}
	return s.db.Close()
}

// Prune drops expired documents. Open calls it once.
func (s *Store) Prune(ctx context.Context) error {
	if !s.usable() {
		return nil
	}
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return s.prune(ctx)
}

func (s *Store) prune(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE fetched_at + ttl_seconds < ?", s.now().Unix()); err != nil {
		return fmt.Errorf("prune cache: %w", err)
	}
	return nil
}

// Lookup returns the document stored for uri, fresh or not.
func (s *Store) Lookup(ctx context.Context, uri string) (Document, bool, error) {
	var doc Document
	err := s.db.GetContext(ctx, &doc, "SELECT uri, body, fetched_at, ttl_seconds FROM documents WHERE uri = ?", uri)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, fmt.Errorf("cache read: %w", err)
	}
	return doc, true, nil
}

func (s *Store) Put(ctx context.Context, uri string, body []byte, ttl time.Duration) error {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	ttlSeconds := int64(ttl.Seconds())
	if ttlSeconds <= 0 {
		ttlSeconds = 1
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO documents (uri, body, fetched_at, ttl_seconds)
		VALUES (:uri, :body, :fetched_at, :ttl_seconds)
		ON CONFLICT(uri) DO UPDATE SET
			body=excluded.body,
			fetched_at=excluded.fetched_at,
			ttl_seconds=excluded.ttl_seconds
	`, Document{URI: uri, Body: body, FetchedAt: s.now().Unix(), TTLSeconds: ttlSeconds})
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

// Remember returns the fresh document under uri, or calls load and stores its
// result. A nil Store always loads. A failed write is ignored; the loaded body is
// still returned.
func (s *Store) Remember(ctx context.Context, uri string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if s.usable() {
		doc, ok, err := s.Lookup(ctx, uri)
		if err == nil && ok && doc.Fresh(s.now()) {
			return doc.Body, true, nil
		}
	}
	body, err := load(ctx)
	if err != nil {
		return nil, false, err
	}
	if s.usable() {
		_ = s.Put(ctx, uri, body, ttl)
	}
	return body, false, nil
}
