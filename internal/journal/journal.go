// Package journal keeps a local sqlite record of every submitted marketplace workflow.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/ggonzalez94/nftmp-cli/internal/cache"
	"github.com/ggonzalez94/nftmp-cli/internal/marketplace"
)

const (
	defaultListLimit = 20
	lockTimeout      = 5 * time.Second
)

// Entry is one journaled workflow outcome.
type Entry struct {
	ID         string              `json:"id"`
	RecordedAt time.Time           `json:"recorded_at"`
	Account    string              `json:"account,omitempty"`
	Receipt    marketplace.Receipt `json:"receipt"`
	Error      string              `json:"error,omitempty"`
	DurationMS int64               `json:"duration_ms"`
}

type row struct {
	ID         string `db:"id"`
	Operation  string `db:"operation"`
	Status     string `db:"status"`
	Account    string `db:"account"`
	TxHash     string `db:"tx_hash"`
	RecordedAt int64  `db:"recorded_at"`
	Payload    []byte `db:"payload"`
}

type Journal struct {
	db   *sqlx.DB
	lock *flock.Flock
	log  logrus.FieldLogger
}

func Open(path, lockPath string, log logrus.FieldLogger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create journal lock directory: %w", err)
	}
	db, err := sqlx.Open("sqlite", cache.DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open journal sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	j := &Journal{db: db, lock: flock.New(lockPath), log: log}

	unlock, err := j.acquire(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	defer unlock()
	queries := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id TEXT PRIMARY KEY,
			operation TEXT NOT NULL,
			status TEXT NOT NULL,
			account TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			recorded_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_workflows_status_id ON workflows(status, id DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init journal schema: %w", err)
		}
	}
	if j.log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		j.log = discard
	}
	return j, nil
}

func (j *Journal) acquire(ctx context.Context) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := j.lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("lock journal: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("lock journal: timeout acquiring lock")
	}
	return func() { _ = j.lock.Unlock() }, nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record journals outcome. Failures are logged, never returned.
func (j *Journal) Record(ctx context.Context, outcome marketplace.Outcome) {
	entry := Entry{
		RecordedAt: time.Now().UTC(),
		Account:    outcome.Account,
		Receipt:    outcome.Receipt,
		DurationMS: outcome.Duration.Milliseconds(),
	}
	if outcome.Err != nil {
		entry.Error = outcome.Err.Error()
	}
	if _, err := j.Save(ctx, entry); err != nil {
		j.log.WithError(err).WithField("operation", outcome.Receipt.Operation).Warn("journal write failed")
	}
}

// Save inserts entry and returns it with its assigned id.
func (j *Journal) Save(ctx context.Context, entry Entry) (Entry, error) {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = ulid.MustNew(ulid.Timestamp(entry.RecordedAt), ulid.DefaultEntropy()).String()
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal journal entry: %w", err)
	}

	unlock, err := j.acquire(ctx)
	if err != nil {
		return Entry{}, err
	}
	defer unlock()

	_, err = j.db.NamedExecContext(ctx, `
		INSERT INTO workflows (id, operation, status, account, tx_hash, recorded_at, payload)
		VALUES (:id, :operation, :status, :account, :tx_hash, :recorded_at, :payload)
	`, row{
		ID:         entry.ID,
		Operation:  entry.Receipt.Operation,
		Status:     entry.Receipt.Status,
		Account:    strings.ToLower(entry.Account),
		TxHash:     entry.Receipt.TxHash,
		RecordedAt: entry.RecordedAt.Unix(),
		Payload:    payload,
	})
	if err != nil {
		return Entry{}, fmt.Errorf("save journal entry: %w", err)
	}
	return entry, nil
}

// List returns the newest entries first, optionally restricted to one status.
func (j *Journal) List(ctx context.Context, status string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	var (
		rows []row
		err  error
	)
	if strings.TrimSpace(status) == "" {
		err = j.db.SelectContext(ctx, &rows, "SELECT * FROM workflows ORDER BY id DESC LIMIT ?", limit)
	} else {
		err = j.db.SelectContext(ctx, &rows, "SELECT * FROM workflows WHERE status = ? ORDER BY id DESC LIMIT ?", status, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list journal entries: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		var entry Entry
		if err := json.Unmarshal(r.Payload, &entry); err != nil {
			return nil, fmt.Errorf("decode journal entry %s: %w", r.ID, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
