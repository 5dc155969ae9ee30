package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	tmp := t.TempDir()
	store, err := Open(filepath.Join(tmp, "cache.db"), filepath.Join(tmp, "cache.lock"))
	if err != nil {
		t.Fatalf("Open cache failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutLookupFreshAndExpired(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	clock := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return clock }

	if err := store.Put(ctx, "ipfs://QmA", []byte(`{"name":"a"}`), time.Minute); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	doc, ok, err := store.Lookup(ctx, "ipfs://QmA")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if !doc.Fresh(clock) || string(doc.Body) != `{"name":"a"}` {
		t.Fatalf("expected fresh document, got %+v", doc)
	}

	later := clock.Add(2 * time.Minute)
	if doc.Fresh(later) {
		t.Fatalf("expected document to expire after ttl, age=%s", doc.Age(later))
	}
	if _, ok, _ := store.Lookup(ctx, "ipfs://missing"); ok {
		t.Fatal("expected miss for unknown uri")
	}
}

func TestPruneDropsExpired(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	clock := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return clock }
	if err := store.Put(ctx, "ipfs://QmOld", []byte(`{}`), time.Second); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	clock = clock.Add(time.Hour)
	if err := store.Prune(ctx); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if _, ok, _ := store.Lookup(ctx, "ipfs://QmOld"); ok {
		t.Fatal("expected expired document to be pruned")
	}
}

func TestRememberLoadsOnce(t *testing.T) {
	store := openTestStore(t)
	calls := 0
	load := func(context.Context) ([]byte, error) {
		calls++
		return []byte(`{"name":"b"}`), nil
	}

	first, hit, err := store.Remember(context.Background(), "ipfs://QmB", time.Hour, load)
	if err != nil || hit {
		t.Fatalf("expected miss without error, got hit=%v err=%v", hit, err)
	}
	second, hit, err := store.Remember(context.Background(), "ipfs://QmB", time.Hour, load)
	if err != nil || !hit {
		t.Fatalf("expected hit without error, got hit=%v err=%v", hit, err)
	}
	if string(first) != string(second) || calls != 1 {
		t.Fatalf("unexpected values %s %s after %d loads", first, second, calls)
	}
}

func TestRememberPropagatesLoadErrorAndWorksWithoutStore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("gateway down")
	_, _, err := store.Remember(ctx, "ipfs://QmC", time.Hour, func(context.Context) ([]byte, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	if _, ok, err := store.Lookup(ctx, "ipfs://QmC"); err != nil || ok {
		t.Fatalf("failed load must not be cached: ok=%v err=%v", ok, err)
	}

	var nilStore *Store
	value, hit, err := nilStore.Remember(ctx, "k", time.Hour, func(context.Context) ([]byte, error) { return []byte("v"), nil })
	if err != nil || hit || string(value) != "v" {
		t.Fatalf("nil store should pass through, got %q %v %v", value, hit, err)
	}
}

func TestCacheConcurrentOpenAndRemember(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "cache.db")
	lockPath := filepath.Join(tmp, "cache.lock")

	const workers = 8
	const iterations = 20

	var wg sync.WaitGroup
	errCh := make(chan error, workers)
	for worker := 0; worker < workers; worker++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			store, err := Open(dbPath, lockPath)
			if err != nil {
				errCh <- fmt.Errorf("worker %d open: %w", workerID, err)
				return
			}
			defer store.Close()

			ctx := context.Background()
			for i := 0; i < iterations; i++ {
				uri := fmt.Sprintf("ipfs://Qm%d-%d", workerID, i)
				if _, _, err := store.Remember(ctx, uri, time.Minute, func(context.Context) ([]byte, error) { return []byte(`{}`), nil }); err != nil {
					errCh <- fmt.Errorf("worker %d remember iter %d: %w", workerID, i, err)
					return
				}
				if _, ok, err := store.Lookup(ctx, uri); err != nil || !ok {
					errCh <- fmt.Errorf("worker %d lookup iter %d: ok=%v err=%v", workerID, i, ok, err)
					return
				}
			}
		}(worker)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatal(err)
	}
}

func TestEveryConnectionWaitsOnBusyDatabase(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.db.Connx(ctx)
	if err != nil {
		t.Fatalf("first conn: %v", err)
	}
	defer first.Close()
	second, err := store.db.Connx(ctx)
	if err != nil {
		t.Fatalf("second conn: %v", err)
	}
	defer second.Close()

	for i, conn := range []interface {
		QueryRowxContext(context.Context, string, ...any) *sqlx.Row
	}{first, second} {
		var timeout int
		if err := conn.QueryRowxContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("conn %d busy_timeout: %v", i, err)
		}
		if timeout != 5000 {
			t.Fatalf("conn %d: expected busy_timeout 5000, got %d", i, timeout)
		}
		var mode string
		if err := conn.QueryRowxContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("conn %d journal_mode: %v", i, err)
		}
		if mode != "wal" {
			t.Fatalf("conn %d: expected wal journal, got %q", i, mode)
		}
	}
}
