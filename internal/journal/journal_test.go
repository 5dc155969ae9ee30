package journal

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ggonzalez94/nftmp-cli/internal/marketplace"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	dir := t.TempDir()
	j, err := Open(filepath.Join(dir, "journal.db"), filepath.Join(dir, "journal.lock"), nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndListNewestFirst(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	id := uint64(3)
	j.Record(ctx, marketplace.Outcome{
		Account:  "0xAbC0000000000000000000000000000000000001",
		Receipt:  marketplace.Receipt{Operation: "buy", ItemID: &id, Amount: big.NewInt(500), Code: 1, Status: marketplace.StatusSucceeded, TxHash: "0x01"},
		Duration: 1500 * time.Millisecond,
	})
	time.Sleep(2 * time.Millisecond)
	j.Record(ctx, marketplace.Outcome{
		Receipt: marketplace.Receipt{Operation: "claim", Status: marketplace.StatusFailed},
		Err:     errors.New("claim failed: result code 0"),
	})

	all, err := j.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected two entries, got %d", len(all))
	}
	if all[0].Receipt.Operation != "claim" || all[0].Error == "" {
		t.Fatalf("expected newest failed claim first, got %+v", all[0])
	}
	buy := all[1]
	if buy.Receipt.ItemID == nil || *buy.Receipt.ItemID != 3 || buy.Receipt.Amount.String() != "500" || buy.DurationMS != 1500 {
		t.Fatalf("unexpected buy entry: %+v", buy)
	}
	if len(buy.ID) != 26 {
		t.Fatalf("expected a ULID id, got %q", buy.ID)
	}

	failed, err := j.List(ctx, marketplace.StatusFailed, 10)
	if err != nil {
		t.Fatalf("List by status failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Receipt.Operation != "claim" {
		t.Fatalf("unexpected failed entries: %+v", failed)
	}
}

func TestListLimit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := j.Save(ctx, Entry{Receipt: marketplace.Receipt{Operation: "withdraw", Status: marketplace.StatusSucceeded}}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	got, err := j.List(ctx, "", 3)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
}

func TestConcurrentRecord(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.Record(ctx, marketplace.Outcome{Receipt: marketplace.Receipt{Operation: "buy", Status: marketplace.StatusSucceeded}})
		}()
	}
	wg.Wait()

	got, err := j.List(ctx, "", 100)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("expected 8 entries, got %d", len(got))
	}
}

func TestConcurrentOpenSameDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.db")
	lockPath := filepath.Join(dir, "journal.lock")

	var wg sync.WaitGroup
	errs := make(chan error, 6)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j, err := Open(path, lockPath, nil)
			if err != nil {
				errs <- err
				return
			}
			defer j.Close()
			if _, err := j.Save(context.Background(), Entry{Receipt: marketplace.Receipt{Operation: "claim", Status: marketplace.StatusSucceeded}}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent open: %v", err)
	}

	j := openExisting(t, path, lockPath)
	got, err := j.List(context.Background(), "", 100)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(got))
	}
}

func openExisting(t *testing.T, path, lockPath string) *Journal {
	t.Helper()
	j, err := Open(path, lockPath, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}
