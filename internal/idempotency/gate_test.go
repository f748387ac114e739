package idempotency_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/userhub/internal/idempotency"
	"github.com/geocoder89/userhub/internal/repo/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newGate(store idempotency.Store, ttl time.Duration) *idempotency.Gate {
	return idempotency.NewGate(store, ttl, testLogger())
}

func TestExecuteWithoutKeyRunsOperation(t *testing.T) {
	store := memory.NewIdempotencyRepo()
	gate := newGate(store, time.Hour)

	calls := 0

	res, err := gate.Execute(context.Background(), "", "/signup", "fp", func(context.Context) (int, []byte, error) {
		calls++
		return 201, []byte(`{"id":"u1"}`), nil
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls != 1 {
		t.Fatalf("expected operation to run once, ran %d times", calls)
	}

	if res.Replayed {
		t.Fatal("result without a key must not be marked replayed")
	}

	// no key, no cache write

	if store.Len() != 0 {
		t.Fatalf("expected no stored records, got %d", store.Len())
	}
}

func TestExecuteFirstUseStoresAndSecondUseReplays(t *testing.T) {
	store := memory.NewIdempotencyRepo()
	gate := newGate(store, time.Hour)

	body := []byte(`{"email":"ana@x.com"}`)
	fp := idempotency.Fingerprint(body)

	calls := 0

	op := func(context.Context) (int, []byte, error) {
		calls++
		return 201, []byte(`{"id":"u1"}`), nil
	}

	first, err := gate.Execute(context.Background(), "k1", "/signup", fp, op)

	if err != nil {
		t.Fatalf("first execute failed: %v", err)
	}

	if first.Replayed {
		t.Fatal("first use must not be a replay")
	}

	if store.Len() != 1 {
		t.Fatalf("expected 1 stored record, got %d", store.Len())
	}

	second, err := gate.Execute(context.Background(), "k1", "/signup", fp, op)

	if err != nil {
		t.Fatalf("second execute failed: %v", err)
	}

	if !second.Replayed {
		t.Fatal("second use must be a replay")
	}

	if calls != 1 {
		t.Fatalf("operation must run exactly once, ran %d times", calls)
	}

	if second.Status != first.Status || string(second.Body) != string(first.Body) {
		t.Fatalf("replay must return the stored response verbatim: got %d %q", second.Status, second.Body)
	}
}

func TestExecuteDifferentPayloadYieldsKeyConflict(t *testing.T) {
	store := memory.NewIdempotencyRepo()
	gate := newGate(store, time.Hour)

	_, err := gate.Execute(context.Background(), "k1", "/signup", idempotency.Fingerprint([]byte("payload-a")), func(context.Context) (int, []byte, error) {
		return 201, []byte(`{"id":"u1"}`), nil
	})

	if err != nil {
		t.Fatalf("first execute failed: %v", err)
	}

	calls := 0

	_, err = gate.Execute(context.Background(), "k1", "/signup", idempotency.Fingerprint([]byte("payload-b")), func(context.Context) (int, []byte, error) {
		calls++
		return 201, []byte(`{"id":"u2"}`), nil
	})

	if !errors.Is(err, idempotency.ErrKeyConflict) {
		t.Fatalf("expected ErrKeyConflict, got %v", err)
	}

	if calls != 0 {
		t.Fatal("conflicting request must never invoke the operation")
	}
}

func TestExecuteDoesNotCacheFailures(t *testing.T) {
	store := memory.NewIdempotencyRepo()
	gate := newGate(store, time.Hour)

	res, err := gate.Execute(context.Background(), "k1", "/signup", "fp", func(context.Context) (int, []byte, error) {
		return 409, []byte(`{"error":"email_taken"}`), nil
	})

	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if res.Status != 409 {
		t.Fatalf("expected passthrough status 409, got %d", res.Status)
	}

	if store.Len() != 0 {
		t.Fatal("non-2xx outcomes must not be cached")
	}

	// the key stays fresh: a later success with the same key is cached

	res, err = gate.Execute(context.Background(), "k1", "/signup", "fp", func(context.Context) (int, []byte, error) {
		return 201, []byte(`{"id":"u1"}`), nil
	})

	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	if res.Replayed {
		t.Fatal("first success must not be a replay")
	}

	if store.Len() != 1 {
		t.Fatal("successful retry must be cached")
	}
}

func TestExecuteExpiredRecordBehavesAsNew(t *testing.T) {
	store := memory.NewIdempotencyRepo()
	gate := newGate(store, time.Hour)

	// plant an already-expired record directly

	expired := idempotency.Record{
		Key:            "k1",
		Scope:          "/signup",
		RequestHash:    "old-fp",
		ResponseStatus: 201,
		ResponseBody:   []byte(`{"id":"old"}`),
		CreatedAt:      time.Now().UTC().Add(-48 * time.Hour),
		ExpiresAt:      time.Now().UTC().Add(-24 * time.Hour),
	}

	stored, err := store.PutIfAbsent(context.Background(), expired)

	if err != nil || !stored {
		t.Fatalf("failed to seed expired record: stored=%v err=%v", stored, err)
	}

	// a new payload with the same key succeeds as if the key were never used

	res, err := gate.Execute(context.Background(), "k1", "/signup", "new-fp", func(context.Context) (int, []byte, error) {
		return 201, []byte(`{"id":"new"}`), nil
	})

	if err != nil {
		t.Fatalf("execute after expiry failed: %v", err)
	}

	if res.Replayed {
		t.Fatal("expired record must not replay")
	}

	if string(res.Body) != `{"id":"new"}` {
		t.Fatalf("expected fresh response, got %q", res.Body)
	}

	rec, err := store.Get(context.Background(), "/signup", "k1")

	if err != nil {
		t.Fatalf("expected a fresh record after expiry: %v", err)
	}

	if rec.RequestHash != "new-fp" {
		t.Fatalf("fresh record must replace the stale one, got hash %q", rec.RequestHash)
	}
}

func TestExecuteConcurrentSameKeyStoresExactlyOneRecord(t *testing.T) {
	store := memory.NewIdempotencyRepo()
	gate := newGate(store, time.Hour)

	const n = 16

	var wg sync.WaitGroup

	results := make([]idempotency.Result, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			results[i], errs[i] = gate.Execute(context.Background(), "k1", "/signup", "fp", func(context.Context) (int, []byte, error) {
				return 201, []byte(`{"id":"u1"}`), nil
			})
		}(i)
	}

	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d failed: %v", i, errs[i])
		}

		if results[i].Status != 201 || string(results[i].Body) != `{"id":"u1"}` {
			t.Fatalf("request %d observed inconsistent outcome: %d %q", i, results[i].Status, results[i].Body)
		}
	}

	if store.Len() != 1 {
		t.Fatalf("expected exactly one stored record, got %d", store.Len())
	}
}

func TestFingerprintIsStableAndByteSensitive(t *testing.T) {
	a := idempotency.Fingerprint([]byte(`{"email":"ana@x.com"}`))
	b := idempotency.Fingerprint([]byte(`{"email":"ana@x.com"}`))
	c := idempotency.Fingerprint([]byte(`{"email": "ana@x.com"}`))

	if a != b {
		t.Fatal("identical bytes must produce identical fingerprints")
	}

	if a == c {
		t.Fatal("whitespace differences are different bytes and must not match")
	}
}
