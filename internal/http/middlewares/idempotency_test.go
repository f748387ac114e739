package middlewares_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/idempotency"
	"github.com/geocoder89/userhub/internal/repo/memory"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// signupRig mounts a fake signup handler behind the idempotency middleware.
// The handler assigns a fresh id per invocation, so a replayed response is
// distinguishable from a re-execution.

func signupRig(store *memory.IdempotencyRepo) (*gin.Engine, *int) {
	gate := idempotency.NewGate(store, time.Hour, testLogger())

	r := gin.New()
	r.Use(middlewares.Idempotency(gate, nil))

	calls := 0

	r.POST("/signup", func(ctx *gin.Context) {
		calls++

		body, _ := io.ReadAll(ctx.Request.Body)

		if bytes.Contains(body, []byte("taken@")) {
			ctx.JSON(http.StatusConflict, gin.H{"error": "email_taken"})
			return
		}

		ctx.JSON(http.StatusCreated, gin.H{"id": uuid.NewString()})
	})

	return r, &calls
}

func doPost(r *gin.Engine, body, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/signup", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	return w
}

func TestIdempotencyReplayReturnsIdenticalResponse(t *testing.T) {
	store := memory.NewIdempotencyRepo()
	r, calls := signupRig(store)

	body := `{"email":"ana@x.com"}`

	first := doPost(r, body, "k1")

	if first.Code != http.StatusCreated {
		t.Fatalf("first request: got %d, body=%s", first.Code, first.Body.String())
	}

	if first.Header().Get("X-Idempotency-Hit") != "" {
		t.Fatal("first request must not be marked as a hit")
	}

	second := doPost(r, body, "k1")

	if second.Code != http.StatusCreated {
		t.Fatalf("replay: got %d", second.Code)
	}

	if second.Header().Get("X-Idempotency-Hit") != "true" {
		t.Fatal("replay must carry X-Idempotency-Hit: true")
	}

	if second.Body.String() != first.Body.String() {
		t.Fatalf("replay must be byte-identical: %q vs %q", second.Body.String(), first.Body.String())
	}

	if *calls != 1 {
		t.Fatalf("handler must run exactly once, ran %d times", *calls)
	}

	if store.Len() != 1 {
		t.Fatalf("expected one cached record, got %d", store.Len())
	}
}

func TestIdempotencyKeyReuseWithDifferentBodyIsRejected(t *testing.T) {
	store := memory.NewIdempotencyRepo()
	r, calls := signupRig(store)

	first := doPost(r, `{"email":"ana@x.com"}`, "k1")

	if first.Code != http.StatusCreated {
		t.Fatalf("first request: got %d", first.Code)
	}

	conflict := doPost(r, `{"email":"other@x.com"}`, "k1")

	if conflict.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d, body=%s", conflict.Code, conflict.Body.String())
	}

	if *calls != 1 {
		t.Fatalf("conflicting request must not reach the handler, handler ran %d times", *calls)
	}
}

func TestIdempotencyFailuresAreNotCached(t *testing.T) {
	store := memory.NewIdempotencyRepo()
	r, calls := signupRig(store)

	first := doPost(r, `{"email":"taken@x.com"}`, "k1")

	if first.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", first.Code)
	}

	if store.Len() != 0 {
		t.Fatal("failed outcomes must not be cached")
	}

	second := doPost(r, `{"email":"taken@x.com"}`, "k1")

	if second.Code != http.StatusConflict {
		t.Fatalf("expected 409 on retry, got %d", second.Code)
	}

	if *calls != 2 {
		t.Fatalf("failed requests must re-execute, handler ran %d times", *calls)
	}
}

func TestIdempotencyWithoutKeyIsPassthrough(t *testing.T) {
	store := memory.NewIdempotencyRepo()
	r, calls := signupRig(store)

	first := doPost(r, `{"email":"ana@x.com"}`, "")
	second := doPost(r, `{"email":"ana@x.com"}`, "")

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected both to succeed: %d, %d", first.Code, second.Code)
	}

	if first.Body.String() == second.Body.String() {
		t.Fatal("without a key each execution is independent and ids must differ")
	}

	if *calls != 2 {
		t.Fatalf("handler should run per request, ran %d times", *calls)
	}

	if store.Len() != 0 {
		t.Fatal("keyless requests must not write to the cache")
	}
}

func TestIdempotencyIgnoresNonPostRequests(t *testing.T) {
	store := memory.NewIdempotencyRepo()
	gate := idempotency.NewGate(store, time.Hour, testLogger())

	r := gin.New()
	r.Use(middlewares.Idempotency(gate, nil))
	r.GET("/users/abc", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"id": "abc"})
	})

	req := httptest.NewRequest(http.MethodGet, "/users/abc", nil)
	req.Header.Set("Idempotency-Key", "k1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("got %d", w.Code)
	}

	if store.Len() != 0 {
		t.Fatal("GET requests must never touch the cache")
	}
}
