package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"invoicedesk/internal/auth"
	"invoicedesk/internal/core"
	"invoicedesk/internal/events"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	db1, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	db1.Close()
	db2, err := Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer db2.Close()
	if err := db2.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore(openTestDB(t))
	ctx := context.Background()
	now := time.Now()

	s := auth.Session{ID: "s1", Token: "tok", Username: "alice", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Token != "tok" || got.Username != "alice" || got.ExpiresAt.Unix() != s.ExpiresAt.Unix() {
		t.Fatalf("unexpected session: %+v", got)
	}

	s.Token = "tok2"
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got, _ := store.Get(ctx, "s1"); got.Token != "tok2" {
		t.Fatalf("upsert did not replace token")
	}

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "s1"); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSessionStoreExpiry(t *testing.T) {
	store := NewSessionStore(openTestDB(t))
	ctx := context.Background()
	now := time.Now()

	_ = store.Save(ctx, auth.Session{ID: "old", Token: "a", CreatedAt: now, ExpiresAt: now.Add(-time.Minute)})
	_ = store.Save(ctx, auth.Session{ID: "new", Token: "b", CreatedAt: now, ExpiresAt: now.Add(time.Hour)})

	if _, err := store.Get(ctx, "old"); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expired session returned: %v", err)
	}
	n, err := store.DeleteExpired(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpired: n=%d err=%v", n, err)
	}
	if _, err := store.Get(ctx, "new"); err != nil {
		t.Fatalf("live session lost: %v", err)
	}
}

func TestOutboxFlow(t *testing.T) {
	ob := NewOutbox(openTestDB(t))
	ctx := context.Background()

	e1 := events.NewInvoiceChanged(events.ActionCreated, core.Invoice{ID: "a"}, "u")
	e2 := events.NewInvoiceChanged(events.ActionDeleted, core.Invoice{ID: "b"}, "u")
	for _, e := range []events.InvoiceChanged{e1, e2} {
		if err := ob.Publish(ctx, e); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	pending, err := ob.Pending(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 2 || pending[0].Event.EventID != e1.EventID {
		t.Fatalf("unexpected pending: %+v", pending)
	}

	if err := ob.MarkPublished(ctx, pending[0].ID); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	cause := errors.New("broker down")
	if err := ob.MarkAttemptFailed(ctx, pending[1].ID, cause, 2); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	pending, _ = ob.Pending(ctx, 10)
	if len(pending) != 1 || pending[0].Attempts != 1 {
		t.Fatalf("expected one pending retry, got %+v", pending)
	}
	_ = ob.MarkAttemptFailed(ctx, pending[0].ID, cause, 2)

	st, err := ob.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Pending != 0 || st.Published != 1 || st.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", st)
	}

	if n, err := ob.RetryFailed(ctx); err != nil || n != 1 {
		t.Fatalf("retry failed: n=%d err=%v", n, err)
	}
	if n, err := ob.Cleanup(ctx, time.Now().Add(time.Hour)); err != nil || n != 1 {
		t.Fatalf("cleanup: n=%d err=%v", n, err)
	}
}

func TestOutboxRejectsInvalidEvent(t *testing.T) {
	ob := NewOutbox(openTestDB(t))
	if err := ob.Publish(context.Background(), events.InvoiceChanged{}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestRedisSessionStore(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	ctx := context.Background()
	store, err := NewRedisSessionStore(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()

	id := "test-" + time.Now().Format("150405.000000000")
	s := auth.Session{ID: id, Token: "t", Username: "u", CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Minute)}
	if err := store.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Get(ctx, id)
	if err != nil || got.Token != "t" {
		t.Fatalf("get: %+v %v", got, err)
	}
	_ = store.Delete(ctx, id)
	if _, err := store.Get(ctx, id); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
