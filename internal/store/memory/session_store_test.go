package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cloudbridge/chatcore/internal/domain"
	"github.com/cloudbridge/chatcore/internal/store"
)

func newSession(id, userID string) *domain.Session {
	now := time.Now()
	return &domain.Session{
		ID:             id,
		UserID:         userID,
		Status:         domain.SessionStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastActivityAt: now,
	}
}

func TestSessionStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	if err := s.Create(ctx, newSession("s1", "u1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.UserID != "u1" {
		t.Fatalf("unexpected session: %+v", got)
	}

	if err := s.Create(ctx, newSession("s1", "u2")); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	if _, err := s.GetByID(ctx, "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	if err := s.Create(ctx, newSession("s1", "u1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Delete(ctx, "s1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := s.Delete(ctx, "s1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSessionStoreCopyOnRead(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	sess := newSession("s1", "u1")
	sess.Metadata = map[string]string{"tier": "pro"}
	if err := s.Create(ctx, sess); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	got.Metadata["tier"] = "free"
	got.UserID = "intruder"

	again, err := s.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if again.Metadata["tier"] != "pro" || again.UserID != "u1" {
		t.Fatalf("stored session mutated through a read copy: %+v", again)
	}
}

func TestSessionStoreListPagination(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	base := time.Now()
	for i := 0; i < 10; i++ {
		sess := newSession(fmt.Sprintf("s%d", i), "u1")
		sess.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := s.Create(ctx, sess); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	// Walk the full set in pages; every session appears exactly once.
	seen := make(map[string]bool)
	for offset := 0; ; offset += 3 {
		page, err := s.List(ctx, store.SessionFilter{UserID: "u1", Offset: offset, Limit: 3})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, sess := range page {
			if seen[sess.ID] {
				t.Fatalf("session %s returned twice", sess.ID)
			}
			seen[sess.ID] = true
		}
	}
	if len(seen) != 10 {
		t.Fatalf("pagination visited %d of 10 sessions", len(seen))
	}

	// An offset past the end is an empty page, not an error.
	page, err := s.List(ctx, store.SessionFilter{Offset: 100, Limit: 3})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page) != 0 {
		t.Fatalf("expected empty page, got %d", len(page))
	}
}

func TestSessionStoreFilters(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	a := newSession("s1", "u1")
	a.ClientName = "Acme Corp"
	b := newSession("s2", "u2")
	b.Status = domain.SessionStatusTerminated
	for _, sess := range []*domain.Session{a, b} {
		if err := s.Create(ctx, sess); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := s.List(ctx, store.SessionFilter{ClientName: "acme"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Fatalf("client name filter: %+v", got)
	}

	n, err := s.Count(ctx, store.SessionFilter{Status: domain.SessionStatusTerminated})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 terminated session, got %d", n)
	}
}

func TestSessionStoreExpiredOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	older := newSession("s1", "u1")
	older.SetExpiration(-2 * time.Hour)
	newer := newSession("s2", "u1")
	newer.SetExpiration(-1 * time.Hour)
	alive := newSession("s3", "u1")
	alive.SetExpiration(time.Hour)
	for _, sess := range []*domain.Session{newer, older, alive} {
		if err := s.Create(ctx, sess); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	expired, err := s.GetExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("GetExpiredSessions failed: %v", err)
	}
	if len(expired) != 2 {
		t.Fatalf("expected 2 expired sessions, got %d", len(expired))
	}
	if expired[0].ID != "s1" || expired[1].ID != "s2" {
		t.Fatalf("expired sessions out of order: %s, %s", expired[0].ID, expired[1].ID)
	}
}

func TestSessionStoreInactiveOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	idle := newSession("s1", "u1")
	idle.LastActivityAt = time.Now().Add(-3 * time.Hour)
	idler := newSession("s2", "u1")
	idler.LastActivityAt = time.Now().Add(-5 * time.Hour)
	fresh := newSession("s3", "u1")
	for _, sess := range []*domain.Session{idle, idler, fresh} {
		if err := s.Create(ctx, sess); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	inactive, err := s.GetInactiveSessions(ctx, time.Hour)
	if err != nil {
		t.Fatalf("GetInactiveSessions failed: %v", err)
	}
	if len(inactive) != 2 {
		t.Fatalf("expected 2 inactive sessions, got %d", len(inactive))
	}
	if inactive[0].ID != "s2" || inactive[1].ID != "s1" {
		t.Fatalf("inactive sessions out of order: %s, %s", inactive[0].ID, inactive[1].ID)
	}
}

func TestSessionStoreSetExpiration(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	if err := s.Create(ctx, newSession("s1", "u1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.SetExpiration(ctx, "s1", time.Hour); err != nil {
		t.Fatalf("SetExpiration failed: %v", err)
	}

	got, err := s.GetByID(ctx, "s1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.ExpiresAt == nil {
		t.Fatal("expected a deadline")
	}
	want := time.Now().Add(time.Hour)
	if diff := got.ExpiresAt.Sub(want); diff < -time.Second || diff > time.Second {
		t.Fatalf("deadline off by %s", diff)
	}

	// A negative duration expires the session immediately.
	if err := s.SetExpiration(ctx, "s1", -time.Hour); err != nil {
		t.Fatalf("SetExpiration failed: %v", err)
	}
	expired, err := s.GetExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("GetExpiredSessions failed: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("expected session to be expired, got %d", len(expired))
	}
}

func TestSessionStoreConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	s := NewSessionStore()

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := fmt.Sprintf("s-%d-%d", w, i)
				if err := s.Create(ctx, newSession(id, "u1")); err != nil {
					t.Errorf("Create %s failed: %v", id, err)
				}
			}
		}(w)
	}
	wg.Wait()

	n, err := s.Count(ctx, store.SessionFilter{})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != workers*perWorker {
		t.Fatalf("expected %d sessions, got %d", workers*perWorker, n)
	}
}
