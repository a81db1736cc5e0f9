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

func newMessage(id, sessionID string, msgType domain.MessageType, content string) *domain.Message {
	return &domain.Message{
		ID:        id,
		SessionID: sessionID,
		Type:      msgType,
		Content:   content,
		Status:    domain.MessageStatusSent,
		CreatedAt: time.Now(),
	}
}

func TestMessageStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()

	msg := newMessage("m1", "s1", domain.MessageTypeUser, "hello")
	if err := s.Create(ctx, msg); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if msg.Seq == 0 {
		t.Fatal("Create did not assign a sequence")
	}

	got, err := s.GetByID(ctx, "m1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Content != "hello" || got.Seq != msg.Seq {
		t.Fatalf("unexpected message: %+v", got)
	}

	if err := s.Create(ctx, newMessage("m1", "s1", domain.MessageTypeUser, "again")); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if _, err := s.GetByID(ctx, "nope"); !errors.Is(err, domain.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestMessageStoreTranscriptOrderWithEqualTimestamps(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()

	// All four share one timestamp; insertion order must win.
	ts := time.Now()
	for i := 0; i < 4; i++ {
		msg := newMessage(fmt.Sprintf("m%d", i), "s1", domain.MessageTypeUser, fmt.Sprintf("turn %d", i))
		msg.CreatedAt = ts
		if err := s.Create(ctx, msg); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	msgs, err := s.GetBySessionID(ctx, "s1", 0, 0)
	if err != nil {
		t.Fatalf("GetBySessionID failed: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	for i, msg := range msgs {
		if msg.ID != fmt.Sprintf("m%d", i) {
			t.Fatalf("position %d: got %s", i, msg.ID)
		}
	}
}

func TestMessageStorePagination(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()

	for i := 0; i < 7; i++ {
		if err := s.Create(ctx, newMessage(fmt.Sprintf("m%d", i), "s1", domain.MessageTypeUser, "x")); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	seen := make(map[string]bool)
	for offset := 0; ; offset += 2 {
		page, err := s.GetBySessionID(ctx, "s1", 2, offset)
		if err != nil {
			t.Fatalf("GetBySessionID failed: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, msg := range page {
			if seen[msg.ID] {
				t.Fatalf("message %s returned twice", msg.ID)
			}
			seen[msg.ID] = true
		}
	}
	if len(seen) != 7 {
		t.Fatalf("pagination visited %d of 7 messages", len(seen))
	}
}

func TestMessageStoreSearch(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()

	base := time.Now()
	contents := []string{"Plan the AWS migration", "budget review", "AWS cost breakdown"}
	for i, content := range contents {
		msg := newMessage(fmt.Sprintf("m%d", i), "s1", domain.MessageTypeUser, content)
		msg.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := s.Create(ctx, msg); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := s.Search(ctx, "s1", "aws", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(got))
	}
	// Most recent first.
	if got[0].ID != "m2" || got[1].ID != "m0" {
		t.Fatalf("search hits out of order: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestMessageStoreGetLatest(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()

	base := time.Now()
	for i := 0; i < 5; i++ {
		msg := newMessage(fmt.Sprintf("m%d", i), "s1", domain.MessageTypeUser, "x")
		msg.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := s.Create(ctx, msg); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := s.GetLatestBySessionID(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("GetLatestBySessionID failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "m4" || got[1].ID != "m3" {
		t.Fatalf("unexpected latest messages: %+v", got)
	}
}

func TestMessageStoreUpdateStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()

	if err := s.Create(ctx, newMessage("m1", "s1", domain.MessageTypeUser, "hi")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := s.UpdateStatus(ctx, "m1", domain.MessageStatusDelivered); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if err := s.UpdateStatus(ctx, "m1", domain.MessageStatusRead); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	// read is terminal; going backwards is rejected.
	err := s.UpdateStatus(ctx, "m1", domain.MessageStatusSent)
	if !domain.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMessageStoreDeleteBySession(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()

	for i := 0; i < 3; i++ {
		if err := s.Create(ctx, newMessage(fmt.Sprintf("m%d", i), "s1", domain.MessageTypeUser, "x")); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if err := s.Create(ctx, newMessage("other", "s2", domain.MessageTypeUser, "x")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	n, err := s.DeleteBySessionID(ctx, "s1")
	if err != nil {
		t.Fatalf("DeleteBySessionID failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted, got %d", n)
	}

	remaining, err := s.Count(ctx, store.MessageFilter{})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if remaining != 1 {
		t.Fatalf("expected 1 remaining message, got %d", remaining)
	}
}

func TestMessageStoreListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()

	user := newMessage("m1", "s1", domain.MessageTypeUser, "question")
	reply := newMessage("m2", "s1", domain.MessageTypeAssistant, "answer")
	reply.Status = domain.MessageStatusDelivered
	for _, msg := range []*domain.Message{user, reply} {
		if err := s.Create(ctx, msg); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	got, err := s.List(ctx, store.MessageFilter{SessionID: "s1", Type: domain.MessageTypeAssistant})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "m2" {
		t.Fatalf("type filter: %+v", got)
	}

	n, err := s.Count(ctx, store.MessageFilter{Status: domain.MessageStatusSent})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 sent message, got %d", n)
	}
}

func TestMessageStoreConcurrentCreatesKeepDistinctSeq(t *testing.T) {
	ctx := context.Background()
	s := NewMessageStore()

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := fmt.Sprintf("m-%d-%d", w, i)
				if err := s.Create(ctx, newMessage(id, "s1", domain.MessageTypeUser, "x")); err != nil {
					t.Errorf("Create %s failed: %v", id, err)
				}
			}
		}(w)
	}
	wg.Wait()

	msgs, err := s.GetBySessionID(ctx, "s1", 0, 0)
	if err != nil {
		t.Fatalf("GetBySessionID failed: %v", err)
	}
	if len(msgs) != workers*perWorker {
		t.Fatalf("expected %d messages, got %d", workers*perWorker, len(msgs))
	}
	seqs := make(map[int64]bool, len(msgs))
	for _, msg := range msgs {
		if seqs[msg.Seq] {
			t.Fatalf("sequence %d assigned twice", msg.Seq)
		}
		seqs[msg.Seq] = true
	}
}
