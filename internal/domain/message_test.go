package domain

import (
	"strings"
	"testing"
	"time"
)

func TestMessageValidate(t *testing.T) {
	msg := &Message{
		ID:        "m1",
		SessionID: "s1",
		Type:      MessageTypeUser,
		Content:   "hello",
		Status:    MessageStatusSent,
	}
	if err := msg.Validate(); err != nil {
		t.Fatalf("valid message rejected: %v", err)
	}

	bad := *msg
	bad.Content = ""
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for empty content")
	}

	bad = *msg
	bad.Type = "robot"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for unknown type")
	}

	bad = *msg
	bad.Content = string(make([]byte, MaxContentLength+1))
	if err := bad.Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error for oversized content, got %v", err)
	}
}

func TestMessageContentBoundCountsCharacters(t *testing.T) {
	msg := &Message{
		ID:        "m1",
		SessionID: "s1",
		Type:      MessageTypeUser,
		Status:    MessageStatusSent,
	}

	// Multibyte content at the cap is within bounds even though its byte
	// length exceeds it.
	msg.Content = strings.Repeat("é", MaxContentLength)
	if err := msg.Validate(); err != nil {
		t.Fatalf("content at the character cap rejected: %v", err)
	}

	msg.Content = strings.Repeat("é", MaxContentLength+1)
	if err := msg.Validate(); !IsValidation(err) {
		t.Fatalf("expected validation error one character over the cap, got %v", err)
	}
}

func TestMessageStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to MessageStatus
		ok       bool
	}{
		{MessageStatusSent, MessageStatusDelivered, true},
		{MessageStatusSent, MessageStatusRead, true},
		{MessageStatusSent, MessageStatusFailed, true},
		{MessageStatusDelivered, MessageStatusRead, true},
		{MessageStatusDelivered, MessageStatusSent, false},
		{MessageStatusRead, MessageStatusDelivered, false},
		{MessageStatusFailed, MessageStatusSent, false},
		{MessageStatusRead, MessageStatusRead, true},
	}
	for _, tc := range cases {
		msg := &Message{Status: tc.from}
		if got := msg.CanTransitionTo(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestSortMessagesBreaksTiesBySeq(t *testing.T) {
	ts := time.Now()
	msgs := []Message{
		{ID: "m3", CreatedAt: ts, Seq: 3},
		{ID: "m1", CreatedAt: ts, Seq: 1},
		{ID: "m0", CreatedAt: ts.Add(-time.Second), Seq: 9},
		{ID: "m2", CreatedAt: ts, Seq: 2},
	}
	SortMessages(msgs)

	want := []string{"m0", "m1", "m2", "m3"}
	for i, id := range want {
		if msgs[i].ID != id {
			t.Fatalf("position %d: got %s, want %s", i, msgs[i].ID, id)
		}
	}
}

func TestMessageCloneIsIndependent(t *testing.T) {
	msg := &Message{ID: "m1", Metadata: map[string]string{"k": "v"}}
	cp := msg.Clone()
	cp.Metadata["k"] = "changed"
	if msg.Metadata["k"] != "v" {
		t.Fatal("clone shares metadata with original")
	}
}
