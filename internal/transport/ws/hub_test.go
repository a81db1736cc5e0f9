package ws

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func recvFrame(t *testing.T, ch chan []byte) map[string]interface{} {
	t.Helper()
	select {
	case data := <-ch:
		var frame map[string]interface{}
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return frame
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func TestHubSessionFanout(t *testing.T) {
	h := NewHub()
	go h.Run()

	a := h.NewConnection(nil)
	b := h.NewConnection(nil)
	other := h.NewConnection(nil)
	for _, conn := range []*Connection{a, b, other} {
		h.Register(conn)
	}

	h.BindSession(a, "s1")
	h.BindSession(b, "s1")
	h.BindSession(other, "s2")

	if err := h.BroadcastJSON("s1", map[string]string{"event": "message"}); err != nil {
		t.Fatalf("BroadcastJSON failed: %v", err)
	}

	for _, conn := range []*Connection{a, b} {
		frame := recvFrame(t, conn.Send)
		if frame["event"] != "message" {
			t.Fatalf("unexpected frame: %v", frame)
		}
	}

	select {
	case data := <-other.Send:
		t.Fatalf("frame leaked to another session: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRebindMovesConnection(t *testing.T) {
	h := NewHub()
	go h.Run()

	conn := h.NewConnection(nil)
	h.Register(conn)
	h.BindSession(conn, "s1")
	h.BindSession(conn, "s2")

	if h.HasActiveConnections("s1") {
		t.Fatal("connection still bound to the old session")
	}
	if !h.HasActiveConnections("s2") {
		t.Fatal("connection not bound to the new session")
	}

	if err := h.BroadcastJSON("s2", map[string]string{"event": "status"}); err != nil {
		t.Fatalf("BroadcastJSON failed: %v", err)
	}
	frame := recvFrame(t, conn.Send)
	if frame["event"] != "status" {
		t.Fatalf("unexpected frame: %v", frame)
	}
}

func TestHubBoundSessionUnderConcurrentRebind(t *testing.T) {
	h := NewHub()
	conn := h.NewConnection(nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			h.BindSession(conn, "s1")
			h.BindSession(conn, "s2")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 400; i++ {
			if got := h.BoundSession(conn); got != "" && got != "s1" && got != "s2" {
				t.Errorf("unexpected binding: %q", got)
			}
		}
	}()
	wg.Wait()

	if got := h.BoundSession(conn); got != "s1" && got != "s2" {
		t.Fatalf("final binding lost: %q", got)
	}
}

func TestHubSendJSONBufferFull(t *testing.T) {
	h := NewHub()

	conn := &Connection{ID: "c1", Send: make(chan []byte, 1)}
	if err := h.SendJSON(conn, map[string]string{"a": "1"}); err != nil {
		t.Fatalf("SendJSON failed: %v", err)
	}
	if err := h.SendJSON(conn, map[string]string{"a": "2"}); err != ErrBufferFull {
		t.Fatalf("expected ErrBufferFull, got %v", err)
	}
}

func TestHubUnregisterClosesSend(t *testing.T) {
	h := NewHub()
	go h.Run()

	conn := h.NewConnection(nil)
	h.Register(conn)
	h.BindSession(conn, "s1")
	h.Unregister(conn)

	select {
	case _, ok := <-conn.Send:
		if ok {
			t.Fatal("expected the send channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}

	if h.HasActiveConnections("s1") {
		t.Fatal("session binding survived unregister")
	}
}
