package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cloudbridge/chatcore/internal/domain"
	"github.com/cloudbridge/chatcore/internal/store"
)

// Lifecycle evicts expired and inactive sessions on a fixed interval.
// Sessions are deleted outright, transcript included; there is no retention
// schedule for evicted sessions.
type Lifecycle struct {
	sessions   store.SessionStore
	messages   store.MessageStore
	interval   time.Duration
	inactivity time.Duration
}

// NewLifecycle creates a sweep manager.
func NewLifecycle(sessions store.SessionStore, messages store.MessageStore, interval, inactivity time.Duration) *Lifecycle {
	return &Lifecycle{
		sessions:   sessions,
		messages:   messages,
		interval:   interval,
		inactivity: inactivity,
	}
}

// Run sweeps on every tick until the context is canceled. A sweep error is
// logged; the next tick proceeds independently.
func (l *Lifecycle) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	log.Printf("Session lifecycle sweep started (interval=%s, inactivity=%s)", l.interval, l.inactivity)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Session lifecycle sweep stopped")
			return
		case <-ticker.C:
			evicted, err := l.Sweep(ctx)
			if err != nil {
				log.Printf("ERROR: session sweep failed: %v", err)
				continue
			}
			if evicted > 0 {
				log.Printf("Session sweep evicted %d sessions", evicted)
			}
		}
	}
}

// Sweep evicts expired sessions first, then sessions idle beyond the
// inactivity threshold. Running it again with no new expirations is a no-op.
func (l *Lifecycle) Sweep(ctx context.Context) (int, error) {
	expired, err := l.sessions.GetExpiredSessions(ctx)
	if err != nil {
		return 0, err
	}
	inactive, err := l.sessions.GetInactiveSessions(ctx, l.inactivity)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(expired)+len(inactive))
	evicted := 0
	for _, sess := range append(expired, inactive...) {
		if seen[sess.ID] {
			continue
		}
		seen[sess.ID] = true

		if err := ctx.Err(); err != nil {
			return evicted, err
		}
		if err := l.evict(ctx, sess.ID); err != nil {
			// Keep going; one bad session must not stall the sweep.
			log.Printf("ERROR: failed to evict session %s: %v", sess.ID, err)
			continue
		}
		evicted++
	}
	return evicted, nil
}

func (l *Lifecycle) evict(ctx context.Context, sessionID string) error {
	if _, err := l.messages.DeleteBySessionID(ctx, sessionID); err != nil {
		return err
	}
	err := l.sessions.Delete(ctx, sessionID)
	// A concurrent eviction already removed it; that is not a failure.
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil
	}
	return err
}
