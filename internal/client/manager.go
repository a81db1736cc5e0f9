package client

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cloudbridge/chatcore/internal/domain"
)

// Manager defaults.
const (
	DefaultFailureThreshold = 3
	DefaultFailureWindow    = 30 * time.Second
	DefaultCooldown         = 15 * time.Second

	// Receives overlap the watermark by this much so an entry persisted in
	// the same instant as the previous batch is not missed. Duplicates from
	// the overlap are dropped by ID.
	watermarkOverlap = time.Second
)

// ModeObserver is notified after the active transport changes.
type ModeObserver func(from, to Mode, reason string)

// ManagerConfig tunes failover behavior. Zero values take defaults.
type ManagerConfig struct {
	// FailureThreshold is the number of transport failures inside
	// FailureWindow that triggers a switch to the fallback.
	FailureThreshold int
	FailureWindow    time.Duration
	// Cooldown is how long the manager stays on the fallback before it
	// probes the preferred transport again.
	Cooldown time.Duration
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.FailureWindow <= 0 {
		c.FailureWindow = DefaultFailureWindow
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	return c
}

// Manager fronts two transports and fails over from the preferred to the
// fallback when the preferred keeps erroring, then promotes back once a
// health probe succeeds after a cooldown. All mode transitions are
// serialized; concurrent callers observe a consistent active mode.
type Manager struct {
	preferred Transport
	fallback  Transport
	cfg       ManagerConfig

	mu        sync.Mutex
	active    Transport
	failures  []time.Time
	demotedAt time.Time
	observers []ModeObserver

	sessionID string
	watermark time.Time
	seen      map[string]bool
	now       func() time.Time
}

// NewManager creates a manager that starts on the preferred transport.
func NewManager(preferred, fallback Transport, cfg ManagerConfig) *Manager {
	return &Manager{
		preferred: preferred,
		fallback:  fallback,
		cfg:       cfg.withDefaults(),
		active:    preferred,
		seen:      make(map[string]bool),
		now:       time.Now,
	}
}

// OnModeChange registers an observer for transport switches.
func (m *Manager) OnModeChange(fn ModeObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Mode returns the active transport mode.
func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active.Mode()
}

// SessionID returns the session the manager is tracking, if any.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// SetSessionID pins the manager to an existing session.
func (m *Manager) SetSessionID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionID = id
}

// Submit delivers one message over the active transport. If the preferred
// transport fails hard enough to trip the failover, the message is
// resubmitted exactly once on the fallback so a degraded link does not
// lose it.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	m.maybePromote(ctx)

	m.mu.Lock()
	active := m.active
	if req.SessionID == "" {
		req.SessionID = m.sessionID
	}
	m.mu.Unlock()

	result, err := active.Submit(ctx, req)
	if err == nil {
		m.noteSession(result.SessionID)
		return result, nil
	}
	if !isTransportError(err) || active != m.preferred {
		return nil, err
	}

	if !m.recordFailure("submit failed: " + err.Error()) {
		return nil, err
	}

	// The switch just happened; this submission rides the fallback once.
	result, err = m.fallback.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	m.noteSession(result.SessionID)
	return result, nil
}

// Receive fetches new transcript entries since the manager's watermark,
// deduplicates entries already seen and returns them in transcript order.
func (m *Manager) Receive(ctx context.Context) ([]domain.Message, error) {
	m.maybePromote(ctx)

	m.mu.Lock()
	active := m.active
	sessionID := m.sessionID
	since := m.watermark
	m.mu.Unlock()

	if sessionID == "" {
		return nil, nil
	}
	if !since.IsZero() {
		since = since.Add(-watermarkOverlap)
	}

	msgs, err := active.Receive(ctx, sessionID, since)
	if err != nil {
		if !isTransportError(err) || active != m.preferred {
			return nil, err
		}
		if !m.recordFailure("receive failed: " + err.Error()) {
			return nil, err
		}
		msgs, err = m.fallback.Receive(ctx, sessionID, since)
		if err != nil {
			return nil, err
		}
	}

	return m.reconcile(msgs), nil
}

// reconcile drops entries already delivered, advances the watermark and
// restores transcript order across transports.
func (m *Manager) reconcile(msgs []domain.Message) []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	var fresh []domain.Message
	for _, msg := range msgs {
		if msg.ID == "" || m.seen[msg.ID] {
			continue
		}
		m.seen[msg.ID] = true
		if msg.CreatedAt.After(m.watermark) {
			m.watermark = msg.CreatedAt
		}
		fresh = append(fresh, msg)
	}
	domain.SortMessages(fresh)
	return fresh
}

// HealthCheck probes the active transport.
func (m *Manager) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	active := m.active
	m.mu.Unlock()
	return active.HealthCheck(ctx)
}

// Close closes both transports.
func (m *Manager) Close() error {
	err := m.preferred.Close()
	if ferr := m.fallback.Close(); err == nil {
		err = ferr
	}
	return err
}

func (m *Manager) noteSession(id string) {
	if id == "" {
		return
	}
	m.mu.Lock()
	m.sessionID = id
	m.mu.Unlock()
}

// recordFailure adds a failure to the sliding window and demotes to the
// fallback when the threshold trips. It reports whether a demotion
// happened on this call.
func (m *Manager) recordFailure(reason string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != m.preferred {
		return false
	}

	now := m.now()
	cutoff := now.Add(-m.cfg.FailureWindow)
	kept := m.failures[:0]
	for _, t := range m.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	m.failures = append(kept, now)

	if len(m.failures) < m.cfg.FailureThreshold {
		return false
	}

	m.failures = nil
	m.demotedAt = now
	m.switchLocked(m.fallback, reason)
	return true
}

// maybePromote probes the preferred transport once the cooldown has
// elapsed and promotes back if the probe succeeds.
func (m *Manager) maybePromote(ctx context.Context) {
	m.mu.Lock()
	if m.active == m.preferred || m.now().Sub(m.demotedAt) < m.cfg.Cooldown {
		m.mu.Unlock()
		return
	}
	// Push the next probe out a full cooldown so concurrent callers do not
	// stack probes while this one is in flight.
	m.demotedAt = m.now()
	m.mu.Unlock()

	if err := m.preferred.HealthCheck(ctx); err != nil {
		log.Printf("WARN: preferred transport still unhealthy: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == m.preferred {
		return
	}
	m.failures = nil
	m.switchLocked(m.preferred, "preferred transport recovered")
}

// switchLocked swaps the active transport and notifies observers.
// Callers must hold m.mu.
func (m *Manager) switchLocked(to Transport, reason string) {
	from := m.active.Mode()
	m.active = to
	log.Printf("WARN: transport mode %s -> %s: %s", from, to.Mode(), reason)
	for _, fn := range m.observers {
		// Observers run inline so the notification is ordered with the
		// switch; they must not call back into the manager.
		fn(from, to.Mode(), reason)
	}
}

func isTransportError(err error) bool {
	var te *domain.TransportError
	return errors.As(err, &te)
}
