package limiter

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kmatveev/daily-sudoku/internal/errs"
)

// Memory is a capacity-bounded in-process limiter. Each token gets one
// shared expiry window (reset on expiry, not sliding). When capacity is
// exceeded the least-recently-used token is evicted, resetting its
// quota early; bounded memory is preferred over strict fairness here.
type Memory struct {
	mu            sync.Mutex
	clock         clockwork.Clock
	ttl           time.Duration
	capacity      int
	escalateAfter int
	log           *zap.Logger

	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

type entry struct {
	token      string
	count      int
	violations int
	expiresAt  time.Time
}

// NewMemory constructs an in-memory limiter. Construct one per process
// and pass it by reference to call sites; tests build isolated instances.
func NewMemory(capacity int, ttl time.Duration, escalateAfter int, clock clockwork.Clock, log *zap.Logger) *Memory {
	if capacity <= 0 {
		capacity = 1024
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Memory{
		clock:         clock,
		ttl:           ttl,
		capacity:      capacity,
		escalateAfter: escalateAfter,
		log:           log,
		entries:       make(map[string]*list.Element),
		order:         list.New(),
	}
}

// Check records one request for token and admits it while the window
// counter stays within limit.
func (m *Memory) Check(_ context.Context, token string, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()

	el, ok := m.entries[token]
	if ok {
		e := el.Value.(*entry)
		if !now.Before(e.expiresAt) {
			// window elapsed: fresh counter, violations persist for escalation
			e.count = 0
			e.expiresAt = now.Add(m.ttl)
		}
		e.count++
		m.order.MoveToFront(el)
		if e.count > limit {
			return m.reject(e)
		}
		return nil
	}

	if m.order.Len() >= m.capacity {
		oldest := m.order.Back()
		if oldest != nil {
			evicted := oldest.Value.(*entry)
			delete(m.entries, evicted.token)
			m.order.Remove(oldest)
		}
	}

	e := &entry{token: token, count: 1, expiresAt: now.Add(m.ttl)}
	m.entries[token] = m.order.PushFront(e)
	if e.count > limit {
		return m.reject(e)
	}
	return nil
}

func (m *Memory) reject(e *entry) error {
	e.violations++
	if m.escalateAfter > 0 && e.violations == m.escalateAfter {
		// out-of-band alert, not a hard block
		m.log.Error("rate limit violations exceeded escalation threshold",
			zap.String("token", e.token),
			zap.Int("violations", e.violations),
		)
	} else {
		m.log.Warn("rate limited",
			zap.String("token", e.token),
			zap.Int("count", e.count),
		)
	}
	return errs.ErrRateLimited
}

// Len reports the number of tracked tokens. Diagnostic only.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
