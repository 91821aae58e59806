// Package concurrency implements the per-node-type concurrency manager:
// atomic counters with notify-based waiters, drop-safe permit release, and
// statistics (§4.3).
package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// NodeType names the concurrency slot a permit is drawn from. Distinct from
// graph.NodeKind to keep this package free of a dependency on pkg/graph.
type NodeType string

const (
	NodeTypeGlobal         NodeType = "global"
	NodeTypeAgent          NodeType = "agent"
	NodeTypeHttpRequest    NodeType = "http_request"
	NodeTypeTransform      NodeType = "transform"
	NodeTypeCondition      NodeType = "condition"
	NodeTypeDelay          NodeType = "delay"
	NodeTypeDocumentLoader NodeType = "document_loader"
)

// Config maps each node type to its max concurrent permits.
type Config struct {
	Limits map[NodeType]int
}

// DefaultConfig is the "default" preset from §4.3.
func DefaultConfig() Config {
	return Config{Limits: map[NodeType]int{
		NodeTypeGlobal:    16,
		NodeTypeAgent:     4,
		NodeTypeHttpRequest: 8,
		NodeTypeTransform: 16,
		NodeTypeCondition: 32,
		NodeTypeDelay:     1,
	}}
}

// HighThroughputConfig favors maximum parallelism over latency.
func HighThroughputConfig() Config {
	return Config{Limits: map[NodeType]int{
		NodeTypeGlobal:      64,
		NodeTypeAgent:       16,
		NodeTypeHttpRequest: 32,
		NodeTypeTransform:   64,
		NodeTypeCondition:   128,
		NodeTypeDelay:       4,
	}}
}

// LowLatencyConfig keeps queues shallow so individual tasks aren't starved.
func LowLatencyConfig() Config {
	return Config{Limits: map[NodeType]int{
		NodeTypeGlobal:      8,
		NodeTypeAgent:       2,
		NodeTypeHttpRequest: 4,
		NodeTypeTransform:   8,
		NodeTypeCondition:   16,
		NodeTypeDelay:       1,
	}}
}

// MemoryOptimizedConfig caps everything low to bound peak memory use.
func MemoryOptimizedConfig() Config {
	return Config{Limits: map[NodeType]int{
		NodeTypeGlobal:      4,
		NodeTypeAgent:       1,
		NodeTypeHttpRequest: 2,
		NodeTypeTransform:   4,
		NodeTypeCondition:   8,
		NodeTypeDelay:       1,
	}}
}

// Stats is a point-in-time snapshot for one node type.
type Stats struct {
	TotalAcquisitions int64
	CumulativeWait    time.Duration
	CurrentActive     int64
	PeakActive        int64
	Failures          int64
}

// AverageWait returns the rolling average wait time across all acquisitions.
func (s Stats) AverageWait() time.Duration {
	if s.TotalAcquisitions == 0 {
		return 0
	}
	return s.CumulativeWait / time.Duration(s.TotalAcquisitions)
}

// slot is one node type's CAS counter plus a single notifier channel that
// wakes exactly one waiter per Release, FIFO best-effort (§4.3/§5).
type slot struct {
	max     int64
	current atomic.Int64
	peak    atomic.Int64

	mu      sync.Mutex
	waiters []chan struct{}

	totalAcquisitions atomic.Int64
	cumulativeWaitNs  atomic.Int64
	failures          atomic.Int64
}

// Manager eliminates a single global semaphore in favor of per-node-type
// atomic counters (§4.3).
type Manager struct {
	globalMax int64

	mu    sync.Mutex
	slots map[NodeType]*slot
}

// NewManager constructs a Manager from cfg. Unknown node types later
// requested fall back to globalMax/4 (§4.3).
func NewManager(cfg Config) *Manager {
	m := &Manager{slots: make(map[NodeType]*slot)}
	for nt, max := range cfg.Limits {
		m.slots[nt] = &slot{max: int64(max)}
	}
	if g, ok := cfg.Limits[NodeTypeGlobal]; ok {
		m.globalMax = int64(g)
	} else {
		m.globalMax = 16
	}
	return m
}

func (m *Manager) slotFor(nt NodeType) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[nt]
	if !ok {
		max := m.globalMax / 4
		if max < 1 {
			max = 1
		}
		s = &slot{max: max}
		m.slots[nt] = s
	}
	return s
}

// Permit represents a live slot in the concurrency manager (Glossary). A
// Permit must be released exactly once; Release is idempotent-safe against
// being called from a deferred cleanup after cancellation.
type Permit struct {
	s        *slot
	released atomic.Bool
}

// Acquire runs the CAS loop from §4.3: read current, CAS to current+1 if
// under max, or park on the slot's notifier until woken. The slow path
// re-checks the counter under the slot's mutex before registering as a
// waiter — the same mutex Release holds while decrementing and popping a
// waiter — so a Release landing between the lock-free check and the park
// can never be missed (a lost wakeup would otherwise deadlock an acquirer
// even though a slot had just freed up). Returns a Permit the caller must
// Release (typically via defer, so cancellation still releases it —
// "drop-safe" release per §4.3/§5).
func (m *Manager) Acquire(ctx context.Context, nt NodeType) (*Permit, error) {
	s := m.slotFor(nt)
	start := time.Now()

	for {
		cur := s.current.Load()
		if cur < s.max && s.current.CompareAndSwap(cur, cur+1) {
			s.totalAcquisitions.Add(1)
			s.cumulativeWaitNs.Add(int64(time.Since(start)))
			if newPeak := s.current.Load(); newPeak > s.peak.Load() {
				s.peak.Store(newPeak)
			}
			return &Permit{s: s}, nil
		}

		s.mu.Lock()
		if s.current.Load() < s.max {
			s.mu.Unlock()
			continue
		}
		wake := make(chan struct{})
		s.waiters = append(s.waiters, wake)
		s.mu.Unlock()

		select {
		case <-wake:
			continue
		case <-ctx.Done():
			s.failures.Add(1)
			return nil, ctx.Err()
		}
	}
}

// Release decrements the slot's counter and wakes exactly one waiter. The
// decrement and the waiter pop happen under the same mutex Acquire's slow
// path uses to re-check the counter, closing the lost-wakeup window. Safe
// to call multiple times; only the first call has effect, so deferred
// release after a cancellation still behaves correctly (§4.3).
func (p *Permit) Release() {
	if p == nil || !p.released.CompareAndSwap(false, true) {
		return
	}

	p.s.mu.Lock()
	p.s.current.Add(-1)
	var next chan struct{}
	if len(p.s.waiters) > 0 {
		next = p.s.waiters[0]
		p.s.waiters = p.s.waiters[1:]
	}
	p.s.mu.Unlock()

	if next != nil {
		close(next)
	}
}

// Stats returns a snapshot of one node type's counters.
func (m *Manager) Stats(nt NodeType) Stats {
	s := m.slotFor(nt)
	return Stats{
		TotalAcquisitions: s.totalAcquisitions.Load(),
		CumulativeWait:    time.Duration(s.cumulativeWaitNs.Load()),
		CurrentActive:     s.current.Load(),
		PeakActive:        s.peak.Load(),
		Failures:          s.failures.Load(),
	}
}

// AllStats returns a snapshot for every node type seen so far.
func (m *Manager) AllStats() map[NodeType]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[NodeType]Stats, len(m.slots))
	for nt, s := range m.slots {
		out[nt] = Stats{
			TotalAcquisitions: s.totalAcquisitions.Load(),
			CumulativeWait:    time.Duration(s.cumulativeWaitNs.Load()),
			CurrentActive:     s.current.Load(),
			PeakActive:        s.peak.Load(),
			Failures:          s.failures.Load(),
		}
	}
	return out
}
