package memory

import (
	"sync"
	"time"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

// storage is the in-process shared store behind every memory-type manager,
// indexed by id, type, session, and (for factual) namespace, guarded by a
// single reader-writer lock (§4.7/§5: "Shared storage is an in-process map
// ... Reads may proceed in parallel; writes exclude all other access").
type storage struct {
	mu sync.RWMutex

	byID      map[ids.MemoryId]*Entry
	byType    map[Type]map[ids.MemoryId]bool
	bySession map[ids.SessionId]map[ids.MemoryId]bool
	byNS      map[string]map[ids.MemoryId]bool
}

func newStorage() *storage {
	return &storage{
		byID:      make(map[ids.MemoryId]*Entry),
		byType:    make(map[Type]map[ids.MemoryId]bool),
		bySession: make(map[ids.SessionId]map[ids.MemoryId]bool),
		byNS:      make(map[string]map[ids.MemoryId]bool),
	}
}

// put inserts or replaces an entry and evicts the lowest-importance entry of
// the same type (ties broken by oldest last_accessed) if capacity is
// exceeded (§4.7).
func (s *storage) put(e *Entry, capacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putLocked(e, capacity)
}

func (s *storage) putLocked(e *Entry, capacity int) {
	s.byID[e.Id] = e

	if s.byType[e.MemoryType] == nil {
		s.byType[e.MemoryType] = make(map[ids.MemoryId]bool)
	}
	s.byType[e.MemoryType][e.Id] = true

	if e.SessionId != nil {
		if s.bySession[*e.SessionId] == nil {
			s.bySession[*e.SessionId] = make(map[ids.MemoryId]bool)
		}
		s.bySession[*e.SessionId][e.Id] = true
	}

	if e.Namespace != "" {
		if s.byNS[e.Namespace] == nil {
			s.byNS[e.Namespace] = make(map[ids.MemoryId]bool)
		}
		s.byNS[e.Namespace][e.Id] = true
	}

	s.evictIfOverCapacityLocked(e.MemoryType, capacity)
}

func (s *storage) evictIfOverCapacityLocked(t Type, capacity int) {
	ids_ := s.byType[t]
	if capacity <= 0 || len(ids_) <= capacity {
		return
	}
	for len(ids_) > capacity {
		var worst ids.MemoryId
		var worstEntry *Entry
		for id := range ids_ {
			e := s.byID[id]
			if worstEntry == nil ||
				e.ImportanceScore < worstEntry.ImportanceScore ||
				(e.ImportanceScore == worstEntry.ImportanceScore && e.LastAccessed.Before(worstEntry.LastAccessed)) {
				worst = id
				worstEntry = e
			}
		}
		s.removeLocked(worst)
	}
}

func (s *storage) get(id ids.MemoryId) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byID[id]
	return e, ok
}

func (s *storage) touch(id ids.MemoryId, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byID[id]; ok {
		e.Touch(now)
	}
}

func (s *storage) remove(id ids.MemoryId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

func (s *storage) removeLocked(id ids.MemoryId) {
	e, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	delete(s.byType[e.MemoryType], id)
	if e.SessionId != nil {
		delete(s.bySession[*e.SessionId], id)
	}
	if e.Namespace != "" {
		delete(s.byNS[e.Namespace], id)
	}
}

// removeSession deletes every entry tied to session (Working memory expires
// when the session ends, §4.7).
func (s *storage) removeSession(session ids.SessionId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.bySession[session] {
		s.removeLocked(id)
	}
	delete(s.bySession, session)
}

// all returns every entry currently stored, optionally filtered by type.
func (s *storage) all(t *Type) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t == nil {
		out := make([]*Entry, 0, len(s.byID))
		for _, e := range s.byID {
			out = append(out, e)
		}
		return out
	}
	ids_ := s.byType[*t]
	out := make([]*Entry, 0, len(ids_))
	for id := range ids_ {
		out = append(out, s.byID[id])
	}
	return out
}

func (s *storage) namespaceEntries(ns string) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, 0, len(s.byNS[ns]))
	for id := range s.byNS[ns] {
		out = append(out, s.byID[id])
	}
	return out
}

// count returns the number of entries stored for a given type.
func (s *storage) count(t Type) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byType[t])
}
