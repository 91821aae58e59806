package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/graphbit-dev/graphbit/pkg/embedding"
	"github.com/graphbit-dev/graphbit/pkg/ids"
)

// Config bundles the short-lived tier's tunables: per-type capacity
// overrides and the decay policy (§4.7).
type Config struct {
	Capacity    map[Type]int
	Decay       DecayConfig
	AutoDecay   bool
}

// DefaultConfig returns the §4.7 table's defaults plus DefaultDecayConfig.
func DefaultConfig() Config {
	return Config{Capacity: map[Type]int{}, Decay: DefaultDecayConfig()}
}

func (c Config) capacityFor(t Type) int {
	if v, ok := c.Capacity[t]; ok {
		return v
	}
	return defaultCapacity(t)
}

// Manager is the facade over the four memory types and their shared storage
// (§4.7, §6 "Memory" library API).
type Manager struct {
	cfg      Config
	storage  *storage
	embedder embedding.Embedder

	episodesMu sync.Mutex
	episodes   map[ids.MemoryId]*Entry // open episodes, keyed by id, pending EndEpisode

	decayStop chan struct{}
	decayOnce sync.Once
}

// NewManager constructs a memory manager. embedder may be nil, in which
// case retrieval falls back to token-overlap similarity (§4.7).
func NewManager(cfg Config, embedder embedding.Embedder) *Manager {
	return &Manager{
		cfg:      cfg,
		storage:  newStorage(),
		embedder: embedder,
		episodes: make(map[ids.MemoryId]*Entry),
	}
}

// StartSession is a no-op placeholder hook: Working-memory entries are
// already scoped by SessionId at write time; StartSession exists so callers
// have a symmetric bracket with EndSession (removeSession).
func (m *Manager) StartSession(session ids.SessionId) {}

// EndSession expires every Working-memory entry tied to session (§4.7: "Per
// session scratch that expires when the session ends").
func (m *Manager) EndSession(session ids.SessionId) {
	m.storage.removeSession(session)
}

// StoreWorking writes a Working-memory entry scoped to session.
func (m *Manager) StoreWorking(ctx context.Context, session ids.SessionId, content string) *Entry {
	e := m.newEntry(ctx, TypeWorking, content, defaultImportance(TypeWorking))
	e.SessionId = &session
	m.storage.put(e, m.cfg.capacityFor(TypeWorking))
	return e
}

// StoreFact writes a Factual entry as "key: value" content, optionally
// namespaced via a "namespace:<ns>" tag (§4.7).
func (m *Manager) StoreFact(ctx context.Context, namespace, key, value string) *Entry {
	content := fmt.Sprintf("%s: %s", key, value)
	e := m.newEntry(ctx, TypeFactual, content, defaultImportance(TypeFactual))
	if namespace != "" {
		e.Namespace = namespace
		e.Metadata.Tags = append(e.Metadata.Tags, "namespace:"+namespace)
	}
	e.Metadata.Custom = map[string]any{"key": key, "value": value}
	m.storage.put(e, m.cfg.capacityFor(TypeFactual))
	return e
}

// GetFact returns the value stored under key in namespace, if present
// (§8 "Memory round-trip").
func (m *Manager) GetFact(namespace, key string) (string, bool) {
	var candidates []*Entry
	if namespace != "" {
		candidates = m.storage.namespaceEntries(namespace)
	} else {
		candidates = m.storage.all(typePtr(TypeFactual))
	}
	for _, e := range candidates {
		if e.MemoryType != TypeFactual {
			continue
		}
		if k, _ := e.Metadata.Custom["key"].(string); k == key {
			if v, ok := e.Metadata.Custom["value"].(string); ok {
				return v, true
			}
		}
	}
	return "", false
}

// UpdateFact overwrites the value for an existing key, or stores a fresh
// entry if none exists.
func (m *Manager) UpdateFact(ctx context.Context, namespace, key, value string) *Entry {
	var candidates []*Entry
	if namespace != "" {
		candidates = m.storage.namespaceEntries(namespace)
	} else {
		candidates = m.storage.all(typePtr(TypeFactual))
	}
	for _, e := range candidates {
		if e.MemoryType != TypeFactual {
			continue
		}
		if k, _ := e.Metadata.Custom["key"].(string); k == key {
			e.Content = fmt.Sprintf("%s: %s", key, value)
			e.Metadata.Custom["value"] = value
			return e
		}
	}
	return m.StoreFact(ctx, namespace, key, value)
}

// DeleteFact removes the entry stored under key, if present.
func (m *Manager) DeleteFact(namespace, key string) {
	var candidates []*Entry
	if namespace != "" {
		candidates = m.storage.namespaceEntries(namespace)
	} else {
		candidates = m.storage.all(typePtr(TypeFactual))
	}
	for _, e := range candidates {
		if e.MemoryType != TypeFactual {
			continue
		}
		if k, _ := e.Metadata.Custom["key"].(string); k == key {
			m.storage.remove(e.Id)
			return
		}
	}
}

// StoreConcept writes a Semantic entry, whose importance equals confidence
// (§4.7).
func (m *Manager) StoreConcept(ctx context.Context, name, description string, confidence float64) *Entry {
	e := m.newEntry(ctx, TypeSemantic, description, confidence)
	e.Semantic = &SemanticDetail{Name: name, Description: description, Confidence: confidence}
	m.storage.put(e, m.cfg.capacityFor(TypeSemantic))
	return e
}

// ReinforceConcept bumps an existing Semantic entry's confidence (§4.7).
func (m *Manager) ReinforceConcept(id ids.MemoryId) {
	if e, ok := m.storage.get(id); ok && e.Semantic != nil {
		e.Semantic.Reinforce()
		e.ImportanceScore = e.Semantic.Confidence
	}
}

// StartEpisode opens a new Episodic entry for later appends via
// AddToEpisode, finalized by EndEpisode (§4.7).
func (m *Manager) StartEpisode(ctx context.Context, title string, participants []string) ids.MemoryId {
	e := m.newEntry(ctx, TypeEpisodic, "", defaultImportance(TypeEpisodic))
	e.Episode = &EpisodeDetail{Title: title, Participants: participants}
	m.storage.put(e, m.cfg.capacityFor(TypeEpisodic))

	m.episodesMu.Lock()
	m.episodes[e.Id] = e
	m.episodesMu.Unlock()
	return e.Id
}

// AddToEpisode appends content to an open episode.
func (m *Manager) AddToEpisode(id ids.MemoryId, content string) error {
	m.episodesMu.Lock()
	defer m.episodesMu.Unlock()
	e, ok := m.episodes[id]
	if !ok {
		return ids.NewErrorf(ids.KindMemory, "episode %s is not open", id)
	}
	if e.Content != "" {
		e.Content += "\n"
	}
	e.Content += content
	return nil
}

// EndEpisode finalizes an open episode with its outcome and stops accepting
// further appends.
func (m *Manager) EndEpisode(id ids.MemoryId, outcome string) error {
	m.episodesMu.Lock()
	defer m.episodesMu.Unlock()
	e, ok := m.episodes[id]
	if !ok {
		return ids.NewErrorf(ids.KindMemory, "episode %s is not open", id)
	}
	e.Episode.Outcome = outcome
	e.Episode.Ended = true
	delete(m.episodes, id)
	return nil
}

// Retrieve runs the §4.7 retrieval algorithm against the shared store.
func (m *Manager) Retrieve(ctx context.Context, q Query) []*Entry {
	return m.retrieve(ctx, q)
}

// RunDecay applies the configured decay policy once, returning the ids
// forgotten (§4.7).
func (m *Manager) RunDecay() []ids.MemoryId {
	return m.runDecay(m.cfg.Decay)
}

// StartAutoDecay runs RunDecay on cfg.Decay.Interval until ctx is cancelled
// (§5: "Memory decay interval: configurable, default 1h").
func (m *Manager) StartAutoDecay(ctx context.Context) {
	m.decayOnce.Do(func() {
		m.decayStop = make(chan struct{})
		go func() {
			ticker := time.NewTicker(m.cfg.Decay.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					m.RunDecay()
				case <-ctx.Done():
					return
				case <-m.decayStop:
					return
				}
			}
		}()
	})
}

// StopAutoDecay stops the background decay loop started by StartAutoDecay.
func (m *Manager) StopAutoDecay() {
	if m.decayStop != nil {
		close(m.decayStop)
	}
}

// Stats summarizes the short-lived tier's current population.
type Stats struct {
	CountByType map[Type]int
}

// GetStats returns the current per-type entry counts.
func (m *Manager) GetStats() Stats {
	out := Stats{CountByType: map[Type]int{}}
	for _, t := range []Type{TypeWorking, TypeFactual, TypeEpisodic, TypeSemantic} {
		out.CountByType[t] = m.storage.count(t)
	}
	return out
}

func (m *Manager) newEntry(ctx context.Context, t Type, content string, importance float64) *Entry {
	now := time.Now()
	e := &Entry{
		Id:              ids.NewMemoryId(),
		Content:         content,
		MemoryType:      t,
		ImportanceScore: importance,
		CreatedAt:       now,
		LastAccessed:    now,
		AccessCount:     0,
	}
	if m.embedder != nil && content != "" {
		if vec, err := m.embedder.Embed(ctx, content); err == nil {
			e.Embedding = vec
		}
	}
	return e
}

func typePtr(t Type) *Type { return &t }
