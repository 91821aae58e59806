// Package memory implements the hybrid memory subsystem (§4.7): the
// short-lived Working/Factual/Episodic/Semantic store behind shared
// storage, and the persistent deduplicating MemoryService.
package memory

import (
	"time"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

// Type distinguishes the four memory tiers by lifetime and shape (§3/§4.7).
type Type string

const (
	TypeWorking  Type = "working"
	TypeFactual  Type = "factual"
	TypeEpisodic Type = "episodic"
	TypeSemantic Type = "semantic"
)

// defaultImportance is the importance_score assigned at creation when the
// caller doesn't override it, per the §4.7 table.
func defaultImportance(t Type) float64 {
	switch t {
	case TypeWorking:
		return 0.5
	case TypeFactual:
		return 0.8
	case TypeEpisodic:
		return 0.7
	default:
		return 0.5 // Semantic equals confidence; set by the caller instead.
	}
}

// defaultCapacity is the per-type eviction ceiling from the §4.7 table.
func defaultCapacity(t Type) int {
	switch t {
	case TypeWorking:
		return 100
	case TypeFactual:
		return 1000
	case TypeEpisodic:
		return 500
	case TypeSemantic:
		return 200
	default:
		return 100
	}
}

// EntryMetadata is MemoryEntry's free-form metadata bag (§3).
type EntryMetadata struct {
	Source string            `json:"source,omitempty"`
	Tags   []string          `json:"tags,omitempty"`
	Custom map[string]any    `json:"custom,omitempty"`
}

// Entry is one memory record (§3).
type Entry struct {
	Id              ids.MemoryId    `json:"id"`
	Content         string          `json:"content"`
	MemoryType      Type            `json:"memory_type"`
	ImportanceScore float64         `json:"importance_score"`
	CreatedAt       time.Time       `json:"created_at"`
	LastAccessed    time.Time       `json:"last_accessed"`
	AccessCount     int             `json:"access_count"`
	SessionId       *ids.SessionId  `json:"session_id,omitempty"`
	Embedding       []float32       `json:"embedding,omitempty"`
	Metadata        EntryMetadata   `json:"metadata"`
	RelatedMemories []ids.MemoryId  `json:"related_memories,omitempty"`

	// Namespace is populated for Factual entries only ("namespace:<ns>" tag,
	// also mirrored here for direct index lookup).
	Namespace string `json:"namespace,omitempty"`

	// Episodic-only fields.
	Episode *EpisodeDetail `json:"episode,omitempty"`

	// Semantic-only fields.
	Semantic *SemanticDetail `json:"semantic,omitempty"`
}

// EpisodeDetail holds the structured shape of an Episodic memory (§4.7).
type EpisodeDetail struct {
	Title        string   `json:"title"`
	Participants []string `json:"participants,omitempty"`
	Outcome      string   `json:"outcome,omitempty"`
	Ended        bool     `json:"ended"`
}

// SemanticDetail holds the structured shape of a Semantic memory (§4.7).
// Confidence rises by 0.1*(1-confidence) on each reinforcement.
type SemanticDetail struct {
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	Confidence         float64        `json:"confidence"`
	ReinforcementCount int            `json:"reinforcement_count"`
	Relations          []ids.MemoryId `json:"relations,omitempty"`
}

// Reinforce bumps confidence toward 1.0 and increments the count (§4.7).
func (s *SemanticDetail) Reinforce() {
	s.Confidence += 0.1 * (1 - s.Confidence)
	s.ReinforcementCount++
}

// Touch updates access bookkeeping, per "Access updates last_accessed and
// increments access_count" (§3).
func (e *Entry) Touch(now time.Time) {
	e.LastAccessed = now
	e.AccessCount++
}

// Scope isolates persistent memories by (user, agent, run); a nil field
// matches any value (§3).
type Scope struct {
	UserId  *string
	AgentId *string
	RunId   *string
}

// Matches reports whether candidate satisfies scope, treating nil fields in
// scope as wildcards.
func (s Scope) Matches(candidate Scope) bool {
	if s.UserId != nil && (candidate.UserId == nil || *candidate.UserId != *s.UserId) {
		return false
	}
	if s.AgentId != nil && (candidate.AgentId == nil || *candidate.AgentId != *s.AgentId) {
		return false
	}
	if s.RunId != nil && (candidate.RunId == nil || *candidate.RunId != *s.RunId) {
		return false
	}
	return true
}

// Query describes a retrieval request against the shared store (§3).
type Query struct {
	Text          string
	MemoryType    *Type
	SessionId     *ids.SessionId
	Tags          []string
	Limit         int
	MinSimilarity float64
}
