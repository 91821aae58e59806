package memory

import (
	"math"
	"time"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

// DecayConfig tunes the periodic forgetting policy (§4.7).
type DecayConfig struct {
	Interval                     time.Duration
	Threshold                    float64
	PerTypeThreshold             map[Type]float64
	RecentAccessProtection       time.Duration
	ImportanceProtectionThreshold float64

	// ageHalfLife / recencyHalfLife tune the exponential decays exp(-t/τ);
	// they are not named in §4.7's formula. Defaults are τ = 30 days for age
	// and τ = 7 days for recency, at which each score has fallen to 1/e.
	ageHalfLife     time.Duration
	recencyHalfLife time.Duration
}

// DefaultDecayConfig returns the §4.7 defaults: 1h interval, 0.3 threshold,
// 24h recent-access protection, 0.8 importance-protection threshold.
func DefaultDecayConfig() DecayConfig {
	return DecayConfig{
		Interval:                      time.Hour,
		Threshold:                     0.3,
		PerTypeThreshold:              map[Type]float64{},
		RecentAccessProtection:        24 * time.Hour,
		ImportanceProtectionThreshold: 0.8,
		ageHalfLife:                   30 * 24 * time.Hour,
		recencyHalfLife:               7 * 24 * time.Hour,
	}
}

func (c DecayConfig) thresholdFor(t Type) float64 {
	if v, ok := c.PerTypeThreshold[t]; ok {
		return v
	}
	return c.Threshold
}

// decayScore computes §4.7's composite survival score:
//
//	decay = (age_score*0.3 + recency_score*0.5 + access_boost*0.2) * importance_score
func decayScore(e *Entry, now time.Time, cfg DecayConfig) float64 {
	age := now.Sub(e.CreatedAt)
	sinceAccess := now.Sub(e.LastAccessed)

	ageScore := clamp01(math.Exp(-float64(age) / float64(cfg.ageHalfLife)))
	recencyScore := clamp01(math.Exp(-float64(sinceAccess) / float64(cfg.recencyHalfLife)))
	accessBoost := clamp01(math.Log(1+float64(e.AccessCount)) / 10)

	return (ageScore*0.3 + recencyScore*0.5 + accessBoost*0.2) * e.ImportanceScore
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// isProtected reports whether an entry is exempt from decay regardless of
// its score: recently accessed, or important enough (§4.7).
func isProtected(e *Entry, now time.Time, cfg DecayConfig) bool {
	if now.Sub(e.LastAccessed) <= cfg.RecentAccessProtection {
		return true
	}
	return e.ImportanceScore >= cfg.ImportanceProtectionThreshold
}

// runDecay evaluates every stored entry and forgets those whose decay score
// falls below their type's threshold and are not protected. Returns the ids
// forgotten (§4.7/§8 "Decay idempotence": an unchanged store's second run
// forgets nothing further).
func (m *Manager) runDecay(cfg DecayConfig) []ids.MemoryId {
	now := time.Now()
	var forgotten []ids.MemoryId

	for _, e := range m.storage.all(nil) {
		if isProtected(e, now, cfg) {
			continue
		}
		score := decayScore(e, now, cfg)
		if score < cfg.thresholdFor(e.MemoryType) {
			m.storage.remove(e.Id)
			forgotten = append(forgotten, e.Id)
		}
	}
	return forgotten
}
