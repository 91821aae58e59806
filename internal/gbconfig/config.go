// Package gbconfig loads GraphBit's executor/provider configuration from
// YAML with environment-variable overlays, grounded on hector's
// pkg/config/koanf_loader.go and simplified to the file+env concern this
// module actually uses (the teacher's consul/etcd/zookeeper providers have no
// home here — see DESIGN.md).
package gbconfig

import (
	"log/slog"

	"github.com/graphbit-dev/graphbit/internal/gblog"
	"github.com/graphbit-dev/graphbit/pkg/concurrency"
	"github.com/graphbit-dev/graphbit/pkg/llm"
	"github.com/graphbit-dev/graphbit/pkg/memory"
)

// AgentSpec is one entry of the "agents" config block: a named binding of an
// agent id to an LLM provider configuration and its node-level defaults.
type AgentSpec struct {
	Id           string        `yaml:"id"`
	Name         string        `yaml:"name"`
	Description  string        `yaml:"description"`
	Llm          llm.LlmConfig `yaml:"llm"`
	SystemPrompt string        `yaml:"system_prompt"`
	Temperature  *float64      `yaml:"temperature"`
	MaxTokens    *int          `yaml:"max_tokens"`
}

// ConcurrencyPreset names one of the presets from §4.3, selectable from
// config instead of only from Go code.
type ConcurrencyPreset string

const (
	PresetDefault         ConcurrencyPreset = "default"
	PresetHighThroughput  ConcurrencyPreset = "high_throughput"
	PresetLowLatency      ConcurrencyPreset = "low_latency"
	PresetMemoryOptimized ConcurrencyPreset = "memory_optimized"
)

// Resolve maps a preset name onto its concurrency.Config, defaulting to
// concurrency.DefaultConfig for an empty or unknown value.
func (p ConcurrencyPreset) Resolve() concurrency.Config {
	switch p {
	case PresetHighThroughput:
		return concurrency.HighThroughputConfig()
	case PresetLowLatency:
		return concurrency.LowLatencyConfig()
	case PresetMemoryOptimized:
		return concurrency.MemoryOptimizedConfig()
	default:
		return concurrency.DefaultConfig()
	}
}

// MemorySpec configures the short-lived memory tier's capacity and decay
// policy (§4.7/§5).
type MemorySpec struct {
	Capacity          map[memory.Type]int `yaml:"capacity"`
	AutoDecay         bool                `yaml:"auto_decay"`
	DecayIntervalSecs int                 `yaml:"decay_interval_seconds"`
	DecayThreshold    float64             `yaml:"decay_threshold"`
}

// ObservabilitySpec configures tracing/metrics export (§A ambient stack).
type ObservabilitySpec struct {
	ServiceName      string `yaml:"service_name"`
	PrometheusListen string `yaml:"prometheus_listen"`
	TracingEnabled   bool   `yaml:"tracing_enabled"`
}

// LoggingSpec configures the process-wide logger (§A ambient stack,
// internal/gblog). Level accepts "debug"/"info"/"warn"/"error"; Format
// accepts "simple"/"verbose".
type LoggingSpec struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Apply installs the configured logger as slog's process-wide default,
// returning it for callers that want a handle (e.g. to log config load
// itself). Safe to call more than once; the latest call wins.
func (l LoggingSpec) Apply() *slog.Logger {
	format := gblog.FormatSimple
	if l.Format == string(gblog.FormatVerbose) {
		format = gblog.FormatVerbose
	}
	return gblog.Init(gblog.ParseLevel(l.Level), format, nil)
}

// Config is GraphBit's root configuration document.
type Config struct {
	Agents        []AgentSpec       `yaml:"agents"`
	Concurrency   ConcurrencyPreset `yaml:"concurrency_preset"`
	Memory        MemorySpec        `yaml:"memory"`
	Observability ObservabilitySpec `yaml:"observability"`
	Logging       LoggingSpec       `yaml:"logging"`
	MemoryDbPath  string            `yaml:"memory_db_path"`
}

// SetDefaults fills zero-valued fields with GraphBit's documented defaults.
func (c *Config) SetDefaults() {
	if c.Concurrency == "" {
		c.Concurrency = PresetDefault
	}
	if c.Memory.Capacity == nil {
		c.Memory.Capacity = map[memory.Type]int{}
	}
	if c.Memory.DecayIntervalSecs == 0 {
		c.Memory.DecayIntervalSecs = 3600
	}
	if c.Memory.DecayThreshold == 0 {
		c.Memory.DecayThreshold = 0.3
	}
	if c.MemoryDbPath == "" {
		c.MemoryDbPath = "graphbit-memory.db"
	}
	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = "graphbit"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "warn"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = string(gblog.FormatSimple)
	}
	for i := range c.Agents {
		c.Agents[i].Llm.SetDefaults()
	}
}
