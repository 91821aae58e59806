package gbconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphbit-dev/graphbit/pkg/concurrency"
)

const sampleYAML = `
concurrency_preset: high_throughput
memory:
  auto_decay: true
  decay_threshold: 0.25
agents:
  - id: researcher
    name: Researcher
    llm:
      provider: openai
      model: gpt-4o-mini
`

func TestLoadAppliesFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graphbit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, PresetHighThroughput, cfg.Concurrency)
	assert.True(t, cfg.Memory.AutoDecay)
	assert.InDelta(t, 0.25, cfg.Memory.DecayThreshold, 1e-9)
	assert.Equal(t, 3600, cfg.Memory.DecayIntervalSecs) // default fills in, field not in YAML
	require.Len(t, cfg.Agents, 1)
	assert.Equal(t, "researcher", cfg.Agents[0].Id)
}

func TestLoadEnvOverlayOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graphbit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	t.Setenv("GRAPHBIT_MEMORY__DECAY_THRESHOLD", "0.6")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, cfg.Memory.DecayThreshold, 1e-9)
}

func TestConcurrencyPresetResolve(t *testing.T) {
	def := PresetDefault.Resolve()
	high := PresetHighThroughput.Resolve()
	assert.Equal(t, 16, def.Limits[concurrency.NodeTypeGlobal])
	assert.Equal(t, 64, high.Limits[concurrency.NodeTypeGlobal])
	assert.Equal(t, def.Limits[concurrency.NodeTypeGlobal], ConcurrencyPreset("").Resolve().Limits[concurrency.NodeTypeGlobal])
}
