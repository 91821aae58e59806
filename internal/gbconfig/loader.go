package gbconfig

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

// envPrefix is the namespace every environment-variable override must carry,
// mirroring the teacher's GRAPHBIT_-style convention for provider API keys
// (§4.1 "apiKeyFromEnv").
const envPrefix = "GRAPHBIT_"

// Load reads path as YAML, overlays any GRAPHBIT_-prefixed environment
// variables (double underscore as the nesting delimiter, e.g.
// GRAPHBIT_MEMORY__AUTO_DECAY=true -> memory.auto_decay), and returns the
// populated, defaulted Config (§A "Configuration").
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, ids.Wrap(ids.KindConfig, "load config file "+path, err)
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		trimmed := strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(trimmed), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, ids.Wrap(ids.KindConfig, "load environment overlay", err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, ids.Wrap(ids.KindConfig, "unmarshal config", err)
	}

	cfg.SetDefaults()
	cfg.Logging.Apply()
	return cfg, nil
}
