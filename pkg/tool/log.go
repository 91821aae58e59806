package tool

import "github.com/graphbit-dev/graphbit/internal/gblog"

func logToolReregistered(name string) {
	gblog.GetLogger().Warn("tool re-registered, replacing previous entry", "tool", name)
}
