package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTemplateSubstitutesKnownVars(t *testing.T) {
	out := resolveTemplate("Hello {name}, you scored {score}.", map[string]any{"name": "Ada", "score": 42})
	assert.Equal(t, "Hello Ada, you scored 42.", out)
}

func TestResolveTemplateLeavesUnresolvedPlaceholdersLiteral(t *testing.T) {
	out := resolveTemplate("Hello {name}, {missing} stays put.", map[string]any{"name": "Ada"})
	assert.Equal(t, "Hello Ada, {missing} stays put.", out)
}
