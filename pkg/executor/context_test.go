package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

func TestWorkflowContextSetOutputWritesBothKeys(t *testing.T) {
	wctx := NewWorkflowContext(ids.NewWorkflowId(), nil, nil)
	wctx.SetOutput("node-1", "greeter", "hi")

	byID, ok := wctx.GetOutput("node-1")
	assert.True(t, ok)
	assert.Equal(t, "hi", byID)

	byName, ok := wctx.GetOutput("greeter")
	assert.True(t, ok)
	assert.Equal(t, "hi", byName)
}

func TestWorkflowContextMetadataDoesNotShadowOutputs(t *testing.T) {
	wctx := NewWorkflowContext(ids.NewWorkflowId(), nil, nil)
	wctx.SetOutput("node-1", "n", "output-value")
	wctx.SetMetadata("n", "metadata-value")

	vars := wctx.Outputs()
	for k, v := range wctx.AllMetadata() {
		if _, exists := vars[k]; !exists {
			vars[k] = v
		}
	}
	assert.Equal(t, "output-value", vars["n"])
}
