package llm

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScanSSETeratesOneMalformedLine exercises §8 scenario 5: a synthetic SSE
// byte stream with one malformed data: line between two valid deltas emits
// both valid deltas in order and does not abort.
func TestScanSSETeratesOneMalformedLine(t *testing.T) {
	stream := strings.Join([]string{
		`data: {"delta":"hello"}`,
		`: this is a comment`,
		``,
		`data: not-json-at-all`,
		`data: {"delta":"world"}`,
		`data: [DONE]`,
		``,
	}, "\n")

	var deltas []string
	err := scanSSE(context.Background(), strings.NewReader(stream), func(ev sseEvent) error {
		if ev.done {
			return nil
		}
		if !strings.HasPrefix(ev.data, "{") {
			return assert.AnError
		}
		deltas = append(deltas, ev.data)
		return nil
	})

	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.Contains(t, deltas[0], "hello")
	assert.Contains(t, deltas[1], "world")
}

// TestScanSSEAbortsAfterFiveConsecutiveErrors verifies the five-consecutive-
// failure ceiling (§4.1).
func TestScanSSEAbortsAfterFiveConsecutiveErrors(t *testing.T) {
	lines := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		lines = append(lines, "data: bad")
	}
	stream := strings.Join(lines, "\n") + "\n"

	calls := 0
	err := scanSSE(context.Background(), strings.NewReader(stream), func(ev sseEvent) error {
		calls++
		return assert.AnError
	})

	assert.Error(t, err)
	assert.Equal(t, 5, calls)
}

// TestScanSSESkipsCommentsAndBlankLines ensures comment (": ") and empty
// lines never reach onEvent.
func TestScanSSESkipsCommentsAndBlankLines(t *testing.T) {
	stream := ": keep-alive\n\ndata: {\"delta\":\"x\"}\n"
	var got []string
	err := scanSSE(context.Background(), strings.NewReader(stream), func(ev sseEvent) error {
		got = append(got, ev.data)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, `{"delta":"x"}`, got[0])
}
