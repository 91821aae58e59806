package llm

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/graphbit-dev/graphbit/internal/gblog"
)

// sseDoneSentinel is the terminal line vendors send to end an SSE stream.
const sseDoneSentinel = "[DONE]"

const (
	maxConsecutiveParseErrors = 5
	perChunkReadTimeout       = 30 * time.Second
	initialConnectTimeout     = 60 * time.Second
)

// sseEvent is one parsed `data: ...` line, or the DONE sentinel.
type sseEvent struct {
	data string
	done bool
}

// scanSSE reads line-delimited Server-Sent Events from r, passing one
// sseEvent per `data: ` line to onEvent. Lines onEvent rejects are tolerated
// until maxConsecutiveParseErrors of them arrive in a row; that last error is
// then returned and the stream ends.
// Grounded on the bufio.Reader SSE loop shared by every streaming adapter.
func scanSSE(ctx context.Context, r io.Reader, onEvent func(sseEvent) error) error {
	reader := bufio.NewReader(r)
	consecutiveErrors := 0
	totalErrors := 0
	deadline := time.Now().Add(initialConnectTimeout)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		type lineResult struct {
			line []byte
			err  error
		}
		lineCh := make(chan lineResult, 1)
		go func() {
			line, err := reader.ReadBytes('\n')
			lineCh <- lineResult{line, err}
		}()

		var res lineResult
		select {
		case res = <-lineCh:
		case <-time.After(time.Until(deadline)):
			return onEvent(sseEvent{done: true})
		case <-ctx.Done():
			return ctx.Err()
		}
		deadline = time.Now().Add(perChunkReadTimeout)

		if res.err != nil {
			if res.err == io.EOF {
				if len(res.line) == 0 {
					return nil
				}
			} else {
				return res.err
			}
		}

		line := strings.TrimRight(string(res.line), "\r\n")
		if line == "" || strings.HasPrefix(line, ": ") {
			if res.err == io.EOF {
				return nil
			}
			continue
		}

		if !strings.HasPrefix(line, "data: ") && !strings.HasPrefix(line, "data:") {
			if res.err == io.EOF {
				return nil
			}
			continue
		}

		payload := strings.TrimPrefix(strings.TrimPrefix(line, "data: "), "data:")
		payload = strings.TrimSpace(payload)

		if payload == sseDoneSentinel {
			return onEvent(sseEvent{done: true})
		}

		if err := onEvent(sseEvent{data: payload}); err != nil {
			consecutiveErrors++
			totalErrors++
			if consecutiveErrors >= maxConsecutiveParseErrors {
				gblog.GetLogger().Warn("sse stream aborted after repeated parse errors",
					"consecutive", consecutiveErrors, "total", totalErrors)
				return err
			}
			gblog.GetLogger().Debug("sse parse error tolerated", "error", err, "consecutive", consecutiveErrors)
		} else {
			consecutiveErrors = 0
		}

		if res.err == io.EOF {
			if totalErrors > 0 {
				gblog.GetLogger().Debug("sse stream closed", "total_parse_errors", totalErrors)
			}
			return nil
		}
	}
}

const errorBodyReadTimeout = 10 * time.Second

// readErrorBody drains a non-2xx response body under a 10 s ceiling (§4.1),
// truncating long bodies so provider error messages stay readable.
func readErrorBody(resp *http.Response) string {
	if resp.Body == nil {
		return ""
	}
	done := make(chan []byte, 1)
	go func() {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		done <- b
	}()
	select {
	case b := <-done:
		s := string(b)
		if len(s) > 500 {
			s = s[:500] + "..."
		}
		return s
	case <-time.After(errorBodyReadTimeout):
		return "(error body read timed out)"
	}
}
