package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/graphbit-dev/graphbit/pkg/ids"
)

// BridgeCallback is the signature a foreign-runtime binding registers: the
// native side invokes it with {__pendingId, __originalArgs} and the foreign
// side either returns a real value synchronously, or returns the
// {"__pending": true} marker (see IsPendingMarker) and later calls
// SetPendingResult (§4.6).
type BridgeCallback func(payload map[string]any) (any, error)

// bridgePendingMarker is a string constant that IsPendingMarker does not
// recognize: a callback returning it is treated as having returned that
// string as its result. Only the {"__pending": true} map marks a call as
// pending.
const bridgePendingMarker = "__pending__"

// IsPendingMarker reports whether a foreign callback's return value is the
// {"__pending": true} marker from §4.6.
func IsPendingMarker(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	pending, _ := m["__pending"].(bool)
	return pending
}

type pendingCall struct {
	resultCh chan pendingOutcome
}

type pendingOutcome struct {
	result any
	err    error
}

// bridgeRendezvous implements the native half of the foreign-runtime
// callback bridge: a pending-id keyed map of oneshot notifiers (§4.6/§9).
type bridgeRendezvous struct {
	mu      sync.Mutex
	pending map[string]*pendingCall
}

func newBridgeRendezvous() *bridgeRendezvous {
	return &bridgeRendezvous{pending: make(map[string]*pendingCall)}
}

// RegisterBridgedTool registers a tool whose function lives in a foreign
// runtime, following the pending-id rendezvous protocol in §4.6: the native
// side generates a unique pending_id, stores a oneshot notifier keyed by it,
// and invokes cb with {__pendingId, __originalArgs}. If cb returns
// synchronously with a non-pending value, that value is used immediately;
// otherwise the native side awaits the notifier until the foreign side calls
// SetPendingResult, or ctx is cancelled — cancellation is the caller's
// responsibility, per §4.6.
func (m *Manager) RegisterBridgedTool(meta Metadata, cb BridgeCallback) error {
	meta.Function = func(ctx context.Context, params map[string]any) (any, error) {
		pendingID := uuid.NewString()
		call := &pendingCall{resultCh: make(chan pendingOutcome, 1)}

		m.bridge.mu.Lock()
		m.bridge.pending[pendingID] = call
		m.bridge.mu.Unlock()
		defer func() {
			m.bridge.mu.Lock()
			delete(m.bridge.pending, pendingID)
			m.bridge.mu.Unlock()
		}()

		result, err := cb(map[string]any{"__pendingId": pendingID, "__originalArgs": params})
		if err != nil {
			return nil, err
		}
		if !IsPendingMarker(result) {
			return result, nil
		}

		select {
		case outcome := <-call.resultCh:
			return outcome.result, outcome.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.RegisterTool(meta)
}

// SetPendingResult is called back by the foreign runtime once an
// asynchronously-completed bridged tool call is ready (§4.6).
func (m *Manager) SetPendingResult(pendingID string, result any, errMsg string) error {
	m.bridge.mu.Lock()
	call, ok := m.bridge.pending[pendingID]
	m.bridge.mu.Unlock()
	if !ok {
		return ids.NewErrorf(ids.KindValidation, "no pending bridge call registered under id %s", pendingID)
	}

	var err error
	if errMsg != "" {
		err = fmt.Errorf("%s", errMsg)
	}
	call.resultCh <- pendingOutcome{result: result, err: err}
	return nil
}

// DecodeJSONResult is a convenience for bindings whose foreign value arrives
// as a raw JSON document rather than a native map.
func DecodeJSONResult(raw json.RawMessage) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}
