package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/graphbit-dev/graphbit/pkg/ids"
	"github.com/graphbit-dev/graphbit/pkg/llm"
)

// ActionKind tags the closed sum of per-candidate decisions the processor
// makes (§4.7/§9: "MemoryAction" is a sum type).
type ActionKind string

const (
	ActionKindAdd    ActionKind = "add"
	ActionKindUpdate ActionKind = "update"
	ActionKindDelete ActionKind = "delete"
	ActionKindNoop   ActionKind = "noop"
)

// Decision is one extracted-fact disposition (§4.7).
type Decision struct {
	Kind     ActionKind
	Content  string       // the candidate fact's text, for Add/Update
	TargetId ids.MemoryId // populated for Update/Delete
}

// Processor extracts candidate facts from a conversation and decides, per
// candidate, one of {Add, Update, Delete, Noop} by consulting existing
// memories in the same scope (§4.7).
type Processor struct {
	provider llm.Provider
}

// NewProcessor constructs a Processor backed by provider.
func NewProcessor(provider llm.Provider) *Processor {
	return &Processor{provider: provider}
}

const extractionSystemPrompt = `You extract durable facts worth remembering from a conversation.
Return a JSON array of short, self-contained factual statements. Return an empty array if there is nothing durable to remember.`

// ExtractFacts asks the LLM to pull candidate facts out of messages
// (§4.7 step 1).
func (p *Processor) ExtractFacts(ctx context.Context, messages []llm.LlmMessage) ([]string, error) {
	var transcript strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&transcript, "%s: %s\n", m.Role, m.Content)
	}

	req := llm.LlmRequest{Messages: []llm.LlmMessage{
		{Role: llm.RoleSystem, Content: extractionSystemPrompt},
		{Role: llm.RoleUser, Content: transcript.String()},
	}}

	resp, err := p.provider.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	var facts []string
	if err := json.Unmarshal([]byte(resp.Content), &facts); err != nil {
		return nil, ids.Wrap(ids.KindMemory, "parse extracted facts", err)
	}
	return facts, nil
}

const decisionSystemPrompt = `You maintain a deduplicated memory store. Given a new candidate fact and the
existing memories in scope, decide one action: "add" (nothing related exists),
"update" (a listed memory should be replaced by the candidate; include its id),
"delete" (the candidate means a listed memory is now false; include its id),
or "noop" (the candidate is already represented). Respond with JSON:
{"action": "add"|"update"|"delete"|"noop", "target_id": "<id or empty>"}`

// DecideAction asks the LLM which disposition a candidate fact should have
// given the scope's existing memories (§4.7 step 3).
func (p *Processor) DecideAction(ctx context.Context, candidate string, existing []PersistedMemory) (Decision, error) {
	var existingList strings.Builder
	for _, e := range existing {
		fmt.Fprintf(&existingList, "- id=%s: %s\n", e.Id, e.Content)
	}

	prompt := fmt.Sprintf("Candidate fact: %s\n\nExisting memories:\n%s", candidate, existingList.String())
	req := llm.LlmRequest{Messages: []llm.LlmMessage{
		{Role: llm.RoleSystem, Content: decisionSystemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	}}

	resp, err := p.provider.Complete(ctx, req)
	if err != nil {
		return Decision{}, err
	}

	var parsed struct {
		Action   string `json:"action"`
		TargetId string `json:"target_id"`
	}
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		// A malformed decision degrades to Add rather than failing the
		// whole add() pipeline, matching §7's local-recovery posture.
		return Decision{Kind: ActionKindAdd, Content: candidate}, nil
	}

	d := Decision{Kind: ActionKind(parsed.Action), Content: candidate, TargetId: ids.MemoryId(parsed.TargetId)}
	switch d.Kind {
	case ActionKindAdd, ActionKindUpdate, ActionKindDelete, ActionKindNoop:
		return d, nil
	default:
		return Decision{Kind: ActionKindAdd, Content: candidate}, nil
	}
}
