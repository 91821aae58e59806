package ids

import "fmt"

// Kind tags the single error type shared by every package in this module.
type Kind int

const (
	KindConfig Kind = iota
	KindLlmProvider
	KindAgent
	KindAgentNotFound
	KindValidation
	KindGraph
	KindWorkflowExecution
	KindMemory
	KindConcurrency
	KindIo
	KindSerde
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "Config"
	case KindLlmProvider:
		return "LlmProvider"
	case KindAgent:
		return "Agent"
	case KindAgentNotFound:
		return "AgentNotFound"
	case KindValidation:
		return "Validation"
	case KindGraph:
		return "Graph"
	case KindWorkflowExecution:
		return "WorkflowExecution"
	case KindMemory:
		return "Memory"
	case KindConcurrency:
		return "Concurrency"
	case KindIo:
		return "Io"
	case KindSerde:
		return "Serde"
	default:
		return "Unknown"
	}
}

// Error is the single tagged error kind used across the runtime (§7). Most
// package-level failures that reach a caller are wrapped in one of these
// rather than a bespoke error type, so callers can switch on Kind. A few
// helpers return plain errors instead, among them validation.CompileRegex,
// tool.RegisterTyped and the internal/observability constructor.
type Error struct {
	Kind Kind
	// Subject names the offending entity: a provider name, a field path, a
	// node id, an agent id — whatever the Kind implies. Empty when unused.
	Subject string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Subject, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError constructs a plain Error with no subject and no wrapped cause.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewErrorf is NewError with fmt.Sprintf-style formatting.
func NewErrorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an underlying error under the given kind.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithSubject attaches a subject (provider name, node id, field path, ...).
func (e *Error) WithSubject(subject string) *Error {
	e.Subject = subject
	return e
}

// LlmProviderError builds the LlmProvider(name, message) variant from §7.
func LlmProviderError(provider, message string) *Error {
	return &Error{Kind: KindLlmProvider, Subject: provider, Message: message}
}

// AgentNotFoundError builds the AgentNotFound(id) variant.
func AgentNotFoundError(agentID AgentId) *Error {
	return &Error{Kind: KindAgentNotFound, Subject: string(agentID), Message: "agent not registered"}
}

// ValidationError builds the Validation(field, message) variant.
func ValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Subject: field, Message: message}
}

// WorkflowExecutionError builds the WorkflowExecution error carrying the
// offending node id, per §4.4/§7.
func WorkflowExecutionError(nodeID NodeId, message string, cause error) *Error {
	return &Error{Kind: KindWorkflowExecution, Subject: string(nodeID), Message: message, Err: cause}
}

// IsKind reports whether err is an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if ae, ok := err.(*Error); ok {
		e = ae
	} else {
		return false
	}
	return e.Kind == kind
}
