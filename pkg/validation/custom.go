package validation

import "sync"

// CustomValidator is a pluggable validation rule keyed by name, for checks
// the JSON-Schema subset can't express (§4.8).
type CustomValidator interface {
	Name() string
	Validate(data any) Result
}

// Registry holds named CustomValidators. The zero value is usable.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]CustomValidator
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]CustomValidator)}
}

// Register adds or replaces a validator under its own Name().
func (r *Registry) Register(v CustomValidator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.validators == nil {
		r.validators = make(map[string]CustomValidator)
	}
	r.validators[v.Name()] = v
}

// Validate runs the named validator, or returns UNKNOWN_VALIDATOR if name
// was never registered.
func (r *Registry) Validate(name string, data any) Result {
	r.mu.RLock()
	v, ok := r.validators[name]
	r.mu.RUnlock()
	if !ok {
		return invalid(FieldError{
			FieldPath: "$",
			Message:   "no custom validator registered under name " + name,
			ErrorCode: CodeUnknownValidator,
		})
	}

	// A panicking custom validator becomes a CUSTOM_VALIDATION_ERROR rather
	// than crashing the caller (§7: "errors are data, not panics").
	return runValidatorSafely(v, data)
}

func runValidatorSafely(v CustomValidator, data any) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = invalid(FieldError{
				FieldPath: "$",
				Message:   "custom validator panicked",
				ErrorCode: CodeCustomValidationError,
			})
		}
	}()
	return v.Validate(data)
}
