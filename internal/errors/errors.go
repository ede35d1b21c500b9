// Package errors provides domain-specific error handling infrastructure
// for the PocketBase MCP server.
package errors

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Sentinel errors for common error conditions.
// They are used as the Kind of a DomainError so callers can branch with
// errors.Is instead of inspecting messages.
var (
	// ErrNotFound indicates a requested resource, session or record was not found.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates authentication is required or failed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the authenticated caller lacks permission.
	ErrForbidden = errors.New("forbidden")

	// ErrBadRequest indicates invalid request parameters or format.
	ErrBadRequest = errors.New("bad request")

	// ErrValidation indicates tool arguments are missing or malformed.
	ErrValidation = errors.New("validation error")

	// ErrBackend indicates the PocketBase backend rejected or failed a call.
	ErrBackend = errors.New("backend error")

	// ErrSchemaApply indicates the schema document could not be applied.
	ErrSchemaApply = errors.New("schema apply error")

	// ErrInternal indicates an internal server error.
	ErrInternal = errors.New("internal error")
)

// kinds lists the sentinels KindOf recognises, most specific first.
var kinds = []error{
	ErrValidation,
	ErrNotFound,
	ErrSchemaApply,
	ErrUnauthorized,
	ErrForbidden,
	ErrBadRequest,
	ErrBackend,
	ErrInternal,
}

// DomainError is a failure inside one subsystem ("pocketbase", "identity",
// "tools", "schema", "session"), classified by one of the sentinel kinds.
type DomainError struct {
	Domain string
	Op     string
	Kind   error
	// Err is the cause; may be nil when Kind says everything.
	Err error
	// Context carries identifiers worth logging (collection, record id, caller).
	Context map[string]any
}

// New returns a DomainError for domain.op classified as kind.
func New(domain, op string, kind, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Err:     err,
		Context: make(map[string]any),
	}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %v: %v", e.Domain, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s.%s: %v", e.Domain, e.Op, e.Kind)
}

// Unwrap returns the cause.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches target against the kind first, then the cause chain.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// WithContext records key=value on e and returns e for chaining.
func (e *DomainError) WithContext(key string, value any) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// KindOf returns the outermost sentinel kind carried by err.
// A DomainError reports its own Kind before anything it wraps, so a
// validation failure that wraps a backend error is still a validation failure.
// Errors that carry no known kind report ErrInternal.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) && de.Kind != nil {
		for _, k := range kinds {
			if errors.Is(de.Kind, k) {
				return k
			}
		}
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrInternal
}

// Message returns the human-readable part of err, stripping the domain and
// operation prefixes of DomainErrors that sit directly on top of it.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if de, ok := err.(*DomainError); ok {
		if de.Err != nil {
			return Message(de.Err)
		}
		if de.Kind != nil {
			return de.Kind.Error()
		}
	}
	return err.Error()
}

// Fields returns structured log fields describing err: the error itself plus
// the domain, op, kind and context of the outermost DomainError, if any.
func Fields(err error) []zap.Field {
	if err == nil {
		return nil
	}
	fields := []zap.Field{zap.Error(err), zap.String("kind", KindOf(err).Error())}
	var de *DomainError
	if !errors.As(err, &de) {
		return fields
	}
	fields = append(fields, zap.String("domain", de.Domain), zap.String("op", de.Op))
	keys := make([]string, 0, len(de.Context))
	for k := range de.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, zap.Any(k, de.Context[k]))
	}
	return fields
}
