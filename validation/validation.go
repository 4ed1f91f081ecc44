// Package validation defines the boundary to the pluggable validation
// collaborator. The engine itself never inspects rules; it aggregates the
// violations the installed Validator reports.
package validation

import (
	"fmt"
	"strings"
	"sync"
)

// Violation is one validation failure for a candidate object
type Violation struct {
	Model     string // declared type name
	FieldPath string
	Message   string
	Value     any // offending value
}

func (v Violation) String() string {
	return fmt.Sprintf("%s.%s: %s", v.Model, v.FieldPath, v.Message)
}

// Validator inspects an object and reports its violations. A nil or empty
// result means the object is valid.
type Validator func(bean any) []Violation

// Error carries the complete violation list for one validation pass. It is
// never raised with a partial list.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	if len(msgs) == 1 {
		return "validation failed: " + msgs[0]
	}
	return fmt.Sprintf("validation failed (%d violations): %s",
		len(msgs), strings.Join(msgs, "; "))
}

var (
	mu        sync.RWMutex
	installed Validator = func(any) []Violation { return nil }
)

// Install replaces the process-wide validator. It is meant to be called once
// during initialization, before validation runs concurrently.
func Install(v Validator) {
	if v == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	installed = v
}

// Validate runs the installed validator and returns the full violation list
func Validate(bean any) []Violation {
	mu.RLock()
	v := installed
	mu.RUnlock()
	return v(bean)
}

// MustValidate runs the installed validator and converts a non-empty result
// into an *Error carrying every violation
func MustValidate(bean any) error {
	if violations := Validate(bean); len(violations) > 0 {
		return &Error{Violations: violations}
	}
	return nil
}

// ValidateAll aggregates violations across several beans. The returned error
// is nil only when every bean is valid.
func ValidateAll(beans ...any) error {
	var all []Violation
	for _, bean := range beans {
		all = append(all, Validate(bean)...)
	}
	if len(all) > 0 {
		return &Error{Violations: all}
	}
	return nil
}
