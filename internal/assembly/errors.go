// Package assembly builds the bounded generation prompt and verifies must-have coverage.
package assembly

import (
	"fmt"
	"strings"
)

// MustHaveCoverageError means required evidence could not be placed in the budget
type MustHaveCoverageError struct {
	Missing []string
}

func (e *MustHaveCoverageError) Error() string {
	return fmt.Sprintf("must-have requirements without evidence: %s", strings.Join(e.Missing, ", "))
}

// GenerationError wraps a failure of the generation backend. It is never retried here.
type GenerationError struct {
	Message string
	Cause   error
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("generation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("generation error: %s", e.Message)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}
