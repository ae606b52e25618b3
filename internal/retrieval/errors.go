// Package retrieval runs dense and lexical search concurrently and fuses the results.
package retrieval

import (
	"errors"
	"fmt"
)

// ErrNoEvidence means both retrieval paths completed without returning anything
var ErrNoEvidence = errors.New("no evidence retrieved")

// ErrPathDisabled marks a retrieval path that has no backend configured
var ErrPathDisabled = errors.New("retrieval path not configured")

// RetrievalError is returned when neither retrieval path produced usable results
type RetrievalError struct {
	DenseErr   error
	LexicalErr error
}

func (e *RetrievalError) Error() string {
	if e.DenseErr == nil && e.LexicalErr == nil {
		return "retrieval error: " + ErrNoEvidence.Error()
	}
	return fmt.Sprintf("retrieval error: dense: %v; lexical: %v", orNone(e.DenseErr), orNone(e.LexicalErr))
}

// Unwrap exposes both path errors, or ErrNoEvidence when both paths were merely empty
func (e *RetrievalError) Unwrap() []error {
	var errs []error
	if e.DenseErr != nil {
		errs = append(errs, e.DenseErr)
	}
	if e.LexicalErr != nil {
		errs = append(errs, e.LexicalErr)
	}
	if len(errs) < 2 {
		errs = append(errs, ErrNoEvidence)
	}
	return errs
}

func orNone(err error) string {
	if err == nil {
		return "no results"
	}
	return err.Error()
}
