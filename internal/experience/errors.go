// Package experience loads career records and compiles them into evidence chunks.
package experience

import "fmt"

// LoadError represents an error reading or decoding a record bank file
type LoadError struct {
	Path  string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load records %s: %v", e.Path, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// RecordError reports a record that fails structural checks
type RecordError struct {
	RecordID string
	Message  string
}

func (e *RecordError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("record %s: %s", e.RecordID, e.Message)
	}
	return "record: " + e.Message
}
