// Package selection plans the token budget of a request and picks the evidence that fits it.
package selection

import "fmt"

// Error represents invalid planner input
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// TokenBudgetExceededError means the fixed prompt costs alone do not fit the usable context,
// so no amount of evidence trimming can produce a valid plan.
type TokenBudgetExceededError struct {
	Required  int // system + requirements + layout tokens
	Available int // context window minus safety headroom
}

func (e *TokenBudgetExceededError) Error() string {
	return fmt.Sprintf("token budget exceeded: fixed costs need %d tokens but only %d are available", e.Required, e.Available)
}
