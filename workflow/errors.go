package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyOutput is returned when the generator answers with blank text.
	ErrEmptyOutput = errors.New("generator returned empty output")
	// ErrEmptySource is returned when there is no document text to work from.
	ErrEmptySource = errors.New("source content is empty")
)

// GenerationError reports a failed generator call at a given node.
type GenerationError struct {
	Node Node
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Node, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ValidationExhaustedError is returned when every adjustment still broke the rules.
type ValidationExhaustedError struct {
	Reason string
	Trials int
}

func (e *ValidationExhaustedError) Error() string {
	return fmt.Sprintf("post still invalid after %d adjustments: %s", e.Trials, e.Reason)
}
