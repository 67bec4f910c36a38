package draft

import "errors"

var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrBadRequest wraps a step that cannot apply to its draft: an unknown
	// mode, question kind or answer target.
	ErrBadRequest = errors.New("malformed authoring request")
)

// ValidationError is a commit rule the draft broke. Each rule has its own
// outcome so the caller can show a dedicated message.
type ValidationError struct {
	Outcome Outcome
	Reason  string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Commit rules, checked in this order.
var (
	ErrMissingName   = &ValidationError{Outcome: OutcomeNoName, Reason: "experiment name is required"}
	ErrDuplicateName = &ValidationError{Outcome: OutcomeAlreadyExists, Reason: "an experiment with this name already exists"}
	ErrNoQuestions   = &ValidationError{Outcome: OutcomeNoQuestions, Reason: "at least one standard question is required"}
	ErrBlankPrompt   = &ValidationError{Outcome: OutcomeIncompleteQuestions, Reason: "every question needs a prompt"}
)
