package experiment

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownQuestionType is matched by every *UnknownQuestionTypeError.
	ErrUnknownQuestionType = errors.New("unknown question type")

	// ErrShapeMismatch reports a record whose fields disagree with its type,
	// for example possible_answers on a single line question.
	ErrShapeMismatch = errors.New("question shape does not match its type")

	// ErrKeyCase reports a record key that names a field only when case is
	// ignored, such as "Prompt" for "prompt".
	ErrKeyCase = errors.New("record key differs from its field name in case")
)

// UnknownQuestionTypeError carries the discriminator value that could not be
// mapped to a question variant.
type UnknownQuestionTypeError struct {
	Value string
}

func (e *UnknownQuestionTypeError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownQuestionType.Error(), e.Value)
}

func (e *UnknownQuestionTypeError) Unwrap() error {
	return ErrUnknownQuestionType
}
