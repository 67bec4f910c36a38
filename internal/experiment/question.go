package experiment

import "strings"

// Fields holds what every question variant has in common.
type Fields struct {
	Prompt string
	Answer string
}

// Base gives access to the common fields of any variant.
func (f *Fields) Base() *Fields { return f }

func (*Fields) isQuestion() {}

// Question is implemented by *SingleLine, *MultiLine and *SelectOption only.
type Question interface {
	Kind() Kind
	Base() *Fields
	isQuestion()
}

// SingleLine asks for a short free text answer.
type SingleLine struct {
	Fields
}

// MultiLine asks for a longer free text answer.
type MultiLine struct {
	Fields
}

// SelectOption asks the respondent to pick one of PossibleAnswers.
//
// A nil PossibleAnswers is the same question as an empty one: both encode as
// an empty list, and decoding always yields a non-nil slice.
type SelectOption struct {
	Fields
	PossibleAnswers []string
}

func (*SingleLine) Kind() Kind   { return KindSingleLine }
func (*MultiLine) Kind() Kind    { return KindMultiLine }
func (*SelectOption) Kind() Kind { return KindSelectOption }

// NewSingleLine returns a single line question.
func NewSingleLine(prompt, answer string) *SingleLine {
	return &SingleLine{Fields{Prompt: prompt, Answer: answer}}
}

// NewMultiLine returns a multi line question.
func NewMultiLine(prompt, answer string) *MultiLine {
	return &MultiLine{Fields{Prompt: prompt, Answer: answer}}
}

// NewSelectOption returns a select question offering options in order.
func NewSelectOption(prompt, answer string, options ...string) *SelectOption {
	opts := make([]string, len(options))
	copy(opts, options)
	return &SelectOption{Fields: Fields{Prompt: prompt, Answer: answer}, PossibleAnswers: opts}
}

// Clone returns a deep copy of q.
func Clone(q Question) Question {
	switch v := q.(type) {
	case *SingleLine:
		c := *v
		return &c
	case *MultiLine:
		c := *v
		return &c
	case *SelectOption:
		return NewSelectOption(v.Prompt, v.Answer, v.PossibleAnswers...)
	default:
		return nil
	}
}

// StripPlaceholder drops the trailing blank option the editing surface keeps
// on select questions. Other variants, and select questions whose last option
// is not blank, are left as they are. It reports whether an option was removed.
func StripPlaceholder(q Question) bool {
	s, ok := q.(*SelectOption)
	if !ok {
		return false
	}
	n := len(s.PossibleAnswers)
	if n == 0 || strings.TrimSpace(s.PossibleAnswers[n-1]) != "" {
		return false
	}
	s.PossibleAnswers = s.PossibleAnswers[:n-1]
	return true
}
