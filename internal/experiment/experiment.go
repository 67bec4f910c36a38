package experiment

import (
	"fmt"
	"strings"
)

// Collection names one of the two ordered question lists of an Experiment.
type Collection string

const (
	Standard Collection = "standard"
	Custom   Collection = "custom"
)

// Collections lists both collections in display order.
func Collections() []Collection {
	return []Collection{Standard, Custom}
}

// ParseCollection accepts "standard" or "custom" in any letter case.
func ParseCollection(s string) (Collection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(Standard):
		return Standard, nil
	case string(Custom):
		return Custom, nil
	}
	return "", fmt.Errorf("unknown question collection %q", s)
}

// Experiment is a named survey definition. The same shape is used for a
// submitted response, with the answers filled in.
type Experiment struct {
	Name              string
	Description       string
	Disabled          bool
	StandardQuestions []Question
	CustomQuestions   []Question
}

// Questions returns the questions of collection c.
func (e *Experiment) Questions(c Collection) []Question {
	if c == Custom {
		return e.CustomQuestions
	}
	return e.StandardQuestions
}

// Append adds q to the end of collection c.
func (e *Experiment) Append(c Collection, q Question) {
	if c == Custom {
		e.CustomQuestions = append(e.CustomQuestions, q)
		return
	}
	e.StandardQuestions = append(e.StandardQuestions, q)
}

// EachQuestion calls fn for every question, standard ones first.
func (e *Experiment) EachQuestion(fn func(c Collection, i int, q Question)) {
	for i, q := range e.StandardQuestions {
		fn(Standard, i, q)
	}
	for i, q := range e.CustomQuestions {
		fn(Custom, i, q)
	}
}

// Clone returns a deep copy of e.
func (e *Experiment) Clone() *Experiment {
	if e == nil {
		return nil
	}
	c := &Experiment{
		Name:              e.Name,
		Description:       e.Description,
		Disabled:          e.Disabled,
		StandardQuestions: make([]Question, 0, len(e.StandardQuestions)),
		CustomQuestions:   make([]Question, 0, len(e.CustomQuestions)),
	}
	for _, q := range e.StandardQuestions {
		c.StandardQuestions = append(c.StandardQuestions, Clone(q))
	}
	for _, q := range e.CustomQuestions {
		c.CustomQuestions = append(c.CustomQuestions, Clone(q))
	}
	return c
}

// Find returns the first experiment whose name equals name exactly.
func Find(list []*Experiment, name string) *Experiment {
	for _, e := range list {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// FindFold is Find with case-insensitive matching.
func FindFold(list []*Experiment, name string) *Experiment {
	for _, e := range list {
		if strings.EqualFold(e.Name, name) {
			return e
		}
	}
	return nil
}

// CopyAnswers sets the answer of each question in e from the first question
// of the same collection in src with an identical prompt. Questions src does
// not mention keep their answer. It returns how many answers were copied.
func (e *Experiment) CopyAnswers(src *Experiment) int {
	if src == nil {
		return 0
	}
	copied := 0
	e.EachQuestion(func(c Collection, _ int, q Question) {
		for _, from := range src.Questions(c) {
			if from.Base().Prompt == q.Base().Prompt {
				q.Base().Answer = from.Base().Answer
				copied++
				return
			}
		}
	})
	return copied
}
