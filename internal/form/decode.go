package form

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/experimentd/internal/experiment"
)

// Values is the read side of a submission. url.Values satisfies it.
type Values interface {
	Has(key string) bool
	Get(key string) string
}

// Decode rebuilds an experiment from a submission. Missing scalar fields
// decode as their zero value. An unrecognized discriminator fails with
// experiment.ErrUnknownQuestionType.
func Decode(v Values) (*experiment.Experiment, error) {
	e := &experiment.Experiment{
		Name:        v.Get(FieldName),
		Description: v.Get(FieldDescription),
		Disabled:    ParseFlag(v.Get(FieldDisabled)),
	}

	var err error
	if e.StandardQuestions, err = DecodeQuestions(v, experiment.Standard); err != nil {
		return nil, err
	}
	if e.CustomQuestions, err = DecodeQuestions(v, experiment.Custom); err != nil {
		return nil, err
	}
	return e, nil
}

// DecodeQuestions reads the questions of one collection in index order,
// stopping at the first index without a type key.
func DecodeQuestions(v Values, c experiment.Collection) ([]experiment.Question, error) {
	qs := []experiment.Question{}
	for i := 0; ; i++ {
		typeKey := QuestionKey(c, i, FieldType)
		if !v.Has(typeKey) {
			return qs, nil
		}

		kind, err := experiment.ParseKind(v.Get(typeKey))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", typeKey, err)
		}
		q, err := experiment.New(kind)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", typeKey, err)
		}

		*q.Base() = experiment.Fields{
			Prompt: v.Get(QuestionKey(c, i, FieldPrompt)),
			Answer: v.Get(QuestionKey(c, i, FieldAnswer)),
		}
		if so, ok := q.(*experiment.SelectOption); ok {
			so.PossibleAnswers = decodeOptions(v, c, i)
		}
		qs = append(qs, q)
	}
}

// decodeOptions reads choices j = 0, 1, ... until the first absent key.
// Present but empty values are kept: the trailing blank choice is the
// editing placeholder.
func decodeOptions(v Values, c experiment.Collection, i int) []string {
	opts := []string{}
	for j := 0; ; j++ {
		key := OptionKey(c, i, j)
		if !v.Has(key) {
			return opts
		}
		opts = append(opts, v.Get(key))
	}
}

// Toggle is one row of the enable/disable list.
type Toggle struct {
	Name     string
	Disabled bool
}

// DecodeToggles reads experiments[i].name / experiments[i].disabled rows
// until the first index without a name.
func DecodeToggles(v Values) []Toggle {
	rows := []Toggle{}
	for i := 0; ; i++ {
		nameKey := ToggleKey(i, FieldName)
		if !v.Has(nameKey) {
			return rows
		}
		rows = append(rows, Toggle{
			Name:     v.Get(nameKey),
			Disabled: ParseFlag(v.Get(ToggleKey(i, FieldDisabled))),
		})
	}
}

// ParseFlag reads a boolean form value. Checkbox "on" is true; anything
// unparseable is false.
func ParseFlag(s string) bool {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "on") {
		return true
	}
	b, err := strconv.ParseBool(s)
	return err == nil && b
}
