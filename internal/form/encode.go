package form

import (
	"net/url"
	"strconv"

	"github.com/fyrsmithlabs/experimentd/internal/experiment"
)

// Encode renders e in the submission layout that Decode reads, so that
// Decode(Encode(e)) reproduces e.
func Encode(e *experiment.Experiment) url.Values {
	v := url.Values{}
	v.Set(FieldName, e.Name)
	v.Set(FieldDescription, e.Description)
	v.Set(FieldDisabled, strconv.FormatBool(e.Disabled))

	e.EachQuestion(func(c experiment.Collection, i int, q experiment.Question) {
		f := q.Base()
		v.Set(QuestionKey(c, i, FieldType), q.Kind().String())
		v.Set(QuestionKey(c, i, FieldPrompt), f.Prompt)
		v.Set(QuestionKey(c, i, FieldAnswer), f.Answer)
		if so, ok := q.(*experiment.SelectOption); ok {
			for j, opt := range so.PossibleAnswers {
				v.Set(OptionKey(c, i, j), opt)
			}
		}
	})
	return v
}

// EncodeToggles renders rows in the layout DecodeToggles reads.
func EncodeToggles(rows []Toggle) url.Values {
	v := url.Values{}
	for i, r := range rows {
		v.Set(ToggleKey(i, FieldName), r.Name)
		v.Set(ToggleKey(i, FieldDisabled), strconv.FormatBool(r.Disabled))
	}
	return v
}
