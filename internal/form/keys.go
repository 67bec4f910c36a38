package form

import (
	"strconv"

	"github.com/fyrsmithlabs/experimentd/internal/experiment"
)

// Top-level and per-question field names.
const (
	FieldName            = "name"
	FieldDescription     = "description"
	FieldDisabled        = "disabled"
	FieldType            = "type"
	FieldPrompt          = "prompt"
	FieldAnswer          = "answer"
	FieldPossibleAnswers = "possible_answers"

	toggleList = "experiments"
)

func question(c experiment.Collection, i int) string {
	return string(c) + "[" + strconv.Itoa(i) + "]"
}

// QuestionKey addresses one field of the i-th question of collection c.
func QuestionKey(c experiment.Collection, i int, field string) string {
	return question(c, i) + "." + field
}

// OptionKey addresses the j-th choice of the i-th question of collection c.
func OptionKey(c experiment.Collection, i, j int) string {
	return question(c, i) + "." + FieldPossibleAnswers + "[" + strconv.Itoa(j) + "]"
}

// ToggleKey addresses a field of the i-th row of the enable/disable list.
func ToggleKey(i int, field string) string {
	return toggleList + "[" + strconv.Itoa(i) + "]." + field
}
