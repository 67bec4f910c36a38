package site

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/fyrsmithlabs/experimentd/internal/draft"
	"github.com/fyrsmithlabs/experimentd/internal/experiment"
	"github.com/fyrsmithlabs/experimentd/internal/form"
)

type optionView struct {
	Key   string
	Value string
}

type questionView struct {
	Type     int
	Label    string
	IsSelect bool
	IsMulti  bool

	TypeKey   string
	PromptKey string
	AnswerKey string

	Prompt  string
	Answer  string
	Options []optionView

	AddAnswerURL string
}

type sectionView struct {
	Title     string
	Questions []questionView
}

type experimentView struct {
	Name        string
	Description string
	Disabled    bool
	Sections    []sectionView
	Categories  []string
	Types       []string
}

var collectionTitles = map[experiment.Collection]string{
	experiment.Standard: "Standard",
	experiment.Custom:   "Custom",
}

// newExperimentView lays e out with the form keys the decoder reads back.
func newExperimentView(e *experiment.Experiment) experimentView {
	v := experimentView{
		Name:        e.Name,
		Description: e.Description,
		Disabled:    e.Disabled,
	}
	for _, c := range experiment.Collections() {
		sec := sectionView{Title: collectionTitles[c]}
		for i, q := range e.Questions(c) {
			sec.Questions = append(sec.Questions, newQuestionView(c, i, q))
		}
		v.Sections = append(v.Sections, sec)
		v.Categories = append(v.Categories, collectionTitles[c])
	}
	for _, k := range experiment.Kinds() {
		v.Types = append(v.Types, k.Label())
	}
	return v
}

func newQuestionView(c experiment.Collection, i int, q experiment.Question) questionView {
	f := q.Base()
	qv := questionView{
		Type:      int(q.Kind()),
		Label:     q.Kind().Label(),
		TypeKey:   form.QuestionKey(c, i, form.FieldType),
		PromptKey: form.QuestionKey(c, i, form.FieldPrompt),
		AnswerKey: form.QuestionKey(c, i, form.FieldAnswer),
		Prompt:    f.Prompt,
		Answer:    f.Answer,
	}
	switch v := q.(type) {
	case *experiment.MultiLine:
		qv.IsMulti = true
	case *experiment.SelectOption:
		qv.IsSelect = true
		for j, opt := range v.PossibleAnswers {
			qv.Options = append(qv.Options, optionView{Key: form.OptionKey(c, i, j), Value: opt})
		}
		qv.AddAnswerURL = addAnswerURL(c, i)
	}
	return qv
}

func addAnswerURL(c experiment.Collection, i int) string {
	q := url.Values{}
	q.Set(paramAnswerCategory, collectionTitles[c])
	q.Set(paramAnswerIndex, strconv.Itoa(i))
	return routeAddExperiment + "?" + q.Encode()
}

// notice is a fixed informational or error page.
type notice struct {
	Status int
	Title  string
	Body   string
}

const errorTitle = "An error has occurred"

var (
	noticeNoSuchExperiment = notice{http.StatusNotFound, errorTitle, "There is no such experiment."}
	noticeDisabled         = notice{http.StatusForbidden, errorTitle, "This experiment is disabled and is not accepting responses."}
	noticeWentWrong        = notice{http.StatusBadGateway, errorTitle, "Something went wrong. Please try again later."}
	noticeThankYou         = notice{http.StatusOK, "Experiment Submitted", "Thank you for taking part."}
	noticeUpdated          = notice{http.StatusOK, "Experiments Updated", "The experiments have been updated."}
)

// outcomeNotices maps each rejected commit to its page.
var outcomeNotices = map[draft.Outcome]notice{
	draft.OutcomeNoName:              {http.StatusUnprocessableEntity, errorTitle, "An experiment needs a name."},
	draft.OutcomeAlreadyExists:       {http.StatusUnprocessableEntity, errorTitle, "An experiment with that name already exists."},
	draft.OutcomeNoQuestions:         {http.StatusUnprocessableEntity, errorTitle, "An experiment needs at least one standard question."},
	draft.OutcomeIncompleteQuestions: {http.StatusUnprocessableEntity, errorTitle, "Every question needs a prompt."},
}
