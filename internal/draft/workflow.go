package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/experimentd/internal/experiment"
	"github.com/fyrsmithlabs/experimentd/internal/logging"
)

// DefaultTemplateName names the stored definition that seeds new drafts.
const DefaultTemplateName = "[Template Experiment]"

// Mode selects the step applied to a draft.
type Mode string

const (
	// ModeTemplate is the first view, sent without a mode.
	ModeTemplate      Mode = ""
	ModeAddQuestion   Mode = "Add Question"
	ModeAddAnswer     Mode = "Add Answer"
	ModeAddExperiment Mode = "Add Experiment"
)

// Outcome tells the caller what to show next.
type Outcome int

const (
	// OutcomeEdit re-displays the draft for further editing.
	OutcomeEdit Outcome = iota
	// OutcomeCommitted means the draft was stored; show the listing.
	OutcomeCommitted
	OutcomeNoName
	OutcomeAlreadyExists
	OutcomeNoQuestions
	OutcomeIncompleteQuestions
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEdit:
		return "edit"
	case OutcomeCommitted:
		return "committed"
	case OutcomeNoName:
		return "no_name"
	case OutcomeAlreadyExists:
		return "already_exists"
	case OutcomeNoQuestions:
		return "no_questions"
	case OutcomeIncompleteQuestions:
		return "incomplete_questions"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Catalog is the part of the definitions store the workflow needs.
type Catalog interface {
	GetExperiments(ctx context.Context) ([]*experiment.Experiment, error)
	AddExperiment(ctx context.Context, e *experiment.Experiment) error
}

// Request is one authoring submission.
type Request struct {
	Draft *experiment.Experiment
	Mode  Mode

	// Collection and Kind select the question added by ModeAddQuestion.
	Collection experiment.Collection
	Kind       experiment.Kind

	// AnswerIndex selects the question in Collection that ModeAddAnswer
	// extends. A negative value picks the last select question.
	AnswerIndex int
}

// Result is the state after one step.
type Result struct {
	Outcome Outcome
	Draft   *experiment.Experiment

	// Err is the broken rule for the validation outcomes, nil otherwise.
	Err error
}

// Workflow applies authoring steps against a Catalog.
type Workflow struct {
	catalog      Catalog
	templateName string
	logger       *logging.Logger
}

// New returns a workflow seeding drafts from the definition named
// templateName, or DefaultTemplateName when empty.
func New(catalog Catalog, templateName string, logger *logging.Logger) *Workflow {
	if templateName == "" {
		templateName = DefaultTemplateName
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Workflow{catalog: catalog, templateName: templateName, logger: logger.Named("draft")}
}

// Step applies req.Mode to req.Draft. Validation failures are reported in
// the Result; the returned error is reserved for catalog failures and
// malformed requests, the latter matching ErrBadRequest.
func (w *Workflow) Step(ctx context.Context, req Request) (Result, error) {
	d := req.Draft
	if d == nil {
		d = &experiment.Experiment{}
	}

	switch req.Mode {
	case ModeTemplate, ModeAddQuestion, ModeAddAnswer, ModeAddExperiment:
	default:
		return Result{}, fmt.Errorf("%w: unknown mode %q", ErrBadRequest, req.Mode)
	}

	if req.Mode == ModeTemplate {
		seeded, err := w.fromTemplate(ctx)
		if err != nil {
			return Result{}, err
		}
		if seeded != nil {
			d = seeded
		}
	}

	if req.Mode != ModeAddAnswer {
		stripPlaceholders(d)
	}

	switch req.Mode {
	case ModeAddQuestion:
		q, err := experiment.New(req.Kind)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		d.Append(collectionOrStandard(req.Collection), q)

	case ModeAddAnswer:
		if err := addAnswer(d, collectionOrStandard(req.Collection), req.AnswerIndex); err != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}

	case ModeAddExperiment:
		return w.commit(ctx, d)
	}

	return Result{Outcome: OutcomeEdit, Draft: d}, nil
}

// fromTemplate returns a copy of the template definition with its name
// cleared, or nil when no template is stored.
func (w *Workflow) fromTemplate(ctx context.Context) (*experiment.Experiment, error) {
	list, err := w.catalog.GetExperiments(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading template: %w", err)
	}
	tmpl := experiment.FindFold(list, w.templateName)
	if tmpl == nil {
		w.logger.Debug(ctx, "no template experiment stored", zap.String("template", w.templateName))
		return nil, nil
	}
	d := tmpl.Clone()
	d.Name = ""
	return d, nil
}

func (w *Workflow) commit(ctx context.Context, d *experiment.Experiment) (Result, error) {
	if err := w.validate(ctx, d); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			w.logger.Info(ctx, "draft rejected",
				zap.String("outcome", verr.Outcome.String()),
				zap.String("name", d.Name))
			return Result{Outcome: verr.Outcome, Draft: d, Err: err}, nil
		}
		return Result{}, err
	}

	if err := w.catalog.AddExperiment(ctx, d); err != nil {
		return Result{}, fmt.Errorf("adding experiment: %w", err)
	}
	w.logger.Info(logging.WithExperiment(ctx, d.Name), "draft committed",
		zap.Int("standard_questions", len(d.StandardQuestions)),
		zap.Int("custom_questions", len(d.CustomQuestions)))
	return Result{Outcome: OutcomeCommitted, Draft: d}, nil
}

// validate checks the commit rules in order and stops at the first failure.
func (w *Workflow) validate(ctx context.Context, d *experiment.Experiment) error {
	if d.Name == "" {
		return ErrMissingName
	}

	list, err := w.catalog.GetExperiments(ctx)
	if err != nil {
		return fmt.Errorf("checking existing experiments: %w", err)
	}
	if experiment.FindFold(list, d.Name) != nil {
		return ErrDuplicateName
	}

	if len(d.StandardQuestions) == 0 {
		return ErrNoQuestions
	}

	var blank error
	d.EachQuestion(func(c experiment.Collection, i int, q experiment.Question) {
		if blank == nil && strings.TrimSpace(q.Base().Prompt) == "" {
			blank = fmt.Errorf("%w: %s question %d", ErrBlankPrompt, c, i)
		}
	})
	return blank
}

func stripPlaceholders(d *experiment.Experiment) {
	d.EachQuestion(func(_ experiment.Collection, _ int, q experiment.Question) {
		experiment.StripPlaceholder(q)
	})
}

// addAnswer appends a blank choice to the select question at index in c, or
// to the last select question of c when index is negative.
func addAnswer(d *experiment.Experiment, c experiment.Collection, index int) error {
	qs := d.Questions(c)
	if index < 0 {
		for i := len(qs) - 1; i >= 0; i-- {
			if _, ok := qs[i].(*experiment.SelectOption); ok {
				index = i
				break
			}
		}
		if index < 0 {
			return fmt.Errorf("no select question in %s collection to add an answer to", c)
		}
	}
	if index >= len(qs) {
		return fmt.Errorf("%s question %d does not exist", c, index)
	}
	so, ok := qs[index].(*experiment.SelectOption)
	if !ok {
		return fmt.Errorf("%s question %d is a %s question and takes no choices", c, index, qs[index].Kind().Label())
	}
	so.PossibleAnswers = append(so.PossibleAnswers, "")
	return nil
}

func collectionOrStandard(c experiment.Collection) experiment.Collection {
	if c == "" {
		return experiment.Standard
	}
	return c
}
