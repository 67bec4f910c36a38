// Package gforms exports experiment definitions as Google Forms.
//
// A form is created with its title only, because the Forms API ignores
// everything else on create. The description and the questions follow in a
// single batchUpdate.
package gforms

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/forms/v1"
	"google.golang.org/api/option"

	"github.com/fyrsmithlabs/experimentd/internal/experiment"
	"github.com/fyrsmithlabs/experimentd/internal/logging"
)

// ErrEmptyExperiment is returned when there is nothing to put on a form.
var ErrEmptyExperiment = errors.New("experiment has no questions")

// Plan is the pair of API calls that recreate an experiment as a form.
type Plan struct {
	Form   *forms.Form                   `json:"form"`
	Update *forms.BatchUpdateFormRequest `json:"update"`
}

// Build maps e onto a form. Standard questions come first, then custom ones,
// each in stored order.
func Build(e *experiment.Experiment) (*Plan, error) {
	if e == nil {
		return nil, errors.New("nil experiment")
	}
	if len(e.StandardQuestions)+len(e.CustomQuestions) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyExperiment, e.Name)
	}

	var requests []*forms.Request
	if e.Description != "" {
		requests = append(requests, &forms.Request{
			UpdateFormInfo: &forms.UpdateFormInfoRequest{
				Info:       &forms.Info{Description: e.Description},
				UpdateMask: "description",
			},
		})
	}

	var index int64
	var buildErr error
	e.EachQuestion(func(_ experiment.Collection, _ int, q experiment.Question) {
		if buildErr != nil {
			return
		}
		item, err := itemFor(q)
		if err != nil {
			buildErr = err
			return
		}
		requests = append(requests, &forms.Request{
			CreateItem: &forms.CreateItemRequest{
				Item:     item,
				Location: &forms.Location{Index: index, ForceSendFields: []string{"Index"}},
			},
		})
		index++
	})
	if buildErr != nil {
		return nil, buildErr
	}

	return &Plan{
		Form: &forms.Form{
			Info: &forms.Info{Title: e.Name, DocumentTitle: e.Name},
		},
		Update: &forms.BatchUpdateFormRequest{Requests: requests},
	}, nil
}

func itemFor(q experiment.Question) (*forms.Item, error) {
	question := &forms.Question{}
	switch v := q.(type) {
	case *experiment.SingleLine:
		question.TextQuestion = &forms.TextQuestion{Paragraph: false}
	case *experiment.MultiLine:
		question.TextQuestion = &forms.TextQuestion{Paragraph: true}
	case *experiment.SelectOption:
		opts := make([]*forms.Option, 0, len(v.PossibleAnswers))
		for _, a := range v.PossibleAnswers {
			if a == "" {
				continue
			}
			opts = append(opts, &forms.Option{Value: a})
		}
		if len(opts) == 0 {
			return nil, fmt.Errorf("select question %q has no options", v.Prompt)
		}
		question.ChoiceQuestion = &forms.ChoiceQuestion{Type: "RADIO", Options: opts}
	default:
		return nil, &experiment.UnknownQuestionTypeError{Value: fmt.Sprintf("%T", q)}
	}
	return &forms.Item{
		Title:        q.Base().Prompt,
		QuestionItem: &forms.QuestionItem{Question: question},
	}, nil
}

// Config configures a Publisher.
type Config struct {
	// CredentialsFile is a service account or OAuth client JSON file.
	CredentialsFile string
	// Endpoint overrides the API root; used against fakes.
	Endpoint string
}

// Publisher creates forms through the Google Forms API.
type Publisher struct {
	service *forms.Service
	logger  *logging.Logger
}

// NewPublisher builds a Forms service from cfg and any extra client options.
func NewPublisher(ctx context.Context, cfg Config, logger *logging.Logger, extra ...option.ClientOption) (*Publisher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	opts := []option.ClientOption{option.WithScopes(forms.FormsBodyScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	opts = append(opts, extra...)

	svc, err := forms.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating forms service: %w", err)
	}
	return &Publisher{service: svc, logger: logger.Named("gforms")}, nil
}

// Result identifies a published form.
type Result struct {
	FormID       string
	ResponderURI string
}

// Publish creates a form for e and fills it in.
func (p *Publisher) Publish(ctx context.Context, e *experiment.Experiment) (*Result, error) {
	plan, err := Build(e)
	if err != nil {
		return nil, err
	}

	created, err := p.service.Forms.Create(plan.Form).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}
	res := &Result{FormID: created.FormId, ResponderURI: created.ResponderUri}

	if _, err := p.service.Forms.BatchUpdate(created.FormId, plan.Update).Context(ctx).Do(); err != nil {
		p.logger.Error(ctx, "form created but not filled in",
			zap.String("form_id", created.FormId),
			zap.Error(err),
		)
		return res, fmt.Errorf("failed to update form %s: %w", created.FormId, err)
	}

	p.logger.Info(ctx, "form published",
		zap.String("experiment", e.Name),
		zap.String("form_id", created.FormId),
		zap.Int("requests", len(plan.Update.Requests)),
	)
	return res, nil
}
