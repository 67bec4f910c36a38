package site

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/experimentd/internal/draft"
	"github.com/fyrsmithlabs/experimentd/internal/experiment"
	"github.com/fyrsmithlabs/experimentd/internal/form"
	"github.com/fyrsmithlabs/experimentd/internal/logging"
)

func (s *Server) handleList(c echo.Context) error {
	list, err := s.backend.GetExperiments(c.Request().Context())
	if err != nil {
		return s.failed(c, "listing experiments", err)
	}
	return c.Render(http.StatusOK, viewIndex, page{Title: "Welcome", Data: list})
}

func (s *Server) handleQuestionnaire(c echo.Context) error {
	segment := c.Param("name")
	if unescaped, err := url.PathUnescape(segment); err == nil {
		segment = unescaped
	}
	name := Unslug(segment)
	ctx := logging.WithExperiment(c.Request().Context(), name)

	list, err := s.backend.GetExperiments(ctx)
	if err != nil {
		return s.failed(c, "loading questionnaire", err)
	}
	e := experiment.FindFold(list, name)
	if e == nil {
		return s.notice(c, noticeNoSuchExperiment)
	}
	if e.Disabled {
		return s.notice(c, noticeDisabled)
	}
	return c.Render(http.StatusOK, viewQuestionnaire, page{Title: "Experiment Questionnaire", Data: newExperimentView(e)})
}

func (s *Server) handleAddExperiment(c echo.Context) error {
	params, err := c.FormParams()
	if err != nil {
		return s.badRequest(c, err)
	}
	req, err := draftRequest(params)
	if err != nil {
		return s.badRequest(c, err)
	}

	res, err := s.workflow.Step(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, draft.ErrBadRequest) {
			return s.badRequest(c, err)
		}
		return s.failed(c, "authoring step", err)
	}

	switch res.Outcome {
	case draft.OutcomeCommitted:
		return c.Redirect(http.StatusSeeOther, "/")
	case draft.OutcomeEdit:
		return c.Render(http.StatusOK, viewAdd, page{Title: "Add an Experiment", Data: newExperimentView(res.Draft)})
	default:
		n, ok := outcomeNotices[res.Outcome]
		if !ok {
			n = noticeWentWrong
		}
		return s.notice(c, n)
	}
}

// draftRequest reads the authoring controls and the echoed draft.
func draftRequest(params url.Values) (draft.Request, error) {
	d, err := form.Decode(params)
	if err != nil {
		return draft.Request{}, err
	}
	req := draft.Request{
		Draft:       d,
		Mode:        draft.Mode(params.Get(paramMode)),
		AnswerIndex: -1,
	}

	category := params.Get(paramCategory)
	if req.Mode == draft.ModeAddAnswer && params.Has(paramAnswerCategory) {
		category = params.Get(paramAnswerCategory)
	}
	if category != "" {
		if req.Collection, err = experiment.ParseCollection(category); err != nil {
			return draft.Request{}, err
		}
	}

	if req.Mode == draft.ModeAddQuestion {
		if req.Kind, err = experiment.ParseKindLabel(params.Get(paramType)); err != nil {
			return draft.Request{}, err
		}
	}

	if raw := params.Get(paramAnswerIndex); raw != "" {
		if req.AnswerIndex, err = strconv.Atoi(raw); err != nil {
			return draft.Request{}, fmt.Errorf("%s must be a number, got %q", paramAnswerIndex, raw)
		}
	}
	return req, nil
}

func (s *Server) handleToggle(c echo.Context) error {
	params, err := c.FormParams()
	if err != nil {
		return s.badRequest(c, err)
	}
	rows := form.DecodeToggles(params)
	ctx := c.Request().Context()

	list, err := s.backend.GetExperiments(ctx)
	if err != nil {
		return s.failed(c, "loading experiments to toggle", err)
	}
	for _, e := range list {
		for _, row := range rows {
			if row.Name == e.Name {
				e.Disabled = row.Disabled
				break
			}
		}
		if err := s.backend.UpdateExperiment(logging.WithExperiment(ctx, e.Name), e); err != nil {
			return s.failed(c, "updating experiment", err)
		}
	}
	s.logger.Info(ctx, "experiments toggled", zap.Int("count", len(list)))
	return s.notice(c, noticeUpdated)
}

func (s *Server) handleSubmit(c echo.Context) error {
	params, err := c.FormParams()
	if err != nil {
		return s.badRequest(c, err)
	}
	submitted, err := form.Decode(params)
	if err != nil {
		return s.badRequest(c, err)
	}
	ctx := logging.WithExperiment(c.Request().Context(), submitted.Name)

	list, err := s.backend.GetExperiments(ctx)
	if err != nil {
		return s.failed(c, "loading experiment for response", err)
	}
	stored := experiment.Find(list, submitted.Name)
	if stored == nil {
		return s.notice(c, noticeNoSuchExperiment)
	}
	if stored.Disabled {
		return s.notice(c, noticeDisabled)
	}

	stored.CopyAnswers(submitted)
	if err := s.backend.SubmitResponse(ctx, stored); err != nil {
		return s.failed(c, "submitting response", err)
	}
	s.logger.Info(ctx, "response submitted")
	return s.notice(c, noticeThankYou)
}

func (s *Server) notice(c echo.Context, n notice) error {
	return c.Render(n.Status, viewMessage, page{Title: n.Title, Data: n})
}

// failed logs an upstream or storage failure and shows the generic page.
func (s *Server) failed(c echo.Context, what string, err error) error {
	s.logger.Error(c.Request().Context(), what+" failed", zap.Error(err))
	return s.notice(c, noticeWentWrong)
}

func (s *Server) badRequest(c echo.Context, err error) error {
	s.logger.Warn(c.Request().Context(), "rejected form", zap.Error(err))
	return s.notice(c, notice{Status: http.StatusBadRequest, Title: errorTitle, Body: "The form could not be read: " + err.Error()})
}
