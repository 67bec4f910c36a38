package experiment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	questionKeys   = []string{"prompt", "answer", "type", "possible_answers"}
	experimentKeys = []string{"name", "description", "disabled", "standard_questions", "custom_questions"}
)

// checkKeys rejects keys that match one of canonical only when case is
// ignored; encoding/json would otherwise bind them to that field.
func checkKeys(data []byte, canonical []string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for key := range fields {
		for _, want := range canonical {
			if key != want && strings.EqualFold(key, want) {
				return fmt.Errorf("%w: %q, want %q", ErrKeyCase, key, want)
			}
		}
	}
	return nil
}

// questionRecord fixes the field order of an encoded question.
type questionRecord struct {
	Prompt          string    `json:"prompt"`
	Answer          string    `json:"answer"`
	Type            Kind      `json:"type"`
	PossibleAnswers *[]string `json:"possible_answers,omitempty"`
}

// questionBody is everything in a record except the discriminator.
type questionBody struct {
	Prompt          string    `json:"prompt"`
	Answer          string    `json:"answer"`
	PossibleAnswers *[]string `json:"possible_answers"`
}

type experimentRecord struct {
	Name              string           `json:"name"`
	Description       string           `json:"description"`
	Disabled          bool             `json:"disabled"`
	StandardQuestions []questionRecord `json:"standard_questions"`
	CustomQuestions   []questionRecord `json:"custom_questions"`
}

type experimentEnvelope struct {
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	Disabled          bool              `json:"disabled"`
	StandardQuestions []json.RawMessage `json:"standard_questions"`
	CustomQuestions   []json.RawMessage `json:"custom_questions"`
}

func encodeQuestion(q Question) (questionRecord, error) {
	switch v := q.(type) {
	case *SingleLine:
		return questionRecord{Prompt: v.Prompt, Answer: v.Answer, Type: KindSingleLine}, nil
	case *MultiLine:
		return questionRecord{Prompt: v.Prompt, Answer: v.Answer, Type: KindMultiLine}, nil
	case *SelectOption:
		opts := make([]string, len(v.PossibleAnswers))
		copy(opts, v.PossibleAnswers)
		return questionRecord{Prompt: v.Prompt, Answer: v.Answer, Type: KindSelectOption, PossibleAnswers: &opts}, nil
	case nil:
		return questionRecord{}, errors.New("cannot encode nil question")
	default:
		return questionRecord{}, &UnknownQuestionTypeError{Value: fmt.Sprintf("%T", q)}
	}
}

// EncodeQuestion renders q as its JSON record.
func EncodeQuestion(q Question) ([]byte, error) {
	rec, err := encodeQuestion(q)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rec)
}

// DecodeQuestion rebuilds a question from its JSON record. The type field is
// read first and selects the variant; the remaining fields are read after.
// Keys must be spelled exactly as encoded.
func DecodeQuestion(data []byte) (Question, error) {
	if err := checkKeys(data, questionKeys); err != nil {
		return nil, fmt.Errorf("decoding question: %w", err)
	}
	var tag struct {
		Type json.RawMessage `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("decoding question: %w", err)
	}

	kind, err := kindFromJSON(tag.Type)
	if err != nil {
		return nil, err
	}
	q, err := New(kind)
	if err != nil {
		return nil, err
	}

	var body questionBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("decoding %s question: %w", kind.Label(), err)
	}
	*q.Base() = Fields{Prompt: body.Prompt, Answer: body.Answer}

	switch v := q.(type) {
	case *SelectOption:
		if body.PossibleAnswers != nil {
			v.PossibleAnswers = *body.PossibleAnswers
		}
		if v.PossibleAnswers == nil {
			v.PossibleAnswers = []string{}
		}
	case *SingleLine, *MultiLine:
		if body.PossibleAnswers != nil {
			return nil, fmt.Errorf("%w: possible_answers on type %d", ErrShapeMismatch, kind)
		}
	}
	return q, nil
}

// kindFromJSON reads a numeric discriminator. A missing or non-integer value
// is reported as unknown with its raw text.
func kindFromJSON(raw json.RawMessage) (Kind, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, &UnknownQuestionTypeError{Value: ""}
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, &UnknownQuestionTypeError{Value: string(raw)}
	}
	k := Kind(n)
	if !k.Valid() {
		return 0, &UnknownQuestionTypeError{Value: k.String()}
	}
	return k, nil
}

func encodeQuestions(qs []Question) ([]questionRecord, error) {
	recs := make([]questionRecord, 0, len(qs))
	for i, q := range qs {
		rec, err := encodeQuestion(q)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func decodeQuestions(raws []json.RawMessage) ([]Question, error) {
	qs := make([]Question, 0, len(raws))
	for i, raw := range raws {
		q, err := DecodeQuestion(raw)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		qs = append(qs, q)
	}
	return qs, nil
}

// MarshalJSON implements json.Marshaler.
func (e Experiment) MarshalJSON() ([]byte, error) {
	std, err := encodeQuestions(e.StandardQuestions)
	if err != nil {
		return nil, fmt.Errorf("standard_questions: %w", err)
	}
	custom, err := encodeQuestions(e.CustomQuestions)
	if err != nil {
		return nil, fmt.Errorf("custom_questions: %w", err)
	}
	return json.Marshal(experimentRecord{
		Name:              e.Name,
		Description:       e.Description,
		Disabled:          e.Disabled,
		StandardQuestions: std,
		CustomQuestions:   custom,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Experiment) UnmarshalJSON(data []byte) error {
	if err := checkKeys(data, experimentKeys); err != nil {
		return err
	}
	var env experimentEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	std, err := decodeQuestions(env.StandardQuestions)
	if err != nil {
		return fmt.Errorf("standard_questions: %w", err)
	}
	custom, err := decodeQuestions(env.CustomQuestions)
	if err != nil {
		return fmt.Errorf("custom_questions: %w", err)
	}
	*e = Experiment{
		Name:              env.Name,
		Description:       env.Description,
		Disabled:          env.Disabled,
		StandardQuestions: std,
		CustomQuestions:   custom,
	}
	return nil
}

// MarshalList renders a collection document: an indented JSON array.
func MarshalList(list []*Experiment) ([]byte, error) {
	if list == nil {
		list = []*Experiment{}
	}
	return json.MarshalIndent(list, "", "  ")
}

// UnmarshalList parses a collection document. Blank input is an empty list.
func UnmarshalList(data []byte) ([]*Experiment, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []*Experiment{}, nil
	}
	var list []*Experiment
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	out := make([]*Experiment, 0, len(list))
	for _, e := range list {
		if e != nil {
			out = append(out, e)
		}
	}
	return out, nil
}
