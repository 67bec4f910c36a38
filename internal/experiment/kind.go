package experiment

import (
	"strconv"
	"strings"
)

// Kind is the persisted discriminator of a question variant.
type Kind int

const (
	KindSingleLine   Kind = 1
	KindMultiLine    Kind = 2
	KindSelectOption Kind = 3
)

// variant is one row of the dispatch table.
type variant struct {
	label string
	new   func() Question
}

// variants is the only place question values are constructed from a kind.
var variants = map[Kind]variant{
	KindSingleLine:   {label: "Single Line", new: func() Question { return &SingleLine{} }},
	KindMultiLine:    {label: "Multi Line", new: func() Question { return &MultiLine{} }},
	KindSelectOption: {label: "Select An Option", new: func() Question { return &SelectOption{PossibleAnswers: []string{}} }},
}

// Kinds lists the known kinds in discriminator order.
func Kinds() []Kind {
	return []Kind{KindSingleLine, KindMultiLine, KindSelectOption}
}

// Valid reports whether k names a known variant.
func (k Kind) Valid() bool {
	_, ok := variants[k]
	return ok
}

// Label returns the human readable name used by the authoring surface.
func (k Kind) Label() string {
	if v, ok := variants[k]; ok {
		return v.label
	}
	return "Unknown"
}

func (k Kind) String() string {
	return strconv.Itoa(int(k))
}

// New returns an empty question of the given kind.
func New(k Kind) (Question, error) {
	v, ok := variants[k]
	if !ok {
		return nil, &UnknownQuestionTypeError{Value: k.String()}
	}
	return v.new(), nil
}

// ParseKind parses a textual discriminator such as "3".
func ParseKind(s string) (Kind, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &UnknownQuestionTypeError{Value: s}
	}
	k := Kind(n)
	if !k.Valid() {
		return 0, &UnknownQuestionTypeError{Value: s}
	}
	return k, nil
}

// ParseKindLabel maps a label such as "Select An Option" back to its kind.
// Matching ignores case and surrounding space.
func ParseKindLabel(label string) (Kind, error) {
	label = strings.TrimSpace(label)
	for _, k := range Kinds() {
		if strings.EqualFold(variants[k].label, label) {
			return k, nil
		}
	}
	return 0, &UnknownQuestionTypeError{Value: label}
}
