// Package experiment defines experiments, their typed questions, and the JSON
// codec used to persist them and to move them between processes.
//
// # Questions
//
// A Question is a closed union of three variants:
//
//   - *SingleLine   (kind 1): a one-line free text answer
//   - *MultiLine    (kind 2): a multi-line free text answer
//   - *SelectOption (kind 3): an answer picked from PossibleAnswers
//
// Every place that needs variant-specific behavior switches over these three
// types. New variants are only created through the kind table in kind.go, so
// the JSON codec and the form decoder share a single dispatch rule and report
// the same *UnknownQuestionTypeError for a discriminator they do not know.
//
// # Wire format
//
// Questions are encoded as
//
//	{"prompt": "...", "answer": "...", "type": 3, "possible_answers": ["Yes", "No"]}
//
// with possible_answers present only for kind 3. Fields are always written in
// that order so that encoding unchanged data is byte-stable. Decoding reads the
// type first and builds the variant before reading anything else.
package experiment
