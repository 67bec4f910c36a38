// Package form converts between experiments and flat, index-addressed form
// submissions.
//
// Questions are addressed as <collection>[<i>].<field> and select-option
// choices as <collection>[<i>].possible_answers[<j>], with collection one of
// "standard" or "custom". A submission carries no item counts: each list is
// read by probing indices 0, 1, 2, ... and stops at the first index whose
// key is absent. Indices after a gap are never visited.
package form
