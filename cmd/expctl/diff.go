package main

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/fyrsmithlabs/experimentd/internal/experiment"
)

// diffContext is the number of unchanged lines kept around each change.
const diffContext = 3

// previewUpdate renders the definitions document before and after e replaces
// its namesake, the way the server applies an update: the match is removed
// and e is appended at the end.
func previewUpdate(current []*experiment.Experiment, e *experiment.Experiment) (string, bool, error) {
	next := make([]*experiment.Experiment, 0, len(current))
	found := false
	for _, existing := range current {
		if existing.Name == e.Name {
			found = true
			continue
		}
		next = append(next, existing)
	}
	if !found {
		return "", false, nil
	}
	next = append(next, e)

	before, err := experiment.MarshalList(current)
	if err != nil {
		return "", true, err
	}
	after, err := experiment.MarshalList(next)
	if err != nil {
		return "", true, err
	}
	return lineDiff(string(before)+"\n", string(after)+"\n"), true, nil
}

type diffLine struct {
	op   diffmatchpatch.Operation
	text string
}

// lineDiff returns a line oriented diff of a and b with diffContext lines of
// context, or "" when they are equal.
func lineDiff(a, b string) string {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var all []diffLine
	changed := false
	for _, d := range diffs {
		if d.Type != diffmatchpatch.DiffEqual {
			changed = true
		}
		for _, l := range strings.SplitAfter(d.Text, "\n") {
			if l == "" {
				continue
			}
			all = append(all, diffLine{op: d.Type, text: strings.TrimSuffix(l, "\n")})
		}
	}
	if !changed {
		return ""
	}

	keep := make([]bool, len(all))
	for i, l := range all {
		if l.op == diffmatchpatch.DiffEqual {
			continue
		}
		for j := max(0, i-diffContext); j <= min(len(all)-1, i+diffContext); j++ {
			keep[j] = true
		}
	}

	var out strings.Builder
	out.WriteString("--- definitions (current)\n+++ definitions (after update)\n")
	skipped := 0
	for i, l := range all {
		if !keep[i] {
			skipped++
			continue
		}
		if skipped > 0 {
			fmt.Fprintf(&out, "@@ %d unchanged lines @@\n", skipped)
			skipped = 0
		}
		switch l.op {
		case diffmatchpatch.DiffInsert:
			out.WriteString("+" + l.text + "\n")
		case diffmatchpatch.DiffDelete:
			out.WriteString("-" + l.text + "\n")
		default:
			out.WriteString(" " + l.text + "\n")
		}
	}
	if skipped > 0 {
		fmt.Fprintf(&out, "@@ %d unchanged lines @@\n", skipped)
	}
	return out.String()
}
