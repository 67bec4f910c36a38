// Package draft applies one step of the stateless experiment authoring
// workflow.
//
// Nothing is kept between requests. Each request carries the whole draft as
// the browser echoed it back, already decoded, plus a mode naming the step
// to apply. Step returns the draft to re-display, or commits it through the
// Catalog when the mode is ModeAddExperiment and validation passes.
package draft
