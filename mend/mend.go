// Package mend exposes the patch pipeline used by the mend command so other
// programs can apply a model reply to a source text without running
// anything.
package mend

import (
	"github.com/sokinpui/mend.go/internal/parser"
	"github.com/sokinpui/mend.go/internal/patcher"
	"github.com/sokinpui/mend.go/model"
)

// Patch is the outcome of applying one model reply.
type Patch struct {
	// Content is the patched source.
	Content string
	// Diff is a unified diff from the original to Content; empty when
	// nothing changed.
	Diff         string
	Explanations []string
}

// Re-exported so callers can match errors without importing internal
// packages.
var (
	ErrNoArray       = parser.ErrNoArray
	ErrMalformedEdit = patcher.ErrMalformedEdit
)

// ApplyResponse extracts the JSON edit array from reply and applies it to
// source. Line numbers in the reply refer to source as given.
func ApplyResponse(source, reply string) (Patch, error) {
	batch, err := parser.ExtractBatch(reply)
	if err != nil {
		return Patch{}, err
	}
	entries, err := parser.Project(batch)
	if err != nil {
		return Patch{}, err
	}
	edits, explanations := parser.Split(entries)

	result, err := patcher.Apply(patcher.SplitLines(source), edits)
	if err != nil {
		return Patch{}, err
	}
	return Patch{
		Content:      model.Join(result.Lines),
		Diff:         result.Diff,
		Explanations: explanations,
	}, nil
}
