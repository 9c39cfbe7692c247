package patcher

import (
	"bytes"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/sokinpui/mend.go/model"
)

const contextLines = 3

const noNewlineMarker = "\\ No newline at end of file\n"

type lineKind int

const (
	lineEqual lineKind = iota
	lineRemoved
	lineAdded
)

type diffLine struct {
	kind lineKind
	text string
}

// UnifiedDiff renders the line differences between two buffers as a
// unified diff with three lines of context. It returns "" when the buffers
// are identical.
func UnifiedDiff(oldName, newName string, oldLines, newLines []string) string {
	hunks := groupHunks(lineOps(oldLines, newLines), contextLines)
	if len(hunks) == 0 {
		return ""
	}

	out, err := godiff.PrintFileDiff(&godiff.FileDiff{
		OrigName: oldName,
		NewName:  newName,
		Hunks:    hunks,
	})
	if err != nil {
		return ""
	}
	return string(out)
}

// lineOps computes a line-level edit script. Each buffer line is mapped to
// a single rune so the character diff works on whole lines.
func lineOps(oldLines, newLines []string) []diffLine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0

	a, b, lineArray := dmp.DiffLinesToChars(model.Join(oldLines), model.Join(newLines))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var ops []diffLine
	for _, d := range diffs {
		kind := lineEqual
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			kind = lineRemoved
		case diffmatchpatch.DiffInsert:
			kind = lineAdded
		}
		for _, line := range SplitLines(d.Text) {
			ops = append(ops, diffLine{kind: kind, text: line})
		}
	}
	return ops
}

// groupHunks merges changes separated by at most 2*context equal lines.
func groupHunks(ops []diffLine, context int) []*godiff.Hunk {
	var changes []int
	for i, op := range ops {
		if op.kind != lineEqual {
			changes = append(changes, i)
		}
	}

	var hunks []*godiff.Hunk
	for first := 0; first < len(changes); {
		last := first
		for last+1 < len(changes) && changes[last+1]-changes[last]-1 <= 2*context {
			last++
		}
		lo := max(0, changes[first]-context)
		hi := min(len(ops), changes[last]+context+1)
		hunks = append(hunks, buildHunk(ops, lo, hi))
		first = last + 1
	}
	return hunks
}

func buildHunk(ops []diffLine, lo, hi int) *godiff.Hunk {
	var oldBefore, newBefore int32
	for _, op := range ops[:lo] {
		if op.kind != lineAdded {
			oldBefore++
		}
		if op.kind != lineRemoved {
			newBefore++
		}
	}

	hunk := &godiff.Hunk{}
	var body bytes.Buffer
	for _, op := range ops[lo:hi] {
		switch op.kind {
		case lineEqual:
			body.WriteByte(' ')
			hunk.OrigLines++
			hunk.NewLines++
		case lineRemoved:
			body.WriteByte('-')
			hunk.OrigLines++
		case lineAdded:
			body.WriteByte('+')
			hunk.NewLines++
		}
		body.WriteString(op.text)
		if !strings.HasSuffix(op.text, "\n") {
			body.WriteString("\n" + noNewlineMarker)
		}
	}

	hunk.OrigStartLine = oldBefore
	if hunk.OrigLines > 0 {
		hunk.OrigStartLine++
	}
	hunk.NewStartLine = newBefore
	if hunk.NewLines > 0 {
		hunk.NewStartLine++
	}
	hunk.Body = body.Bytes()
	return hunk
}
