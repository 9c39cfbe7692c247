package patcher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sokinpui/mend.go/model"
)

// ErrMalformedEdit marks a batch that cannot be applied to the buffer.
var ErrMalformedEdit = errors.New("malformed edit")

// EditError describes the operation that caused a batch to be rejected.
type EditError struct {
	Op     model.EditOperation
	Reason string
}

func (e *EditError) Error() string {
	return fmt.Sprintf("malformed edit %s at line %d: %s", e.Op.Kind, e.Op.Line, e.Reason)
}

func (e *EditError) Unwrap() error { return ErrMalformedEdit }

// Result is the outcome of applying a batch to a buffer.
type Result struct {
	Lines []string
	Diff  string
}

// Changed reports whether the new buffer differs from the original.
func (r Result) Changed() bool { return r.Diff != "" }

// linePlan collects every pending operation for one original line.
type linePlan struct {
	deleted  bool
	replaced bool
	content  string
	inserts  []string
}

// Apply applies edits to lines as if they all happened at once against the
// original numbering. Each element of lines keeps its own terminator. The
// input slice is never modified; on error no partial result is returned.
func Apply(lines []string, edits []model.EditOperation) (Result, error) {
	plans, err := planEdits(len(lines), edits)
	if err != nil {
		return Result{}, err
	}

	eol := detectEOL(lines)
	out := make([]string, 0, len(lines)+len(edits))
	for i, line := range lines {
		plan := plans[i+1]
		switch {
		case plan == nil:
			out = append(out, line)
		case plan.deleted:
		case plan.replaced:
			out = append(out, plan.content+eol)
		default:
			out = append(out, line)
		}
		if plan != nil {
			for _, ins := range plan.inserts {
				out = append(out, ins+eol)
			}
		}
	}

	// A line that lost its last-line status must be terminated.
	for i := 0; i < len(out)-1; i++ {
		if !strings.HasSuffix(out[i], "\n") {
			out[i] += eol
		}
	}

	return Result{
		Lines: out,
		Diff:  UnifiedDiff("a", "b", lines, out),
	}, nil
}

// planEdits groups edits by original line and enforces the same-line policy.
func planEdits(length int, edits []model.EditOperation) (map[int]*linePlan, error) {
	plans := make(map[int]*linePlan, len(edits))
	for _, op := range edits {
		if !op.Kind.Valid() {
			return nil, &EditError{Op: op, Reason: fmt.Sprintf("unknown operation %q", op.Kind)}
		}
		if op.Line < 1 || op.Line > length {
			return nil, &EditError{Op: op, Reason: fmt.Sprintf("line out of range 1..%d", length)}
		}

		plan := plans[op.Line]
		if plan == nil {
			plan = &linePlan{}
			plans[op.Line] = plan
		}

		content := trimEOL(op.Content)
		switch op.Kind {
		case model.Replace:
			if plan.deleted || len(plan.inserts) > 0 {
				return nil, &EditError{Op: op, Reason: "conflicts with a Delete or InsertAfter on the same line"}
			}
			if plan.replaced && plan.content != content {
				return nil, &EditError{Op: op, Reason: "conflicting Replace on the same line"}
			}
			plan.replaced = true
			plan.content = content
		case model.Delete:
			if plan.replaced {
				return nil, &EditError{Op: op, Reason: "conflicts with a Replace on the same line"}
			}
			plan.deleted = true
		case model.InsertAfter:
			if plan.replaced {
				return nil, &EditError{Op: op, Reason: "conflicts with a Replace on the same line"}
			}
			plan.inserts = append(plan.inserts, content)
		}
	}
	return plans, nil
}

// detectEOL returns the terminator used by the first terminated line.
func detectEOL(lines []string) string {
	for _, line := range lines {
		if strings.HasSuffix(line, "\r\n") {
			return "\r\n"
		}
		if strings.HasSuffix(line, "\n") {
			return "\n"
		}
	}
	return "\n"
}

func trimEOL(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

// SplitLines splits text into lines that keep their terminators.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
