package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sokinpui/mend.go/internal/patcher"
	"github.com/sokinpui/mend.go/model"
)

// ErrNoArray is returned when a reply contains no '[' at all.
var ErrNoArray = errors.New("no JSON array found in response")

// ExtractBatch locates the JSON array in a model reply and decodes it.
//
// Decoding starts at the first '[' of the reply; if that yields an array it
// is the result, whatever it holds. Anything after the array is ignored, so
// trailing commentary is tolerated. Only when the first '[' does not decode
// are fenced code blocks and then later '[' positions tried, and there an
// array must hold only objects to be taken. When nothing qualifies, the
// error of the first '[' is returned.
func ExtractBatch(reply string) (model.Batch, error) {
	idx := strings.IndexByte(reply, '[')
	if idx < 0 {
		return nil, ErrNoArray
	}
	batch, firstErr := decodeArray(reply[idx:])
	if firstErr == nil {
		return batch, nil
	}

	var candidates []string
	if blocks, err := ExtractCodeBlocks([]byte(reply)); err == nil {
		for _, b := range blocks {
			candidates = append(candidates, b.Content)
		}
	}
	candidates = append(candidates, reply[idx+1:])

	for _, c := range candidates {
		if batch, err := scanArray(c); err == nil {
			return batch, nil
		}
	}
	return nil, firstErr
}

// scanArray returns the first array of objects that decodes from some '['
// in text.
func scanArray(text string) (model.Batch, error) {
	offset := 0
	for {
		idx := strings.IndexByte(text[offset:], '[')
		if idx < 0 {
			return nil, ErrNoArray
		}
		start := offset + idx
		batch, err := decodeArray(text[start:])
		if err == nil && allObjects(batch) {
			return batch, nil
		}
		offset = start + 1
	}
}

func decodeArray(text string) (model.Batch, error) {
	var batch model.Batch
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&batch); err != nil {
		return nil, fmt.Errorf("failed to decode JSON array: %w", err)
	}
	return batch, nil
}

func allObjects(batch model.Batch) bool {
	for _, raw := range batch {
		if !gjson.ParseBytes(raw).IsObject() {
			return false
		}
	}
	return true
}

// Project turns the raw objects of a batch into edits and commentary.
// Objects with an "operation" field are edits; objects with only an
// "explanation" are commentary; everything else is dropped.
func Project(batch model.Batch) ([]model.Entry, error) {
	entries := make([]model.Entry, 0, len(batch))
	for _, raw := range batch {
		obj := gjson.ParseBytes(raw)
		if !obj.IsObject() {
			continue
		}

		explanation := obj.Get("explanation").String()
		operation := obj.Get("operation")
		if !operation.Exists() {
			if obj.Get("explanation").Exists() {
				entries = append(entries, model.Entry{Explanation: explanation})
			}
			continue
		}

		edit := model.EditOperation{
			Kind:    model.ParseKind(operation.String()),
			Content: obj.Get("content").String(),
		}
		line, err := parseLine(obj.Get("line"))
		if err != nil {
			return nil, &patcher.EditError{Op: edit, Reason: err.Error()}
		}
		edit.Line = line

		entries = append(entries, model.Entry{Edit: &edit, Explanation: explanation})
	}
	return entries, nil
}

func parseLine(v gjson.Result) (int, error) {
	switch v.Type {
	case gjson.Number:
		if v.Num != math.Trunc(v.Num) {
			return 0, fmt.Errorf("line %v is not an integer", v.Num)
		}
		return int(v.Num), nil
	case gjson.String:
		n, err := strconv.Atoi(strings.TrimSpace(v.Str))
		if err != nil {
			return 0, fmt.Errorf("line %q is not an integer", v.Str)
		}
		return n, nil
	default:
		return 0, errors.New("missing line number")
	}
}

// Split separates projected entries into edits and explanations,
// preserving response order.
func Split(entries []model.Entry) ([]model.EditOperation, []string) {
	var edits []model.EditOperation
	var explanations []string
	for _, e := range entries {
		if e.IsEdit() {
			edits = append(edits, *e.Edit)
		}
		if e.Explanation != "" {
			explanations = append(explanations, e.Explanation)
		}
	}
	return edits, explanations
}
