package aiparse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/forPelevin/blockcut/internal/types"
)

// Kind tells which shape the parsed agent output has.
type Kind string

const (
	// KindList is a bare JSON array of shorts.
	KindList Kind = "list"
	// KindEnvelope is an object exposing a "shorts" array.
	KindEnvelope Kind = "envelope"
	// KindOther is any other valid JSON value.
	KindOther Kind = "other"
)

// Method records which strategy produced the value.
type Method string

const (
	MethodDirect Method = "direct"
	MethodFenced Method = "fenced"
)

const (
	errInvalidFormat = "Invalid AI response format"
	errFencedContent = "Failed to parse JSON content from markdown block"
)

var fencedJSONRE = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")

// Failure is the structured error payload returned instead of a Go error.
type Failure struct {
	Error            string `json:"error"`
	Details          string `json:"details,omitempty"`
	RawOutput        string `json:"raw_output"`
	DirectParseError string `json:"direct_parse_error,omitempty"`
	ParseError       string `json:"parse_error,omitempty"`
}

type Result struct {
	Value    any
	Kind     Kind
	Method   Method
	Failure  *Failure
	Warnings []string
}

func (r Result) OK() bool { return r.Failure == nil }

// Output is what gets handed downstream: the parsed value or the failure.
func (r Result) Output() any {
	if r.Failure != nil {
		return r.Failure
	}
	return r.Value
}

// Parse decodes an agent response that is either plain JSON or JSON inside a
// ```json fenced block. It never returns an error; failures are reported in
// Result.Failure.
func Parse(raw string) Result {
	v, directErr := decode(raw)
	if directErr == nil {
		return classify(Result{Value: v, Method: MethodDirect})
	}

	m := fencedJSONRE.FindStringSubmatch(raw)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return Result{Failure: &Failure{
			Error:            errInvalidFormat,
			Details:          "Response is neither valid JSON nor markdown JSON block",
			RawOutput:        raw,
			DirectParseError: directErr.Error(),
		}}
	}

	v, fencedErr := decode(m[1])
	if fencedErr != nil {
		return Result{Failure: &Failure{
			Error:            errFencedContent,
			RawOutput:        raw,
			DirectParseError: directErr.Error(),
			ParseError:       fencedErr.Error(),
		}}
	}
	return classify(Result{Value: v, Method: MethodFenced})
}

func decode(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func classify(r Result) Result {
	switch v := r.Value.(type) {
	case []any:
		r.Kind = KindList
		return r
	case map[string]any:
		if _, ok := v["shorts"].([]any); ok {
			r.Kind = KindEnvelope
			return r
		}
	}
	r.Kind = KindOther
	r.Warnings = append(r.Warnings, "unexpected JSON shape: no shorts array")
	return r
}

// BlockResult resolves the parsed value into a block result once, so callers
// never have to check for "shorts or the data itself" again. meta, when set,
// replaces whatever block metadata the agent echoed.
func (r Result) BlockResult(meta *types.BlockMetadata) (types.BlockResult, error) {
	if r.Failure != nil {
		return types.BlockResult{}, fmt.Errorf("aiparse: %s", r.Failure.Error)
	}
	var out types.BlockResult
	switch r.Kind {
	case KindList, KindEnvelope:
		b, err := json.Marshal(r.Value)
		if err != nil {
			return types.BlockResult{}, fmt.Errorf("aiparse: re-encode value: %w", err)
		}
		if err := json.Unmarshal(b, &out); err != nil {
			return types.BlockResult{}, fmt.Errorf("aiparse: decode shorts: %w", err)
		}
	default:
		return types.BlockResult{}, fmt.Errorf("aiparse: value has no shorts array")
	}
	if meta != nil {
		out.BlockMetadata = meta
	}
	if out.Shorts == nil {
		out.Shorts = []types.Short{}
	}
	return out, nil
}

// Preview trims raw output for log lines.
func Preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
