package aiparse

import (
	"testing"

	"github.com/forPelevin/blockcut/internal/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		wantOK     bool
		wantKind   Kind
		wantMethod Method
		wantErr    string
	}{
		{"raw envelope", `{"shorts":[{"start":1,"end":2,"title":"t"}]}`, true, KindEnvelope, MethodDirect, ""},
		{"raw list", `[{"start":1,"end":2}]`, true, KindList, MethodDirect, ""},
		{"fenced", "```json\n{\"shorts\":[]}\n```", true, KindEnvelope, MethodFenced, ""},
		{"fenced with preface", "Sure! Here you go:\n```json\n[]\n```\nThanks", true, KindList, MethodFenced, ""},
		{"other shape", `{"clips":[]}`, true, KindOther, MethodDirect, ""},
		{"not json", "not json", false, "", "", errInvalidFormat},
		{"empty", "   ", false, "", "", errInvalidFormat},
		{"broken fence", "```json\n{\"shorts\": [\n```", false, "", "", errFencedContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.in)
			if got.OK() != tt.wantOK {
				t.Fatalf("OK() = %v, want %v (failure=%+v)", got.OK(), tt.wantOK, got.Failure)
			}
			if !tt.wantOK {
				if got.Failure.Error != tt.wantErr {
					t.Fatalf("unexpected error tag: %q", got.Failure.Error)
				}
				if got.Failure.RawOutput != tt.in {
					t.Fatalf("raw output not kept: %q", got.Failure.RawOutput)
				}
				if got.Failure.DirectParseError == "" {
					t.Fatalf("expected direct parse error message")
				}
				if got.Output() != got.Failure {
					t.Fatalf("Output() must return the failure")
				}
				return
			}
			if got.Kind != tt.wantKind || got.Method != tt.wantMethod {
				t.Fatalf("got kind=%s method=%s, want %s %s", got.Kind, got.Method, tt.wantKind, tt.wantMethod)
			}
			if tt.wantKind == KindOther && len(got.Warnings) == 0 {
				t.Fatalf("expected a shape warning")
			}
		})
	}
}

func TestParse_BrokenFenceKeepsBothMessages(t *testing.T) {
	got := Parse("```json\n{oops}\n```")
	if got.Failure == nil || got.Failure.ParseError == "" || got.Failure.DirectParseError == "" {
		t.Fatalf("expected both parse messages, got %+v", got.Failure)
	}
}

func TestResult_BlockResult(t *testing.T) {
	list := Parse(`[{"start":1,"end":31,"title":"a","client_meta":{"virality_score":7}}]`)
	br, err := list.BlockResult(&types.BlockMetadata{BlockID: 2, BlockStart: 900})
	if err != nil {
		t.Fatalf("block result: %v", err)
	}
	if len(br.Shorts) != 1 || br.Shorts[0].ViralityScore() != 7 {
		t.Fatalf("unexpected shorts: %+v", br.Shorts)
	}
	if br.BlockID() != 2 {
		t.Fatalf("metadata override not applied: %+v", br.BlockMetadata)
	}

	env := Parse("```json\n{\"source_video_url\":\"u\",\"shorts\":[],\"block_metadata\":{\"block_id\":4}}\n```")
	br, err = env.BlockResult(nil)
	if err != nil {
		t.Fatalf("block result: %v", err)
	}
	if br.SourceVideoURL != "u" || br.BlockID() != 4 || br.Shorts == nil {
		t.Fatalf("unexpected envelope result: %+v", br)
	}

	if _, err := Parse(`{"clips":[]}`).BlockResult(nil); err == nil {
		t.Fatalf("expected error for value without shorts")
	}
	if _, err := Parse("nope").BlockResult(nil); err == nil {
		t.Fatalf("expected error for failed parse")
	}
}

func TestPreview(t *testing.T) {
	if got := Preview("héllo world", 5); got != "héllo" {
		t.Fatalf("unexpected preview: %q", got)
	}
	if got := Preview("hi", 5); got != "hi" {
		t.Fatalf("unexpected preview: %q", got)
	}
}
