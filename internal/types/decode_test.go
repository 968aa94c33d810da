package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeBlockResults(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		wantN     int
		wantShort int
	}{
		{"envelope", `{"shorts":[{"start":1,"end":2}],"block_metadata":{"block_id":2}}`, 1, 1},
		{"bare shorts", `[{"start":1,"end":2},{"start":5,"end":9}]`, 1, 2},
		{"list of results", `[{"shorts":[{"start":1,"end":2}]},[{"start":3,"end":4}],null]`, 3, 1},
		{"empty list", `[]`, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBlockResults([]byte(tt.in))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(got) != tt.wantN {
				t.Fatalf("got %d results, want %d", len(got), tt.wantN)
			}
			if tt.wantN > 0 && len(got[0].Shorts) != tt.wantShort {
				t.Fatalf("got %d shorts in first result, want %d", len(got[0].Shorts), tt.wantShort)
			}
		})
	}
	if _, err := DecodeBlockResults([]byte(`{"shorts": [`)); err == nil {
		t.Fatalf("expected error for truncated JSON")
	}
}

func TestDecodeBlockResults_Degrades(t *testing.T) {
	tests := []struct {
		name          string
		in            string
		wantShorts    []int
		wantMalformed []int
		wantMeta      []bool
	}{
		{
			name: "mistyped short in second block",
			in: `[
				{"shorts": [{"start": 100, "end": 130}], "block_metadata": {"block_id": 1}},
				{"shorts": [{"start": "1100", "end": 1130}, {"start": 1200, "end": 1230}], "block_metadata": {"block_id": 2}}
			]`,
			wantShorts:    []int{1, 1},
			wantMalformed: []int{0, 1},
			wantMeta:      []bool{true, true},
		},
		{
			name:          "shorts is not a list",
			in:            `{"shorts": 3, "block_metadata": {"block_id": 2}}`,
			wantShorts:    []int{0},
			wantMalformed: []int{1},
			wantMeta:      []bool{true},
		},
		{
			name:          "bad metadata is dropped",
			in:            `[{"shorts": [{"start": 1, "end": 2}], "block_metadata": {"block_id": "two"}}, 7]`,
			wantShorts:    []int{1, 0},
			wantMalformed: []int{0, 1},
			wantMeta:      []bool{false, false},
		},
		{
			name:          "null and scalar shorts",
			in:            `[{"start": 1, "end": 2}, null, "x", {"start": 3, "end": 4}]`,
			wantShorts:    []int{2},
			wantMalformed: []int{2},
			wantMeta:      []bool{false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBlockResults([]byte(tt.in))
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(got) != len(tt.wantShorts) {
				t.Fatalf("got %d results, want %d", len(got), len(tt.wantShorts))
			}
			for i, r := range got {
				if len(r.Shorts) != tt.wantShorts[i] || r.Malformed != tt.wantMalformed[i] {
					t.Fatalf("result %d: shorts=%d malformed=%d", i, len(r.Shorts), r.Malformed)
				}
				if (r.BlockMetadata != nil) != tt.wantMeta[i] {
					t.Fatalf("result %d: metadata = %+v", i, r.BlockMetadata)
				}
			}
		})
	}
}

func TestShort_KeepsUnknownFields(t *testing.T) {
	in := `{"start":1,"end":2,"title":"t","hook":"wait for it","tags":["a","b"]}`
	var s Short
	if err := json.Unmarshal([]byte(in), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(s.Extra) != 2 || string(s.Extra["hook"]) != `"wait for it"` {
		t.Fatalf("unexpected extra: %v", s.Extra)
	}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"start":1,"end":2,"title":"t","hook":"wait for it","tags":["a","b"]}`
	if string(b) != want {
		t.Fatalf("got %s\nwant %s", b, want)
	}

	var plain Short
	if err := json.Unmarshal([]byte(`{"start":1,"end":2,"title":"t"}`), &plain); err != nil || plain.Extra != nil {
		t.Fatalf("no extra expected: %v %v", plain.Extra, err)
	}
}

func TestTranscript_KeepsUnknownFields(t *testing.T) {
	tr, err := DecodeTranscript([]byte(`{"video_duration": 12, "speaker_count": 2, "channel": {"id": "c"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out := string(b)
	if !strings.HasSuffix(out, `,"channel":{"id":"c"},"speaker_count":2}`) || !strings.Contains(out, `"video_duration":12`) {
		t.Fatalf("unexpected transcript: %s", out)
	}
}

func TestDecodeTranscript(t *testing.T) {
	if tr, err := DecodeTranscript([]byte(`[{"video_duration": 12}]`)); err != nil || tr.VideoDuration != 12 {
		t.Fatalf("unexpected: %+v %v", tr, err)
	}
	if _, err := DecodeTranscript([]byte(`[{}, {}]`)); err == nil {
		t.Fatalf("expected error for two items")
	}
}
