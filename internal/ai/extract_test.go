package ai

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain object",
			raw:  `{"a":1}`,
			want: `{"a":1}`,
		},
		{
			name: "fenced json block",
			raw:  "Here you go:\n```json\n{\"a\": 1}\n```\nHope that helps!",
			want: `{"a": 1}`,
		},
		{
			name: "fence without language tag",
			raw:  "```\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "prose around braces",
			raw:  `Sure! The plan is {"a": 1} as requested.`,
			want: `{"a": 1}`,
		},
		{
			name: "trailing comma repaired",
			raw:  `{"a": 1, "b": [1, 2,],}`,
			want: `{"a": 1, "b": [1, 2]}`,
		},
		{
			name: "bare keys quoted",
			raw:  `{a: 1, b_2: "x"}`,
			want: `{"a": 1, "b_2": "x"}`,
		},
		{
			name: "curly quotes normalized",
			raw:  "{“a”: “x”}",
			want: `{"a": "x"}`,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.raw)
			if err != nil {
				t.Fatalf("extractJSON(%q) error: %v", tt.raw, err)
			}
			if !json.Valid(got) {
				t.Fatalf("extractJSON(%q) returned invalid JSON: %s", tt.raw, got)
			}
			var a, b any
			if err := json.Unmarshal(got, &a); err != nil {
				t.Fatal(err)
			}
			if err := json.Unmarshal([]byte(tt.want), &b); err != nil {
				t.Fatal(err)
			}
			ga, _ := json.Marshal(a)
			gb, _ := json.Marshal(b)
			if string(ga) != string(gb) {
				t.Fatalf("extractJSON(%q) = %s, want %s", tt.raw, ga, gb)
			}
		})
	}
}

func TestExtractJSONMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "no object at all", raw: "I cannot answer that."},
		{name: "unclosed object", raw: `{"a": 1`},
		{name: "repair not enough", raw: `{a: 'single quoted'}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractJSON(tt.raw)
			if err == nil {
				t.Fatalf("extractJSON(%q) expected error, got nil", tt.raw)
			}
			var me *MalformedError
			if !errors.As(err, &me) {
				t.Fatalf("extractJSON(%q) error = %T, want *MalformedError", tt.raw, err)
			}
			if me.Raw != tt.raw {
				t.Fatalf("MalformedError.Raw = %q, want original input", me.Raw)
			}
		})
	}
}
