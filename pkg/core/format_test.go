package core

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestFormatBodyScalars(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"int", 42, "Scalar (int): 42"},
		{"negative int64", int64(-7), "Scalar (int64): -7"},
		{"uint8", uint8(5), "Scalar (uint8): 5"},
		{"float", 3.14, "Scalar (float64): 3.14"},
		{"whole float", 2.0, "Scalar (float64): 2"},
		{"true", true, "Scalar (bool): true"},
		{"false", false, "Scalar (bool): false"},
		{"nil", nil, "Scalar (nil): nil"},
		{"error", errors.New("boom"), "Scalar (error): boom"},
		{"duration", 1500 * time.Millisecond, "Scalar (time.Duration): 1.5s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatBody(PayloadOf(tt.input))
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatBodyExplicitScalarString(t *testing.T) {
	got := FormatBody(Scalar("x"))
	if got != `Scalar (string): "x"` {
		t.Errorf("got %q", got)
	}
}

func TestFormatBodyJSONText(t *testing.T) {
	got := FormatBody(Text(`{"a":1}`))
	if !strings.HasPrefix(got, PrefixJSON) {
		t.Fatalf("missing JSON prefix: %q", got)
	}
	if !strings.Contains(got, `"a": 1`) {
		t.Errorf("expected pretty rendering with key a and value 1, got %q", got)
	}
}

func TestFormatBodyJSONArrayText(t *testing.T) {
	got := FormatBody(Text(`  [1, 2, {"k": "v"}]  `))
	if !strings.HasPrefix(got, PrefixJSON) {
		t.Fatalf("missing JSON prefix: %q", got)
	}
	if !strings.Contains(got, `"k": "v"`) {
		t.Errorf("nested value missing: %q", got)
	}
}

func TestFormatBodyJSONPreservesNumbers(t *testing.T) {
	got := FormatBody(Text(`{"big": 12345678901234567890, "f": 1.50}`))
	if !strings.Contains(got, "12345678901234567890") {
		t.Errorf("big number altered: %q", got)
	}
	if !strings.Contains(got, "1.50") {
		t.Errorf("float digits altered: %q", got)
	}
}

func TestFormatBodyPlainText(t *testing.T) {
	tests := []string{
		"hello world",
		"42",
		"true",
		`"quoted"`,
		`{"a":1} trailing`,
		"{not json",
		"<script>alert(1)</script>\x00\x1b[31m",
		"",
	}
	for _, in := range tests {
		got := FormatBody(Text(in))
		if got != PrefixString+in {
			t.Errorf("FormatBody(%q) = %q, want verbatim text", in, got)
		}
	}
}

func TestFormatBodyStructured(t *testing.T) {
	got := FormatBody(PayloadOf(map[string]int{"a": 1, "b": 2}))
	if !strings.HasPrefix(got, PrefixStructured) {
		t.Fatalf("missing prefix: %q", got)
	}
	for _, want := range []string{`"a": 1`, `"b": 2`} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %s in %q", want, got)
		}
	}

	type user struct {
		Name  string   `json:"name"`
		Roles []string `json:"roles"`
	}
	got = FormatBody(PayloadOf(&user{Name: "ada", Roles: []string{"admin"}}))
	if !strings.HasPrefix(got, PrefixStructured) || !strings.Contains(got, `"admin"`) {
		t.Errorf("struct rendering: %q", got)
	}

	got = FormatBody(PayloadOf([]any{1, "two", nil}))
	if !strings.HasPrefix(got, PrefixStructured) || !strings.Contains(got, "null") {
		t.Errorf("slice rendering: %q", got)
	}
}

func TestFormatBodyNoHTMLEscaping(t *testing.T) {
	got := FormatBody(PayloadOf(map[string]string{"html": "<b>&</b>"}))
	if !strings.Contains(got, "<b>&</b>") {
		t.Errorf("structured value was escaped: %q", got)
	}
}

func TestFormatBodyEncodingFailure(t *testing.T) {
	tests := []struct {
		name string
		in   Payload
	}{
		{"channel", Structured(map[string]any{"ch": make(chan int)})},
		{"NaN", Structured([]float64{math.NaN()})},
		{"func", Structured(struct{ F func() }{F: func() {}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatBody(tt.in)
			if !strings.HasPrefix(got, PrefixStructured+"<encoding failed: ") {
				t.Errorf("got %q", got)
			}
		})
	}
}

type panicky struct{}

func (panicky) MarshalJSON() ([]byte, error) { panic("kaboom") }

func TestFormatBodyRecoversPanic(t *testing.T) {
	got := FormatBody(Structured(panicky{}))
	if !strings.Contains(got, "encoding failed") || !strings.Contains(got, "kaboom") {
		t.Errorf("got %q", got)
	}
}

func TestFormatWrapsEntry(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	got := Format(Entry{Time: ts, Level: LevelInfo, Payload: Text("hello world")}, "")
	want := "[2024-03-09 14:05:07] INFO: String:\nhello world\n\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	got = Format(Entry{Time: ts, Level: LevelError, Payload: PayloadOf(map[string]int{"a": 1, "b": 2})}, "")
	if !strings.HasPrefix(got, "[2024-03-09 14:05:07] ERROR: Array/Object:\n") {
		t.Errorf("got %q", got)
	}
	if !strings.HasSuffix(got, "}\n\n\n") {
		t.Errorf("structured entry should end with body newline plus separator: %q", got)
	}
}

func TestFormatEmptyLevelIsInfo(t *testing.T) {
	got := Format(Entry{Time: time.Unix(0, 0).UTC(), Payload: Scalar(1)}, time.RFC3339)
	if !strings.HasPrefix(got, "[1970-01-01T00:00:00Z] INFO: ") {
		t.Errorf("got %q", got)
	}
}

func TestParseHeader(t *testing.T) {
	ts, level, rest, ok := ParseHeader("[2024-03-09 14:05:07] WARNING: String:\nx")
	if !ok {
		t.Fatal("expected header")
	}
	if ts != "2024-03-09 14:05:07" || level != LevelWarning || rest != "String:\nx" {
		t.Errorf("got ts=%q level=%q rest=%q", ts, level, rest)
	}

	if _, _, _, ok := ParseHeader("no header here"); ok {
		t.Error("expected no header")
	}
}

func TestCountEntries(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	payloads := []any{"hello", map[string]int{"a": 1}, 7, `{"x":[1,2]}`, "line one\nline two"}

	var b strings.Builder
	for _, p := range payloads {
		b.WriteString(Format(Entry{Time: ts, Level: LevelDebug, Payload: PayloadOf(p)}, ""))
	}
	contents := b.String()

	if got := CountEntries(contents); got != len(payloads) {
		t.Errorf("CountEntries = %d, want %d", got, len(payloads))
	}
	if got := CountEntries(""); got != 0 {
		t.Errorf("empty contents: got %d", got)
	}
}
