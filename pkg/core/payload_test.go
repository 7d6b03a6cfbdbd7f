package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestPayloadOf(t *testing.T) {
	type point struct{ X, Y int }
	var nilMap map[string]int
	var nilPtr *point

	tests := []struct {
		name  string
		input any
		want  PayloadKind
	}{
		{"string", "hi", KindText},
		{"bytes", []byte("hi"), KindText},
		{"raw json", json.RawMessage(`{"a":1}`), KindText},
		{"map", map[string]any{"a": 1}, KindStructured},
		{"nil map", nilMap, KindStructured},
		{"slice", []int{1, 2}, KindStructured},
		{"array", [2]string{"a", "b"}, KindStructured},
		{"struct", point{1, 2}, KindStructured},
		{"struct pointer", &point{1, 2}, KindStructured},
		{"nil pointer", nilPtr, KindScalar},
		{"int", 1, KindScalar},
		{"float", 1.5, KindScalar},
		{"bool", false, KindScalar},
		{"nil", nil, KindScalar},
		{"error", errors.New("x"), KindScalar},
		{"time", time.Now(), KindScalar},
		{"duration", time.Second, KindScalar},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PayloadOf(tt.input).Kind(); got != tt.want {
				t.Errorf("PayloadOf(%v).Kind() = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestPayloadOfPayloadIsIdentity(t *testing.T) {
	p := Scalar("keep")
	if got := PayloadOf(p); got != p {
		t.Errorf("PayloadOf(Payload) changed the value: %+v", got)
	}
}

func TestLevelString(t *testing.T) {
	if got := Level("").String(); got != "INFO" {
		t.Errorf("empty level: got %q", got)
	}
	if got := Level("  notice ").String(); got != "notice" {
		t.Errorf("free-form level: got %q", got)
	}
}
