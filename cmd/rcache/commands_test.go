package main

import (
	"reflect"
	"testing"
)

func TestParseValue(t *testing.T) {
	cases := []struct {
		in   string
		want any
	}{
		{"42", float64(42)},
		{"hello", "hello"},
		{`"quoted"`, "quoted"},
		{`{"a":1}`, map[string]any{"a": float64(1)}},
		{"[1,2]", []any{float64(1), float64(2)}},
	}
	for _, tc := range cases {
		if got := parseValue(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("parseValue(%q) = %#v, want %#v", tc.in, got, tc.want)
		}
	}
}

func TestFormat(t *testing.T) {
	if got := format("plain"); got != "plain" {
		t.Fatalf("format(string) = %q", got)
	}
	if got := format(map[string]any{"a": 1}); got != `{"a":1}` {
		t.Fatalf("format(map) = %q", got)
	}
}

func TestDeltaArg(t *testing.T) {
	if d, err := deltaArg([]string{"k"}); err != nil || d != 1 {
		t.Fatalf("default delta = %d, %v", d, err)
	}
	if d, err := deltaArg([]string{"k", "-3"}); err != nil || d != -3 {
		t.Fatalf("delta = %d, %v", d, err)
	}
	if _, err := deltaArg([]string{"k", "x"}); err == nil {
		t.Fatalf("expected error for non-numeric delta")
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger("json", "debug"); err != nil {
		t.Fatalf("json logger: %v", err)
	}
	if _, err := newLogger("xml", "info"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if _, err := newLogger("text", "loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
