package ui

import (
	"strings"
	"testing"
)

func TestKeyValuesAligned(t *testing.T) {
	out := KeyValues("  ", KV("X", "1"), KV("Moves", "6"))
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[0], " 1") || !strings.HasSuffix(lines[1], " 6") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestTableContainsCells(t *testing.T) {
	out := Table([]string{"Axis", "Fast"}, [][]string{{"x", "2683"}, {"z", "1897"}})
	for _, want := range []string{"Axis", "Fast", "x", "2683", "1897"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestMicrons(t *testing.T) {
	cases := map[int32]string{0: "0.000", 1500: "1.500", -250: "-0.250"}
	for in, want := range cases {
		if got := Microns(in); got != want {
			t.Errorf("Microns(%d) = %q, want %q", in, got, want)
		}
	}
}
