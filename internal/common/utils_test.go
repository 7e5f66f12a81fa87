package common

import "testing"

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"привет", 5, "приве"},
		{"привет", 6, "привет"},
		{"привет", 4, "прив"},
		{"привет", 0, ""},
	}
	for _, c := range cases {
		if got := Truncate(c.in, c.n); got != c.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", c.in, c.n, got, c.want)
		}
	}
}

func TestHasAny(t *testing.T) {
	if !HasAny("UNIQUE constraint failed: publications", "UNIQUE constraint failed") {
		t.Fatal("expected a match")
	}
	if HasAny("database is locked", "UNIQUE", "PRIMARY KEY") {
		t.Fatal("unexpected match")
	}
}
