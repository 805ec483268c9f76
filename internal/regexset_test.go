package internal

import "testing"

func TestRegexSetEmptyMatchesEverything(t *testing.T) {
	rs, err := NewRegexSet(nil)
	if err != nil {
		t.Fatalf("NewRegexSet: %v", err)
	}
	if !rs.MatchAny("anything") {
		t.Errorf("empty set should match everything")
	}
}

func TestRegexSetMatchAny(t *testing.T) {
	rs, err := NewRegexSet([]string{`\.vtf$`, `^materials/`})
	if err != nil {
		t.Fatalf("NewRegexSet: %v", err)
	}
	for _, x := range []struct {
		name  string
		match bool
	}{
		{"models/foo.vtf", true},
		{"materials/foo.vmt", true},
		{"scripts/foo.txt", false},
	} {
		if got := rs.MatchAny(x.name); got != x.match {
			t.Errorf("MatchAny(%q) = %t, want %t", x.name, got, x.match)
		}
	}
}

func TestRegexSetCompileError(t *testing.T) {
	if _, err := NewRegexSet([]string{"("}); err == nil {
		t.Errorf("expected compile error for invalid pattern")
	}
}
