package nickname

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean alias untouched", "validAlias", "validAlias"},
		{"space and bang removed", "sales team!", "salesteam"},
		{"boundary periods trimmed", ".archive.", "archive"},
		{"repeated boundary periods trimmed", "...archive...", "archive"},
		{"inner periods kept", "first.last", "first.last"},
		{"forbidden char exposes period", "@.finance.#", "finance"},
		{"all forbidden", "@#$%", ""},
		{"only periods", "...", ""},
		{"single period after filtering", "(.)", ""},
		{"every forbidden character", ForbiddenCharacters, ""},
		{"hyphen and underscore allowed", "it-ops_team", "it-ops_team"},
		{"non-ascii kept", "zespół", "zespół"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_Truncation(t *testing.T) {
	long := strings.Repeat("a", 70)
	got := Normalize(long)
	if len(got) != StemLength {
		t.Errorf("Normalize() length = %d, want %d", len(got), StemLength)
	}

	// Characters, not bytes, are counted.
	wide := strings.Repeat("ł", 70)
	got = Normalize(wide)
	if n := utf8.RuneCountInString(got); n != StemLength {
		t.Errorf("Normalize() rune count = %d, want %d", n, StemLength)
	}

	// A period landing at the cut is trimmed as well.
	dotted := strings.Repeat("b", 59) + "." + strings.Repeat("c", 10)
	got = Normalize(dotted)
	if strings.HasSuffix(got, ".") {
		t.Errorf("Normalize() left trailing period: %q", got)
	}
	if got != strings.Repeat("b", 59) {
		t.Errorf("Normalize() = %q, want 59 b's", got)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"sales team!",
		".archive.",
		"validAlias",
		strings.Repeat("x", 59) + ".." + strings.Repeat("y", 20),
		"..@..",
		"a.b.c",
		"[Public] Folder: Q3 (old)",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize(Normalize(%q)) = %q, want %q", in, twice, once)
		}
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"validAlias", true},
		{"first.last", true},
		{"a", true},
		{strings.Repeat("a", 64), true},
		{strings.Repeat("a", 65), false},
		{"", false},
		{".lead", false},
		{"trail.", false},
		{"has space", false},
		{"semi;colon", false},
		{`back\slash`, false},
	}
	for _, tt := range tests {
		if got := IsValid(tt.input); got != tt.want {
			t.Errorf("IsValid(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestForbiddenCharacters(t *testing.T) {
	seen := make(map[rune]bool)
	for _, r := range ForbiddenCharacters {
		if !isForbidden(r) {
			t.Errorf("isForbidden(%q) = false", r)
		}
		if seen[r] {
			t.Errorf("duplicate forbidden character %q", r)
		}
		seen[r] = true
	}
	for _, r := range "aZ09.-_ł" {
		if isForbidden(r) {
			t.Errorf("isForbidden(%q) = true", r)
		}
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry("Finance", "HR")

	if !reg.Contains("") {
		t.Error("Contains(\"\") = false, blank must always be taken")
	}
	if !reg.Contains("finance") {
		t.Error("Contains(\"finance\") = false, lookups must ignore case")
	}
	if reg.Contains("legal") {
		t.Error("Contains(\"legal\") = true before Add")
	}
	reg.Add("Legal")
	if !reg.Contains("LEGAL") {
		t.Error("Contains(\"LEGAL\") = false after Add")
	}
	if reg.Len() != 3 {
		t.Errorf("Len() = %d, want 3", reg.Len())
	}
}
