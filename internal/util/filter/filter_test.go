package filter

import "testing"

func TestConfigMatchesIncludeExclude(t *testing.T) {
	cfg := Config{Include: []string{"*.jpg", "*.png"}, Exclude: []string{"tmp_*"}}

	cases := []struct {
		name string
		want bool
	}{
		{"photo.jpg", true},
		{"photo.png", true},
		{"photo.mov", false},
		{"tmp_photo.jpg", false},
	}
	for _, c := range cases {
		if got := cfg.Matches(c.name, c.name); got != c.want {
			t.Errorf("Matches(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestConfigMatchesSearch(t *testing.T) {
	cfg := Config{Search: []string{"vacation"}}
	if !cfg.Matches("vacation-photo.jpg", "vacation-photo.jpg") {
		t.Error("expected match on search term")
	}
	if cfg.Matches("work.jpg", "work.jpg") {
		t.Error("expected no match without search term")
	}
}

func TestConfigMatchesPathInclude(t *testing.T) {
	cfg := Config{PathInclude: []string{"**/2024/*.jpg"}}
	if !cfg.Matches("a.jpg", "album/2024/a.jpg") {
		t.Error("expected path-include glob to match nested path")
	}
	if cfg.Matches("a.jpg", "album/2023/a.jpg") {
		t.Error("expected path-include glob to reject non-matching year")
	}
}

func TestApplyToPaths(t *testing.T) {
	entries := []string{"a.jpg", "b.mov", "c.png"}
	cfg := Config{Include: []string{"*.jpg", "*.png"}}

	got := ApplyToPaths(entries, func(s string) (string, string) { return s, s }, cfg)
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 entries", got)
	}
}

func TestParsePatternList(t *testing.T) {
	got := ParsePatternList("*.jpg, *.png ,")
	want := []string{"*.jpg", "*.png"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
