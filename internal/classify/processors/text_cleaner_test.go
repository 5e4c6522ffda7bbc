package processors

import (
	"strings"
	"testing"
)

func TestCleanText_PlainTextPassesThrough(t *testing.T) {
	cleaner := NewDescriptionCleaner()

	got := cleaner.CleanText("Build and run   Go services\n\nat scale")
	if got != "Build and run Go services at scale" {
		t.Errorf("CleanText = %q", got)
	}
}

func TestCleanText_StripsMarkup(t *testing.T) {
	cleaner := NewDescriptionCleaner()

	html := `<div><h1>Backend Engineer</h1><script>alert(1)</script><p>Go and Postgres</p></div>`
	got := cleaner.CleanText(html)

	if strings.Contains(got, "alert") {
		t.Errorf("script content leaked: %q", got)
	}
	if !strings.Contains(got, "Backend Engineer") || !strings.Contains(got, "Go and Postgres") {
		t.Errorf("visible text lost: %q", got)
	}
}

func TestCleanText_RemovesChrome(t *testing.T) {
	cleaner := NewDescriptionCleaner()

	html := `<nav>Home | Jobs</nav><p>Real description</p><footer>© Example</footer>`
	got := cleaner.CleanText(html)

	if strings.Contains(got, "Home") || strings.Contains(got, "©") {
		t.Errorf("navigation/footer leaked: %q", got)
	}
	if !strings.Contains(got, "Real description") {
		t.Errorf("description lost: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	cleaner := NewDescriptionCleaner()

	if got := cleaner.Truncate("short", 10); got != "short" {
		t.Errorf("under limit = %q, want unchanged", got)
	}
	if got := cleaner.Truncate("abcdefghij", 4); got != "abcd..." {
		t.Errorf("over limit = %q, want abcd...", got)
	}
	if got := cleaner.Truncate("héllo wörld", 5); got != "héllo..." {
		t.Errorf("multibyte truncation = %q, want héllo...", got)
	}
	if got := cleaner.Truncate("anything", 0); got != "anything" {
		t.Errorf("zero limit = %q, want unchanged", got)
	}
}
