package content

import (
	"strings"
	"testing"
)

func TestTitleFromHTML(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"title tag", `<html><head><title>Go Memory Model</title></head></html>`, "Go Memory Model"},
		{"h1 fallback", `<html><body><h1>Effective Go</h1></body></html>`, "Effective Go"},
		{"og:title fallback", `<html><head><meta property="og:title" content="Go Blog"></head></html>`, "Go Blog"},
	}
	for _, tt := range tests {
		got, err := TitleFromHTML(tt.html)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestTitleFromHTMLNotFound(t *testing.T) {
	if _, err := TitleFromHTML(`<html><body><p>nothing</p></body></html>`); err == nil {
		t.Error("expected error when no title exists")
	}
}

func TestIsPDF(t *testing.T) {
	if !isPDF("https://example.com/paper.pdf", "") {
		t.Error("pdf extension should match")
	}
	if !isPDF("https://example.com/paper", "application/pdf; charset=binary") {
		t.Error("pdf content type should match")
	}
	if isPDF("https://example.com/post", "text/html") {
		t.Error("html page is not a pdf")
	}
}

func TestTitleFromURL(t *testing.T) {
	if got := titleFromURL("https://arxiv.org/pdf/attention-is-all-you-need.pdf"); got != "attention-is-all-you-need" {
		t.Errorf("titleFromURL = %q", got)
	}
}

func TestClip(t *testing.T) {
	if got := clip("  a\n b\t\tc  "); got != "a b c" {
		t.Errorf("whitespace not normalized: %q", got)
	}
	long := strings.Repeat("x ", excerptLimit)
	got := clip(long)
	if len(got) != excerptLimit+3 || !strings.HasSuffix(got, "...") {
		t.Errorf("long excerpt not clipped: len=%d", len(got))
	}
}
