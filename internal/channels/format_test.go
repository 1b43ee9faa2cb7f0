package channels

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFlattenTables(t *testing.T) {
	in := strings.Join([]string{
		"Here are your tasks:",
		"",
		"| ID | Title | Schedule |",
		"|----|-------|----------|",
		"| 1 | backup | 0 3 * * * |",
		"| 2 | brief | 0 9 * * 1-5 |",
		"",
		"Anything else?",
	}, "\n")

	out := FlattenTables(in)

	if strings.Contains(out, "|----") {
		t.Error("separator row survived flattening")
	}
	if !strings.Contains(out, "*ID*: 1") || !strings.Contains(out, "*Title*: backup") {
		t.Errorf("first row not flattened:\n%s", out)
	}
	if !strings.Contains(out, "*Schedule*: 0 9 * * 1-5") {
		t.Errorf("second row not flattened:\n%s", out)
	}
	if !strings.Contains(out, "Here are your tasks:") || !strings.Contains(out, "Anything else?") {
		t.Errorf("surrounding prose lost:\n%s", out)
	}
}

func TestFlattenTablesLeavesPlainTextAlone(t *testing.T) {
	tests := []string{
		"no tables here",
		"a | b without table structure",
		"line one\nline two\nline three",
		"code `a || b` is fine",
	}
	for _, in := range tests {
		if got := FlattenTables(in); got != in {
			t.Errorf("FlattenTables(%q) = %q, want unchanged", in, got)
		}
	}
}

func TestFlattenTablesMalformedBlockKept(t *testing.T) {
	// A pipe-heavy block without a separator row is not a table.
	in := "| a | b |\n| c | d |"
	if got := FlattenTables(in); got != in {
		t.Errorf("malformed block rewritten: %q", got)
	}
}

func TestSplitMessage(t *testing.T) {
	if got := splitMessage("short", 100); len(got) != 1 || got[0] != "short" {
		t.Errorf("short message split: %v", got)
	}

	long := strings.Repeat("line of text\n", 100)
	chunks := splitMessage(long, 200)
	if len(chunks) < 2 {
		t.Fatalf("long message not split: %d chunks", len(chunks))
	}
	var total int
	for i, c := range chunks {
		if len(c) > 200 {
			t.Errorf("chunk %d exceeds limit: %d bytes", i, len(c))
		}
		total += len(c)
	}
	if total != len(long) {
		t.Errorf("content lost: %d of %d bytes", total, len(long))
	}
	// Splits should land on newline boundaries when possible.
	if !strings.HasSuffix(chunks[0], "\n") {
		t.Errorf("first chunk not split at newline: %q", chunks[0][len(chunks[0])-20:])
	}
}

func TestSplitMessageKeepsRunesIntact(t *testing.T) {
	// No newlines, so the fallback cut applies; it must not land inside
	// a multibyte rune.
	long := strings.Repeat("héllo wörld ", 50)
	for _, limit := range []int{20, 21, 22, 23} {
		for i, c := range splitMessage(long, limit) {
			if len(c) > limit {
				t.Errorf("limit %d chunk %d exceeds limit: %d bytes", limit, i, len(c))
			}
			if !utf8.ValidString(c) {
				t.Errorf("limit %d chunk %d is invalid UTF-8: %q", limit, i, c)
			}
		}
	}
}

func TestClassifyAttachment(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"photo.JPG", "image"},
		{"clip.mp4", "video"},
		{"note.ogg", "audio"},
		{"report.pdf", "file"},
		{"noext", "file"},
	}
	for _, tt := range tests {
		if got := ClassifyAttachment(tt.name); got != tt.want {
			t.Errorf("ClassifyAttachment(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
