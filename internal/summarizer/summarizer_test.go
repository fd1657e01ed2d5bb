package summarizer

import (
	"strings"
	"testing"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Kid-friendly dog breeds", "Kid-friendly dog breeds"},
		{"surrounding whitespace", "  Kid-friendly dog breeds \n", "Kid-friendly dog breeds"},
		{"quoted", `"Kid-friendly dog breeds"`, "Kid-friendly dog breeds"},
		{"single quoted", "'Dog breeds'", "Dog breeds"},
		{"trailing period", "Dog breeds.", "Dog breeds"},
		{"multiline keeps first", "Dog breeds\nHere is why I chose it", "Dog breeds"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeTitle(tt.in); got != tt.want {
				t.Errorf("sanitizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeTitle_CapsLength(t *testing.T) {
	got := sanitizeTitle(strings.Repeat("long ", 100))
	if len([]rune(got)) > maxTitleLen {
		t.Errorf("len = %d, want <= %d", len([]rune(got)), maxTitleLen)
	}
}
