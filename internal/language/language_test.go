package language

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"two letter passthrough", "en", "en"},
		{"three letter code", "urd", "ur"},
		{"word form", "Spanish", "es"},
		{"unknown two letter", "xx", "xx"},
		{"unknown word", "klingon", ""},
		{"empty", "", ""},
		{"whitespace", "  fr  ", "fr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDisplay(t *testing.T) {
	if got := Display("hi"); got != "Hindi" {
		t.Errorf("Display(hi) = %q, want Hindi", got)
	}
	if got := Display("zz"); got != "ZZ" {
		t.Errorf("Display(zz) = %q, want ZZ", got)
	}
}

func TestWordsPerMinute(t *testing.T) {
	if got := WordsPerMinute("es"); got != 180 {
		t.Errorf("WordsPerMinute(es) = %d, want 180", got)
	}
	if got := WordsPerMinute("unknown"); got != 160 {
		t.Errorf("WordsPerMinute(unknown) = %d, want 160", got)
	}
}
