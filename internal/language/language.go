package language

import "strings"

type entry struct {
	code2   string // ISO 639-1 (2-letter)
	code3   string // ISO 639-2 primary (3-letter)
	display string
	words   []string // Full word forms (e.g. "english")
	wpm     int      // Approximate narration pace, words per minute
}

var languages = []entry{
	{"en", "eng", "English", []string{"english"}, 170},
	{"hi", "hin", "Hindi", []string{"hindi"}, 150},
	{"es", "spa", "Spanish", []string{"spanish"}, 180},
	{"fr", "fra", "French", []string{"french"}, 160},
	{"ur", "urd", "Urdu", []string{"urdu"}, 150},
	{"ar", "ara", "Arabic", []string{"arabic"}, 140},
}

var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages))
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	return nil
}

// Normalize converts any recognized language code or word to ISO 639-1.
// Returns empty string for unrecognized input. A 2-letter input passes
// through even when unknown so new languages degrade gracefully.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// Display returns a human-readable language name, falling back to the
// uppercased code for unknown languages.
func Display(code string) string {
	if e := lookup(code); e != nil {
		return e.display
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "Unknown"
	}
	return strings.ToUpper(code)
}

// WordsPerMinute returns the approximate narration pace for a language.
// Used to estimate speech synthesis cost and duration. Defaults to 160
// for unrecognized languages.
func WordsPerMinute(code string) int {
	if e := lookup(code); e != nil {
		return e.wpm
	}
	return 160
}

// IsKnown reports whether the code maps to a language in the table.
func IsKnown(code string) bool {
	return lookup(code) != nil
}
