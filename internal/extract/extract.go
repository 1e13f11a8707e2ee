// Package extract pulls appointment fields out of speech transcripts using
// ordered pattern rules. Each field category tries its rules in a fixed
// order and the first match wins; extraction is purely syntactic and leaves
// validation to the caller.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Fields is a partial appointment update produced from one transcript.
// Zero values mean "not found"; HospitalID is a pointer so a found id of 0
// is distinguishable from no id.
type Fields struct {
	Patient    string
	Symptoms   string
	Date       string
	Time       string
	HospitalID *int
}

// ---------- package-level compiled rule lists ----------

var namePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:my name is|this is|i am|i'm|name is) ([a-z\s]+)`),
	regexp.MustCompile(`([a-z\s]+) is my name`),
	regexp.MustCompile(`patient(?:'s)? name (?:is )?([a-z\s]+)`),
}

// nameStopWords are filler tokens stripped from a captured name span.
var nameStopWords = map[string]bool{
	"calling": true, "here": true, "speaking": true,
	"and": true, "the": true, "to": true, "for": true, "with": true,
	"hospital": true, "id": true, "symptoms": true, "date": true, "time": true,
}

// nameExclusionKeywords block the short-utterance fallback: a bare reply
// containing any of these is not a name.
var nameExclusionKeywords = []string{"hospital", "symptom", "date", "time", "appointment", "book"}

var hospitalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`hospital (?:id|number|#)?\s*(?:is)?\s*(\d+)`),
	regexp.MustCompile(`hospital(?:id)? (\d+)`),
	regexp.MustCompile(`(?:id|number) (\d+)`),
	regexp.MustCompile(`hospital (\d+)`),
	regexp.MustCompile(`the number (\d+)`),
}

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`date (?:is|of)? ?(20\d\d-\d{1,2}-\d{1,2})`),
	regexp.MustCompile(`(20\d\d-\d{1,2}-\d{1,2})`),
	regexp.MustCompile(`date (?:is|of)? ?(\d{1,2}[/-]\d{1,2}[/-]20\d\d)`),
	regexp.MustCompile(`(\d{1,2}[/-]\d{1,2}[/-]20\d\d)`),
	regexp.MustCompile(`date (?:is|for|on)? ?([a-z]+ \d{1,2}(?:st|nd|rd|th)?(?:,)? ?20\d\d)`),
	regexp.MustCompile(`on ([a-z]+ \d{1,2}(?:st|nd|rd|th)?(?:,)? ?20\d\d)`),
}

var timePatterns = []*regexp.Regexp{
	regexp.MustCompile(`time (?:is|at)? ?(\d{1,2}(?::\d{2})?\s*(?:am|pm))`),
	regexp.MustCompile(`(\d{1,2}(?::\d{2})?\s*(?:am|pm))`),
	regexp.MustCompile(`at (\d{1,2}(?::\d{2})?\s*(?:am|pm))`),
	regexp.MustCompile(`time (?:is|at)? ?(\d{1,2}(?::\d{2})?\s*(?:in the morning|in the afternoon|in the evening))`),
	regexp.MustCompile(`(\d{1,2}) (?:o'clock|oclock)`),
}

// symptomTriggers gate the explicit symptom rules; without one of these the
// transcript is not scanned for a symptom span.
var symptomTriggers = []string{"symptom", "problem", "issue", "reason", "suffering", "pain", "appointment for"}

var symptomPatterns = []*regexp.Regexp{
	regexp.MustCompile(`symptom(?:s)? (?:is|are) (.+?)(?:\.|$|date|time|hospital)`),
	regexp.MustCompile(`problem(?:s)? (?:is|are) (.+?)(?:\.|$|date|time|hospital)`),
	regexp.MustCompile(`suffering from (.+?)(?:\.|$|date|time|hospital)`),
	regexp.MustCompile(`reason (?:is|for) (.+?)(?:\.|$|date|time|hospital)`),
	regexp.MustCompile(`issue (?:is|with) (.+?)(?:\.|$|date|time|hospital)`),
	regexp.MustCompile(`appointment for (.+?)(?:\.|$|date|time|hospital)`),
	regexp.MustCompile(`i have (?:a|an) (.+?)(?:\.|$|date|time|hospital)`),
}

// residualFillerPhrases are stripped before leftover text is considered a
// symptom description.
var residualFillerPhrases = []string{
	"my name is", "this is", "i am", "i'm", "name is", "hospital id",
	"date is", "time is", "i need", "i want", "to book", "an appointment",
	"appointment for",
}

// Extract runs every field category over the transcript and returns the
// union of first matches. The transcript is lower-cased internally.
func Extract(transcript string) Fields {
	lower := strings.ToLower(transcript)
	f := Fields{
		Patient:  ExtractName(lower),
		Date:     ExtractDate(lower),
		Time:     ExtractTime(lower),
		Symptoms: ExtractSymptoms(lower),
	}
	if id, ok := ExtractHospitalID(lower); ok {
		f.HospitalID = &id
	}
	return f
}

// ExtractName tries the ordered name templates, then falls back to treating
// a short all-alphabetic utterance as a bare name.
func ExtractName(lower string) string {
	for _, re := range namePatterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		if name := cleanName(m[1]); name != "" {
			return name
		}
	}

	words := strings.Fields(lower)
	if len(words) == 0 || len(words) > 4 {
		return ""
	}
	for _, w := range words {
		if !isAlphabetic(w) {
			return ""
		}
	}
	for _, kw := range nameExclusionKeywords {
		if strings.Contains(lower, kw) {
			return ""
		}
	}
	return titleCase(strings.TrimSpace(lower))
}

// cleanName strips stop-words from a captured span and title-cases what is
// left. Returns "" when nothing survives.
func cleanName(raw string) string {
	var kept []string
	for _, w := range strings.Fields(strings.TrimSpace(raw)) {
		if !nameStopWords[w] {
			kept = append(kept, w)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return titleCase(strings.Join(kept, " "))
}

// ExtractHospitalID returns the first numeric capture across the ordered
// template list. Captures that do not parse as an integer are skipped.
func ExtractHospitalID(lower string) (int, bool) {
	for _, re := range hospitalPatterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(strings.TrimSpace(m[1]))
		if err != nil {
			continue
		}
		return id, true
	}
	return 0, false
}

// ExtractDate returns the first date-shaped span as raw text; parsing into
// a calendar date happens at persistence time.
func ExtractDate(lower string) string {
	return firstMatch(datePatterns, lower)
}

// ExtractTime returns the first clock-time span as raw text.
func ExtractTime(lower string) string {
	return firstMatch(timePatterns, lower)
}

// ExtractSymptoms captures the symptom span when a trigger word is present.
func ExtractSymptoms(lower string) string {
	if !containsAny(lower, symptomTriggers) {
		return ""
	}
	return firstMatch(symptomPatterns, lower)
}

// ExtractResidualSymptoms treats whatever text is left after removing the
// already-known field values and common filler phrases as a symptom
// description. Used only once name, hospital id, date and time are all known
// and no explicit symptom rule fired.
func ExtractResidualSymptoms(transcript string, known Fields) string {
	remaining := strings.ToLower(transcript)

	var removals []string
	if known.Patient != "" {
		removals = append(removals, strings.Fields(strings.ToLower(known.Patient))...)
	}
	if known.HospitalID != nil {
		id := strconv.Itoa(*known.HospitalID)
		removals = append(removals, "hospital "+id, "hospital id "+id)
	}
	if known.Date != "" {
		removals = append(removals, strings.ToLower(known.Date))
	}
	if known.Time != "" {
		removals = append(removals, strings.ToLower(known.Time))
	}
	removals = append(removals, residualFillerPhrases...)

	for _, phrase := range removals {
		remaining = strings.ReplaceAll(remaining, phrase, " ")
	}
	remaining = strings.Join(strings.Fields(remaining), " ")
	if len(remaining) <= 3 {
		return ""
	}
	return capitalize(remaining)
}

func firstMatch(rules []*regexp.Regexp, lower string) string {
	for _, re := range rules {
		if m := re.FindStringSubmatch(lower); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func isAlphabetic(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return len(w) > 0
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
