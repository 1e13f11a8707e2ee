package conversation

import (
	"strings"

	"github.com/medicare-voice/intake/internal/extract"
)

// placeholderNames are literal strings some extraction paths emit in place
// of a real name.
var placeholderNames = map[string]struct{}{
	"null": {},
	"none": {},
}

func isPlaceholderName(name string) bool {
	_, ok := placeholderNames[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Apply folds one extraction pass into the draft. The patient name may be
// replaced by a strictly longer candidate, on the theory that a fuller name
// supersedes a partial one. Every other field keeps its first value.
func (d *Draft) Apply(u extract.Fields) {
	if name := strings.TrimSpace(u.Patient); name != "" && !isPlaceholderName(name) {
		if d.Patient == "" || isPlaceholderName(d.Patient) || len(name) > len(d.Patient) {
			d.Patient = name
		}
	}
	if d.Symptoms == "" {
		if v := strings.TrimSpace(u.Symptoms); v != "" {
			d.Symptoms = v
		}
	}
	if d.Date == "" {
		if v := strings.TrimSpace(u.Date); v != "" {
			d.Date = v
		}
	}
	if d.Time == "" {
		if v := strings.TrimSpace(u.Time); v != "" {
			d.Time = v
		}
	}
	if d.HospitalID == nil && u.HospitalID != nil {
		v := *u.HospitalID
		d.HospitalID = &v
	}
}

// crossValidateText merges two model answers for one field: agreement wins,
// then the first non-null, then nothing.
func crossValidateText(first, second *string) *string {
	if first != nil {
		return first
	}
	return second
}
