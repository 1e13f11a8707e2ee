package conversation

import (
	"testing"

	"github.com/medicare-voice/intake/internal/extract"
)

func TestApplyRejectsPlaceholderNames(t *testing.T) {
	d := &Draft{}
	d.Apply(extract.Fields{Patient: "null"})
	if d.Patient != "" {
		t.Fatalf("placeholder name accepted: %q", d.Patient)
	}
	d.Apply(extract.Fields{Patient: "None"})
	if d.Patient != "" {
		t.Fatalf("placeholder name accepted: %q", d.Patient)
	}
}

func TestApplyReplacesPlaceholderWithRealName(t *testing.T) {
	d := &Draft{Patient: "null"}
	d.Apply(extract.Fields{Patient: "Al"})
	if d.Patient != "Al" {
		t.Fatalf("got %q, want %q", d.Patient, "Al")
	}
}

func TestApplyKeepsEqualLengthName(t *testing.T) {
	d := &Draft{Patient: "John Smith"}
	d.Apply(extract.Fields{Patient: "Jane Adams"})
	if d.Patient != "John Smith" {
		t.Fatalf("same-length name replaced earlier value: %q", d.Patient)
	}
}

func TestApplyNeverOverwritesNonNameFields(t *testing.T) {
	d := &Draft{Symptoms: "Headache", Date: "2023-06-15", Time: "10 AM", HospitalID: intPtr(2)}
	d.Apply(extract.Fields{Symptoms: "Fever", Date: "2023-07-01", Time: "3 PM", HospitalID: intPtr(9)})

	if d.Symptoms != "Headache" || d.Date != "2023-06-15" || d.Time != "10 AM" {
		t.Fatalf("collected fields were overwritten: %+v", d)
	}
	if *d.HospitalID != 2 {
		t.Fatalf("hospital id overwritten: %d", *d.HospitalID)
	}
}

func TestApplyCopiesHospitalIDByValue(t *testing.T) {
	id := 5
	d := &Draft{}
	d.Apply(extract.Fields{HospitalID: &id})
	id = 99
	if *d.HospitalID != 5 {
		t.Fatalf("draft aliases the caller's pointer: %d", *d.HospitalID)
	}
}

func TestCrossValidateText(t *testing.T) {
	a, b := "first", "second"
	if got := crossValidateText(&a, &b); got == nil || *got != "first" {
		t.Fatalf("both set: got %v, want first", got)
	}
	if got := crossValidateText(nil, &b); got == nil || *got != "second" {
		t.Fatalf("first nil: got %v, want second", got)
	}
	if got := crossValidateText(&a, nil); got == nil || *got != "first" {
		t.Fatalf("second nil: got %v, want first", got)
	}
	if got := crossValidateText(nil, nil); got != nil {
		t.Fatalf("both nil: got %v, want nil", got)
	}
}
