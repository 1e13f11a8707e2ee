package conversation

import (
	"reflect"
	"testing"

	"github.com/medicare-voice/intake/internal/extract"
)

func intPtr(v int) *int { return &v }

func TestDraftMissingOrder(t *testing.T) {
	d := &Draft{}
	want := []string{FieldPatient, FieldSymptoms, FieldDate, FieldTime, FieldHospitalID}
	if got := d.Missing(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Missing() = %v, want %v", got, want)
	}

	d.Patient = "John Smith"
	d.Date = "2023-06-15"
	want = []string{FieldSymptoms, FieldTime, FieldHospitalID}
	if got := d.Missing(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Missing() = %v, want %v", got, want)
	}
}

func TestDraftComplete(t *testing.T) {
	d := &Draft{
		Patient:  "John Smith",
		Symptoms: "Headache",
		Date:     "2023-06-15",
		Time:     "10:00 AM",
	}
	if d.Complete() {
		t.Fatal("draft without hospital id reported complete")
	}
	d.HospitalID = intPtr(3)
	if !d.Complete() {
		t.Fatalf("complete draft reported missing: %v", d.Missing())
	}
}

func TestDraftKnown(t *testing.T) {
	d := &Draft{Patient: "Jane Doe", Time: "2 PM", HospitalID: intPtr(7)}
	known := d.Known()
	if known.Patient != "Jane Doe" || known.Time != "2 PM" {
		t.Fatalf("Known() lost text fields: %+v", known)
	}
	if known.HospitalID == nil || *known.HospitalID != 7 {
		t.Fatalf("Known() lost hospital id: %+v", known.HospitalID)
	}
}

func TestDraftSummary(t *testing.T) {
	d := &Draft{
		Patient:    "John Smith",
		Symptoms:   "fever and cough",
		Date:       "2023-06-15",
		Time:       "10:00 AM",
		HospitalID: intPtr(1),
	}
	got := d.Summary("Medicare General Hospital")
	want := "an appointment for John Smith at Medicare General Hospital on 2023-06-15 at 10:00 AM regarding fever and cough"
	if got != want {
		t.Fatalf("Summary() = %q, want %q", got, want)
	}
}

func TestDraftApplyDeterministicFields(t *testing.T) {
	d := &Draft{}
	d.Apply(extract.Fields{Patient: "John", Date: "2023-06-15"})
	d.Apply(extract.Fields{Patient: "Johnny", Symptoms: "Back pain", HospitalID: intPtr(4)})

	if d.Patient != "Johnny" {
		t.Fatalf("longer name should win, got %q", d.Patient)
	}
	if d.Date != "2023-06-15" || d.Symptoms != "Back pain" {
		t.Fatalf("unexpected draft: %+v", d)
	}
	if d.HospitalID == nil || *d.HospitalID != 4 {
		t.Fatalf("hospital id not applied: %+v", d.HospitalID)
	}
}
