package conversation

import (
	"fmt"

	"github.com/medicare-voice/intake/internal/extract"
)

// Field names for the five pieces of information a booking needs.
const (
	FieldPatient    = "patient"
	FieldSymptoms   = "symptoms"
	FieldDate       = "date"
	FieldTime       = "time"
	FieldHospitalID = "hospital_id"
)

// requiredFields is the collection order used when prompting for what is
// still missing.
var requiredFields = []string{FieldPatient, FieldSymptoms, FieldDate, FieldTime, FieldHospitalID}

// Draft accumulates appointment details across turns of a call.
type Draft struct {
	Patient    string
	Symptoms   string
	Date       string
	Time       string
	HospitalID *int

	Phone     string
	Latitude  float64
	Longitude float64
	Alert     []string
}

// Missing lists the required fields not yet collected, in prompt order.
func (d *Draft) Missing() []string {
	var missing []string
	for _, field := range requiredFields {
		switch field {
		case FieldPatient:
			if d.Patient == "" {
				missing = append(missing, field)
			}
		case FieldSymptoms:
			if d.Symptoms == "" {
				missing = append(missing, field)
			}
		case FieldDate:
			if d.Date == "" {
				missing = append(missing, field)
			}
		case FieldTime:
			if d.Time == "" {
				missing = append(missing, field)
			}
		case FieldHospitalID:
			if d.HospitalID == nil {
				missing = append(missing, field)
			}
		}
	}
	return missing
}

// Complete reports whether every required field has a value.
func (d *Draft) Complete() bool {
	return len(d.Missing()) == 0
}

// Known returns the already-collected fields in the extractor's shape, so
// residual heuristics can strip them from a transcript.
func (d *Draft) Known() extract.Fields {
	return extract.Fields{
		Patient:    d.Patient,
		Symptoms:   d.Symptoms,
		Date:       d.Date,
		Time:       d.Time,
		HospitalID: d.HospitalID,
	}
}

// Summary renders the draft as a single spoken clause.
func (d *Draft) Summary(hospitalName string) string {
	return fmt.Sprintf("an appointment for %s at %s on %s at %s regarding %s",
		d.Patient, hospitalName, d.Date, d.Time, d.Symptoms)
}
