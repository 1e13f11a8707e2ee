package conversation

import (
	"fmt"
	"strings"
)

// extractionSystemPrompt instructs the backend to emit strict JSON with the
// five appointment fields, nulls permitted.
const extractionSystemPrompt = `You are an AI assistant for a healthcare appointment booking system.
Extract ONLY the following information from the user's input and conversation history:
- patient: The patient's full name (only the person's name, no titles or descriptions)
- symptoms: The reason for the appointment or symptoms
- date: The appointment date (in format YYYY-MM-DD)
- time: The appointment time (e.g., "10:00 AM")
- hospitalId: The ID of the hospital as an integer number

IMPORTANT INSTRUCTIONS:
1. Respond in JSON format with these fields. Use null for missing fields.
2. For hospitalId, extract ONLY the numeric ID value. Return it as a number, not a string.
3. For patient name, extract ONLY the person's name. Do not include words like "calling" or "speaking".
4. If you're uncertain about any field, set it to null rather than guessing.
5. Do NOT extract any other fields. The phone number is captured automatically.
6. For date, convert any date formats to YYYY-MM-DD.
7. For time, standardize to a format like "10:00 AM" or "2:30 PM".

EXAMPLES:
Input: "My name is John Smith, I need an appointment for hospital 3 on 2023-05-15 at 10:00 AM for headache"
Output: {"patient": "John Smith", "hospitalId": 3, "date": "2023-05-15", "time": "10:00 AM", "symptoms": "headache"}

Input: "I'm Sarah Johnson calling"
Output: {"patient": "Sarah Johnson", "hospitalId": null, "date": null, "time": null, "symptoms": null}

Input: "hospital id is 5"
Output: {"patient": null, "hospitalId": 5, "date": null, "time": null, "symptoms": null}`

// verdictSystemPrompt classifies a confirmation-stage utterance.
const verdictSystemPrompt = `You are an AI assistant for a healthcare appointment booking system.
Analyze the user's response to determine if they are confirming, correcting, or canceling.
Respond with a JSON object that includes a 'response_type' field with one of these values:
- 'confirm' if the user is confirming the appointment
- 'correct' if the user wants to make corrections
- 'cancel' if the user wants to cancel
- 'unclear' if the user's intent is unclear`

// summarySystemPrompt produces the spoken confirmation recap.
const summarySystemPrompt = `You are an AI assistant for a healthcare appointment booking system.
Generate a detailed confirmation message that summarizes all appointment details.
Confirm the patient's name, symptoms, date, time, and hospital name.
Be conversational but clear, and ask for confirmation from the patient.`

// Spoken prompt templates for the collection stage.
const (
	welcomeGreeting = "Hello! This is Medicare's appointment booking system. I need to collect some specific information to book your appointment."

	welcomeInstructions = "Please clearly state your full name, hospital ID, symptoms, appointment date, and appointment time. " +
		"For example, say: My name is John Smith, hospital ID 1, symptoms are headache, date 2023-06-15, time 10:00 AM."

	genericApology = "I'm sorry, I didn't understand that. Could you please try again?"

	unclearVerdictPrompt = "I'm sorry, I didn't understand your response. Please say 'yes' to confirm the appointment, " +
		"'no' to make changes, or 'cancel' to cancel."

	correctionPrompt = "I understand you want to make changes. What would you like to update about your appointment?"

	cancelledGoodbye = "I understand you want to cancel. Your appointment has not been booked. Thank you for calling Medicare."

	bookingFailedApology = "I'm sorry, there was a problem creating your appointment. Please try again later or call our office directly."

	lostSessionPrompt = "I'm sorry, we seem to have lost your appointment information. Let's start over. " +
		"What appointment would you like to book?"
)

// missingFieldPrompts are the targeted follow-ups used when exactly one
// required field is absent.
var missingFieldPrompts = map[string]string{
	FieldPatient:    "I still need your full name. Please clearly say: My name is followed by your full name.",
	FieldHospitalID: "I need the hospital ID number. Please clearly say: Hospital ID followed by a number between 1 and 10.",
	FieldSymptoms:   "I need to know why you're booking this appointment. Please clearly say: My symptoms are, followed by your health concern.",
	FieldDate:       "I need the date for your appointment. Please clearly say: The date is, followed by a date like 2023-06-15.",
	FieldTime:       "I need the time for your appointment. Please clearly say: The time is, followed by a time like 10:00 AM.",
}

// followUpPrompt builds the next clarifying question for the given missing
// fields.
func followUpPrompt(missing []string) string {
	if len(missing) == 1 {
		if p, ok := missingFieldPrompts[missing[0]]; ok {
			return p
		}
	}
	if len(missing) > 1 {
		return fmt.Sprintf("I still need your %s and %s. Please provide this information.",
			strings.Join(missing[:len(missing)-1], ", "), missing[len(missing)-1])
	}
	return "Could you please provide more details about your appointment?"
}

func hospitalNotFoundPrompt(id int) string {
	return fmt.Sprintf("I'm sorry, the hospital with ID %d doesn't exist in our system. "+
		"Please say a different hospital ID between 1 and 10.", id)
}

func slotUnavailablePrompt(timeText, dateText string) string {
	return fmt.Sprintf("I'm sorry, but the time slot at %s on %s is fully booked. "+
		"Please suggest a different time.", timeText, dateText)
}

func bookedFarewell(appointmentID int64) string {
	return fmt.Sprintf("Great! Your appointment has been confirmed. Your appointment ID is %d. "+
		"I've also sent you a text message with the details. "+
		"Thank you for using Medicare's appointment booking service!", appointmentID)
}

// confirmationSMS is the text-message body sent after a successful booking.
func confirmationSMS(d *Draft, hospitalName string, appointmentID int64) string {
	return fmt.Sprintf("Medicare Appointment Confirmation\nPatient: %s\nDate: %s\nTime: %s\nHospital: %s\nSymptoms: %s\nAppointment ID: %d",
		d.Patient, d.Date, d.Time, hospitalName, d.Symptoms, appointmentID)
}

func knownPatientGreeting(name string) string {
	return fmt.Sprintf("Welcome back, %s! %s", name, welcomeInstructions)
}
