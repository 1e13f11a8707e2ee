package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/medicare-voice/intake/pkg/logging"
)

// stubLLMClient returns scripted responses. Extraction fires two calls
// concurrently, so everything is guarded by a mutex.
type stubLLMClient struct {
	mu        sync.Mutex
	responses []LLMResponse
	errs      []error
	requests  []LLMRequest
	calls     int
}

func (s *stubLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	idx := s.calls
	s.calls++
	if idx < len(s.errs) && s.errs[idx] != nil {
		return LLMResponse{}, s.errs[idx]
	}
	if len(s.responses) == 0 {
		return LLMResponse{}, errors.New("no scripted response")
	}
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

const extractionJSON = `{"patient": "John Smith", "symptoms": "severe headache", "date": "2023-06-15", "time": "10:00 AM", "hospitalId": 3}`

func TestExtractAppointmentDataParsesJSON(t *testing.T) {
	client := &stubLLMClient{responses: []LLMResponse{{Text: extractionJSON}}}
	svc := NewLLMService(client, time.Second, logging.Default())

	fields := svc.ExtractAppointmentData(context.Background(), "book me in", nil)

	if fields.Patient != "John Smith" {
		t.Fatalf("patient = %q", fields.Patient)
	}
	if fields.Symptoms != "severe headache" || fields.Date != "2023-06-15" || fields.Time != "10:00 AM" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
	if fields.HospitalID == nil || *fields.HospitalID != 3 {
		t.Fatalf("hospital id = %v", fields.HospitalID)
	}
	if client.calls != 2 {
		t.Fatalf("expected two backend calls, got %d", client.calls)
	}
}

func TestExtractAppointmentDataStripsCodeFence(t *testing.T) {
	fenced := "```json\n" + extractionJSON + "\n```"
	client := &stubLLMClient{responses: []LLMResponse{{Text: fenced}}}
	svc := NewLLMService(client, time.Second, logging.Default())

	fields := svc.ExtractAppointmentData(context.Background(), "book me in", nil)
	if fields.Patient != "John Smith" {
		t.Fatalf("fenced JSON not parsed: %+v", fields)
	}
}

func TestExtractAppointmentDataHospitalIDAsString(t *testing.T) {
	client := &stubLLMClient{responses: []LLMResponse{
		{Text: `{"patient": null, "symptoms": null, "date": null, "time": null, "hospitalId": "hospital 7"}`},
	}}
	svc := NewLLMService(client, time.Second, logging.Default())

	fields := svc.ExtractAppointmentData(context.Background(), "hospital seven", nil)
	if fields.HospitalID == nil || *fields.HospitalID != 7 {
		t.Fatalf("hospital id = %v", fields.HospitalID)
	}
	if fields.Patient != "" {
		t.Fatalf("null patient became %q", fields.Patient)
	}
}

func TestExtractAppointmentDataScrapesNonJSON(t *testing.T) {
	client := &stubLLMClient{responses: []LLMResponse{
		{Text: `The patient: Jane Doe, and the hospital_id: 4 were mentioned.`},
	}}
	svc := NewLLMService(client, time.Second, logging.Default())

	fields := svc.ExtractAppointmentData(context.Background(), "hello", nil)
	if fields.Patient != "Jane Doe" {
		t.Fatalf("scraped patient = %q", fields.Patient)
	}
	if fields.HospitalID == nil || *fields.HospitalID != 4 {
		t.Fatalf("scraped hospital id = %v", fields.HospitalID)
	}
}

func TestExtractAppointmentDataBackendFailureIsEmpty(t *testing.T) {
	client := &stubLLMClient{errs: []error{errors.New("boom"), errors.New("boom")}}
	svc := NewLLMService(client, time.Second, logging.Default())

	fields := svc.ExtractAppointmentData(context.Background(), "hello", nil)
	if fields.Patient != "" || fields.HospitalID != nil {
		t.Fatalf("expected empty fields, got %+v", fields)
	}
}

func TestExtractAppointmentDataIncludesHistory(t *testing.T) {
	client := &stubLLMClient{responses: []LLMResponse{{Text: extractionJSON}}}
	svc := NewLLMService(client, time.Second, logging.Default())

	history := []ChatMessage{
		{Role: ChatRoleAssistant, Content: "What is your name?"},
		{Role: ChatRoleUser, Content: "John"},
	}
	svc.ExtractAppointmentData(context.Background(), "it's John Smith actually", history)

	if len(client.requests) != 2 {
		t.Fatalf("expected two requests, got %d", len(client.requests))
	}
	body := client.requests[0].Messages[0].Content
	if !strings.Contains(body, "What is your name?") || !strings.Contains(body, "it's John Smith actually") {
		t.Fatalf("history missing from request: %q", body)
	}
	if client.requests[0].Temperature != 0.2 || client.requests[0].MaxTokens != 1024 {
		t.Fatalf("unexpected sampling params: %+v", client.requests[0])
	}
}

func TestAnalyzeUserResponseVerdicts(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Verdict
	}{
		{"confirm", `{"response_type": "confirm"}`, VerdictConfirm},
		{"correct", `{"response_type": "correct"}`, VerdictCorrect},
		{"cancel", `{"response_type": "cancel"}`, VerdictCancel},
		{"unclear", `{"response_type": "unclear"}`, VerdictUnclear},
		{"unknown value", `{"response_type": "maybe"}`, VerdictUnclear},
		{"prose wrapping", "Sure: {\"response_type\": \"confirm\"}", VerdictConfirm},
		{"not json", "yes definitely", VerdictUnclear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubLLMClient{responses: []LLMResponse{{Text: tt.text}}}
			svc := NewLLMService(client, time.Second, logging.Default())
			if got := svc.AnalyzeUserResponse(context.Background(), "yes"); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyzeUserResponseBackendFailure(t *testing.T) {
	client := &stubLLMClient{errs: []error{errors.New("boom")}}
	svc := NewLLMService(client, time.Second, logging.Default())
	if got := svc.AnalyzeUserResponse(context.Background(), "yes"); got != VerdictUnclear {
		t.Fatalf("got %q, want unclear", got)
	}
}

func TestVerifyAppointmentDetailsFallsBack(t *testing.T) {
	client := &stubLLMClient{errs: []error{errors.New("boom")}}
	svc := NewLLMService(client, time.Second, logging.Default())

	d := &Draft{
		Patient:    "John Smith",
		Symptoms:   "fever",
		Date:       "2023-06-15",
		Time:       "10:00 AM",
		HospitalID: intPtr(1),
	}
	got := svc.VerifyAppointmentDetails(context.Background(), d, "Medicare General Hospital")
	if !strings.Contains(got, "John Smith") || !strings.Contains(got, "Medicare General Hospital") {
		t.Fatalf("fallback summary missing details: %q", got)
	}
	if !strings.HasSuffix(got, "Is this correct?") {
		t.Fatalf("fallback summary should end with a question: %q", got)
	}
}

func TestVerifyAppointmentDetailsUsesBackend(t *testing.T) {
	client := &stubLLMClient{responses: []LLMResponse{
		{Text: "Just to confirm, John on the 15th at Medicare General. Correct?"},
	}}
	svc := NewLLMService(client, time.Second, logging.Default())

	d := &Draft{Patient: "John", Symptoms: "fever", Date: "2023-06-15", Time: "10:00 AM", HospitalID: intPtr(1)}
	got := svc.VerifyAppointmentDetails(context.Background(), d, "Medicare General Hospital")
	if !strings.Contains(got, "Just to confirm") {
		t.Fatalf("backend summary not used: %q", got)
	}
}
