package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/medicare-voice/intake/internal/extract"
	"github.com/medicare-voice/intake/pkg/logging"
)

// Verdict classifies a confirmation-stage utterance.
type Verdict string

const (
	VerdictConfirm Verdict = "confirm"
	VerdictCorrect Verdict = "correct"
	VerdictCancel  Verdict = "cancel"
	VerdictUnclear Verdict = "unclear"
)

// LLMService wraps the model backend with the three prompts the intake flow
// needs: field extraction, confirmation summarization, and verdict
// classification. Every method fails soft: backend errors degrade to an
// empty update, a fallback sentence, or an unclear verdict.
type LLMService struct {
	client  LLMClient
	timeout time.Duration
	logger  *logging.Logger
}

// NewLLMService builds the service. A zero timeout disables the per-call
// bound.
func NewLLMService(client LLMClient, timeout time.Duration, logger *logging.Logger) *LLMService {
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMService{client: client, timeout: timeout, logger: logger}
}

// modelFields mirrors the extraction contract's JSON shape. HospitalID is
// raw because backends return it as a number, a quoted number, or worse.
type modelFields struct {
	Patient    *string         `json:"patient"`
	Symptoms   *string         `json:"symptoms"`
	Date       *string         `json:"date"`
	Time       *string         `json:"time"`
	HospitalID json.RawMessage `json:"hospitalId"`
}

// ExtractAppointmentData sends the transcript plus rolling history to the
// backend twice, cross-validates the responses field by field, and returns a
// partial update. Any failure yields an empty update.
func (s *LLMService) ExtractAppointmentData(ctx context.Context, transcript string, history []ChatMessage) extract.Fields {
	var combined strings.Builder
	for _, msg := range history {
		combined.WriteString(msg.Role)
		combined.WriteString(": ")
		combined.WriteString(msg.Content)
		combined.WriteString("\n")
	}
	userMessage := fmt.Sprintf("Conversation history:\n%s\nCurrent input: %s\n\nExtract the appointment information from the above conversation.",
		combined.String(), transcript)

	req := LLMRequest{
		System:      []string{extractionSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: userMessage}},
		Temperature: 0.2,
		MaxTokens:   1024,
		TopP:        0.9,
	}

	// Two independent calls; both must settle before reconciliation.
	var wg sync.WaitGroup
	responses := make([]string, 2)
	for i := range responses {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			responses[slot] = s.complete(ctx, req)
		}(i)
	}
	wg.Wait()

	first, okFirst := parseModelFields(responses[0])
	second, okSecond := parseModelFields(responses[1])

	switch {
	case okFirst && okSecond:
		return s.merge(crossValidate(first, second))
	case okFirst:
		return s.merge(first)
	case okSecond:
		return s.merge(second)
	}

	// Neither response was JSON: best-effort scrape of the raw text.
	if scraped, ok := scrapeFields(responses[0]); ok {
		s.logger.Info("extracted partial data from non-JSON response")
		return scraped
	}
	return extract.Fields{}
}

// complete issues one bounded backend call, returning "" on any error.
func (s *LLMService) complete(ctx context.Context, req LLMRequest) string {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	resp, err := s.client.Complete(ctx, req)
	if err != nil {
		s.logger.Warn("llm call failed", "error", err)
		return ""
	}
	return resp.Text
}

// crossValidate merges two parsed responses: agreement wins, otherwise the
// first non-null value.
func crossValidate(first, second modelFields) modelFields {
	return modelFields{
		Patient:    crossValidateText(first.Patient, second.Patient),
		Symptoms:   crossValidateText(first.Symptoms, second.Symptoms),
		Date:       crossValidateText(first.Date, second.Date),
		Time:       crossValidateText(first.Time, second.Time),
		HospitalID: crossValidateRaw(first.HospitalID, second.HospitalID),
	}
}

func crossValidateRaw(first, second json.RawMessage) json.RawMessage {
	if !rawIsNull(first) {
		return first
	}
	return second
}

func rawIsNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

// merge converts parsed model fields into the extractor update shape,
// applying the hospital-id digit fallback.
func (s *LLMService) merge(m modelFields) extract.Fields {
	f := extract.Fields{
		Patient:  derefTrimmed(m.Patient),
		Symptoms: derefTrimmed(m.Symptoms),
		Date:     derefTrimmed(m.Date),
		Time:     derefTrimmed(m.Time),
	}
	if id, ok := normalizeHospitalID(m.HospitalID); ok {
		f.HospitalID = &id
	}
	return f
}

func derefTrimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

var digitsRE = regexp.MustCompile(`\d+`)

// normalizeHospitalID accepts a JSON number, a numeric string, or any string
// containing digits.
func normalizeHospitalID(raw json.RawMessage) (int, bool) {
	if rawIsNull(raw) {
		return 0, false
	}
	var asInt int
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return asInt, true
	}
	var asFloat float64
	if err := json.Unmarshal(raw, &asFloat); err == nil {
		return int(asFloat), true
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		if id, convErr := strconv.Atoi(strings.TrimSpace(asString)); convErr == nil {
			return id, true
		}
		if digits := digitsRE.FindString(asString); digits != "" {
			if id, convErr := strconv.Atoi(digits); convErr == nil {
				return id, true
			}
		}
	}
	return 0, false
}

// jsonObjectRE pulls the first {...} block out of text that wraps JSON in
// prose or code fences.
var jsonObjectRE = regexp.MustCompile(`(?s)\{.*\}`)

func parseModelFields(text string) (modelFields, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return modelFields{}, false
	}
	var m modelFields
	if err := json.Unmarshal([]byte(text), &m); err == nil {
		return m, true
	}
	if block := jsonObjectRE.FindString(text); block != "" {
		if err := json.Unmarshal([]byte(block), &m); err == nil {
			return m, true
		}
	}
	return modelFields{}, false
}

var (
	scrapePatientRE  = regexp.MustCompile(`(?i)patient["\s:]+([^",\n}]+)`)
	scrapeHospitalRE = regexp.MustCompile(`(?i)hospital[_\s]*id["\s:]+(\d+)`)
)

// scrapeFields recovers patient and hospitalId from free text when JSON
// parsing failed entirely.
func scrapeFields(text string) (extract.Fields, bool) {
	var f extract.Fields
	found := false
	if m := scrapePatientRE.FindStringSubmatch(text); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" && !isPlaceholderName(name) {
			f.Patient = name
			found = true
		}
	}
	if m := scrapeHospitalRE.FindStringSubmatch(text); m != nil {
		if id, err := strconv.Atoi(m[1]); err == nil {
			f.HospitalID = &id
			found = true
		}
	}
	return f, found
}

// VerifyAppointmentDetails asks the backend for a conversational recap of
// the draft; on failure it falls back to a deterministic sentence.
func (s *LLMService) VerifyAppointmentDetails(ctx context.Context, d *Draft, hospitalName string) string {
	details, err := json.Marshal(map[string]any{
		"patient":       d.Patient,
		"symptoms":      d.Symptoms,
		"date":          d.Date,
		"time":          d.Time,
		"hospital_name": hospitalName,
	})
	if err == nil {
		req := LLMRequest{
			System: []string{summarySystemPrompt},
			Messages: []ChatMessage{{
				Role:    ChatRoleUser,
				Content: "I need to generate a confirmation message for a patient booking an appointment. Here are the appointment details: " + string(details),
			}},
			Temperature: 0.2,
			MaxTokens:   1024,
			TopP:        0.9,
		}
		if text := s.complete(ctx, req); text != "" {
			return text
		}
	}
	return fmt.Sprintf("I'd like to confirm %s. Is this correct?", d.Summary(hospitalName))
}

type verdictEnvelope struct {
	ResponseType string `json:"response_type"`
}

// AnalyzeUserResponse classifies the utterance heard during confirmation.
// Anything the backend cannot settle cleanly is unclear.
func (s *LLMService) AnalyzeUserResponse(ctx context.Context, transcript string) Verdict {
	req := LLMRequest{
		System: []string{verdictSystemPrompt},
		Messages: []ChatMessage{{
			Role:    ChatRoleUser,
			Content: fmt.Sprintf("Analyze this response to an appointment confirmation: '%s'", transcript),
		}},
		Temperature: 0.2,
		MaxTokens:   1024,
		TopP:        0.9,
	}

	text := s.complete(ctx, req)
	if text == "" {
		return VerdictUnclear
	}

	var env verdictEnvelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		if block := jsonObjectRE.FindString(text); block != "" {
			if err := json.Unmarshal([]byte(block), &env); err != nil {
				s.logger.Warn("verdict response was not JSON", "response", text)
				return VerdictUnclear
			}
		} else {
			s.logger.Warn("verdict response was not JSON", "response", text)
			return VerdictUnclear
		}
	}

	switch Verdict(strings.ToLower(strings.TrimSpace(env.ResponseType))) {
	case VerdictConfirm:
		return VerdictConfirm
	case VerdictCorrect:
		return VerdictCorrect
	case VerdictCancel:
		return VerdictCancel
	default:
		return VerdictUnclear
	}
}
