// Package handlers exposes the HTTP surface: the Twilio voice webhook flow,
// outbound call initiation, and service health endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/medicare-voice/intake/internal/config"
	"github.com/medicare-voice/intake/internal/conversation"
	"github.com/medicare-voice/intake/internal/observability/metrics"
	"github.com/medicare-voice/intake/internal/telephony"
	"github.com/medicare-voice/intake/pkg/logging"
)

// CallPlacer starts outbound calls. Implemented by telephony.Client.
type CallPlacer interface {
	PlaceCall(ctx context.Context, to, answerURL, statusURL string) (string, error)
}

const (
	welcomePath      = "/api/welcome"
	conversationPath = "/api/conversation"
	confirmPath      = "/api/confirm"
	callStatusPath   = "/api/call-status"

	retryPrompt   = "I didn't quite catch that. Could you please repeat?"
	noInputGoodby = "I didn't hear anything. Please call back when you're ready to book an appointment."
)

// VoiceHandler serves the Twilio webhook flow for appointment intake calls.
type VoiceHandler struct {
	engine  *conversation.Engine
	placer  CallPlacer
	cfg     *config.Config
	metrics *metrics.IntakeMetrics
	logger  *logging.Logger
}

// NewVoiceHandler wires the handler. placer and m may be nil.
func NewVoiceHandler(engine *conversation.Engine, placer CallPlacer, cfg *config.Config, m *metrics.IntakeMetrics, logger *logging.Logger) *VoiceHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &VoiceHandler{engine: engine, placer: placer, cfg: cfg, metrics: m, logger: logger}
}

type initiateCallRequest struct {
	Phone string `json:"phone"`
}

type initiateCallResponse struct {
	CallSID string `json:"call_sid"`
	To      string `json:"to"`
}

// InitiateCall places an outbound intake call to the given phone number.
func (h *VoiceHandler) InitiateCall(w http.ResponseWriter, r *http.Request) {
	if h.placer == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "outbound calling is not configured")
		return
	}

	var req initiateCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	phone, ok := NormalizePhone(req.Phone)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "phone must be a valid number")
		return
	}

	sid, err := h.placer.PlaceCall(r.Context(), phone,
		h.absoluteURL(welcomePath), h.absoluteURL(callStatusPath))
	if err != nil {
		h.logger.Error("outbound call failed", "error", err, "to", phone)
		writeJSONError(w, http.StatusBadGateway, "failed to place call")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(initiateCallResponse{CallSID: sid, To: phone})
}

// Welcome answers the initial voice webhook and greets the caller.
func (h *VoiceHandler) Welcome(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveWebhookLatency(welcomePath, time.Since(start).Seconds()) }()

	hook, ok := h.parseAndVerify(w, r, welcomePath)
	if !ok {
		return
	}
	// On an outbound intake call the patient is the To party; From is our
	// own number.
	reply := h.engine.Welcome(r.Context(), hook.CallSID, hook.To)
	h.writeReply(w, reply)
}

// Conversation handles one collection-phase utterance.
func (h *VoiceHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveWebhookLatency(conversationPath, time.Since(start).Seconds()) }()

	hook, ok := h.parseAndVerify(w, r, conversationPath)
	if !ok {
		return
	}
	if reprompted := h.repromptIfUnusable(w, hook, conversationPath); reprompted {
		return
	}
	reply := h.engine.ProcessTurn(r.Context(), hook.CallSID, hook.To, hook.SpeechResult)
	h.writeReply(w, reply)
}

// Confirm handles the caller's answer to the booking recap.
func (h *VoiceHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { h.metrics.ObserveWebhookLatency(confirmPath, time.Since(start).Seconds()) }()

	hook, ok := h.parseAndVerify(w, r, confirmPath)
	if !ok {
		return
	}
	if reprompted := h.repromptIfUnusable(w, hook, confirmPath); reprompted {
		return
	}
	reply := h.engine.ProcessConfirmation(r.Context(), hook.CallSID, hook.To, hook.SpeechResult)
	h.writeReply(w, reply)
}

// CallStatus receives lifecycle callbacks and tears down finished sessions.
// Twilio retries non-2xx responses, so this always returns 200.
func (h *VoiceHandler) CallStatus(w http.ResponseWriter, r *http.Request) {
	hook, err := telephony.ParseVoiceWebhook(r)
	if err != nil {
		h.logger.Warn("status callback unparseable", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}
	h.engine.EndCall(hook.CallSID, hook.CallStatus)
	w.WriteHeader(http.StatusOK)
}

// Health is the liveness endpoint.
func (h *VoiceHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Status reports a redacted configuration snapshot.
func (h *VoiceHandler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":           "ok",
		"env":              h.cfg.Env,
		"twilio_account":   redact(h.cfg.TwilioAccountSID),
		"model":            h.cfg.GeminiModel,
		"slot_capacity":    h.cfg.SlotCapacity,
		"outbound_calling": h.placer != nil,
	})
}

// parseAndVerify reads the webhook body and, when an auth token is
// configured, enforces Twilio's request signature.
func (h *VoiceHandler) parseAndVerify(w http.ResponseWriter, r *http.Request, path string) (*telephony.VoiceWebhook, bool) {
	if h.cfg.TwilioAuthToken != "" {
		if !telephony.ValidateSignature(r, h.cfg.TwilioAuthToken, h.absoluteURL(path)) {
			h.logger.Warn("webhook signature rejected", "path", path, "remote_ip", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return nil, false
		}
	}
	hook, err := telephony.ParseVoiceWebhook(r)
	if err != nil {
		h.logger.Error("webhook parse failed", "error", err, "path", path)
		h.writeTwiML(w, telephony.SpeakAndHangup("I'm sorry, we're experiencing technical difficulties. Please try again later."))
		return nil, false
	}
	return hook, true
}

// repromptIfUnusable re-asks when the recognizer returned nothing or scored
// the transcript below the confidence threshold.
func (h *VoiceHandler) repromptIfUnusable(w http.ResponseWriter, hook *telephony.VoiceWebhook, path string) bool {
	if strings.TrimSpace(hook.SpeechResult) == "" || hook.LowConfidence(h.cfg.SpeechConfidenceThreshold) {
		h.metrics.Turn("reprompt")
		h.writeTwiML(w, telephony.SpeakAndGather(retryPrompt, path, noInputGoodby, h.cfg.GatherTimeout))
		return true
	}
	return false
}

func (h *VoiceHandler) writeReply(w http.ResponseWriter, reply conversation.Reply) {
	switch reply.Action {
	case conversation.ActionGatherConversation:
		h.writeTwiML(w, telephony.SpeakAndGather(reply.Text, conversationPath, noInputGoodby, h.cfg.GatherTimeout))
	case conversation.ActionGatherConfirm:
		h.writeTwiML(w, telephony.SpeakAndGather(reply.Text, confirmPath, noInputGoodby, h.cfg.GatherTimeout))
	default:
		h.writeTwiML(w, telephony.SpeakAndHangup(reply.Text))
	}
}

func (h *VoiceHandler) writeTwiML(w http.ResponseWriter, resp *telephony.VoiceResponse) {
	body, err := resp.Render()
	if err != nil {
		h.logger.Error("twiml render failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Write([]byte(body))
}

// absoluteURL joins the configured public base with a webhook path. Without
// a base the relative path is returned, which Twilio resolves against the
// current webhook URL.
func (h *VoiceHandler) absoluteURL(path string) string {
	base := strings.TrimRight(h.cfg.PublicBaseURL, "/")
	if base == "" {
		return path
	}
	return base + path
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

var nonDigitRE = regexp.MustCompile(`[^\d+]`)

// NormalizePhone renders user input as E.164. Ten-digit numbers are assumed
// to be US.
func NormalizePhone(raw string) (string, bool) {
	cleaned := nonDigitRE.ReplaceAllString(strings.TrimSpace(raw), "")
	if cleaned == "" {
		return "", false
	}
	if strings.HasPrefix(cleaned, "+") {
		digits := strings.TrimPrefix(cleaned, "+")
		if len(digits) < 10 || len(digits) > 15 || strings.Contains(digits, "+") {
			return "", false
		}
		return cleaned, true
	}
	if strings.Contains(cleaned, "+") {
		return "", false
	}
	switch {
	case len(cleaned) == 10:
		return "+1" + cleaned, true
	case len(cleaned) == 11 && strings.HasPrefix(cleaned, "1"):
		return "+" + cleaned, true
	case len(cleaned) >= 12 && len(cleaned) <= 15:
		return "+" + cleaned, true
	}
	return "", false
}

// redact keeps the first six characters of a credential for diagnostics.
func redact(s string) string {
	if len(s) <= 6 {
		return s
	}
	return s[:6] + "..."
}
