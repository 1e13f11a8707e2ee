package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// VoiceWebhook is one inbound request from Twilio's voice webhook flow.
type VoiceWebhook struct {
	CallSID      string
	AccountSID   string
	CallStatus   string
	From         string
	To           string
	SpeechResult string
	// Confidence is the recognizer's score in [0,1]. It is -1 when Twilio
	// sent no Confidence parameter, which happens on non-gather callbacks.
	Confidence float64
}

// ParseVoiceWebhook reads the form-encoded voice webhook body.
func ParseVoiceWebhook(r *http.Request) (*VoiceWebhook, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("telephony: parse webhook form: %w", err)
	}
	hook := &VoiceWebhook{
		CallSID:      r.FormValue("CallSid"),
		AccountSID:   r.FormValue("AccountSid"),
		CallStatus:   r.FormValue("CallStatus"),
		From:         r.FormValue("From"),
		To:           r.FormValue("To"),
		SpeechResult: r.FormValue("SpeechResult"),
		Confidence:   -1,
	}
	if raw := r.FormValue("Confidence"); raw != "" {
		if c, err := strconv.ParseFloat(raw, 64); err == nil {
			hook.Confidence = c
		}
	}
	return hook, nil
}

// LowConfidence reports whether the transcript should be distrusted and the
// caller re-prompted. Requests without a confidence score are trusted.
func (w *VoiceWebhook) LowConfidence(threshold float64) bool {
	if w.Confidence < 0 {
		return false
	}
	return w.SpeechResult != "" && w.Confidence < threshold
}

// ValidateSignature checks the X-Twilio-Signature header against the auth
// token. webhookURL must be the full public URL Twilio was configured with.
func ValidateSignature(r *http.Request, authToken, webhookURL string) bool {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	expected := computeSignature(buildSignaturePayload(webhookURL, r.PostForm), authToken)
	return hmac.Equal([]byte(signature), []byte(expected))
}

// buildSignaturePayload concatenates the URL with the sorted form params,
// per Twilio's signing scheme.
func buildSignaturePayload(url string, params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)
	for _, key := range keys {
		for _, value := range params[key] {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}
	return payload.String()
}

func computeSignature(data, key string) string {
	h := hmac.New(sha1.New, []byte(key))
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
