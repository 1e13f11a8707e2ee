// Package telephony speaks Twilio: it renders TwiML for webhook replies,
// verifies webhook signatures, and places calls and SMS through the REST
// API.
package telephony

import (
	"encoding/xml"
	"fmt"
	"time"
)

// Say speaks text to the caller.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Gather listens for caller speech and posts the transcript to Action.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr,omitempty"`
	Action        string   `xml:"action,attr,omitempty"`
	Method        string   `xml:"method,attr,omitempty"`
	Timeout       int      `xml:"timeout,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	SpeechModel   string   `xml:"speechModel,attr,omitempty"`
	Enhanced      bool     `xml:"enhanced,attr,omitempty"`
	Say           []Say
}

// Redirect re-enters the webhook flow at another URL.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// VoiceResponse is the TwiML document returned to Twilio. Element order
// follows field order: an optional gather first, then plain speech, then a
// redirect or hangup.
type VoiceResponse struct {
	XMLName  xml.Name `xml:"Response"`
	Gather   *Gather
	Say      []Say
	Redirect *Redirect
	Hangup   *Hangup
}

const sayVoice = "Polly.Joanna"

// SpeakAndGather prompts the caller and listens for speech, posting the
// transcript to action. If the caller stays silent, goodbye is spoken and
// the call ends.
func SpeakAndGather(prompt, action, goodbye string, timeout time.Duration) *VoiceResponse {
	resp := &VoiceResponse{
		Gather: &Gather{
			Input:         "speech",
			Action:        action,
			Method:        "POST",
			Timeout:       int(timeout.Seconds()),
			SpeechTimeout: "auto",
			SpeechModel:   "phone_call",
			Enhanced:      true,
			Say:           []Say{{Voice: sayVoice, Text: prompt}},
		},
	}
	if goodbye != "" {
		resp.Say = []Say{{Voice: sayVoice, Text: goodbye}}
		resp.Hangup = &Hangup{}
	}
	return resp
}

// SpeakAndHangup says the text and ends the call.
func SpeakAndHangup(text string) *VoiceResponse {
	return &VoiceResponse{
		Say:    []Say{{Voice: sayVoice, Text: text}},
		Hangup: &Hangup{},
	}
}

// SpeakAndRedirect says the text and re-enters the flow at url.
func SpeakAndRedirect(text, url string) *VoiceResponse {
	return &VoiceResponse{
		Say:      []Say{{Voice: sayVoice, Text: text}},
		Redirect: &Redirect{Method: "POST", URL: url},
	}
}

// Render serializes the document with the XML declaration Twilio expects.
func (r *VoiceResponse) Render() (string, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("telephony: render twiml: %w", err)
	}
	return xml.Header + string(body), nil
}
