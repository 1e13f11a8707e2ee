package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/medicare-voice/intake/pkg/logging"
)

var clientTracer = otel.Tracer("intake.internal.telephony.client")

const apiBase = "https://api.twilio.com/2010-04-01"

// Client talks to Twilio's REST API for outbound calls and SMS.
type Client struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient builds a REST client with sane defaults.
func NewClient(accountSID, authToken, from string, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    apiBase,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// PlaceCall initiates an outbound call. answerURL receives the initial voice
// webhook and statusURL the lifecycle callbacks. Returns the call SID.
func (c *Client) PlaceCall(ctx context.Context, to, answerURL, statusURL string) (string, error) {
	if to == "" {
		return "", errors.New("telephony: to required")
	}
	if answerURL == "" {
		return "", errors.New("telephony: answer url required")
	}

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", c.from)
	payload.Set("Url", answerURL)
	payload.Set("Method", "POST")
	if statusURL != "" {
		payload.Set("StatusCallback", statusURL)
		payload.Set("StatusCallbackMethod", "POST")
		// The Calls API only accepts these four event names; terminal
		// outcomes like busy or no-answer arrive as the CallStatus of the
		// completed event.
		for _, event := range []string{"initiated", "ringing", "answered", "completed"} {
			payload.Add("StatusCallbackEvent", event)
		}
	}

	ctx, span := clientTracer.Start(ctx, "telephony.place_call")
	defer span.End()
	span.SetAttributes(attribute.String("intake.to", to))

	sid, err := c.post(ctx, fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, c.accountSID), payload)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	c.logger.Info("outbound call placed", "to", to, "call_sid", sid)
	return sid, nil
}

// SendSMS dispatches a single text message, returning the message SID.
func (c *Client) SendSMS(ctx context.Context, to, body string) (string, error) {
	if to == "" {
		return "", errors.New("telephony: to required")
	}
	if strings.TrimSpace(body) == "" {
		return "", errors.New("telephony: body required")
	}

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", c.from)
	payload.Set("Body", body)

	ctx, span := clientTracer.Start(ctx, "telephony.send_sms")
	defer span.End()
	span.SetAttributes(attribute.String("intake.to", to))

	sid, err := c.post(ctx, fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, c.accountSID), payload)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	c.logger.Info("sms sent", "to", to, "message_sid", sid)
	return sid, nil
}

// post sends one form-encoded request, retrying transient failures up to
// three attempts. Non-rate-limit 4xx responses are not retried.
func (c *Client) post(ctx context.Context, endpoint string, payload url.Values) (string, error) {
	if c.accountSID == "" || c.authToken == "" {
		return "", errors.New("telephony: twilio credentials missing")
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			return "", err
		}
		req.SetBasicAuth(c.accountSID, c.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				var parsed struct {
					SID string `json:"sid"`
				}
				if err := json.Unmarshal(body, &parsed); err == nil {
					return parsed.SID, nil
				}
				return "", nil
			}
			lastErr = fmt.Errorf("telephony: request failed: %s", formatAPIError(resp.StatusCode, body))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
				break
			}
		}

		if attempt < 3 {
			time.Sleep(time.Duration(200+rand.Intn(300)) * time.Millisecond)
		}
	}
	return "", lastErr
}

type apiError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatAPIError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed apiError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
