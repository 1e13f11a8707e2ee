package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/medicare-voice/intake/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("AC123", "token", "+15550001111", logging.Default())
	c.baseURL = srv.URL
	return c, srv
}

func TestPlaceCall(t *testing.T) {
	var gotForm map[string][]string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/Accounts/AC123/Calls.json") {
			t.Errorf("path = %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "token" {
			t.Errorf("basic auth = %q %q %v", user, pass, ok)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotForm = r.PostForm
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid": "CA999", "status": "queued"}`))
	})

	sid, err := c.PlaceCall(context.Background(), "+15551234567", "https://example.com/api/welcome", "https://example.com/api/call-status")
	if err != nil {
		t.Fatalf("place call: %v", err)
	}
	if sid != "CA999" {
		t.Fatalf("sid = %q", sid)
	}
	if got := gotForm["Url"]; len(got) != 1 || got[0] != "https://example.com/api/welcome" {
		t.Fatalf("Url = %v", got)
	}
	if got := gotForm["StatusCallback"]; len(got) != 1 {
		t.Fatalf("StatusCallback = %v", got)
	}
	// Only the event names the Calls API accepts; busy/failed/no-answer
	// arrive as statuses under the completed event.
	wantEvents := []string{"initiated", "ringing", "answered", "completed"}
	got := gotForm["StatusCallbackEvent"]
	if len(got) != len(wantEvents) {
		t.Fatalf("StatusCallbackEvent = %v", got)
	}
	for i, event := range wantEvents {
		if got[i] != event {
			t.Fatalf("StatusCallbackEvent[%d] = %q, want %q", i, got[i], event)
		}
	}
	if got := gotForm["From"]; len(got) != 1 || got[0] != "+15550001111" {
		t.Fatalf("From = %v", got)
	}
}

func TestPlaceCallValidation(t *testing.T) {
	c := NewClient("AC123", "token", "+15550001111", nil)
	if _, err := c.PlaceCall(context.Background(), "", "https://example.com/cb", ""); err == nil {
		t.Fatal("expected error for missing to")
	}
	if _, err := c.PlaceCall(context.Background(), "+15551234567", "", ""); err == nil {
		t.Fatal("expected error for missing answer url")
	}
}

func TestSendSMS(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/Accounts/AC123/Messages.json") {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid": "SM42"}`))
	})

	sid, err := c.SendSMS(context.Background(), "+15551234567", "Medicare Appointment Confirmation")
	if err != nil {
		t.Fatalf("send sms: %v", err)
	}
	if sid != "SM42" {
		t.Fatalf("sid = %q", sid)
	}
}

func TestSendSMSMissingCredentials(t *testing.T) {
	c := NewClient("", "", "+15550001111", nil)
	if _, err := c.SendSMS(context.Background(), "+15551234567", "hi"); err == nil {
		t.Fatal("expected credentials error")
	}
}

func TestPostRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"sid": "SM42"}`))
	})

	sid, err := c.SendSMS(context.Background(), "+15551234567", "hello")
	if err != nil {
		t.Fatalf("send sms: %v", err)
	}
	if sid != "SM42" || calls.Load() != 3 {
		t.Fatalf("sid = %q calls = %d", sid, calls.Load())
	}
}

func TestPostDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code": 21211, "message": "Invalid phone number", "status": 400}`))
	})

	_, err := c.SendSMS(context.Background(), "not-a-number", "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "21211") {
		t.Fatalf("error = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}
