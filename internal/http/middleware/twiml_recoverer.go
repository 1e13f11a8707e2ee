package middleware

import (
	"encoding/xml"
	"net/http"
	"runtime/debug"

	"github.com/medicare-voice/intake/pkg/logging"
)

// twimlApology is what a caller hears if a voice webhook handler panics. A
// raw 500 would leave Twilio playing its generic error message mid-call.
const twimlApology = xml.Header +
	`<Response><Say voice="Polly.Joanna">I'm sorry, we're experiencing technical difficulties. Please try again later.</Say><Hangup></Hangup></Response>`

// TwiMLRecoverer converts panics in voice webhook handlers into a spoken
// apology instead of a bare 500.
func TwiMLRecoverer(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("voice handler panicked",
						"path", r.URL.Path,
						"panic", rec,
						"stack", string(debug.Stack()),
					)
					w.Header().Set("Content-Type", "application/xml")
					w.WriteHeader(http.StatusOK)
					w.Write([]byte(twimlApology))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
