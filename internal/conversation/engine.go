package conversation

import (
	"context"

	"github.com/medicare-voice/intake/internal/extract"
	"github.com/medicare-voice/intake/internal/observability/metrics"
	"github.com/medicare-voice/intake/pkg/logging"
)

// NextAction tells the telephony layer what to render after a turn.
type NextAction int

const (
	// ActionGatherConversation keeps listening and routes the next
	// utterance to the conversation endpoint.
	ActionGatherConversation NextAction = iota
	// ActionGatherConfirm keeps listening and routes the next utterance
	// to the confirmation endpoint.
	ActionGatherConfirm
	// ActionHangup speaks the text and ends the call.
	ActionHangup
)

// Reply is what the engine wants said to the caller, and where the dialogue
// goes next.
type Reply struct {
	Text   string
	Action NextAction
}

// SchedulingStore is the persistence surface the engine validates and books
// against.
type SchedulingStore interface {
	HospitalExists(ctx context.Context, id int) (bool, string, error)
	SlotAvailable(ctx context.Context, hospitalID int, date, timeOfDay string) (bool, error)
	CreateAppointment(ctx context.Context, d *Draft) (int64, error)
	FindPatientByPhone(ctx context.Context, phone string) (bool, string, error)
}

// Notifier delivers the booking confirmation out of band.
type Notifier interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// CallLogger archives finished turns. Implementations must tolerate a nil
// receiver.
type CallLogger interface {
	LogTurn(ctx context.Context, callID, role, content string)
}

// Engine drives one intake dialogue per call: collect the required fields,
// validate them against the store, confirm with the caller, then book.
type Engine struct {
	sessions *Registry
	llm      *LLMService
	store    SchedulingStore
	notifier Notifier
	callLog  CallLogger
	metrics  *metrics.IntakeMetrics
	logger   *logging.Logger

	maxHospitalID int
}

// NewEngine wires the dialogue engine. notifier, callLog and m may be nil.
func NewEngine(sessions *Registry, llm *LLMService, store SchedulingStore, notifier Notifier, callLog CallLogger, m *metrics.IntakeMetrics, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		sessions:      sessions,
		llm:           llm,
		store:         store,
		notifier:      notifier,
		callLog:       callLog,
		metrics:       m,
		logger:        logger,
		maxHospitalID: 10,
	}
}

// Welcome opens the dialogue for a call. phone is the recipient's number, the
// patient being called, never the platform's own line. Known callers are
// greeted by name.
func (e *Engine) Welcome(ctx context.Context, callID, phone string) Reply {
	sess := e.sessions.Start(callID, phone)
	sess.Lock()
	defer sess.Unlock()

	greeting := welcomeGreeting + " " + welcomeInstructions
	if phone != "" && e.store != nil {
		if known, name, err := e.store.FindPatientByPhone(ctx, phone); err == nil && known {
			greeting = knownPatientGreeting(name)
			sess.Draft.Patient = name
		}
	}
	sess.AppendTurn(ChatRoleAssistant, greeting)
	e.archive(ctx, callID, ChatRoleAssistant, greeting)
	return Reply{Text: greeting, Action: ActionGatherConversation}
}

// ProcessTurn ingests one caller utterance during collection: extract, merge
// into the draft, validate, and either ask for what is still missing or move
// to confirmation. phone is the recipient number from the webhook; it
// re-seeds sessions that were restarted without one.
func (e *Engine) ProcessTurn(ctx context.Context, callID, phone, transcript string) Reply {
	sess := e.sessions.Get(callID)
	if sess == nil {
		sess = e.sessions.Start(callID, phone)
		e.logger.Warn("turn for unknown call, restarting session", "call_id", callID)
		sess.Lock()
		defer sess.Unlock()
		sess.AppendTurn(ChatRoleUser, transcript)
		return Reply{Text: lostSessionPrompt, Action: ActionGatherConversation}
	}

	sess.Lock()
	defer sess.Unlock()

	sess.backfillPhone(phone)
	sess.AppendTurn(ChatRoleUser, transcript)
	e.archive(ctx, callID, ChatRoleUser, transcript)

	// Deterministic extraction first, then the model pass. Apply keeps the
	// longest name and never clobbers fields already collected.
	deterministic := extract.Extract(transcript)
	sess.Draft.Apply(deterministic)
	e.countFields("regex", deterministic)

	// The leftover-text heuristic is too greedy to run early; it only
	// fires once the symptom description is the sole missing field.
	if missing := sess.Draft.Missing(); len(missing) == 1 && missing[0] == FieldSymptoms {
		if residual := extract.ExtractResidualSymptoms(transcript, sess.Draft.Known()); residual != "" {
			sess.Draft.Symptoms = residual
			e.metrics.FieldExtracted("residual", FieldSymptoms)
		}
	}

	if e.llm != nil {
		modelFields := e.llm.ExtractAppointmentData(ctx, transcript, sess.History)
		sess.Draft.Apply(modelFields)
		e.countFields("model", modelFields)
	}

	reply := e.advance(ctx, sess)
	sess.AppendTurn(ChatRoleAssistant, reply.Text)
	e.archive(ctx, callID, ChatRoleAssistant, reply.Text)
	return reply
}

// advance inspects the draft and produces the next prompt. Callers must hold
// the session lock.
func (e *Engine) advance(ctx context.Context, sess *Session) Reply {
	if missing := sess.Draft.Missing(); len(missing) > 0 {
		e.metrics.Turn("incomplete")
		return Reply{Text: followUpPrompt(missing), Action: ActionGatherConversation}
	}

	hospitalID := *sess.Draft.HospitalID
	if hospitalID < 1 || hospitalID > e.maxHospitalID {
		sess.Draft.HospitalID = nil
		e.metrics.Turn("invalid_hospital")
		return Reply{Text: hospitalNotFoundPrompt(hospitalID), Action: ActionGatherConversation}
	}

	exists, hospitalName, err := e.store.HospitalExists(ctx, hospitalID)
	if err != nil {
		e.logger.Error("hospital lookup failed", "error", err, "call_id", sess.CallID)
		e.metrics.Turn("store_error")
		return Reply{Text: genericApology, Action: ActionGatherConversation}
	}
	if !exists {
		sess.Draft.HospitalID = nil
		e.metrics.Turn("invalid_hospital")
		return Reply{Text: hospitalNotFoundPrompt(hospitalID), Action: ActionGatherConversation}
	}

	available, err := e.store.SlotAvailable(ctx, hospitalID, sess.Draft.Date, sess.Draft.Time)
	if err != nil {
		e.logger.Error("slot lookup failed", "error", err, "call_id", sess.CallID)
		e.metrics.Turn("store_error")
		return Reply{Text: genericApology, Action: ActionGatherConversation}
	}
	if !available {
		unavailableTime := sess.Draft.Time
		sess.Draft.Time = ""
		e.metrics.Turn("slot_full")
		return Reply{Text: slotUnavailablePrompt(unavailableTime, sess.Draft.Date), Action: ActionGatherConversation}
	}

	sess.State = StateConfirming
	e.metrics.Turn("confirming")
	summary := e.summarize(ctx, &sess.Draft, hospitalName)
	return Reply{Text: summary, Action: ActionGatherConfirm}
}

func (e *Engine) summarize(ctx context.Context, d *Draft, hospitalName string) string {
	if e.llm != nil {
		return e.llm.VerifyAppointmentDetails(ctx, d, hospitalName)
	}
	return "I'd like to confirm " + d.Summary(hospitalName) + ". Is this correct?"
}

// ProcessConfirmation handles the caller's answer to the recap.
func (e *Engine) ProcessConfirmation(ctx context.Context, callID, phone, transcript string) Reply {
	sess := e.sessions.Get(callID)
	if sess == nil {
		sess = e.sessions.Start(callID, phone)
		sess.Lock()
		defer sess.Unlock()
		return Reply{Text: lostSessionPrompt, Action: ActionGatherConversation}
	}

	sess.Lock()
	defer sess.Unlock()

	sess.backfillPhone(phone)
	sess.AppendTurn(ChatRoleUser, transcript)
	e.archive(ctx, callID, ChatRoleUser, transcript)

	verdict := VerdictUnclear
	if e.llm != nil {
		verdict = e.llm.AnalyzeUserResponse(ctx, transcript)
	}

	var reply Reply
	switch verdict {
	case VerdictConfirm:
		reply = e.book(ctx, sess)
	case VerdictCorrect:
		sess.State = StateCollecting
		reply = Reply{Text: correctionPrompt, Action: ActionGatherConversation}
	case VerdictCancel:
		sess.State = StateCancelled
		sess.Draft = Draft{Phone: sess.Phone}
		e.metrics.Booking("cancelled")
		reply = Reply{Text: cancelledGoodbye, Action: ActionHangup}
	default:
		reply = Reply{Text: unclearVerdictPrompt, Action: ActionGatherConfirm}
	}

	sess.AppendTurn(ChatRoleAssistant, reply.Text)
	e.archive(ctx, callID, ChatRoleAssistant, reply.Text)
	return reply
}

// book persists the confirmed draft and sends the SMS receipt. Callers must
// hold the session lock.
func (e *Engine) book(ctx context.Context, sess *Session) Reply {
	hospitalID := 0
	if sess.Draft.HospitalID != nil {
		hospitalID = *sess.Draft.HospitalID
	}
	_, hospitalName, err := e.store.HospitalExists(ctx, hospitalID)
	if err != nil {
		hospitalName = ""
	}

	appointmentID, err := e.store.CreateAppointment(ctx, &sess.Draft)
	if err != nil {
		e.logger.Error("appointment insert failed", "error", err, "call_id", sess.CallID)
		e.metrics.Booking("error")
		return Reply{Text: bookingFailedApology, Action: ActionHangup}
	}

	e.metrics.Booking("created")
	e.logger.Info("appointment booked",
		"call_id", sess.CallID,
		"appointment_id", appointmentID,
		"hospital_id", hospitalID)

	if e.notifier != nil && sess.Phone != "" {
		if _, err := e.notifier.SendSMS(ctx, sess.Phone, confirmationSMS(&sess.Draft, hospitalName, appointmentID)); err != nil {
			// The booking stands either way.
			e.logger.Warn("confirmation sms failed", "error", err, "call_id", sess.CallID)
		}
	}

	sess.State = StateBooked
	sess.Draft = Draft{Phone: sess.Phone}
	return Reply{Text: bookedFarewell(appointmentID), Action: ActionHangup}
}

// EndCall tears down the session when the provider reports a terminal
// status. Unknown statuses and unknown calls are ignored.
func (e *Engine) EndCall(callID, status string) {
	if !IsTerminalCallStatus(status) {
		return
	}
	if sess := e.sessions.Get(callID); sess != nil {
		sess.Lock()
		sess.State = StateEnded
		sess.Unlock()
	}
	e.sessions.End(callID)
	e.logger.Info("call ended", "call_id", callID, "status", status)
}

func (e *Engine) archive(ctx context.Context, callID, role, content string) {
	if e.callLog != nil {
		e.callLog.LogTurn(ctx, callID, role, content)
	}
}

func (e *Engine) countFields(source string, f extract.Fields) {
	if f.Patient != "" {
		e.metrics.FieldExtracted(source, FieldPatient)
	}
	if f.Symptoms != "" {
		e.metrics.FieldExtracted(source, FieldSymptoms)
	}
	if f.Date != "" {
		e.metrics.FieldExtracted(source, FieldDate)
	}
	if f.Time != "" {
		e.metrics.FieldExtracted(source, FieldTime)
	}
	if f.HospitalID != nil {
		e.metrics.FieldExtracted(source, FieldHospitalID)
	}
}
