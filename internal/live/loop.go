package live

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prepmate/prepmate/internal/models"
	"github.com/prepmate/prepmate/internal/services"
)

type State string

const (
	StateIntro      State = "intro"
	StateSetup      State = "setup"
	StateAISpeaking State = "ai_speaking"
	StateListening  State = "listening"
	StateThinking   State = "thinking"
	StateFeedback   State = "feedback"
)

// DefaultTimeLimit is the hard countdown for one session.
const DefaultTimeLimit = 1200 * time.Second

// Event is one inbound client signal. Exactly the fields named by Type are
// read.
type Event struct {
	Type string `json:"type"`

	// device_ready
	Camera     bool `json:"camera"`
	Microphone bool `json:"microphone"`

	// start
	InterviewType string `json:"interview_type"`
	Difficulty    string `json:"difficulty"`
	ResumeContent string `json:"resume_content"`

	// speech_partial / speech_final
	Text string `json:"text"`

	// audio_chunk
	Audio    []byte `json:"audio"`
	Language string `json:"language"`
}

const (
	EvDeviceReady    = "device_ready"
	EvStart          = "start"
	EvPlaybackDone   = "playback_done"
	EvSpeechPartial  = "speech_partial"
	EvSpeechFinal    = "speech_final"
	EvAudioChunk     = "audio_chunk"
	EvWarningRequest = "warning_request"
	EvPause          = "pause"
	EvResume         = "resume"
	EvVisibilityLost = "visibility_lost"
	EvEnd            = "end"
)

// OutMessage is one outbound client signal.
type OutMessage struct {
	Type     string                     `json:"type"`
	State    State                      `json:"state,omitempty"`
	Text     string                     `json:"text,omitempty"`
	Feedback *services.EndSessionResult `json:"feedback,omitempty"`
}

type Sink interface {
	Send(msg OutMessage) error
}

// Runner is the slice of InterviewService the loop drives.
type Runner interface {
	Start(ctx context.Context, in services.StartSessionInput) (*services.StartSessionResult, error)
	Next(ctx context.Context, sessionID string, transcript []models.TranscriptEntry) (string, error)
	Warning(ctx context.Context, sessionID string, transcript []models.TranscriptEntry) (string, error)
	End(ctx context.Context, sessionID string, transcript []models.TranscriptEntry) (*services.EndSessionResult, error)
}

// Transcriber is optional; when nil, audio_chunk events are rejected and
// the client must supply speech_final text itself.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (string, float64, error)
}

// Guard is the cross-delivery one-shot claim (Redis SETNX in production).
type Guard interface {
	Once(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// StatusPublisher fans loop state transitions out to observers.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, sessionID, status string) error
}

// Loop is the server-side driver for one live interview client. It owns
// the countdown timer and the fail-safe rule: any model error, empty next
// question, timer expiry, or visibility loss ends the session rather than
// hanging. The loop is the session's only writer while it is connected.
type Loop struct {
	runner Runner
	sink   Sink
	stt    Transcriber
	guard  Guard
	pub    StatusPublisher
	log    *logrus.Entry

	limit time.Duration
	now   func() time.Time

	mu           sync.Mutex
	state        State
	sessionID    string
	transcript   []models.TranscriptEntry
	lastQuestion string
	resumeNeeded bool
	devicesOK    bool
	resumeText   string

	timer    *time.Timer
	deadline time.Time
	paused   bool
	frozen   time.Duration // time left at the moment of pause

	ended atomic.Bool
}

type Config struct {
	Runner      Runner
	Sink        Sink
	Transcriber Transcriber
	Guard       Guard
	Publisher   StatusPublisher
	Logger      *logrus.Entry

	TimeLimit    time.Duration
	ResumeNeeded bool // resume-based session: setup also requires resume text
}

func NewLoop(cfg Config) *Loop {
	limit := cfg.TimeLimit
	if limit <= 0 {
		limit = DefaultTimeLimit
	}
	l := &Loop{
		runner:       cfg.Runner,
		sink:         cfg.Sink,
		stt:          cfg.Transcriber,
		guard:        cfg.Guard,
		pub:          cfg.Publisher,
		log:          cfg.Logger,
		limit:        limit,
		now:          time.Now,
		state:        StateIntro,
		resumeNeeded: cfg.ResumeNeeded,
	}
	if l.log == nil {
		l.log = logrus.NewEntry(logrus.New())
	}
	return l
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) SessionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionID
}

// HandleEvent processes one client event. It is safe to call from the
// single reader goroutine; the timer callback synchronizes through the
// same mutex.
func (l *Loop) HandleEvent(ctx context.Context, ev Event) {
	switch ev.Type {
	case EvDeviceReady:
		l.handleDeviceReady(ev)
	case EvStart:
		l.handleStart(ctx, ev)
	case EvPlaybackDone:
		l.handlePlaybackDone(ctx)
	case EvSpeechPartial:
		// interim text: no transition, nothing stored
	case EvSpeechFinal:
		l.handleUtterance(ctx, ev.Text)
	case EvAudioChunk:
		l.handleAudioChunk(ctx, ev)
	case EvWarningRequest:
		l.handleWarningRequest(ctx)
	case EvPause:
		l.handlePause(ctx)
	case EvResume:
		l.handleResume(ctx)
	case EvVisibilityLost:
		// integrity control: leaving the interview view ends the session
		l.endSession(ctx, "visibility_lost")
	case EvEnd:
		l.endSession(ctx, "client_end")
	default:
		l.send(OutMessage{Type: "error", Text: "unknown event type"})
	}
}

// Shutdown ends the session if the connection drops mid-interview.
func (l *Loop) Shutdown(ctx context.Context) {
	l.mu.Lock()
	started := l.sessionID != ""
	l.mu.Unlock()
	if started {
		l.endSession(ctx, "disconnect")
	}
}

func (l *Loop) handleDeviceReady(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateIntro && l.state != StateSetup {
		return
	}
	l.state = StateSetup
	l.devicesOK = ev.Camera && ev.Microphone
	l.sendLocked(OutMessage{Type: "state", State: StateSetup})
}

// handleStart gates on the setup checks, starts the server session, and
// enters AISpeaking with the first question.
func (l *Loop) handleStart(ctx context.Context, ev Event) {
	l.mu.Lock()
	if l.state != StateSetup {
		l.sendLocked(OutMessage{Type: "error", Text: "not in setup"})
		l.mu.Unlock()
		return
	}
	if !l.devicesOK {
		l.sendLocked(OutMessage{Type: "error", Text: "camera and microphone checks must pass first"})
		l.mu.Unlock()
		return
	}
	if l.resumeNeeded && ev.ResumeContent == "" && l.resumeText == "" {
		l.sendLocked(OutMessage{Type: "error", Text: "resume interview requires an uploaded resume"})
		l.mu.Unlock()
		return
	}
	if ev.ResumeContent != "" {
		l.resumeText = ev.ResumeContent
	}
	l.mu.Unlock()

	res, err := l.runner.Start(ctx, services.StartSessionInput{
		Type:          ev.InterviewType,
		Difficulty:    ev.Difficulty,
		ResumeContent: l.resumeText,
	})
	if err != nil {
		l.log.WithError(err).Warn("live start failed")
		l.send(OutMessage{Type: "error", Text: "could not start the interview, please retry"})
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionID = res.SessionID
	l.lastQuestion = res.FirstQuestion
	l.transcript = append(l.transcript, models.TranscriptEntry{
		Speaker:   models.SpeakerAI,
		Content:   res.FirstQuestion,
		Timestamp: l.now().UTC(),
	})
	l.state = StateAISpeaking
	l.deadline = l.now().Add(l.limit)
	l.timer = time.AfterFunc(l.limit, func() {
		l.endSession(context.Background(), "timer_expired")
	})
	l.sendLocked(OutMessage{Type: "ai_question", State: StateAISpeaking, Text: res.FirstQuestion})
	l.publish("active")
}

// Listening begins only once the client reports playback completion.
func (l *Loop) handlePlaybackDone(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateAISpeaking || l.paused {
		return
	}
	l.state = StateListening
	l.sendLocked(OutMessage{Type: "state", State: StateListening})
	_ = ctx
}

// handleUtterance is the Listening -> Thinking -> AISpeaking hop. A failed
// or empty next question falls through to ending the session; the loop
// never hangs on an AI error.
func (l *Loop) handleUtterance(ctx context.Context, text string) {
	l.mu.Lock()
	if l.state != StateListening || l.paused {
		l.mu.Unlock()
		return
	}
	if text == "" {
		l.mu.Unlock()
		return
	}
	l.transcript = append(l.transcript, models.TranscriptEntry{
		Speaker:   models.SpeakerUser,
		Content:   text,
		Timestamp: l.now().UTC(),
	})
	l.state = StateThinking
	l.sendLocked(OutMessage{Type: "state", State: StateThinking})
	sessionID := l.sessionID
	transcript := snapshot(l.transcript)
	l.mu.Unlock()

	question, err := l.runner.Next(ctx, sessionID, transcript)
	if err != nil || question == "" {
		if err != nil {
			l.log.WithError(err).Warn("next question failed, ending session")
		}
		l.endSession(ctx, "ai_error")
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ended.Load() {
		return
	}
	l.transcript = append(l.transcript, models.TranscriptEntry{
		Speaker:   models.SpeakerAI,
		Content:   question,
		Timestamp: l.now().UTC(),
	})
	l.lastQuestion = question
	l.state = StateAISpeaking
	l.sendLocked(OutMessage{Type: "ai_question", State: StateAISpeaking, Text: question})
}

func (l *Loop) handleAudioChunk(ctx context.Context, ev Event) {
	if l.stt == nil {
		l.send(OutMessage{Type: "error", Text: "server-side transcription is not enabled"})
		return
	}
	if len(ev.Audio) == 0 {
		return
	}
	text, _, err := l.stt.Transcribe(ctx, ev.Audio, ev.Language)
	if err != nil {
		l.log.WithError(err).Warn("transcription failed")
		l.send(OutMessage{Type: "error", Text: "could not transcribe audio"})
		return
	}
	l.handleUtterance(ctx, text)
}

func (l *Loop) handleWarningRequest(ctx context.Context) {
	l.mu.Lock()
	if l.sessionID == "" || l.state == StateFeedback {
		l.mu.Unlock()
		return
	}
	sessionID := l.sessionID
	transcript := snapshot(l.transcript)
	l.mu.Unlock()

	w, err := l.runner.Warning(ctx, sessionID, transcript)
	if err != nil {
		l.log.WithError(err).Debug("warning call failed")
		return
	}
	l.send(OutMessage{Type: "warning", Text: w})
}

// handlePause freezes the countdown and suspends the loop for device
// re-testing. User-initiated only; cancellation sources never pause.
func (l *Loop) handlePause(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sessionID == "" || l.paused || l.state == StateFeedback {
		return
	}
	l.paused = true
	l.frozen = time.Until(l.deadline)
	if l.frozen < 0 {
		l.frozen = 0
	}
	if l.timer != nil {
		l.timer.Stop()
	}
	l.sendLocked(OutMessage{Type: "state", Text: "paused", State: l.state})
	l.publish("paused")
	_ = ctx
}

// handleResume restarts the countdown with the frozen remainder and
// re-speaks the last AI question before the client re-enables listening.
func (l *Loop) handleResume(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.paused {
		return
	}
	l.paused = false
	l.deadline = l.now().Add(l.frozen)
	l.timer = time.AfterFunc(l.frozen, func() {
		l.endSession(context.Background(), "timer_expired")
	})
	l.state = StateAISpeaking
	l.sendLocked(OutMessage{Type: "ai_question", State: StateAISpeaking, Text: l.lastQuestion})
	l.publish("active")
	_ = ctx
}

// endSession is every path out of Active: timer expiry, visibility loss,
// client end, AI failure, disconnect. The CAS plus the shared guard make
// it fire exactly once no matter how many sources trigger.
func (l *Loop) endSession(ctx context.Context, reason string) {
	if !l.ended.CompareAndSwap(false, true) {
		return
	}

	l.mu.Lock()
	if l.timer != nil {
		l.timer.Stop()
	}
	sessionID := l.sessionID
	transcript := snapshot(l.transcript)
	l.state = StateFeedback
	l.mu.Unlock()

	if sessionID == "" {
		return
	}

	if l.guard != nil {
		claimed, err := l.guard.Once(ctx, "session:"+sessionID+":end", time.Hour)
		if err != nil {
			l.log.WithError(err).Warn("end guard unavailable, relying on local flag")
		} else if !claimed {
			l.log.WithField("reason", reason).Info("end already claimed elsewhere")
			return
		}
	}

	l.log.WithField("reason", reason).Info("ending session")

	res, err := l.runner.End(ctx, sessionID, transcript)
	if err != nil {
		// degrade to a generic close; the session was concluded or will be
		// retried by the client over HTTP
		l.log.WithError(err).Warn("end call failed")
		l.send(OutMessage{Type: "feedback", State: StateFeedback})
		l.publish("ended")
		return
	}

	l.send(OutMessage{Type: "feedback", State: StateFeedback, Feedback: res})
	l.publish("ended")
}

func (l *Loop) send(msg OutMessage) {
	if l.sink == nil {
		return
	}
	if err := l.sink.Send(msg); err != nil {
		l.log.WithError(err).Debug("sink send failed")
	}
}

// sendLocked must only be called with l.mu held; the sink does its own
// write serialization.
func (l *Loop) sendLocked(msg OutMessage) {
	l.send(msg)
}

func (l *Loop) publish(status string) {
	if l.pub == nil || l.sessionID == "" {
		return
	}
	_ = l.pub.PublishStatus(context.Background(), l.sessionID, status)
}

func snapshot(in []models.TranscriptEntry) []models.TranscriptEntry {
	out := make([]models.TranscriptEntry, len(in))
	copy(out, in)
	return out
}
