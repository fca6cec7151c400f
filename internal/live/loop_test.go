package live

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prepmate/prepmate/internal/models"
	"github.com/prepmate/prepmate/internal/services"
)

type fakeRunner struct {
	mu sync.Mutex

	startCalls int
	nextCalls  int
	warnCalls  int
	endCalls   int

	nextQuestion string
	nextErr      error
	lastEndLen   int
}

func (r *fakeRunner) Start(_ context.Context, _ services.StartSessionInput) (*services.StartSessionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startCalls++
	return &services.StartSessionResult{
		SessionID:     "sess-1",
		FirstQuestion: "Tell me about yourself.",
	}, nil
}

func (r *fakeRunner) Next(_ context.Context, _ string, transcript []models.TranscriptEntry) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextCalls++
	if r.nextErr != nil {
		return "", r.nextErr
	}
	if r.nextQuestion == "" {
		return "What is your proudest project?", nil
	}
	return r.nextQuestion, nil
}

func (r *fakeRunner) Warning(_ context.Context, _ string, _ []models.TranscriptEntry) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnCalls++
	return "Wrap up soon.", nil
}

func (r *fakeRunner) End(_ context.Context, _ string, transcript []models.TranscriptEntry) (*services.EndSessionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endCalls++
	r.lastEndLen = len(transcript)
	return &services.EndSessionResult{
		SessionID:       "sess-1",
		Feedback:        &models.FeedbackReport{OverallScore: 70},
		DurationSeconds: 42,
	}, nil
}

func (r *fakeRunner) ends() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.endCalls
}

func (r *fakeRunner) nexts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextCalls
}

type fakeSink struct {
	mu   sync.Mutex
	msgs []OutMessage
}

func (s *fakeSink) Send(msg OutMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *fakeSink) last() (OutMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.msgs) == 0 {
		return OutMessage{}, false
	}
	return s.msgs[len(s.msgs)-1], true
}

func (s *fakeSink) lastOfType(typ string) (OutMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.msgs) - 1; i >= 0; i-- {
		if s.msgs[i].Type == typ {
			return s.msgs[i], true
		}
	}
	return OutMessage{}, false
}

type fakeGuard struct {
	mu     sync.Mutex
	calls  int
	refuse bool
}

func (g *fakeGuard) Once(_ context.Context, _ string, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return !g.refuse, nil
}

func quietEntry() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestLoop(cfg Config) (*Loop, *fakeRunner, *fakeSink) {
	runner := &fakeRunner{}
	sink := &fakeSink{}
	if cfg.Runner == nil {
		cfg.Runner = runner
	}
	if cfg.Sink == nil {
		cfg.Sink = sink
	}
	cfg.Logger = quietEntry()
	return NewLoop(cfg), runner, sink
}

func startLoop(t *testing.T, l *Loop) {
	t.Helper()
	ctx := context.Background()
	l.HandleEvent(ctx, Event{Type: EvDeviceReady, Camera: true, Microphone: true})
	l.HandleEvent(ctx, Event{Type: EvStart, InterviewType: "behavioral", Difficulty: "medium"})
	if l.State() != StateAISpeaking {
		t.Fatalf("state after start = %s, want %s", l.State(), StateAISpeaking)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStartGatedOnSetup(t *testing.T) {
	l, runner, sink := newTestLoop(Config{})
	ctx := context.Background()

	l.HandleEvent(ctx, Event{Type: EvStart, InterviewType: "behavioral"})
	if runner.startCalls != 0 {
		t.Fatal("start before setup must not reach the runner")
	}
	if msg, ok := sink.last(); !ok || msg.Type != "error" {
		t.Fatalf("last message = %+v, want an error", msg)
	}
	if l.State() != StateIntro {
		t.Fatalf("state = %s, want %s", l.State(), StateIntro)
	}
}

func TestStartRequiresDeviceChecks(t *testing.T) {
	l, runner, _ := newTestLoop(Config{})
	ctx := context.Background()

	l.HandleEvent(ctx, Event{Type: EvDeviceReady, Camera: true, Microphone: false})
	if l.State() != StateSetup {
		t.Fatalf("state = %s, want %s", l.State(), StateSetup)
	}
	l.HandleEvent(ctx, Event{Type: EvStart, InterviewType: "behavioral"})
	if runner.startCalls != 0 {
		t.Fatal("start without both devices must not reach the runner")
	}

	l.HandleEvent(ctx, Event{Type: EvDeviceReady, Camera: true, Microphone: true})
	l.HandleEvent(ctx, Event{Type: EvStart, InterviewType: "behavioral"})
	if runner.startCalls != 1 {
		t.Fatalf("runner starts = %d, want 1", runner.startCalls)
	}
}

func TestResumeSessionRequiresResumeText(t *testing.T) {
	l, runner, sink := newTestLoop(Config{ResumeNeeded: true})
	ctx := context.Background()

	l.HandleEvent(ctx, Event{Type: EvDeviceReady, Camera: true, Microphone: true})
	l.HandleEvent(ctx, Event{Type: EvStart, InterviewType: "resume"})
	if runner.startCalls != 0 {
		t.Fatal("resume session without resume text must not start")
	}
	if msg, ok := sink.last(); !ok || msg.Type != "error" {
		t.Fatalf("last message = %+v, want an error", msg)
	}

	l.HandleEvent(ctx, Event{Type: EvStart, InterviewType: "resume", ResumeContent: "Go, Postgres, Kubernetes."})
	if runner.startCalls != 1 {
		t.Fatalf("runner starts = %d, want 1", runner.startCalls)
	}
}

func TestListeningOnlyAfterPlaybackDone(t *testing.T) {
	l, runner, _ := newTestLoop(Config{})
	ctx := context.Background()
	startLoop(t, l)

	// answer before playback completes: ignored
	l.HandleEvent(ctx, Event{Type: EvSpeechFinal, Text: "early answer"})
	if runner.nexts() != 0 {
		t.Fatal("utterance during ai_speaking must be ignored")
	}

	l.HandleEvent(ctx, Event{Type: EvPlaybackDone})
	if l.State() != StateListening {
		t.Fatalf("state = %s, want %s", l.State(), StateListening)
	}

	l.HandleEvent(ctx, Event{Type: EvSpeechFinal, Text: "I built a payment pipeline."})
	if runner.nexts() != 1 {
		t.Fatalf("runner nexts = %d, want 1", runner.nexts())
	}
	if l.State() != StateAISpeaking {
		t.Fatalf("state = %s, want %s after the next question", l.State(), StateAISpeaking)
	}
}

func TestPartialSpeechIsNotStored(t *testing.T) {
	l, runner, _ := newTestLoop(Config{})
	ctx := context.Background()
	startLoop(t, l)
	l.HandleEvent(ctx, Event{Type: EvPlaybackDone})

	l.HandleEvent(ctx, Event{Type: EvSpeechPartial, Text: "I built"})
	l.HandleEvent(ctx, Event{Type: EvSpeechPartial, Text: "I built a payment"})
	if runner.nexts() != 0 {
		t.Fatal("interim text must not trigger a model call")
	}
	if l.State() != StateListening {
		t.Fatalf("state = %s, want %s", l.State(), StateListening)
	}
}

func TestTimerExpiryEndsExactlyOnce(t *testing.T) {
	l, runner, _ := newTestLoop(Config{TimeLimit: 20 * time.Millisecond})
	ctx := context.Background()
	startLoop(t, l)

	waitFor(t, func() bool { return runner.ends() == 1 })
	if l.State() != StateFeedback {
		t.Fatalf("state = %s, want %s", l.State(), StateFeedback)
	}

	// every later event is inert
	l.HandleEvent(ctx, Event{Type: EvPlaybackDone})
	l.HandleEvent(ctx, Event{Type: EvSpeechFinal, Text: "too late"})
	l.HandleEvent(ctx, Event{Type: EvEnd})
	time.Sleep(20 * time.Millisecond)
	if runner.ends() != 1 {
		t.Fatalf("runner ends = %d, want exactly 1", runner.ends())
	}
	if runner.nexts() != 0 {
		t.Fatal("no next question after expiry")
	}
}

func TestVisibilityLossEndsOnce(t *testing.T) {
	l, runner, sink := newTestLoop(Config{})
	ctx := context.Background()
	startLoop(t, l)

	l.HandleEvent(ctx, Event{Type: EvVisibilityLost})
	if runner.ends() != 1 {
		t.Fatalf("runner ends = %d, want 1", runner.ends())
	}
	l.HandleEvent(ctx, Event{Type: EvVisibilityLost})
	l.HandleEvent(ctx, Event{Type: EvEnd})
	if runner.ends() != 1 {
		t.Fatalf("runner ends = %d, want exactly 1", runner.ends())
	}

	msg, ok := sink.lastOfType("feedback")
	if !ok || msg.Feedback == nil || msg.Feedback.Feedback.OverallScore != 70 {
		t.Fatalf("feedback message = %+v", msg)
	}
}

func TestGuardRefusalSkipsEnd(t *testing.T) {
	guard := &fakeGuard{refuse: true}
	l, runner, _ := newTestLoop(Config{Guard: guard})
	ctx := context.Background()
	startLoop(t, l)

	l.HandleEvent(ctx, Event{Type: EvEnd})
	if guard.calls != 1 {
		t.Fatalf("guard calls = %d, want 1", guard.calls)
	}
	if runner.ends() != 0 {
		t.Fatal("a refused claim means another delivery already owns the end")
	}
}

func TestPauseFreezesAndResumeRepeatsQuestion(t *testing.T) {
	l, runner, sink := newTestLoop(Config{TimeLimit: time.Hour})
	ctx := context.Background()
	startLoop(t, l)
	l.HandleEvent(ctx, Event{Type: EvPlaybackDone})

	l.HandleEvent(ctx, Event{Type: EvPause})

	// answers while paused are dropped
	l.HandleEvent(ctx, Event{Type: EvSpeechFinal, Text: "paused answer"})
	if runner.nexts() != 0 {
		t.Fatal("utterance while paused must be ignored")
	}

	l.HandleEvent(ctx, Event{Type: EvResume})
	if l.State() != StateAISpeaking {
		t.Fatalf("state = %s, want %s", l.State(), StateAISpeaking)
	}
	msg, ok := sink.lastOfType("ai_question")
	if !ok || msg.Text != "Tell me about yourself." {
		t.Fatalf("resume message = %+v, want the last question re-spoken", msg)
	}
	if runner.ends() != 0 {
		t.Fatal("pause/resume must not end the session")
	}
}

func TestAIFailureEndsSession(t *testing.T) {
	l, runner, _ := newTestLoop(Config{})
	runner.nextErr = errors.New("model blew up")
	ctx := context.Background()
	startLoop(t, l)
	l.HandleEvent(ctx, Event{Type: EvPlaybackDone})

	l.HandleEvent(ctx, Event{Type: EvSpeechFinal, Text: "my answer"})
	if runner.ends() != 1 {
		t.Fatalf("runner ends = %d, want 1: the loop never hangs on a model failure", runner.ends())
	}
	if l.State() != StateFeedback {
		t.Fatalf("state = %s, want %s", l.State(), StateFeedback)
	}
	// the failed exchange still carries the user's words into End
	if runner.lastEndLen < 2 {
		t.Fatalf("transcript at end = %d entries, want the opening plus the answer", runner.lastEndLen)
	}
}

func TestShutdownEndsStartedSession(t *testing.T) {
	l, runner, _ := newTestLoop(Config{})
	startLoop(t, l)

	l.Shutdown(context.Background())
	if runner.ends() != 1 {
		t.Fatalf("runner ends = %d, want 1", runner.ends())
	}

	// shutdown before any session is a no-op
	l2, runner2, _ := newTestLoop(Config{})
	l2.Shutdown(context.Background())
	if runner2.ends() != 0 {
		t.Fatalf("runner ends = %d, want 0", runner2.ends())
	}
}
