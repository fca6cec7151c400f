package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prepmate/prepmate/internal/models"
	"github.com/prepmate/prepmate/internal/utils"
)

type fakeResumeRepo struct {
	latest *models.ResumeFile
	rows   map[string]*models.ResumeFile
}

func (r *fakeResumeRepo) Insert(_ context.Context, f *models.ResumeFile) error {
	if r.rows == nil {
		r.rows = map[string]*models.ResumeFile{}
	}
	cp := *f
	r.rows[f.ID] = &cp
	r.latest = &cp
	return nil
}

func (r *fakeResumeRepo) GetByID(_ context.Context, id string) (*models.ResumeFile, error) {
	if row, ok := r.rows[id]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, utils.ErrNotFound
}

func (r *fakeResumeRepo) LatestByPlan(_ context.Context, _, _ string) (*models.ResumeFile, error) {
	if r.latest == nil {
		return nil, utils.ErrNotFound
	}
	cp := *r.latest
	return &cp, nil
}

type fakeArchiver struct {
	calls    int
	sessions []string
}

func (a *fakeArchiver) EnqueueSessionArchive(_ context.Context, _, _, sessionID string) error {
	a.calls++
	a.sessions = append(a.sessions, sessionID)
	return nil
}

const openingJSON = `{"opening": "Welcome, let's begin.", "first_question": "Tell me about yourself."}`

const feedbackJSON = `{
	"overall_score": 78,
	"summary": "Solid fundamentals, rushed answers.",
	"content_scores": [{"dimension": "technical depth", "score": 80, "rationale": "good tradeoff discussion"}],
	"communication": {"clarity": 75, "conciseness": 60, "confidence": 82, "filler_remark": "frequent 'um'"},
	"strengths": ["tradeoff analysis"],
	"improvements": ["slow down"]
}`

func newInterviewFixture(t *testing.T, m *scriptedModel) (*interviewService, *fakePlanRepo, *fakeResumeRepo, *fakeArchiver) {
	t.Helper()
	repo := &fakePlanRepo{plan: seedPlan("u-1")}
	resumes := &fakeResumeRepo{}
	arch := &fakeArchiver{}
	svc := NewInterviewService(repo, resumes, modelClient(m), arch, quietLogger()).(*interviewService)
	return svc, repo, resumes, arch
}

func startedFixture(t *testing.T, m *scriptedModel) (*interviewService, *fakePlanRepo, *fakeArchiver, string) {
	t.Helper()
	svc, repo, _, arch := newInterviewFixture(t, m)
	res, err := svc.Start(context.Background(), "u-1", "plan-1", StartSessionInput{
		Type: "behavioral", Difficulty: "medium",
	})
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	return svc, repo, arch, res.SessionID
}

func TestStartValidation(t *testing.T) {
	m := &scriptedModel{replies: []string{openingJSON}}
	svc, repo, _, _ := newInterviewFixture(t, m)

	if _, err := svc.Start(context.Background(), "u-1", "plan-1", StartSessionInput{}); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("missing type: error = %v, want code %s", err, utils.CodeInvalidArgument)
	}
	if _, err := svc.Start(context.Background(), "u-2", "plan-1", StartSessionInput{Type: "behavioral"}); !utils.IsCode(err, utils.CodeForbidden) {
		t.Fatalf("stranger: error = %v, want code %s", err, utils.CodeForbidden)
	}
	if len(repo.plan.Sessions) != 0 {
		t.Fatal("failed starts must not append sessions")
	}
}

func TestStartResumeTypeRequiresResume(t *testing.T) {
	m := &scriptedModel{replies: []string{openingJSON}}
	svc, _, _, _ := newInterviewFixture(t, m)

	_, err := svc.Start(context.Background(), "u-1", "plan-1", StartSessionInput{Type: InterviewTypeResume})
	if !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("error = %v, want code %s", err, utils.CodeInvalidArgument)
	}
	if m.calls != 0 {
		t.Fatal("no model call without a resume")
	}
}

func TestStartResumeTypeUsesStoredResume(t *testing.T) {
	m := &scriptedModel{replies: []string{openingJSON}}
	svc, repo, resumes, _ := newInterviewFixture(t, m)
	resumes.latest = &models.ResumeFile{ID: "r-1", ExtractedText: "Seven years of Go and Postgres."}

	res, err := svc.Start(context.Background(), "u-1", "plan-1", StartSessionInput{Type: InterviewTypeResume})
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if res.FirstQuestion != "Tell me about yourself." {
		t.Fatalf("first question = %q", res.FirstQuestion)
	}
	if !strings.Contains(m.prompts[0], "Seven years of Go and Postgres.") {
		t.Fatal("opening prompt must carry the extracted resume text")
	}
	sess := repo.plan.Sessions[0]
	if sess.ResumeRef != "r-1" {
		t.Fatalf("resume_ref = %q, want r-1", sess.ResumeRef)
	}
}

func TestStartAppendsActiveSessionWithFirstEntry(t *testing.T) {
	m := &scriptedModel{replies: []string{openingJSON}}
	svc, repo, _, _ := newInterviewFixture(t, m)

	res, err := svc.Start(context.Background(), "u-1", "plan-1", StartSessionInput{Type: "behavioral"})
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if res.SessionID == "" || res.FirstQuestion == "" {
		t.Fatalf("result = %+v, want session id and first question", res)
	}

	if len(repo.plan.Sessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(repo.plan.Sessions))
	}
	sess := repo.plan.Sessions[0]
	if sess.Status != models.SessionActive {
		t.Fatalf("status = %s, want %s", sess.Status, models.SessionActive)
	}
	if sess.Difficulty != "medium" {
		t.Fatalf("difficulty = %q, want the default", sess.Difficulty)
	}
	if len(sess.Transcript) != 1 || sess.Transcript[0].Speaker != models.SpeakerAI {
		t.Fatalf("transcript = %+v, want exactly the opening ai entry", sess.Transcript)
	}
	if sess.Transcript[0].Content != res.FirstQuestion {
		t.Fatal("stored opening entry must match the returned first question")
	}
}

func TestNextAppendsExactlyOneAIEntry(t *testing.T) {
	m := &scriptedModel{replies: []string{openingJSON, `{"next_question": "What was the hardest bug you fixed?"}`}}
	svc, repo, _, sessionID := startedFixture(t, m)

	client := []models.TranscriptEntry{
		{Speaker: models.SpeakerAI, Content: "Tell me about yourself."},
		{Speaker: models.SpeakerUser, Content: "I build backend systems."},
	}
	q, err := svc.Next(context.Background(), "u-1", "plan-1", sessionID, client)
	if err != nil {
		t.Fatalf("Next error: %v", err)
	}
	if q != "What was the hardest bug you fixed?" {
		t.Fatalf("question = %q", q)
	}

	stored := repo.plan.Sessions[0].Transcript
	if len(stored) != 3 {
		t.Fatalf("stored transcript = %d entries, want client's 2 plus one new ai entry", len(stored))
	}
	last := stored[len(stored)-1]
	if last.Speaker != models.SpeakerAI || last.Content != q {
		t.Fatalf("last entry = %+v, want the new question", last)
	}
	for i := 1; i < len(stored); i++ {
		if stored[i].Timestamp.Before(stored[i-1].Timestamp) {
			t.Fatal("stored timestamps must be non-decreasing")
		}
	}
}

func TestNextOnConcludedSessionIsNotFound(t *testing.T) {
	m := &scriptedModel{replies: []string{openingJSON}}
	svc, repo, _, sessionID := startedFixture(t, m)
	repo.plan.Sessions[0].Status = models.SessionConcluded

	modelCallsBefore := m.calls
	_, err := svc.Next(context.Background(), "u-1", "plan-1", sessionID, nil)
	if !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("error = %v, want code %s", err, utils.CodeNotFound)
	}
	if m.calls != modelCallsBefore {
		t.Fatal("no model call for a concluded session")
	}
}

func TestNextLosesRaceToConclude(t *testing.T) {
	m := &scriptedModel{replies: []string{openingJSON, `{"next_question": "Q2"}`}}
	svc, repo, _, sessionID := startedFixture(t, m)
	repo.forceNoMatch = true

	_, err := svc.Next(context.Background(), "u-1", "plan-1", sessionID, nil)
	if !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("error = %v, want code %s", err, utils.CodeNotFound)
	}
}

func TestWarningPersistsNothing(t *testing.T) {
	m := &scriptedModel{replies: []string{openingJSON, `{"warning": "Only ten minutes left, wrap up your answer."}`}}
	svc, repo, _, sessionID := startedFixture(t, m)
	before := len(repo.plan.Sessions[0].Transcript)

	w, err := svc.Warning(context.Background(), "u-1", "plan-1", sessionID, nil)
	if err != nil {
		t.Fatalf("Warning error: %v", err)
	}
	if w == "" {
		t.Fatal("empty warning")
	}
	if repo.replaceCalls != 0 || repo.concludeCalls != 0 {
		t.Fatal("warning must not write")
	}
	if len(repo.plan.Sessions[0].Transcript) != before {
		t.Fatal("warning must not touch the transcript")
	}
}

func TestEndConcludesAndArchives(t *testing.T) {
	m := &scriptedModel{replies: []string{openingJSON, feedbackJSON}}
	svc, repo, arch, sessionID := startedFixture(t, m)

	started := repo.plan.Sessions[0].StartedAt
	svc.now = func() time.Time { return started.Add(95 * time.Second) }

	res, err := svc.End(context.Background(), "u-1", "plan-1", sessionID, nil)
	if err != nil {
		t.Fatalf("End error: %v", err)
	}
	if res.DurationSeconds != 95 {
		t.Fatalf("duration = %d, want 95", res.DurationSeconds)
	}
	if res.Feedback == nil || res.Feedback.OverallScore != 78 {
		t.Fatalf("feedback = %+v", res.Feedback)
	}

	sess := repo.plan.Sessions[0]
	if sess.Status != models.SessionConcluded {
		t.Fatalf("status = %s, want %s", sess.Status, models.SessionConcluded)
	}
	if sess.OverallScore != 78 || sess.DurationSeconds != 95 {
		t.Fatalf("stored session = %+v", sess)
	}
	if arch.calls != 1 || arch.sessions[0] != sessionID {
		t.Fatalf("archive enqueues = %d, want exactly 1 for %s", arch.calls, sessionID)
	}
}

func TestEndOnConcludedSessionIsNoOp(t *testing.T) {
	m := &scriptedModel{replies: []string{openingJSON, feedbackJSON}}
	svc, repo, arch, sessionID := startedFixture(t, m)

	if _, err := svc.End(context.Background(), "u-1", "plan-1", sessionID, nil); err != nil {
		t.Fatalf("first End error: %v", err)
	}
	modelCallsBefore := m.calls

	res, err := svc.End(context.Background(), "u-1", "plan-1", sessionID, nil)
	if err != nil {
		t.Fatalf("second End error: %v", err)
	}
	if m.calls != modelCallsBefore {
		t.Fatal("repeated End must not call the model")
	}
	if repo.concludeCalls != 1 {
		t.Fatalf("conclude writes = %d, want 1", repo.concludeCalls)
	}
	if arch.calls != 1 {
		t.Fatalf("archive enqueues = %d, want 1", arch.calls)
	}
	if res.Feedback == nil || res.Feedback.OverallScore != 78 {
		t.Fatal("repeated End must return the stored feedback")
	}
}

func TestEndLosesRaceReturnsStoredResult(t *testing.T) {
	m := &scriptedModel{replies: []string{openingJSON, feedbackJSON}}
	svc, repo, arch, sessionID := startedFixture(t, m)
	repo.forceNoMatch = true

	res, err := svc.End(context.Background(), "u-1", "plan-1", sessionID, nil)
	if err != nil {
		t.Fatalf("End error: %v", err)
	}
	if res.SessionID != sessionID {
		t.Fatalf("session id = %q, want %q", res.SessionID, sessionID)
	}
	if arch.calls != 0 {
		t.Fatal("losing the conclude race must not enqueue an archive")
	}
}

func TestNormalizeTranscript(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 := now.Add(-10 * time.Second)
	t2 := now.Add(-5 * time.Second)

	tests := []struct {
		name string
		in   []models.TranscriptEntry
		want []time.Time
	}{
		{
			name: "already ordered",
			in: []models.TranscriptEntry{
				{Timestamp: t1}, {Timestamp: t2},
			},
			want: []time.Time{t1, t2},
		},
		{
			name: "out of order clamped",
			in: []models.TranscriptEntry{
				{Timestamp: t2}, {Timestamp: t1},
			},
			want: []time.Time{t2, t2},
		},
		{
			name: "zero filled from previous",
			in: []models.TranscriptEntry{
				{Timestamp: t1}, {},
			},
			want: []time.Time{t1, t1},
		},
		{
			name: "leading zero filled with now",
			in: []models.TranscriptEntry{
				{}, {Timestamp: now.Add(time.Second)},
			},
			want: []time.Time{now, now.Add(time.Second)},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeTranscript(tt.in, now)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if !got[i].Timestamp.Equal(tt.want[i]) {
					t.Fatalf("entry %d timestamp = %v, want %v", i, got[i].Timestamp, tt.want[i])
				}
			}
		})
	}
}
