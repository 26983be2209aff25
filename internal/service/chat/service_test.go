package chat

import (
	"context"
	"path/filepath"
	"testing"

	modelchat "github.com/hikkinomore/buddy-server/internal/model/chat"
	"github.com/hikkinomore/buddy-server/internal/model/preset"
	"github.com/hikkinomore/buddy-server/internal/model/skill"
	"github.com/hikkinomore/buddy-server/internal/store"
)

type fakeReplier struct {
	reply string
	err   error
	calls int
	first bool
}

func (f *fakeReplier) GenerateReply(_ context.Context, _ preset.Preset, _ []modelchat.ConversationTurn, _ string, firstMessage bool) (string, error) {
	f.calls++
	f.first = firstMessage
	return f.reply, f.err
}

type fakeJudge struct {
	judgment skill.Judgment
	calls    int
	turns    []modelchat.ConversationTurn
}

func (f *fakeJudge) Judge(_ context.Context, turns []modelchat.ConversationTurn) skill.Judgment {
	f.calls++
	f.turns = turns
	return f.judgment
}

func strptr(s string) *string { return &s }

func newTestService(t *testing.T, judge Judge, opts Options) (*Service, *fakeReplier) {
	t.Helper()
	st, err := store.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "buddy.db"))
	if err != nil {
		t.Fatalf("NewSQLite err: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	replier := &fakeReplier{reply: "hello friend"}
	svc := NewService(st, preset.NewMemoryStore(preset.Seed()), replier, judge, nil, opts)
	return svc, replier
}

func TestHandleMessageValidation(t *testing.T) {
	svc, _ := newTestService(t, &fakeJudge{}, Options{})
	ctx := context.Background()

	if _, err := svc.HandleMessage(ctx, "u1", "s1", "", ""); err != ErrEmptyMessage {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := svc.HandleMessage(ctx, "", "s1", "", "hi"); err != ErrEmptyUser {
		t.Fatalf("expected ErrEmptyUser, got %v", err)
	}
	if _, err := svc.HandleMessage(ctx, "u1", "s1", "time-traveler", "hi"); err != ErrPresetNotFound {
		t.Fatalf("expected ErrPresetNotFound, got %v", err)
	}
}

func TestHandleMessageAllocatesSession(t *testing.T) {
	svc, replier := newTestService(t, &fakeJudge{judgment: skill.NullJudgment("none")}, Options{})
	ctx := context.Background()

	reply, err := svc.HandleMessage(ctx, "u1", "", "", "hey")
	if err != nil {
		t.Fatalf("HandleMessage err: %v", err)
	}
	if reply.SessionID == "" {
		t.Fatal("expected allocated session id")
	}
	if reply.Content != "hello friend" {
		t.Fatalf("unexpected reply content: %q", reply.Content)
	}
	if !replier.first {
		t.Fatal("expected firstMessage=true on a fresh session")
	}

	sessions, err := svc.Sessions(ctx, "u1")
	if err != nil {
		t.Fatalf("Sessions err: %v", err)
	}
	if len(sessions) != 1 || sessions[0] != reply.SessionID {
		t.Fatalf("unexpected sessions: %v", sessions)
	}
}

func TestHandleMessageAppendsExchange(t *testing.T) {
	svc, _ := newTestService(t, &fakeJudge{judgment: skill.NullJudgment("none")}, Options{})
	ctx := context.Background()

	first, err := svc.HandleMessage(ctx, "u1", "sess-1", "", "hey")
	if err != nil {
		t.Fatalf("HandleMessage err: %v", err)
	}
	if _, err := svc.HandleMessage(ctx, "u1", first.SessionID, "", "how are you"); err != nil {
		t.Fatalf("second HandleMessage err: %v", err)
	}

	turns, err := svc.Transcript(ctx, first.SessionID, 0)
	if err != nil {
		t.Fatalf("Transcript err: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(turns))
	}
	if turns[0].Role != modelchat.RoleUser || turns[0].Content != "hey" {
		t.Fatalf("unexpected first turn: %+v", turns[0])
	}
	if turns[3].Role != modelchat.RoleAssistant {
		t.Fatalf("unexpected last turn: %+v", turns[3])
	}
}

func TestHandleMessageEvaluationPersistsDetectedSkill(t *testing.T) {
	judge := &fakeJudge{judgment: skill.Judgment{
		SkillType: strptr("empathy"), Score: 0.5, Reason: "listened", Confidence: 0.8,
	}}
	svc, _ := newTestService(t, judge, Options{EvalEnabled: true, EvalRecentRecords: 10})
	ctx := context.Background()

	reply, err := svc.HandleMessage(ctx, "u1", "", "", "that sounds hard, i get it")
	if err != nil {
		t.Fatalf("HandleMessage err: %v", err)
	}
	if judge.calls != 1 {
		t.Fatalf("expected 1 judge call, got %d", judge.calls)
	}

	history, err := svc.SkillHistory(ctx, "u1", reply.SessionID)
	if err != nil {
		t.Fatalf("SkillHistory err: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 persisted judgment, got %d", len(history))
	}
	rec := history[0]
	if rec.SkillType == nil || *rec.SkillType != "empathy" {
		t.Fatalf("unexpected skill: %+v", rec)
	}
	if rec.ConversationContext == "" {
		t.Fatal("expected conversation context snapshot")
	}
	if rec.Timestamp.IsZero() {
		t.Fatal("expected store-assigned timestamp")
	}
}

func TestHandleMessageNullJudgmentNotPersisted(t *testing.T) {
	judge := &fakeJudge{judgment: skill.NullJudgment("no clear demonstration")}
	svc, _ := newTestService(t, judge, Options{EvalEnabled: true})
	ctx := context.Background()

	reply, err := svc.HandleMessage(ctx, "u1", "", "", "hm")
	if err != nil {
		t.Fatalf("HandleMessage err: %v", err)
	}

	history, err := svc.SkillHistory(ctx, "u1", reply.SessionID)
	if err != nil {
		t.Fatalf("SkillHistory err: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("null judgment must not be persisted, got %d records", len(history))
	}
}

func TestEvaluateRecentInsufficientHistory(t *testing.T) {
	judge := &fakeJudge{}
	svc, _ := newTestService(t, judge, Options{})
	ctx := context.Background()

	j, stored, err := svc.EvaluateRecent(ctx, "u1", "ghost-session", 0)
	if err != nil {
		t.Fatalf("EvaluateRecent err: %v", err)
	}
	if stored {
		t.Fatal("nothing should be stored")
	}
	if j.SkillType != nil {
		t.Fatalf("expected null judgment, got %+v", j)
	}
	if judge.calls != 0 {
		t.Fatal("judge must not run on insufficient history")
	}
}

func TestEvaluateRecentRespectsRecordLimit(t *testing.T) {
	judge := &fakeJudge{judgment: skill.NullJudgment("none")}
	svc, _ := newTestService(t, judge, Options{})
	ctx := context.Background()

	var sessionID string
	for _, msg := range []string{"one", "two", "three"} {
		reply, err := svc.HandleMessage(ctx, "u1", sessionID, "", msg)
		if err != nil {
			t.Fatalf("HandleMessage err: %v", err)
		}
		sessionID = reply.SessionID
	}

	// 3 exchanges = 6 records; a limit of 2 records keeps the last exchange only.
	if _, _, err := svc.EvaluateRecent(ctx, "u1", sessionID, 2); err != nil {
		t.Fatalf("EvaluateRecent err: %v", err)
	}
	if len(judge.turns) != 2 {
		t.Fatalf("expected 2 turns from the last exchange, got %d", len(judge.turns))
	}
	if judge.turns[0].Content != "three" {
		t.Fatalf("expected last user message first, got %q", judge.turns[0].Content)
	}
}

func TestSkillSummaryAfterEvaluations(t *testing.T) {
	judge := &fakeJudge{judgment: skill.Judgment{
		SkillType: strptr("small_talk"), Score: 0.9, Reason: "chatty", Confidence: 1,
	}}
	svc, _ := newTestService(t, judge, Options{EvalEnabled: true})
	ctx := context.Background()

	var sessionID string
	for _, msg := range []string{"nice day", "sure is", "love this weather"} {
		reply, err := svc.HandleMessage(ctx, "u1", sessionID, "", msg)
		if err != nil {
			t.Fatalf("HandleMessage err: %v", err)
		}
		sessionID = reply.SessionID
	}

	summary, err := svc.SkillSummary(ctx, "u1")
	if err != nil {
		t.Fatalf("SkillSummary err: %v", err)
	}
	if summary.TotalSkills != len(skill.Taxonomy()) {
		t.Fatalf("unexpected total skills: %d", summary.TotalSkills)
	}
	status := summary.SkillDetails["small_talk"]
	if status.TotalEvaluations != 3 {
		t.Fatalf("expected 3 evaluations, got %d", status.TotalEvaluations)
	}
	if !status.IsMastered {
		t.Fatalf("expected mastery at weighted %f", status.WeightedScore)
	}
	if summary.MasteredSkills != 1 {
		t.Fatalf("expected 1 mastered skill, got %d", summary.MasteredSkills)
	}
}

func TestTranscriptUnknownSession(t *testing.T) {
	svc, _ := newTestService(t, &fakeJudge{}, Options{})

	if _, err := svc.Transcript(context.Background(), "missing", 0); err != store.ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
