package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	chatmodel "github.com/hikkinomore/buddy-server/internal/model/chat"
	"github.com/hikkinomore/buddy-server/internal/model/preset"
	"github.com/hikkinomore/buddy-server/internal/model/skill"
	chatservice "github.com/hikkinomore/buddy-server/internal/service/chat"
	"github.com/hikkinomore/buddy-server/internal/store"
)

type fakeReplier struct {
	reply string
}

func (f *fakeReplier) GenerateReply(_ context.Context, _ preset.Preset, _ []chatmodel.ConversationTurn, _ string, _ bool) (string, error) {
	return f.reply, nil
}

func (f *fakeReplier) GenerateReplyStream(_ context.Context, _ preset.Preset, _ []chatmodel.ConversationTurn, _ string, _ bool, onDelta func(string)) (string, error) {
	for _, chunk := range []string{"hel", "lo"} {
		onDelta(chunk)
	}
	return f.reply, nil
}

type fakeJudge struct{}

func (fakeJudge) Judge(_ context.Context, _ []chatmodel.ConversationTurn) skill.Judgment {
	return skill.NullJudgment("no skill observed")
}

func setupRouter(t *testing.T) (*chi.Mux, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	presets := preset.NewMemoryStore(preset.Seed())
	chatSvc := chatservice.NewService(st, presets, &fakeReplier{reply: "hello"}, fakeJudge{}, nil, chatservice.Options{})

	r := chi.NewRouter()
	New(chatSvc).RegisterRoutes(r)
	return r, st
}

func postChat(t *testing.T, r http.Handler, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()

	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestChatAllocatesSession(t *testing.T) {
	r, _ := setupRouter(t)

	resp := postChat(t, r, map[string]any{"userId": "u1", "message": "hi"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var reply chatservice.Reply
	if err := json.Unmarshal(resp.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.SessionID == "" {
		t.Fatal("expected an allocated session id")
	}
	if reply.Content != "hello" {
		t.Fatalf("unexpected content %q", reply.Content)
	}
}

func TestChatRejectsMissingFields(t *testing.T) {
	r, _ := setupRouter(t)

	if resp := postChat(t, r, map[string]any{"userId": "u1"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("missing message: expected 400, got %d", resp.Code)
	}
	if resp := postChat(t, r, map[string]any{"message": "hi"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("missing user: expected 400, got %d", resp.Code)
	}
	if resp := postChat(t, r, map[string]any{"userId": "u1", "message": "hi", "preset": "nope"}); resp.Code != http.StatusBadRequest {
		t.Fatalf("unknown preset: expected 400, got %d", resp.Code)
	}
}

func TestChatStreamSendsDeltas(t *testing.T) {
	r, _ := setupRouter(t)

	resp := postChat(t, r, map[string]any{"userId": "u1", "message": "hi", "stream": true})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	body := resp.Body.String()
	for _, want := range []string{`"event":"delta"`, "hel", "event: message\n", "event: end\n", "hello"} {
		if !strings.Contains(body, want) {
			t.Fatalf("stream body missing %q:\n%s", want, body)
		}
	}
}

func TestTranscriptAndSessions(t *testing.T) {
	r, _ := setupRouter(t)

	resp := postChat(t, r, map[string]any{"userId": "u1", "message": "hi there"})
	var reply chatservice.Reply
	if err := json.Unmarshal(resp.Body.Bytes(), &reply); err != nil {
		t.Fatalf("decode reply: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+reply.SessionID+"/transcript", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("transcript: expected 200, got %d", rec.Code)
	}

	var transcript struct {
		Turns []chatmodel.ConversationTurn `json:"turns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &transcript); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(transcript.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(transcript.Turns))
	}

	req = httptest.NewRequest(http.MethodGet, "/sessions?userId=u1", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("sessions: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), reply.SessionID) {
		t.Fatalf("session list missing %s: %s", reply.SessionID, rec.Body.String())
	}
}

func TestTranscriptUnknownSession(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/sessions/ghost/transcript", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
