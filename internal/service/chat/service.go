// Package chat orchestrates the conversation pipeline: session bookkeeping,
// buddy replies, history persistence and best-effort skill evaluation.
package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hikkinomore/buddy-server/internal/analysis/mastery"
	"github.com/hikkinomore/buddy-server/internal/analysis/transcript"
	"github.com/hikkinomore/buddy-server/internal/logger"
	"github.com/hikkinomore/buddy-server/internal/model/chat"
	"github.com/hikkinomore/buddy-server/internal/model/preset"
	"github.com/hikkinomore/buddy-server/internal/model/skill"
	"github.com/hikkinomore/buddy-server/internal/store"
	"github.com/hikkinomore/buddy-server/internal/studylog"
)

// timeNow is a seam for tests that need deterministic record timestamps.
var timeNow = time.Now

var (
	ErrEmptyMessage   = errors.New("message is required")
	ErrEmptyUser      = errors.New("user id is required")
	ErrPresetNotFound = errors.New("preset not found")
)

// ReplyGenerator produces the buddy's answer for a transcript window.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, p preset.Preset, history []chat.ConversationTurn, userMessage string, firstMessage bool) (string, error)
}

// StreamReplyGenerator is implemented by repliers that can deliver the answer
// incrementally through onDelta before returning the full content.
type StreamReplyGenerator interface {
	GenerateReplyStream(ctx context.Context, p preset.Preset, history []chat.ConversationTurn, userMessage string, firstMessage bool, onDelta func(string)) (string, error)
}

// Judge converts a transcript window into a skill judgment. Implementations
// are best-effort and never return an error.
type Judge interface {
	Judge(ctx context.Context, turns []chat.ConversationTurn) skill.Judgment
}

// Options tunes the evaluation pipeline.
type Options struct {
	// EvalEnabled turns the per-exchange skill evaluation on.
	EvalEnabled bool
	// EvalRecentRecords limits evaluation to the last N records; zero or
	// negative means the whole history.
	EvalRecentRecords int
	// MasteryPolicy selects the aggregation mode for summaries.
	MasteryPolicy mastery.Policy
}

// Service is the conversation orchestrator.
type Service struct {
	store    store.Store
	presets  preset.Store
	replier  ReplyGenerator
	judge    Judge
	observer studylog.Observer
	opts     Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService wires the orchestrator. A nil observer defaults to the no-op.
func NewService(st store.Store, presets preset.Store, replier ReplyGenerator, judge Judge, observer studylog.Observer, opts Options) *Service {
	if observer == nil {
		observer = studylog.Nop()
	}
	return &Service{
		store:    st,
		presets:  presets,
		replier:  replier,
		judge:    judge,
		observer: observer,
		opts:     opts,
		locks:    make(map[string]*sync.Mutex),
	}
}

// Reply is the outcome of one exchange.
type Reply struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
}

// HandleMessage runs one conversation exchange: ensure the session, generate
// the buddy reply, append both records, then evaluate skills best-effort.
// An empty sessionID allocates a fresh one.
func (s *Service) HandleMessage(ctx context.Context, userID, sessionID, presetID, msg string) (Reply, error) {
	return s.handleMessage(ctx, userID, sessionID, presetID, msg, nil)
}

// HandleMessageStream is HandleMessage with incremental delivery: onDelta is
// invoked per reply chunk when the replier supports streaming, otherwise once
// with the whole reply. Persistence and evaluation behave identically.
func (s *Service) HandleMessageStream(ctx context.Context, userID, sessionID, presetID, msg string, onDelta func(string)) (Reply, error) {
	return s.handleMessage(ctx, userID, sessionID, presetID, msg, onDelta)
}

func (s *Service) handleMessage(ctx context.Context, userID, sessionID, presetID, msg string, onDelta func(string)) (Reply, error) {
	if msg == "" {
		return Reply{}, ErrEmptyMessage
	}
	if userID == "" {
		return Reply{}, ErrEmptyUser
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if presetID == "" {
		presetID = preset.DefaultID
	}
	p, ok := s.presets.FindByID(presetID)
	if !ok {
		return Reply{}, ErrPresetNotFound
	}

	// Appends within one session are linearized; different sessions proceed
	// independently.
	unlock := s.lockSession(sessionID)
	defer unlock()

	if err := s.store.EnsureUser(ctx, userID); err != nil {
		return Reply{}, err
	}
	if err := s.store.EnsureSession(ctx, sessionID, userID); err != nil {
		return Reply{}, err
	}

	history, err := s.store.Messages(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}

	firstMessage := len(history) == 0
	if firstMessage {
		s.observer.SessionStart(userID, sessionID)
	}

	turns := transcript.Extract(ctx, history, transcript.Options{SkipSystem: true, SkipTool: true})

	content, err := s.generateReply(ctx, p, turns, msg, firstMessage, onDelta)
	if err != nil {
		return Reply{}, errors.Wrap(err, "generate reply")
	}

	now := timeNow()
	exchange := []chat.Record{
		chat.UserRecord(msg, now),
		chat.AssistantRecord(content, now),
	}
	if err := s.store.AppendMessages(ctx, sessionID, exchange); err != nil {
		return Reply{}, err
	}

	s.observer.UserMessage(userID, sessionID, msg)
	s.observer.AssistantMessage(userID, sessionID, content)

	if s.opts.EvalEnabled {
		// Evaluation must never break the conversation flow; storage outages
		// are the only errors surfaced, and only in the log.
		if _, _, err := s.EvaluateRecent(ctx, userID, sessionID, s.opts.EvalRecentRecords); err != nil {
			logger.G(ctx).WithError(err).WithField("session_id", sessionID).Error("skill evaluation persist failed")
			s.observer.Error(userID, sessionID, "skill evaluation persist failed: "+err.Error())
		}
	}

	return Reply{SessionID: sessionID, Content: content}, nil
}

// EvaluateRecent judges the last recentRecords records of the session and
// persists the judgment when a skill was detected. The returned bool reports
// whether a record was stored. Evaluator failures yield a null judgment and
// a nil error; only storage failures are errors.
func (s *Service) EvaluateRecent(ctx context.Context, userID, sessionID string, recentRecords int) (skill.Judgment, bool, error) {
	history, err := s.store.Messages(ctx, sessionID)
	if err != nil {
		return skill.Judgment{}, false, err
	}
	if len(history) < 2 {
		return skill.NullJudgment("insufficient conversation history for evaluation"), false, nil
	}

	turns := transcript.Extract(ctx, history, transcript.Options{
		Limit:      recentRecords,
		SkipSystem: true,
		SkipTool:   true,
	})
	if len(turns) == 0 {
		return skill.NullJudgment("no valid conversation content found for evaluation"), false, nil
	}

	judgment := s.judge.Judge(ctx, turns)
	if !judgment.Detected() {
		logger.G(ctx).WithField("session_id", sessionID).WithField("reason", judgment.Reason).Debug("no skill detected")
		return judgment, false, nil
	}

	snapshot := contextSnapshot(turns)
	if _, err := s.store.AppendEvaluation(ctx, userID, sessionID, judgment, snapshot); err != nil {
		return judgment, false, err
	}

	s.observer.Judgment(userID, sessionID, judgment)
	logger.G(ctx).WithField("session_id", sessionID).
		WithField("skill", *judgment.SkillType).
		WithField("score", judgment.Score).
		Info("recorded skill evaluation")

	return judgment, true, nil
}

// SkillSummary aggregates the user's full judgment history into per-skill
// status over the whole taxonomy.
func (s *Service) SkillSummary(ctx context.Context, userID string) (skill.UserSkillSummary, error) {
	records, err := s.store.SkillHistory(ctx, userID, "")
	if err != nil {
		return skill.UserSkillSummary{}, err
	}
	return mastery.Summarize(skill.Taxonomy(), records, s.opts.MasteryPolicy), nil
}

// SkillHistory lists persisted judgments, optionally scoped to one session.
func (s *Service) SkillHistory(ctx context.Context, userID, sessionID string) ([]skill.Record, error) {
	return s.store.SkillHistory(ctx, userID, sessionID)
}

// Sessions lists the user's session ids.
func (s *Service) Sessions(ctx context.Context, userID string) ([]string, error) {
	return s.store.UserSessions(ctx, userID)
}

// Transcript returns the extracted turns of a session for display.
func (s *Service) Transcript(ctx context.Context, sessionID string, limit int) ([]chat.ConversationTurn, error) {
	if _, err := s.store.Session(ctx, sessionID); err != nil {
		return nil, err
	}
	history, err := s.store.Messages(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return transcript.Extract(ctx, history, transcript.Options{Limit: limit, SkipSystem: true, SkipTool: true}), nil
}

func (s *Service) generateReply(ctx context.Context, p preset.Preset, turns []chat.ConversationTurn, msg string, firstMessage bool, onDelta func(string)) (string, error) {
	if onDelta != nil {
		if streamer, ok := s.replier.(StreamReplyGenerator); ok {
			return streamer.GenerateReplyStream(ctx, p, turns, msg, firstMessage, onDelta)
		}
	}
	content, err := s.replier.GenerateReply(ctx, p, turns, msg, firstMessage)
	if err == nil && onDelta != nil {
		onDelta(content)
	}
	return content, err
}

func (s *Service) lockSession(sessionID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// contextSnapshot serializes the judged window for the stored record.
func contextSnapshot(turns []chat.ConversationTurn) string {
	data, err := json.Marshal(turns)
	if err != nil {
		return transcript.Format(turns)
	}
	return string(data)
}
