// Package judge wraps the external evaluator capability into a best-effort
// skill judgment: protocol failures and malformed output become null
// judgments, never errors.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hikkinomore/buddy-server/internal/analysis/transcript"
	"github.com/hikkinomore/buddy-server/internal/logger"
	"github.com/hikkinomore/buddy-server/internal/model/chat"
	"github.com/hikkinomore/buddy-server/internal/model/skill"
)

const reasonInsufficientHistory = "insufficient conversation history for evaluation"

// Service converts transcripts into skill judgments via an Evaluator.
type Service struct {
	evaluator Evaluator
	taxonomy  []skill.Definition
}

// New builds the judge service over the supplied evaluator.
func New(evaluator Evaluator) *Service {
	return &Service{
		evaluator: evaluator,
		taxonomy:  skill.Taxonomy(),
	}
}

// judgmentPayload mirrors the JSON object the evaluator is instructed to
// return. skill_type arrives either as structural null or as a literal
// null-ish string, depending on the model's mood.
type judgmentPayload struct {
	SkillType  *string `json:"skill_type"`
	Score      float64 `json:"score"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// Judge evaluates the transcript window. With fewer than two turns the
// evaluator is not invoked at all. The returned judgment always has a nil
// SkillType on any evaluator failure, carrying the cause in Reason.
func (s *Service) Judge(ctx context.Context, turns []chat.ConversationTurn) skill.Judgment {
	if len(turns) < 2 {
		return skill.NullJudgment(reasonInsufficientHistory)
	}

	conversation := fmt.Sprintf(evaluationPrompt, transcript.Format(turns))

	raw, err := s.evaluator.Evaluate(ctx, conversation)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("skill evaluator invocation failed")
		return skill.NullJudgment(fmt.Sprintf("evaluation error: %v", err))
	}

	payload, err := parseJudgment(raw)
	if err != nil {
		logger.G(ctx).WithError(err).WithField("output", raw).Warn("skill evaluator returned malformed output")
		return skill.NullJudgment(fmt.Sprintf("evaluation error: %v", err))
	}

	return s.normalize(ctx, payload)
}

// parseJudgment extracts the first JSON object from the model output; models
// routinely wrap it in prose or code fences.
func parseJudgment(content string) (judgmentPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end <= start {
		return judgmentPayload{}, fmt.Errorf("missing json object in evaluator output")
	}

	var payload judgmentPayload
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &payload); err != nil {
		return judgmentPayload{}, fmt.Errorf("decode evaluator output: %w", err)
	}
	return payload, nil
}

// normalize folds null-ish skill names into a true null, rejects names
// outside the taxonomy, and clamps score and confidence into their ranges.
func (s *Service) normalize(ctx context.Context, payload judgmentPayload) skill.Judgment {
	j := skill.Judgment{
		Score:      clamp(payload.Score, -1, 1),
		Reason:     strings.TrimSpace(payload.Reason),
		Confidence: clamp(payload.Confidence, 0, 1),
	}

	if payload.SkillType == nil {
		return j
	}

	name := strings.TrimSpace(*payload.SkillType)
	switch strings.ToLower(name) {
	case "", "null", "none", "na", "nil", "n/a":
		return j
	}

	if !skill.Known(name) {
		logger.G(ctx).WithField("skill_type", name).Warn("evaluator returned unknown skill type")
		return j
	}

	j.SkillType = &name
	return j
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
