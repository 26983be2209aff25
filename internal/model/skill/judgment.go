package skill

import "time"

// Judgment is the evaluator's raw verdict on one transcript window. A nil
// SkillType means the evaluation ran but no skill was clearly demonstrated;
// such judgments are never aggregated.
type Judgment struct {
	SkillType  *string `json:"skill_type"`
	Score      float64 `json:"score"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// NullJudgment builds a no-skill verdict carrying only a reason.
func NullJudgment(reason string) Judgment {
	return Judgment{SkillType: nil, Score: 0, Reason: reason, Confidence: 0}
}

// Detected reports whether the judgment names a skill.
func (j Judgment) Detected() bool {
	return j.SkillType != nil && *j.SkillType != ""
}

// Record is a persisted judgment. The timestamp is assigned by the store at
// write time; callers cannot forge history ordering.
type Record struct {
	Judgment
	UserID              string    `json:"user_id"`
	SessionID           string    `json:"session_id"`
	ConversationContext string    `json:"conversation_context"`
	Timestamp           time.Time `json:"timestamp"`
}

// Status is the derived state of one skill for one user, recomputed on demand
// from the full judgment history.
type Status struct {
	WeightedScore    float64  `json:"weighted_score"`
	IsMastered       bool     `json:"is_mastered"`
	TotalEvaluations int      `json:"total_evaluations"`
	LatestScore      *float64 `json:"latest_score"`
}

// UserSkillSummary rolls up per-skill status over the whole taxonomy.
type UserSkillSummary struct {
	TotalSkills      int               `json:"total_skills"`
	MasteredSkills   int               `json:"mastered_skills"`
	SkillsInProgress int               `json:"skills_in_progress"`
	SkillDetails     map[string]Status `json:"skill_details"`
}
