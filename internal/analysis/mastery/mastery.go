// Package mastery aggregates persisted skill judgments into per-skill
// weighted scores, mastery flags and a per-user summary. All functions are
// pure reads over their inputs.
package mastery

import (
	"math"
	"sort"
	"time"

	"github.com/hikkinomore/buddy-server/internal/model/skill"
)

const (
	// RecencyAlpha is the fractional weight each new observation contributes
	// under the position-based policy. Higher favors recent evidence.
	RecencyAlpha = 0.7
	// MasteryThreshold is the weighted score a skill must reach.
	MasteryThreshold = 0.8
	// MinScoresForMastery guards against classifying on thin evidence.
	MinScoresForMastery = 3

	// Time-decay mode constants.
	decayDays = 30.0
	minWeight = 0.1
)

// Policy selects how observation age discounts older scores.
type Policy int

const (
	// PolicyRecency is position-based: each newer score blends in with a
	// fixed alpha regardless of the wall-clock gap. This is the default.
	PolicyRecency Policy = iota
	// PolicyTimeDecay weights scores by calendar distance from the latest
	// observation.
	PolicyTimeDecay
)

// ScorePoint is one observed score with the store-assigned timestamp.
type ScorePoint struct {
	Score     float64
	Timestamp time.Time
}

// WeightedScore computes the position-based recency blend: sort ascending by
// timestamp, seed with the earliest score, then fold each later score in with
// RecencyAlpha. Empty input yields 0.
func WeightedScore(points []ScorePoint) float64 {
	if len(points) == 0 {
		return 0
	}

	sorted := sortedByTime(points)
	weighted := sorted[0].Score
	for _, p := range sorted[1:] {
		weighted = RecencyAlpha*p.Score + (1-RecencyAlpha)*weighted
	}
	return weighted
}

// TimeDecayedScore computes the calendar-time variant: each score is weighted
// by max(minWeight, exp(-daysSinceLatest/decayDays)) and the weighted average
// is returned. Empty input yields 0.
func TimeDecayedScore(points []ScorePoint) float64 {
	if len(points) == 0 {
		return 0
	}

	sorted := sortedByTime(points)
	latest := sorted[len(sorted)-1].Timestamp

	var sum, weightSum float64
	for _, p := range sorted {
		days := latest.Sub(p.Timestamp).Hours() / 24
		weight := math.Max(minWeight, math.Exp(-days/decayDays))
		sum += weight * p.Score
		weightSum += weight
	}
	return sum / weightSum
}

// Score dispatches on the configured policy.
func Score(points []ScorePoint, policy Policy) float64 {
	if policy == PolicyTimeDecay {
		return TimeDecayedScore(points)
	}
	return WeightedScore(points)
}

// IsMastered reports whether the evidence is both sufficient and strong
// enough: at least MinScoresForMastery observations and a weighted score at
// or above MasteryThreshold.
func IsMastered(points []ScorePoint, policy Policy) bool {
	if len(points) < MinScoresForMastery {
		return false
	}
	return Score(points, policy) >= MasteryThreshold
}

// Summarize groups non-null judgments by skill and reports a status row for
// every skill in the taxonomy, including those never evaluated.
func Summarize(taxonomy []skill.Definition, records []skill.Record, policy Policy) skill.UserSkillSummary {
	grouped := make(map[string][]ScorePoint)
	for _, rec := range records {
		if !rec.Detected() {
			continue
		}
		name := *rec.SkillType
		grouped[name] = append(grouped[name], ScorePoint{Score: rec.Score, Timestamp: rec.Timestamp})
	}

	summary := skill.UserSkillSummary{
		TotalSkills:  len(taxonomy),
		SkillDetails: make(map[string]skill.Status, len(taxonomy)),
	}

	for _, def := range taxonomy {
		points := grouped[def.Name]
		status := skill.Status{
			TotalEvaluations: len(points),
		}
		if len(points) > 0 {
			status.WeightedScore = Score(points, policy)
			status.IsMastered = IsMastered(points, policy)
			sorted := sortedByTime(points)
			latest := sorted[len(sorted)-1].Score
			status.LatestScore = &latest
		}

		if status.IsMastered {
			summary.MasteredSkills++
		} else if status.TotalEvaluations > 0 {
			summary.SkillsInProgress++
		}
		summary.SkillDetails[def.Name] = status
	}

	return summary
}

func sortedByTime(points []ScorePoint) []ScorePoint {
	sorted := append([]ScorePoint(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}
