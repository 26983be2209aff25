// Package skill defines the fixed social-skill taxonomy and the judgment
// types produced by the evaluator and persisted per user.
package skill

// Definition names one social skill and what counts as demonstrating it. The
// one-line description is embedded verbatim in the evaluator instructions.
type Definition struct {
	Name        string
	Description string
}

// Taxonomy is the closed set of skills tracked per user. Summaries always
// report one row per entry, evaluated or not.
func Taxonomy() []Definition {
	return []Definition{
		{"active_listening", "Shows understanding by paraphrasing, asking clarifying questions, or reflecting back what was heard."},
		{"assertiveness", "Expresses opinions, needs, or boundaries clearly and respectfully without being aggressive or passive."},
		{"empathy", "Demonstrates understanding and acknowledgment of another person's feelings and perspectives."},
		{"conversation_initiation", "Starts conversations naturally and appropriately in social contexts."},
		{"conflict_resolution", "Addresses disagreements or tensions constructively and seeks mutually beneficial solutions."},
		{"emotional_regulation", "Manages own emotions appropriately in social situations, staying calm under pressure."},
		{"social_awareness", "Reads social cues, understands group dynamics, and adapts behavior to social context."},
		{"encouragement", "Provides positive support, validation, or motivation to others."},
		{"boundary_setting", "Clearly communicates personal limits and respects others' boundaries."},
		{"small_talk", "Engages in light, casual conversation to build rapport and maintain social connections."},
	}
}

// Known reports whether name belongs to the taxonomy.
func Known(name string) bool {
	for _, def := range Taxonomy() {
		if def.Name == name {
			return true
		}
	}
	return false
}
