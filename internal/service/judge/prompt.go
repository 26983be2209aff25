package judge

import (
	"fmt"
	"strings"

	"github.com/hikkinomore/buddy-server/internal/model/skill"
)

// Instructions builds the fixed evaluator system prompt enumerating the skill
// taxonomy and the scoring rubric. It is computed once at construction.
func Instructions(taxonomy []skill.Definition) string {
	var skills strings.Builder
	for _, def := range taxonomy {
		fmt.Fprintf(&skills, "- %s: %s\n", def.Name, def.Description)
	}

	return fmt.Sprintf(`You are an expert social skills evaluator. Your job is to analyze conversations and identify when users demonstrate specific social skills.

Available Social Skills:
%s
Your task:
1. Review the conversation context provided
2. Identify if the user demonstrated any of the above social skills
3. Rate the demonstration on a scale from -1.0 to 1.0:
   - 1.0: Excellent demonstration of the skill
   - 0.5: Good demonstration with minor room for improvement
   - 0.0: Neutral or no clear demonstration
   - -0.5: Poor demonstration or missed opportunity
   - -1.0: Behavior that contradicts or undermines the skill

4. Provide a brief, specific reason for your rating
5. Indicate your confidence level (0.0 to 1.0) in the assessment

Important guidelines:
- Focus ONLY on the user's messages and behavior, not the assistant's
- Look for specific behaviors that demonstrate skills, not just topic discussion
- Consider context - what might be appropriate in one situation may not be in another
- Be constructive in your feedback
- If multiple skills are demonstrated, choose the most prominent one
- Return null for skill_type if no clear skill demonstration is observed

Respond with only a JSON object with the fields skill_type (string or null), score (number), reason (string), confidence (number). Do not add any other text.`, skills.String())
}

const evaluationPrompt = `Analyze this conversation for social skill demonstration:

%s

Focus on the user's behavior and provide your evaluation.`
