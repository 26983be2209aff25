// Package transcript converts raw conversation records into plain
// role-labeled turns suitable for skill evaluation.
package transcript

import (
	"context"
	"strings"

	"github.com/hikkinomore/buddy-server/internal/logger"
	"github.com/hikkinomore/buddy-server/internal/model/chat"
)

// Options controls which parts of the history survive extraction.
type Options struct {
	// Limit keeps only the last Limit records (not turns) when positive.
	Limit int
	// SkipSystem drops system-prompt parts.
	SkipSystem bool
	// SkipTool drops tool-call, tool-return and retry-prompt parts. Tool
	// parts are never turned into evaluable turns in this version, so the
	// flag is reserved for future display-only use.
	SkipTool bool
}

// Extract flattens an ordered record history into ordered conversation turns.
// The function is pure: the same history always yields the same turns, and
// output order matches record and part order.
func Extract(ctx context.Context, history []chat.Record, opts Options) []chat.ConversationTurn {
	if opts.Limit > 0 && len(history) > opts.Limit {
		history = history[len(history)-opts.Limit:]
	}

	turns := make([]chat.ConversationTurn, 0, len(history))
	for _, record := range history {
		defaultRole := record.DefaultRole()
		for _, part := range record.Parts {
			role := defaultRole
			var content string

			switch part.Kind {
			case chat.PartSystemPrompt:
				if opts.SkipSystem {
					continue
				}
				role = chat.RoleSystem
				content = part.Content
			case chat.PartUserPrompt:
				role = chat.RoleUser
				content = part.TextContent()
			case chat.PartText:
				role = chat.RoleAssistant
				content = part.Content
			case chat.PartThinking:
				// Internal reasoning is never user-visible.
				continue
			case chat.PartToolCall, chat.PartToolReturn, chat.PartRetryPrompt:
				continue
			default:
				logger.G(ctx).WithField("part_kind", part.Kind).Debug("skipping unhandled part kind")
				continue
			}

			if strings.TrimSpace(content) == "" {
				continue
			}

			turns = append(turns, chat.ConversationTurn{
				Role:      role,
				Content:   content,
				Timestamp: part.Timestamp,
			})
		}
	}

	return turns
}

// Format renders turns into the single prompt block consumed by the skill
// evaluator: one line per turn, "ROLE [HH:MM:SS]: content" with the time
// marker present only when the turn carries a timestamp.
func Format(turns []chat.ConversationTurn) string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		marker := ""
		if turn.Timestamp != nil {
			marker = " [" + turn.Timestamp.Format("15:04:05") + "]"
		}
		lines = append(lines, strings.ToUpper(string(turn.Role))+marker+": "+turn.Content)
	}
	return strings.Join(lines, "\n")
}
