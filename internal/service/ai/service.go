// Package ai generates the buddy's conversational replies through an eino
// chain over the configured chat model.
package ai

import (
	"context"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"

	"github.com/hikkinomore/buddy-server/internal/logger"
	"github.com/hikkinomore/buddy-server/internal/model/chat"
	"github.com/hikkinomore/buddy-server/internal/model/preset"
)

// Service encapsulates buddy reply generation.
type Service struct {
	chatModel model.BaseChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the reply chain: system prompt, prior turns, new query.
func NewService(ctx context.Context, chatModel model.BaseChatModel) (*Service, error) {
	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "compile buddy reply chain")
	}

	return &Service{chatModel: chatModel, chain: runnable}, nil
}

// ChatModel exposes the underlying model so other services (the skill judge)
// can reuse the same credentials and endpoint.
func (s *Service) ChatModel() model.BaseChatModel {
	return s.chatModel
}

// GenerateReply produces the buddy's answer to userMessage given prior turns.
func (s *Service) GenerateReply(ctx context.Context, p preset.Preset, history []chat.ConversationTurn, userMessage string, firstMessage bool) (string, error) {
	input := s.buildChainInput(p, history, userMessage, firstMessage)

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", errors.Wrap(err, "run buddy reply chain")
	}

	logger.G(ctx).WithField("preset", p.ID).WithField("length", len(response.Content)).Debug("generated buddy reply")
	return response.Content, nil
}

// StreamReply streams the buddy's answer chunk by chunk.
func (s *Service) StreamReply(ctx context.Context, p preset.Preset, history []chat.ConversationTurn, userMessage string, firstMessage bool) (*schema.StreamReader[*schema.Message], error) {
	input := s.buildChainInput(p, history, userMessage, firstMessage)

	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, "stream buddy reply chain")
	}
	return stream, nil
}

// GenerateReplyStream streams the answer, invoking onDelta per content chunk,
// and returns the concatenated reply once the stream is drained.
func (s *Service) GenerateReplyStream(ctx context.Context, p preset.Preset, history []chat.ConversationTurn, userMessage string, firstMessage bool, onDelta func(string)) (string, error) {
	stream, err := s.StreamReply(ctx, p, history, userMessage, firstMessage)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", errors.Wrap(recvErr, "receive stream chunk")
		}
		if chunk == nil {
			continue
		}

		chunks = append(chunks, chunk)
		if chunk.Content != "" && onDelta != nil {
			onDelta(chunk.Content)
		}
	}

	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return "", errors.Wrap(err, "concatenate stream chunks")
	}
	return response.Content, nil
}

func (s *Service) buildChainInput(p preset.Preset, history []chat.ConversationTurn, userMessage string, firstMessage bool) map[string]any {
	system := p.SystemPrompt
	if firstMessage && p.OpeningLine != "" {
		system += "\n\nStart the conversation with the following introduction:\n" + p.OpeningLine
	}

	return map[string]any{
		"system":  system,
		"history": toSchemaMessages(history),
		"query":   userMessage,
	}
}

// toSchemaMessages maps extracted turns onto eino schema messages. System
// turns are dropped: the chain supplies its own system prompt.
func toSchemaMessages(turns []chat.ConversationTurn) []*schema.Message {
	messages := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return messages
}
