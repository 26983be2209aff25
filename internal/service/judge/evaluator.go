package judge

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
)

// Evaluator is the narrow boundary to the external judging capability. The
// instruction text is fixed at construction time, not discovered at call
// time; implementations receive only the rendered conversation prompt and
// return the raw model output.
type Evaluator interface {
	Evaluate(ctx context.Context, prompt string) (string, error)
}

// ChainEvaluator runs the evaluation through a compiled eino chain over a
// chat model.
type ChainEvaluator struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewChainEvaluator compiles a system+user template chain with the supplied
// instructions baked into the system message.
func NewChainEvaluator(ctx context.Context, chatModel model.BaseChatModel, instructions string) (*ChainEvaluator, error) {
	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(instructions),
		schema.UserMessage("{conversation}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "compile skill judge chain")
	}
	return &ChainEvaluator{chain: runnable}, nil
}

// Evaluate invokes the chain with the rendered conversation.
func (e *ChainEvaluator) Evaluate(ctx context.Context, conversation string) (string, error) {
	msg, err := e.chain.Invoke(ctx, map[string]any{"conversation": conversation})
	if err != nil {
		return "", errors.Wrap(err, "invoke skill judge chain")
	}
	if msg == nil {
		return "", errors.New("skill judge chain returned no message")
	}
	return msg.Content, nil
}
