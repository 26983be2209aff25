package judge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hikkinomore/buddy-server/internal/model/chat"
)

type stubEvaluator struct {
	output string
	err    error
	calls  int
	prompt string
}

func (s *stubEvaluator) Evaluate(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.prompt = prompt
	return s.output, s.err
}

func turns(contents ...string) []chat.ConversationTurn {
	out := make([]chat.ConversationTurn, len(contents))
	for i, c := range contents {
		role := chat.RoleUser
		if i%2 == 1 {
			role = chat.RoleAssistant
		}
		out[i] = chat.ConversationTurn{Role: role, Content: c}
	}
	return out
}

func TestJudgeEmptyTranscript(t *testing.T) {
	stub := &stubEvaluator{}
	j := New(stub).Judge(context.Background(), nil)

	assert.Nil(t, j.SkillType)
	assert.Equal(t, reasonInsufficientHistory, j.Reason)
	assert.Zero(t, stub.calls, "evaluator must not be invoked")
}

func TestJudgeSingleTurnInsufficient(t *testing.T) {
	stub := &stubEvaluator{}
	j := New(stub).Judge(context.Background(), turns("hi"))

	assert.Nil(t, j.SkillType)
	assert.Equal(t, reasonInsufficientHistory, j.Reason)
	assert.Zero(t, stub.calls)
}

func TestJudgeValidOutput(t *testing.T) {
	stub := &stubEvaluator{output: `{"skill_type":"empathy","score":0.5,"reason":"acknowledged feelings","confidence":0.9}`}
	j := New(stub).Judge(context.Background(), turns("i hear you, that sounds rough", "thanks"))

	assert.True(t, j.Detected())
	assert.Equal(t, "empathy", *j.SkillType)
	assert.Equal(t, 0.5, j.Score)
	assert.Equal(t, "acknowledged feelings", j.Reason)
	assert.Equal(t, 0.9, j.Confidence)
	assert.Equal(t, 1, stub.calls)
	assert.True(t, strings.Contains(stub.prompt, "USER: i hear you"), "prompt should contain formatted turns")
}

func TestJudgeOutputWrappedInProse(t *testing.T) {
	stub := &stubEvaluator{output: "Sure! Here is my verdict:\n```json\n{\"skill_type\":\"small_talk\",\"score\":0.5,\"reason\":\"r\",\"confidence\":0.8}\n```"}
	j := New(stub).Judge(context.Background(), turns("nice weather today", "indeed"))

	assert.True(t, j.Detected())
	assert.Equal(t, "small_talk", *j.SkillType)
}

func TestJudgeNullishStringsNormalized(t *testing.T) {
	for _, raw := range []string{"null", "None", "NA", "nil", "N/A"} {
		stub := &stubEvaluator{output: `{"skill_type":"` + raw + `","score":0,"reason":"nothing","confidence":0.4}`}
		j := New(stub).Judge(context.Background(), turns("a", "b"))
		assert.Nil(t, j.SkillType, "%q should normalize to null", raw)
	}
}

func TestJudgeUnknownSkillRejected(t *testing.T) {
	stub := &stubEvaluator{output: `{"skill_type":"telekinesis","score":1,"reason":"moved the cup","confidence":1}`}
	j := New(stub).Judge(context.Background(), turns("a", "b"))

	assert.Nil(t, j.SkillType)
}

func TestJudgeEvaluatorFailure(t *testing.T) {
	stub := &stubEvaluator{err: errors.New("model timeout")}
	j := New(stub).Judge(context.Background(), turns("a", "b"))

	assert.Nil(t, j.SkillType)
	assert.Contains(t, j.Reason, "evaluation error")
	assert.Contains(t, j.Reason, "model timeout")
}

func TestJudgeMalformedOutput(t *testing.T) {
	stub := &stubEvaluator{output: "I cannot judge this conversation."}
	j := New(stub).Judge(context.Background(), turns("a", "b"))

	assert.Nil(t, j.SkillType)
	assert.Contains(t, j.Reason, "evaluation error")
}

func TestJudgeClampsRanges(t *testing.T) {
	stub := &stubEvaluator{output: `{"skill_type":"empathy","score":3.5,"reason":"r","confidence":-2}`}
	j := New(stub).Judge(context.Background(), turns("a", "b"))

	assert.Equal(t, 1.0, j.Score)
	assert.Equal(t, 0.0, j.Confidence)
}

func TestInstructionsEnumerateTaxonomy(t *testing.T) {
	text := Instructions(New(&stubEvaluator{}).taxonomy)
	for _, name := range []string{"active_listening", "empathy", "small_talk", "boundary_setting"} {
		assert.Contains(t, text, name)
	}
	assert.Contains(t, text, "-1.0")
}
