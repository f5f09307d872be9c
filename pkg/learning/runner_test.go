package learning

import (
	"context"
	"errors"
	"testing"

	"research-assistant-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedLLM struct {
	response string
	err      error
	prompt   string
}

func (s *scriptedLLM) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return s.response, s.err
}

func (s *scriptedLLM) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	s.prompt = prompt
	return s.response, s.err
}

func TestRunStepParsesBulletLines(t *testing.T) {
	provider := &scriptedLLM{response: "Here you go:\n- first finding\n* second finding\n\nsome prose\n-  \n- third finding"}
	runner := NewLLMStepRunner(provider)

	insights, err := runner.RunStep(context.Background(), StepContentExtraction, DocumentSnapshot{Title: "T", Content: "body"}, nil)
	require.NoError(t, err)
	require.Len(t, insights, 3)
	assert.Equal(t, "first finding", insights[0].Content)
	assert.Equal(t, "second finding", insights[1].Content)
	assert.Equal(t, "third finding", insights[2].Content)
	for _, ins := range insights {
		assert.Equal(t, StepContentExtraction, ins.Step)
		assert.NotZero(t, ins.ID)
	}
}

func TestRunStepProseOnlyYieldsZeroInsights(t *testing.T) {
	provider := &scriptedLLM{response: "The document mainly discusses testing."}
	runner := NewLLMStepRunner(provider)

	insights, err := runner.RunStep(context.Background(), StepGapAnalysis, DocumentSnapshot{Content: "body"}, nil)
	require.NoError(t, err)
	assert.Empty(t, insights)
}

func TestRunStepSkipsEmptyDocument(t *testing.T) {
	runner := NewLLMStepRunner(&scriptedLLM{})

	_, err := runner.RunStep(context.Background(), StepContentExtraction, DocumentSnapshot{Content: "   \n"}, nil)
	assert.ErrorIs(t, err, ErrSkipStep)
}

func TestRunStepIncludesPriorFindings(t *testing.T) {
	provider := &scriptedLLM{response: "- ok"}
	runner := NewLLMStepRunner(provider)

	prior := []Insight{{Step: StepContentExtraction, Content: "earlier finding"}}
	_, err := runner.RunStep(context.Background(), StepInsightSynthesis, DocumentSnapshot{Title: "T", Content: "body"}, prior)
	require.NoError(t, err)
	assert.Contains(t, provider.prompt, "earlier finding")
	assert.Contains(t, provider.prompt, string(StepContentExtraction))
}

func TestRunStepPropagatesProviderError(t *testing.T) {
	provider := &scriptedLLM{err: errors.New("quota exceeded")}
	runner := NewLLMStepRunner(provider)

	_, err := runner.RunStep(context.Background(), StepContentExtraction, DocumentSnapshot{Content: "body"}, nil)
	assert.ErrorContains(t, err, "quota exceeded")
}
