package learning

import (
	"context"
	"fmt"
	"strings"
	"time"

	"research-assistant-be/pkg/llm"

	"github.com/google/uuid"
)

// stepPrompts drive the default LLM-backed runner. Each prompt asks for
// a plain bullet list so parsing stays trivial.
var stepPrompts = map[StepKind]string{
	StepContentExtraction:      "Extract the key claims, definitions and findings from the document below. Return each as a single bullet line starting with '- '.",
	StepPatternRecognition:     "Identify recurring patterns, themes or methods across the document below. Return each as a single bullet line starting with '- '.",
	StepConceptMapping:         "Map the central concepts of the document below and how they relate. Return each relation as a single bullet line starting with '- '.",
	StepGapAnalysis:            "List open questions, missing evidence or unexplored angles in the document below. Return each as a single bullet line starting with '- '.",
	StepInsightSynthesis:       "Synthesize higher-level insights by combining the findings so far with the document below. Return each insight as a single bullet line starting with '- '.",
	StepCrossReferenceLinking:  "Suggest cross-references between sections or concepts of the document below that should be linked. Return each as a single bullet line starting with '- '.",
	StepKnowledgeConsolidation: "Consolidate everything learned about the document below into a short list of durable takeaways. Return each as a single bullet line starting with '- '.",
}

// LLMStepRunner is the default StepRunner: one chat completion per
// step, with earlier steps' insights folded into the prompt.
type LLMStepRunner struct {
	provider llm.LLMProvider
	now      func() time.Time
}

var _ StepRunner = &LLMStepRunner{}

func NewLLMStepRunner(provider llm.LLMProvider) *LLMStepRunner {
	return &LLMStepRunner{provider: provider, now: time.Now}
}

func (r *LLMStepRunner) RunStep(ctx context.Context, step StepKind, snapshot DocumentSnapshot, prior []Insight) ([]Insight, error) {
	if strings.TrimSpace(snapshot.Content) == "" {
		return nil, ErrSkipStep
	}
	prompt, ok := stepPrompts[step]
	if !ok {
		return nil, fmt.Errorf("unknown step kind: %s", step)
	}

	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\n")
	if len(prior) > 0 {
		sb.WriteString("Findings from earlier steps of this pass:\n")
		for _, ins := range prior {
			sb.WriteString("- [")
			sb.WriteString(string(ins.Step))
			sb.WriteString("] ")
			sb.WriteString(ins.Content)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Document: ")
	sb.WriteString(snapshot.Title)
	sb.WriteString("\n\n")
	sb.WriteString(snapshot.Content)

	response, err := r.provider.Generate(ctx, sb.String(), llm.WithTemperature(0.4))
	if err != nil {
		return nil, fmt.Errorf("run step %s: %w", step, err)
	}

	return r.parseInsights(step, response), nil
}

// parseInsights keeps bullet lines only; a model answering in prose
// instead yields zero insights, which is a legitimate step result.
func (r *LLMStepRunner) parseInsights(step StepKind, response string) []Insight {
	var insights []Insight
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") && !strings.HasPrefix(line, "* ") {
			continue
		}
		content := strings.TrimSpace(line[2:])
		if content == "" {
			continue
		}
		insights = append(insights, Insight{
			ID:        uuid.New(),
			Step:      step,
			Content:   content,
			CreatedAt: r.now(),
		})
	}
	return insights
}
