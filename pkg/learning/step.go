package learning

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// StepKind names one analytical stage of a learning pass.
type StepKind string

const (
	StepContentExtraction      StepKind = "content-extraction"
	StepPatternRecognition     StepKind = "pattern-recognition"
	StepConceptMapping         StepKind = "concept-mapping"
	StepGapAnalysis            StepKind = "gap-analysis"
	StepInsightSynthesis       StepKind = "insight-synthesis"
	StepCrossReferenceLinking  StepKind = "cross-reference-linking"
	StepKnowledgeConsolidation StepKind = "knowledge-consolidation"
)

// StepTable is the fixed, ordered step sequence of one pass. Order is
// significant: later steps consume earlier steps' insights through the
// accumulated pass context.
var StepTable = []StepKind{
	StepContentExtraction,
	StepPatternRecognition,
	StepConceptMapping,
	StepGapAnalysis,
	StepInsightSynthesis,
	StepCrossReferenceLinking,
	StepKnowledgeConsolidation,
}

// ErrSkipStep signals that a step's prerequisites are missing. The step
// resolves as skipped, not errored.
var ErrSkipStep = errors.New("step prerequisites missing")

// Insight is one discrete unit of step output, later materialized into
// document content by the persistence collaborator.
type Insight struct {
	ID        uuid.UUID `json:"id"`
	Step      StepKind  `json:"step"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentSnapshot is the read-only view of the analyzed document a
// step runs against.
type DocumentSnapshot struct {
	DocumentID uuid.UUID
	Title      string
	Content    string
}

// StepRunner executes one analytical step. prior carries the insights
// produced by earlier steps of the same pass. Zero insights is success,
// not failure.
type StepRunner interface {
	RunStep(ctx context.Context, step StepKind, snapshot DocumentSnapshot, prior []Insight) ([]Insight, error)
}
