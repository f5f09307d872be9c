package dto

import "github.com/google/uuid"

// PublishEmbedInsightMessage is the internal bus payload asking the
// consumer to embed one persisted insight.
type PublishEmbedInsightMessage struct {
	InsightId uuid.UUID `json:"insight_id"`
}
