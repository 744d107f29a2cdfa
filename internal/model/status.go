package model

import "time"

// IndexState is the lifecycle state of a user's RAG index.
//
// Transitions: not_built -> building -> ready, or building -> error.
// A new build from any state moves to building and clears prior error fields.
type IndexState string

const (
	IndexStateNotBuilt IndexState = "not_built"
	IndexStateBuilding IndexState = "building"
	IndexStateReady    IndexState = "ready"
	IndexStateError    IndexState = "error"
)

// StepInfo is the latest progress checkpoint reported during a build.
type StepInfo struct {
	Step      string            `json:"step"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// IndexStatus is the externally observable state of a user's index. It is the
// only mutable record the pipeline shares with the outside world.
type IndexStatus struct {
	State            IndexState `json:"state"`
	TotalChunks      int        `json:"total_chunks"`
	TotalPages       int        `json:"total_pages"`
	FailedEmbeddings int        `json:"failed_embeddings"`
	CurrentStep      *StepInfo  `json:"current_step,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	ErrorAt          *time.Time `json:"error_at,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
	LastUpdated      time.Time  `json:"last_updated"`
}

// NewBuildingStatus returns the status for a freshly started build. Prior
// error and completion fields do not carry over.
func NewBuildingStatus(now time.Time) IndexStatus {
	return IndexStatus{
		State:       IndexStateBuilding,
		StartedAt:   &now,
		LastUpdated: now,
	}
}

func (s IndexStatus) MarkReady(now time.Time, totalChunks, totalPages, failedEmbeddings int) IndexStatus {
	s.State = IndexStateReady
	s.TotalChunks = totalChunks
	s.TotalPages = totalPages
	s.FailedEmbeddings = failedEmbeddings
	s.CompletedAt = &now
	s.ErrorAt = nil
	s.LastError = ""
	s.LastUpdated = now
	return s
}

func (s IndexStatus) MarkError(now time.Time, message string) IndexStatus {
	s.State = IndexStateError
	s.ErrorAt = &now
	s.LastError = message
	s.LastUpdated = now
	return s
}
