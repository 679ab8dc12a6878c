// Package state tracks per-stream extraction progress and its stable
// serialization across runs.
package state

import (
	"github.com/goccy/go-json"

	"github.com/tapcore/tapcore/pkg/taperrors"
)

// Status is the lifecycle state of one stream within a run.
type Status string

const (
	StatusPending      Status = "pending"
	StatusExtracting   Status = "extracting"
	StatusCheckpointed Status = "checkpointed"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// transitions holds the allowed state machine edges:
// pending -> extracting -> checkpointed (loop) -> completed | failed.
var transitions = map[Status][]Status{
	StatusPending:      {StatusExtracting, StatusFailed},
	StatusExtracting:   {StatusCheckpointed, StatusCompleted, StatusFailed},
	StatusCheckpointed: {StatusExtracting, StatusCompleted, StatusFailed},
}

// StreamState is the mutable extraction state of one stream. It is owned
// by the single worker driving the stream.
type StreamState struct {
	StreamID string      `json:"stream_id"`
	Status   Status      `json:"status"`
	Bookmark interface{} `json:"bookmark,omitempty"`
	Records  int64       `json:"records"`
	Error    string      `json:"error,omitempty"`
}

// New creates a pending state for the given stream.
func New(streamID string) *StreamState {
	return &StreamState{
		StreamID: streamID,
		Status:   StatusPending,
	}
}

// Transition moves the stream to the given status, enforcing the state
// machine. Terminal states reject every transition.
func (s *StreamState) Transition(to Status) error {
	for _, allowed := range transitions[s.Status] {
		if allowed == to {
			s.Status = to
			return nil
		}
	}
	return taperrors.Newf(taperrors.ErrorTypeState,
		"invalid transition %s -> %s for stream %s", s.Status, to, s.StreamID)
}

// Fail marks the stream failed with the underlying cause. Failed is
// terminal; it never cascades to other streams.
func (s *StreamState) Fail(err error) {
	s.Status = StatusFailed
	if err != nil {
		s.Error = err.Error()
	}
}

// Document is the persisted checkpoint shape for one active stream.
type Document struct {
	StreamID string      `json:"stream_id"`
	Bookmark interface{} `json:"bookmark,omitempty"`
}

// Document returns the stable serialization of the stream's current
// position.
func (s *StreamState) Document() Document {
	return Document{
		StreamID: s.StreamID,
		Bookmark: s.Bookmark,
	}
}

// Marshal serializes a state document.
func (d Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}
