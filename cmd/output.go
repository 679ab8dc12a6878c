package cmd

import (
	"context"
	"io"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tapcore/tapcore/pkg/extract"
	"github.com/tapcore/tapcore/pkg/state"
)

// messageWriter emits record and state messages as JSON lines. It serves
// as both the record sink and the state store of the CLI; real deployments
// substitute their own writers.
type messageWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newMessageWriter(w io.Writer) *messageWriter {
	return &messageWriter{enc: json.NewEncoder(w)}
}

type recordMessage struct {
	Type   string          `json:"type"`
	Stream string          `json:"stream"`
	Record *extract.Record `json:"record"`
}

type stateMessage struct {
	Type  string         `json:"type"`
	Value state.Document `json:"value"`
}

func (w *messageWriter) WriteRecord(_ context.Context, rec *extract.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(recordMessage{Type: "RECORD", Stream: rec.Stream, Record: rec})
}

func (w *messageWriter) WriteState(_ context.Context, doc state.Document) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(stateMessage{Type: "STATE", Value: doc})
}
