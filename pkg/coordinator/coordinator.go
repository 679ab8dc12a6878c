// Package coordinator drives discovery and extraction across the selected
// streams of a run.
//
// Streams are processed sequentially by a single worker each, with one
// dedicated connection per stream. A stream failure is terminal for that
// stream only; state already persisted for other streams is never
// discarded.
package coordinator

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tapcore/tapcore/pkg/catalog"
	"github.com/tapcore/tapcore/pkg/config"
	"github.com/tapcore/tapcore/pkg/discovery"
	"github.com/tapcore/tapcore/pkg/extract"
	"github.com/tapcore/tapcore/pkg/logger"
	"github.com/tapcore/tapcore/pkg/metrics"
	"github.com/tapcore/tapcore/pkg/state"
	"github.com/tapcore/tapcore/pkg/taperrors"
)

// RecordWriter receives extracted records. The sink side is an external
// collaborator; the coordinator only defines its shape.
type RecordWriter interface {
	WriteRecord(ctx context.Context, rec *extract.Record) error
}

// StateWriter persists state documents at checkpoint boundaries.
type StateWriter interface {
	WriteState(ctx context.Context, doc state.Document) error
}

// Selection names one stream to extract, with an optional column
// projection and an optional replication key carrying the resume bookmark.
type Selection struct {
	Stream         string      `json:"stream"`
	Columns        []string    `json:"columns,omitempty"`
	ReplicationKey string      `json:"replication_key,omitempty"`
	Bookmark       interface{} `json:"bookmark,omitempty"`
}

// RunResult holds the per-stream outcome of a run.
type RunResult struct {
	RunID   string
	Streams map[string]*state.StreamState
}

// Failed returns the IDs of streams that ended in the failed status,
// sorted for stable reporting.
func (r *RunResult) Failed() []string {
	var failed []string
	for id, st := range r.Streams {
		if st.Status == state.StatusFailed {
			failed = append(failed, id)
		}
	}
	sort.Strings(failed)
	return failed
}

// Coordinator wires the discoverer, extractor and writers together and
// drives the per-stream state machine.
type Coordinator struct {
	cfg     *config.Config
	disc    discovery.Discoverer
	ext     extract.Extractor
	records RecordWriter
	states  StateWriter
	logger  *zap.Logger
}

// New creates a coordinator. All collaborators are injected; the
// coordinator owns none of their resources.
func New(cfg *config.Config, disc discovery.Discoverer, ext extract.Extractor, records RecordWriter, states StateWriter, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		disc:    disc,
		ext:     ext,
		records: records,
		states:  states,
		logger:  logger.With(zap.String("component", "coordinator")),
	}
}

// Catalog returns the persisted catalog verbatim when one is supplied and
// runs discovery otherwise.
func (c *Coordinator) Catalog(ctx context.Context, persisted *catalog.Document) (*catalog.Document, error) {
	if persisted != nil {
		c.logger.Info("using persisted catalog", zap.Int("streams", len(persisted.Streams)))
		return persisted, nil
	}
	return c.disc.Discover(ctx)
}

// Run extracts every selected stream in order. It returns the per-stream
// result together with an error when any selected stream failed or the run
// was cancelled; completed streams keep their persisted state either way.
//
// The run and stream IDs travel on the context, so the writers and any
// component on the call path can recover the correlation fields through
// logger.WithContext.
func (c *Coordinator) Run(ctx context.Context, cat *catalog.Document, selections []Selection) (*RunResult, error) {
	result := &RunResult{
		RunID:   uuid.NewString(),
		Streams: make(map[string]*state.StreamState, len(selections)),
	}
	ctx = context.WithValue(ctx, logger.RunIDKey, result.RunID)
	log := logger.WithContext(ctx, c.logger)
	log.Info("run started", zap.Int("selections", len(selections)))

	for _, sel := range selections {
		st := state.New(sel.Stream)
		result.Streams[sel.Stream] = st

		if err := ctx.Err(); err != nil {
			// Cancelled between streams: leave the remaining ones pending.
			continue
		}

		sctx := context.WithValue(ctx, logger.StreamKey, sel.Stream)
		c.runStream(sctx, cat, sel, st, logger.WithContext(sctx, c.logger))
		if st.Status.Terminal() {
			metrics.StreamsFinished.WithLabelValues(string(st.Status)).Inc()
		}
	}

	if err := ctx.Err(); err != nil {
		return result, taperrors.Wrap(err, taperrors.ErrorTypeExtraction, "run cancelled")
	}

	if failed := result.Failed(); len(failed) > 0 {
		log.Error("run finished with failures", zap.Strings("failed_streams", failed))
		return result, taperrors.Newf(taperrors.ErrorTypeExtraction,
			"%d of %d selected streams failed", len(failed), len(selections)).
			WithDetail("streams", failed)
	}

	log.Info("run completed")
	return result, nil
}

// runStream drives one stream from pending to a terminal status. All
// failure paths stay inside this stream's state.
func (c *Coordinator) runStream(ctx context.Context, cat *catalog.Document, sel Selection, st *state.StreamState, log *zap.Logger) {
	entry, ok := cat.Get(sel.Stream, c.cfg.Separator)
	if !ok {
		st.Fail(taperrors.Newf(taperrors.ErrorTypeConfig, "stream %s not found in catalog", sel.Stream))
		log.Error("stream not in catalog")
		return
	}

	if err := st.Transition(state.StatusExtracting); err != nil {
		st.Fail(err)
		return
	}
	st.Bookmark = sel.Bookmark

	var part *extract.Partition
	if sel.ReplicationKey != "" && sel.Bookmark != nil {
		part = &extract.Partition{Column: sel.ReplicationKey, After: sel.Bookmark}
	}

	started := time.Now()
	stream, err := c.ext.Extract(ctx, entry, sel.Columns, part)
	if err != nil {
		st.Fail(err)
		log.Error("failed to open stream", zap.Error(err))
		return
	}
	defer stream.Close()

	var sinceCheckpoint int
	lastCheckpoint := time.Now()

	for {
		rec, err := stream.Next(ctx)
		if errors.Is(err, extract.ErrEndOfStream) {
			break
		}
		if err != nil {
			st.Fail(err)
			log.Error("stream failed", zap.Error(err), zap.Int64("records", st.Records))
			return
		}

		if err := c.records.WriteRecord(ctx, rec); err != nil {
			st.Fail(taperrors.Wrap(err, taperrors.ErrorTypeExtraction, "record write failed"))
			log.Error("record write failed", zap.Error(err))
			return
		}

		st.Records++
		sinceCheckpoint++
		metrics.RecordsExtracted.WithLabelValues(sel.Stream).Inc()

		if sel.ReplicationKey != "" {
			if v := rec.Get(sel.ReplicationKey); v != nil {
				st.Bookmark = v
			}
		}

		if st.Records%int64(c.cfg.BatchSize) == 0 {
			log.Debug("extraction progress", zap.Int64("records", st.Records))
		}

		if sinceCheckpoint >= c.cfg.Checkpoint.Records || time.Since(lastCheckpoint) >= c.cfg.Checkpoint.Interval {
			if err := c.checkpoint(ctx, st); err != nil {
				st.Fail(err)
				log.Error("checkpoint failed", zap.Error(err))
				return
			}
			sinceCheckpoint = 0
			lastCheckpoint = time.Now()
		}
	}

	// Final flush before completion so the terminal position survives.
	if err := c.states.WriteState(ctx, st.Document()); err != nil {
		st.Fail(taperrors.Wrap(err, taperrors.ErrorTypeState, "final state write failed"))
		log.Error("final state write failed", zap.Error(err))
		return
	}
	if err := st.Transition(state.StatusCompleted); err != nil {
		st.Fail(err)
		return
	}

	metrics.ExtractionDuration.WithLabelValues(sel.Stream).Observe(time.Since(started).Seconds())
	log.Info("stream completed",
		zap.Int64("records", st.Records),
		zap.Duration("elapsed", time.Since(started)))
}

// checkpoint flushes the current position and returns the stream to the
// extracting status.
func (c *Coordinator) checkpoint(ctx context.Context, st *state.StreamState) error {
	if err := st.Transition(state.StatusCheckpointed); err != nil {
		return err
	}
	if err := c.states.WriteState(ctx, st.Document()); err != nil {
		return taperrors.Wrap(err, taperrors.ErrorTypeState, "checkpoint write failed")
	}
	metrics.Checkpoints.WithLabelValues(st.StreamID).Inc()
	return st.Transition(state.StatusExtracting)
}
