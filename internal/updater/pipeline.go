package updater

import (
	"context"
	"errors"
	"time"

	"github.com/agentic-research/livegraph/internal/journal"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Journal receives every committed cycle.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Source produces a cycle's raw document.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// Pipeline runs one feed's cycle: fetch, parse, bind each record, then
// hand the prepared commit to the graph writer. Only the commit touches
// shared state.
type Pipeline[T any] struct {
	ID      string
	Source  Source
	Parser  Parser
	Binder  Binder[T]
	Sink    Sink[T]
	Writer  *Executor
	Journal Journal
	Log     logrus.FieldLogger
	// Held reports how many patches the updater holds after a commit.
	Held func() int

	state *runState
	now   func() time.Time
}

func (p *Pipeline[T]) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}

func (p *Pipeline[T]) timed(stage Stage, fn func() error) error {
	p.state.stage(stage)
	start := time.Now()
	err := fn()
	stageDuration.WithLabelValues(p.ID, string(stage)).Observe(time.Since(start).Seconds())
	return err
}

// RunOnce runs a single cycle. The returned error is for the caller's
// bookkeeping; the pipeline has already logged it.
func (p *Pipeline[T]) RunOnce(ctx context.Context) error {
	runID := uuid.NewString()
	log := p.Log.WithField("run_id", runID)

	ctx, span := tracer.Start(ctx, "updater.cycle", trace.WithAttributes(
		attribute.String("updater", p.ID),
		attribute.String("run_id", runID),
	))
	defer span.End()

	at := p.clock()
	p.state.begin(runID, at)

	fail := func(outcome string, counts *cycleCounts, err error) error {
		cyclesTotal.WithLabelValues(p.ID, outcome).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		held := 0
		if p.Held != nil {
			held = p.Held()
		}
		p.state.finish(counts, held, err)
		return err
	}

	var data []byte
	err := p.timed(StageFetching, func() error {
		var err error
		data, err = p.Source.Fetch(ctx)
		return err
	})
	if err != nil {
		log.WithError(err).Warn("fetch failed, cycle aborted")
		return fail(outcomeFetchError, nil, err)
	}
	span.SetAttributes(attribute.Int("bytes", len(data)))

	var (
		records []Record
		skipped []error
	)
	err = p.timed(StageParsing, func() error {
		var err error
		records, skipped, err = p.Parser.Parse(data)
		return err
	})
	if err != nil {
		log.WithError(err).Warn("feed envelope rejected, cycle aborted")
		return fail(outcomeParseError, nil, err)
	}
	counts := cycleCounts{skipped: len(skipped)}
	for _, err := range skipped {
		log.WithError(err).Info("record skipped")
	}

	var (
		batch    []T
		filtered int
	)
	_ = p.timed(StageMatching, func() error {
		for _, rec := range records {
			v, err := p.Binder.Bind(rec)
			switch {
			case err == nil:
				batch = append(batch, v)
			case errors.Is(err, ErrUnmatched):
				counts.unmatched++
				log.WithField("record", rec.Index).Debug("matched to nothing")
			case errors.Is(err, errFiltered):
				filtered++
				log.WithField("record", rec.Index).WithError(err).Debug("record filtered")
			default:
				counts.skipped++
				log.WithField("record", rec.Index).WithError(err).Info("record skipped")
			}
		}
		return nil
	})
	recordsTotal.WithLabelValues(p.ID, "bound").Add(float64(len(batch)))
	recordsTotal.WithLabelValues(p.ID, "skipped").Add(float64(counts.skipped))
	recordsTotal.WithLabelValues(p.ID, "unmatched").Add(float64(counts.unmatched))
	recordsTotal.WithLabelValues(p.ID, "filtered").Add(float64(filtered))
	span.SetAttributes(
		attribute.Int("records", len(records)),
		attribute.Int("bound", len(batch)),
	)

	commit := p.Sink.Prepare(batch)

	var (
		out       Outcome
		commitErr error
	)
	err = p.timed(StageCommitting, func() error {
		return p.Writer.Execute(ctx, "commit:"+p.ID, func() error {
			out, commitErr = commit()
			return nil
		})
	})
	if err != nil {
		// The commit may still land; the next cycle reconciles either way.
		log.WithError(err).Warn("commit abandoned")
		return fail(outcomeAbandoned, nil, err)
	}

	counts.applied = len(out.Applied)
	counts.expired = len(out.Expired)
	counts.failed = out.Failed
	held := 0
	if p.Held != nil {
		held = p.Held()
	}
	patchesHeld.WithLabelValues(p.ID).Set(float64(held))

	fields := logrus.Fields{
		"applied":   counts.applied,
		"expired":   counts.expired,
		"failed":    counts.failed,
		"skipped":   counts.skipped,
		"unmatched": counts.unmatched,
		"held":      held,
	}
	p.record(ctx, log, runID, at, out, commitErr)

	if commitErr != nil {
		log.WithFields(fields).WithError(commitErr).Error("commit partially failed")
		return fail(outcomeCommitError, &counts, commitErr)
	}
	log.WithFields(fields).Info("cycle committed")
	cyclesTotal.WithLabelValues(p.ID, outcomeOK).Inc()
	p.state.finish(&counts, held, nil)
	return nil
}

func (p *Pipeline[T]) record(ctx context.Context, log logrus.FieldLogger, runID string, at time.Time, out Outcome, commitErr error) {
	if p.Journal == nil {
		return
	}
	e := journal.Entry{
		RunID:   runID,
		Updater: p.ID,
		At:      at,
		Applied: out.Applied,
		Expired: out.Expired,
		Failed:  out.Failed,
	}
	if commitErr != nil {
		e.Error = commitErr.Error()
	}
	if err := p.Journal.Record(ctx, e); err != nil {
		log.WithError(err).Warn("journal write failed")
	}
}
