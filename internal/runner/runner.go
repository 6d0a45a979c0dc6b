// Package runner drives the simulation's step loop: advance the clock,
// let every household make its decisions in collection order, evaluate
// collectors, and yield one step record — a finite, non-restartable
// sequence, pulled one step at a time by the caller.
package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/heatsim/internal/collectors"
	"github.com/talgya/heatsim/internal/decision"
	"github.com/talgya/heatsim/internal/engine"
)

// AgentRecord is one household's collected fields for a single step, keys
// omitted when their collector reported absent.
type AgentRecord map[string]any

// StepRecord is one line of the output stream: every household's record,
// in insertion order, plus the single model record.
type StepRecord struct {
	Step         int
	RunID        uuid.UUID
	AgentRecords []AgentRecord
	ModelRecord  map[string]any
}

// Runner owns the model and the collector set and exposes the step
// sequence as a channel.
type Runner struct {
	Model     *engine.Model
	RunID     uuid.UUID
	startStep int
	agentFns  []collectors.AgentCollector
	modelFns  []collectors.ModelCollector
}

// New constructs a Runner over an already-configured Model, numbering
// steps from zero.
func New(m *engine.Model) *Runner {
	return &Runner{
		Model:    m,
		RunID:    uuid.New(),
		agentFns: collectors.AgentCollectors(),
		modelFns: collectors.ModelCollectors(),
	}
}

// Resume constructs a Runner that continues an existing run: runID is
// reused so checkpoint rows accumulate under the same key, and step
// numbering starts at startStep (the step immediately after the one the
// checkpoint was saved at) instead of zero. m must already have its clock,
// RNG stream, and counters restored to that step boundary.
func Resume(m *engine.Model, runID uuid.UUID, startStep int) *Runner {
	r := New(m)
	r.RunID = runID
	r.startStep = startStep
	return r
}

// Run drives timeSteps iterations and returns a receive-only channel of
// step records. The channel is closed after the last step completes, or
// early if ctx is cancelled between steps (the cooperative stop point the
// concurrency model calls for).
func (r *Runner) Run(ctx context.Context, timeSteps int) <-chan StepRecord {
	out := make(chan StepRecord)
	go func() {
		defer close(out)
		for step := r.startStep; step < r.startStep+timeSteps; step++ {
			select {
			case <-ctx.Done():
				return
			default:
			}

			start := time.Now()
			rec := r.step(step)

			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}

			slog.Info("step completed", "step", step, "elapsed", time.Since(start),
				"households", humanize.Comma(int64(len(r.Model.Households()))))
		}
	}()
	return out
}

// step advances the clock, runs every household's decision procedure in
// order, then evaluates collectors. Decisions run sequentially (they
// share the model's single RNG stream and installer-capacity counter);
// once every household has decided, each household's collector pass is
// a pure read and can proceed concurrently.
func (r *Runner) step(step int) StepRecord {
	r.Model.IncrementTimestep()

	households := r.Model.Households()
	for _, h := range households {
		decision.MakeDecisions(h, r.Model)
	}

	agentRecords := make([]AgentRecord, len(households))
	var g errgroup.Group
	for i, h := range households {
		i, h := i, h
		g.Go(func() error {
			rec := make(AgentRecord, len(r.agentFns))
			for _, c := range r.agentFns {
				v := c.Fn(h, r.Model)
				if v.Present {
					rec[c.Name] = v.Data
				}
			}
			agentRecords[i] = rec
			return nil
		})
	}
	g.Wait()

	modelRecord := make(map[string]any, len(r.modelFns))
	for _, c := range r.modelFns {
		v := c.Fn(r.Model)
		if v.Present {
			modelRecord[c.Name] = v.Data
		}
	}

	return StepRecord{
		Step:         step,
		RunID:        r.RunID,
		AgentRecords: agentRecords,
		ModelRecord:  modelRecord,
	}
}
