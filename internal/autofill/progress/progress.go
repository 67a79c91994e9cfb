// internal/autofill/progress/progress.go
package progress

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/autofill/engine"
)

// FrameProgress is what the host knows about one frame's run.
type FrameProgress struct {
	Frame     schemas.FrameID `json:"frame" yaml:"frame"`
	Total     int             `json:"total" yaml:"total"`
	Filled    int             `json:"filled" yaml:"filled"`
	Progress  int             `json:"progress" yaml:"progress"`
	LastLabel string          `json:"last_label,omitempty" yaml:"last_label,omitempty"`
	Labels    []string        `json:"labels" yaml:"labels"`
	Done      bool            `json:"done" yaml:"done"`
	// Interrupted is set while the latest run of the frame ended early. Such a frame
	// is not done: a replacement run may still report.
	Interrupted bool `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
}

// Report aggregates every frame seen so far.
type Report struct {
	Frames []FrameProgress     `json:"frames" yaml:"frames"`
	Sum    schemas.FillSummary `json:"summary" yaml:"summary"`
}

// Progress is the overall percentage across frames.
func (r Report) Progress() int { return engine.Progress(r.Sum.Filled, r.Sum.Total) }

// Aggregator consumes top-frame events and tracks progress per frame.
type Aggregator struct {
	logger   *zap.Logger
	expected int
	out      io.Writer

	mu     sync.Mutex
	frames map[schemas.FrameID]*FrameProgress
}

// New creates an aggregator that considers the page finished once expected frames
// reported a terminal summary of a run that was not interrupted. Progress lines are written to out when it is not nil.
func New(logger *zap.Logger, expected int, out io.Writer) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		logger:   logger.Named("progress"),
		expected: expected,
		out:      out,
		frames:   make(map[schemas.FrameID]*FrameProgress),
	}
}

func (a *Aggregator) frame(id schemas.FrameID) *FrameProgress {
	fp, ok := a.frames[id]
	if !ok {
		fp = &FrameProgress{Frame: id}
		a.frames[id] = fp
	}
	return fp
}

// Observe folds one envelope into the state. It reports whether every expected
// frame is done afterwards.
func (a *Aggregator) Observe(env schemas.Envelope) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	fp := a.frame(env.Frame)
	switch m := env.Message.(type) {
	case schemas.ScanComplete:
		*fp = FrameProgress{Frame: env.Frame, Total: m.Total}
		a.printf("[frame %d] scanned %d fields\n", env.Frame, m.Total)
	case schemas.FieldFilled:
		fp.Filled++
		fp.Progress = m.Progress
		fp.LastLabel = m.Label
		fp.Labels = append(fp.Labels, m.Label)
		a.printf("[frame %d] %3d%% %s\n", env.Frame, m.Progress, m.Label)
	case schemas.AutofillTotal:
		fp.Total = m.Total
		fp.Filled = m.Filled
		fp.Labels = append([]string(nil), m.Labels...)
		fp.Progress = engine.Progress(m.Filled, m.Total)
		if m.Interrupted {
			fp.Done = false
			fp.Interrupted = true
			a.printf("[frame %d] interrupted: filled %d of %d\n", env.Frame, m.Filled, m.Total)
			break
		}
		fp.Done = true
		fp.Interrupted = false
		a.printf("[frame %d] done: filled %d of %d\n", env.Frame, m.Filled, m.Total)
	default:
		a.logger.Debug("Ignoring message.", zap.String("type", typeOf(env.Message)))
	}
	return a.doneLocked()
}

func (a *Aggregator) doneLocked() bool {
	if a.expected <= 0 {
		return false
	}
	done := 0
	for _, fp := range a.frames {
		if fp.Done {
			done++
		}
	}
	return done >= a.expected
}

// Consume reads envelopes until every expected frame finished, the channel closes
// or ctx ends, and returns the report. Only the context ending is an error.
func (a *Aggregator) Consume(ctx context.Context, events <-chan schemas.Envelope) (Report, error) {
	for {
		select {
		case <-ctx.Done():
			return a.Snapshot(), ctx.Err()
		case env, ok := <-events:
			if !ok {
				return a.Snapshot(), nil
			}
			if a.Observe(env) {
				return a.Snapshot(), nil
			}
		}
	}
}

// Snapshot returns the current report, frames in ascending order.
func (a *Aggregator) Snapshot() Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]schemas.FrameID, 0, len(a.frames))
	for id := range a.frames {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rep := Report{Sum: schemas.FillSummary{Labels: []string{}}}
	for _, id := range ids {
		fp := *a.frames[id]
		fp.Labels = append([]string{}, fp.Labels...)
		rep.Frames = append(rep.Frames, fp)
		rep.Sum.Total += fp.Total
		rep.Sum.Filled += fp.Filled
		rep.Sum.Labels = append(rep.Sum.Labels, fp.Labels...)
	}
	return rep
}

func (a *Aggregator) printf(format string, args ...any) {
	if a.out == nil {
		return
	}
	if _, err := fmt.Fprintf(a.out, format, args...); err != nil {
		a.logger.Debug("Failed to write progress line.", zap.Error(err))
	}
}

func typeOf(m schemas.Message) string {
	if m == nil {
		return "nil"
	}
	return string(m.Type())
}
