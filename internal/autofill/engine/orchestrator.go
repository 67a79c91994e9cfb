// internal/autofill/engine/orchestrator.go
package engine

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/autofill/classifier"
	"github.com/xkilldash9x/formpilot/internal/autofill/filler"
	"github.com/xkilldash9x/formpilot/internal/autofill/profile"
	"github.com/xkilldash9x/formpilot/internal/browser/dom"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/relay"
)

// terminalPublishTimeout bounds the delivery of the final summary of a cancelled run.
const terminalPublishTimeout = time.Second

// Orchestrator runs the two-phase autofill on one frame. It is stateless between
// runs; every call to Run owns a fresh run object.
type Orchestrator struct {
	logger *zap.Logger
	frame  *dom.Frame
	pub    relay.Publisher
	cfg    config.AutofillConfig
	exec   *filler.Executor
}

// NewOrchestrator binds an orchestrator to a frame and the publisher its events go to.
// A nil publisher drops events.
func NewOrchestrator(logger *zap.Logger, cfg config.AutofillConfig, frame *dom.Frame, pub relay.Publisher) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("orchestrator").With(zap.Int("frame", int(frame.ID)))
	return &Orchestrator{
		logger: logger,
		frame:  frame,
		pub:    pub,
		cfg:    cfg,
		exec:   filler.New(logger, frame.Act),
	}
}

// Frame returns the frame the orchestrator works on.
func (o *Orchestrator) Frame() *dom.Frame { return o.frame }

// Scan runs only the scan phase and publishes nothing.
func (o *Orchestrator) Scan(ctx context.Context) []*ClassifiedField {
	r := o.newRun()
	r.advance(StateScanning)
	if o.scan(ctx, r) {
		r.advance(StateScanComplete)
	}
	return r.fields
}

// Run performs a full autofill with p and returns the summary. It never fails:
// cancellation of ctx stops the run early and the partial summary is returned.
func (o *Orchestrator) Run(ctx context.Context, p *profile.Profile) schemas.FillSummary {
	r := o.newRun()
	start := time.Now()
	r.logger.Info("Starting two-phase autofill.", zap.Int("profile_values", p.Len()))

	r.advance(StateScanning)
	if !o.scan(ctx, r) {
		return o.finish(ctx, r, start)
	}

	r.advance(StateScanComplete)
	o.publish(ctx, r, schemas.ScanComplete{Total: len(r.fields), Fields: r.fieldSummaries()})
	r.logger.Info("Scan complete.", zap.Int("fields", len(r.fields)))
	if err := sleep(ctx, o.cfg.ScanDelay); err != nil {
		return o.finish(ctx, r, start)
	}

	r.advance(StateFilling)
	o.fill(ctx, r, p)
	return o.finish(ctx, r, start)
}

func (o *Orchestrator) newRun() *run {
	id := uuid.NewString()
	return &run{id: id, logger: o.logger.With(zap.String("run_id", id)), state: StateIdle}
}

// scan collects the fillable candidates in document order. It reports false when
// the context ended first.
func (o *Orchestrator) scan(ctx context.Context, r *run) bool {
	for _, el := range dom.Candidates(o.frame.Doc) {
		if ctx.Err() != nil {
			r.logger.Info("Scan interrupted.", zap.Error(ctx.Err()))
			return false
		}
		if !dom.IsFillable(el) {
			continue
		}
		fieldCtx := dom.ExtractContext(el)
		ft := classifier.Classify(fieldCtx, el)
		label := dom.ExtractLabel(el)
		if label == "" {
			label = ft.String()
		}
		r.fields = append(r.fields, &ClassifiedField{
			Element: el,
			Context: fieldCtx,
			Type:    ft,
			Label:   label,
			Locator: el.Locator(),
		})
	}
	return true
}

func (o *Orchestrator) fill(ctx context.Context, r *run, p *profile.Profile) {
	total := len(r.fields)
	for _, f := range r.fields {
		if ctx.Err() != nil {
			r.logger.Info("Fill phase interrupted.", zap.Int("filled", r.filled), zap.Error(ctx.Err()))
			return
		}
		value, ok := profile.Resolve(f.Type, p)
		if !ok || value == "" {
			continue
		}
		if !o.exec.Fill(ctx, f.Element, value, f.Type) {
			r.logger.Debug("Field not filled.", zap.String("label", f.Label), zap.Stringer("type", f.Type))
			continue
		}
		r.markFilled(f)
		o.publish(ctx, r, schemas.FieldFilled{Label: f.Label, Progress: Progress(r.filled, total)})
		if err := sleep(ctx, o.cfg.FieldDelay); err != nil {
			r.logger.Info("Fill phase interrupted.", zap.Int("filled", r.filled), zap.Error(err))
			return
		}
	}
}

func (o *Orchestrator) finish(ctx context.Context, r *run, start time.Time) schemas.FillSummary {
	r.advance(StateDone)
	sum := r.summary()

	pubCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		pubCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), terminalPublishTimeout)
		defer cancel()
	}
	o.publish(pubCtx, r, schemas.AutofillTotal{
		Total:       sum.Total,
		Filled:      sum.Filled,
		Labels:      sum.Labels,
		Interrupted: ctx.Err() != nil,
	})

	r.logger.Info("Autofill finished.",
		zap.Int("total", sum.Total),
		zap.Int("filled", sum.Filled),
		zap.Duration("duration", time.Since(start)))
	return sum
}

func (o *Orchestrator) publish(ctx context.Context, r *run, msg schemas.Message) {
	if o.pub == nil {
		return
	}
	if err := o.pub.Publish(ctx, msg); err != nil {
		r.logger.Warn("Failed to publish event.", zap.String("type", string(msg.Type())), zap.Error(err))
	}
}

// Progress is the rounded percentage of filled fields, halves rounding up.
func Progress(filled, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(float64(filled)/float64(total)*100 + 0.5))
}

// sleep waits for d or until ctx ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
