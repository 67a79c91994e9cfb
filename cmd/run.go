// -- cmd/run.go --
package cmd

import (
	"context"
	"fmt"
	"io"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/autofill/engine"
	"github.com/xkilldash9x/formpilot/internal/autofill/profile"
	"github.com/xkilldash9x/formpilot/internal/autofill/progress"
	"github.com/xkilldash9x/formpilot/internal/browser/dom"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/relay"
)

// fillRun wires one page's frames to a relay, starts an agent per frame, broadcasts
// the profile and collects the progress of every frame at the top.
type fillRun struct {
	logger *zap.Logger
	cfg    config.Interface
	frames []*dom.Frame
	// progressOut receives human readable progress lines; nil disables them.
	progressOut io.Writer
	// eventsOut receives every top-frame envelope as a JSON line; nil disables it.
	eventsOut io.Writer
}

func (fr *fillRun) execute(ctx context.Context, rawProfile []byte) (progress.Report, error) {
	if len(fr.frames) == 0 {
		return progress.Report{}, fmt.Errorf("page has no frames")
	}
	if _, err := profile.Normalize(rawProfile); err != nil {
		return progress.Report{}, fmt.Errorf("failed to normalize profile: %w", err)
	}

	r := relay.New(fr.logger, fr.cfg.Relay().BufferSize)
	defer r.Shutdown()
	top, unsubscribe := r.SubscribeTop()
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	agentCtx, stopAgents := context.WithCancel(gctx)
	defer stopAgents()

	for _, frame := range fr.frames {
		inbox, detach, err := r.Attach(frame.ID)
		if err != nil {
			return progress.Report{}, fmt.Errorf("failed to attach frame %d: %w", frame.ID, err)
		}
		defer detach()

		orch := engine.NewOrchestrator(fr.logger, fr.cfg.Autofill(), frame, r.Port(frame.ID))
		agent := engine.NewAgent(fr.logger, orch, fr.cfg.Autofill().OnBusy)
		g.Go(func() error {
			agent.Serve(agentCtx, inbox)
			return nil
		})
	}

	n, err := r.Broadcast(ctx, schemas.StartAutofill{Data: rawProfile})
	if err != nil {
		stopAgents()
		_ = g.Wait()
		return progress.Report{}, fmt.Errorf("failed to broadcast start command: %w", err)
	}
	fr.logger.Info("Autofill started.", zap.Int("frames", n))

	agg := progress.New(fr.logger, len(fr.frames), fr.progressOut)
	rep, consumeErr := agg.Consume(ctx, fr.tee(agentCtx, top))

	// Every frame reported its total, or ctx ended and the agents are winding down.
	stopAgents()
	if err := g.Wait(); err != nil {
		return rep, err
	}
	if consumeErr != nil {
		return rep, fmt.Errorf("autofill interrupted: %w", consumeErr)
	}
	return rep, nil
}

// tee copies envelopes to eventsOut as JSON lines on their way to the aggregator.
func (fr *fillRun) tee(ctx context.Context, in <-chan schemas.Envelope) <-chan schemas.Envelope {
	if fr.eventsOut == nil {
		return in
	}
	out := make(chan schemas.Envelope)
	enc := json.NewEncoder(fr.eventsOut)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case env, ok := <-in:
				if !ok {
					return
				}
				if err := enc.Encode(env); err != nil {
					fr.logger.Warn("Failed to write event.", zap.Error(err))
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// summaryLine renders the aggregate of a run for humans.
func summaryLine(rep progress.Report) string {
	return fmt.Sprintf("Filled %d of %d fields (%d%%) across %d frame(s).",
		rep.Sum.Filled, rep.Sum.Total, rep.Progress(), len(rep.Frames))
}
