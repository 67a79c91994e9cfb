// internal/autofill/engine/agent.go
package engine

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/autofill/profile"
	"github.com/xkilldash9x/formpilot/internal/config"
)

// activeRun tracks the run an agent is currently executing.
type activeRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Agent serves the commands of one frame: it turns START_AUTOFILL into an
// orchestrator run and applies the busy policy when a run is already active.
type Agent struct {
	logger *zap.Logger
	orch   *Orchestrator
	onBusy string

	// handleMu serializes command handling so restarts cannot interleave.
	handleMu sync.Mutex

	mu      sync.Mutex
	active  *activeRun
	last    *schemas.FillSummary
	results chan schemas.FillSummary
	wg      sync.WaitGroup
}

// NewAgent wraps an orchestrator. onBusy is config.OnBusyIgnore or config.OnBusyRestart;
// anything else is treated as ignore.
func NewAgent(logger *zap.Logger, orch *Orchestrator, onBusy string) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onBusy != config.OnBusyRestart {
		onBusy = config.OnBusyIgnore
	}
	return &Agent{
		logger:  logger.Named("agent").With(zap.Int("frame", int(orch.Frame().ID))),
		orch:    orch,
		onBusy:  onBusy,
		results: make(chan schemas.FillSummary, 1),
	}
}

// Serve handles inbound envelopes until the channel closes or ctx ends, then
// stops any active run and waits for it.
func (a *Agent) Serve(ctx context.Context, inbox <-chan schemas.Envelope) {
	defer a.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-inbox:
			if !ok {
				a.wg.Wait()
				return
			}
			if _, err := a.Handle(ctx, env); err != nil {
				a.logger.Warn("Failed to handle command.", zap.String("id", env.ID), zap.Error(err))
			}
		}
	}
}

// Handle processes one command. It reports whether a new run was started. The
// run is bounded by ctx and executes in the background.
func (a *Agent) Handle(ctx context.Context, env schemas.Envelope) (bool, error) {
	start, ok := env.Message.(schemas.StartAutofill)
	if !ok {
		return false, fmt.Errorf("unsupported command %v", typeOf(env.Message))
	}
	p, err := profile.Normalize(start.Data)
	if err != nil {
		return false, fmt.Errorf("failed to normalize profile: %w", err)
	}

	a.handleMu.Lock()
	defer a.handleMu.Unlock()

	if prev := a.current(); prev != nil {
		if a.onBusy == config.OnBusyIgnore {
			a.logger.Info("Autofill already running, ignoring start command.", zap.String("id", env.ID))
			return false, nil
		}
		a.logger.Info("Autofill already running, restarting.", zap.String("id", env.ID))
		prev.cancel()
		select {
		case <-prev.done:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	ar := &activeRun{cancel: cancel, done: make(chan struct{})}
	a.mu.Lock()
	a.active = ar
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer close(ar.done)
		defer cancel()
		sum := a.orch.Run(runCtx, p)

		a.mu.Lock()
		if a.active == ar {
			a.active = nil
		}
		a.last = &sum
		a.mu.Unlock()

		// Keep only the newest result for a waiting reader.
		select {
		case <-a.results:
		default:
		}
		select {
		case a.results <- sum:
		default:
		}
	}()
	return true, nil
}

func (a *Agent) current() *activeRun {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Busy reports whether a run is in progress.
func (a *Agent) Busy() bool { return a.current() != nil }

// Last returns the summary of the most recently finished run.
func (a *Agent) Last() (schemas.FillSummary, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return schemas.FillSummary{}, false
	}
	return *a.last, true
}

// Results delivers the summary of the newest finished run.
func (a *Agent) Results() <-chan schemas.FillSummary { return a.results }

// Wait blocks until no run is active.
func (a *Agent) Wait() { a.wg.Wait() }

func (a *Agent) stop() {
	if ar := a.current(); ar != nil {
		ar.cancel()
	}
	a.wg.Wait()
}

func typeOf(m schemas.Message) string {
	if m == nil {
		return "nil"
	}
	return string(m.Type())
}
