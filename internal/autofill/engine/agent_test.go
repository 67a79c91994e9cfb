// internal/autofill/engine/agent_test.go
package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/relay"
)

func startEnvelope(raw string) schemas.Envelope {
	return schemas.NewEnvelope(schemas.TopFrame, schemas.StartAutofill{Data: []byte(raw)})
}

func waitResult(t *testing.T, a *Agent) schemas.FillSummary {
	t.Helper()
	select {
	case sum := <-a.Results():
		return sum
	case <-time.After(3 * time.Second):
		t.Fatal("no result from agent")
		return schemas.FillSummary{}
	}
}

func countTotals(msgs []schemas.Message) int {
	n := 0
	for _, m := range msgs {
		if _, ok := m.(schemas.AutofillTotal); ok {
			n++
		}
	}
	return n
}

func TestAgentIgnoresStartWhileBusy(t *testing.T) {
	defer goleak.VerifyNone(t)
	frame, _ := newFrame(t, scenarioHTML)
	rec := newRecorder()
	cfg := config.AutofillConfig{ScanDelay: 150 * time.Millisecond}
	a := NewAgent(zaptest.NewLogger(t), NewOrchestrator(zaptest.NewLogger(t), cfg, frame, rec), config.OnBusyIgnore)

	ctx := context.Background()
	started, err := a.Handle(ctx, startEnvelope(scenarioProfile))
	require.NoError(t, err)
	require.True(t, started)
	assert.True(t, a.Busy())

	started, err = a.Handle(ctx, startEnvelope(scenarioProfile))
	require.NoError(t, err)
	assert.False(t, started, "a second start is dropped")

	sum := waitResult(t, a)
	a.Wait()
	assert.Equal(t, 2, sum.Filled)
	assert.False(t, a.Busy())
	assert.Equal(t, 1, countTotals(rec.messages()), "only one run happened")

	last, ok := a.Last()
	require.True(t, ok)
	assert.Equal(t, sum, last)

	// Once idle, a new start is accepted again.
	started, err = a.Handle(ctx, startEnvelope(scenarioProfile))
	require.NoError(t, err)
	assert.True(t, started)
	a.Wait()
}

func TestAgentRestartReplacesRun(t *testing.T) {
	defer goleak.VerifyNone(t)
	frame, _ := newFrame(t, scenarioHTML)
	rec := newRecorder()
	cfg := config.AutofillConfig{ScanDelay: 200 * time.Millisecond}
	a := NewAgent(zaptest.NewLogger(t), NewOrchestrator(zaptest.NewLogger(t), cfg, frame, rec), config.OnBusyRestart)

	ctx := context.Background()
	started, err := a.Handle(ctx, startEnvelope(`{"person":{"firstName":"First"}}`))
	require.NoError(t, err)
	require.True(t, started)

	started, err = a.Handle(ctx, startEnvelope(`{"person":{"firstName":"Second"}}`))
	require.NoError(t, err)
	require.True(t, started)

	a.Wait()
	sum, ok := a.Last()
	require.True(t, ok)
	assert.Equal(t, 2, sum.Filled, "the replacement run completes")
	assert.Equal(t, "Second", frame.Doc.ByID("fn").Value())

	msgs := rec.messages()
	assert.Equal(t, 2, countTotals(msgs), "the cancelled run still reports its partial total")
	var totals []schemas.AutofillTotal
	for _, m := range msgs {
		if total, ok := m.(schemas.AutofillTotal); ok {
			totals = append(totals, total)
		}
	}
	require.Len(t, totals, 2)
	assert.Zero(t, totals[0].Filled, "the first run was cancelled before filling")
	assert.True(t, totals[0].Interrupted)
	assert.False(t, totals[1].Interrupted)
}

func TestAgentRejectsBadCommands(t *testing.T) {
	frame, _ := newFrame(t, scenarioHTML)
	a := NewAgent(nil, NewOrchestrator(nil, fastConfig(), frame, nil), "bogus")

	_, err := a.Handle(context.Background(), schemas.NewEnvelope(1, schemas.FieldFilled{}))
	assert.ErrorContains(t, err, "unsupported command")

	_, err = a.Handle(context.Background(), startEnvelope(`{"person":`))
	assert.ErrorContains(t, err, "failed to normalize profile")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	started, err := a.Handle(ctx, startEnvelope(`{}`))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, started)

	_, ok := a.Last()
	assert.False(t, ok)
}

func TestAgentServesRelayCommands(t *testing.T) {
	defer goleak.VerifyNone(t)
	logger := zaptest.NewLogger(t)
	r := relay.New(logger, 16)

	top, unsubscribe := r.SubscribeTop()
	defer unsubscribe()

	const frames = 2
	served := make(chan struct{}, frames)
	for id := schemas.FrameID(0); id < frames; id++ {
		frame, _ := newFrame(t, scenarioHTML)
		frame.ID = id
		inbox, detach, err := r.Attach(id)
		require.NoError(t, err)
		defer detach()

		a := NewAgent(logger, NewOrchestrator(logger, fastConfig(), frame, r.Port(id)), config.OnBusyIgnore)
		go func() {
			a.Serve(context.Background(), inbox)
			served <- struct{}{}
		}()
	}

	n, err := r.Broadcast(context.Background(), schemas.StartAutofill{Data: []byte(scenarioProfile)})
	require.NoError(t, err)
	require.Equal(t, frames, n)

	totals := make(map[schemas.FrameID]schemas.AutofillTotal)
	deadline := time.After(3 * time.Second)
	for len(totals) < frames {
		select {
		case env := <-top:
			if total, ok := env.Message.(schemas.AutofillTotal); ok {
				totals[env.Frame] = total
			}
		case <-deadline:
			t.Fatalf("only %d frames finished", len(totals))
		}
	}
	for id, total := range totals {
		assert.Equal(t, 2, total.Filled, "frame %d", id)
	}

	r.Shutdown()
	for i := 0; i < frames; i++ {
		select {
		case <-served:
		case <-time.After(time.Second):
			t.Fatal("agent did not stop after relay shutdown")
		}
	}
	stats := r.Stats()
	assert.Equal(t, int64(4), stats.Local, "frame 0 events stay local")
	assert.Equal(t, int64(4), stats.Forwarded, "frame 1 events are forwarded")
}

func TestAgentServeStopsOnContext(t *testing.T) {
	defer goleak.VerifyNone(t)
	frame, _ := newFrame(t, scenarioHTML)
	cfg := config.AutofillConfig{ScanDelay: 10 * time.Second}
	a := NewAgent(zaptest.NewLogger(t), NewOrchestrator(zaptest.NewLogger(t), cfg, frame, nil), config.OnBusyIgnore)

	inbox := make(chan schemas.Envelope, 1)
	inbox <- startEnvelope(scenarioProfile)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Serve(ctx, inbox)
		close(done)
	}()

	require.Eventually(t, a.Busy, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	assert.False(t, a.Busy())
	sum, ok := a.Last()
	require.True(t, ok)
	assert.Zero(t, sum.Filled)
}
