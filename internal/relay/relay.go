// internal/relay/relay.go
package relay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

var (
	// ErrShutdown is returned by every operation once the relay is shut down.
	ErrShutdown = errors.New("relay is shut down")
	// ErrNotForwardable is returned when a command is handed to Forward or an event to Broadcast.
	ErrNotForwardable = errors.New("message type cannot travel in this direction")
	// ErrAlreadyAttached is returned when a frame is attached twice.
	ErrAlreadyAttached = errors.New("frame already attached")
)

// DefaultDedupWindow is how many recent envelope IDs are remembered for deduplication.
const DefaultDedupWindow = 4096

// Publisher is what an orchestrator emits its events through.
type Publisher interface {
	Publish(ctx context.Context, msg schemas.Message) error
}

// Stats counts what the relay routed.
type Stats struct {
	Broadcasts int64
	// Forwarded counts sub-frame events delivered to the top frame.
	Forwarded int64
	// Local counts top-frame events delivered without forwarding.
	Local int64
	// Duplicates counts envelopes dropped because they were already delivered.
	Duplicates int64
}

// Relay connects the frames of one page. Commands fan out from the host to every
// attached frame; events fan in from every frame to the top-frame subscribers.
type Relay struct {
	logger     *zap.Logger
	bufferSize int

	mu     sync.RWMutex
	frames map[schemas.FrameID]chan schemas.Envelope
	sinks  []chan schemas.Envelope
	// seen holds the IDs of the last dedupWindow envelopes delivered to the top frame;
	// seenOrder is a ring over the same IDs, oldest at seenNext.
	seen        map[string]struct{}
	seenOrder   []string
	seenNext    int
	dedupWindow int
	// owned holds every channel handed out, detached or not, so Shutdown closes them all.
	owned map[chan schemas.Envelope]struct{}

	activePostsWg sync.WaitGroup

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	isShutdown   bool
	shutdownMu   sync.Mutex

	broadcasts, forwarded, local, duplicates atomic.Int64
}

// New creates a relay whose channels buffer bufferSize envelopes each.
func New(logger *zap.Logger, bufferSize int) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Relay{
		logger:       logger.Named("relay"),
		bufferSize:   bufferSize,
		frames:       make(map[schemas.FrameID]chan schemas.Envelope),
		seen:         make(map[string]struct{}),
		dedupWindow:  DefaultDedupWindow,
		owned:        make(map[chan schemas.Envelope]struct{}),
		shutdownChan: make(chan struct{}),
	}
}

// begin registers an in-flight operation unless the relay is shut down.
func (r *Relay) begin() error {
	r.shutdownMu.Lock()
	defer r.shutdownMu.Unlock()
	if r.isShutdown {
		return ErrShutdown
	}
	r.activePostsWg.Add(1)
	return nil
}

func (r *Relay) shutDown() bool {
	r.shutdownMu.Lock()
	defer r.shutdownMu.Unlock()
	return r.isShutdown
}

// Attach registers a frame and returns its inbound command channel plus a detach
// function. The channel is closed by Shutdown.
func (r *Relay) Attach(frame schemas.FrameID) (<-chan schemas.Envelope, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shutDown() {
		return nil, nil, ErrShutdown
	}
	if _, ok := r.frames[frame]; ok {
		return nil, nil, fmt.Errorf("%w: %d", ErrAlreadyAttached, frame)
	}
	ch := make(chan schemas.Envelope, r.bufferSize)
	r.frames[frame] = ch
	r.owned[ch] = struct{}{}

	detach := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur, ok := r.frames[frame]; ok && cur == ch {
			delete(r.frames, frame)
		}
		// The channel itself is closed during Shutdown.
	}
	return ch, detach, nil
}

// Frames lists the attached frames in ascending order.
func (r *Relay) Frames() []schemas.FrameID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]schemas.FrameID, 0, len(r.frames))
	for id := range r.frames {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SubscribeTop returns a channel receiving every event that reaches the top frame,
// plus an unsubscribe function.
func (r *Relay) SubscribeTop() (<-chan schemas.Envelope, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.shutDown() {
		closedCh := make(chan schemas.Envelope)
		close(closedCh)
		return closedCh, func() {}
	}

	ch := make(chan schemas.Envelope, r.bufferSize)
	r.sinks = append(r.sinks, ch)
	r.owned[ch] = struct{}{}

	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.sinks {
			if s == ch {
				r.sinks = append(r.sinks[:i:i], r.sinks[i+1:]...)
				break
			}
		}
	}
	return ch, unsubscribe
}

// Broadcast sends a command to every attached frame and reports how many received it.
func (r *Relay) Broadcast(ctx context.Context, msg schemas.Message) (int, error) {
	if msg == nil || msg.Type().IsEvent() {
		return 0, fmt.Errorf("%w: broadcast of %v", ErrNotForwardable, typeOf(msg))
	}
	if err := r.begin(); err != nil {
		return 0, err
	}
	defer r.activePostsWg.Done()

	env := schemas.NewEnvelope(schemas.TopFrame, msg)

	r.mu.RLock()
	ids := make([]schemas.FrameID, 0, len(r.frames))
	targets := make(map[schemas.FrameID]chan schemas.Envelope, len(r.frames))
	for id, ch := range r.frames {
		ids = append(ids, id)
		targets[id] = ch
	}
	r.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	r.logger.Debug("Broadcasting command.",
		zap.String("type", string(msg.Type())), zap.String("id", env.ID), zap.Int("frames", len(ids)))

	delivered := 0
	for _, id := range ids {
		if err := r.deliver(ctx, targets[id], env); err != nil {
			return delivered, err
		}
		delivered++
	}
	r.broadcasts.Add(1)
	return delivered, nil
}

// Forward routes an event from its origin frame to the top-frame subscribers.
// Events of the top frame are delivered locally; sub-frame events are forwarded.
// Each envelope reaches the top frame at most once.
func (r *Relay) Forward(ctx context.Context, env schemas.Envelope) error {
	if env.Message == nil || !env.Message.Type().IsEvent() {
		return fmt.Errorf("%w: forward of %v", ErrNotForwardable, typeOf(env.Message))
	}
	if err := r.begin(); err != nil {
		return err
	}
	defer r.activePostsWg.Done()

	r.mu.Lock()
	if _, dup := r.seen[env.ID]; dup {
		r.mu.Unlock()
		r.duplicates.Add(1)
		r.logger.Debug("Dropping envelope that already reached the top frame.", zap.String("id", env.ID))
		return nil
	}
	r.remember(env.ID)
	sinks := make([]chan schemas.Envelope, len(r.sinks))
	copy(sinks, r.sinks)
	r.mu.Unlock()

	if env.Frame.IsTop() {
		r.local.Add(1)
	} else {
		r.forwarded.Add(1)
	}

	for _, ch := range sinks {
		if err := r.deliver(ctx, ch, env); err != nil {
			return err
		}
	}
	return nil
}

// remember records id, evicting the oldest ID once the window is full. Callers hold mu.
func (r *Relay) remember(id string) {
	r.seen[id] = struct{}{}
	if len(r.seenOrder) < r.dedupWindow {
		r.seenOrder = append(r.seenOrder, id)
		return
	}
	delete(r.seen, r.seenOrder[r.seenNext])
	r.seenOrder[r.seenNext] = id
	r.seenNext = (r.seenNext + 1) % r.dedupWindow
}

func (r *Relay) deliver(ctx context.Context, ch chan schemas.Envelope, env schemas.Envelope) error {
	select {
	case ch <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.shutdownChan:
		return fmt.Errorf("failed to deliver %s: %w", env.ID, ErrShutdown)
	}
}

// Port returns the publisher bound to a frame. Everything published through it is
// stamped with that frame as origin.
func (r *Relay) Port(frame schemas.FrameID) *Port {
	return &Port{relay: r, frame: frame}
}

// Stats returns routing counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Broadcasts: r.broadcasts.Load(),
		Forwarded:  r.forwarded.Load(),
		Local:      r.local.Load(),
		Duplicates: r.duplicates.Load(),
	}
}

// Shutdown stops accepting messages, waits for in-flight deliveries and closes
// every channel the relay handed out.
func (r *Relay) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.logger.Debug("Shutting down relay.")

		r.shutdownMu.Lock()
		r.isShutdown = true
		r.shutdownMu.Unlock()

		close(r.shutdownChan)
		r.activePostsWg.Wait()

		r.mu.Lock()
		for ch := range r.owned {
			close(ch)
		}
		closed := len(r.owned)
		r.owned = make(map[chan schemas.Envelope]struct{})
		r.frames = make(map[schemas.FrameID]chan schemas.Envelope)
		r.sinks = nil
		r.seen = make(map[string]struct{})
		r.seenOrder, r.seenNext = nil, 0
		r.mu.Unlock()

		r.logger.Debug("Relay shut down.", zap.Int("channels_closed", closed))
	})
}

// Port is a frame's view of the relay.
type Port struct {
	relay *Relay
	frame schemas.FrameID
}

var _ Publisher = (*Port)(nil)

// Frame returns the frame the port publishes for.
func (p *Port) Frame() schemas.FrameID { return p.frame }

// Publish wraps msg in an envelope from this frame and forwards it.
func (p *Port) Publish(ctx context.Context, msg schemas.Message) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", ErrNotForwardable)
	}
	return p.relay.Forward(ctx, schemas.NewEnvelope(p.frame, msg))
}

func typeOf(m schemas.Message) string {
	if m == nil {
		return "nil"
	}
	return string(m.Type())
}
