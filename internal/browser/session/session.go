// internal/browser/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/internal/browser/dom"
	"github.com/xkilldash9x/formpilot/internal/config"
)

// ErrNoForm is returned by WaitForForm when no form control shows up in time.
var ErrNoForm = errors.New("no form found on page")

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// Session is one Chrome tab driven over the DevTools protocol.
type Session struct {
	id     string
	logger *zap.Logger
	cfg    config.BrowserConfig

	// ctx is the tab context; it carries the chromedp target.
	ctx         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc

	mu        sync.Mutex
	snapshots int
	closed    bool
	closeOnce sync.Once
}

// New launches Chrome and opens a tab. The browser lives until Close or until ctx ends.
func New(ctx context.Context, logger *zap.Logger, cfg config.BrowserConfig) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New().String()
	log := logger.Named("session").With(zap.String("session_id", id))

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, ExecAllocatorOptions(cfg)...)
	sugar := log.Sugar()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(sugar.Debugf))

	// The first Run starts the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	log.Info("Browser session started.", zap.Bool("headless", cfg.Headless))
	return &Session{
		id:          id,
		logger:      log,
		cfg:         cfg,
		ctx:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
	}, nil
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// runActions executes actions bound to the tab, bounded by both the session and ctx.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	opCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	if s.cfg.ActionTimeout > 0 {
		var timeoutCancel context.CancelFunc
		opCtx, timeoutCancel = context.WithTimeout(opCtx, s.cfg.ActionTimeout)
		defer timeoutCancel()
	}
	return chromedp.Run(opCtx, actions...)
}

// Navigate loads url and waits for the body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating.", zap.String("url", url))

	opCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	navTimeout := s.cfg.NavigationTimeout
	if navTimeout <= 0 {
		navTimeout = 60 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(opCtx, navTimeout)
	defer navCancel()

	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) && opCtx.Err() == nil {
			return fmt.Errorf("navigation timed out after %s: %w", navTimeout, err)
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", opCtx.Err())
		}
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// WaitForForm polls the top document until it holds a form control, checking every
// FormPollInterval for at most FormWaitTimeout.
func (s *Session) WaitForForm(ctx context.Context) error {
	interval := s.cfg.FormPollInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	timeout := s.cfg.FormWaitTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	attempts := 0
	for {
		attempts++
		var found bool
		if err := s.runActions(ctx, chromedp.Evaluate(formProbeJS, &found)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Debug("Form probe failed.", zap.Error(err))
		} else if found {
			s.logger.Debug("Form detected.", zap.Int("attempts", attempts))
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w after %s", ErrNoForm, timeout)
		case <-ticker.C:
		}
	}
}

// Frames snapshots every frame of the tab, depth first with the top document as
// frame 0. Each frame's actuator acts on the live page and mirrors changes into
// its snapshot. Call it again after the page changed to get fresh frames.
func (s *Session) Frames(ctx context.Context) ([]*dom.Frame, error) {
	var frames []*dom.Frame
	err := s.runActions(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		targets, err := frameTree(ctx)
		if err != nil {
			return err
		}
		for i, t := range targets {
			f, err := s.snapshot(ctx, t, len(frames))
			if err != nil {
				if i == 0 {
					return err
				}
				// Frames that navigate away or detach mid-walk are skipped.
				s.logger.Warn("Failed to snapshot frame.", zap.String("url", t.url), zap.Error(err))
				continue
			}
			frames = append(frames, f)
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot frames: %w", err)
	}
	s.logger.Debug("Frames snapshotted.", zap.Int("frames", len(frames)))
	return frames, nil
}

func (s *Session) nextSnapshot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots++
	return s.snapshots
}

// Close shuts the tab and the browser. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.tabCancel()
		s.allocCancel()
		s.logger.Info("Browser session closed.")
	})
	return nil
}
