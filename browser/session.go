// Package browser manages headless Chromium sessions used to render search
// results pages.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/use-agent/revimg/config"
	"github.com/use-agent/revimg/models"
)

// DefaultNavigationTimeout applies when a session is created without one.
const DefaultNavigationTimeout = 30 * time.Second

// State is the lifecycle stage of a Session.
type State int32

const (
	StateUninitialized State = iota
	StateLaunching
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLaunching:
		return "launching"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Session is one browser process plus its protocol connection. Navigate and
// Snapshot are valid only in StateReady and never overlap: a second call
// while one is running fails instead of interleaving. Close may be called at
// any time, from any goroutine, and aborts an in-flight navigation.
//
// The zero Session is uninitialized; use Open or NewSession.
type Session struct {
	mu         sync.Mutex
	state      State
	driver     Driver
	busy       bool
	loaded     bool // last navigation completed and nothing since invalidated it
	navTimeout time.Duration
	created    time.Time

	life context.Context // cancelled by Close
	kill context.CancelFunc

	closeOnce sync.Once
}

// Open launches a browser and returns a Ready session. Launching cannot be
// interrupted part way; if ctx ends first, Open returns and the browser is
// closed as soon as the launch finishes.
func Open(ctx context.Context, cfg config.BrowserConfig) (*Session, error) {
	s := newSession(cfg.NavigationTimeout)
	s.state = StateLaunching

	type launched struct {
		d   *rodDriver
		err error
	}
	done := make(chan launched, 1)
	go func() {
		d, err := launch(cfg)
		done <- launched{d, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			s.state = StateClosed
			s.kill()
			return nil, r.err
		}
		s.mu.Lock()
		s.driver = r.d
		s.state = StateReady
		s.mu.Unlock()
		return s, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.err == nil {
				_ = r.d.Close()
			}
		}()
		s.state = StateClosed
		s.kill()
		return nil, models.NewSearchError(models.ErrCodeSessionStartup, "browser launch abandoned", ctx.Err())
	}
}

// NewSession wraps an already-connected driver in a Ready session.
// navTimeout <= 0 selects DefaultNavigationTimeout.
func NewSession(d Driver, navTimeout time.Duration) *Session {
	s := newSession(navTimeout)
	s.driver = d
	s.state = StateReady
	return s
}

func newSession(navTimeout time.Duration) *Session {
	if navTimeout <= 0 {
		navTimeout = DefaultNavigationTimeout
	}
	life, kill := context.WithCancel(context.Background())
	return &Session{
		navTimeout: navTimeout,
		created:    time.Now(),
		life:       life,
		kill:       kill,
	}
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PID returns the browser process id, or 0 if it is unknown.
func (s *Session) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.driver.(interface{ PID() int }); ok {
		return p.PID()
	}
	return 0
}

// Navigate loads url and waits for the page's load event, up to the
// session's navigation timeout. On failure the previous snapshot is no longer
// available and the session should be closed.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.begin("navigate", false); err != nil {
		return err
	}
	defer s.end()

	navCtx, cancel := context.WithTimeout(ctx, s.navTimeout)
	defer cancel()
	stop := context.AfterFunc(s.life, cancel)
	defer stop()

	if err := s.driver.Navigate(navCtx, url); err != nil {
		return s.opError(navCtx, err, "navigation failed")
	}
	if err := s.driver.WaitForLoad(navCtx); err != nil {
		return s.opError(navCtx, err, "page did not finish loading")
	}

	s.mu.Lock()
	s.loaded = s.state == StateReady
	s.mu.Unlock()
	return nil
}

// Snapshot returns the outer HTML of the whole current document. It fails
// with INVALID_SESSION_STATE unless a Navigate has completed.
func (s *Session) Snapshot(ctx context.Context) (string, error) {
	if err := s.begin("snapshot", true); err != nil {
		return "", err
	}
	defer s.end()

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.life, cancel)
	defer stop()

	root, err := s.driver.GetDocument(opCtx)
	if err != nil {
		return "", s.opError(opCtx, err, "failed to read document")
	}
	html, err := s.driver.GetOuterHTML(opCtx, root)
	if err != nil {
		return "", s.opError(opCtx, err, "failed to serialize document")
	}
	return html, nil
}

// Close releases the connection and terminates the browser. It is safe to
// call repeatedly and in any state; only the first call can return an error.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		d := s.driver
		s.state = StateClosed
		s.loaded = false
		s.mu.Unlock()

		if s.kill != nil {
			s.kill()
		}
		if d != nil {
			err = d.Close()
			slog.Debug("browser session closed", "error", err)
		}
	})
	return err
}

// Age is the time since the session was created.
func (s *Session) Age() time.Duration {
	return time.Since(s.created)
}

// begin claims the session for one operation.
func (s *Session) begin(op string, needLoaded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state != StateReady:
		return models.NewSearchError(models.ErrCodeInvalidState,
			fmt.Sprintf("cannot %s: session is %s", op, s.state), nil)
	case s.busy:
		return models.NewSearchError(models.ErrCodeInvalidState,
			fmt.Sprintf("cannot %s: another operation is in progress", op), nil)
	case needLoaded && !s.loaded:
		return models.NewSearchError(models.ErrCodeInvalidState,
			fmt.Sprintf("cannot %s: no page has been loaded", op), nil)
	}
	s.busy = true
	if !needLoaded {
		s.loaded = false
	}
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// opError classifies a failed protocol operation.
func (s *Session) opError(opCtx context.Context, err error, msg string) *models.SearchError {
	switch {
	case s.life.Err() != nil:
		return models.NewSearchError(models.ErrCodeInvalidState, "session closed during operation", err)
	case errors.Is(opCtx.Err(), context.DeadlineExceeded):
		return models.NewSearchError(models.ErrCodeNavTimeout, msg, err)
	case errors.Is(opCtx.Err(), context.Canceled):
		return models.NewSearchError(models.ErrCodeNavigation, "request canceled", err)
	default:
		return models.NewSearchError(models.ErrCodeNavigation, msg, err)
	}
}
