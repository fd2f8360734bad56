package browser

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/revimg/config"
	"github.com/use-agent/revimg/models"
)

// SessionFactory opens a new Ready session.
type SessionFactory func(ctx context.Context) (*Session, error)

// handle tracks usage of one pooled session.
type handle struct {
	session *Session
	uses    int
}

// shouldRetire reports whether the session has served its time.
func (h *handle) shouldRetire(cfg config.PoolConfig) bool {
	if cfg.MaxUses > 0 && h.uses >= cfg.MaxUses {
		return true
	}
	if cfg.MaxAge > 0 && h.session.Age() >= cfg.MaxAge {
		return true
	}
	return false
}

// Pool hands out browser sessions, one per in-flight search, and replaces
// sessions that failed mid-navigation or have been used too long.
type Pool struct {
	cfg     config.PoolConfig
	factory SessionFactory

	idle    chan *handle
	mu      sync.Mutex
	all     map[*Session]*handle
	opening int // sessions being launched, counted against MaxSessions
	active  atomic.Int32
	retired atomic.Int64
	stopped chan struct{}
	stopOne sync.Once
}

// NewPool creates the pool and opens MinSessions sessions up front. It fails
// only if MinSessions > 0 and not a single session could be opened.
func NewPool(ctx context.Context, cfg config.PoolConfig, factory SessionFactory) (*Pool, error) {
	if cfg.MinSessions < 0 {
		cfg.MinSessions = 0
	}
	if cfg.MaxSessions < 1 {
		cfg.MaxSessions = 1
	}
	if cfg.MaxSessions < cfg.MinSessions {
		cfg.MaxSessions = cfg.MinSessions
	}

	p := &Pool{
		cfg:     cfg,
		factory: factory,
		idle:    make(chan *handle, cfg.MaxSessions),
		all:     make(map[*Session]*handle),
		stopped: make(chan struct{}),
	}

	var firstErr error
	for i := 0; i < cfg.MinSessions; i++ {
		h, err := p.open(ctx)
		if err != nil {
			slog.Warn("pool: failed to pre-open session", "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		p.idle <- h
	}
	if cfg.MinSessions > 0 && p.Size() == 0 {
		return nil, firstErr
	}

	go p.sweepLoop()
	return p, nil
}

// Get returns an idle session, opens a new one if under MaxSessions, or
// waits for one to be returned.
func (p *Pool) Get(ctx context.Context) (*Session, error) {
	for {
		select {
		case <-p.stopped:
			return nil, models.NewSearchError(models.ErrCodeInvalidState, "session pool stopped", nil)
		default:
		}

		// Try non-blocking first.
		select {
		case h := <-p.idle:
			if h.shouldRetire(p.cfg) {
				p.retire(h, "expired")
				continue
			}
			p.active.Add(1)
			return h.session, nil
		default:
		}

		if p.reserve() {
			h, err := p.open(ctx)
			p.unreserve()
			if err != nil {
				return nil, err
			}
			p.active.Add(1)
			return h.session, nil
		}

		select {
		case h := <-p.idle:
			if h.shouldRetire(p.cfg) {
				p.retire(h, "expired")
				continue
			}
			p.active.Add(1)
			return h.session, nil
		case <-ctx.Done():
			return nil, models.NewSearchError(models.ErrCodeInternal, "no browser session available", ctx.Err())
		case <-p.stopped:
			return nil, models.NewSearchError(models.ErrCodeInvalidState, "session pool stopped", nil)
		}
	}
}

// Put returns a session taken with Get. searchErr is the outcome of the
// search the session served; errors that leave the page in an unknown state
// retire the session.
func (p *Pool) Put(s *Session, searchErr error) {
	p.active.Add(-1)

	p.mu.Lock()
	h, ok := p.all[s]
	p.mu.Unlock()
	if !ok {
		// Already destroyed by Stop.
		_ = s.Close()
		return
	}
	h.uses++

	select {
	case <-p.stopped:
		p.retire(h, "pool stopped")
		return
	default:
	}

	switch {
	case models.SessionBroken(searchErr):
		p.retire(h, "search failed: "+models.CodeOf(searchErr))
	case h.shouldRetire(p.cfg):
		p.retire(h, "expired")
	default:
		p.idle <- h
		return
	}
	p.replenish()
}

// Size returns the number of open sessions.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.all)
}

// ActiveCount returns the number of sessions currently checked out.
func (p *Pool) ActiveCount() int {
	return int(p.active.Load())
}

// Stats returns a snapshot of the pool's current state.
func (p *Pool) Stats() models.PoolStats {
	return models.PoolStats{
		MaxSessions:    p.cfg.MaxSessions,
		LiveSessions:   p.Size(),
		ActiveSessions: p.ActiveCount(),
		Retired:        int(p.retired.Load()),
	}
}

// Stop closes every session, including checked-out ones, and makes further
// Get calls fail.
func (p *Pool) Stop() {
	p.stopOne.Do(func() {
		close(p.stopped)

	drainLoop:
		for {
			select {
			case h := <-p.idle:
				p.destroy(h)
			default:
				break drainLoop
			}
		}

		p.mu.Lock()
		remaining := make([]*Session, 0, len(p.all))
		for s := range p.all {
			remaining = append(remaining, s)
			delete(p.all, s)
		}
		p.mu.Unlock()

		for _, s := range remaining {
			_ = s.Close()
		}
	})
}

func (p *Pool) reserve() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.all)+p.opening >= p.cfg.MaxSessions {
		return false
	}
	p.opening++
	return true
}

func (p *Pool) unreserve() {
	p.mu.Lock()
	p.opening--
	p.mu.Unlock()
}

func (p *Pool) open(ctx context.Context) (*handle, error) {
	s, err := p.factory(ctx)
	if err != nil {
		return nil, err
	}
	h := &handle{session: s}
	p.mu.Lock()
	p.all[s] = h
	p.mu.Unlock()
	slog.Debug("pool: session opened", "pid", s.PID())
	return h, nil
}

func (p *Pool) destroy(h *handle) {
	p.mu.Lock()
	delete(p.all, h.session)
	p.mu.Unlock()
	if err := h.session.Close(); err != nil {
		slog.Warn("pool: session close failed", "error", err)
	}
}

func (p *Pool) retire(h *handle, reason string) {
	slog.Info("pool: retiring session", "reason", reason, "uses", h.uses, "age", h.session.Age().Round(time.Second))
	p.retired.Add(1)
	p.destroy(h)
}

// replenish opens a session in the background when the pool has dropped
// below its minimum.
func (p *Pool) replenish() {
	p.mu.Lock()
	if len(p.all)+p.opening >= p.cfg.MinSessions {
		p.mu.Unlock()
		return
	}
	p.opening++
	p.mu.Unlock()

	go func() {
		defer p.unreserve()
		h, err := p.open(context.Background())
		if err != nil {
			slog.Warn("pool: failed to replenish session", "error", err)
			return
		}
		select {
		case <-p.stopped:
			p.destroy(h)
		default:
			p.idle <- h
		}
	}()
}

// sweepLoop periodically retires idle sessions that outlived MaxAge.
func (p *Pool) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopped:
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

func (p *Pool) sweep() {
	n := len(p.idle)
	retired := false
scan:
	for i := 0; i < n; i++ {
		select {
		case h := <-p.idle:
			if h.shouldRetire(p.cfg) {
				p.retire(h, "expired")
				retired = true
				continue
			}
			p.idle <- h
		default:
			break scan
		}
	}
	if retired {
		p.replenish()
	}
}
