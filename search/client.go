package search

import (
	"context"
	"log/slog"
	"sync"

	"github.com/use-agent/revimg/browser"
	"github.com/use-agent/revimg/config"
	"github.com/use-agent/revimg/models"
)

// Client is a single-session reverse image search client. Searches run one
// at a time; open one Client per concurrent search, or use a Service.
type Client struct {
	ready    chan struct{}
	searcher *Searcher

	mu      sync.Mutex
	session *browser.Session
	err     error
	killed  bool
}

// Start begins launching the browser and returns at once. Use Ready to wait
// for the launch; searches wait for it implicitly.
func Start(cfg *config.Config) *Client {
	c := &Client{ready: make(chan struct{})}

	searcher, err := NewSearcherFromConfig(cfg)
	if err != nil {
		c.err = models.NewSearchError(models.ErrCodeSessionStartup, "invalid search configuration", err)
		close(c.ready)
		return c
	}
	c.searcher = searcher

	go func() {
		c.finishLaunch(browser.Open(context.Background(), cfg.Browser))
	}()
	return c
}

// finishLaunch records the launch outcome and releases Ready waiters. A
// browser that comes up after Kill is closed before ready is signalled.
func (c *Client) finishLaunch(s *browser.Session, err error) {
	c.mu.Lock()
	c.session, c.err = s, err
	killed := c.killed
	if err == nil && killed {
		c.err = models.NewSearchError(models.ErrCodeInvalidState, "client killed during startup", nil)
	}
	c.mu.Unlock()

	if err == nil && killed {
		if cerr := s.Close(); cerr != nil {
			slog.Warn("search: closing browser launched after kill", "error", cerr)
		}
	}
	close(c.ready)
}

// NewClient wraps an open session. The client is ready immediately.
func NewClient(s *browser.Session, searcher *Searcher) *Client {
	c := &Client{ready: make(chan struct{}), searcher: searcher, session: s}
	close(c.ready)
	return c
}

// Ready blocks until the browser session is usable and reports a startup
// failure if it never will be.
func (c *Client) Ready(ctx context.Context) error {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// SearchByFile searches for the image stored at path. page is zero-based.
func (c *Client) SearchByFile(ctx context.Context, path string, page int) ([]models.SearchResult, error) {
	if err := c.Ready(ctx); err != nil {
		return nil, err
	}
	return c.searcher.ByFile(ctx, c.session, path, page)
}

// SearchByURL searches for the image at imageURL. page is zero-based.
func (c *Client) SearchByURL(ctx context.Context, imageURL string, page int) ([]models.SearchResult, error) {
	if err := c.Ready(ctx); err != nil {
		return nil, err
	}
	return c.searcher.ByURL(ctx, c.session, imageURL, page)
}

// Kill closes the browser session. If the launch is still in progress Kill
// waits for it and closes the browser as soon as it is up, so on return no
// browser process is left running. Safe to call more than once.
func (c *Client) Kill() error {
	c.mu.Lock()
	c.killed = true
	c.mu.Unlock()

	<-c.ready

	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}
