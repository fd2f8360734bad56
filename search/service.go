package search

import (
	"context"
	"log/slog"

	"github.com/use-agent/revimg/browser"
	"github.com/use-agent/revimg/models"
)

// Service runs concurrent searches, each on its own pooled browser session.
type Service struct {
	pool     *browser.Pool
	searcher *Searcher
}

// NewService creates a Service over an existing pool.
func NewService(pool *browser.Pool, searcher *Searcher) *Service {
	return &Service{pool: pool, searcher: searcher}
}

// Search resolves the results URL first and only checks out a session when
// there is a page to render.
func (s *Service) Search(ctx context.Context, req models.SearchRequest) ([]models.SearchResult, error) {
	target, err := s.searcher.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if target == "" {
		return []models.SearchResult{}, nil
	}

	session, err := s.pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	results, err := s.searcher.Render(ctx, session, target)
	s.pool.Put(session, err)
	if err != nil {
		slog.Debug("search failed", "kind", req.Kind.String(), "page", req.Page, "error", err)
		return nil, err
	}
	return results, nil
}

// Stats reports the session pool's state.
func (s *Service) Stats() models.PoolStats {
	return s.pool.Stats()
}
