// Package search composes the redirect submission, a browser session and the
// results parser into reverse image searches.
package search

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/use-agent/revimg/config"
	"github.com/use-agent/revimg/models"
	"github.com/use-agent/revimg/parser"
	"github.com/use-agent/revimg/submit"
)

// Submitter resolves an image into the engine's canonical results URL.
// An empty URL with a nil error means the engine has no results page.
type Submitter interface {
	ByFile(ctx context.Context, path string) (string, error)
	ByURL(ctx context.Context, imageURL string) (string, error)
}

// Page is a browser tab that can load a URL and hand back its DOM.
// *browser.Session implements it.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Snapshot(ctx context.Context) (string, error)
}

// Searcher runs searches against a caller-supplied Page. It holds no
// per-search state and is safe for concurrent use with distinct pages.
type Searcher struct {
	submitter Submitter
	extractor parser.Extractor
	perPage   int
}

// NewSearcher creates a Searcher. perPage <= 0 selects 10.
func NewSearcher(sub Submitter, ex parser.Extractor, perPage int) *Searcher {
	if perPage <= 0 {
		perPage = 10
	}
	return &Searcher{submitter: sub, extractor: ex, perPage: perPage}
}

// NewSearcherFromConfig wires the production submitter and the Google
// markup, with endpoint and selector overrides from cfg.
func NewSearcherFromConfig(cfg *config.Config) (*Searcher, error) {
	markup := parser.GoogleMarkup
	markup.Base = cfg.Search.UploadURL
	markup.ContainerSelector = cfg.Search.ResultSelector
	markup.ThumbSelector = cfg.Search.ThumbSelector

	ex, err := parser.NewExtractor(markup)
	if err != nil {
		return nil, err
	}
	sub := submit.New(cfg.Search, cfg.Browser.Proxy)
	return NewSearcher(sub, ex, cfg.Search.ResultsPerPage), nil
}

// ByFile searches for the image stored at path.
func (s *Searcher) ByFile(ctx context.Context, p Page, path string, page int) ([]models.SearchResult, error) {
	return s.Search(ctx, p, models.FileQuery(path, page))
}

// ByURL searches for the image at imageURL.
func (s *Searcher) ByURL(ctx context.Context, p Page, imageURL string, page int) ([]models.SearchResult, error) {
	return s.Search(ctx, p, models.URLQuery(imageURL, page))
}

// Search runs the whole pipeline: submit the image, page the results URL,
// load it in p, snapshot the DOM and parse it. A missing input file or an
// engine without a results page yields an empty, non-nil slice and leaves p
// untouched.
func (s *Searcher) Search(ctx context.Context, p Page, req models.SearchRequest) ([]models.SearchResult, error) {
	target, err := s.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if target == "" {
		return []models.SearchResult{}, nil
	}
	return s.Render(ctx, p, target)
}

// Resolve validates req and returns the paged results URL to load, or ""
// when there is nothing to load.
func (s *Searcher) Resolve(ctx context.Context, req models.SearchRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	var canonical string
	var err error
	switch req.Kind {
	case models.QueryFile:
		canonical, err = s.submitter.ByFile(ctx, req.Path)
	case models.QueryURL:
		canonical, err = s.submitter.ByURL(ctx, req.ImageURL)
	}
	if err != nil {
		return "", err
	}
	if canonical == "" {
		slog.Info("search: no results page", "kind", req.Kind.String())
		return "", nil
	}
	return Paginate(canonical, req.Page, s.perPage)
}

// Render loads target in p and parses the rendered results.
func (s *Searcher) Render(ctx context.Context, p Page, target string) ([]models.SearchResult, error) {
	if err := p.Navigate(ctx, target); err != nil {
		return nil, err
	}
	html, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	results, err := s.extractor.Extract(html)
	if err != nil {
		return nil, models.NewSearchError(models.ErrCodeInternal, "failed to parse results page", err)
	}
	slog.Debug("search: parsed results page", "url", target, "results", len(results))
	return results, nil
}

// Paginate appends the engine's start offset (page * perPage) to a canonical
// results URL, leaving every existing query pair byte for byte as it was.
func Paginate(canonical string, page, perPage int) (string, error) {
	if page < 0 {
		return "", models.NewSearchError(models.ErrCodeInvalidInput, "page must be non-negative", nil)
	}
	u, err := url.Parse(canonical)
	if err != nil || !u.IsAbs() {
		return "", models.NewSearchError(models.ErrCodeSubmit, "engine returned an unusable results URL", err)
	}
	// The existing query is opaque: append to it rather than re-encode it.
	if u.RawQuery != "" {
		u.RawQuery += "&"
	}
	u.RawQuery += "start=" + strconv.Itoa(page*perPage)
	return u.String(), nil
}
