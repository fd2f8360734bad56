// Package submit issues the out-of-band request that starts a reverse image
// search and reads the canonical results URL off the engine's redirect.
package submit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/use-agent/revimg/config"
	"github.com/use-agent/revimg/models"
)

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Form field names expected by the engine. The by-URL endpoint wants the
// same (empty) fields the upload form carries.
const (
	fieldEncodedImage = "encoded_image"
	fieldImageContent = "image_content"
	fieldImageURL     = "image_url"
	fieldFilename     = "filename"
)

// Submitter resolves an image into the engine's canonical results URL.
// It never follows redirects. It is safe for concurrent use.
type Submitter struct {
	client    *http.Client
	uploadURL string
	byURLURL  string
}

// New creates a Submitter from the search config. proxy, if set, is used for
// the submission as well.
func New(cfg config.SearchConfig, proxy string) *Submitter {
	return &Submitter{
		client: &http.Client{
			Transport: newTransport(proxy, cfg.ChromeTLS),
			Timeout:   cfg.SubmitTimeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		uploadURL: cfg.UploadURL,
		byURLURL:  cfg.ByURLURL,
	}
}

// ByFile uploads the image at path and returns the results URL, or "" when
// the engine offers none. A path that is missing, a directory, or unreadable
// yields "" without touching the network.
func (s *Submitter) ByFile(ctx context.Context, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		slog.Debug("submit: unresolvable image path", "path", path, "error", err)
		return "", nil
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		slog.Debug("submit: image file not found", "path", abs)
		return "", nil
	}
	f, err := os.Open(abs)
	if err != nil {
		slog.Debug("submit: image file unreadable", "path", abs, "error", err)
		return "", nil
	}

	// Stream the file through a pipe so large images are never buffered.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer f.Close()
		pw.CloseWithError(writeUploadForm(mw, f, filepath.Base(abs)))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadURL, pr)
	if err != nil {
		pr.Close()
		return "", models.NewSearchError(models.ErrCodeSubmit, "failed to build upload request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	return s.do(req)
}

func writeUploadForm(mw *multipart.Writer, r io.Reader, filename string) error {
	part, err := mw.CreateFormFile(fieldEncodedImage, filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	if err := mw.WriteField(fieldImageContent, ""); err != nil {
		return err
	}
	return mw.Close()
}

// ByURL asks the engine to fetch imageURL itself and returns the results URL,
// or "" when the engine offers none.
func (s *Submitter) ByURL(ctx context.Context, imageURL string) (string, error) {
	u, err := url.Parse(s.byURLURL)
	if err != nil {
		return "", models.NewSearchError(models.ErrCodeSubmit, "invalid by-url endpoint", err)
	}
	q := u.Query()
	q.Add(fieldImageURL, imageURL)
	q.Add(fieldEncodedImage, "")
	q.Add(fieldImageContent, "")
	q.Add(fieldFilename, "")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", models.NewSearchError(models.ErrCodeSubmit, "failed to build by-url request", err)
	}
	return s.do(req)
}

// do sends req and applies the redirect contract: exactly 302 Found yields
// the Location target, anything else means no results page.
func (s *Submitter) do(req *http.Request) (string, error) {
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return "", models.NewSearchError(models.ErrCodeSubmit,
			fmt.Sprintf("%s %s failed", req.Method, req.URL.Redacted()), err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusFound {
		slog.Info("submit: engine returned no results page",
			"status", resp.StatusCode,
			"elapsed", time.Since(start),
		)
		return "", nil
	}
	loc, err := resp.Location()
	if err != nil {
		slog.Warn("submit: redirect without location", "error", err)
		return "", nil
	}
	return loc.String(), nil
}
