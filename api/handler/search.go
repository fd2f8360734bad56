package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/revimg/api/middleware"
	"github.com/use-agent/revimg/models"
)

// SearchService runs reverse image searches. *search.Service implements it.
type SearchService interface {
	Search(ctx context.Context, req models.SearchRequest) ([]models.SearchResult, error)
	Stats() models.PoolStats
}

// SearchByURL returns a handler for POST /api/v1/search/url.
func SearchByURL(svc SearchService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.SearchByURLRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewSearchError(models.ErrCodeInvalidInput, err.Error(), err), 0, start)
			return
		}

		results, err := svc.Search(c.Request.Context(), models.URLQuery(req.ImageURL, req.Page))
		if err != nil {
			respondError(c, err, req.Page, start)
			return
		}
		respondResults(c, results, req.Page, start)
	}
}

// SearchByFile returns a handler for POST /api/v1/search/file.
//
// The "image" part is spooled to a temporary file under its original base
// name, searched by file and removed again. maxBytes caps the request body;
// 0 means no cap.
func SearchByFile(svc SearchService, maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		if maxBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}

		var form models.SearchByFileForm
		if err := c.ShouldBind(&form); err != nil {
			respondError(c, uploadError(err), 0, start)
			return
		}
		fh, err := c.FormFile("image")
		if err != nil {
			respondError(c, uploadError(err), form.Page, start)
			return
		}

		dir, err := os.MkdirTemp("", "revimg-upload-")
		if err != nil {
			respondError(c, models.NewSearchError(models.ErrCodeInternal, "failed to spool upload", err), form.Page, start)
			return
		}
		defer func() {
			if err := os.RemoveAll(dir); err != nil {
				slog.Warn("failed to remove upload spool", "dir", dir, "error", err)
			}
		}()

		name := filepath.Base(fh.Filename)
		switch name {
		case "", ".", "..", string(filepath.Separator):
			name = "image"
		}
		path := filepath.Join(dir, name)
		if err := c.SaveUploadedFile(fh, path); err != nil {
			respondError(c, models.NewSearchError(models.ErrCodeInternal, "failed to spool upload", err), form.Page, start)
			return
		}

		results, err := svc.Search(c.Request.Context(), models.FileQuery(path, form.Page))
		if err != nil {
			respondError(c, err, form.Page, start)
			return
		}
		respondResults(c, results, form.Page, start)
	}
}

// uploadError turns a multipart parsing failure into INVALID_INPUT.
func uploadError(err error) *models.SearchError {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return models.NewSearchError(models.ErrCodeInvalidInput,
			fmt.Sprintf("image exceeds the upload limit of %d bytes", tooLarge.Limit), err)
	case errors.Is(err, http.ErrMissingFile):
		return models.NewSearchError(models.ErrCodeInvalidInput, "multipart field \"image\" is required", err)
	default:
		return models.NewSearchError(models.ErrCodeInvalidInput, err.Error(), err)
	}
}

func respondResults(c *gin.Context, results []models.SearchResult, page int, start time.Time) {
	if results == nil {
		results = []models.SearchResult{}
	}
	c.JSON(http.StatusOK, models.SearchResponse{
		Success: true,
		Page:    page,
		Total:   len(results),
		Results: results,
		Timing:  models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
	})
}

// respondError maps a SearchError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error, page int, start time.Time) {
	var searchErr *models.SearchError
	if !errors.As(err, &searchErr) {
		searchErr = models.NewSearchError(models.ErrCodeInternal, err.Error(), err)
	}
	if searchErr.Code != models.ErrCodeInvalidInput {
		slog.Warn("search request failed",
			"request_id", c.GetString(middleware.RequestIDContextKey),
			"path", c.FullPath(),
			"code", searchErr.Code,
			"error", err,
		)
	}

	c.JSON(mapErrorToStatus(searchErr), models.SearchResponse{
		Success: false,
		Page:    page,
		Results: []models.SearchResult{},
		Error:   searchErr.ToDetail(),
		Timing:  models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.SearchError) int {
	switch e.Code {
	case models.ErrCodeSessionStartup:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeNavTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeSubmit:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
