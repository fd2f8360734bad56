package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/revimg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	mu       sync.Mutex
	results  []models.SearchResult
	err      error
	requests []models.SearchRequest
	fileBody []byte
	stats    models.PoolStats
}

func (f *fakeService) Search(_ context.Context, req models.SearchRequest) ([]models.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if req.Kind == models.QueryFile {
		f.fileBody, _ = os.ReadFile(req.Path)
	}
	return f.results, f.err
}

func (f *fakeService) Stats() models.PoolStats { return f.stats }

func newEngine(svc SearchService, maxBytes int64) *gin.Engine {
	r := gin.New()
	r.GET("/health", Health(svc, time.Now()))
	r.POST("/search/url", SearchByURL(svc))
	r.POST("/search/file", SearchByFile(svc, maxBytes))
	return r
}

func decode(t *testing.T, w *httptest.ResponseRecorder) models.SearchResponse {
	t.Helper()
	var resp models.SearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return resp
}

func multipartBody(t *testing.T, filename string, content []byte, page string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("image", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(content)
	}
	if page != "" {
		_ = mw.WriteField("page", page)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestSearchByURL(t *testing.T) {
	svc := &fakeService{results: []models.SearchResult{{
		Image:  "https://x.test/a.jpg",
		Page:   "https://x.test/page",
		Width:  models.Px(640),
		Height: models.ParseDimension("abc"),
	}}}
	r := newEngine(svc, 0)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/search/url",
		strings.NewReader(`{"image_url":"https://x.test/cat.jpg","page":3}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if !resp.Success || resp.Page != 3 || resp.Total != 1 {
		t.Errorf("response = %+v", resp)
	}
	if !strings.Contains(w.Body.String(), `"height":null`) {
		t.Errorf("invalid height not encoded as null: %s", w.Body.String())
	}
	got := svc.requests[0]
	if got.Kind != models.QueryURL || got.ImageURL != "https://x.test/cat.jpg" || got.Page != 3 {
		t.Errorf("request = %+v", got)
	}
}

func TestSearchByURL_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{"page":1}`},
		{"not a url", `{"image_url":"cat"}`},
		{"negative page", `{"image_url":"https://x.test/a.jpg","page":-1}`},
		{"malformed json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/search/url", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			newEngine(svc, 0).ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if resp := decode(t, w); resp.Error == nil || resp.Error.Code != models.ErrCodeInvalidInput {
				t.Errorf("error = %+v", resp.Error)
			}
			if len(svc.requests) != 0 {
				t.Error("service called for a bad request")
			}
		})
	}
}

func TestSearchByURL_ErrorStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{models.ErrCodeSessionStartup, http.StatusServiceUnavailable},
		{models.ErrCodeNavTimeout, http.StatusGatewayTimeout},
		{models.ErrCodeNavigation, http.StatusBadGateway},
		{models.ErrCodeSubmit, http.StatusBadGateway},
		{models.ErrCodeInvalidState, http.StatusInternalServerError},
		{models.ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			svc := &fakeService{err: models.NewSearchError(tt.code, "boom", nil)}
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/search/url",
				strings.NewReader(`{"image_url":"https://x.test/a.jpg"}`))
			req.Header.Set("Content-Type", "application/json")
			newEngine(svc, 0).ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			resp := decode(t, w)
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestSearchByFile(t *testing.T) {
	svc := &fakeService{results: []models.SearchResult{}}
	body, ctype := multipartBody(t, "cat.jpg", []byte("\xff\xd8\xffjpeg"), "2")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/search/file", body)
	req.Header.Set("Content-Type", ctype)
	newEngine(svc, 1<<20).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if !resp.Success || resp.Page != 2 || resp.Total != 0 || resp.Results == nil {
		t.Errorf("response = %+v", resp)
	}

	got := svc.requests[0]
	if got.Kind != models.QueryFile || got.Page != 2 {
		t.Errorf("request = %+v", got)
	}
	if !strings.HasSuffix(got.Path, string(os.PathSeparator)+"cat.jpg") {
		t.Errorf("spooled path %q does not keep the upload name", got.Path)
	}
	if string(svc.fileBody) != "\xff\xd8\xffjpeg" {
		t.Errorf("spooled content = %q", svc.fileBody)
	}
	if _, err := os.Stat(got.Path); !os.IsNotExist(err) {
		t.Errorf("spooled file still present after the request: %v", err)
	}
}

func TestSearchByFile_UnsafeNames(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"..", "image"},
		{"../../etc/passwd", "passwd"},
		{"dir/cat.gif", "cat.gif"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			svc := &fakeService{}
			body, ctype := multipartBody(t, tt.filename, []byte("gif"), "")

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/search/file", body)
			req.Header.Set("Content-Type", ctype)
			newEngine(svc, 0).ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
			got := svc.requests[0].Path
			if filepath.Base(got) != tt.want {
				t.Errorf("spooled as %q, want base name %q", got, tt.want)
			}
			if string(svc.fileBody) != "gif" {
				t.Errorf("spooled content = %q", svc.fileBody)
			}
		})
	}
}

func TestSearchByFile_MissingImage(t *testing.T) {
	svc := &fakeService{}
	body, ctype := multipartBody(t, "", nil, "1")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/search/file", body)
	req.Header.Set("Content-Type", ctype)
	newEngine(svc, 0).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(svc.requests) != 0 {
		t.Error("service called without an image")
	}
}

func TestSearchByFile_TooLarge(t *testing.T) {
	svc := &fakeService{}
	body, ctype := multipartBody(t, "big.png", bytes.Repeat([]byte{1}, 4096), "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/search/file", body)
	req.Header.Set("Content-Type", ctype)
	newEngine(svc, 512).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(svc.requests) != 0 {
		t.Error("service called for an oversized upload")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name  string
		stats models.PoolStats
		want  string
	}{
		{"idle", models.PoolStats{MaxSessions: 4, LiveSessions: 1}, "healthy"},
		{"busy", models.PoolStats{MaxSessions: 4, LiveSessions: 4, ActiveSessions: 4}, "degraded"},
		{"at threshold", models.PoolStats{MaxSessions: 5, LiveSessions: 4, ActiveSessions: 4}, "healthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newEngine(&fakeService{stats: tt.stats}, 0).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			var resp models.HealthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.want {
				t.Errorf("status = %q, want %q", resp.Status, tt.want)
			}
			if resp.PoolStats != tt.stats || resp.Version != Version {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}
