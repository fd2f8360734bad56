package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		keys    []string
		headers map[string]string
		want    int
	}{
		{"no keys configured", nil, nil, http.StatusOK},
		{"only empty keys", []string{""}, nil, http.StatusOK},
		{"missing key", []string{"k1"}, nil, http.StatusUnauthorized},
		{"x-api-key", []string{"k1", "k2"}, map[string]string{"X-API-Key": "k2"}, http.StatusOK},
		{"bearer", []string{"k1"}, map[string]string{"Authorization": "Bearer k1"}, http.StatusOK},
		{"bearer lowercase", []string{"k1"}, map[string]string{"Authorization": "bearer k1"}, http.StatusOK},
		{"wrong key", []string{"k1"}, map[string]string{"X-API-Key": "k1x"}, http.StatusUnauthorized},
		{"basic auth", []string{"k1"}, map[string]string{"Authorization": "Basic k1"}, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(Auth(tt.keys))
			r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(APIKeyContextKey)) })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}
