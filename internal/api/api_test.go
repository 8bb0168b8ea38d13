package api_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbh/mdcite/internal/api"
	"github.com/dbh/mdcite/internal/cache"
	"github.com/dbh/mdcite/internal/config"
	"github.com/dbh/mdcite/internal/logger"
	"github.com/dbh/mdcite/internal/metrics"
)

const sampleDoc = "[A](https://a.com/x) then [B](https://b.com/y) then [C](https://a.com/z)"

const sampleGrouped = "A[1] then B[2] then C[3]" +
	"\n\n## References\n\n" +
	"### a.com\n\n[1] https://a.com/x\n\n[3] https://a.com/z\n\n" +
	"### b.com\n\n[2] https://b.com/y\n\n"

func newTestRouter(t *testing.T, mutate func(*config.Config)) *gin.Engine {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Mode = gin.TestMode
	cfg.RateLimit.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	cc := cache.New[*api.TransformResponse](cfg.Cache.MaxEntries, cfg.Cache.TTL)
	t.Cleanup(cc.Close)

	log := logger.NewNop()
	m := metrics.New(prometheus.NewRegistry())
	h := api.NewHandler(cfg, log, m, cc, time.Now())
	return api.NewRouter(cfg, log, m, h)
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[api.HealthResponse](t, rec)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, api.Version, resp.Version)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestTransform_Defaults(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := postJSON(t, r, "/api/v1/transform", map[string]any{
		"content":  sampleDoc,
		"filename": "report.md",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[api.TransformResponse](t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "report.md", resp.Filename)
	assert.Equal(t, sampleGrouped, resp.Content)
	assert.Equal(t, 3, resp.UniqueURLs)
	require.Len(t, resp.References, 3)
	assert.Equal(t, "https://b.com/y", resp.References[1].URL)
	require.Len(t, resp.Domains, 2)
	assert.Equal(t, "a.com", resp.Domains[0].Domain)
	assert.False(t, resp.ConvertedFromHTML)
	assert.Equal(t, "miss", resp.CacheStatus)
	assert.NotEmpty(t, resp.RequestID)
	assert.NotEmpty(t, resp.Summary)
	assert.Empty(t, resp.ContentHTML)
}

func TestTransform_FlatOptions(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := postJSON(t, r, "/api/v1/transform", map[string]any{
		"content":           "Results from arxiv.org[2] and [x](https://x.io/a#b).",
		"group_by_domain":   false,
		"keep_domain_names": false,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[api.TransformResponse](t, rec)
	assert.Equal(t, "Results from [2] and x[1].\n\n## References\n\n[1] https://x.io/a\n\n", resp.Content)
	assert.Empty(t, resp.Domains)
}

func TestTransform_EmptyContentIsValid(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := postJSON(t, r, "/api/v1/transform", map[string]any{"content": ""})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[api.TransformResponse](t, rec)
	assert.Equal(t, "\n\n## References\n\n", resp.Content)
	assert.Equal(t, 0, resp.UniqueURLs)
}

func TestTransform_CacheHit(t *testing.T) {
	r := newTestRouter(t, nil)
	body := map[string]any{"content": sampleDoc}

	first := decode[api.TransformResponse](t, postJSON(t, r, "/api/v1/transform", body))
	second := decode[api.TransformResponse](t, postJSON(t, r, "/api/v1/transform", body))

	assert.Equal(t, "miss", first.CacheStatus)
	assert.Equal(t, "hit", second.CacheStatus)
	assert.Equal(t, first.Content, second.Content)
	assert.NotEqual(t, first.RequestID, second.RequestID)

	// different options are a different entry
	third := decode[api.TransformResponse](t, postJSON(t, r, "/api/v1/transform",
		map[string]any{"content": sampleDoc, "group_by_domain": false}))
	assert.Equal(t, "miss", third.CacheStatus)
}

func TestTransform_HTMLInput(t *testing.T) {
	r := newTestRouter(t, nil)

	rec := postJSON(t, r, "/api/v1/transform", map[string]any{
		"content": `<!DOCTYPE html><html><body><p>Read <a href="https://go.dev/doc">the docs</a>.</p></body></html>`,
		"render":  true,
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[api.TransformResponse](t, rec)
	assert.True(t, resp.ConvertedFromHTML)
	assert.Contains(t, resp.Content, "the docs[1]")
	assert.Contains(t, resp.Content, "### go.dev\n\n[1] https://go.dev/doc")
	assert.Contains(t, resp.OriginalHTML, "<a href=")
	assert.Contains(t, resp.ContentHTML, "<h2>References</h2>")
}

func TestTransform_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "missing content", body: `{"filename":"a.md"}`, status: http.StatusBadRequest},
		{name: "malformed json", body: `{"content":`, status: http.StatusBadRequest},
		{name: "bad html mode", body: `{"content":"x","html":"sometimes"}`, status: http.StatusBadRequest},
	}

	r := newTestRouter(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/transform", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			resp := decode[api.TransformResponse](t, rec)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, api.ErrCodeInvalidInput, resp.Error.Code)
		})
	}
}

func TestTransform_BodyTooLarge(t *testing.T) {
	r := newTestRouter(t, func(cfg *config.Config) { cfg.Server.MaxDocumentBytes = 64 })

	rec := postJSON(t, r, "/api/v1/transform", map[string]any{"content": strings.Repeat("x", 200)})

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	resp := decode[api.TransformResponse](t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, api.ErrCodeInvalidInput, resp.Error.Code)
}

func TestRateLimit(t *testing.T) {
	r := newTestRouter(t, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 2}
	})

	for range 2 {
		rec := postJSON(t, r, "/api/v1/transform", map[string]any{"content": "x"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := postJSON(t, r, "/api/v1/transform", map[string]any{"content": "x"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	resp := decode[api.TransformResponse](t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, api.ErrCodeRateLimited, resp.Error.Code)

	// health is outside the limiter
	health := httptest.NewRecorder()
	r.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, health.Code)
}

func newUpload(t *testing.T, files map[string]string, order []string, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, name := range order {
		part, err := w.CreateFormFile("files[]", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transform/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	r := newTestRouter(t, nil)

	files := map[string]string{
		"one.md": sampleDoc,
		"two.md": "See https://example.org/page for details.",
	}
	req := newUpload(t, files, []string{"one.md", "two.md"}, map[string]string{"group_by_domain": "false"})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[api.UploadResponse](t, rec)
	assert.True(t, resp.Success)
	require.Len(t, resp.Files, 2)

	assert.Equal(t, "one.md", resp.Files[0].Filename)
	assert.True(t, resp.Files[0].Success)
	assert.Equal(t, 3, resp.Files[0].UniqueURLs)
	assert.NotContains(t, resp.Files[0].Content, "### ")

	// each file numbers from 1 independently
	assert.Equal(t, "two.md", resp.Files[1].Filename)
	assert.Equal(t, "See [1] for details.\n\n## References\n\n[1] https://example.org/page\n\n", resp.Files[1].Content)
}

func TestUpload_PerFileLimit(t *testing.T) {
	r := newTestRouter(t, func(cfg *config.Config) { cfg.Server.MaxDocumentBytes = 100 })

	files := map[string]string{
		"big.md":   strings.Repeat("y", 150),
		"small.md": "[x](https://x.io)",
	}
	req := newUpload(t, files, []string{"big.md", "small.md"}, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[api.UploadResponse](t, rec)
	require.Len(t, resp.Files, 2)
	assert.False(t, resp.Files[0].Success)
	require.NotNil(t, resp.Files[0].Error)
	assert.Equal(t, api.ErrCodeInvalidInput, resp.Files[0].Error.Code)
	assert.True(t, resp.Files[1].Success)
	assert.Equal(t, 1, resp.Files[1].UniqueURLs)
}

func TestUpload_Errors(t *testing.T) {
	r := newTestRouter(t, nil)

	t.Run("no files", func(t *testing.T) {
		req := newUpload(t, nil, nil, map[string]string{"html": "auto"})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad toggle", func(t *testing.T) {
		req := newUpload(t, map[string]string{"a.md": "x"}, []string{"a.md"}, map[string]string{"keep_domain_names": "maybe"})
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, nil)
	postJSON(t, r, "/api/v1/transform", map[string]any{"content": sampleDoc})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mdcite_documents_total{surface="http"} 1`)
	assert.Contains(t, rec.Body.String(), "mdcite_unique_urls_total 3")
}

func TestErrorUnwrap(t *testing.T) {
	cause := assert.AnError
	err := api.NewError(api.ErrCodeConversionFailed, "could not convert", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusUnprocessableEntity, err.Status())
	assert.Equal(t, &api.ErrorDetail{Code: api.ErrCodeConversionFailed, Message: "could not convert"}, err.Detail())
	assert.Contains(t, err.Error(), "CONVERSION_FAILED")
}
