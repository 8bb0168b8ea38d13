package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dbh/mdcite/internal/batch"
	"github.com/dbh/mdcite/internal/cache"
	"github.com/dbh/mdcite/internal/citation"
	"github.com/dbh/mdcite/internal/config"
	"github.com/dbh/mdcite/internal/logger"
	"github.com/dbh/mdcite/internal/markdown"
	"github.com/dbh/mdcite/internal/metrics"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// MaxUploadFiles caps the number of files in one upload request.
const MaxUploadFiles = 32

// Handler serves the transform endpoints.
type Handler struct {
	cfg       *config.Config
	log       logger.Logger
	metrics   *metrics.Metrics
	cache     *cache.Cache[*TransformResponse]
	startTime time.Time
}

// NewHandler creates a Handler. cc may be nil to disable caching.
func NewHandler(cfg *config.Config, log logger.Logger, m *metrics.Metrics, cc *cache.Cache[*TransformResponse], startTime time.Time) *Handler {
	return &Handler{cfg: cfg, log: log, metrics: m, cache: cc, startTime: startTime}
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
		Version: Version,
	})
}

// Transform handles POST /api/v1/transform.
func (h *Handler) Transform(c *gin.Context) {
	var req TransformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}

	opts := h.citationOptions(req.GroupByDomain, req.KeepDomainNames)
	mode, err := h.htmlMode(req.HTML)
	if err != nil {
		h.fail(c, NewError(ErrCodeInvalidInput, err.Error(), err))
		return
	}

	content := *req.Content
	key := cache.Key(content, opts.GroupByDomain, opts.KeepDomainNames, string(mode), req.Render)
	if cached, ok := h.lookup(key); ok {
		resp := *cached
		resp.RequestID = c.GetString(requestIDKey)
		resp.Filename = req.Filename
		resp.CacheStatus = "hit"
		c.JSON(http.StatusOK, resp)
		return
	}

	res := batch.Process(batch.Document{Name: req.Filename, Content: content}, batch.Options{Citation: opts, HTML: mode})
	if res.Err != nil {
		h.fail(c, NewError(ErrCodeConversionFailed, "could not convert HTML input", res.Err))
		return
	}

	resp := &TransformResponse{
		Success:           true,
		Content:           res.Rewrite.Text,
		UniqueURLs:        res.Rewrite.UniqueURLs,
		References:        res.Rewrite.References,
		Domains:           res.Rewrite.Domains,
		ConvertedFromHTML: res.Converted,
		Stats:             res.Stats,
		Summary:           res.Stats.Summary(),
	}
	if req.Render {
		if err := renderPreviews(resp, content, res.Converted); err != nil {
			h.fail(c, NewError(ErrCodeInternal, "could not render preview", err))
			return
		}
	}

	h.metrics.ObserveDocument(metrics.SurfaceHTTP, res.Rewrite.UniqueURLs, res.Elapsed)
	if h.cache != nil {
		h.cache.Set(key, resp)
	}

	out := *resp
	out.RequestID = c.GetString(requestIDKey)
	out.Filename = req.Filename
	if h.cache != nil {
		out.CacheStatus = "miss"
	}
	c.JSON(http.StatusOK, out)
}

// Upload handles POST /api/v1/transform/upload with multipart files[] and
// optional group_by_domain, keep_domain_names and html form fields.
func (h *Handler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.fail(c, bindError(err))
		return
	}

	files := form.File["files[]"]
	if len(files) == 0 {
		files = form.File["files"]
	}
	if len(files) == 0 {
		h.fail(c, NewError(ErrCodeInvalidInput, "no files uploaded (use the files[] field)", nil))
		return
	}
	if len(files) > MaxUploadFiles {
		h.fail(c, NewError(ErrCodeInvalidInput, fmt.Sprintf("too many files: %d (max %d)", len(files), MaxUploadFiles), nil))
		return
	}

	group, err := formBool(c, "group_by_domain")
	if err != nil {
		h.fail(c, NewError(ErrCodeInvalidInput, err.Error(), err))
		return
	}
	keep, err := formBool(c, "keep_domain_names")
	if err != nil {
		h.fail(c, NewError(ErrCodeInvalidInput, err.Error(), err))
		return
	}
	mode, err := h.htmlMode(c.PostForm("html"))
	if err != nil {
		h.fail(c, NewError(ErrCodeInvalidInput, err.Error(), err))
		return
	}

	results := make([]FileResult, len(files))
	docs := make([]batch.Document, 0, len(files))
	slots := make([]int, 0, len(files))
	for i, fh := range files {
		results[i].Filename = fh.Filename
		content, err := h.readUpload(fh)
		if err != nil {
			results[i].Error = err.Detail()
			h.metrics.ObserveFailure(err.Code)
			continue
		}
		docs = append(docs, batch.Document{Name: fh.Filename, Content: content})
		slots = append(slots, i)
	}

	batchResults, runErr := batch.Run(c.Request.Context(), docs, batch.Options{
		Citation: h.citationOptions(group, keep),
		HTML:     mode,
		Limit:    h.cfg.Transform.BatchLimit,
	})
	if runErr != nil {
		h.fail(c, NewError(ErrCodeInternal, "batch interrupted", runErr))
		return
	}

	for j, res := range batchResults {
		fr := &results[slots[j]]
		if res.Err != nil {
			e := NewError(ErrCodeConversionFailed, "could not convert HTML input", res.Err)
			fr.Error = e.Detail()
			h.metrics.ObserveFailure(e.Code)
			_ = c.Error(e)
			continue
		}
		fr.Success = true
		fr.Content = res.Rewrite.Text
		fr.UniqueURLs = res.Rewrite.UniqueURLs
		fr.References = res.Rewrite.References
		fr.Domains = res.Rewrite.Domains
		fr.ConvertedFromHTML = res.Converted
		fr.Stats = res.Stats
		fr.Summary = res.Stats.Summary()
		h.metrics.ObserveDocument(metrics.SurfaceUpload, res.Rewrite.UniqueURLs, res.Elapsed)
	}

	failed := 0
	for _, fr := range results {
		if !fr.Success {
			failed++
		}
	}
	h.log.Info("Upload processed",
		logger.String("request_id", c.GetString(requestIDKey)),
		logger.Int("files", len(results)),
		logger.Int("failed", failed),
	)

	c.JSON(http.StatusOK, UploadResponse{
		Success:   true,
		RequestID: c.GetString(requestIDKey),
		Files:     results,
	})
}

func (h *Handler) lookup(key string) (*TransformResponse, bool) {
	if h.cache == nil {
		return nil, false
	}
	resp, ok := h.cache.Get(key)
	h.metrics.ObserveCache(ok)
	return resp, ok
}

func (h *Handler) readUpload(fh *multipart.FileHeader) (string, *Error) {
	limit := h.cfg.Server.MaxDocumentBytes
	if fh.Size > limit {
		return "", NewError(ErrCodeInvalidInput, fmt.Sprintf("file exceeds %d bytes", limit), nil)
	}
	f, err := fh.Open()
	if err != nil {
		return "", NewError(ErrCodeInvalidInput, "could not open uploaded file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return "", NewError(ErrCodeInvalidInput, "could not read uploaded file", err)
	}
	if int64(len(data)) > limit {
		return "", NewError(ErrCodeInvalidInput, fmt.Sprintf("file exceeds %d bytes", limit), nil)
	}
	return string(data), nil
}

func (h *Handler) citationOptions(group, keep *bool) citation.Options {
	opts := citation.Options{
		GroupByDomain:   h.cfg.Transform.GroupByDomain,
		KeepDomainNames: h.cfg.Transform.KeepDomainNames,
	}
	if group != nil {
		opts.GroupByDomain = *group
	}
	if keep != nil {
		opts.KeepDomainNames = *keep
	}
	return opts
}

func (h *Handler) htmlMode(s string) (markdown.HTMLMode, error) {
	if s == "" {
		s = h.cfg.Transform.HTML
	}
	return markdown.ParseHTMLMode(s)
}

// fail writes err as a JSON error response and attaches it to the context
// for request logging.
func (h *Handler) fail(c *gin.Context, err *Error) {
	status := err.Status()
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		status = http.StatusRequestEntityTooLarge
	}
	h.metrics.ObserveFailure(err.Code)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorBody(err))
}

func bindError(err error) *Error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return NewError(ErrCodeInvalidInput, fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit), err)
	}
	return NewError(ErrCodeInvalidInput, "invalid request: "+err.Error(), err)
}

func renderPreviews(resp *TransformResponse, original string, converted bool) error {
	if converted {
		resp.OriginalHTML = original
	} else {
		html, err := markdown.ToHTML(original)
		if err != nil {
			return err
		}
		resp.OriginalHTML = html
	}
	html, err := markdown.ToHTML(resp.Content)
	if err != nil {
		return err
	}
	resp.ContentHTML = html
	return nil
}

func formBool(c *gin.Context, field string) (*bool, error) {
	v := c.PostForm(field)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a boolean", field, v)
	}
	return &b, nil
}
