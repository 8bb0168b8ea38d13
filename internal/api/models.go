package api

import (
	"github.com/dbh/mdcite/internal/citation"
	"github.com/dbh/mdcite/internal/report"
)

// TransformRequest is the body for POST /api/v1/transform.
type TransformRequest struct {
	// Content is the Markdown (or HTML) document. Empty content is valid.
	Content *string `json:"content" binding:"required"`

	// Filename is echoed back in the response.
	Filename string `json:"filename,omitempty"`

	// GroupByDomain and KeepDomainNames default to the server configuration
	// when omitted.
	GroupByDomain   *bool `json:"group_by_domain,omitempty"`
	KeepDomainNames *bool `json:"keep_domain_names,omitempty"`

	// HTML is "auto", "always" or "never"; empty uses the server default.
	HTML string `json:"html,omitempty"`

	// Render adds HTML previews of the original and rewritten documents.
	Render bool `json:"render,omitempty"`
}

// TransformResponse is the response for POST /api/v1/transform.
type TransformResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id,omitempty"`
	Filename  string `json:"filename,omitempty"`

	// Content is the rewritten document.
	Content    string                 `json:"content"`
	UniqueURLs int                    `json:"unique_urls"`
	References []citation.Reference   `json:"references"`
	Domains    []citation.DomainGroup `json:"domains,omitempty"`

	// ConvertedFromHTML reports whether the input went through HTML ingestion.
	ConvertedFromHTML bool `json:"converted_from_html"`

	Stats   report.Stats `json:"stats"`
	Summary string       `json:"summary"`

	OriginalHTML string `json:"original_html,omitempty"`
	ContentHTML  string `json:"content_html,omitempty"`

	// CacheStatus is "hit" or "miss".
	CacheStatus string `json:"cache_status,omitempty"`

	Error *ErrorDetail `json:"error,omitempty"`
}

// UploadResponse is the response for POST /api/v1/transform/upload.
type UploadResponse struct {
	Success   bool         `json:"success"`
	RequestID string       `json:"request_id,omitempty"`
	Files     []FileResult `json:"files"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

// FileResult is the outcome for one uploaded file.
type FileResult struct {
	Filename          string                 `json:"filename"`
	Success           bool                   `json:"success"`
	Content           string                 `json:"content,omitempty"`
	UniqueURLs        int                    `json:"unique_urls"`
	References        []citation.Reference   `json:"references,omitempty"`
	Domains           []citation.DomainGroup `json:"domains,omitempty"`
	ConvertedFromHTML bool                   `json:"converted_from_html"`
	Stats             report.Stats           `json:"stats"`
	Summary           string                 `json:"summary,omitempty"`
	Error             *ErrorDetail           `json:"error,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}
