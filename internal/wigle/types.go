// Package wigle defines the core types, interfaces and the paginated fetch loop
// used to pull OpenRoaming access points out of the WiGLE network search API.
package wigle

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidBoundingBox is returned when coordinates are out of range or inverted.
var ErrInvalidBoundingBox = errors.New("invalid bounding box")

// BoundingBox is the rectangular search region. It is treated as immutable for
// the lifetime of a run.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Validate checks coordinate ranges and ordering.
func (b BoundingBox) Validate() error {
	switch {
	case b.MinLat < -90 || b.MaxLat > 90:
		return fmt.Errorf("%w: latitude must be within [-90, 90]", ErrInvalidBoundingBox)
	case b.MinLon < -180 || b.MaxLon > 180:
		return fmt.Errorf("%w: longitude must be within [-180, 180]", ErrInvalidBoundingBox)
	case b.MinLat > b.MaxLat:
		return fmt.Errorf("%w: min latitude %v exceeds max latitude %v", ErrInvalidBoundingBox, b.MinLat, b.MaxLat)
	case b.MinLon > b.MaxLon:
		return fmt.Errorf("%w: min longitude %v exceeds max longitude %v", ErrInvalidBoundingBox, b.MinLon, b.MaxLon)
	}
	return nil
}

// Query is the per-run input handed to Fetcher.Run.
type Query struct {
	Credential string
	BBox       BoundingBox
	// AfterDate is a YYYYMMDD date; empty falls back to Config.DefaultAfterDate.
	AfterDate string
	RowIndex  int
}

// SearchParams are the query parameters sent to the search endpoint.
type SearchParams struct {
	BBox         BoundingBox
	LastUpdated  string
	RCOIsMinimum int
	SearchAfter  Cursor
}

// Values renders the parameters in the form the API expects.
func (p SearchParams) Values() map[string]string {
	out := map[string]string{
		"latrange1":    formatCoord(p.BBox.MinLat),
		"latrange2":    formatCoord(p.BBox.MaxLat),
		"longrange1":   formatCoord(p.BBox.MinLon),
		"longrange2":   formatCoord(p.BBox.MaxLon),
		"lastupdt":     p.LastUpdated,
		"rcoisMinimum": strconv.Itoa(p.RCOIsMinimum),
	}
	if !p.SearchAfter.Empty() {
		out["searchAfter"] = string(p.SearchAfter)
	}
	return out
}

// SearchRequest bundles the credential with the parameters of one page request.
type SearchRequest struct {
	Credential string
	Params     SearchParams
}

// SearchResponse is one decoded page of results.
type SearchResponse struct {
	Results []Record `json:"results"`
	// TotalResults is nil when the field was absent from the body.
	TotalResults *int   `json:"totalResults"`
	SearchAfter  Cursor `json:"searchAfter"`
}

// StopReason records why the fetch loop ended.
type StopReason string

// Loop termination reasons.
const (
	StopCompleted        StopReason = "completed"
	StopExhausted        StopReason = "exhausted"
	StopUnauthorized     StopReason = "unauthorized"
	StopRateLimited      StopReason = "rate_limited"
	StopHTTPError        StopReason = "http_error"
	StopRetriesExhausted StopReason = "retries_exhausted"
	StopTooManyRedirects StopReason = "too_many_redirects"
	StopCanceled         StopReason = "canceled"
	StopFailed           StopReason = "failed"
)

// Succeeded reports whether the run walked the whole result set.
func (r StopReason) Succeeded() bool {
	return r == StopCompleted || r == StopExhausted
}

// RunState holds the mutable counters of a single run.
type RunState struct {
	CurrentCount int
	// TotalCount is taken from the first successful page and never updated.
	TotalCount int
	TotalKnown bool
	Retries    int
	Pages      int
	Matched    int
}

// Summary is the outcome of Fetcher.Run.
type Summary struct {
	Query      Query
	AfterDate  string
	OutputPath string
	StartedAt  time.Time
	FinishedAt time.Time
	State      RunState
	Stop       StopReason
	Err        error
	FileRows   int
	FileFound  bool
}

// RunRecord is the archived description of a finished run.
type RunRecord struct {
	ID          string      `json:"id"`
	RowIndex    int         `json:"row_index"`
	BBox        BoundingBox `json:"bbox"`
	AfterDate   string      `json:"after_date"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
	Seen        int         `json:"seen"`
	Total       int         `json:"total"`
	Matched     int         `json:"matched"`
	Retries     int         `json:"retries"`
	Pages       int         `json:"pages"`
	Stop        StopReason  `json:"stop_reason"`
	ErrorText   string      `json:"error_text,omitempty"`
	OutputPath  string      `json:"output_path"`
	ContentHash string      `json:"content_hash,omitempty"`
	BlobURI     string      `json:"blob_uri,omitempty"`
}

// OutputPath builds {dir}/{row}_{minLat}_{minLon}_{YYYYMMDD_HHMMSS}.csv.
func OutputPath(dir string, rowIndex int, bbox BoundingBox, ts time.Time) string {
	name := fmt.Sprintf("%d_%s_%s_%s.csv",
		rowIndex,
		formatCoord(bbox.MinLat),
		formatCoord(bbox.MinLon),
		ts.Format("20060102_150405"),
	)
	return filepath.Join(dir, name)
}

// formatCoord renders v in its shortest form, keeping a ".0" on whole numbers.
func formatCoord(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
