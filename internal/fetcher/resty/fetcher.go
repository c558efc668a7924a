// Package restyfetcher implements wigle.Searcher using resty.
package restyfetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"go.uber.org/zap"
	resty "gopkg.in/resty.v1"

	"github.com/JakeFAU/wigle-openroaming/internal/wigle"
)

// DefaultBaseURL is the WiGLE network search endpoint.
const DefaultBaseURL = "https://api.wigle.net/api/v2/network/search"

// Config controls client behavior.
type Config struct {
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	MaxRedirects int
}

// Fetcher implements wigle.Searcher on top of a resty client.
type Fetcher struct {
	cfg    Config
	client *resty.Client
	logger *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New()
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	client.SetHeader("Accept", "application/json")
	client.SetRedirectPolicy(redirectLimit(cfg.MaxRedirects))

	return &Fetcher{
		cfg:    cfg,
		client: client,
		logger: logger,
	}
}

// redirectLimit stops following redirects after max hops.
func redirectLimit(maxHops int) resty.RedirectPolicy {
	return resty.RedirectPolicyFunc(func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxHops {
			return fmt.Errorf("stopped after %d redirects: %w", maxHops, wigle.ErrTooManyRedirects)
		}
		return nil
	})
}

// Search executes a single GET for one page of results.
func (f *Fetcher) Search(ctx context.Context, req wigle.SearchRequest) (wigle.SearchResponse, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Basic "+req.Credential).
		SetQueryParams(req.Params.Values()).
		Get(f.cfg.BaseURL)
	if err != nil {
		return wigle.SearchResponse{}, classifyError(ctx, err)
	}

	f.logger.Debug("search response",
		zap.Int("status", resp.StatusCode()),
		zap.Duration("duration", resp.Time()),
		zap.Int("bytes", len(resp.Body())),
	)

	if err := statusError(resp.StatusCode()); err != nil {
		return wigle.SearchResponse{}, err
	}
	return decode(resp.Body())
}

func statusError(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusUnauthorized:
		return &wigle.RequestError{Kind: wigle.KindUnauthorized, StatusCode: code}
	case code == http.StatusTooManyRequests:
		return &wigle.RequestError{Kind: wigle.KindRateLimited, StatusCode: code}
	default:
		return &wigle.RequestError{Kind: wigle.KindHTTPStatus, StatusCode: code}
	}
}

// decode parses a 200 body. The results key must be present.
func decode(body []byte) (wigle.SearchResponse, error) {
	var envelope struct {
		Results      *[]wigle.Record `json:"results"`
		TotalResults *int            `json:"totalResults"`
		SearchAfter  wigle.Cursor    `json:"searchAfter"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return wigle.SearchResponse{}, &wigle.RequestError{
			Kind:       wigle.KindMalformed,
			StatusCode: http.StatusOK,
			Err:        fmt.Errorf("decode search response: %w", err),
		}
	}
	if envelope.Results == nil {
		return wigle.SearchResponse{}, &wigle.RequestError{
			Kind:       wigle.KindMalformed,
			StatusCode: http.StatusOK,
			Err:        errors.New("search response has no results field"),
		}
	}
	return wigle.SearchResponse{
		Results:      *envelope.Results,
		TotalResults: envelope.TotalResults,
		SearchAfter:  envelope.SearchAfter,
	}, nil
}

// classifyError maps a transport failure onto a request error kind.
func classifyError(ctx context.Context, err error) error {
	kind := wigle.KindOther
	var (
		netErr net.Error
		opErr  *net.OpError
		dnsErr *net.DNSError
	)
	switch {
	case errors.Is(err, wigle.ErrTooManyRedirects):
		kind = wigle.KindTooManyRedirects
	case errors.Is(err, context.Canceled) || (ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled)):
		kind = wigle.KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		kind = wigle.KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = wigle.KindTimeout
	case errors.As(err, &dnsErr),
		errors.As(err, &opErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		kind = wigle.KindConnection
	}
	return &wigle.RequestError{Kind: kind, Err: err}
}
