package wigle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"

	"github.com/JakeFAU/wigle-openroaming/internal/metrics"
)

// ErrMissingTotal is returned when the first page omits totalResults.
var ErrMissingTotal = errors.New("response is missing totalResults")

// Config controls Fetcher behavior.
type Config struct {
	// BaseURL is only used to label request metrics.
	BaseURL          string
	DefaultAfterDate string
	RCOIsMinimum     int
	RequestDelay     time.Duration
	RetryDelay       time.Duration
	// MaxRetries bounds the attempts made for one page request.
	MaxRetries int
	OutputDir  string
}

// Fetcher walks the paginated search results for one bounding box and
// appends matching records to a CSV sink.
type Fetcher struct {
	searcher  Searcher
	filter    *OrgFilter
	openSink  SinkOpener
	countRows RowCounter
	pauser    Pauser
	clock     Clock
	cfg       Config
	logger    *zap.Logger
}

// NewFetcher constructs a Fetcher.
func NewFetcher(
	searcher Searcher,
	filter *OrgFilter,
	openSink SinkOpener,
	countRows RowCounter,
	pauser Pauser,
	clock Clock,
	cfg Config,
	logger *zap.Logger,
) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pauser == nil {
		pauser = TimerPauser{}
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.RCOIsMinimum < 1 {
		cfg.RCOIsMinimum = 1
	}
	if cfg.DefaultAfterDate == "" {
		cfg.DefaultAfterDate = DefaultAfterDate
	}
	metrics.Init()
	return &Fetcher{
		searcher:  searcher,
		filter:    filter,
		openSink:  openSink,
		countRows: countRows,
		pauser:    pauser,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run fetches every page for q. The credential is sent as given; callers
// check it with IsValidToken. The returned error covers only problems that
// prevent the loop from starting (bad input, unopenable output); how the loop
// ended is reported through Summary.Stop and Summary.Err.
func (f *Fetcher) Run(ctx context.Context, q Query) (Summary, error) {
	if err := q.BBox.Validate(); err != nil {
		return Summary{Query: q}, err
	}
	afterDate := q.AfterDate
	if afterDate == "" {
		afterDate = f.cfg.DefaultAfterDate
	}
	if err := ValidateAfterDate(afterDate); err != nil {
		return Summary{Query: q}, err
	}

	started := f.clock.Now()
	summary := Summary{
		Query:      q,
		AfterDate:  afterDate,
		OutputPath: OutputPath(f.cfg.OutputDir, q.RowIndex, q.BBox, started),
		StartedAt:  started,
	}

	sink, err := f.openSink(summary.OutputPath)
	if err != nil {
		return summary, fmt.Errorf("open sink: %w", err)
	}

	logger := f.logger.With(
		zap.Int("row", q.RowIndex),
		zap.String("output", summary.OutputPath),
	)
	logger.Info("retrieving results",
		zap.Float64("min_lat", q.BBox.MinLat),
		zap.Float64("max_lat", q.BBox.MaxLat),
		zap.Float64("min_lon", q.BBox.MinLon),
		zap.Float64("max_lon", q.BBox.MaxLon),
		zap.String("after_date", afterDate),
	)

	req := SearchRequest{
		Credential: q.Credential,
		Params: SearchParams{
			BBox:         q.BBox,
			LastUpdated:  afterDate,
			RCOIsMinimum: f.cfg.RCOIsMinimum,
		},
	}
	state, stop, loopErr := f.loop(ctx, logger, sink, req)
	if err := sink.Close(); err != nil && loopErr == nil {
		loopErr = fmt.Errorf("close sink: %w", err)
		stop = StopFailed
	}

	logger.Info("all results retrieved",
		zap.Int("total_results", state.CurrentCount),
		zap.Int("matched", state.Matched),
		zap.String("stop_reason", string(stop)),
	)

	summary.State = state
	summary.Stop = stop
	summary.Err = loopErr
	summary.FileRows, summary.FileFound = f.reportRows(logger, summary.OutputPath)
	summary.FinishedAt = f.clock.Now()
	metrics.ObserveRun(string(stop), summary.FinishedAt)
	return summary, nil
}

func (f *Fetcher) loop(ctx context.Context, logger *zap.Logger, sink Sink, req SearchRequest) (RunState, StopReason, error) {
	var state RunState
	for {
		resp, err := f.search(ctx, logger, req, &state)
		if err != nil {
			return state, f.stopFor(logger, err), err
		}

		state.Pages++
		state.CurrentCount += len(resp.Results)
		if !state.TotalKnown {
			if resp.TotalResults == nil {
				logger.Error("an error occurred", zap.Error(ErrMissingTotal))
				return state, StopFailed, ErrMissingTotal
			}
			state.TotalCount = *resp.TotalResults
			state.TotalKnown = true
		}
		logger.Info("retrieved results",
			zap.Int("current", state.CurrentCount),
			zap.Int("total", state.TotalCount),
		)

		matches := f.filter.Apply(resp.Results)
		if len(matches) > 0 {
			written, err := sink.Append(ctx, matches)
			if err != nil {
				err = fmt.Errorf("append results: %w", err)
				logger.Error("an error occurred", zap.Error(err))
				return state, StopFailed, err
			}
			state.Matched += written
			metrics.ObserveRowsWritten(written)
		}
		metrics.ObservePage(len(resp.Results), len(matches))

		if state.CurrentCount >= state.TotalCount {
			return state, StopCompleted, nil
		}
		if resp.SearchAfter.Empty() {
			return state, StopExhausted, nil
		}
		req.Params.SearchAfter = resp.SearchAfter

		if err := f.pauser.Pause(ctx, f.cfg.RequestDelay); err != nil {
			logger.Warn("run canceled while pacing", zap.Error(err))
			return state, StopCanceled, err
		}
	}
}

// search issues one page request, retrying timeouts and connection errors
// with a fixed delay. Retries are counted per request and summed into state.
func (f *Fetcher) search(ctx context.Context, logger *zap.Logger, req SearchRequest, state *RunState) (SearchResponse, error) {
	var resp SearchResponse
	err := retry.Do(
		func() error {
			start := time.Now()
			out, err := f.searcher.Search(ctx, req)
			metrics.ObserveRequest(f.cfg.BaseURL, requestOutcome(err), time.Since(start))
			if err != nil {
				return err
			}
			resp = out
			return nil
		},
		retry.Attempts(uint(f.cfg.MaxRetries)),
		retry.Delay(f.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			return KindOf(err).Transient()
		}),
		retry.OnRetry(func(n uint, err error) {
			state.Retries++
			kind := KindOf(err)
			metrics.ObserveRetry(kind.String())
			logger.Warn("request failed, retrying",
				zap.String("kind", kind.String()),
				zap.Uint("attempt", n+1),
				zap.Int("max_retries", f.cfg.MaxRetries),
				zap.Error(err),
			)
		}),
	)
	if err != nil {
		return SearchResponse{}, err
	}
	return resp, nil
}

func (f *Fetcher) stopFor(logger *zap.Logger, err error) StopReason {
	switch kind := KindOf(err); kind {
	case KindUnauthorized:
		logger.Error("unauthorized, check your API token")
		return StopUnauthorized
	case KindRateLimited:
		logger.Warn("too many requests, keeping the results saved so far")
		return StopRateLimited
	case KindHTTPStatus:
		logger.Error("failed to retrieve results", zap.Int("status", StatusCodeOf(err)))
		return StopHTTPError
	case KindTimeout, KindConnection:
		logger.Error("giving up after repeated failures",
			zap.String("kind", kind.String()),
			zap.Int("max_retries", f.cfg.MaxRetries),
			zap.Error(err),
		)
		return StopRetriesExhausted
	case KindTooManyRedirects:
		logger.Error("too many redirects, terminating request")
		return StopTooManyRedirects
	case KindCanceled:
		logger.Warn("run canceled", zap.Error(err))
		return StopCanceled
	default:
		logger.Error("an error occurred", zap.Error(err))
		return StopFailed
	}
}

func (f *Fetcher) reportRows(logger *zap.Logger, path string) (int, bool) {
	if f.countRows == nil {
		return 0, false
	}
	rows, err := f.countRows(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("csv file not found")
		return 0, false
	case err != nil:
		logger.Warn("count csv rows failed", zap.Error(err))
		return 0, true
	}
	logger.Info("rows in csv file", zap.Int("rows", rows))
	return rows, true
}

func requestOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	return KindOf(err).String()
}
