package crawler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/realtime-nav-crawler/internal/metrics"
)

// RetryingPageFetcher combines a network Fetcher, a Parser and a RetryPolicy
// into a PageFetcher. It never returns an error: every outcome is folded into
// a PageResult so the Engine can branch on Kind.
type RetryingPageFetcher struct {
	fetcher  Fetcher
	parser   Parser
	policy   RetryPolicy
	sleeper  Sleeper
	pageSize int
	logger   *zap.Logger
}

// NewRetryingPageFetcher constructs a RetryingPageFetcher.
func NewRetryingPageFetcher(
	fetcher Fetcher,
	parser Parser,
	policy RetryPolicy,
	sleeper Sleeper,
	pageSize int,
	logger *zap.Logger,
) *RetryingPageFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy == nil {
		policy = NewFixedRetryPolicy(0, 0)
	}
	return &RetryingPageFetcher{
		fetcher:  fetcher,
		parser:   parser,
		policy:   policy,
		sleeper:  sleeper,
		pageSize: pageSize,
		logger:   logger,
	}
}

// FetchPage retrieves and classifies one page for entityID.
func (f *RetryingPageFetcher) FetchPage(ctx context.Context, entityID string, page int) PageResult {
	request := FetchRequest{EntityID: entityID, Page: page, PageSize: f.pageSize}
	for attempt := 1; ; attempt++ {
		resp, err := f.fetcher.Fetch(ctx, request)
		if err == nil {
			metrics.ObserveFetchDuration(resp.Duration)
			return f.classify(resp, attempt)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return transientFailure(attempt, fmt.Errorf("fetch %s page %d: %w", entityID, page, ctxErr))
		}
		if !f.policy.ShouldRetry(err, attempt) {
			return transientFailure(attempt, fmt.Errorf("fetch %s page %d: %w", entityID, page, err))
		}
		delay := f.policy.Backoff(attempt)
		metrics.ObserveRetry()
		f.logger.Warn("page fetch failed; retrying",
			zap.String("entity_id", entityID),
			zap.Int("page", page),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if f.sleeper != nil {
			if serr := f.sleeper.Sleep(ctx, delay); serr != nil {
				return transientFailure(attempt, fmt.Errorf("fetch %s page %d: %w", entityID, page, serr))
			}
		}
	}
}

func (f *RetryingPageFetcher) classify(resp FetchResponse, attempt int) PageResult {
	if len(resp.Body) == 0 {
		return PageResult{Kind: PageEndOfData, Attempts: attempt, TotalRecords: -1, TotalPages: -1}
	}
	parsed, err := f.parser.Parse(resp.Body)
	switch {
	case errors.Is(err, ErrNoData):
		return PageResult{Kind: PageEndOfData, Attempts: attempt, TotalRecords: 0, TotalPages: 0}
	case err != nil:
		return PageResult{
			Kind:         PageMalformed,
			Attempts:     attempt,
			TotalRecords: -1,
			TotalPages:   -1,
			Err:          fmt.Errorf("parse %s: %w", resp.URL, err),
		}
	}
	return PageResult{
		Kind:         PageRecords,
		Observations: parsed.Observations,
		Skipped:      parsed.Skipped,
		TotalRecords: parsed.TotalRecords,
		TotalPages:   parsed.TotalPages,
		Attempts:     attempt,
	}
}

func transientFailure(attempt int, err error) PageResult {
	return PageResult{Kind: PageTransientFailure, Attempts: attempt, TotalRecords: -1, TotalPages: -1, Err: err}
}
