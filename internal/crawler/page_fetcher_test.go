package crawler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error) {
	args := m.Called(ctx, request)
	return args.Get(0).(FetchResponse), args.Error(1)
}

type MockParser struct {
	mock.Mock
}

func (m *MockParser) Parse(payload []byte) (ParsedPage, error) {
	args := m.Called(payload)
	return args.Get(0).(ParsedPage), args.Error(1)
}

func okResponse(body string) FetchResponse {
	return FetchResponse{URL: "http://nav.test/page", StatusCode: 200, Body: []byte(body), Duration: 5 * time.Millisecond}
}

func TestFetchPageRecords(t *testing.T) {
	t.Parallel()

	fetcher := new(MockFetcher)
	parser := new(MockParser)
	req := FetchRequest{EntityID: "562500", Page: 2, PageSize: 20}
	fetcher.On("Fetch", mock.Anything, req).Return(okResponse("payload"), nil).Once()
	v := 1.1
	parser.On("Parse", []byte("payload")).Return(ParsedPage{
		Observations: []Observation{{Date: "2025-01-02", Value: &v}},
		Skipped:      1,
		TotalRecords: 40,
		TotalPages:   2,
	}, nil).Once()

	pf := NewRetryingPageFetcher(fetcher, parser, NewFixedRetryPolicy(1, time.Second), &recordingSleeper{}, 20, zap.NewNop())
	result := pf.FetchPage(context.Background(), "562500", 2)

	require.Equal(t, PageRecords, result.Kind)
	require.Len(t, result.Observations, 1)
	require.Equal(t, 1, result.Skipped)
	require.Equal(t, 40, result.TotalRecords)
	require.Equal(t, 2, result.TotalPages)
	require.Equal(t, 1, result.Attempts)
	require.Equal(t, 2, result.Rows())
	fetcher.AssertExpectations(t)
	parser.AssertExpectations(t)
}

func TestFetchPageRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	fetcher := new(MockFetcher)
	parser := new(MockParser)
	fetcher.On("Fetch", mock.Anything, mock.Anything).Return(FetchResponse{}, errors.New("timeout")).Once()
	fetcher.On("Fetch", mock.Anything, mock.Anything).Return(okResponse("payload"), nil).Once()
	parser.On("Parse", mock.Anything).Return(ParsedPage{TotalRecords: -1, Observations: []Observation{{Date: "2025-01-02"}}}, nil)

	sleeper := &recordingSleeper{}
	pf := NewRetryingPageFetcher(fetcher, parser, NewFixedRetryPolicy(1, 3*time.Second), sleeper, 20, nil)
	result := pf.FetchPage(context.Background(), "A", 1)

	require.Equal(t, PageRecords, result.Kind)
	require.Equal(t, 2, result.Attempts)
	require.Equal(t, []time.Duration{3 * time.Second}, sleeper.slept)
	fetcher.AssertNumberOfCalls(t, "Fetch", 2)
}

func TestFetchPageExhaustsRetries(t *testing.T) {
	t.Parallel()

	fetcher := new(MockFetcher)
	parser := new(MockParser)
	statusErr := &StatusError{URL: "http://nav.test", Code: 503}
	fetcher.On("Fetch", mock.Anything, mock.Anything).Return(FetchResponse{}, statusErr)

	sleeper := &recordingSleeper{}
	pf := NewRetryingPageFetcher(fetcher, parser, NewFixedRetryPolicy(2, time.Second), sleeper, 20, nil)
	result := pf.FetchPage(context.Background(), "A", 4)

	require.Equal(t, PageTransientFailure, result.Kind)
	require.Equal(t, 3, result.Attempts)
	require.Len(t, sleeper.slept, 2)
	var se *StatusError
	require.ErrorAs(t, result.Err, &se)
	require.Equal(t, 503, se.Code)
	fetcher.AssertNumberOfCalls(t, "Fetch", 3)
	parser.AssertNotCalled(t, "Parse", mock.Anything)
}

func TestFetchPageMalformedIsNotRetried(t *testing.T) {
	t.Parallel()

	fetcher := new(MockFetcher)
	parser := new(MockParser)
	fetcher.On("Fetch", mock.Anything, mock.Anything).Return(okResponse("<html>oops</html>"), nil)
	parser.On("Parse", mock.Anything).Return(ParsedPage{}, ErrMalformedPayload)

	pf := NewRetryingPageFetcher(fetcher, parser, NewFixedRetryPolicy(3, time.Second), &recordingSleeper{}, 20, nil)
	result := pf.FetchPage(context.Background(), "A", 1)

	require.Equal(t, PageMalformed, result.Kind)
	require.ErrorIs(t, result.Err, ErrMalformedPayload)
	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestFetchPageEndOfData(t *testing.T) {
	t.Parallel()

	t.Run("no data marker", func(t *testing.T) {
		t.Parallel()
		fetcher := new(MockFetcher)
		parser := new(MockParser)
		fetcher.On("Fetch", mock.Anything, mock.Anything).Return(okResponse("records:0"), nil)
		parser.On("Parse", mock.Anything).Return(ParsedPage{}, ErrNoData)

		result := NewRetryingPageFetcher(fetcher, parser, nil, nil, 20, nil).FetchPage(context.Background(), "A", 7)
		require.Equal(t, PageEndOfData, result.Kind)
		require.Zero(t, result.TotalRecords)
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()
		fetcher := new(MockFetcher)
		parser := new(MockParser)
		fetcher.On("Fetch", mock.Anything, mock.Anything).Return(okResponse(""), nil)

		result := NewRetryingPageFetcher(fetcher, parser, nil, nil, 20, nil).FetchPage(context.Background(), "A", 7)
		require.Equal(t, PageEndOfData, result.Kind)
		parser.AssertNotCalled(t, "Parse", mock.Anything)
	})
}

func TestFetchPageHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, mock.Anything).Return(FetchResponse{}, context.Canceled)

	pf := NewRetryingPageFetcher(fetcher, new(MockParser), NewFixedRetryPolicy(5, time.Second), &recordingSleeper{}, 20, nil)
	result := pf.FetchPage(ctx, "A", 1)

	require.Equal(t, PageTransientFailure, result.Kind)
	require.ErrorIs(t, result.Err, context.Canceled)
	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}
