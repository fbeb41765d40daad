package navigation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/reactor/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/reactor/internal/infrastructure/resilience"
)

// ErrNonSuccess marks a response outside the 2xx range
var ErrNonSuccess = errors.New("non-success status")

// Page is a fetched document
type Page struct {
	// URL is the final URL after redirects
	URL    *url.URL
	Status int
	Body   string
}

// FetchError describes a failed page fetch
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher loads pages
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// FetchOptions configures an HTTPFetcher
type FetchOptions struct {
	Timeout      time.Duration
	Retries      int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RPS limits page fetches per second; zero means unlimited
	RPS       float64
	UserAgent string
	// TripAfter consecutive failures open the breaker for Cooldown
	TripAfter int
	Cooldown  time.Duration
	Jar       http.CookieJar
	Logger    *zap.Logger
	Metrics   *monitoring.Metrics
}

// HTTPFetcher fetches pages over HTTP with retries, rate limiting and a
// circuit breaker
type HTTPFetcher struct {
	client  *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewHTTPFetcher creates a fetcher
func NewHTTPFetcher(opts FetchOptions) *HTTPFetcher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = 100 * time.Millisecond
	}
	if opts.RetryWaitMax < opts.RetryWaitMin {
		opts.RetryWaitMax = 2 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "reactor-client/1.0"
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.Retries
	rc.RetryWaitMin = opts.RetryWaitMin
	rc.RetryWaitMax = opts.RetryWaitMax
	rc.Logger = retryLogger{logger.Sugar()}
	rc.HTTPClient.Timeout = opts.Timeout

	std := rc.StandardClient()
	std.Jar = opts.Jar

	client := resty.NewWithClient(std).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml")

	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}

	f := &HTTPFetcher{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		metrics: opts.Metrics,
	}
	f.breaker = resilience.New("fetch", resilience.Settings{
		Threshold: opts.TripAfter,
		Cooldown:  opts.Cooldown,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return f
}

// Breaker exposes the fetch circuit breaker
func (f *HTTPFetcher) Breaker() *resilience.Breaker {
	return f.breaker
}

// Fetch GETs rawURL. Any status outside 2xx is a *FetchError wrapping
// ErrNonSuccess; the page is still returned alongside it.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	start := time.Now()
	var page *Page
	err := f.breaker.Execute(func() error {
		resp, err := f.client.R().SetContext(ctx).Get(rawURL)
		if err != nil {
			return err
		}
		final, _ := url.Parse(rawURL)
		if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
			final = raw.Request.URL
		}
		page = &Page{URL: final, Status: resp.StatusCode(), Body: resp.String()}
		if page.Status >= http.StatusInternalServerError {
			return ErrNonSuccess
		}
		return nil
	})
	f.metrics.ObserveFetch(time.Since(start))

	if err != nil {
		status := 0
		if page != nil {
			status = page.Status
		}
		return page, &FetchError{URL: rawURL, Status: status, Err: err}
	}
	if page.Status < 200 || page.Status > 299 {
		return page, &FetchError{URL: rawURL, Status: page.Status, Err: ErrNonSuccess}
	}

	f.logger.Debug("page fetched",
		zap.String("url", page.URL.String()),
		zap.Int("status", page.Status),
		zap.Duration("duration", time.Since(start)))
	return page, nil
}

// retryLogger adapts zap to retryablehttp.LeveledLogger
type retryLogger struct {
	s *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
