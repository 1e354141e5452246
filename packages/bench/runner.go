package bench

import (
	"context"
	"net/url"
	"sync"

	"github.com/perchrh/ackhttp/packages/http"
	"golang.org/x/time/rate"
)

// Runner issues Config.Requests copies of one request through RequestAsync.
type Runner struct {
	config  *Config
	client  *http.Client
	limiter *rate.Limiter
	sem     chan struct{} // semaphore for max concurrency
	metrics *Metrics
}

// NewRunner creates a runner. An invalid config is reported by Run.
func NewRunner(config *Config, client *http.Client) *Runner {
	r := &Runner{
		config:  config,
		client:  client,
		sem:     make(chan struct{}, max(config.Concurrency, 0)),
		metrics: NewMetrics(),
	}
	if config.Rate > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(config.Rate), 1)
	}
	return r
}

// Metrics exposes the collector, e.g. for progress display.
func (r *Runner) Metrics() *Metrics {
	return r.metrics
}

// Run issues the requests and waits for every callback. If ctx is cancelled
// no further requests are started; those already in flight are still
// awaited and counted.
func (r *Runner) Run(ctx context.Context, target *url.URL, method http.Method, opts http.RequestOptions) (*Summary, error) {
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	r.metrics.Start()

	var runErr error
	for i := 0; i < r.config.Requests; i++ {
		if err := r.wait(ctx); err != nil {
			runErr = err
			break
		}
		if err := r.acquire(ctx); err != nil {
			runErr = err
			break
		}

		wg.Add(1)
		r.client.RequestAsync(ctx, target, method, opts, func(o http.Outcome) {
			defer wg.Done()
			r.metrics.Record(o)
			<-r.sem
		})
	}

	wg.Wait()
	r.metrics.Stop()
	return r.metrics.Summary(), runErr
}

// wait waits for rate limiter, or returns immediately when unlimited
func (r *Runner) wait(ctx context.Context) error {
	if r.limiter != nil {
		return r.limiter.Wait(ctx)
	}
	return ctx.Err()
}

// acquire acquires a slot from the concurrency semaphore
func (r *Runner) acquire(ctx context.Context) error {
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
