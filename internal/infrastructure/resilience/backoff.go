package resilience

import (
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Backoff computes exponential reconnect delays between Min and Max
type Backoff struct {
	Min time.Duration
	Max time.Duration
}

// Delay returns the wait before the given attempt, starting at zero
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	min, max := b.Min, b.Max
	if min <= 0 {
		min = time.Second
	}
	if max < min {
		max = min
	}
	return retryablehttp.DefaultBackoff(min, max, attempt, nil)
}
