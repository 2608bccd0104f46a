// Package wait implements a generic bounded-polling engine: it evaluates
// a readiness probe at a fixed interval until the probe reports ready or
// a timeout elapses. What is being waited for is entirely the caller's
// business.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sethvargo/go-retry"
)

// DefaultPollInterval trades a little CPU for fast detection of
// readiness.
const DefaultPollInterval = 50 * time.Millisecond

// TimeoutError reports that a target never became ready within its
// budget. The target's identity is embedded so aggregated failures still
// name the specific offender.
type TimeoutError struct {
	Target  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s failed to become ready within %s", e.Target, e.Timeout)
}

var errNotReady = errors.New("not ready")

var (
	probeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "composetest_wait_probes_total",
		Help: "Readiness probe evaluations, by target.",
	}, []string{"target"})

	timeoutTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "composetest_wait_timeouts_total",
		Help: "Readiness waits that exhausted their timeout, by target.",
	}, []string{"target"})
)

// Probe reports (true, nil) when the target is ready, (false, nil) when
// it is not ready yet, and a non-nil error only for genuine failures.
// Probes must treat connectivity problems as "not ready yet" and must be
// idempotent, since they are evaluated many times per wait.
type Probe func(ctx context.Context) (bool, error)

// Until polls probe every interval until it reports ready, returning
// a TimeoutError once timeout elapses. A probe that is ready on its
// first evaluation returns without sleeping at all.
//
// Probe errors are treated as broken checks, not as unreadiness: they
// abort the wait immediately and propagate, wrapped with the target's
// name. Once started, a wait cannot be cancelled other than through ctx
// or its timeout.
func Until(ctx context.Context, target string, timeout, interval time.Duration, probe Probe) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var probeErr error
	err := retry.Do(ctx, retry.NewConstant(interval), func(ctx context.Context) error {
		probeTotal.WithLabelValues(target).Inc()
		ready, err := probe(ctx)
		if err != nil {
			probeErr = err
			return err
		}
		if !ready {
			return retry.RetryableError(errNotReady)
		}
		return nil
	})

	switch {
	case err == nil:
		return nil
	case probeErr != nil && !errors.Is(probeErr, context.DeadlineExceeded):
		return fmt.Errorf("readiness check for %s: %w", target, probeErr)
	case errors.Is(err, context.Canceled):
		return err
	default:
		timeoutTotal.WithLabelValues(target).Inc()
		return &TimeoutError{Target: target, Timeout: timeout}
	}
}
