package authsvc

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authsvc/counter"
)

// Purge deletes refresh and reset tokens whose expiry has passed, whatever
// their revoked or used state, and sweeps expired in-process counters.
// Running it twice is harmless.
func (e *Engine) Purge(ctx context.Context) (PurgeResult, error) {
	if e == nil {
		return PurgeResult{}, ErrEngineNotReady
	}
	now := e.clock.Now().UTC()

	var res PurgeResult
	var errs []error

	n, err := e.refresh.DeleteExpiredBefore(ctx, now)
	if err != nil {
		errs = append(errs, err)
	}
	res.RefreshTokens = n

	n, err = e.resets.DeleteExpiredBefore(ctx, now)
	if err != nil {
		errs = append(errs, err)
	}
	res.ResetTokens = n

	if sweeper, ok := e.counters.(counter.Sweeper); ok {
		swept, err := sweeper.Sweep(ctx)
		if err != nil {
			errs = append(errs, err)
		}
		res.Counters = swept
	}

	e.metricInc(MetricPurgeRun)
	if e.metrics != nil && res.RefreshTokens+res.ResetTokens > 0 {
		e.metrics.Add(MetricPurgedTokens, uint64(res.RefreshTokens+res.ResetTokens))
	}
	return res, errors.Join(errs...)
}

func (e *Engine) startPurgeLoop(interval time.Duration) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-e.stop:
				return
			case <-ticker.C:
				e.runPurge(interval)
			}
		}
	}()
}

func (e *Engine) runPurge(budget time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), budget)
	defer cancel()

	res, err := e.Purge(ctx)
	if err != nil {
		e.logger.Error(err, "purge expired tokens")
		return
	}
	e.logger.V(1).Info("purged expired tokens",
		"refresh", res.RefreshTokens,
		"reset", res.ResetTokens,
		"counters", res.Counters,
	)
}
