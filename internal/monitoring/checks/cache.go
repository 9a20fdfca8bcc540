package checks

import (
	"context"
	"time"

	"github.com/charlesng35/menuguard/internal/monitoring"
)

// Pinger is implemented by cache stores that talk to a remote server.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache probes the capability cache. Resolution falls back to the database when the cache
// fails, so an unreachable cache is degraded rather than down. Stores without Ping are
// in-process or share the database and always report up.
func Cache(store any, driver string, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("cache", func(ctx context.Context) monitoring.Result {
		start := time.Now()
		if store == nil {
			return monitoring.Result{Status: monitoring.StatusUp, Details: "cache disabled"}
		}
		pinger, ok := store.(Pinger)
		if !ok {
			return monitoring.Result{Status: monitoring.StatusUp, Details: driver}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout))
		defer cancel()

		result := monitoring.ResultFromError(pinger.Ping(probeCtx), time.Since(start))
		if result.Status == monitoring.StatusDown {
			result.Status = monitoring.StatusDegraded
		}
		if result.Details == "" {
			result.Details = driver
		}
		return result
	})
}
