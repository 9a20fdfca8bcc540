// Package checks provides readiness probes for the permission engine's dependencies.
package checks

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/menuguard/internal/monitoring"
)

const defaultTimeout = 2 * time.Second

// Database pings the permission store. Every resolution depends on it, so failures are down.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.Result {
		start := time.Now()
		if db == nil {
			return monitoring.Result{Status: monitoring.StatusDown, Details: "database not configured"}
		}

		sqlDB, err := db.DB()
		if err != nil {
			return monitoring.ResultFromError(err, time.Since(start))
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout))
		defer cancel()
		return monitoring.ResultFromError(sqlDB.PingContext(probeCtx), time.Since(start))
	})
}

func chooseTimeout(provided time.Duration) time.Duration {
	if provided <= 0 {
		return defaultTimeout
	}
	return provided
}
