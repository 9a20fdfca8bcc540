package services

import (
	"context"
	"errors"
	"time"

	"github.com/charlesng35/menuguard/internal/permissions"
	"github.com/charlesng35/menuguard/pkg/metrics"
)

// ObservedResolver records resolution outcomes and latency.
type ObservedResolver struct {
	next permissions.CapabilityResolver
}

// NewObservedResolver wraps next.
func NewObservedResolver(next permissions.CapabilityResolver) (*ObservedResolver, error) {
	if next == nil {
		return nil, errors.New("observed resolver: resolver is required")
	}
	return &ObservedResolver{next: next}, nil
}

// ResolvePermissions delegates to the wrapped resolver.
func (r *ObservedResolver) ResolvePermissions(ctx context.Context, roleID uint) (*permissions.CapabilityMap, error) {
	start := time.Now()
	m, err := r.next.ResolvePermissions(ctx, roleID)
	metrics.ResolutionLatency.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.Resolutions.WithLabelValues("error").Inc()
	case m.Denied != permissions.DenyNone:
		metrics.Resolutions.WithLabelValues("denied").Inc()
	default:
		metrics.Resolutions.WithLabelValues("ok").Inc()
	}
	return m, err
}
