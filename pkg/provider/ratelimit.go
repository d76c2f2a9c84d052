package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/snapshotalyzer/shotty/pkg/fleet"
)

// RateLimited wraps a Provider so that every call first waits on a token
// bucket limiter. Waits are not throttled beyond the initial call.
type RateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewRateLimited returns p throttled to limit calls per second with burst.
// A non-positive or infinite limit returns p unchanged.
func NewRateLimited(p Provider, limit rate.Limit, burst int) Provider {
	if limit <= 0 || limit == rate.Inf {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    p,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (r *RateLimited) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

func (r *RateLimited) ListInstances(ctx context.Context, filters []Filter) ([]fleet.Instance, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.ListInstances(ctx, filters)
}

func (r *RateLimited) StopInstance(ctx context.Context, id string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.StopInstance(ctx, id)
}

func (r *RateLimited) StartInstance(ctx context.Context, id string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.StartInstance(ctx, id)
}

func (r *RateLimited) RebootInstance(ctx context.Context, id string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.RebootInstance(ctx, id)
}

func (r *RateLimited) WaitUntilStopped(ctx context.Context, id string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.WaitUntilStopped(ctx, id)
}

func (r *RateLimited) WaitUntilRunning(ctx context.Context, id string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.WaitUntilRunning(ctx, id)
}

func (r *RateLimited) ListVolumes(ctx context.Context, instanceID string) ([]fleet.Volume, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.ListVolumes(ctx, instanceID)
}

func (r *RateLimited) ListSnapshots(ctx context.Context, volumeID string) ([]fleet.Snapshot, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.ListSnapshots(ctx, volumeID)
}

func (r *RateLimited) CreateSnapshot(ctx context.Context, volumeID, description string) (fleet.Snapshot, error) {
	if err := r.wait(ctx); err != nil {
		return fleet.Snapshot{}, err
	}
	return r.next.CreateSnapshot(ctx, volumeID, description)
}
