// Package selector resolves selection criteria into a lazy set of instances.
//
// A Set holds only the provider filters composed from the criteria. Every
// iteration of Set.All queries the provider again, so a Set can be ranged
// more than once and always reflects current provider state.
package selector

import (
	"context"
	"iter"
	"log/slog"

	cnserrors "github.com/snapshotalyzer/shotty/pkg/errors"
	"github.com/snapshotalyzer/shotty/pkg/fleet"
	"github.com/snapshotalyzer/shotty/pkg/provider"
)

// Selector builds instance sets against a provider.
type Selector struct {
	provider provider.Provider
}

// New returns a Selector using p.
func New(p provider.Provider) *Selector {
	return &Selector{provider: p}
}

// Set is a lazily evaluated set of instances.
type Set struct {
	provider provider.Provider
	filters  []provider.Filter
	empty    bool
}

// Resolve composes the provider filters for c.
//
// With no project and no instance id, the set is every instance unless
// requireForceForAll is true and c is not forced; in that case Resolve
// returns an empty set together with a NO_TARGET error.
func (s *Selector) Resolve(c fleet.Criteria, requireForceForAll bool) (*Set, error) {
	if !c.HasTarget() && requireForceForAll && !c.Force() {
		return &Set{provider: s.provider, empty: true},
			cnserrors.New(cnserrors.ErrCodeNoTarget, "no target specified")
	}

	var filters []provider.Filter
	if id := c.InstanceID(); id != "" {
		filters = append(filters, provider.InstanceIDFilter(id))
	}
	if project := c.Project(); project != "" {
		filters = append(filters, provider.TagFilter(fleet.ProjectTagKey, project))
	}

	slog.Debug("resolved instance selection",
		slog.String("project", c.Project()),
		slog.String("instance", c.InstanceID()),
		slog.Bool("force", c.Force()),
		slog.Int("filters", len(filters)),
	)

	return &Set{provider: s.provider, filters: filters}, nil
}

// Filters returns a copy of the composed provider filters.
func (s *Set) Filters() []provider.Filter {
	out := make([]provider.Filter, len(s.filters))
	copy(out, s.filters)
	return out
}

// Empty reports whether the set was resolved without a target and yields nothing.
func (s *Set) Empty() bool {
	return s.empty
}

// All queries the provider and yields each matching instance. A provider
// error is yielded once with a zero Instance and ends the iteration.
func (s *Set) All(ctx context.Context) iter.Seq2[fleet.Instance, error] {
	return func(yield func(fleet.Instance, error) bool) {
		if s.empty {
			return
		}
		instances, err := s.provider.ListInstances(ctx, s.filters)
		if err != nil {
			yield(fleet.Instance{}, err)
			return
		}
		for _, inst := range instances {
			if !yield(inst, nil) {
				return
			}
		}
	}
}
