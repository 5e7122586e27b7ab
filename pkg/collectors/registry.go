package collectors

import (
	"context"
	"sort"

	"github.com/crosslens/crosslens/pkg/domain"
	"go.uber.org/zap"
)

// Registry fans a collection request out to the registered adapters.
// Each adapter is called independently: a failure contributes zero
// events and a degraded coverage entry, never an aborted request.
type Registry struct {
	collectors map[string]Collector
	logger     *zap.Logger
}

// NewRegistry creates a registry over the given adapters.
func NewRegistry(logger *zap.Logger, collectors ...Collector) *Registry {
	byName := make(map[string]Collector, len(collectors))
	for _, c := range collectors {
		byName[c.System()] = c
	}
	return &Registry{collectors: byName, logger: logger}
}

// Systems returns the registered subsystem names, sorted.
func (r *Registry) Systems() []string {
	names := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CollectAll gathers events from the requested systems, merging and
// sorting ascending by timestamp. Unknown systems and failed adapters
// appear in the coverage map as degraded.
func (r *Registry) CollectAll(ctx context.Context, systems []string, userID string, timeRange domain.TimeRange) ([]*domain.Event, map[string]domain.SourceCoverage) {
	merged := make([]*domain.Event, 0)
	coverage := make(map[string]domain.SourceCoverage, len(systems))

	for _, system := range systems {
		collector, ok := r.collectors[system]
		if !ok {
			r.logger.Warn("Unknown system requested", zap.String("system", system))
			coverage[system] = domain.SourceCoverage{Degraded: true, Error: "unknown system"}
			continue
		}

		events, err := collector.Collect(ctx, userID, timeRange)
		if err != nil {
			r.logger.Warn("Collector failed, continuing with reduced coverage",
				zap.String("system", system),
				zap.Error(err))
			coverage[system] = domain.SourceCoverage{Degraded: true, Error: err.Error()}
			continue
		}

		coverage[system] = domain.SourceCoverage{Events: len(events)}
		merged = append(merged, events...)
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged, coverage
}
