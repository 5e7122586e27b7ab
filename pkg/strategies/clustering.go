package strategies

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/crosslens/crosslens/pkg/domain"
	"github.com/crosslens/crosslens/pkg/features"
	"go.uber.org/zap"
)

const defaultClusterCount = 3

// Clustering partitions event feature vectors into k groups with a
// deterministic k-means: centers seed from evenly spaced points of the
// timestamp-ordered event set and iterate a fixed number of rounds, so
// the same event set always yields the same partition.
type Clustering struct {
	logger     *zap.Logger
	extractor  *features.Extractor
	k          int
	iterations int
}

// NewClustering creates the clustering strategy. k <= 0 uses the default.
func NewClustering(logger *zap.Logger, k int) *Clustering {
	if k <= 0 {
		k = defaultClusterCount
	}
	return &Clustering{
		logger:     logger,
		extractor:  features.NewExtractor(),
		k:          k,
		iterations: 10,
	}
}

// Name implements Strategy.
func (c *Clustering) Name() string { return "clustering" }

// Apply implements Strategy.
func (c *Clustering) Apply(ctx context.Context, events []*domain.Event) (*AlgorithmResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("clustering aborted: %w", err)
	}

	result := &ClusteringResult{Clusters: []Cluster{}}
	if len(events) == 0 {
		return &AlgorithmResult{Algorithm: c.Name(), Clustering: result}, nil
	}

	k := c.k
	if k > len(events) {
		k = len(events)
	}

	vectors := make([][]float64, len(events))
	for i, event := range events {
		vectors[i] = c.extractor.Extract(event)
	}

	// Seed centers from evenly spaced vectors.
	centers := make([][]float64, k)
	for i := 0; i < k; i++ {
		idx := i * len(events) / k
		centers[i] = append([]float64(nil), vectors[idx]...)
	}

	assignment := make([]int, len(events))
	for iter := 0; iter < c.iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("clustering aborted: %w", err)
		}

		changed := false
		for i, vec := range vectors {
			best, bestDist := 0, math.MaxFloat64
			for j, center := range centers {
				if d := euclidean(vec, center); d < bestDist {
					best, bestDist = j, d
				}
			}
			if assignment[i] != best {
				assignment[i] = best
				changed = true
			}
		}

		// Recompute centers; empty clusters keep their previous center.
		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, features.VectorSize)
		}
		for i, vec := range vectors {
			counts[assignment[i]]++
			for j, v := range vec {
				sums[assignment[i]][j] += v
			}
		}
		for i := 0; i < k; i++ {
			if counts[i] == 0 {
				continue
			}
			for j := range centers[i] {
				centers[i][j] = sums[i][j] / float64(counts[i])
			}
		}

		if !changed {
			break
		}
	}

	// Assemble clusters and the cohesion score.
	totalDist, assigned := 0.0, 0
	for i := 0; i < k; i++ {
		cluster := Cluster{ID: i, Center: centers[i]}
		typeCounts := make(map[domain.EventType]int)
		confSum := 0.0
		for j, event := range events {
			if assignment[j] != i {
				continue
			}
			cluster.Size++
			cluster.EventIDs = append(cluster.EventIDs, event.ID)
			typeCounts[event.Type]++
			confSum += event.Metadata.Confidence
			totalDist += euclidean(vectors[j], centers[i])
			assigned++
		}
		if cluster.Size == 0 {
			continue
		}
		cluster.DominantType = dominantType(typeCounts)
		cluster.AvgConfidence = confSum / float64(cluster.Size)
		result.Clusters = append(result.Clusters, cluster)
	}
	if assigned > 0 {
		result.Cohesion = 1 / (1 + totalDist/float64(assigned))
	}

	sort.Slice(result.Clusters, func(i, j int) bool {
		return result.Clusters[i].Size > result.Clusters[j].Size
	})

	c.logger.Debug("clustering pass complete",
		zap.Int("events", len(events)),
		zap.Int("clusters", len(result.Clusters)),
		zap.Float64("cohesion", result.Cohesion),
	)

	return &AlgorithmResult{Algorithm: c.Name(), Clustering: result}, nil
}

func euclidean(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func dominantType(counts map[domain.EventType]int) domain.EventType {
	best := domain.EventType("")
	bestCount := -1
	for eventType, count := range counts {
		if count > bestCount || (count == bestCount && eventType < best) {
			best = eventType
			bestCount = count
		}
	}
	return best
}
