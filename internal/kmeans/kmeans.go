package kmeans

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/sentvec/distance"
	"github.com/hupe1980/sentvec/matrix"
)

// ErrNotEnoughVectors is returned when there are fewer points than clusters.
var ErrNotEnoughVectors = errors.New("kmeans: not enough vectors")

// assignChunk is the number of rows assigned per worker task.
const assignChunk = 512

// Options configures training.
type Options struct {
	K          int
	Iterations int
	Seed       int64
	Metric     distance.Metric
	// Spherical keeps centroids at unit norm after each update.
	Spherical bool
	// Workers bounds assignment parallelism. Zero means GOMAXPROCS.
	Workers int
}

// similarity returns a score where larger is closer.
func similarity(metric distance.Metric) (func(a, b []float32) float32, error) {
	switch metric {
	case distance.MetricDot:
		return distance.Dot, nil
	case distance.MetricL2:
		return func(a, b []float32) float32 { return -distance.SquaredL2(a, b) }, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", metric)
	}
}

// Train clusters the rows of m into opts.K centroids.
// The result is deterministic for a given input and seed.
func Train(ctx context.Context, m *matrix.Matrix, opts Options) (*matrix.Matrix, error) {
	if opts.K <= 0 {
		return nil, fmt.Errorf("kmeans: invalid k %d", opts.K)
	}
	if m.Empty() || m.Rows < opts.K {
		return nil, ErrNotEnoughVectors
	}
	sim, err := similarity(opts.Metric)
	if err != nil {
		return nil, err
	}

	n, dim, k := m.Rows, m.Cols, opts.K
	rng := rand.New(rand.NewSource(opts.Seed))

	centroids := matrix.New(k, dim)
	perm := rng.Perm(n)
	for j := 0; j < k; j++ {
		copy(centroids.Row(j), m.Row(perm[j]))
		if opts.Spherical {
			distance.NormalizeL2InPlace(centroids.Row(j))
		}
	}

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}
	counts := make([]int, k)
	sums := make([]float64, k*dim)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	for iter := 0; iter < max(opts.Iterations, 1); iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		changed, err := assign(ctx, m, centroids, assignments, sim, workers)
		if err != nil {
			return nil, err
		}
		if !changed {
			break
		}

		clear(sums)
		clear(counts)
		for i := 0; i < n; i++ {
			c := assignments[i]
			row := m.Row(i)
			base := c * dim
			for d, x := range row {
				sums[base+d] += float64(x)
			}
			counts[c]++
		}

		for j := 0; j < k; j++ {
			dst := centroids.Row(j)
			if counts[j] > 0 {
				inv := 1 / float64(counts[j])
				for d := range dst {
					dst[d] = float32(sums[j*dim+d] * inv)
				}
				if !opts.Spherical || distance.NormalizeL2InPlace(dst) {
					continue
				}
			}
			// Empty or collapsed cluster: reseed from a random point.
			copy(dst, m.Row(rng.Intn(n)))
			if opts.Spherical {
				distance.NormalizeL2InPlace(dst)
			}
		}
	}

	return centroids, nil
}

func assign(ctx context.Context, m, centroids *matrix.Matrix, assignments []int, sim func(a, b []float32) float32, workers int) (bool, error) {
	var changed atomic.Bool

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < m.Rows; start += assignChunk {
		start, end := start, min(start+assignChunk, m.Rows)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				best := Nearest(m.Row(i), centroids, sim)
				if assignments[i] != best {
					assignments[i] = best
					changed.Store(true)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return false, err
	}
	return changed.Load(), nil
}

// Nearest returns the centroid with the highest similarity to vec.
// Ties resolve to the lowest centroid index.
func Nearest(vec []float32, centroids *matrix.Matrix, sim func(a, b []float32) float32) int {
	best := -1
	var bestScore float32
	for j := 0; j < centroids.Rows; j++ {
		s := sim(vec, centroids.Row(j))
		if best < 0 || s > bestScore {
			best, bestScore = j, s
		}
	}
	return best
}

// AssignAll returns the closest centroid for every row of m, computed in parallel.
func AssignAll(ctx context.Context, m, centroids *matrix.Matrix, metric distance.Metric, workers int) ([]int, error) {
	sim, err := similarity(metric)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	assignments := make([]int, m.Rows)
	if _, err := assign(ctx, m, centroids, assignments, sim, workers); err != nil {
		return nil, err
	}
	return assignments, nil
}

// AssignPartition finds the closest centroid for a vector.
func AssignPartition(vec []float32, centroids *matrix.Matrix, metric distance.Metric) (int, error) {
	sim, err := similarity(metric)
	if err != nil {
		return -1, err
	}
	return Nearest(vec, centroids, sim), nil
}

type centroidScore struct {
	id    int
	score float32
}

// FindClosestCentroids returns the indices of the n closest centroids to the query vector.
// Ties resolve to the lowest centroid index.
func FindClosestCentroids(query []float32, centroids *matrix.Matrix, n int, metric distance.Metric) ([]int, error) {
	sim, err := similarity(metric)
	if err != nil {
		return nil, err
	}

	k := centroids.Rows
	if n > k {
		n = k
	}
	if n <= 0 {
		return nil, nil
	}

	scores := make([]centroidScore, k)
	for i := 0; i < k; i++ {
		scores[i] = centroidScore{id: i, score: sim(query, centroids.Row(i))}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	result := make([]int, n)
	for i := 0; i < n; i++ {
		result[i] = scores[i].id
	}
	return result, nil
}
