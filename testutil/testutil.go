package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/sentvec/distance"
	"github.com/hupe1980/sentvec/internal/queue"
	"github.com/hupe1980/sentvec/matrix"
	"github.com/hupe1980/sentvec/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// FillUniform fills dst with random values in range [0, 1).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// FillGaussian fills dst with standard normal values.
func (r *RNG) FillGaussian(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = float32(r.rand.NormFloat64())
	}
}

// GaussianMatrix generates a rows x cols matrix of standard normal values.
func (r *RNG) GaussianMatrix(rows, cols int) *matrix.Matrix {
	m := matrix.New(rows, cols)
	r.FillGaussian(m.Data)
	return m
}

// UnitMatrix generates gaussian rows scaled to unit L2 norm.
func (r *RNG) UnitMatrix(rows, cols int) *matrix.Matrix {
	m := r.GaussianMatrix(rows, cols)
	for i := 0; i < rows; i++ {
		if !distance.NormalizeL2InPlace(m.Row(i)) {
			// Practically unreachable for gaussian input.
			m.Row(i)[0] = 1
		}
	}
	return m
}

// SequentialIDs returns ids start, start+1, ..., start+n-1.
func SequentialIDs(start, n int) []model.ID {
	ids := make([]model.ID, n)
	for i := range ids {
		ids[i] = model.ID(start + i)
	}
	return ids
}

// ExactTopK scores q against every row of m by inner product and returns the k best.
func ExactTopK(q []float32, m *matrix.Matrix, ids []model.ID, k int) []model.Result {
	top := queue.NewTopK(k)
	for i := 0; i < m.Rows; i++ {
		top.Push(model.Result{ID: ids[i], Score: distance.Dot(q, m.Row(i))})
	}
	return top.Results()
}

// ComputeRecall returns the fraction of exact ids present in approx.
func ComputeRecall(approx, exact []model.Result) float64 {
	if len(exact) == 0 {
		return 1
	}
	seen := make(map[model.ID]struct{}, len(approx))
	for _, r := range approx {
		seen[r.ID] = struct{}{}
	}
	hits := 0
	for _, r := range exact {
		if _, ok := seen[r.ID]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(exact))
}
