package vectors

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/hupe1980/sentvec/config"
	"github.com/hupe1980/sentvec/model"
)

// ErrMissingID is returned when a document handed to Stream has no identifier.
var ErrMissingID = errors.New("vectors: document without id")

// Weigher assigns one weight per token. Scoring models implement it.
type Weigher interface {
	Weights(tokens []string) []float32
}

// Options configures a Source.
type Options struct {
	// Path locates the model file of file-backed sources.
	Path string

	// Dimensions is the output width of sources without a model file.
	Dimensions int

	// Scoring weighs tokens. Nil means uniform weights.
	Scoring Weigher
}

// Source converts a single document into a vector of Dimension() values.
type Source interface {
	Dimension() int
	Transform(ctx context.Context, doc model.Document) ([]float32, error)
}

// Factory creates a Source from options.
type Factory func(opts Options) (Source, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a source available under method. It panics on duplicates.
func Register(method string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registry[method]; ok {
		panic(fmt.Sprintf("vectors: method %q registered twice", method))
	}
	registry[method] = f
}

// Create resolves method and builds the source.
func Create(method string, opts Options) (Source, error) {
	registryMu.RLock()
	f, ok := registry[method]
	registryMu.RUnlock()

	if !ok {
		return nil, &config.Error{Key: "method", Reason: fmt.Sprintf("unknown vector source %q", method)}
	}
	return f(opts)
}

// Methods returns the registered method names in sorted order.
func Methods() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Batch is the lazily transformed form of a corpus.
type Batch struct {
	IDs       []model.ID
	Dimension int

	// Vectors yields one vector per id, in id order. Iteration stops after
	// the first error.
	Vectors iter.Seq2[[]float32, error]
}

// Stream validates that every document carries an id and returns a Batch
// that transforms documents only as Vectors is consumed.
func Stream(ctx context.Context, src Source, docs []model.Document) (*Batch, error) {
	ids := make([]model.ID, len(docs))
	for i, d := range docs {
		if !d.HasID() {
			return nil, fmt.Errorf("%w: position %d", ErrMissingID, i)
		}
		ids[i] = *d.ID
	}

	seq := func(yield func([]float32, error) bool) {
		for _, d := range docs {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			v, err := src.Transform(ctx, d)
			if !yield(v, err) || err != nil {
				return
			}
		}
	}

	return &Batch{IDs: ids, Dimension: src.Dimension(), Vectors: seq}, nil
}

// weights returns the token weights from w, or nil if w is unset or does not
// return one weight per token.
func weights(w Weigher, tokens []string) []float32 {
	if w == nil || len(tokens) == 0 {
		return nil
	}
	out := w.Weights(tokens)
	if len(out) != len(tokens) {
		return nil
	}
	return out
}
