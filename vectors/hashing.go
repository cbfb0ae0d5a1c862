package vectors

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/hupe1980/sentvec/config"
	"github.com/hupe1980/sentvec/model"
)

// MethodHashing is the registry name of the feature-hashing source.
const MethodHashing = "hashing"

// DefaultHashDimensions is the hashing width used when none is configured.
const DefaultHashDimensions = 256

func init() {
	Register(MethodHashing, func(opts Options) (Source, error) {
		return NewHashing(opts.Dimensions, opts.Scoring)
	})
}

// Hashing maps each token to a signed bucket. Bit 63 of the token hash picks
// the sign, the remainder modulo the width picks the bucket.
type Hashing struct {
	dim     int
	scoring Weigher
}

// NewHashing creates a hashing source. dim 0 selects DefaultHashDimensions.
func NewHashing(dim int, scoring Weigher) (*Hashing, error) {
	if dim == 0 {
		dim = DefaultHashDimensions
	}
	if dim < 0 {
		return nil, &config.Error{Key: "dimensions", Reason: fmt.Sprintf("must be positive, got %d", dim)}
	}
	return &Hashing{dim: dim, scoring: scoring}, nil
}

// Dimension implements Source.
func (h *Hashing) Dimension() int { return h.dim }

// Transform implements Source.
func (h *Hashing) Transform(ctx context.Context, doc model.Document) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := Tokens(doc.Content)
	tw := weights(h.scoring, tokens)

	out := make([]float32, h.dim)
	for i, tok := range tokens {
		sum := xxhash.Sum64String(tok)
		weight := float32(1)
		if tw != nil {
			weight = tw[i]
		}
		if sum>>63 == 1 {
			weight = -weight
		}
		out[sum%uint64(h.dim)] += weight
	}
	return out, nil
}
