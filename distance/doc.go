// Package distance provides vector similarity and L2 normalization.
//
// All stored and query vectors in sentvec are unit-normalized, so the inner
// product equals cosine similarity.
//
// # Usage
//
//	sim := distance.Dot(a, b)
//	if err := distance.Normalize(vec); err != nil {
//	    // errors.Is(err, distance.ErrDegenerateVector)
//	}
package distance
