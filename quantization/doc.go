// Package quantization provides 8-bit scalar quantization (SQ8) for stored vectors.
//
// Each dimension is linearly mapped from its trained [min, max] range onto
// [0, 255], giving 4x memory savings over float32 storage. Similarity against
// a float32 query is computed on the reconstructed values, so scores are
// approximate.
//
//	sq := quantization.NewScalarQuantizer(dim)
//	_ = sq.Train(corpus)
//	code := sq.Encode(vec, nil)
//	score := sq.Dot(query, code)
package quantization
