// Package vectors turns documents into fixed-width vectors.
//
// A Source is selected by name through the registry:
//
//	src, err := vectors.Create("words", vectors.Options{Path: "wiki.vec.gz", Scoring: weights})
//
// Two sources are built in:
//
//   - words: averages pre-trained word vectors read from a text file in the
//     fastText ".vec" layout. Files ending in ".gz" or ".zst" are decompressed
//     on the fly. When a Weigher is configured the average is weighted by it.
//   - hashing: projects tokens into a fixed number of buckets with xxhash.
//     It needs no model file and is mostly useful for tests and small corpora.
//
// Stream drains a corpus lazily so callers can bound how many vectors are in
// flight at once.
package vectors
