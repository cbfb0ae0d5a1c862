// Package index provides the approximate nearest neighbour structures that
// hold the normalized document embeddings.
//
// Two structures are available:
//
//   - Flat: exact search over every stored vector. Needs no training.
//   - IVF: inverted file. A coarse quantizer of trained centroids splits the
//     vectors into partitions and a query only scans the nprobe partitions
//     whose centroids are closest to it.
//
// # Structure Selection
//
// SelectKind picks the structure from the corpus size: Flat below the
// threshold (5000 by default), IVF at or above it. Build selects, trains and
// fills an index in one step.
//
// # Scoring
//
// All indexes score by inner product. Stored vectors are unit length, so the
// score is cosine similarity. Results are ordered by descending score with
// ties broken by ascending id.
//
// # Persistence
//
// Encode writes an index as a single checksummed artifact, optionally wrapped
// in an lz4 or zstd envelope. Decode dispatches on the stored Kind to the
// loader registered for it.
//
// # Subpackages
//
//   - flat: exact id-mapped store
//   - ivf: inverted file with spherical k-means partitions
package index
