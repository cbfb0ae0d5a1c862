// Package blobstore provides the artifact storage abstraction used to save and
// load embeddings.
//
// A Store holds named, immutable artifacts ("config", "embeddings", "lsa",
// "scoring/..."). Names use forward slashes regardless of platform.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: a directory on the local filesystem with atomic writes
//   - MemoryStore: in-process map, mostly for tests
//   - Throttled: wraps any Store with a byte rate limit and a concurrency cap
//   - s3.Store: Amazon S3 via aws-sdk-go-v2
//   - minio.Store: MinIO and other S3-compatible services
//
// # Custom Implementations
//
// Implement the Store interface to support custom storage backends:
//
//	type Store interface {
//	    Put(ctx, name, data) error
//	    Get(ctx, name) ([]byte, error)
//	    Exists(ctx, name) (bool, error)
//	    List(ctx, prefix) ([]string, error)
//	    Delete(ctx, name) error
//	}
package blobstore
