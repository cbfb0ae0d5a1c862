// Package s3 provides an Amazon S3 implementation of blobstore.Store.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("embeddings/news"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	err = emb.SaveTo(ctx, store)
//
// Uploads go through the multipart upload manager, so large embeddings
// artifacts are split into parts and sent concurrently.
package s3
