// Package sentvec builds sentence embeddings from word vectors and searches
// them by cosine similarity.
//
// A document's tokens are turned into a vector by a vector source, optionally
// weighted by a scoring model (bm25, tfidf or sif). At build time the top
// principal components of the corpus can be removed ("pca"), every vector is
// L2 normalized and the result is stored in an inner product index. Queries
// go through the same steps, so inner product equals cosine similarity.
//
// # Quick Start
//
//	cfg := &config.Config{Path: "wiki.vec.gz", Scoring: "bm25", PCA: 1}
//	emb, err := sentvec.New(cfg)
//	if err != nil {
//	    return err
//	}
//
//	docs := []model.Document{
//	    model.NewDocument(1, model.Text("US tops 5 million confirmed virus cases"), nil),
//	    model.NewDocument(2, model.Text("Beijing mobilises invasion craft along coast"), nil),
//	}
//	_ = emb.Score(ctx, docs)
//	_ = emb.Index(ctx, docs)
//
//	results, _ := emb.Search(ctx, model.Text("health"), 1)
//
// # Index Structure
//
// Corpora below config.DefaultThreshold (5000) documents use an exact flat
// index. Larger corpora use an inverted file with 100 k-means partitions of
// which 6 are scanned per query. Both are configurable.
//
// # Persistence
//
// Save and Load use a directory with the artifacts "config", "embeddings",
// "lsa" (when pca is set) and "scoring/model" (when scoring is set). SaveTo
// and LoadFrom accept any blobstore.Store, such as the S3 and MinIO stores in
// the blobstore subpackages.
package sentvec
