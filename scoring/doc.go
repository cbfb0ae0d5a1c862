// Package scoring weighs the tokens of a document against corpus statistics.
//
// A Model is built once over the corpus with Index and then assigns one
// weight per token. Vector sources use the weights to average word vectors.
//
// # Built-in Models
//
//   - bm25: Okapi BM25 with k1=1.2, b=0.75
//   - tfidf: smoothed inverse document frequency times sqrt(tf)/sqrt(length)
//   - sif: smooth inverse frequency, a/(a + p(w)) with a=1e-3
//
// Models persist their statistics as a single "model" artifact. Callers
// usually scope the store with blobstore.Sub(store, "scoring").
package scoring
