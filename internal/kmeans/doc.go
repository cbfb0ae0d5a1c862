// Package kmeans implements Lloyd's k-means clustering.
//
// It trains the coarse partition centroids of the IVF index. In spherical
// mode, centroids are kept at unit norm and points are assigned by maximum
// inner product, which is cosine similarity for normalized input.
package kmeans
