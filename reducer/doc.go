// Package reducer implements principal component removal (LSA denoising).
//
// Fit learns the top k right-singular vectors of a corpus matrix with a
// truncated SVD. Apply then removes each vector's projection onto that
// subspace:
//
//	factor = x · Cᵗ
//	x     -= factor · C
//
// which strips the dominant shared direction(s) from sentence vectors built
// out of frequent, low-information words. The SVD is not mean-centered.
//
// All Apply entry points mutate their input in place and share a single row
// kernel, so a vector reduced alone and the same vector reduced inside a
// batch come out bit-for-bit identical.
package reducer
