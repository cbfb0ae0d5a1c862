// Package mmap reads local artifact files through read-only memory mappings.
//
// Artifacts are mapped, advised for sequential access and copied to the heap
// before the mapping is released, so callers never hold a view into a file
// that a later save may replace.
//
// # Platform Support
//
//   - Unix: mmap(2) with madvise(2) hints
//   - Windows: CreateFileMapping/MapViewOfFile (hints are a no-op)
//   - Other platforms fall back to os.ReadFile
package mmap
