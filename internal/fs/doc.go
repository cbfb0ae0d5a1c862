// Package fs abstracts the filesystem calls behind atomic artifact writes so
// tests can inject failures.
//
// Production code uses Default. Tests wrap it in a FaultyFS:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("embeddings", fs.Fault{FailOnSync: true})
//	store := blobstore.NewLocalStore(dir, blobstore.WithFileSystem(ffs))
package fs
