package persistence

import (
	"bufio"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"

	vfs "github.com/hupe1980/sentvec/internal/fs"
)

// TempMarker is part of every in-flight temp file name.
const TempMarker = ".tmp-"

// SaveToFile writes filename atomically on the local filesystem.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	return SaveToFileFS(vfs.Default, filename, writeFunc)
}

// SaveToFileFS writes filename atomically through fsys: data goes to a temp
// file in the same directory which is synced and renamed over the target.
// On failure the target is untouched and the temp file is removed.
func SaveToFileFS(fsys vfs.FileSystem, filename string, writeFunc func(io.Writer) error) (err error) {
	dir := filepath.Dir(filename)
	tmpName := filename + TempMarker + strconv.FormatUint(rand.Uint64(), 36)

	tmp, err := fsys.OpenFile(tmpName, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	closed := false
	defer func() {
		if !closed {
			_ = tmp.Close()
		}
		if err != nil {
			_ = fsys.Remove(tmpName)
		}
	}()

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err = writeFunc(buf); err != nil {
		return err
	}
	if err = buf.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	closed = true
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = fsys.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, derr := fsys.OpenFile(dir, os.O_RDONLY, 0); derr == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
