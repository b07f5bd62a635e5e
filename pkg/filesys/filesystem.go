// Package filesys defines the transport contract shared by the local and the
// remote side of a session, plus the local implementation.
package filesys

import (
	"context"
	"io"
)

// Filesystem is implemented by every side a pane can browse. All failures are
// returned as *Error.
type Filesystem interface {
	// Separator is the path separator of this side
	Separator() string

	// Home returns the directory a pane starts in
	Home(ctx context.Context) (string, error)

	// List returns the entries of dir, without the ".." marker
	List(ctx context.Context, dir string) ([]FileEntry, error)

	// Stat returns size and modification time of path
	Stat(ctx context.Context, path string) (Info, error)

	// OpenReader opens path for streaming reads
	OpenReader(ctx context.Context, path string) (io.ReadCloser, error)

	// CreateWriter opens a stream that replaces path. Writers that implement
	// Aborter only touch path when Close commits.
	CreateWriter(ctx context.Context, path string) (io.WriteCloser, error)

	// Rename renames path to newName inside the same directory.
	// Fails with KindConflict when the target exists.
	Rename(ctx context.Context, path, newName string) error

	// Delete removes path, descending into directories when recursive is set
	Delete(ctx context.Context, path string, recursive bool) error

	// Mkdir creates dir/name. Fails with KindConflict when it exists.
	Mkdir(ctx context.Context, dir, name string) error
}

// Aborter is implemented by writers that commit on Close. Abort discards
// what was written instead.
type Aborter interface {
	Abort() error
}

// Discard closes w without committing it when w supports that. aborted
// reports whether the destination was left as it was; when false the caller
// owns the cleanup of what w wrote.
func Discard(w io.WriteCloser) (aborted bool, err error) {
	if a, ok := w.(Aborter); ok {
		return true, a.Abort()
	}
	return false, w.Close()
}
