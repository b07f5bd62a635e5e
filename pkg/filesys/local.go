package filesys

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// Local implements Filesystem over the machine's own disk
type Local struct{}

// NewLocal creates a local filesystem
func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Separator() string {
	return string(filepath.Separator)
}

func (l *Local) Home(ctx context.Context) (string, error) {
	if wd, err := os.Getwd(); err == nil {
		return wd, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", Wrap("home", "", err)
	}
	return home, nil
}

func (l *Local) List(ctx context.Context, dir string) ([]FileEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, Wrap("list", dir, err)
	}

	files := make([]FileEntry, 0, len(entries))
	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil, Wrap("list", dir, ctx.Err())
		}
		file := FileEntry{
			Name: entry.Name(),
			Kind: KindFile,
			Path: filepath.Join(dir, entry.Name()),
		}
		// Follow symlinks so a link to a directory browses like one
		info, err := os.Stat(file.Path)
		if err != nil {
			info, err = entry.Info()
		}
		if err == nil {
			file.Size = info.Size()
			file.ModifiedAt = info.ModTime()
			if info.IsDir() {
				file.Kind = KindDirectory
				file.Size = 0
			}
		}
		files = append(files, file)
	}
	return files, nil
}

func (l *Local) Stat(ctx context.Context, path string) (Info, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Info{}, Wrap("stat", path, err)
	}
	kind := KindFile
	if info.IsDir() {
		kind = KindDirectory
	}
	return Info{Size: info.Size(), ModifiedAt: info.ModTime(), Kind: kind}, nil
}

func (l *Local) OpenReader(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Wrap("open", path, err)
	}
	return f, nil
}

// fileWriter writes to a hidden sibling of path and renames it into place
// on Close. An existing file at path stays intact until then.
type fileWriter struct {
	tmp  *os.File
	path string
	done bool
}

func (l *Local) CreateWriter(ctx context.Context, path string) (io.WriteCloser, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".part-*")
	if err != nil {
		return nil, Wrap("create", path, err)
	}
	return &fileWriter{tmp: tmp, path: path}, nil
}

func (w *fileWriter) Write(p []byte) (int, error) {
	return w.tmp.Write(p)
}

func (w *fileWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	name := w.tmp.Name()
	if err := w.tmp.Close(); err != nil {
		os.Remove(name)
		return Wrap("close", w.path, err)
	}
	mode := os.FileMode(0644)
	if info, err := os.Stat(w.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(name, mode); err != nil {
		os.Remove(name)
		return Wrap("close", w.path, err)
	}
	if err := os.Rename(name, w.path); err != nil {
		os.Remove(name)
		return Wrap("close", w.path, err)
	}
	return nil
}

// Abort drops the written data and leaves path untouched
func (w *fileWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	w.tmp.Close()
	return Wrap("abort", w.path, os.Remove(w.tmp.Name()))
}

func (l *Local) Rename(ctx context.Context, path, newName string) error {
	target := filepath.Join(filepath.Dir(path), newName)
	// os.Rename silently replaces an existing target on unix
	if _, err := os.Lstat(target); err == nil {
		return NewError("rename", target, KindConflict, nil)
	}
	if err := os.Rename(path, target); err != nil {
		return Wrap("rename", path, err)
	}
	return nil
}

func (l *Local) Delete(ctx context.Context, path string, recursive bool) error {
	if _, err := os.Lstat(path); err != nil {
		return Wrap("delete", path, err)
	}
	var err error
	if recursive {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	return Wrap("delete", path, err)
}

func (l *Local) Mkdir(ctx context.Context, dir, name string) error {
	return Wrap("mkdir", filepath.Join(dir, name), os.Mkdir(filepath.Join(dir, name), 0755))
}
