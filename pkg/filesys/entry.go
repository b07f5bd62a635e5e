package filesys

import (
	"strings"
	"time"
)

// ParentName is the name of the synthetic "parent directory" entry
const ParentName = ".."

// Kind distinguishes files from directories
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
)

func (k Kind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// FileEntry represents a single file or directory in a listing
type FileEntry struct {
	Name       string
	Kind       Kind
	Size       int64 // only meaningful for files
	ModifiedAt time.Time
	Path       string // fully qualified, built with the owning side's separator
}

// IsDir reports whether the entry is a directory (including "..")
func (e FileEntry) IsDir() bool {
	return e.Kind == KindDirectory
}

// IsParent reports whether the entry is the synthetic parent marker
func (e FileEntry) IsParent() bool {
	return e.Name == ParentName
}

// IsSelectable reports whether the entry can be batch-selected and transferred.
// Only regular files qualify.
func (e FileEntry) IsSelectable() bool {
	return e.Kind == KindFile && !e.IsParent()
}

// IsHidden reports whether the entry is a dotfile
func (e FileEntry) IsHidden() bool {
	return strings.HasPrefix(e.Name, ".") && !e.IsParent()
}

// ParentEntry builds the ".." entry for a listing of dir
func ParentEntry(sep, dir string) FileEntry {
	return FileEntry{
		Name: ParentName,
		Kind: KindDirectory,
		Path: Parent(sep, dir),
	}
}

// Info is the result of a Stat call
type Info struct {
	Size       int64
	ModifiedAt time.Time
	Kind       Kind
}
