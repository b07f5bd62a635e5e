package session

import "github.com/quocson95/ferry/pkg/filesys"

// Visible returns the entries as shown: hidden files filtered out unless
// ShowHidden is set, then sorted by the pane's column and direction.
// Entries itself is never reordered.
func (p PaneState) Visible() []filesys.FileEntry {
	filtered := make([]filesys.FileEntry, 0, len(p.Entries))
	for _, e := range p.Entries {
		if !p.ShowHidden && e.IsHidden() {
			continue
		}
		filtered = append(filtered, e)
	}
	return SortEntries(filtered, p.SortColumn, p.SortDirection)
}

// CursorEntry returns the visible entry under the keyboard cursor
func (p PaneState) CursorEntry() (filesys.FileEntry, bool) {
	view := p.Visible()
	if p.Cursor < 0 || p.Cursor >= len(view) {
		return filesys.FileEntry{}, false
	}
	return view[p.Cursor], true
}

func clampCursor(p PaneState) PaneState {
	n := len(p.Visible())
	switch {
	case n == 0:
		p.Cursor = 0
	case p.Cursor >= n:
		p.Cursor = n - 1
	case p.Cursor < 0:
		p.Cursor = 0
	}
	return p
}

// withListing stores a fresh listing for dir, adding the ".." entry unless
// dir is a root
func withListing(p PaneState, dir string, entries []filesys.FileEntry) PaneState {
	listed := make([]filesys.FileEntry, 0, len(entries)+1)
	if !filesys.IsRoot(p.Separator, dir) {
		listed = append(listed, filesys.ParentEntry(p.Separator, dir))
	}
	for _, e := range entries {
		if e.IsParent() {
			continue
		}
		listed = append(listed, e)
	}
	p.Entries = listed
	p.Path = dir
	return p
}
