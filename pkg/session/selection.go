package session

import (
	"sort"

	"github.com/quocson95/ferry/pkg/filesys"
)

// Selection is an immutable set of paths. Every change returns a new set so
// previous session states keep their own selection.
type Selection struct {
	paths map[string]struct{}
}

// NewSelection builds a set from paths
func NewSelection(paths ...string) Selection {
	if len(paths) == 0 {
		return Selection{}
	}
	m := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		m[p] = struct{}{}
	}
	return Selection{paths: m}
}

// Has reports membership
func (s Selection) Has(path string) bool {
	_, ok := s.paths[path]
	return ok
}

// Len returns the number of selected paths
func (s Selection) Len() int {
	return len(s.paths)
}

// Paths returns the members in lexical order
func (s Selection) Paths() []string {
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (s Selection) clone(extra int) map[string]struct{} {
	m := make(map[string]struct{}, len(s.paths)+extra)
	for p := range s.paths {
		m[p] = struct{}{}
	}
	return m
}

// With returns a set that also contains paths
func (s Selection) With(paths ...string) Selection {
	m := s.clone(len(paths))
	for _, p := range paths {
		m[p] = struct{}{}
	}
	return Selection{paths: m}
}

// Without returns a set that no longer contains path
func (s Selection) Without(path string) Selection {
	if !s.Has(path) {
		return s
	}
	m := s.clone(0)
	delete(m, path)
	return Selection{paths: m}
}

// Toggle flips membership of path
func (s Selection) Toggle(path string) Selection {
	if s.Has(path) {
		return s.Without(path)
	}
	return s.With(path)
}

// Modifier is the modifier held during a click
type Modifier int

const (
	ModNone   Modifier = iota
	ModToggle          // ctrl / cmd
	ModRange           // shift
)

// sanitize drops every member that is not a selectable entry of the visible
// list. Runs after every selection change and every listing.
func sanitize(p PaneState) PaneState {
	if p.Selected.Len() == 0 {
		return p
	}
	allowed := make(map[string]bool)
	for _, e := range p.Visible() {
		if e.IsSelectable() {
			allowed[e.Path] = true
		}
	}
	keep := make([]string, 0, p.Selected.Len())
	for path := range p.Selected.paths {
		if allowed[path] {
			keep = append(keep, path)
		}
	}
	if len(keep) != p.Selected.Len() {
		p.Selected = NewSelection(keep...)
	}
	return p
}

// clickFile applies a click on a file of the visible list
func clickFile(p PaneState, view []filesys.FileEntry, index int, mod Modifier) PaneState {
	entry := view[index]
	switch mod {
	case ModToggle:
		if entry.IsSelectable() {
			p.Selected = p.Selected.Toggle(entry.Path)
			p.Anchor = entry.Path
		}
		p.ActiveEntry = entry.Path
	case ModRange:
		if !entry.IsSelectable() {
			break
		}
		anchor := indexOfPath(view, p.Anchor)
		if anchor < 0 {
			p.Selected = p.Selected.With(entry.Path)
			p.Anchor = entry.Path
		} else {
			lo, hi := anchor, index
			if lo > hi {
				lo, hi = hi, lo
			}
			var paths []string
			for _, e := range view[lo : hi+1] {
				if e.IsSelectable() {
					paths = append(paths, e.Path)
				}
			}
			p.Selected = p.Selected.With(paths...)
		}
		p.ActiveEntry = entry.Path
	default:
		p.ActiveEntry = entry.Path
		p.Anchor = entry.Path
	}
	return sanitize(p)
}

// selectAll selects every selectable entry of the visible list
func selectAll(p PaneState) PaneState {
	var paths []string
	for _, e := range p.Visible() {
		if e.IsSelectable() {
			paths = append(paths, e.Path)
		}
	}
	p.Selected = NewSelection(paths...)
	return p
}

func clearSelection(p PaneState) PaneState {
	p.Selected = Selection{}
	p.ActiveEntry = ""
	p.Anchor = ""
	return p
}

func indexOfPath(view []filesys.FileEntry, path string) int {
	if path == "" {
		return -1
	}
	for i, e := range view {
		if e.Path == path {
			return i
		}
	}
	return -1
}

// SelectedInViewOrder returns the selected paths in the order they are shown
func (p PaneState) SelectedInViewOrder() []string {
	var paths []string
	for _, e := range p.Visible() {
		if p.Selected.Has(e.Path) {
			paths = append(paths, e.Path)
		}
	}
	return paths
}
