package session

import (
	"github.com/quocson95/ferry/pkg/filesys"
)

// navigate starts a listing of path. Selection is cleared right away and
// again when the listing lands on a different path.
func navigate(s SessionState, side Side, path string) (SessionState, []Effect) {
	p := s.Pane(side)
	p = clearSelection(p)
	p.ContextMenu = nil
	p.Err = nil
	p.Loading = true
	p.PendingPath = path
	p.LoadSeq++
	return s.withPane(p), []Effect{ListDirEffect{Side: side, Path: path, Seq: p.LoadSeq}}
}

// refresh re-lists the current path and keeps the selection. A navigation
// in flight is re-issued instead so it is not undone.
func refresh(s SessionState, side Side) (SessionState, []Effect) {
	p := s.Pane(side)
	target := p.Path
	if p.Loading {
		target = p.PendingPath
	}
	if target == "" {
		return s, nil
	}
	p.Loading = true
	p.PendingPath = target
	p.LoadSeq++
	return s.withPane(p), []Effect{ListDirEffect{Side: side, Path: target, Seq: p.LoadSeq}}
}

func listingLoaded(s SessionState, a ListingLoadedAction) SessionState {
	p := s.Pane(a.Side)
	if a.Seq != p.LoadSeq || !p.Loading {
		return s
	}
	changed := a.Path != p.Path
	p = withListing(p, a.Path, a.Entries)
	p.Loading = false
	p.PendingPath = ""
	p.Err = nil

	if changed {
		p = clearSelection(p)
		p.ContextMenu = nil
		p.Cursor = 0
	} else {
		p = sanitize(p)
		if _, ok := p.Entry(p.ActiveEntry); !ok {
			p.ActiveEntry = ""
		}
		if _, ok := p.Entry(p.Anchor); !ok {
			p.Anchor = ""
		}
		p = clampCursor(p)
	}
	return s.withPane(p)
}

func listingFailed(s SessionState, a ListingFailedAction) SessionState {
	p := s.Pane(a.Side)
	if a.Seq != p.LoadSeq || !p.Loading {
		return s
	}
	err := &ListingError{Side: a.Side, Path: a.Path, Err: a.Err}
	p.Loading = false
	p.PendingPath = ""
	p.Err = err
	s = s.withPane(p)
	s.Err = err
	return s
}

func setShowHidden(s SessionState, side Side, show bool) SessionState {
	p := s.Pane(side)
	p.ShowHidden = show
	if !show {
		p = sanitize(p)
		if e, ok := p.Entry(p.ActiveEntry); ok && e.IsHidden() {
			p.ActiveEntry = ""
		}
		if e, ok := p.Entry(p.Anchor); ok && e.IsHidden() {
			p.Anchor = ""
		}
	}
	return s.withPane(clampCursor(p))
}

func sortPane(s SessionState, side Side, column SortColumn) SessionState {
	p := s.Pane(side)
	p.SortColumn, p.SortDirection = ToggleSort(p.SortColumn, p.SortDirection, column)
	return s.withPane(p)
}

// ===== MUTATIONS =====

func rejectBusy(s SessionState, op string) (SessionState, bool) {
	if s.Busy() {
		s.Err = &BusyError{Op: op}
		return s, true
	}
	return s, false
}

func mutationError(s SessionState, side Side, op MutationOp, path string, err error) SessionState {
	merr := &MutationError{Side: side, Op: op, Path: path, Err: err}
	p := s.Pane(side)
	p.Err = merr
	s = s.withPane(p)
	s.Err = merr
	return s
}

// listedName reports whether a visible or hidden entry called name exists
func listedName(p PaneState, name string) bool {
	for _, e := range p.Entries {
		if e.Name == name {
			return true
		}
	}
	return false
}

func createFolder(s SessionState, a CreateFolderAction) (SessionState, []Effect) {
	s, busy := rejectBusy(s, string(OpMkdir))
	if busy {
		return s, nil
	}
	p := s.Pane(a.Side)
	if p.Path == "" {
		s.Err = &ValidationError{Op: string(OpMkdir), Reason: "no directory is open"}
		return s, nil
	}
	if !filesys.ValidName(p.Separator, a.Name) {
		s.Err = &ValidationError{Op: string(OpMkdir), Reason: "invalid name"}
		return s, nil
	}
	target := filesys.Join(p.Separator, p.Path, a.Name)
	if listedName(p, a.Name) {
		return mutationError(s, a.Side, OpMkdir, target,
			filesys.NewError("mkdir", target, filesys.KindConflict, nil)), nil
	}
	return s, []Effect{MkdirEffect{Side: a.Side, Dir: p.Path, Name: a.Name}}
}

func renameEntry(s SessionState, a RenameAction) (SessionState, []Effect) {
	p := s.Pane(a.Side)
	entry, ok := p.Entry(a.Path)
	if !ok || entry.IsParent() {
		return s, nil
	}
	// Keeping the old name is a cancel
	if a.NewName == entry.Name {
		return s, nil
	}
	s, busy := rejectBusy(s, string(OpRename))
	if busy {
		return s, nil
	}
	if a.NewName == "" {
		s.Err = &ValidationError{Op: string(OpRename), Reason: "name is empty"}
		return s, nil
	}
	if !filesys.ValidName(p.Separator, a.NewName) {
		s.Err = &ValidationError{Op: string(OpRename), Reason: "invalid name"}
		return s, nil
	}
	if listedName(p, a.NewName) {
		target := filesys.Join(p.Separator, filesys.Parent(p.Separator, a.Path), a.NewName)
		return mutationError(s, a.Side, OpRename, a.Path,
			filesys.NewError("rename", target, filesys.KindConflict, nil)), nil
	}
	return s, []Effect{RenameEffect{Side: a.Side, Path: a.Path, NewName: a.NewName}}
}

func requestDelete(s SessionState, a RequestDeleteAction) SessionState {
	p := s.Pane(a.Side)
	entry, ok := p.Entry(a.Path)
	if !ok || entry.IsParent() {
		return s
	}
	s, busy := rejectBusy(s, string(OpDelete))
	if busy {
		return s
	}
	s.PendingDelete = &PendingDelete{
		Side:      a.Side,
		Path:      entry.Path,
		Name:      entry.Name,
		Recursive: entry.IsDir(),
	}
	return s
}

func confirmDelete(s SessionState) (SessionState, []Effect) {
	pd := s.PendingDelete
	if pd == nil {
		return s, nil
	}
	s.PendingDelete = nil
	s, busy := rejectBusy(s, string(OpDelete))
	if busy {
		return s, nil
	}
	return s, []Effect{DeleteEffect{Side: pd.Side, Path: pd.Path, Recursive: pd.Recursive}}
}

func mutationDone(s SessionState, a MutationDoneAction) (SessionState, []Effect) {
	p := s.Pane(a.Side)
	p.Err = nil
	if a.Op == OpDelete || a.Op == OpRename {
		p.Selected = p.Selected.Without(a.Path)
		if p.ActiveEntry == a.Path {
			p.ActiveEntry = ""
		}
		if p.Anchor == a.Path {
			p.Anchor = ""
		}
	}
	return refresh(s.withPane(p), a.Side)
}

// ===== CONTEXT MENU =====

func openContextMenu(s SessionState, a OpenContextMenuAction) SessionState {
	other := s.Pane(a.Side.Opposite())
	other.ContextMenu = nil
	s = s.withPane(other)

	p := s.Pane(a.Side)
	p.ContextMenu = &ContextMenu{Position: Position{X: a.X, Y: a.Y}, HoveredIndex: -1}
	s = s.withPane(p)
	s.Focus = a.Side
	return s
}

func hoverContextMenu(s SessionState, a HoverContextMenuAction) SessionState {
	p := s.Pane(a.Side)
	if p.ContextMenu == nil {
		return s
	}
	menu := *p.ContextMenu
	menu.HoveredIndex = a.Index
	p.ContextMenu = &menu
	return s.withPane(p)
}

func closeContextMenu(s SessionState, side Side) SessionState {
	p := s.Pane(side)
	p.ContextMenu = nil
	return s.withPane(p)
}

// ===== CLICKS AND CURSOR =====

func click(s SessionState, a ClickAction) (SessionState, []Effect) {
	p := s.Pane(a.Side)
	view := p.Visible()
	if a.Index < 0 || a.Index >= len(view) {
		return s, nil
	}
	s.Focus = a.Side
	p.Cursor = a.Index
	p.ContextMenu = nil

	entry := view[a.Index]
	if entry.IsDir() {
		s = s.withPane(p)
		if a.Modifier != ModNone {
			return s, nil
		}
		return navigate(s, a.Side, entry.Path)
	}
	return s.withPane(clickFile(p, view, a.Index, a.Modifier)), nil
}

func clickAtCursor(s SessionState, side Side, mod Modifier) (SessionState, []Effect) {
	return click(s, ClickAction{Side: side, Index: s.Pane(side).Cursor, Modifier: mod})
}

func moveCursor(s SessionState, a MoveCursorAction) SessionState {
	p := s.Pane(a.Side)
	p.Cursor += a.Delta
	s.Focus = a.Side
	return s.withPane(clampCursor(p))
}
