package tui

import (
	"github.com/quocson95/ferry/pkg/session"
)

// Rows moved by page up and page down
const pageSize = 10

// keyActions maps a key of the browser to session actions. Keys that open a
// prompt or the context menu are handled by BrowserModel itself.
func keyActions(s session.SessionState, key string) []session.Action {
	side := s.Focus

	if s.PendingDelete != nil {
		switch key {
		case "y", "Y", "enter":
			return []session.Action{session.ConfirmDeleteAction{}}
		case "n", "N", "esc":
			return []session.Action{session.CancelDeleteAction{}}
		}
		return nil
	}

	p := s.Pane(side)
	switch key {
	case "tab":
		return []session.Action{session.FocusAction{Side: side.Opposite()}}
	case "up", "k":
		return []session.Action{session.MoveCursorAction{Side: side, Delta: -1}}
	case "down", "j":
		return []session.Action{session.MoveCursorAction{Side: side, Delta: 1}}
	case "pgup":
		return []session.Action{session.MoveCursorAction{Side: side, Delta: -pageSize}}
	case "pgdown":
		return []session.Action{session.MoveCursorAction{Side: side, Delta: pageSize}}
	case "home", "g":
		return []session.Action{session.MoveCursorAction{Side: side, Delta: -len(p.Entries)}}
	case "end", "G":
		return []session.Action{session.MoveCursorAction{Side: side, Delta: len(p.Entries)}}
	case "shift+up":
		return []session.Action{
			session.MoveCursorAction{Side: side, Delta: -1},
			session.RangeToCursorAction{Side: side},
		}
	case "shift+down":
		return []session.Action{
			session.MoveCursorAction{Side: side, Delta: 1},
			session.RangeToCursorAction{Side: side},
		}
	case "enter", "right", "l":
		return []session.Action{session.ActivateAction{Side: side}}
	case " ":
		return []session.Action{session.ToggleAtCursorAction{Side: side}}
	case "left", "h", "backspace":
		return []session.Action{session.NavigateUpAction{Side: side}}
	case "ctrl+a":
		return []session.Action{session.SelectAllAction{Side: side}}
	case "esc":
		if s.Err != nil {
			return []session.Action{session.DismissErrorAction{}}
		}
		if s.Drag != nil {
			return []session.Action{session.DragCancelAction{}}
		}
		return []session.Action{session.DeselectAllAction{Side: side}}
	case ".":
		return []session.Action{session.ToggleHiddenAction{Side: side}}
	case "1":
		return []session.Action{session.SortAction{Side: side, Column: session.SortByName}}
	case "2":
		return []session.Action{session.SortAction{Side: side, Column: session.SortBySize}}
	case "3":
		return []session.Action{session.SortAction{Side: side, Column: session.SortByModified}}
	case "4":
		return []session.Action{session.SortAction{Side: side, Column: session.SortByKind}}
	case "r":
		return []session.Action{session.RefreshAction{Side: side}}
	case "R":
		return []session.Action{
			session.RefreshAction{Side: session.SideLocal},
			session.RefreshAction{Side: session.SideRemote},
		}
	case "t", "f5":
		return []session.Action{session.TransferSelectionAction{From: side}}
	case "C", "ctrl+x":
		return []session.Action{session.CancelTransferAction{}}
	case "x", "delete", "f8":
		if e, ok := p.CursorEntry(); ok && !e.IsParent() {
			return []session.Action{session.RequestDeleteAction{Side: side, Path: e.Path}}
		}
	case "v":
		// Keyboard drag: pick up the file under the cursor, drop with "p"
		if e, ok := p.CursorEntry(); ok && e.IsSelectable() {
			return []session.Action{
				session.DragStartAction{Side: side, Path: e.Path},
				session.DragOverAction{Side: side.Opposite()},
			}
		}
	case "p":
		if s.Drag != nil {
			target := side
			if s.DragOverPane != nil {
				target = *s.DragOverPane
			}
			return []session.Action{session.DropAction{Side: target}}
		}
	}
	return nil
}
