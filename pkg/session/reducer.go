package session

import (
	"github.com/quocson95/ferry/pkg/filesys"
)

// Reduce computes the state that follows action and the effects the caller
// must run. It is pure: s is never modified and the same inputs always give
// the same outputs. Unknown actions leave the state unchanged.
func Reduce(s SessionState, action Action) (SessionState, []Effect) {
	switch a := action.(type) {

	// ===== NAVIGATION =====

	case NavigateAction:
		return navigate(s, a.Side, a.Path)

	case NavigateUpAction:
		p := s.Pane(a.Side)
		if p.Path == "" || filesys.IsRoot(p.Separator, p.Path) {
			return s, nil
		}
		return navigate(s, a.Side, filesys.Parent(p.Separator, p.Path))

	case RefreshAction:
		return refresh(s, a.Side)

	case ListingLoadedAction:
		return listingLoaded(s, a), nil

	case ListingFailedAction:
		return listingFailed(s, a), nil

	case SetShowHiddenAction:
		return setShowHidden(s, a.Side, a.Show), nil

	case ToggleHiddenAction:
		return setShowHidden(s, a.Side, !s.Pane(a.Side).ShowHidden), nil

	case SortAction:
		return sortPane(s, a.Side, a.Column), nil

	// ===== SELECTION =====

	case ClickAction:
		return click(s, a)

	case SelectAllAction:
		s.Focus = a.Side
		return s.withPane(selectAll(s.Pane(a.Side))), nil

	case DeselectAllAction:
		p := s.Pane(a.Side)
		p.Selected = Selection{}
		return s.withPane(p), nil

	case MoveCursorAction:
		return moveCursor(s, a), nil

	case ActivateAction:
		return clickAtCursor(s, a.Side, ModNone)

	case ToggleAtCursorAction:
		return clickAtCursor(s, a.Side, ModToggle)

	case RangeToCursorAction:
		return clickAtCursor(s, a.Side, ModRange)

	case FocusAction:
		s.Focus = a.Side
		return s, nil

	// ===== CONTEXT MENU =====

	case OpenContextMenuAction:
		return openContextMenu(s, a), nil

	case HoverContextMenuAction:
		return hoverContextMenu(s, a), nil

	case CloseContextMenuAction:
		return closeContextMenu(s, a.Side), nil

	// ===== MUTATIONS =====

	case CreateFolderAction:
		return createFolder(s, a)

	case RenameAction:
		return renameEntry(s, a)

	case RequestDeleteAction:
		return requestDelete(s, a), nil

	case ConfirmDeleteAction:
		return confirmDelete(s)

	case CancelDeleteAction:
		s.PendingDelete = nil
		return s, nil

	case MutationDoneAction:
		return mutationDone(s, a)

	case MutationFailedAction:
		return mutationError(s, a.Side, a.Op, a.Path, a.Err), nil

	// ===== TRANSFER =====

	case StartTransferAction:
		return startTransfer(s, a)

	case TransferSelectionAction:
		return transferSelection(s, a.From)

	case SizesProbedAction:
		return sizesProbed(s, a)

	case TransferFileStartedAction:
		return fileStarted(s, a), nil

	case TransferProgressAction:
		return progress(s, a), nil

	case TransferFileDoneAction:
		return fileDone(s, a)

	case TransferFailedAction:
		return transferFailed(s, a)

	case CancelTransferAction:
		return cancelTransfer(s)

	// ===== DRAG AND DROP =====

	case DragStartAction:
		e, ok := s.Pane(a.Side).Entry(a.Path)
		if !ok || !e.IsSelectable() {
			return s, nil
		}
		s.Drag = &DragSession{Source: a.Side, Path: a.Path}
		return s, nil

	case DragOverAction:
		if s.Drag == nil {
			return s, nil
		}
		side := a.Side
		s.DragOverPane = &side
		return s, nil

	case DragLeaveAction:
		if s.DragOverPane != nil && *s.DragOverPane == a.Side {
			s.DragOverPane = nil
		}
		return s, nil

	case DropAction:
		return drop(s, a)

	case DragCancelAction:
		s.Drag = nil
		s.DragOverPane = nil
		return s, nil

	case DismissErrorAction:
		s.Err = nil
		return s, nil
	}

	return s, nil
}
