package session

import (
	"time"

	"github.com/quocson95/ferry/pkg/filesys"
)

// Action is the base interface for all state changes
type Action interface{}

// ===== NAVIGATION ACTIONS =====

type NavigateAction struct {
	Side Side
	Path string
}
type NavigateUpAction struct {
	Side Side
}
type RefreshAction struct {
	Side Side
}
type SetShowHiddenAction struct {
	Side Side
	Show bool
}
type ToggleHiddenAction struct {
	Side Side
}
type SortAction struct {
	Side   Side
	Column SortColumn
}

// ===== SELECTION ACTIONS =====

// ClickAction is a click on the visible entry at Index
type ClickAction struct {
	Side     Side
	Index    int
	Modifier Modifier
}
type SelectAllAction struct {
	Side Side
}
type DeselectAllAction struct {
	Side Side
}
type MoveCursorAction struct {
	Side  Side
	Delta int
}
type ActivateAction struct{ Side Side }       // plain click at cursor
type ToggleAtCursorAction struct{ Side Side } // ctrl-click at cursor
type RangeToCursorAction struct{ Side Side }  // shift-click at cursor
type FocusAction struct{ Side Side }

// ===== CONTEXT MENU ACTIONS =====

type OpenContextMenuAction struct {
	Side Side
	X, Y int
}
type HoverContextMenuAction struct {
	Side  Side
	Index int
}
type CloseContextMenuAction struct {
	Side Side
}

// ===== MUTATION ACTIONS =====

type CreateFolderAction struct {
	Side Side
	Name string
}
type RenameAction struct {
	Side    Side
	Path    string
	NewName string
}
type RequestDeleteAction struct {
	Side Side
	Path string
}
type ConfirmDeleteAction struct{}
type CancelDeleteAction struct{}

// ===== TRANSFER ACTIONS =====

type StartTransferAction struct {
	Direction Direction
	Paths     []string
}

// TransferSelectionAction transfers the selection of From, or the active or
// cursor entry when nothing is selected
type TransferSelectionAction struct {
	From Side
}
type CancelTransferAction struct{}

// ===== DRAG AND DROP ACTIONS =====

type DragStartAction struct {
	Side Side
	Path string
}
type DragOverAction struct{ Side Side }
type DragLeaveAction struct{ Side Side }
type DropAction struct{ Side Side }
type DragCancelAction struct{}

type DismissErrorAction struct{}

// ===== RESULT ACTIONS =====
// Dispatched by the effect executor.

type ListingLoadedAction struct {
	Side    Side
	Path    string
	Seq     uint64
	Entries []filesys.FileEntry
}
type ListingFailedAction struct {
	Side Side
	Path string
	Seq  uint64
	Err  error
}

// SizesProbedAction carries the sizes of every file of a batch, in order
type SizesProbedAction struct {
	ID    uint64
	Sizes []int64
	Err   error
}
type TransferFileStartedAction struct {
	ID         uint64
	Index      int
	TotalBytes int64
	At         time.Time
}

// TransferProgressAction carries the absolute byte count of the current file
type TransferProgressAction struct {
	ID               uint64
	Index            int
	BytesTransferred int64
	TotalBytes       int64
	At               time.Time
}
type TransferFileDoneAction struct {
	ID    uint64
	Index int
	At    time.Time
}
type TransferFailedAction struct {
	ID    uint64
	Index int
	Err   error
}
type MutationDoneAction struct {
	Side Side
	Op   MutationOp
	Path string
}
type MutationFailedAction struct {
	Side Side
	Op   MutationOp
	Path string
	Err  error
}
