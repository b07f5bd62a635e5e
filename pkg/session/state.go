// Package session holds the state of a dual-pane transfer session and the pure
// reducer that drives it. Nothing in this package performs I/O: the reducer
// returns effects as data and the results come back as actions.
package session

import (
	"github.com/quocson95/ferry/pkg/filesys"
)

// Side identifies one of the two panes
type Side int

const (
	SideLocal Side = iota
	SideRemote
)

func (s Side) String() string {
	if s == SideRemote {
		return "remote"
	}
	return "local"
}

// Opposite returns the other pane
func (s Side) Opposite() Side {
	if s == SideRemote {
		return SideLocal
	}
	return SideRemote
}

// Position is a point in view coordinates
type Position struct {
	X, Y int
}

// ContextMenu is the open context menu of a pane
type ContextMenu struct {
	Position     Position
	HoveredIndex int // -1 when nothing is hovered
}

// PaneState is the state of one side of the session
type PaneState struct {
	Side      Side
	Separator string

	Path        string
	Entries     []filesys.FileEntry // replaced wholesale on every listing
	Loading     bool
	PendingPath string // target of the listing in flight
	LoadSeq     uint64 // results carrying another seq are stale

	ActiveEntry string // last clicked path, "" when none
	Anchor      string // range-select anchor, "" when none
	Selected    Selection
	Cursor      int // keyboard focus, index into the visible list

	ShowHidden    bool
	SortColumn    SortColumn
	SortDirection SortDirection
	ContextMenu   *ContextMenu

	Err error
}

func newPane(side Side, sep string) PaneState {
	return PaneState{
		Side:          side,
		Separator:     sep,
		SortColumn:    SortByName,
		SortDirection: SortAsc,
	}
}

// Entry returns the listed entry with the given path
func (p PaneState) Entry(path string) (filesys.FileEntry, bool) {
	for _, e := range p.Entries {
		if e.Path == path {
			return e, true
		}
	}
	return filesys.FileEntry{}, false
}

// RemoteHostDescriptor describes the host behind the remote pane
type RemoteHostDescriptor struct {
	Name      string
	Protocol  string // "sftp" or "s3"
	Address   string
	User      string
	Separator string
}

// DragSession is a drag in progress
type DragSession struct {
	Source Side
	Path   string
}

// PendingDelete is a delete waiting for confirmation
type PendingDelete struct {
	Side      Side
	Path      string
	Name      string
	Recursive bool
}

// SessionState is the whole state of a session
type SessionState struct {
	Local  PaneState
	Remote PaneState
	Focus  Side
	Host   RemoteHostDescriptor

	Transfer       *TransferState // nil when idle
	LastTransfer   *TransferResult
	NextTransferID uint64

	Drag          *DragSession
	DragOverPane  *Side
	PendingDelete *PendingDelete

	Err error
}

// Options configures a new session
type Options struct {
	Host           RemoteHostDescriptor
	LocalSeparator string
	ShowHidden     bool
	SortColumn     SortColumn
	SortDirection  SortDirection
}

// NewSession returns a session with two empty panes. Panes get content only
// through NavigateAction.
func NewSession(opts Options) SessionState {
	remoteSep := opts.Host.Separator
	if remoteSep == "" {
		remoteSep = "/"
	}
	localSep := opts.LocalSeparator
	if localSep == "" {
		localSep = "/"
	}

	s := SessionState{
		Local:  newPane(SideLocal, localSep),
		Remote: newPane(SideRemote, remoteSep),
		Host:   opts.Host,
	}
	s.Host.Separator = remoteSep
	for _, side := range []Side{SideLocal, SideRemote} {
		p := s.Pane(side)
		p.ShowHidden = opts.ShowHidden
		p.SortColumn = opts.SortColumn
		p.SortDirection = opts.SortDirection
		s = s.withPane(p)
	}
	return s
}

// Pane returns the state of one side
func (s SessionState) Pane(side Side) PaneState {
	if side == SideRemote {
		return s.Remote
	}
	return s.Local
}

func (s SessionState) withPane(p PaneState) SessionState {
	if p.Side == SideRemote {
		s.Remote = p
	} else {
		s.Local = p
	}
	return s
}

// Busy reports whether a transfer is queued or running
func (s SessionState) Busy() bool {
	return s.Transfer != nil
}

// TransferPhase returns the phase of the active transfer, PhaseIdle when none
func (s SessionState) TransferPhase() Phase {
	if s.Transfer == nil {
		return PhaseIdle
	}
	return s.Transfer.Phase
}

// ErrorMessage is the user-visible form of the last session error
func (s SessionState) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}
