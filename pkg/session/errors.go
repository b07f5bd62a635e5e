package session

import (
	"fmt"

	"github.com/quocson95/ferry/pkg/filesys"
)

// ListingError is a failed directory listing. The pane stays on its
// previous path.
type ListingError struct {
	Side Side
	Path string
	Err  error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("failed to list %s: %v", e.Path, e.Err)
}

func (e *ListingError) Unwrap() error { return e.Err }

// Kind is not-found, permission or transport
func (e *ListingError) Kind() filesys.ErrorKind { return filesys.KindOf(e.Err) }

// MutationOp names a pane mutation
type MutationOp string

const (
	OpMkdir  MutationOp = "create folder"
	OpRename MutationOp = "rename"
	OpDelete MutationOp = "delete"
)

// MutationError is a failed mkdir, rename or delete
type MutationError struct {
	Side Side
	Op   MutationOp
	Path string
	Err  error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

// Kind is conflict, permission, not-found or transport
func (e *MutationError) Kind() filesys.ErrorKind { return filesys.KindOf(e.Err) }

// TransferError ends the active transfer
type TransferError struct {
	File      string
	Direction Direction
	Err       error
}

func (e *TransferError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%s failed: %v", e.Direction, e.Err)
	}
	return fmt.Sprintf("%s of %s failed: %v", e.Direction, e.File, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// Kind is connection-lost, permission, disk-full, cancelled or transport
func (e *TransferError) Kind() filesys.ErrorKind { return filesys.KindOf(e.Err) }

// BusyError rejects an operation while a transfer is active
type BusyError struct {
	Op string
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("cannot %s while a transfer is active", e.Op)
}

// ValidationError rejects an action before any effect is emitted
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cannot %s: %s", e.Op, e.Reason)
}
