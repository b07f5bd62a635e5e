package session

// Effect describes I/O the caller of Reduce must perform. Every effect ends
// with one or more result actions being dispatched back.
type Effect interface{}

// ListDirEffect lists Path and answers with ListingLoadedAction or
// ListingFailedAction carrying Seq
type ListDirEffect struct {
	Side Side
	Path string
	Seq  uint64
}

// StatFilesEffect sizes every file of a batch and answers with
// SizesProbedAction
type StatFilesEffect struct {
	TransferID uint64
	Side       Side
	Paths      []string
}

// CopyFileEffect copies one file and answers with TransferFileStartedAction,
// any number of TransferProgressAction, then TransferFileDoneAction or
// TransferFailedAction
type CopyFileEffect struct {
	TransferID uint64
	Index      int
	Direction  Direction
	File       TransferFile
}

// AbortTransferEffect stops the copy in flight and removes its partial output
type AbortTransferEffect struct {
	TransferID uint64
}

// MkdirEffect creates Dir/Name
type MkdirEffect struct {
	Side Side
	Dir  string
	Name string
}

// RenameEffect renames Path to NewName in the same directory
type RenameEffect struct {
	Side    Side
	Path    string
	NewName string
}

// DeleteEffect is only emitted after ConfirmDeleteAction
type DeleteEffect struct {
	Side      Side
	Path      string
	Recursive bool
}
