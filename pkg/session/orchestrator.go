package session

import (
	"github.com/quocson95/ferry/pkg/filesys"
)

// startTransfer validates the paths against the source listing and queues a
// transfer. Batches size every file first so aggregate progress is right
// from the first byte.
func startTransfer(s SessionState, a StartTransferAction) (SessionState, []Effect) {
	if s.Busy() {
		s.Err = &BusyError{Op: "start a transfer"}
		return s, nil
	}
	src := s.Pane(a.Direction.Source())
	dst := s.Pane(a.Direction.Dest())
	if dst.Path == "" {
		s.Err = &ValidationError{Op: a.Direction.String(), Reason: "destination has no open directory"}
		return s, nil
	}

	seen := make(map[string]bool, len(a.Paths))
	var files []TransferFile
	var total int64
	for _, path := range a.Paths {
		entry, ok := src.Entry(path)
		if !ok || !entry.IsSelectable() || seen[path] {
			continue
		}
		seen[path] = true
		files = append(files, TransferFile{
			Name:       entry.Name,
			SourcePath: entry.Path,
			DestPath:   filesys.Join(dst.Separator, dst.Path, entry.Name),
			Size:       entry.Size,
		})
		total += entry.Size
	}
	if len(files) == 0 {
		s.Err = &ValidationError{Op: a.Direction.String(), Reason: "no files selected"}
		return s, nil
	}

	s.NextTransferID++
	t := &TransferState{
		ID:                 s.NextTransferID,
		Phase:              PhaseQueued,
		Direction:          a.Direction,
		Files:              files,
		DestDir:            dst.Path,
		FileCount:          len(files),
		TotalBytesAllFiles: total,
		sizesKnown:         len(files) == 1,
	}
	s.Transfer = t
	s.Err = nil

	if !t.sizesKnown {
		paths := make([]string, len(files))
		for i, f := range files {
			paths[i] = f.SourcePath
		}
		return s, []Effect{StatFilesEffect{TransferID: t.ID, Side: a.Direction.Source(), Paths: paths}}
	}
	return s, []Effect{copyEffect(t, 0)}
}

func copyEffect(t *TransferState, index int) Effect {
	return CopyFileEffect{
		TransferID: t.ID,
		Index:      index,
		Direction:  t.Direction,
		File:       t.Files[index],
	}
}

// transferSelection turns the selection of a pane into a transfer. Without a
// selection the active entry, then the cursor entry, is used.
func transferSelection(s SessionState, from Side) (SessionState, []Effect) {
	p := s.Pane(from)
	paths := p.SelectedInViewOrder()
	if len(paths) == 0 {
		if e, ok := p.Entry(p.ActiveEntry); ok && e.IsSelectable() {
			paths = []string{e.Path}
		} else if e, ok := p.CursorEntry(); ok && e.IsSelectable() {
			paths = []string{e.Path}
		}
	}
	return startTransfer(s, StartTransferAction{Direction: DirectionFrom(from), Paths: paths})
}

// activeTransfer returns a copy of the transfer the action refers to
func activeTransfer(s SessionState, id uint64) (TransferState, bool) {
	if s.Transfer == nil || s.Transfer.ID != id {
		return TransferState{}, false
	}
	return *s.Transfer, true
}

func sizesProbed(s SessionState, a SizesProbedAction) (SessionState, []Effect) {
	t, ok := activeTransfer(s, a.ID)
	if !ok || t.sizesKnown {
		return s, nil
	}
	if a.Err != nil {
		return endTransfer(s, t, PhaseFailed, a.Err)
	}
	if len(a.Sizes) != len(t.Files) {
		return endTransfer(s, t, PhaseFailed,
			filesys.NewError("stat", t.DestDir, filesys.KindTransport, nil))
	}

	files := make([]TransferFile, len(t.Files))
	copy(files, t.Files)
	var total int64
	for i := range files {
		files[i].Size = a.Sizes[i]
		total += a.Sizes[i]
	}
	t.Files = files
	t.TotalBytesAllFiles = total
	t.sizesKnown = true
	s.Transfer = &t
	return s, []Effect{copyEffect(&t, 0)}
}

func fileStarted(s SessionState, a TransferFileStartedAction) SessionState {
	t, ok := activeTransfer(s, a.ID)
	if !ok || a.Index != t.FileIndex || a.Index >= len(t.Files) {
		return s
	}
	t.startFile(a.Index, a.TotalBytes, a.At)
	s.Transfer = &t
	return s
}

func progress(s SessionState, a TransferProgressAction) SessionState {
	t, ok := activeTransfer(s, a.ID)
	if !ok || a.Index != t.FileIndex || t.Phase != PhaseInProgress {
		return s
	}
	// The source may grow while it is read
	if a.TotalBytes > t.TotalBytes {
		t.TotalBytesAllFiles += a.TotalBytes - t.TotalBytes
		t.TotalBytes = a.TotalBytes
	}
	if !t.applyProgress(a.BytesTransferred, a.At) {
		return s
	}
	s.Transfer = &t
	return s
}

func fileDone(s SessionState, a TransferFileDoneAction) (SessionState, []Effect) {
	t, ok := activeTransfer(s, a.ID)
	if !ok || a.Index != t.FileIndex {
		return s, nil
	}
	t.finishFile()
	if next := t.FileIndex + 1; next < t.FileCount {
		// Sequential: the next file starts only now
		t.FileIndex = next
		t.CurrentFileName = t.Files[next].Name
		t.BytesTransferred = 0
		t.TotalBytes = t.Files[next].Size
		s.Transfer = &t
		return s, []Effect{copyEffect(&t, next)}
	}
	return endTransfer(s, t, PhaseCompleted, nil)
}

// transferFailed aborts the remainder of the batch. Files already copied
// stay on the destination and show up after the refresh.
func transferFailed(s SessionState, a TransferFailedAction) (SessionState, []Effect) {
	t, ok := activeTransfer(s, a.ID)
	if !ok {
		// The cancelled copy has removed its partial file
		if last := s.LastTransfer; last != nil && last.ID == a.ID && last.Phase == PhaseCancelled {
			return refresh(s, last.Direction.Dest())
		}
		return s, nil
	}
	phase := PhaseFailed
	if filesys.KindOf(a.Err) == filesys.KindCancelled {
		phase = PhaseCancelled
	}
	return endTransfer(s, t, phase, a.Err)
}

// cancelTransfer stops the transfer, asks the executor to drop the partial
// file and refreshes both panes
func cancelTransfer(s SessionState) (SessionState, []Effect) {
	if s.Transfer == nil {
		return s, nil
	}
	t := *s.Transfer
	cause := filesys.NewError("transfer", t.CurrentFileName, filesys.KindCancelled, nil)
	s, effects := endTransfer(s, t, PhaseCancelled, cause)
	s, srcRefresh := refresh(s, t.Direction.Source())
	effects = append([]Effect{AbortTransferEffect{TransferID: t.ID}}, effects...)
	return s, append(effects, srcRefresh...)
}

// endTransfer records the result, returns the slot to idle and refreshes the
// destination pane
func endTransfer(s SessionState, t TransferState, phase Phase, cause error) (SessionState, []Effect) {
	var err error
	if cause != nil {
		err = &TransferError{File: t.CurrentFileName, Direction: t.Direction, Err: cause}
		s.Err = err
	}
	t.Phase = phase
	s.LastTransfer = t.result(phase, err)
	s.Transfer = nil
	return refresh(s, t.Direction.Dest())
}

func drop(s SessionState, a DropAction) (SessionState, []Effect) {
	drag := s.Drag
	s.Drag = nil
	s.DragOverPane = nil
	if drag == nil || a.Side == drag.Source {
		return s, nil
	}
	return startTransfer(s, StartTransferAction{
		Direction: DirectionFrom(drag.Source),
		Paths:     []string{drag.Path},
	})
}
