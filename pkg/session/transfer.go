package session

import (
	"math"
	"time"
)

// Direction is the way bytes flow between the panes
type Direction int

const (
	Upload   Direction = iota // local -> remote
	Download                  // remote -> local
)

func (d Direction) String() string {
	if d == Download {
		return "download"
	}
	return "upload"
}

// Source is the pane the bytes are read from
func (d Direction) Source() Side {
	if d == Download {
		return SideRemote
	}
	return SideLocal
}

// Dest is the pane the bytes are written to
func (d Direction) Dest() Side {
	return d.Source().Opposite()
}

// DirectionFrom returns the direction of a transfer reading from side
func DirectionFrom(side Side) Direction {
	if side == SideRemote {
		return Download
	}
	return Upload
}

// Phase is the state of a transfer.
//
//	Idle -> Queued -> InProgress -> Completed | Failed | Cancelled
//
// Idle is represented by a nil TransferState. The three terminal phases
// only appear in TransferResult.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseQueued
	PhaseInProgress
	PhaseCompleted
	PhaseFailed
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseQueued:
		return "queued"
	case PhaseInProgress:
		return "in progress"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "idle"
	}
}

const (
	// Minimum time between two speed samples
	speedSampleInterval = 250 * time.Millisecond
	// Weight of the newest sample in the moving average
	speedSmoothing = 0.3
)

// TransferFile is one file of a transfer
type TransferFile struct {
	Name       string
	SourcePath string
	DestPath   string
	Size       int64
}

// TransferState is the active transfer. Files are copied one after another:
// FileIndex only advances once the current file is fully written, so a
// failure never leaves two files half done and Speed is the speed of the
// current file.
type TransferState struct {
	ID        uint64
	Phase     Phase
	Direction Direction
	Files     []TransferFile
	DestDir   string

	CurrentFileName  string
	BytesTransferred int64
	TotalBytes       int64
	StartedAt        time.Time
	FileStartedAt    time.Time

	SpeedBytesPerSecond float64

	FileIndex                int
	FileCount                int
	FilesCompleted           int
	BytesTransferredAllFiles int64
	TotalBytesAllFiles       int64

	sizesKnown  bool
	sampleAt    time.Time
	sampleBytes int64
}

// ProgressPercent returns round(done/total*100), 0 when total is 0
func ProgressPercent(done, total int64) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(float64(done) / float64(total) * 100))
	if pct > 100 {
		return 100
	}
	return pct
}

// ProgressPercent of the current file
func (t TransferState) ProgressPercent() int {
	return ProgressPercent(t.BytesTransferred, t.TotalBytes)
}

// AggregatePercent of the whole batch
func (t TransferState) AggregatePercent() int {
	return ProgressPercent(t.BytesTransferredAllFiles, t.TotalBytesAllFiles)
}

// ETA of the current file. ok is false while the speed is still unknown.
func (t TransferState) ETA() (time.Duration, bool) {
	return eta(t.TotalBytes-t.BytesTransferred, t.TotalBytes, t.SpeedBytesPerSecond)
}

// AggregateETA of the whole batch
func (t TransferState) AggregateETA() (time.Duration, bool) {
	return eta(t.TotalBytesAllFiles-t.BytesTransferredAllFiles, t.TotalBytesAllFiles, t.SpeedBytesPerSecond)
}

func eta(remaining, total int64, speed float64) (time.Duration, bool) {
	if speed <= 0 || total <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return 0, false
	}
	if remaining < 0 {
		remaining = 0
	}
	return time.Duration(float64(remaining) / speed * float64(time.Second)), true
}

// CurrentFile returns the file being copied
func (t TransferState) CurrentFile() (TransferFile, bool) {
	if t.FileIndex < 0 || t.FileIndex >= len(t.Files) {
		return TransferFile{}, false
	}
	return t.Files[t.FileIndex], true
}

// startFile resets the per-file counters for file index
func (t *TransferState) startFile(index int, total int64, at time.Time) {
	t.Phase = PhaseInProgress
	t.FileIndex = index
	t.CurrentFileName = t.Files[index].Name
	if total >= 0 && total != t.Files[index].Size {
		// The size at open time wins over the listing or the probe
		t.TotalBytesAllFiles += total - t.Files[index].Size
		files := make([]TransferFile, len(t.Files))
		copy(files, t.Files)
		files[index].Size = total
		t.Files = files
	}
	t.TotalBytes = t.Files[index].Size
	t.BytesTransferred = 0
	t.FileStartedAt = at
	if t.StartedAt.IsZero() {
		t.StartedAt = at
	}
	t.sampleAt = at
	t.sampleBytes = 0
}

// applyProgress records an absolute byte count for the current file.
// Values at or below the recorded count are ignored, so reordered and
// duplicated events are harmless.
func (t *TransferState) applyProgress(done int64, at time.Time) bool {
	if done > t.TotalBytes {
		done = t.TotalBytes
	}
	if done <= t.BytesTransferred {
		return false
	}
	t.BytesTransferredAllFiles += done - t.BytesTransferred
	t.BytesTransferred = done

	if elapsed := at.Sub(t.sampleAt); elapsed >= speedSampleInterval {
		instant := float64(done-t.sampleBytes) / elapsed.Seconds()
		if t.SpeedBytesPerSecond == 0 {
			t.SpeedBytesPerSecond = instant
		} else {
			t.SpeedBytesPerSecond = speedSmoothing*instant + (1-speedSmoothing)*t.SpeedBytesPerSecond
		}
		t.sampleAt = at
		t.sampleBytes = done
	}
	return true
}

// finishFile forces the current file to complete
func (t *TransferState) finishFile() {
	t.BytesTransferredAllFiles += t.TotalBytes - t.BytesTransferred
	t.BytesTransferred = t.TotalBytes
	t.FilesCompleted++
}

// TransferResult summarises the last finished transfer
type TransferResult struct {
	ID               uint64
	Phase            Phase
	Direction        Direction
	FilesCompleted   int
	FileCount        int
	BytesTransferred int64
	Err              error
}

func (t TransferState) result(phase Phase, err error) *TransferResult {
	return &TransferResult{
		ID:               t.ID,
		Phase:            phase,
		Direction:        t.Direction,
		FilesCompleted:   t.FilesCompleted,
		FileCount:        t.FileCount,
		BytesTransferred: t.BytesTransferredAllFiles,
		Err:              err,
	}
}
