// Package transfer runs session effects against real filesystems and owns the
// live session state.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quocson95/ferry/pkg/filesys"
	"github.com/quocson95/ferry/pkg/metrics"
	"github.com/quocson95/ferry/pkg/session"
)

// DefaultProgressInterval is the minimum time between two progress events of
// the same file
const DefaultProgressInterval = 100 * time.Millisecond

// Executor performs the effects returned by session.Reduce and reports the
// outcome as actions on its output channel
type Executor struct {
	local  filesys.Filesystem
	remote filesys.Filesystem

	actions  chan<- session.Action
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// One transfer at a time: the context of the current one
	mu             sync.Mutex
	transferID     uint64
	transferCtx    context.Context
	transferCancel context.CancelFunc
}

// Option configures an Executor and the Controller around it
type Option func(*Executor)

// WithProgressInterval overrides DefaultProgressInterval
func WithProgressInterval(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLogger sets the logger, slog.Default() otherwise
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// NewExecutor creates an executor writing results to actions
func NewExecutor(local, remote filesys.Filesystem, actions chan<- session.Action, opts ...Option) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		local:    local,
		remote:   remote,
		actions:  actions,
		interval: DefaultProgressInterval,
		logger:   slog.Default(),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Close cancels everything in flight and waits for the workers to exit
func (e *Executor) Close() {
	e.cancel()
	e.wg.Wait()
}

func (e *Executor) fs(side session.Side) filesys.Filesystem {
	if side == session.SideRemote {
		return e.remote
	}
	return e.local
}

// Run starts effect in its own goroutine. Transfer contexts are registered
// before Run returns so an abort that follows is never lost.
func (e *Executor) Run(effect session.Effect) {
	switch eff := effect.(type) {
	case session.ListDirEffect:
		e.spawn(func() { e.list(eff) })
	case session.StatFilesEffect:
		ctx := e.transferContext(eff.TransferID)
		e.spawn(func() { e.stat(ctx, eff) })
	case session.CopyFileEffect:
		ctx := e.transferContext(eff.TransferID)
		e.spawn(func() { e.copy(ctx, eff) })
	case session.AbortTransferEffect:
		e.abort(eff.TransferID)
	case session.MkdirEffect:
		e.spawn(func() { e.mkdir(eff) })
	case session.RenameEffect:
		e.spawn(func() { e.rename(eff) })
	case session.DeleteEffect:
		e.spawn(func() { e.delete(eff) })
	default:
		e.logger.Warn("unknown effect", "type", fmt.Sprintf("%T", effect))
	}
}

func (e *Executor) spawn(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}

// send delivers an action unless the executor is closed
func (e *Executor) send(a session.Action) {
	select {
	case e.actions <- a:
	case <-e.ctx.Done():
	}
}

// trySend drops the action when the channel is full. Only used for progress,
// which carries absolute counts.
func (e *Executor) trySend(a session.Action) {
	select {
	case e.actions <- a:
	default:
	}
}

func (e *Executor) transferContext(id uint64) context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id == e.transferID && e.transferCtx != nil {
		return e.transferCtx
	}
	if e.transferCancel != nil {
		e.transferCancel()
	}
	e.transferID = id
	e.transferCtx, e.transferCancel = context.WithCancel(e.ctx)
	return e.transferCtx
}

func (e *Executor) abort(id uint64) {
	ctx := e.transferContext(id)
	e.mu.Lock()
	cancel := e.transferCancel
	e.mu.Unlock()
	if ctx.Err() == nil {
		e.logger.Info("aborting transfer", "id", id)
	}
	cancel()
}

func (e *Executor) list(eff session.ListDirEffect) {
	start := e.now()
	entries, err := e.fs(eff.Side).List(e.ctx, eff.Path)
	metrics.RecordListing(eff.Side.String(), err == nil, e.now().Sub(start))
	if err != nil {
		e.logger.Error("failed to list directory", "side", eff.Side, "path", eff.Path, "err", err)
		e.send(session.ListingFailedAction{Side: eff.Side, Path: eff.Path, Seq: eff.Seq, Err: err})
		return
	}
	e.send(session.ListingLoadedAction{Side: eff.Side, Path: eff.Path, Seq: eff.Seq, Entries: entries})
}

func (e *Executor) stat(ctx context.Context, eff session.StatFilesEffect) {
	fsys := e.fs(eff.Side)
	sizes := make([]int64, len(eff.Paths))
	for i, path := range eff.Paths {
		info, err := fsys.Stat(ctx, path)
		if err != nil {
			e.logger.Error("failed to size batch", "id", eff.TransferID, "path", path, "err", err)
			e.send(session.SizesProbedAction{ID: eff.TransferID, Err: err})
			return
		}
		sizes[i] = info.Size
	}
	e.send(session.SizesProbedAction{ID: eff.TransferID, Sizes: sizes})
}

// copy streams one file. On any failure, cancellation included, nothing the
// copy wrote is left behind: committing writers are aborted, others have the
// partial file removed. Files finished earlier are left alone.
func (e *Executor) copy(ctx context.Context, eff session.CopyFileEffect) {
	src := e.fs(eff.Direction.Source())
	dst := e.fs(eff.Direction.Dest())
	file := eff.File
	log := e.logger.With("id", eff.TransferID, "index", eff.Index, "src", file.SourcePath, "dst", file.DestPath)

	fail := func(err error, partial bool) {
		if ctx.Err() != nil {
			err = filesys.NewError("copy", file.SourcePath, filesys.KindCancelled, err)
		}
		if partial {
			if rmErr := dst.Delete(context.Background(), file.DestPath, false); rmErr != nil && !errors.Is(rmErr, filesys.ErrNotFound) {
				log.Warn("failed to remove partial file", "err", rmErr)
			}
		}
		log.Error("transfer failed", "err", err)
		e.send(session.TransferFailedAction{ID: eff.TransferID, Index: eff.Index, Err: err})
	}

	info, err := src.Stat(ctx, file.SourcePath)
	if err != nil {
		fail(err, false)
		return
	}
	reader, err := src.OpenReader(ctx, file.SourcePath)
	if err != nil {
		fail(err, false)
		return
	}
	defer reader.Close()

	writer, err := dst.CreateWriter(ctx, file.DestPath)
	if err != nil {
		fail(err, false)
		return
	}

	// Committing writers never touch DestPath before Close succeeds
	_, committing := writer.(filesys.Aborter)

	start := e.now()
	e.send(session.TransferFileStartedAction{ID: eff.TransferID, Index: eff.Index, TotalBytes: info.Size, At: start})
	log.Info("transfer started", "size", info.Size)

	var last time.Time
	n, err := filesys.Copy(ctx, writer, reader, func(done int64) error {
		now := e.now()
		if now.Sub(last) < e.interval {
			return nil
		}
		last = now
		e.trySend(session.TransferProgressAction{
			ID:               eff.TransferID,
			Index:            eff.Index,
			BytesTransferred: done,
			TotalBytes:       info.Size,
			At:               now,
		})
		return nil
	})
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		aborted, discardErr := filesys.Discard(writer)
		if discardErr != nil {
			log.Warn("failed to discard writer", "err", discardErr)
		}
		fail(filesys.Wrap("copy", file.SourcePath, err), !aborted)
		return
	}
	// Writers of remote sides commit on Close
	if err := writer.Close(); err != nil {
		fail(filesys.Wrap("close", file.DestPath, err), !committing)
		return
	}

	end := e.now()
	e.trySend(session.TransferProgressAction{
		ID:               eff.TransferID,
		Index:            eff.Index,
		BytesTransferred: n,
		TotalBytes:       info.Size,
		At:               end,
	})
	metrics.RecordFileTransferred(eff.Direction.String(), n, end.Sub(start))
	log.Info("transfer finished", "bytes", n)
	e.send(session.TransferFileDoneAction{ID: eff.TransferID, Index: eff.Index, At: end})
}

func (e *Executor) mkdir(eff session.MkdirEffect) {
	fsys := e.fs(eff.Side)
	path := filesys.Join(fsys.Separator(), eff.Dir, eff.Name)
	e.finishMutation(eff.Side, session.OpMkdir, path, fsys.Mkdir(e.ctx, eff.Dir, eff.Name))
}

func (e *Executor) rename(eff session.RenameEffect) {
	e.finishMutation(eff.Side, session.OpRename, eff.Path, e.fs(eff.Side).Rename(e.ctx, eff.Path, eff.NewName))
}

func (e *Executor) delete(eff session.DeleteEffect) {
	e.finishMutation(eff.Side, session.OpDelete, eff.Path, e.fs(eff.Side).Delete(e.ctx, eff.Path, eff.Recursive))
}

func (e *Executor) finishMutation(side session.Side, op session.MutationOp, path string, err error) {
	metrics.RecordMutation(side.String(), string(op), err == nil)
	if err != nil {
		e.logger.Error("mutation failed", "side", side, "op", op, "path", path, "err", err)
		e.send(session.MutationFailedAction{Side: side, Op: op, Path: path, Err: err})
		return
	}
	e.logger.Info("mutation done", "side", side, "op", op, "path", path)
	e.send(session.MutationDoneAction{Side: side, Op: op, Path: path})
}
