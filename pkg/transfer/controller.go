package transfer

import (
	"log/slog"
	"sync"

	"github.com/quocson95/ferry/pkg/filesys"
	"github.com/quocson95/ferry/pkg/metrics"
	"github.com/quocson95/ferry/pkg/session"
)

const actionBuffer = 64

// Controller owns the live SessionState. Every change goes through
// session.Reduce; the effects it returns are handed to an Executor, whose
// results come back as actions.
type Controller struct {
	mu     sync.Mutex
	state  session.SessionState
	closed bool

	exec    *Executor
	actions chan session.Action
	changes chan struct{}
	logger  *slog.Logger

	done chan struct{}
	wg   sync.WaitGroup
}

// NewController starts a controller over state. Call Close when finished.
func NewController(state session.SessionState, local, remote filesys.Filesystem, opts ...Option) *Controller {
	actions := make(chan session.Action, actionBuffer)
	exec := NewExecutor(local, remote, actions, opts...)
	c := &Controller{
		state:   state,
		exec:    exec,
		actions: actions,
		changes: make(chan struct{}, 1),
		logger:  exec.logger,
		done:    make(chan struct{}),
	}

	c.wg.Add(1)
	go c.loop()
	return c
}

func (c *Controller) loop() {
	defer c.wg.Done()
	for {
		select {
		case a := <-c.actions:
			c.Dispatch(a)
		case <-c.done:
			return
		}
	}
}

// Dispatch applies an action and starts the effects it produces
func (c *Controller) Dispatch(a session.Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	prev := c.state
	next, effects := session.Reduce(prev, a)
	c.state = next
	c.recordTransition(prev, next)

	// Effects start under the lock so they reach the executor in the
	// order the reducer emitted them
	for _, eff := range effects {
		c.exec.Run(eff)
	}
	c.notify()
}

func (c *Controller) recordTransition(prev, next session.SessionState) {
	switch {
	case prev.Transfer == nil && next.Transfer != nil:
		metrics.RecordTransferStarted()
		c.logger.Info("transfer queued",
			"id", next.Transfer.ID,
			"direction", next.Transfer.Direction,
			"files", next.Transfer.FileCount)
	case prev.Transfer != nil && next.Transfer == nil && next.LastTransfer != nil:
		res := next.LastTransfer
		metrics.RecordTransferFinished(res.Direction.String(), res.Phase.String())
		c.logger.Info("transfer finished",
			"id", res.ID,
			"phase", res.Phase,
			"files", res.FilesCompleted,
			"bytes", res.BytesTransferred)
	}
}

// notify wakes a listener without blocking; several changes collapse into one
func (c *Controller) notify() {
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// Changes receives a value after one or more state changes
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

// State returns a snapshot of the session. Snapshots are never mutated.
func (c *Controller) State() session.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close aborts running work and stops the controller
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.exec.Close()
	close(c.done)
	c.wg.Wait()
}
