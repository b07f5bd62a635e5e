package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quocson95/ferry/pkg/filesys"
	"github.com/quocson95/ferry/pkg/session"
)

// memFS is an in-memory filesystem with "/" separators. With commitOnClose
// its writers behave like object stores: nothing lands before Close.
type memFS struct {
	mu            sync.Mutex
	home          string
	files         map[string][]byte
	dirs          map[string]bool
	readers       map[string]func(data []byte) io.Reader
	commitOnClose bool
}

func newMemFS(home string, dirs ...string) *memFS {
	m := &memFS{
		home:    home,
		files:   map[string][]byte{},
		dirs:    map[string]bool{"/": true, home: true},
		readers: map[string]func([]byte) io.Reader{},
	}
	for _, d := range dirs {
		m.dirs[d] = true
	}
	return m
}

func (m *memFS) put(path string, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = bytes.Repeat([]byte{'x'}, size)
}

func (m *memFS) has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

func (m *memFS) size(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files[path])
}

func (m *memFS) Separator() string { return "/" }

func (m *memFS) Home(ctx context.Context) (string, error) { return m.home, nil }

func (m *memFS) List(ctx context.Context, dir string) ([]filesys.FileEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirs[dir] {
		return nil, filesys.NewError("list", dir, filesys.KindNotFound, fs.ErrNotExist)
	}
	var entries []filesys.FileEntry
	for p, data := range m.files {
		if filesys.Parent("/", p) == dir {
			entries = append(entries, filesys.FileEntry{Name: filesys.Base("/", p), Kind: filesys.KindFile, Size: int64(len(data)), Path: p})
		}
	}
	for p := range m.dirs {
		if p != dir && filesys.Parent("/", p) == dir {
			entries = append(entries, filesys.FileEntry{Name: filesys.Base("/", p), Kind: filesys.KindDirectory, Path: p})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (m *memFS) Stat(ctx context.Context, path string) (filesys.Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if data, ok := m.files[path]; ok {
		return filesys.Info{Size: int64(len(data)), Kind: filesys.KindFile}, nil
	}
	if m.dirs[path] {
		return filesys.Info{Kind: filesys.KindDirectory}, nil
	}
	return filesys.Info{}, filesys.NewError("stat", path, filesys.KindNotFound, nil)
}

func (m *memFS) OpenReader(ctx context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	if !ok {
		return nil, filesys.NewError("open", path, filesys.KindNotFound, nil)
	}
	data = append([]byte(nil), data...)
	if mk, ok := m.readers[path]; ok {
		return io.NopCloser(mk(data)), nil
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type memWriter struct {
	m    *memFS
	path string
}

func (w *memWriter) Write(p []byte) (int, error) {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	w.m.files[w.path] = append(w.m.files[w.path], p...)
	return len(p), nil
}

func (w *memWriter) Close() error { return nil }

type committingWriter struct {
	m    *memFS
	path string
	buf  bytes.Buffer
	done bool
}

func (w *committingWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *committingWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	w.m.files[w.path] = w.buf.Bytes()
	return nil
}

func (w *committingWriter) Abort() error {
	w.done = true
	return nil
}

func (m *memFS) CreateWriter(ctx context.Context, path string) (io.WriteCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirs[filesys.Parent("/", path)] {
		return nil, filesys.NewError("create", path, filesys.KindNotFound, nil)
	}
	if m.commitOnClose {
		return &committingWriter{m: m, path: path}, nil
	}
	m.files[path] = []byte{}
	return &memWriter{m: m, path: path}, nil
}

func (m *memFS) Rename(ctx context.Context, path, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	target := filesys.Join("/", filesys.Parent("/", path), newName)
	if _, ok := m.files[target]; ok || m.dirs[target] {
		return filesys.NewError("rename", target, filesys.KindConflict, nil)
	}
	data, ok := m.files[path]
	if !ok {
		return filesys.NewError("rename", path, filesys.KindNotFound, nil)
	}
	delete(m.files, path)
	m.files[target] = data
	return nil
}

func (m *memFS) Delete(ctx context.Context, path string, recursive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; ok {
		delete(m.files, path)
		return nil
	}
	if !m.dirs[path] {
		return filesys.NewError("delete", path, filesys.KindNotFound, nil)
	}
	for p := range m.files {
		if strings.HasPrefix(p, path+"/") {
			if !recursive {
				return filesys.NewError("delete", path, filesys.KindTransport, errors.New("directory not empty"))
			}
			delete(m.files, p)
		}
	}
	delete(m.dirs, path)
	return nil
}

func (m *memFS) Mkdir(ctx context.Context, dir, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	path := filesys.Join("/", dir, name)
	if _, ok := m.files[path]; ok || m.dirs[path] {
		return filesys.NewError("mkdir", path, filesys.KindConflict, nil)
	}
	m.dirs[path] = true
	return nil
}

// failingReader returns half of data, then err
type failingReader struct {
	data []byte
	err  error
	sent bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.sent {
		return 0, r.err
	}
	r.sent = true
	return copy(p, r.data[:len(r.data)/2]), nil
}

// gatedReader returns one chunk, then blocks until gate is closed
type gatedReader struct {
	data  []byte
	gate  chan struct{}
	calls int
}

func (r *gatedReader) Read(p []byte) (int, error) {
	r.calls++
	if r.calls > 1 {
		<-r.gate
	}
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.data[:min(len(r.data), 10)])
	r.data = r.data[n:]
	return n, nil
}

// waitFor blocks until cond holds for the controller state
func waitFor(t *testing.T, c *Controller, what string, cond func(session.SessionState) bool) session.SessionState {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		s := c.State()
		if cond(s) {
			return s
		}
		select {
		case <-c.Changes():
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatalf("Timed out waiting for %s", what)
		}
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func idle(s session.SessionState) bool {
	return !s.Local.Loading && !s.Remote.Loading
}

func newFixture(t *testing.T) (*Controller, *memFS, *memFS) {
	t.Helper()
	local := newMemFS("/home/u")
	remote := newMemFS("/srv", "/srv/logs")
	remote.put("/srv/report.csv", 1000)
	remote.put("/srv/a.bin", 100)
	remote.put("/srv/b.bin", 200)
	remote.put("/srv/c.bin", 300)

	c := NewController(session.NewSession(session.Options{}), local, remote, WithProgressInterval(time.Millisecond))
	t.Cleanup(c.Close)

	c.Dispatch(session.NavigateAction{Side: session.SideLocal, Path: "/home/u"})
	c.Dispatch(session.NavigateAction{Side: session.SideRemote, Path: "/srv"})
	waitFor(t, c, "initial listings", func(s session.SessionState) bool {
		return idle(s) && s.Local.Path == "/home/u" && s.Remote.Path == "/srv"
	})
	return c, local, remote
}

func TestControllerListings(t *testing.T) {
	c, _, _ := newFixture(t)
	s := c.State()

	if _, ok := s.Remote.Entry("/srv/report.csv"); !ok {
		t.Errorf("Expected report.csv in remote listing")
	}
	if len(s.Remote.Entries) == 0 || !s.Remote.Entries[0].IsParent() {
		t.Errorf("Expected .. first in remote listing")
	}

	c.Dispatch(session.NavigateAction{Side: session.SideRemote, Path: "/missing"})
	s = waitFor(t, c, "listing failure", func(s session.SessionState) bool { return idle(s) })
	if !errors.Is(s.Remote.Err, filesys.ErrNotFound) {
		t.Errorf("Expected not found, got %v", s.Remote.Err)
	}
	if s.Remote.Path != "/srv" {
		t.Errorf("Failed navigation must keep the previous path, got %q", s.Remote.Path)
	}
}

func TestControllerSingleDownload(t *testing.T) {
	c, local, _ := newFixture(t)

	c.Dispatch(session.StartTransferAction{Direction: session.Download, Paths: []string{"/srv/report.csv"}})
	s := waitFor(t, c, "transfer result", func(s session.SessionState) bool {
		return s.Transfer == nil && s.LastTransfer != nil
	})

	if s.LastTransfer.Phase != session.PhaseCompleted {
		t.Fatalf("Expected completed, got %v (%v)", s.LastTransfer.Phase, s.LastTransfer.Err)
	}
	if s.LastTransfer.BytesTransferred != 1000 || s.LastTransfer.FilesCompleted != 1 {
		t.Errorf("Unexpected result %+v", s.LastTransfer)
	}
	if got := local.size("/home/u/report.csv"); got != 1000 {
		t.Errorf("Expected 1000 bytes on disk, got %d", got)
	}
	waitFor(t, c, "destination refresh", func(s session.SessionState) bool {
		_, ok := s.Local.Entry("/home/u/report.csv")
		return ok && idle(s)
	})
}

func TestControllerBatchFailureAbortsRemainder(t *testing.T) {
	c, local, remote := newFixture(t)
	remote.readers["/srv/b.bin"] = func(data []byte) io.Reader {
		return &failingReader{data: data, err: io.ErrUnexpectedEOF}
	}

	c.Dispatch(session.StartTransferAction{
		Direction: session.Download,
		Paths:     []string{"/srv/a.bin", "/srv/b.bin", "/srv/c.bin"},
	})
	s := waitFor(t, c, "transfer result", func(s session.SessionState) bool {
		return s.Transfer == nil && s.LastTransfer != nil
	})

	res := s.LastTransfer
	if res.Phase != session.PhaseFailed || res.FilesCompleted != 1 || res.FileCount != 3 {
		t.Fatalf("Expected failure after one file, got %+v", res)
	}
	if !errors.Is(res.Err, filesys.ErrConnectionLost) {
		t.Errorf("Expected connection lost, got %v", res.Err)
	}
	var terr *session.TransferError
	if !errors.As(s.Err, &terr) || terr.File != "b.bin" {
		t.Errorf("Expected TransferError naming b.bin, got %v", s.Err)
	}
	if !local.has("/home/u/a.bin") {
		t.Errorf("Completed file must stay on the destination")
	}
	if local.has("/home/u/b.bin") {
		t.Errorf("Partial file must be removed")
	}
	if local.has("/home/u/c.bin") {
		t.Errorf("Remainder of the batch must not start")
	}
}

func TestControllerCancel(t *testing.T) {
	c, local, remote := newFixture(t)
	gate := make(chan struct{})
	remote.readers["/srv/report.csv"] = func(data []byte) io.Reader {
		return &gatedReader{data: data, gate: gate}
	}

	c.Dispatch(session.StartTransferAction{Direction: session.Download, Paths: []string{"/srv/report.csv"}})
	waitFor(t, c, "transfer start", func(s session.SessionState) bool {
		return s.TransferPhase() == session.PhaseInProgress
	})

	c.Dispatch(session.CancelTransferAction{})
	s := c.State()
	if s.Transfer != nil || s.LastTransfer == nil || s.LastTransfer.Phase != session.PhaseCancelled {
		t.Fatalf("Expected cancelled and idle right away, got %+v", s.LastTransfer)
	}
	close(gate)

	eventually(t, "partial file removal", func() bool { return !local.has("/home/u/report.csv") })
	s = waitFor(t, c, "refresh after cleanup", func(s session.SessionState) bool {
		_, ok := s.Local.Entry("/home/u/report.csv")
		return idle(s) && !ok
	})
	if s.LastTransfer.Phase != session.PhaseCancelled {
		t.Errorf("Late failure changed the result to %v", s.LastTransfer.Phase)
	}
}

func TestControllerFailedUploadKeepsExistingFile(t *testing.T) {
	c, local, remote := newFixture(t)
	remote.commitOnClose = true
	local.put("/home/u/a.bin", 500)
	local.put("/home/u/b.bin", 64)
	local.readers["/home/u/a.bin"] = func(data []byte) io.Reader {
		return &failingReader{data: data, err: io.ErrUnexpectedEOF}
	}
	c.Dispatch(session.RefreshAction{Side: session.SideLocal})
	waitFor(t, c, "local listing", func(s session.SessionState) bool {
		_, ok := s.Local.Entry("/home/u/a.bin")
		return ok && idle(s)
	})

	c.Dispatch(session.StartTransferAction{Direction: session.Upload, Paths: []string{"/home/u/a.bin"}})
	s := waitFor(t, c, "transfer result", func(s session.SessionState) bool {
		return s.Transfer == nil && s.LastTransfer != nil
	})
	if s.LastTransfer.Phase != session.PhaseFailed {
		t.Fatalf("Expected failed, got %v", s.LastTransfer.Phase)
	}
	if got := remote.size("/srv/a.bin"); got != 100 {
		t.Errorf("Existing object must stay untouched, got %d bytes", got)
	}

	// A good upload over an existing object replaces it on Close
	remote.put("/srv/b.bin", 200)
	c.Dispatch(session.StartTransferAction{Direction: session.Upload, Paths: []string{"/home/u/b.bin"}})
	s = waitFor(t, c, "second transfer", func(s session.SessionState) bool {
		return s.Transfer == nil && s.LastTransfer != nil && s.LastTransfer.Direction == session.Upload &&
			s.LastTransfer.Phase == session.PhaseCompleted
	})
	if got := remote.size("/srv/b.bin"); got != 64 {
		t.Errorf("Expected the uploaded 64 bytes, got %d", got)
	}
}

func TestControllerMutations(t *testing.T) {
	c, local, _ := newFixture(t)

	c.Dispatch(session.CreateFolderAction{Side: session.SideLocal, Name: "inbox"})
	waitFor(t, c, "new folder listed", func(s session.SessionState) bool {
		_, ok := s.Local.Entry("/home/u/inbox")
		return ok && idle(s)
	})

	local.put("/home/u/draft.txt", 5)
	c.Dispatch(session.RefreshAction{Side: session.SideLocal})
	waitFor(t, c, "refresh", func(s session.SessionState) bool {
		_, ok := s.Local.Entry("/home/u/draft.txt")
		return ok && idle(s)
	})

	c.Dispatch(session.RenameAction{Side: session.SideLocal, Path: "/home/u/draft.txt", NewName: "final.txt"})
	waitFor(t, c, "rename", func(s session.SessionState) bool {
		_, ok := s.Local.Entry("/home/u/final.txt")
		return ok && idle(s)
	})

	c.Dispatch(session.RequestDeleteAction{Side: session.SideLocal, Path: "/home/u/final.txt"})
	c.Dispatch(session.ConfirmDeleteAction{})
	waitFor(t, c, "delete", func(s session.SessionState) bool {
		_, ok := s.Local.Entry("/home/u/final.txt")
		return !ok && idle(s)
	})
	if local.has("/home/u/final.txt") {
		t.Errorf("File still on disk after delete")
	}
}

func TestControllerCloseIsIdempotent(t *testing.T) {
	c := NewController(session.NewSession(session.Options{}), newMemFS("/"), newMemFS("/"))
	c.Close()
	c.Close()
	c.Dispatch(session.NavigateAction{Side: session.SideLocal, Path: "/"})
	if c.State().Local.Loading {
		t.Errorf("Dispatch after Close must be ignored")
	}
}
