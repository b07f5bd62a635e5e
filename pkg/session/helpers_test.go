package session

import (
	"testing"
	"time"

	"github.com/quocson95/ferry/pkg/filesys"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func file(dir, name string, size int64) filesys.FileEntry {
	return filesys.FileEntry{
		Name:       name,
		Kind:       filesys.KindFile,
		Size:       size,
		ModifiedAt: epoch,
		Path:       filesys.Join("/", dir, name),
	}
}

func folder(dir, name string) filesys.FileEntry {
	return filesys.FileEntry{
		Name:       name,
		Kind:       filesys.KindDirectory,
		ModifiedAt: epoch,
		Path:       filesys.Join("/", dir, name),
	}
}

// reduce applies actions in order and returns the final state with the
// effects of the last action
func reduce(s SessionState, actions ...Action) (SessionState, []Effect) {
	var effects []Effect
	for _, a := range actions {
		s, effects = Reduce(s, a)
	}
	return s, effects
}

// load navigates side to dir and answers the listing
func load(t *testing.T, s SessionState, side Side, dir string, entries ...filesys.FileEntry) SessionState {
	t.Helper()
	s, effects := Reduce(s, NavigateAction{Side: side, Path: dir})
	return answerListing(t, s, effects, side, entries...)
}

// answerListing resolves the ListDirEffect for side found in effects
func answerListing(t *testing.T, s SessionState, effects []Effect, side Side, entries ...filesys.FileEntry) SessionState {
	t.Helper()
	for _, e := range effects {
		if ld, ok := e.(ListDirEffect); ok && ld.Side == side {
			s, _ = Reduce(s, ListingLoadedAction{Side: side, Path: ld.Path, Seq: ld.Seq, Entries: entries})
			return s
		}
	}
	t.Fatalf("no ListDirEffect for %s in %#v", side, effects)
	return s
}

func findEffect[T Effect](effects []Effect) (T, bool) {
	for _, e := range effects {
		if v, ok := e.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func newTestSession() SessionState {
	return NewSession(Options{
		Host: RemoteHostDescriptor{Name: "prod", Protocol: "sftp", Address: "10.0.0.1:22", User: "u", Separator: "/"},
	})
}
