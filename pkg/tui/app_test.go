package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/quocson95/ferry/pkg/filesys"
	"github.com/quocson95/ferry/pkg/remote"
	"github.com/quocson95/ferry/pkg/session"
	"github.com/quocson95/ferry/pkg/storage"
)

type appFixture struct {
	app       *AppModel
	host      *storage.Host
	creds     []remote.Credentials
	remoteDir string
	fail      error
}

func newAppFixture(t *testing.T, master string) *appFixture {
	t.Helper()
	dataDir := t.TempDir()
	settings, err := storage.NewSettingsStore(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewStore(dataDir)
	if err != nil {
		t.Fatal(err)
	}

	host := &storage.Host{
		Name:     "prod",
		Protocol: storage.ProtocolSFTP,
		Address:  "10.0.0.1",
		Port:     22,
		Username: "deploy",
		Secret:   "s3cr3t",
	}
	if master != "" {
		if err := settings.SetMasterPassword(master); err != nil {
			t.Fatal(err)
		}
		if err := host.Seal(nil, master); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Add(host); err != nil {
		t.Fatal(err)
	}

	f := &appFixture{host: host, remoteDir: t.TempDir()}
	f.app = NewAppModel(AppConfig{
		Store:    store,
		Settings: settings,
		Local:    filesys.NewLocal(),
		LocalDir: t.TempDir(),
		Connect: func(ctx context.Context, h *storage.Host, creds remote.Credentials) (*remote.Remote, error) {
			f.creds = append(f.creds, creds)
			if f.fail != nil {
				return nil, f.fail
			}
			return &remote.Remote{
				FS:         filesys.NewLocal(),
				Descriptor: session.RemoteHostDescriptor{Name: h.Name, Protocol: h.Protocol, Address: "10.0.0.1:22"},
				StartDir:   f.remoteDir,
			}, nil
		},
	})
	t.Cleanup(f.app.Close)
	return f
}

// run feeds msg and every message its commands produce, skipping blinks
func (f *appFixture) run(msg tea.Msg) {
	_, cmd := f.app.Update(msg)
	for cmd != nil {
		next := cmd()
		switch next.(type) {
		case PasswordSubmittedMsg, HostChosenMsg, connectedMsg:
			_, cmd = f.app.Update(next)
		default:
			return
		}
	}
}

func TestAppUnlockAndConnect(t *testing.T) {
	f := newAppFixture(t, "master")
	if f.app.State() != StateUnlock {
		t.Fatalf("Expected unlock screen, got %v", f.app.State())
	}

	f.run(PasswordSubmittedMsg{Password: "guess"})
	if f.app.State() != StateUnlock {
		t.Fatal("Wrong password must not unlock")
	}
	if !strings.Contains(f.app.View(), "wrong master password") {
		t.Error("Expected the error on the prompt")
	}

	f.run(PasswordSubmittedMsg{Password: "master"})
	if f.app.State() != StateHosts {
		t.Fatalf("Expected host list, got %v", f.app.State())
	}
	if !strings.Contains(f.app.View(), "deploy@10.0.0.1:22") {
		t.Error("Expected the host in the list")
	}

	f.run(tea.KeyMsg{Type: tea.KeyEnter})
	if f.app.State() != StateBrowser {
		t.Fatalf("Expected browser, got %v", f.app.State())
	}
	if len(f.creds) != 1 || f.creds[0].Secret != "s3cr3t" {
		t.Errorf("Expected the unsealed secret, got %+v", f.creds)
	}
	eventually(t, "remote listing", func() bool {
		return f.app.browser.ctrl.State().Remote.Path == f.remoteDir
	})
}

func TestAppWithoutMasterPassword(t *testing.T) {
	f := newAppFixture(t, "")
	if f.app.State() != StateHosts {
		t.Fatalf("Expected host list, got %v", f.app.State())
	}
	f.run(HostChosenMsg{Host: f.host})
	if f.app.State() != StateBrowser {
		t.Fatalf("Expected browser, got %v", f.app.State())
	}
}

func TestAppConnectFailure(t *testing.T) {
	f := newAppFixture(t, "")
	f.fail = errors.New("connection refused")

	f.run(HostChosenMsg{Host: f.host})
	if f.app.State() != StateHosts {
		t.Fatalf("Expected host list after failure, got %v", f.app.State())
	}
	if !strings.Contains(f.app.View(), "connection refused") {
		t.Error("Expected the connection error in the view")
	}
}

func TestAppCancelUnlockQuits(t *testing.T) {
	f := newAppFixture(t, "master")
	_, cmd := f.app.Update(PasswordSubmittedMsg{Cancelled: true})
	if cmd == nil {
		t.Fatal("Expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
}
