// Package tui is the terminal front end: a bubbletea view over the session
// controller plus the screens that lead to it.
package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/quocson95/ferry/pkg/filesys"
	"github.com/quocson95/ferry/pkg/remote"
	"github.com/quocson95/ferry/pkg/storage"
)

// Time allowed to open a host
const connectTimeout = 30 * time.Second

// AppState represents the current screen of the application
type AppState int

const (
	StateUnlock AppState = iota
	StateHosts
	StateConnecting
	StateBrowser
)

// Connector opens a saved host
type Connector func(ctx context.Context, host *storage.Host, creds remote.Credentials) (*remote.Remote, error)

// AppConfig wires the application to its stores and transports
type AppConfig struct {
	Store    *storage.Store
	Settings *storage.SettingsStore
	Local    filesys.Filesystem
	LocalDir string
	Connect  Connector
	Logger   *slog.Logger
}

// connectedMsg reports the outcome of a Connector
type connectedMsg struct {
	host   *storage.Host
	remote *remote.Remote
	err    error
}

// AppModel is the root model: unlock, pick a host, browse it
type AppModel struct {
	cfg            AppConfig
	state          AppState
	passwordPrompt *PasswordPromptModel
	hostsModel     *HostsModel
	browser        *BrowserModel
	remote         *remote.Remote
	masterPassword string // cached for the session
	connecting     string
	width          int
	height         int
}

// NewAppModel creates a new application model
func NewAppModel(cfg AppConfig) *AppModel {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	m := &AppModel{
		cfg:        cfg,
		state:      StateHosts,
		hostsModel: NewHostsModel(cfg.Store),
	}
	if cfg.Settings.HasMasterPassword() {
		m.state = StateUnlock
		m.passwordPrompt = NewPasswordPromptModel(
			"Master Password Required",
			"Saved secrets are encrypted. Enter the master password to unlock them:",
		)
	}
	return m
}

// State returns the current screen
func (m *AppModel) State() AppState {
	return m.state
}

// Close releases the browser and the connection
func (m *AppModel) Close() {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.remote != nil {
		if err := m.remote.Close(); err != nil {
			m.cfg.Logger.Warn("failed to close connection", "err", err)
		}
		m.remote = nil
	}
}

func (m *AppModel) Init() tea.Cmd {
	if m.state == StateUnlock {
		return m.passwordPrompt.Init()
	}
	return m.hostsModel.Init()
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = size.Width
		m.height = size.Height
	}
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.state {
	case StateUnlock:
		return m.updateUnlock(msg)
	case StateHosts:
		return m.updateHosts(msg)
	case StateConnecting:
		return m.updateConnecting(msg)
	case StateBrowser:
		_, cmd := m.browser.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *AppModel) updateUnlock(msg tea.Msg) (tea.Model, tea.Cmd) {
	if submitted, ok := msg.(PasswordSubmittedMsg); ok {
		if submitted.Cancelled {
			return m, tea.Quit
		}
		if !m.cfg.Settings.VerifyMasterPassword(submitted.Password) {
			m.cfg.Logger.Warn("wrong master password", "attempts", m.passwordPrompt.Attempts())
			m.passwordPrompt.SetError(storage.ErrWrongPassword)
			return m, nil
		}
		m.masterPassword = submitted.Password
		m.passwordPrompt = nil
		m.state = StateHosts
		return m, m.hostsModel.Init()
	}
	_, cmd := m.passwordPrompt.Update(msg)
	return m, cmd
}

func (m *AppModel) updateHosts(msg tea.Msg) (tea.Model, tea.Cmd) {
	if chosen, ok := msg.(HostChosenMsg); ok {
		secret, keyContent, err := chosen.Host.Unseal(m.masterPassword)
		if err != nil {
			m.hostsModel.SetError(fmt.Errorf("failed to unlock %s: %w", chosen.Host.Name, err))
			return m, nil
		}
		m.state = StateConnecting
		m.connecting = chosen.Host.Name
		return m, m.connect(chosen.Host, remote.Credentials{Secret: secret, KeyContent: keyContent})
	}
	_, cmd := m.hostsModel.Update(msg)
	return m, cmd
}

func (m *AppModel) connect(host *storage.Host, creds remote.Credentials) tea.Cmd {
	connector := m.cfg.Connect
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		r, err := connector(ctx, host, creds)
		return connectedMsg{host: host, remote: r, err: err}
	}
}

func (m *AppModel) updateConnecting(msg tea.Msg) (tea.Model, tea.Cmd) {
	done, ok := msg.(connectedMsg)
	if !ok {
		return m, nil
	}
	if done.err != nil {
		m.cfg.Logger.Error("failed to connect", "host", done.host.Name, "err", done.err)
		if errors.Is(done.err, context.DeadlineExceeded) {
			done.err = fmt.Errorf("timed out after %s", connectTimeout)
		}
		m.hostsModel.SetError(fmt.Errorf("failed to connect to %s: %w", done.host.Name, done.err))
		m.state = StateHosts
		return m, nil
	}

	m.remote = done.remote
	m.browser = NewBrowserModel(context.Background(), BrowserConfig{
		Local:     m.cfg.Local,
		Remote:    done.remote.FS,
		Host:      done.remote.Descriptor,
		LocalDir:  m.cfg.LocalDir,
		RemoteDir: done.remote.StartDir,
		Settings:  m.cfg.Settings,
		Logger:    m.cfg.Logger,
	})
	m.state = StateBrowser
	m.browser.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
	return m, m.browser.Init()
}

func (m *AppModel) View() string {
	switch m.state {
	case StateUnlock:
		return m.passwordPrompt.View()
	case StateConnecting:
		return boxStyle.Render(titleStyle.Render("Connecting to "+m.connecting+"...") + "\n\n" +
			helpStyle.Render("ctrl+c: quit"))
	case StateBrowser:
		return m.browser.View()
	}
	return m.hostsModel.View()
}
