package tui

import (
	"context"
	"log/slog"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/quocson95/ferry/pkg/filesys"
	"github.com/quocson95/ferry/pkg/session"
	"github.com/quocson95/ferry/pkg/storage"
	"github.com/quocson95/ferry/pkg/transfer"
)

// BrowserConfig describes the two sides of a browser
type BrowserConfig struct {
	Local  filesys.Filesystem
	Remote filesys.Filesystem
	Host   session.RemoteHostDescriptor

	// Start directories, the home directory of each side when empty
	LocalDir  string
	RemoteDir string

	Settings *storage.SettingsStore // optional, persists hidden and sort toggles
	Logger   *slog.Logger
}

type promptKind int

const (
	promptNone promptKind = iota
	promptMkdir
	promptRename
)

// Entries of the context menu, in display order
var contextMenuItems = []string{"Transfer", "New folder", "Rename", "Delete", "Refresh"}

const (
	menuTransfer = iota
	menuNewFolder
	menuRename
	menuDelete
	menuRefresh
)

// stateChangedMsg is sent when the controller has a new state
type stateChangedMsg struct{}

// pressState is the left button press a drag may start from
type pressState struct {
	side session.Side
	path string
}

// BrowserModel is the dual-pane browser. All state lives in the controller;
// the model only keeps UI details such as prompts and terminal size.
type BrowserModel struct {
	ctrl     *transfer.Controller
	state    session.SessionState
	settings *storage.SettingsStore
	logger   *slog.Logger

	prompt     promptKind
	promptSide session.Side
	promptPath string
	input      textinput.Model

	bar   progress.Model
	press *pressState

	width  int
	height int
}

// NewBrowserModel starts a controller over both sides and opens the start
// directories. Close releases the controller.
func NewBrowserModel(ctx context.Context, cfg BrowserConfig) *BrowserModel {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := session.Options{
		Host:           cfg.Host,
		LocalSeparator: cfg.Local.Separator(),
		SortColumn:     session.SortByName,
		SortDirection:  session.SortAsc,
	}
	ctrlOpts := []transfer.Option{transfer.WithLogger(logger)}
	if cfg.Settings != nil {
		settings := cfg.Settings.Get()
		opts.ShowHidden = settings.ShowHidden
		opts.SortColumn = session.ParseSortColumn(settings.SortColumn)
		opts.SortDirection = session.ParseSortDirection(settings.SortDirection)
		ctrlOpts = append(ctrlOpts, transfer.WithProgressInterval(settings.ProgressInterval()))
	}

	ctrl := transfer.NewController(session.NewSession(opts), cfg.Local, cfg.Remote, ctrlOpts...)
	ctrl.Dispatch(session.NavigateAction{Side: session.SideLocal, Path: startDir(ctx, cfg.Local, cfg.LocalDir, logger)})
	ctrl.Dispatch(session.NavigateAction{Side: session.SideRemote, Path: startDir(ctx, cfg.Remote, cfg.RemoteDir, logger)})

	ti := textinput.New()
	ti.CharLimit = 255
	ti.Width = 40

	return &BrowserModel{
		ctrl:     ctrl,
		state:    ctrl.State(),
		settings: cfg.Settings,
		logger:   logger,
		input:    ti,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func startDir(ctx context.Context, fs filesys.Filesystem, dir string, logger *slog.Logger) string {
	if dir != "" {
		return dir
	}
	home, err := fs.Home(ctx)
	if err != nil {
		logger.Warn("failed to resolve home directory", "err", err)
		return fs.Separator()
	}
	return home
}

// State returns the last state the model rendered
func (m *BrowserModel) State() session.SessionState {
	return m.state
}

// Close aborts running work and stops the controller
func (m *BrowserModel) Close() {
	m.ctrl.Close()
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return stateChangedMsg{}
	}
}

func (m *BrowserModel) Init() tea.Cmd {
	return waitForChange(m.ctrl.Changes())
}

func (m *BrowserModel) dispatch(actions ...session.Action) {
	for _, a := range actions {
		m.ctrl.Dispatch(a)
	}
	m.state = m.ctrl.State()
}

func (m *BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(20, msg.Width/2-10)
		return m, nil

	case stateChangedMsg:
		m.state = m.ctrl.State()
		return m, waitForChange(m.ctrl.Changes())

	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *BrowserModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	if m.prompt != promptNone {
		return m.updatePrompt(msg)
	}

	if menu := m.state.Pane(m.state.Focus).ContextMenu; menu != nil {
		return m.updateMenu(key, menu)
	}

	if m.state.PendingDelete == nil {
		switch key {
		case "q":
			return m, tea.Quit
		case "n", "f7":
			return m, m.openPrompt(promptMkdir, m.state.Focus, "", "")
		case "e", "f2":
			if e, ok := m.state.Pane(m.state.Focus).CursorEntry(); ok && !e.IsParent() {
				return m, m.openPrompt(promptRename, m.state.Focus, e.Path, e.Name)
			}
			return m, nil
		case "m":
			p := m.state.Pane(m.state.Focus)
			m.dispatch(session.OpenContextMenuAction{Side: p.Side, X: 0, Y: p.Cursor})
			return m, nil
		}
	}

	actions := keyActions(m.state, key)
	if len(actions) == 0 {
		return m, nil
	}
	m.dispatch(actions...)
	m.persistView(actions)
	return m, nil
}

// persistView stores hidden and sort toggles as the default of new sessions
func (m *BrowserModel) persistView(actions []session.Action) {
	if m.settings == nil {
		return
	}
	for _, a := range actions {
		var err error
		switch a := a.(type) {
		case session.ToggleHiddenAction:
			err = m.settings.SetShowHidden(m.state.Pane(a.Side).ShowHidden)
		case session.SortAction:
			p := m.state.Pane(a.Side)
			err = m.settings.SetSort(p.SortColumn.String(), p.SortDirection.String())
		}
		if err != nil {
			m.logger.Warn("failed to save settings", "err", err)
		}
	}
}

func (m *BrowserModel) openPrompt(kind promptKind, side session.Side, path, value string) tea.Cmd {
	m.prompt = kind
	m.promptSide = side
	m.promptPath = path
	m.input.Reset()
	m.input.SetValue(value)
	if kind == promptMkdir {
		m.input.Placeholder = "New folder name"
	} else {
		m.input.Placeholder = "New name"
	}
	m.input.Focus()
	return textinput.Blink
}

func (m *BrowserModel) closePrompt() {
	m.prompt = promptNone
	m.promptPath = ""
	m.input.Blur()
	m.input.Reset()
}

func (m *BrowserModel) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		name := m.input.Value()
		kind, side, path := m.prompt, m.promptSide, m.promptPath
		m.closePrompt()
		if kind == promptMkdir {
			m.dispatch(session.CreateFolderAction{Side: side, Name: name})
		} else {
			m.dispatch(session.RenameAction{Side: side, Path: path, NewName: name})
		}
		return m, nil
	case "esc":
		m.closePrompt()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *BrowserModel) updateMenu(key string, menu *session.ContextMenu) (tea.Model, tea.Cmd) {
	side := m.state.Focus
	switch key {
	case "up", "k":
		m.dispatch(session.HoverContextMenuAction{Side: side, Index: max(0, menu.HoveredIndex-1)})
	case "down", "j":
		m.dispatch(session.HoverContextMenuAction{Side: side, Index: min(len(contextMenuItems)-1, menu.HoveredIndex+1)})
	case "enter":
		if menu.HoveredIndex >= 0 {
			return m, m.runMenuItem(side, menu.HoveredIndex)
		}
	case "esc", "m", "q":
		m.dispatch(session.CloseContextMenuAction{Side: side})
	}
	return m, nil
}

// runMenuItem closes the menu and applies item to the entry under the cursor
func (m *BrowserModel) runMenuItem(side session.Side, item int) tea.Cmd {
	m.dispatch(session.CloseContextMenuAction{Side: side})
	entry, hasEntry := m.state.Pane(side).CursorEntry()
	hasEntry = hasEntry && !entry.IsParent()

	switch item {
	case menuTransfer:
		m.dispatch(session.TransferSelectionAction{From: side})
	case menuNewFolder:
		return m.openPrompt(promptMkdir, side, "", "")
	case menuRename:
		if hasEntry {
			return m.openPrompt(promptRename, side, entry.Path, entry.Name)
		}
	case menuDelete:
		if hasEntry {
			m.dispatch(session.RequestDeleteAction{Side: side, Path: entry.Path})
		}
	case menuRefresh:
		m.dispatch(session.RefreshAction{Side: side})
	}
	return nil
}

func (m *BrowserModel) handleMouse(msg tea.MouseMsg) {
	l := m.layout()

	if menu := m.state.Pane(m.state.Focus).ContextMenu; menu != nil {
		item, inside := l.menuItemAt(msg.X, msg.Y)
		switch {
		case msg.Action == tea.MouseActionMotion && inside:
			if item != menu.HoveredIndex {
				m.dispatch(session.HoverContextMenuAction{Side: m.state.Focus, Index: item})
			}
			return
		case msg.Action == tea.MouseActionPress && inside:
			m.runMenuItem(m.state.Focus, item)
			return
		case msg.Action == tea.MouseActionPress:
			m.dispatch(session.CloseContextMenuAction{Side: m.state.Focus})
		}
	}

	side, row, onRow := l.rowAt(m.state, msg.X, msg.Y)

	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.dispatch(session.MoveCursorAction{Side: side, Delta: -1})

	case msg.Button == tea.MouseButtonWheelDown:
		m.dispatch(session.MoveCursorAction{Side: side, Delta: 1})

	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.press = nil
		if !onRow {
			m.dispatch(session.FocusAction{Side: side})
			return
		}
		view := m.state.Pane(side).Visible()
		if view[row].IsSelectable() {
			m.press = &pressState{side: side, path: view[row].Path}
		}
		mod := session.ModNone
		switch {
		case msg.Ctrl || msg.Alt:
			mod = session.ModToggle
		case msg.Shift:
			mod = session.ModRange
		}
		m.dispatch(session.ClickAction{Side: side, Index: row, Modifier: mod})

	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonRight:
		if onRow {
			m.dispatch(session.MoveCursorAction{Side: side, Delta: row - m.state.Pane(side).Cursor})
		}
		m.dispatch(session.OpenContextMenuAction{Side: side, X: msg.X, Y: msg.Y})

	case msg.Action == tea.MouseActionMotion && m.press != nil:
		if m.state.Drag == nil {
			if side == m.press.side {
				return
			}
			m.dispatch(session.DragStartAction{Side: m.press.side, Path: m.press.path})
		}
		over := m.state.DragOverPane
		if over != nil && *over != side {
			m.dispatch(session.DragLeaveAction{Side: *over})
		}
		if over == nil || *over != side {
			m.dispatch(session.DragOverAction{Side: side})
		}

	case msg.Action == tea.MouseActionRelease:
		m.press = nil
		if m.state.Drag != nil {
			m.dispatch(session.DropAction{Side: side})
		}
	}
}
