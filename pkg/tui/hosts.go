package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/quocson95/ferry/pkg/storage"
)

// HostChosenMsg is sent when a saved host is picked
type HostChosenMsg struct {
	Host *storage.Host
}

// HostsModel lists the saved hosts
type HostsModel struct {
	store    *storage.Store
	hosts    []*storage.Host
	cursor   int
	deleting *storage.Host
	err      error
}

// NewHostsModel creates the host list
func NewHostsModel(store *storage.Store) *HostsModel {
	return &HostsModel{
		store: store,
		hosts: store.List(),
	}
}

func (m *HostsModel) Init() tea.Cmd {
	return nil
}

// SetError shows err under the list
func (m *HostsModel) SetError(err error) {
	m.err = err
}

func (m *HostsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.deleting != nil {
		switch key.String() {
		case "y", "Y":
			if err := m.store.Delete(m.deleting.ID); err != nil {
				m.err = fmt.Errorf("failed to delete host: %w", err)
			}
			m.hosts = m.store.List()
			if m.cursor >= len(m.hosts) && m.cursor > 0 {
				m.cursor--
			}
			m.deleting = nil
		case "n", "N", "esc":
			m.deleting = nil
		}
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.hosts)-1 {
			m.cursor++
		}
	case "enter", " ":
		if m.cursor < len(m.hosts) {
			host := m.hosts[m.cursor]
			m.err = nil
			return m, func() tea.Msg {
				return HostChosenMsg{Host: host}
			}
		}
	case "d", "delete":
		if m.cursor < len(m.hosts) {
			m.deleting = m.hosts[m.cursor]
		}
	case "q", "esc":
		return m, tea.Quit
	}
	return m, nil
}

func describeHost(h *storage.Host) string {
	switch h.Protocol {
	case storage.ProtocolS3:
		endpoint := h.Endpoint
		if endpoint == "" {
			endpoint = "aws"
		}
		return fmt.Sprintf("%s (s3 %s/%s)", h.Name, endpoint, h.Bucket)
	default:
		addr := h.Address
		if h.Port != 0 {
			addr += ":" + strconv.Itoa(h.Port)
		}
		return fmt.Sprintf("%s (%s@%s)", h.Name, h.Username, addr)
	}
}

func (m *HostsModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Saved Hosts"))
	b.WriteString("\n\n")

	if len(m.hosts) == 0 {
		b.WriteString(helpStyle.Render("No saved hosts. Add one with: ferry -save -name NAME ..."))
	}
	for i, host := range m.hosts {
		cursor := "  "
		style := itemStyle
		if m.cursor == i {
			cursor = "→ "
			style = cursorItemStyle
		}
		b.WriteString(cursor + style.Render(describeHost(host)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.deleting != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Delete %s? (y/n)", m.deleting.Name)))
	} else {
		b.WriteString(helpStyle.Render("↑/k up • ↓/j down • enter: open • d: delete • q: quit"))
	}

	if m.err != nil {
		b.WriteString("\n\n")
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	return boxStyle.Render(b.String())
}
