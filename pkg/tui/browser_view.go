package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/quocson95/ferry/pkg/filesys"
	"github.com/quocson95/ferry/pkg/session"
)

const (
	titleLines  = 2 // title + spacing
	paneChrome  = 5 // borders + pane title + path + column header
	statusLines = 5 // transfer, progress bar, totals, error, help
	minListRows = 5
	minWidth    = 60
)

// layout is the screen geometry shared by View and mouse hit testing
type layout struct {
	leftWidth  int // outer width of the local pane
	rightWidth int
	listRows   int
	menuTop    int // first line of the context menu popup
}

func (m *BrowserModel) layout() layout {
	width := max(m.width, minWidth)
	rows := m.height - titleLines - paneChrome - statusLines
	if rows < minListRows {
		rows = minListRows
	}
	left := width / 2
	return layout{
		leftWidth:  left,
		rightWidth: width - left,
		listRows:   rows,
		menuTop:    titleLines + paneChrome + rows,
	}
}

// firstRowY is the screen line of the first entry of a pane
func (l layout) firstRowY() int {
	return titleLines + 4
}

// sideAt returns the pane under column x
func (l layout) sideAt(x int) session.Side {
	if x < l.leftWidth {
		return session.SideLocal
	}
	return session.SideRemote
}

// rowAt returns the visible index under x, y
func (l layout) rowAt(s session.SessionState, x, y int) (session.Side, int, bool) {
	side := l.sideAt(x)
	line := y - l.firstRowY()
	if line < 0 || line >= l.listRows {
		return side, 0, false
	}
	p := s.Pane(side)
	n := len(p.Visible())
	index := scrollOffset(p.Cursor, n, l.listRows) + line
	if index >= n {
		return side, 0, false
	}
	return side, index, true
}

// menuItemAt returns the context menu item under x, y
func (l layout) menuItemAt(x, y int) (int, bool) {
	item := y - l.menuTop - 1 // top border
	if item < 0 || item >= len(contextMenuItems) || x > menuWidth()+2 {
		return 0, false
	}
	return item, true
}

func menuWidth() int {
	w := 0
	for _, item := range contextMenuItems {
		w = max(w, len(item))
	}
	return w + 2
}

// scrollOffset keeps the cursor in the middle of a window of rows
func scrollOffset(cursor, n, rows int) int {
	if n <= rows {
		return 0
	}
	off := cursor - rows/2
	if off < 0 {
		return 0
	}
	if off > n-rows {
		return n - rows
	}
	return off
}

func (m *BrowserModel) View() string {
	s := m.state
	l := m.layout()
	var b strings.Builder

	b.WriteString(titleStyle.Render("ferry"))
	b.WriteString(pathStyle.Render(hostLine(s.Host)))
	b.WriteString("\n\n")

	local := m.renderPane(s, session.SideLocal, l.leftWidth, l.listRows)
	remote := m.renderPane(s, session.SideRemote, l.rightWidth, l.listRows)
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, local, remote))
	b.WriteString("\n")

	switch {
	case m.prompt != promptNone:
		title := "Create New Folder"
		if m.prompt == promptRename {
			title = "Rename " + filesys.Base(s.Pane(m.promptSide).Separator, m.promptPath)
		}
		b.WriteString(popupStyle.Render(title + "\n\n" + m.input.View()))
		b.WriteString("\n")
	case s.PendingDelete != nil:
		b.WriteString(confirmStyle.Render(deletePrompt(*s.PendingDelete)))
		b.WriteString("\n")
	case s.Pane(s.Focus).ContextMenu != nil:
		b.WriteString(renderMenu(*s.Pane(s.Focus).ContextMenu))
		b.WriteString("\n")
	default:
		b.WriteString(m.renderTransfer(s))
	}

	if msg := s.ErrorMessage(); msg != "" {
		b.WriteString(errorStyle.Render("Error: " + msg))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render(helpLine(s)))
	return b.String()
}

func hostLine(h session.RemoteHostDescriptor) string {
	if h.User != "" {
		return fmt.Sprintf("%s (%s %s@%s)", h.Name, h.Protocol, h.User, h.Address)
	}
	return fmt.Sprintf("%s (%s %s)", h.Name, h.Protocol, h.Address)
}

func helpLine(s session.SessionState) string {
	switch {
	case s.PendingDelete != nil:
		return "y: delete • n/esc: keep"
	case s.Busy():
		return "C: cancel transfer • tab: switch • r: refresh • q: quit"
	case s.Drag != nil:
		return "tab: choose pane • p: drop • esc: cancel drag"
	}
	return "tab: switch • enter: open • space: select • t: transfer • n: mkdir • e: rename • x: delete • m: menu • .: hidden • 1-4: sort • q: quit"
}

func deletePrompt(pd session.PendingDelete) string {
	what := "file"
	if pd.Recursive {
		what = "directory and everything in it"
	}
	return fmt.Sprintf("Are you sure you want to PERMANENTLY delete the %s\n\n'%s'\n\n(y/n)", what, pd.Name)
}

func renderMenu(menu session.ContextMenu) string {
	w := menuWidth()
	lines := make([]string, len(contextMenuItems))
	for i, item := range contextMenuItems {
		line := " " + item + strings.Repeat(" ", w-len(item)-1)
		if i == menu.HoveredIndex {
			line = menuHoverStyle.Render(line)
		}
		lines[i] = line
	}
	return menuStyle.Render(strings.Join(lines, "\n"))
}

func (m *BrowserModel) renderPane(s session.SessionState, side session.Side, width, rows int) string {
	p := s.Pane(side)
	inner := width - 4 // borders and padding

	var b strings.Builder
	title := "Local"
	if side == session.SideRemote {
		title = "Remote: " + s.Host.Name
	}
	if p.Loading {
		title += " …"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(pathStyle.Render(truncateLeft(p.Path, inner)))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(columnHeader(p, inner)))

	view := p.Visible()
	off := scrollOffset(p.Cursor, len(view), rows)
	for i := off; i < off+rows; i++ {
		b.WriteString("\n")
		if i >= len(view) {
			continue
		}
		b.WriteString(renderEntry(p, view[i], i == p.Cursor && s.Focus == side, inner))
	}

	style := inactivePaneStyle
	switch {
	case s.DragOverPane != nil && *s.DragOverPane == side:
		style = dropTargetStyle
	case s.Focus == side:
		style = activePaneStyle
	}
	return style.Width(width - 2).Render(b.String())
}

func columnHeader(p session.PaneState, width int) string {
	arrow := "↑"
	if p.SortDirection == session.SortDesc {
		arrow = "↓"
	}
	label := func(c session.SortColumn, name string) string {
		if p.SortColumn == c {
			return name + arrow
		}
		return name
	}
	name := label(session.SortByName, "Name")
	if p.SortColumn == session.SortByKind {
		name = "Name (kind" + arrow + ")"
	}
	nameWidth := max(8, width-25)
	return fmt.Sprintf("  %-*s %9s %12s",
		nameWidth, name,
		label(session.SortBySize, "Size"),
		label(session.SortByModified, "Modified"))
}

func renderEntry(p session.PaneState, e filesys.FileEntry, atCursor bool, width int) string {
	mark := "  "
	if p.Selected.Has(e.Path) {
		mark = "✓ "
	}
	if atCursor {
		mark = "→ "
	}

	name := e.Name
	size := ""
	modified := ""
	if e.IsDir() {
		name += p.Separator
	} else {
		size = humanize.Bytes(uint64(max(e.Size, 0)))
	}
	if !e.IsParent() && !e.ModifiedAt.IsZero() {
		modified = humanize.Time(e.ModifiedAt)
	}

	nameWidth := max(8, width-25)
	line := fmt.Sprintf("%-*s %9s %12s", nameWidth, truncateRight(name, nameWidth), size, truncateRight(modified, 12))

	style := itemStyle
	switch {
	case atCursor:
		style = cursorItemStyle
	case p.Selected.Has(e.Path):
		style = selectedItemStyle
	case e.IsDir():
		style = dirStyle
	}
	return mark + style.Render(line)
}

func (m *BrowserModel) renderTransfer(s session.SessionState) string {
	var b strings.Builder
	if t := s.Transfer; t != nil {
		name := t.CurrentFileName
		if t.Phase == session.PhaseQueued {
			name = "preparing"
		}
		b.WriteString(successStyle.Render(fmt.Sprintf("⇅ %s %d/%d %s",
			t.Direction, min(t.FilesCompleted+1, t.FileCount), t.FileCount, name)))
		b.WriteString("\n")
		b.WriteString(m.bar.ViewAs(float64(t.ProgressPercent()) / 100))
		b.WriteString("\n")
		b.WriteString(transferLine(*t))
		b.WriteString("\n")
		return b.String()
	}

	if r := s.LastTransfer; r != nil {
		b.WriteString(resultLine(*r))
		b.WriteString("\n")
	}
	return b.String()
}

// transferLine is the byte count, speed and ETA of an active transfer
func transferLine(t session.TransferState) string {
	parts := []string{
		fmt.Sprintf("%s / %s", humanize.Bytes(uint64(t.BytesTransferred)), humanize.Bytes(uint64(t.TotalBytes))),
	}
	if t.SpeedBytesPerSecond > 0 {
		parts = append(parts, humanize.Bytes(uint64(t.SpeedBytesPerSecond))+"/s")
	}
	if eta, ok := t.ETA(); ok {
		parts = append(parts, "ETA "+formatETA(eta))
	}
	if t.FileCount > 1 {
		total := fmt.Sprintf("total %d%%", t.AggregatePercent())
		if eta, ok := t.AggregateETA(); ok {
			total += " ETA " + formatETA(eta)
		}
		parts = append(parts, total)
	}
	return strings.Join(parts, " • ")
}

func formatETA(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	return d.Round(time.Second).String()
}

// resultLine summarises the last finished transfer
func resultLine(r session.TransferResult) string {
	files := fmt.Sprintf("%d/%d files, %s", r.FilesCompleted, r.FileCount, humanize.Bytes(uint64(r.BytesTransferred)))
	switch r.Phase {
	case session.PhaseCompleted:
		return successStyle.Render(fmt.Sprintf("✓ %s completed: %s", r.Direction, files))
	case session.PhaseCancelled:
		return helpStyle.Render(fmt.Sprintf("%s cancelled: %s", r.Direction, files))
	default:
		return errorStyle.Render(fmt.Sprintf("✗ %s failed: %s", r.Direction, files))
	}
}

func truncateLeft(s string, width int) string {
	r := []rune(s)
	if width <= 3 || len(r) <= width {
		return s
	}
	return "..." + string(r[len(r)-(width-3):])
}

func truncateRight(s string, width int) string {
	r := []rune(s)
	if width <= 3 || len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}
