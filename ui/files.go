package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/narrate/internal/tasks"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/sahilm/fuzzy"
)

type filterState int

const (
	unfiltered    filterState = iota // no filter set
	filtering                        // user is actively setting a filter
	filterApplied                    // a filter is applied and user is not editing filter
)

const (
	sizeColumnWidth   = 10
	statusColumnWidth = 14
	minNameWidth      = 12
)

// row is one file as shown in the list.
type row struct {
	file tasks.File
	task tasks.FileTask
}

type fileModel struct {
	common *commonModel
	keys   fileKeyMap
	help   help.Model

	spinner  spinner.Model
	spinning bool

	filterInput textinput.Model
	filterState filterState

	rows   []row
	cursor int

	playingKey string
	autoPlayed map[string]bool
}

func newFileModel(common *commonModel) fileModel {
	sp := spinner.New()
	sp.Spinner = spinnerFor(common.cfg.Spinner)
	sp.Style = activeStyle

	ti := textinput.New()
	ti.Prompt = "Find: "
	ti.PromptStyle = cursorStyle
	ti.Cursor.Style = cursorStyle
	ti.CharLimit = 256

	return fileModel{
		common:      common,
		keys:        newFileKeyMap(),
		help:        help.New(),
		spinner:     sp,
		filterInput: ti,
		autoPlayed:  make(map[string]bool),
	}
}

func spinnerFor(name string) spinner.Spinner {
	switch name {
	case "line":
		return spinner.Line
	case "minidot":
		return spinner.MiniDot
	case "points":
		return spinner.Points
	case "pulse":
		return spinner.Pulse
	default:
		return spinner.Dot
	}
}

func (m *fileModel) setSize(width, _ int) {
	m.help.Width = width
	m.filterInput.Width = max(0, width-len(m.filterInput.Prompt)-4)
}

// refresh rebuilds the visible rows from the tracker, keeping the cursor on
// the same file when possible.
func (m *fileModel) refresh() {
	var current string
	if r, ok := m.selected(); ok {
		current = r.file.Key()
	}

	tracker := m.common.deps.Tracker
	files := tracker.Selection().Files()
	if value := strings.TrimSpace(m.filterInput.Value()); value != "" && m.filterState != unfiltered {
		files = filterFiles(files, value)
	}

	m.rows = make([]row, 0, len(files))
	for _, f := range files {
		ft, ok := tracker.Get(f.Key())
		if !ok {
			ft = tasks.FileTask{Key: f.Key(), Status: tasks.StatusIdle}
		}
		m.rows = append(m.rows, row{file: f, task: ft})
	}

	m.cursor = 0
	if current != "" {
		for i, r := range m.rows {
			if r.file.Key() == current {
				m.cursor = i
				return
			}
		}
	}
	if def, ok := tracker.Selection().Default(); ok && current == "" {
		for i, r := range m.rows {
			if r.file.Key() == def.Key() {
				m.cursor = i
			}
		}
	}
}

// filterFiles returns the files whose names fuzzy-match term, best first.
func filterFiles(files []tasks.File, term string) []tasks.File {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	matches := fuzzy.Find(term, names)
	out := make([]tasks.File, 0, len(matches))
	for _, match := range matches {
		out = append(out, files[match.Index])
	}
	return out
}

func (m fileModel) selected() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

func (m fileModel) hasActive() bool {
	for _, r := range m.rows {
		if r.task.Status.IsActive() {
			return true
		}
	}
	return false
}

// startSpinner returns the first spinner tick when a file became active.
func (m *fileModel) startSpinner() tea.Cmd {
	if m.spinning || !m.hasActive() {
		return nil
	}
	m.spinning = true
	return m.spinner.Tick
}

func (m fileModel) taskUpdated(key string) (fileModel, tea.Cmd) {
	m.refresh()
	cmds := []tea.Cmd{m.startSpinner()}

	ft, ok := m.common.deps.Tracker.Get(key)
	if !ok {
		if m.playingKey == key {
			m.playingKey = ""
		}
		return m, tea.Batch(cmds...)
	}
	if ft.Status == tasks.StatusSuccess && m.common.cfg.AutoPlay && !m.autoPlayed[key] && m.common.deps.Library != nil {
		m.autoPlayed[key] = true
		cmds = append(cmds, playAudio(m.common.ctx, m.common.deps.Library, key, ft.AudioURL))
	}
	if ft.Status != tasks.StatusSuccess {
		delete(m.autoPlayed, key)
	}
	return m, tea.Batch(cmds...)
}

func (m fileModel) update(msg tea.Msg) (fileModel, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.hasActive() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.filterState == filtering {
			return m.handleFiltering(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m fileModel) handleFiltering(msg tea.KeyMsg) (fileModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.resetFilter()
		return m, nil
	case "enter", "tab", "shift+tab", "ctrl+k", "up", "ctrl+j", "down":
		m.filterInput.Blur()
		m.filterState = filterApplied
		if strings.TrimSpace(m.filterInput.Value()) == "" {
			m.resetFilter()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	m.refresh()
	return m, cmd
}

func (m *fileModel) resetFilter() {
	m.filterInput.Reset()
	m.filterInput.Blur()
	m.filterState = unfiltered
	m.refresh()
}

func (m fileModel) handleKey(msg tea.KeyMsg) (fileModel, tea.Cmd) {
	tracker := m.common.deps.Tracker
	lib := m.common.deps.Library
	ctx := m.common.ctx

	switch {
	case msg.String() == "esc" && m.filterState == filterApplied:
		m.resetFilter()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Filter):
		m.filterState = filtering
		return m, m.filterInput.Focus()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.Submit):
		r, ok := m.selected()
		if !ok || r.task.Status.IsActive() {
			return m, nil
		}
		return m, submitFile(ctx, tracker, r.file.Key())

	case key.Matches(msg, m.keys.SubmitAll):
		var cmds []tea.Cmd
		for _, r := range m.rows {
			if r.task.Status == tasks.StatusIdle {
				cmds = append(cmds, submitFile(ctx, tracker, r.file.Key()))
			}
		}
		return m, tea.Batch(cmds...)

	case key.Matches(msg, m.keys.Cancel):
		r, ok := m.selected()
		if !ok {
			return m, nil
		}
		if m.playingKey == r.file.Key() && lib != nil {
			_ = lib.Stop()
			m.playingKey = ""
		}
		tracker.Cancel(r.file.Key())
		m.refresh()
		if m.cursor >= len(m.rows) {
			m.cursor = max(0, len(m.rows)-1)
		}

	case key.Matches(msg, m.keys.Play):
		r, ok := m.selected()
		if !ok || lib == nil {
			return m, nil
		}
		if m.playingKey != "" {
			playing := m.playingKey
			_ = lib.Stop()
			m.playingKey = ""
			if playing == r.file.Key() {
				return m, nil
			}
		}
		if r.task.Status != tasks.StatusSuccess {
			return m, nil
		}
		return m, playAudio(ctx, lib, r.file.Key(), r.task.AudioURL)

	case key.Matches(msg, m.keys.Download):
		r, ok := m.selected()
		if !ok || r.task.Status != tasks.StatusSuccess || lib == nil {
			return m, nil
		}
		return m, exportAudio(ctx, lib, m.common.deps.Exporter, r.task, r.file.Name)

	case key.Matches(msg, m.keys.Copy):
		r, ok := m.selected()
		if !ok || r.task.AudioURL == "" {
			return m, nil
		}
		return m, copyToClipboard(r.task.AudioURL)
	}
	return m, nil
}

func (m fileModel) view() string {
	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("narrate") + "  " + subtleStyle.Render(m.summary()) + "\n\n")

	if m.filterState != unfiltered {
		b.WriteString("  " + m.filterInput.View() + "\n\n")
	}

	if len(m.rows) == 0 {
		msg := "No PDFs found. Pass files on the command line or press tab to speak text."
		if m.filterState != unfiltered {
			msg = "Nothing matched your filter."
		}
		b.WriteString("  " + dimStyle.Render(msg) + "\n")
		return b.String()
	}

	width := m.common.width
	if width <= 0 {
		width = 80
	}
	nameWidth := max(minNameWidth, width-sizeColumnWidth-statusColumnWidth-8)

	for i, r := range m.rows {
		b.WriteString(m.renderRow(r, i == m.cursor, nameWidth, width))
	}
	return b.String()
}

func (m fileModel) summary() string {
	total := m.common.deps.Tracker.Selection().Len()
	var active, done, failed int
	for _, ft := range m.common.deps.Tracker.Snapshot() {
		switch {
		case ft.Status.IsActive():
			active++
		case ft.Status == tasks.StatusSuccess:
			done++
		case ft.Status == tasks.StatusError:
			failed++
		}
	}
	parts := []string{fmt.Sprintf("%d %s", total, plural(total, "file", "files"))}
	if active > 0 {
		parts = append(parts, fmt.Sprintf("%d processing", active))
	}
	if done > 0 {
		parts = append(parts, fmt.Sprintf("%d ready", done))
	}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	return strings.Join(parts, " • ")
}

func (m fileModel) renderRow(r row, selected bool, nameWidth, width int) string {
	cursor := "  "
	nameStyle := lipgloss.NewStyle()
	if selected {
		cursor = cursorStyle.Render("> ")
		nameStyle = selectedStyle
	}

	name := truncate.StringWithTail(r.file.Name, uint(nameWidth), ellipsis) //nolint:gosec
	name = nameStyle.Render(name) + strings.Repeat(" ", max(0, nameWidth-runewidth.StringWidth(name)))
	size := sizeStyle.Render(fmt.Sprintf("%*s", sizeColumnWidth, humanize.Bytes(uint64(max(0, r.file.Size))))) //nolint:gosec

	line := fmt.Sprintf("%s%s %s  %s\n", cursor, name, size, m.statusLabel(r))

	detailWidth := uint(max(10, width-6)) //nolint:gosec
	switch {
	case r.task.Status == tasks.StatusError && r.task.ErrorMessage != "":
		line += "    " + errorStyle.Render(truncate.StringWithTail(r.task.ErrorMessage, detailWidth, ellipsis)) + "\n"
	case r.task.Status == tasks.StatusSuccess && r.task.AudioURL != "":
		line += "    " + urlStyle.Render(truncate.StringWithTail(r.task.AudioURL, detailWidth, ellipsis)) + "\n"
	}
	return line
}

func (m fileModel) statusLabel(r row) string {
	switch r.task.Status {
	case tasks.StatusUploading, tasks.StatusProcessing:
		return activeStyle.Render(m.spinner.View() + " " + r.task.Status.String())
	case tasks.StatusSuccess:
		if m.playingKey == r.file.Key() {
			return successStyle.Render("▶ playing")
		}
		return successStyle.Render("✓ ready")
	case tasks.StatusError:
		return errorStyle.Render("✗ error")
	default:
		return dimStyle.Render("· idle")
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
