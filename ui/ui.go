// Package ui provides the terminal frontend: a list of PDFs whose
// conversions are tracked live, and a view that speaks typed text.
package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/export"
	"github.com/dgnsrekt/narrate/internal/library"
	"github.com/dgnsrekt/narrate/internal/speech"
	"github.com/dgnsrekt/narrate/internal/tasks"
	"github.com/muesli/gitcha"
	te "github.com/muesli/termenv"
)

const (
	statusMessageTimeout = time.Second * 3
	playbackCheckEvery   = 250 * time.Millisecond
	ellipsis             = "…"
)

var pdfExtensions = []string{"*.pdf", "*.PDF"}

// Deps are the services the UI drives.
type Deps struct {
	Tracker  *tasks.Tracker
	Library  *library.Library
	Speaker  *speech.Speaker
	Exporter export.Exporter
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, deps Deps) *tea.Program {
	log.Debug("starting narrate",
		"files", len(cfg.Files),
		"auto_play", cfg.AutoPlay,
		"high_contrast", cfg.HighContrast,
	)
	if cfg.HighContrast {
		applyHighContrast()
	}
	return tea.NewProgram(newModel(cfg, deps), tea.WithAltScreen())
}

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

type (
	initLocalFileSearchMsg struct {
		cwd string
		ch  chan gitcha.SearchResult
	}
	foundLocalFileMsg       gitcha.SearchResult
	localFileSearchFinished struct{}
)

type (
	taskUpdatedMsg string
	submittedMsg   struct {
		key string
		err error
	}
	playbackMsg struct {
		key string
		err error
	}
	playbackTickMsg struct{}
	exportedMsg     struct {
		key      string
		location string
		err      error
	}
	copiedMsg struct {
		url string
		err error
	}
	spokenMsg               struct{ err error }
	statusMessageTimeoutMsg struct{}
)

// state is the top-level application state.
type state int

const (
	stateShowFiles state = iota
	stateShowSpeak
)

func (s state) String() string {
	return map[state]string{
		stateShowFiles: "showing files",
		stateShowSpeak: "showing speak view",
	}[s]
}

// Common stuff we'll need to access in all models.
type commonModel struct {
	cfg    Config
	deps   Deps
	cwd    string
	width  int
	height int

	ctx    context.Context
	cancel context.CancelFunc
}

type model struct {
	common   *commonModel
	state    state
	fatalErr error

	files fileModel
	speak speakModel

	statusMessage      string
	statusMessageIsErr bool
	statusMessageTimer *time.Timer

	// Channel that receives paths to local PDFs
	// (via the github.com/muesli/gitcha package)
	localFileFinder chan gitcha.SearchResult
}

func newModel(cfg Config, deps Deps) model {
	ctx, cancel := context.WithCancel(context.Background())
	common := &commonModel{
		cfg:    cfg,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
	}

	if len(cfg.Files) > 0 {
		deps.Tracker.Add(cfg.Files...)
	}

	m := model{
		common: common,
		state:  stateShowFiles,
		files:  newFileModel(common),
		speak:  newSpeakModel(common),
	}
	m.files.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForTaskUpdate(m.common.ctx, m.common.deps.Tracker.Updates())}
	if !m.common.cfg.NoDiscovery {
		cmds = append(cmds, findLocalFiles(*m.common))
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			m.shutdown()
			return m, tea.Quit
		}
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.shutdown()
			return m, tea.Quit
		case "ctrl+z":
			return m, tea.Suspend
		case "tab":
			if m.state == stateShowFiles && m.files.filterState == filtering {
				break
			}
			return m, m.toggleView()
		case "q":
			if m.state == stateShowFiles && m.files.filterState != filtering {
				m.shutdown()
				return m, tea.Quit
			}
		}

	case tea.WindowSizeMsg:
		m.common.width = msg.Width
		m.common.height = msg.Height
		m.files.setSize(msg.Width, msg.Height)
		m.speak.setSize(msg.Width, msg.Height)

	case errMsg:
		m.fatalErr = msg.err
		return m, nil

	case initLocalFileSearchMsg:
		m.localFileFinder = msg.ch
		m.common.cwd = msg.cwd
		return m, findNextLocalFile(m)

	case foundLocalFileMsg:
		res := gitcha.SearchResult(msg)
		if res.Info != nil {
			m.common.deps.Tracker.Add(tasks.File{
				Name: filepath.Base(res.Path),
				Path: res.Path,
				Size: res.Info.Size(),
			})
		}
		m.files.refresh()
		return m, findNextLocalFile(m)

	case localFileSearchFinished:
		log.Debug("local file search finished", "files", m.common.deps.Tracker.Selection().Len())
		return m, nil

	case taskUpdatedMsg:
		cmds = append(cmds, waitForTaskUpdate(m.common.ctx, m.common.deps.Tracker.Updates()))
		newFiles, cmd := m.files.taskUpdated(string(msg))
		m.files = newFiles
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case submittedMsg:
		if msg.err != nil {
			log.Debug("submission returned", "file", msg.key, "err", msg.err)
		}
		return m, nil

	case playbackMsg:
		if msg.err != nil {
			m.files.playingKey = ""
			return m, m.showStatusMessage(msg.err.Error(), true)
		}
		m.files.playingKey = msg.key
		return m, playbackTick()

	case playbackTickMsg:
		lib := m.common.deps.Library
		if m.files.playingKey != "" && lib != nil && !lib.IsPlaying() {
			m.files.playingKey = ""
		}
		if m.speak.speaking && !m.common.deps.Speaker.IsSpeaking() {
			m.speak.speaking = false
		}
		if m.files.playingKey != "" || m.speak.speaking {
			return m, playbackTick()
		}
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			return m, m.showStatusMessage("Export failed: "+msg.err.Error(), true)
		}
		return m, m.showStatusMessage("Saved to "+msg.location, false)

	case copiedMsg:
		if msg.err != nil {
			return m, m.showStatusMessage("Copy failed: "+msg.err.Error(), true)
		}
		return m, m.showStatusMessage("Copied audio URL", false)

	case spokenMsg:
		if msg.err != nil {
			m.speak.speaking = false
			return m, m.showStatusMessage(msg.err.Error(), true)
		}
		m.speak.speaking = true
		return m, playbackTick()

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		m.statusMessageIsErr = false
		return m, nil
	}

	switch m.state {
	case stateShowFiles:
		newFiles, cmd := m.files.update(msg)
		m.files = newFiles
		cmds = append(cmds, cmd)
	case stateShowSpeak:
		newSpeak, cmd := m.speak.update(msg)
		m.speak = newSpeak
		cmds = append(cmds, cmd)
	}

	// Spinner ticks keep coming no matter which view is showing.
	if tick, ok := msg.(spinner.TickMsg); ok && m.state != stateShowFiles {
		newFiles, cmd := m.files.update(tick)
		m.files = newFiles
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *model) toggleView() tea.Cmd {
	if m.state == stateShowFiles {
		m.state = stateShowSpeak
		return m.speak.focus()
	}
	m.speak.blur()
	m.state = stateShowFiles
	return nil
}

// shutdown stops every poll loop and any audio before the program exits.
func (m *model) shutdown() {
	m.common.cancel()
	m.common.deps.Tracker.Close()
	if m.common.deps.Library != nil {
		_ = m.common.deps.Library.Stop()
	}
	if m.common.deps.Speaker != nil {
		_ = m.common.deps.Speaker.Stop()
	}
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
}

func (m *model) showStatusMessage(msg string, isErr bool) tea.Cmd {
	m.statusMessage = msg
	m.statusMessageIsErr = isErr
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}

	var b strings.Builder
	switch m.state { //nolint:exhaustive
	case stateShowSpeak:
		b.WriteString(m.speak.view())
	default:
		b.WriteString(m.files.view())
	}

	if m.statusMessage != "" {
		style := statusMessageStyle
		if m.statusMessageIsErr {
			style = errorStyle
		}
		b.WriteString("\n  " + style.Render(m.statusMessage))
	}

	b.WriteString("\n\n  ")
	if m.state == stateShowSpeak {
		b.WriteString(m.speak.help.View(m.speak.keys))
	} else {
		b.WriteString(m.files.help.View(m.files.keys))
	}
	return b.String()
}

func errorView(err error, fatal bool) string {
	exitMsg := "press any key to "
	if fatal {
		exitMsg += "exit"
	} else {
		exitMsg += "return"
	}
	s := fmt.Sprintf("%s\n\n%v\n\n%s",
		errorTitleStyle.Render("ERROR"),
		err,
		subtleStyle.Render(exitMsg),
	)
	return "\n" + indent(s, 3)
}

// COMMANDS

func waitForTaskUpdate(ctx context.Context, updates <-chan string) tea.Cmd {
	return func() tea.Msg {
		select {
		case key := <-updates:
			return taskUpdatedMsg(key)
		case <-ctx.Done():
			return nil
		}
	}
}

func submitFile(ctx context.Context, tracker *tasks.Tracker, key string) tea.Cmd {
	return func() tea.Msg {
		return submittedMsg{key: key, err: tracker.SubmitKey(ctx, key)}
	}
}

func playAudio(ctx context.Context, lib *library.Library, key, audioURL string) tea.Cmd {
	return func() tea.Msg {
		return playbackMsg{key: key, err: lib.Play(ctx, audioURL)}
	}
}

func exportAudio(ctx context.Context, lib *library.Library, e export.Exporter, ft tasks.FileTask, name string) tea.Cmd {
	return func() tea.Msg {
		loc, err := lib.Export(ctx, e, name, ft.AudioURL)
		return exportedMsg{key: ft.Key, location: loc, err: err}
	}
}

// copyToClipboard uses OSC 52 for remote terminals and the native clipboard
// when there is one.
func copyToClipboard(audioURL string) tea.Cmd {
	return func() tea.Msg {
		te.Copy(audioURL)
		if clipboard.Unsupported {
			return copiedMsg{url: audioURL}
		}
		return copiedMsg{url: audioURL, err: clipboard.WriteAll(audioURL)}
	}
}

func speakText(ctx context.Context, speaker *speech.Speaker, text string) tea.Cmd {
	return func() tea.Msg {
		return spokenMsg{err: speaker.Speak(ctx, text)}
	}
}

func playbackTick() tea.Cmd {
	return tea.Tick(playbackCheckEvery, func(time.Time) tea.Msg {
		return playbackTickMsg{}
	})
}

func findLocalFiles(m commonModel) tea.Cmd {
	return func() tea.Msg {
		var (
			cwd = m.cfg.Path
			err error
		)

		if cwd == "" {
			cwd, err = os.Getwd()
		} else {
			var info os.FileInfo
			info, err = os.Stat(cwd)
			if err == nil && info.IsDir() {
				cwd, err = filepath.Abs(cwd)
			}
		}
		if err != nil {
			log.Error("error finding local files", "error", err)
			return errMsg{err}
		}

		log.Debug("local directory is", "cwd", cwd)

		// Switch between FindFiles and FindAllFiles to bypass .gitignore rules
		var ch chan gitcha.SearchResult
		if m.cfg.ShowAllFiles {
			ch, err = gitcha.FindAllFilesExcept(cwd, pdfExtensions, nil)
		} else {
			ch, err = gitcha.FindFilesExcept(cwd, pdfExtensions, ignorePatterns(m))
		}
		if err != nil {
			log.Error("error finding local files", "error", err)
			return errMsg{err}
		}

		return initLocalFileSearchMsg{ch: ch, cwd: cwd}
	}
}

func findNextLocalFile(m model) tea.Cmd {
	return func() tea.Msg {
		res, ok := <-m.localFileFinder
		if ok {
			return foundLocalFileMsg(res)
		}
		return localFileSearchFinished{}
	}
}

// ignorePatterns skips dependency trees and, when searching from the home
// directory, the usual application data folders.
func ignorePatterns(m commonModel) []string {
	patterns := []string{"node_modules", "vendor", ".cache"}
	if m.cfg.HomeDir != "" {
		patterns = append(patterns,
			filepath.Join(m.cfg.HomeDir, "Library"),
			filepath.Join(m.cfg.HomeDir, ".local"),
		)
	}
	return patterns
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

// Lightweight version of reflow's indent function.
func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return b.String()
}
