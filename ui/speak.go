package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/narrate/internal/speech"
)

var errNoSpeaker = errors.New("speech is not available")

type speakModel struct {
	common   *commonModel
	keys     speakKeyMap
	help     help.Model
	input    textarea.Model
	speaking bool
}

func newSpeakModel(common *commonModel) speakModel {
	ta := textarea.New()
	ta.Placeholder = "Type something to hear it spoken…"
	ta.CharLimit = speech.MaxTextLength
	ta.ShowLineNumbers = false
	ta.SetHeight(8)

	return speakModel{
		common: common,
		keys:   newSpeakKeyMap(),
		help:   help.New(),
		input:  ta,
	}
}

func (m *speakModel) setSize(width, height int) {
	m.help.Width = width
	m.input.SetWidth(max(20, width-4))
	m.input.SetHeight(max(3, min(12, height-10)))
}

func (m *speakModel) focus() tea.Cmd {
	return m.input.Focus()
}

func (m *speakModel) blur() {
	m.input.Blur()
}

func (m speakModel) update(msg tea.Msg) (speakModel, tea.Cmd) {
	speaker := m.common.deps.Speaker

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Speak):
			if speaker == nil {
				return m, func() tea.Msg { return spokenMsg{err: errNoSpeaker} }
			}
			if m.speaking {
				_ = speaker.Stop()
				m.speaking = false
			}
			return m, speakText(m.common.ctx, speaker, m.input.Value())
		case key.Matches(msg, m.keys.Stop):
			if speaker != nil {
				_ = speaker.Stop()
			}
			m.speaking = false
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m speakModel) view() string {
	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("narrate") + "  " + subtleStyle.Render("speak") + "\n\n")
	b.WriteString(indent(m.input.View(), 2))

	count := len([]rune(m.input.Value()))
	status := fmt.Sprintf("%d/%d", count, speech.MaxTextLength)
	if m.speaking {
		status = activeStyle.Render("▶ speaking") + "  " + subtleStyle.Render(status)
	} else {
		status = subtleStyle.Render(status)
	}
	b.WriteString("  " + status)
	return b.String()
}
