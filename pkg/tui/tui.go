// Package tui provides a terminal user interface for editing and playing
// grooves. It is a thin consumer of the core: it renders the current groove
// snapshot and forwards key presses as mutations or transport calls.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/groovekit/groovekit/pkg/codec"
	"github.com/groovekit/groovekit/pkg/engine"
	"github.com/groovekit/groovekit/pkg/groove"
	"github.com/groovekit/groovekit/pkg/theory"
)

var (
	amber    = lipgloss.Color("#FFB000")
	hotRed   = lipgloss.Color("#FF5555")
	steel    = lipgloss.Color("#C0C0C0")
	charcoal = lipgloss.Color("#333333")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(amber).
			Background(charcoal).
			Padding(0, 2).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(steel)

	voiceStyle = lipgloss.NewStyle().
			Foreground(steel).
			Width(14)

	selectedVoiceStyle = lipgloss.NewStyle().
				Foreground(amber).
				Bold(true).
				Width(14)

	playheadStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(amber)

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(steel)

	hitStyle = lipgloss.NewStyle().
			Foreground(amber).
			Bold(true)

	restStyle = lipgloss.NewStyle().
			Foreground(charcoal)

	errorStyle = lipgloss.NewStyle().
			Foreground(hotRed).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)
)

// Model is the bubbletea model for the groove editor.
type Model struct {
	groove *groove.Groove
	eng    *engine.Engine
	events chan engine.Event

	position    int
	cursorVoice int
	cursorPos   int
	status      string
	err         error
	width       int

	titleInput   textinput.Model
	editingTitle bool
}

type engineEventMsg engine.Event

// NewModel builds the editor around an engine and an initial groove.
func NewModel(g *groove.Groove, eng *engine.Engine) Model {
	ti := textinput.New()
	ti.Prompt = "Title: "
	ti.Placeholder = "untitled"
	ti.CharLimit = 80

	return Model{
		groove:     g,
		eng:        eng,
		events:     eng.Subscribe(),
		position:   engine.StoppedPosition,
		titleInput: ti,
	}
}

// Run starts the TUI around the given groove and engine, blocking until the
// user quits.
func Run(g *groove.Groove, eng *engine.Engine) error {
	p := tea.NewProgram(NewModel(g, eng), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init starts listening for engine events.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func waitForEvent(ch chan engine.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return engineEventMsg(ev)
	}
}

// Update handles key presses and engine events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case engineEventMsg:
		switch msg.Kind {
		case engine.EventTick:
			m.position = msg.Position
		case engine.EventLoop:
			m.status = "loop"
		case engine.EventStopped:
			m.position = engine.StoppedPosition
		}
		return m, waitForEvent(m.events)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editingTitle {
		return m.handleTitleKey(msg)
	}

	m.err = nil
	switch msg.String() {
	case "q", "ctrl+c":
		m.eng.Stop()
		return m, tea.Quit

	case " ":
		if m.eng.Playing() {
			m.eng.Stop()
		} else if err := m.eng.Play(m.groove); err != nil {
			m.err = err
		}

	case "up", "k":
		if m.cursorVoice > 0 {
			m.cursorVoice--
		}
	case "down", "j":
		if m.cursorVoice < groove.NumVoices-1 {
			m.cursorVoice++
		}
	case "left", "h":
		if m.cursorPos > 0 {
			m.cursorPos--
		}
	case "right", "l":
		if m.cursorPos < m.groove.TotalPositions()-1 {
			m.cursorPos++
		}

	case "enter", "x":
		m.toggle()

	case "p":
		m.eng.PlayPreview(groove.Voice(m.cursorVoice))

	case "+", "=":
		m.setTempo(m.groove.Tempo + 5)
	case "-", "_":
		m.setTempo(m.groove.Tempo - 5)

	case "]":
		m.setSwing(m.groove.Swing + 10)
	case "[":
		m.setSwing(m.groove.Swing - 10)

	case "s":
		m.status = m.ShareLine()

	case "t":
		m.editingTitle = true
		m.titleInput.SetValue(m.groove.Title)
		m.titleInput.Focus()
		return m, textinput.Blink
	}
	return m, nil
}

// handleTitleKey routes keys to the title input until the edit is committed
// or abandoned.
func (m Model) handleTitleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.editingTitle = false
		m.titleInput.Blur()
		m.apply(m.groove.SetTitle(strings.TrimSpace(m.titleInput.Value())))
		return m, nil
	case "esc":
		m.editingTitle = false
		m.titleInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.titleInput, cmd = m.titleInput.Update(msg)
	return m, cmd
}

func (m *Model) toggle() {
	next, err := m.groove.ToggleNote(groove.Voice(m.cursorVoice), m.cursorPos)
	if err != nil {
		m.err = err
		return
	}
	m.apply(next)
}

func (m *Model) setTempo(tempo int) {
	if tempo < groove.MinTempo || tempo > groove.MaxTempo {
		return
	}
	next, err := m.groove.SetTempo(tempo)
	if err != nil {
		m.err = err
		return
	}
	m.apply(next)
}

func (m *Model) setSwing(swing int) {
	if swing < 0 {
		swing = 0
	}
	if swing > 100 {
		swing = 100
	}
	next, err := m.groove.SetSwing(swing)
	if err != nil {
		m.err = err
		return
	}
	m.apply(next)
}

// apply installs a new snapshot in both the editor and the engine. A layout
// change stops the transport; playback resumes from zero on the next play.
func (m *Model) apply(next *groove.Groove) {
	m.groove = next
	if err := m.eng.UpdateGroove(next); err != nil && err != engine.ErrLayoutChanged {
		m.err = err
	}
}

// View renders the editor.
func (m Model) View() string {
	var b strings.Builder

	header := "GrooveKit"
	if m.groove.Title != "" {
		header += ": " + m.groove.Title
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteByte('\n')

	if m.editingTitle {
		b.WriteString(m.titleInput.View())
		b.WriteByte('\n')
	}

	transport := "stopped"
	if m.eng.Playing() {
		transport = "playing"
	}
	b.WriteString(labelStyle.Render(fmt.Sprintf(
		"%s  %d bpm  swing %d%%  %s  div %d  %dm  [%s]",
		transport, m.groove.Tempo, m.groove.Swing, m.groove.TimeSig,
		int(m.groove.Division), m.groove.Measures, m.eng.State().Sync)))
	b.WriteString("\n\n")

	b.WriteString(m.renderCountRow())
	b.WriteByte('\n')
	for _, v := range groove.Voices() {
		b.WriteString(m.renderVoiceRow(v))
		b.WriteByte('\n')
	}

	if m.status != "" {
		b.WriteByte('\n')
		b.WriteString(labelStyle.Render(m.status))
	}
	if m.err != nil {
		b.WriteByte('\n')
		b.WriteString(errorStyle.Render(m.err.Error()))
	}

	b.WriteString(helpStyle.Render(
		"\nspace play/stop · arrows move · x toggle · p preview · +/- tempo · [/] swing · t title · s share · q quit"))
	return b.String()
}

func (m Model) renderCountRow() string {
	var b strings.Builder
	b.WriteString(voiceStyle.Render(""))
	perMeasure := m.groove.NotesPerMeasure()
	for pos := 0; pos < m.groove.TotalPositions(); pos++ {
		if pos > 0 && pos%perMeasure == 0 {
			b.WriteString(labelStyle.Render("|"))
		}
		label := theory.CountLabel(pos%perMeasure, m.groove.Division, m.groove.TimeSig)
		if len(label) > 1 {
			label = label[:1]
		}
		b.WriteString(labelStyle.Render(label))
	}
	return b.String()
}

func (m Model) renderVoiceRow(v groove.Voice) string {
	var b strings.Builder
	style := voiceStyle
	if int(v) == m.cursorVoice {
		style = selectedVoiceStyle
	}
	b.WriteString(style.Render(fmt.Sprintf("%s %s", v.Code(), v.String())))

	perMeasure := m.groove.NotesPerMeasure()
	notes := m.groove.Notes[v]
	for pos := 0; pos < len(notes); pos++ {
		if pos > 0 && pos%perMeasure == 0 {
			b.WriteString(labelStyle.Render("|"))
		}
		cell := "·"
		if notes[pos] {
			cell = "x"
		}
		switch {
		case pos == m.position:
			b.WriteString(playheadStyle.Render(cell))
		case int(v) == m.cursorVoice && pos == m.cursorPos:
			b.WriteString(cursorStyle.Render(cell))
		case notes[pos]:
			b.WriteString(hitStyle.Render(cell))
		default:
			b.WriteString(restStyle.Render(cell))
		}
	}
	return b.String()
}

// ShareLine renders the encoded URL for the current groove with its length
// classification, for the status bar and for copy/paste.
func (m Model) ShareLine() string {
	query := codec.Encode(m.groove)
	report := codec.ValidateURLLength("?" + query)
	return fmt.Sprintf("?%s (%s)", query, report.Status)
}
