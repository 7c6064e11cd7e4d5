package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/treereplay/pkg/replay"
	"github.com/matzehuels/treereplay/pkg/timeline"
)

// Player styles
var (
	playerTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	playerStatusStyle = lipgloss.NewStyle().Foreground(colorGray)
	playerHelpStyle   = lipgloss.NewStyle().Foreground(colorDim)
	playerDoneStyle   = lipgloss.NewStyle().Foreground(colorCyan)
	playerTodoStyle   = lipgloss.NewStyle().Foreground(colorDim)
	playerBoxStyle    = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorDim).
				Padding(0, 1)
)

const playerHelp = "space play/pause · ←/→ step · home/end jump · 1-3 speed · q quit"

// =============================================================================
// PlayerModel - Interactive replay
// =============================================================================

// frameMsg delivers a published frame to the model.
type frameMsg replay.Frame

// frameFeed hands frames from the session to the program. It keeps only
// the newest unsent frame so that the session never blocks on the UI.
type frameFeed chan replay.Frame

func newFrameFeed() frameFeed { return make(frameFeed, 1) }

// offer replaces any pending frame with f.
func (ch frameFeed) offer(f replay.Frame) {
	for {
		select {
		case ch <- f:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// wait returns a command that blocks until the next frame.
func (ch frameFeed) wait() tea.Cmd {
	return func() tea.Msg {
		f, ok := <-ch
		if !ok {
			return nil
		}
		return frameMsg(f)
	}
}

// PlayerModel is the bubbletea model driving a replay session.
type PlayerModel struct {
	Session *replay.Session
	Frame   replay.Frame
	Width   int
	Height  int
	Err     error

	feed frameFeed
}

// NewPlayerModel creates a player over s. Frames published by s must be
// passed to feed.offer.
func NewPlayerModel(s *replay.Session, feed frameFeed) PlayerModel {
	return PlayerModel{Session: s, Frame: s.Frame(), Width: 80, Height: 24, feed: feed}
}

func (m PlayerModel) Init() tea.Cmd {
	return m.feed.wait()
}

func (m PlayerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.Frame = replay.Frame(msg)
		return m, m.feed.wait()
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ", "p":
			m.Session.Toggle()
		case "right", "l", "n":
			m.Session.Next()
		case "left", "h", "b":
			m.Session.Prev()
		case "home", "g":
			m.Session.Seek(0)
		case "end", "G":
			m.Session.Seek(m.Frame.Length - 1)
		case "1", "2", "3":
			sp := timeline.Speeds[int(msg.String()[0]-'1')]
			if err := m.Session.SetSpeed(sp); err != nil {
				m.Err = err
			}
		case "+", "=":
			m.Err = m.Session.SetSpeed(m.Frame.Speed.Faster())
		case "-":
			m.Err = m.Session.SetSpeed(m.Frame.Speed.Slower())
		}
	}
	return m, nil
}

func (m PlayerModel) View() string {
	f := m.Frame
	var b strings.Builder

	title := f.Title
	if title == "" {
		title = appName
	}
	b.WriteString(playerTitleStyle.Render(title))
	b.WriteString("\n")

	if f.Empty {
		b.WriteString(StyleDim.Render("No activity yet"))
		b.WriteString("\n\n")
		b.WriteString(playerHelpStyle.Render("q quit"))
		return b.String()
	}

	b.WriteString(m.progressBar())
	b.WriteString("\n")
	b.WriteString(playerStatusStyle.Render(m.status()))
	b.WriteString("\n\n")

	header := f.Description
	if f.Activity != nil {
		header += StyleDim.Render(" · " + f.Activity.Timestamp.Local().Format(timeLayout))
	}
	lines := outlineLines(f, m.Width-4)
	if room := m.Height - 10; room > 0 && len(lines) > room {
		lines = append(lines[:room], StyleDim.Render(fmt.Sprintf("… %d more", len(lines)-room)))
	}
	body := header + "\n\n" + strings.Join(lines, "\n")
	b.WriteString(playerBoxStyle.Width(max(20, m.Width-2)).Render(body))
	b.WriteString("\n")

	if m.Err != nil {
		b.WriteString(styleIconError.Render(iconError + " " + m.Err.Error()))
		b.WriteString("\n")
	}
	b.WriteString(playerHelpStyle.Render(playerHelp))
	return b.String()
}

// status is the one-line player state, e.g. "▶ playing · step 3/7 · MEDIUM".
func (m PlayerModel) status() string {
	f := m.Frame
	icon := "⏸"
	state := "paused"
	switch {
	case f.Playing:
		icon, state = "▶", "playing"
	case f.State == timeline.StateReady.String():
		icon, state = "…", "starting"
	case f.Cursor == f.Length-1:
		icon, state = "■", "finished"
	}
	return fmt.Sprintf("%s %s · step %d/%d · %s", icon, state, f.Cursor+1, f.Length, f.Speed)
}

// progressBar draws one cell per activity, scaled down for long timelines.
func (m PlayerModel) progressBar() string {
	f := m.Frame
	width := max(10, min(f.Length, m.Width-2))
	done := (f.Cursor + 1) * width / max(1, f.Length)
	return playerDoneStyle.Render(strings.Repeat("━", done)) +
		playerTodoStyle.Render(strings.Repeat("─", width-done))
}
