package progress

import (
	"io"
	"strings"

	bprogress "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	tuiTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	tuiMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

const tuiMaxBarWidth = 60

type sampleMsg Sample

type finishMsg struct{}

type tuiModel struct {
	bar    bprogress.Model
	sample Sample
	active bool
}

func newTUIModel() tuiModel {
	bar := bprogress.New(bprogress.WithDefaultGradient())
	bar.Width = tuiMaxBarWidth
	return tuiModel{bar: bar}
}

func (m tuiModel) Init() tea.Cmd {
	return nil
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = msg.Width - 4
		if m.bar.Width > tuiMaxBarWidth {
			m.bar.Width = tuiMaxBarWidth
		}
		if m.bar.Width < 10 {
			m.bar.Width = 10
		}
	case sampleMsg:
		m.sample = Sample(msg)
		m.active = true
	case finishMsg:
		m.active = false
		m.sample = Sample{}
	}
	return m, nil
}

func (m tuiModel) View() string {
	if !m.active {
		return ""
	}
	var b strings.Builder
	if m.sample.Label != "" {
		b.WriteString(tuiTitleStyle.Render(m.sample.Label))
		b.WriteString("\n")
	}
	if m.sample.PercentKnown {
		b.WriteString(m.bar.ViewAs(m.sample.Percent / 100))
		b.WriteString("\n")
	}
	stats := m.sample
	stats.Label = ""
	b.WriteString(tuiMutedStyle.Render(RenderLine(stats, false)))
	b.WriteString("\n")
	return b.String()
}

// TUISink renders samples as a bubbletea progress bar for the lifetime of a
// batch. Close must be called to restore the terminal.
type TUISink struct {
	program *tea.Program
	done    chan struct{}
	err     error
}

func NewTUISink(out io.Writer) *TUISink {
	p := tea.NewProgram(
		newTUIModel(),
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	s := &TUISink{program: p, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		_, s.err = p.Run()
	}()
	return s
}

func (s *TUISink) Update(sample Sample) {
	s.program.Send(sampleMsg(sample))
}

func (s *TUISink) Finish() {
	s.program.Send(finishMsg{})
}

// Println prints a line above the progress view.
func (s *TUISink) Println(line string) {
	s.program.Println(line)
}

func (s *TUISink) Close() error {
	s.program.Quit()
	<-s.done
	return s.err
}
