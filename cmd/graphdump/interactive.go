package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/expr-lang/expr/vm"

	"github.com/wippyai/graphcodec/graph"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type interactiveModel struct {
	filterErr error
	dump      *dump
	filename  string
	visible   []graph.Frame
	filter    textinput.Model
	selected  int
	top       int
	height    int
}

func newInteractiveModel(filename string, d *dump, filter string) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = "filter: "
	ti.Placeholder = `tag == "new" && depth < 3`
	ti.Width = 60
	ti.SetValue(filter)

	m := &interactiveModel{
		dump:     d,
		filename: filename,
		filter:   ti,
		height:   20,
	}
	m.applyFilter()
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) applyFilter() {
	var prog *vm.Program
	prog, m.filterErr = compileFilter(strings.TrimSpace(m.filter.Value()))
	if m.filterErr != nil {
		return
	}
	frames, err := applyFilter(prog, m.dump.frames)
	if err != nil {
		m.filterErr = err
		return
	}
	m.visible = frames
	m.selected = 0
	m.top = 0
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-8, 1)

	case tea.KeyMsg:
		if m.filter.Focused() {
			switch msg.String() {
			case "ctrl+c":
				return m, tea.Quit
			case "enter":
				m.applyFilter()
				m.filter.Blur()
				return m, nil
			case "esc":
				m.filter.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "/":
			return m, m.filter.Focus()
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.visible)-1 {
				m.selected++
			}
		case "pgup":
			m.selected = max(m.selected-m.height, 0)
		case "pgdown":
			m.selected = max(min(m.selected+m.height, len(m.visible)-1), 0)
		}
		if m.selected < m.top {
			m.top = m.selected
		}
		if m.selected >= m.top+m.height {
			m.top = m.selected - m.height + 1
		}
	}
	return m, nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Graph Dump"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString(fmt.Sprintf("  %d/%d frames\n\n", len(m.visible), len(m.dump.frames)))

	end := min(m.top+m.height, len(m.visible))
	for i := m.top; i < end; i++ {
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + renderFrame(m.visible[i], false)))
		} else {
			b.WriteString("  " + renderFrame(m.visible[i], true))
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if len(m.visible) > 0 {
		f := m.visible[m.selected]
		b.WriteString(helpStyle.Render(fmt.Sprintf("offset %d  ref %d  type %d  depth %d", f.Offset, f.RefID, f.TypeID, f.Depth)))
		b.WriteString("\n")
	}
	if m.dump.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Stream error: %v", m.dump.err)))
		b.WriteString("\n")
	}
	if m.filterErr != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Filter error: %v", m.filterErr)))
		b.WriteString("\n")
	}

	b.WriteString(m.filter.View())
	b.WriteString("\n")
	if m.filter.Focused() {
		b.WriteString(helpStyle.Render("enter apply • esc cancel"))
	} else {
		b.WriteString(helpStyle.Render("↑/↓ move • pgup/pgdown page • / filter • q quit"))
	}
	return b.String()
}

func runInteractive(filename string, d *dump, filter string) error {
	p := tea.NewProgram(newInteractiveModel(filename, d, filter), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
