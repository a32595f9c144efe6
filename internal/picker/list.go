// Package picker provides interactive choosers for the application to run
// and the internal render size.
package picker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCanceled is returned when the picker is closed without a choice.
var ErrCanceled = errors.New("selection canceled")

// Option is one entry of a picker.
type Option[T any] struct {
	Title       string
	Description string
	Value       T
}

type item struct {
	title string
	desc  string
	index int
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title }

type keyMap struct {
	Choose key.Binding
	Cancel key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Choose: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "choose"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "ctrl+c", "q"),
			key.WithHelp("esc/q", "cancel"),
		),
	}
}

var docStyle = lipgloss.NewStyle().Margin(1, 2)

type model struct {
	list   list.Model
	keys   keyMap
	choice int
	done   bool
}

func newModel(title string, items []list.Item, showDesc bool) model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = showDesc

	keys := defaultKeyMap()
	l := list.New(items, delegate, 0, 0)
	l.Title = title
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.DisableQuitKeybindings()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Choose, keys.Cancel}
	}

	return model{list: l, keys: keys, choice: -1}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
		return m, nil

	case tea.KeyMsg:
		// While typing a filter, keys belong to the filter input.
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Choose):
			if it, ok := m.list.SelectedItem().(item); ok {
				m.choice = it.index
			}
			m.done = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Cancel):
			if m.list.FilterState() == list.FilterApplied {
				m.list.ResetFilter()
				return m, nil
			}
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.done {
		return ""
	}
	return docStyle.Render(m.list.View())
}

// Chooser runs pickers. The zero value draws on stderr so stdout stays
// free for progress messages.
type Chooser struct {
	Input  io.Reader
	Output io.Writer
}

// Choose shows options and returns the chosen value. It returns
// ErrCanceled if the user backs out.
func Choose[T any](ctx context.Context, c Chooser, title string, options []Option[T], showDesc bool) (T, error) {
	var zero T
	if len(options) == 0 {
		return zero, fmt.Errorf("%s: nothing to choose from", title)
	}

	items := make([]list.Item, len(options))
	for i, o := range options {
		items[i] = item{title: o.Title, desc: o.Description, index: i}
	}

	out := c.Output
	if out == nil {
		out = os.Stderr
	}
	progOpts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(out), tea.WithAltScreen()}
	if c.Input != nil {
		progOpts = append(progOpts, tea.WithInput(c.Input))
	}

	final, err := tea.NewProgram(newModel(title, items, showDesc), progOpts...).Run()
	if err != nil {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("picker: %w", err)
	}

	m, ok := final.(model)
	if !ok || m.choice < 0 {
		return zero, ErrCanceled
	}
	return options[m.choice].Value, nil
}
