package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/boneforge/boneforge/pkg/bvh"
	"github.com/boneforge/boneforge/pkg/skeleton"
)

// List styles
var (
	treeSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	treeNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	treeLeafStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

// newTreeCmd creates the tree command, an interactive hierarchy browser.
func newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree <file.bvh>",
		Short: "Browse a BVH hierarchy interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			s, err := bvh.ParseFile(args[0])
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(NewTreeModel(s)).Run()
			return err
		},
	}
}

// treeRow is one visible line of the hierarchy listing.
type treeRow struct {
	index int // joint index in the skeleton
	depth int
}

// TreeModel is the bubbletea model for the hierarchy browser.
type TreeModel struct {
	Skeleton  *skeleton.Skeleton
	Rows      []treeRow
	Cursor    int
	Collapsed map[int]bool
	Height    int
	Offset    int
}

// NewTreeModel creates a tree model with every branch expanded.
func NewTreeModel(s *skeleton.Skeleton) TreeModel {
	m := TreeModel{
		Skeleton:  s,
		Collapsed: make(map[int]bool),
		Height:    20,
	}
	m.rebuild()
	return m
}

// rebuild flattens the hierarchy into visible rows, honoring collapsed state.
func (m *TreeModel) rebuild() {
	m.Rows = m.Rows[:0]
	var walk func(i, depth int)
	walk = func(i, depth int) {
		m.Rows = append(m.Rows, treeRow{index: i, depth: depth})
		if m.Collapsed[i] {
			return
		}
		for _, c := range m.Skeleton.Children(i) {
			walk(c, depth+1)
		}
	}
	walk(m.Skeleton.Root(), 0)
	if m.Cursor >= len(m.Rows) {
		m.Cursor = len(m.Rows) - 1
	}
}

func (m TreeModel) Init() tea.Cmd {
	return nil
}

func (m TreeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Rows)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter", " ":
			i := m.Rows[m.Cursor].index
			if !m.Skeleton.IsLeaf(i) {
				m.Collapsed[i] = !m.Collapsed[i]
				m.rebuild()
			}
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 6
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m TreeModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Skeleton Hierarchy"))
	b.WriteString("\n")
	b.WriteString(treeLeafStyle.Render("↑/↓ navigate  ⏎ collapse  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Rows) {
		end = len(m.Rows)
	}

	for r := m.Offset; r < end; r++ {
		row := m.Rows[r]
		i := row.index
		j, _ := m.Skeleton.Joint(i)

		cursor := "  "
		if r == m.Cursor {
			cursor = "▸ "
		}

		marker := "·"
		if !m.Skeleton.IsLeaf(i) {
			marker = "+"
			if m.Collapsed[i] {
				marker = "-"
			}
		}

		off := m.Skeleton.RootOffset()
		if i != m.Skeleton.Root() {
			off = m.Skeleton.Offset(i)
		}
		detail := fmt.Sprintf("(%g, %g, %g)", off.X(), off.Y(), off.Z())
		if !m.Skeleton.IsLeaf(i) {
			detail = j.Order.String() + "  " + detail
		}

		line := fmt.Sprintf("%s%s%s %-20s %s",
			cursor, strings.Repeat("  ", row.depth), marker, j.Name, treeLeafStyle.Render(detail))

		switch {
		case r == m.Cursor:
			b.WriteString(treeSelectedStyle.Render(line))
		case m.Skeleton.IsLeaf(i):
			b.WriteString(treeLeafStyle.Render(line))
		default:
			b.WriteString(treeNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(treeLeafStyle.Render(fmt.Sprintf("  [%d/%d]  %d frames", m.Cursor+1, len(m.Rows), m.Skeleton.FrameCount())))

	return b.String()
}
