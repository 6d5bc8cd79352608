// ABOUTME: Kanban board view for pipeline entities
// ABOUTME: Keyboard drag and drop that applies moves at once and confirms them in the background
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/agencycrm/models"
	"github.com/harperreed/agencycrm/pipeline"
)

type boardLoadedMsg struct{ err error }

type confirmedMsg struct {
	tr      pipeline.Transition
	outcome pipeline.Outcome
	err     error
}

type deletedMsg struct {
	id  int64
	err error
}

var (
	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activeColumnStyle = columnStyle.
				BorderForeground(lipgloss.Color("170"))

	cardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedCardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("170"))

	draggedCardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("62")).
				Bold(true)
)

// BoardModel renders one pipeline as columns and drives its transitions.
type BoardModel[T models.Staged] struct {
	board *pipeline.Board[T]

	col int
	row int

	confirmingDelete bool
	pending          int
	loading          bool
	status           string
	err              error
	width            int
	height           int
}

// NewBoardModel creates a board view. Records are loaded by Init.
func NewBoardModel[T models.Staged](board *pipeline.Board[T]) BoardModel[T] {
	return BoardModel[T]{board: board, loading: true, width: 120, height: 30}
}

func (m BoardModel[T]) Init() tea.Cmd {
	return m.load()
}

func (m BoardModel[T]) load() tea.Cmd {
	board := m.board
	return func() tea.Msg {
		return boardLoadedMsg{err: board.Load(context.Background())}
	}
}

func (m BoardModel[T]) confirm(tr pipeline.Transition) tea.Cmd {
	board := m.board
	return func() tea.Msg {
		outcome, err := board.Confirm(context.Background(), tr)
		return confirmedMsg{tr: tr, outcome: outcome, err: err}
	}
}

func (m BoardModel[T]) remove(id int64) tea.Cmd {
	board := m.board
	return func() tea.Msg {
		return deletedMsg{id: id, err: board.Delete(context.Background(), id)}
	}
}

func (m BoardModel[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case boardLoadedMsg:
		m.loading = false
		m.err = msg.err
		m.clampRow()
		return m, nil

	case confirmedMsg:
		m.pending--
		switch msg.outcome {
		case pipeline.OutcomeCommitted:
			m.status = fmt.Sprintf("✓ #%d moved to %s", msg.tr.RecordID, msg.tr.To)
			m.err = nil
		case pipeline.OutcomeReconciled:
			// The board has already been reloaded from the server.
			m.status = ""
			m.err = msg.err
			m.clampRow()
		}
		return m, nil

	case deletedMsg:
		m.confirmingDelete = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.status = fmt.Sprintf("✓ #%d deleted", msg.id)
			m.err = nil
		}
		m.clampRow()
		return m, nil

	case tea.KeyMsg:
		if m.confirmingDelete {
			return m.handleConfirmDeleteKeys(msg)
		}
		return m.handleBoardKeys(msg)
	}
	return m, nil
}

func (m BoardModel[T]) handleBoardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	stages := m.board.Stages()
	_, over, dragging := m.board.Dragging()

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "left", "h", "right", "l":
		step := 1
		if msg.String() == "left" || msg.String() == "h" {
			step = -1
		}
		if dragging {
			i := indexOf(stages, over) + step
			if i >= 0 && i < len(stages) {
				_ = m.board.DragOver(stages[i])
				m.col = i
			}
			return m, nil
		}
		m.col = min(max(m.col+step, 0), len(stages)-1)
		m.clampRow()

	case "up", "k":
		if m.row > 0 {
			m.row--
		}

	case "down", "j":
		if m.row < len(m.columnRecords())-1 {
			m.row++
		}

	case " ":
		if r, ok := m.selected(); ok && !dragging {
			if err := m.board.DragStart(r.RecordID()); err != nil {
				m.err = err
			} else {
				m.status = fmt.Sprintf("Moving %s: ←/→ to choose a stage, enter to drop, esc to cancel", displayName(r))
			}
		}

	case "enter":
		if !dragging {
			return m, nil
		}
		tr, err := m.board.Drop()
		if err != nil {
			m.err = err
			return m, nil
		}
		m.selectRecord(tr.RecordID)
		if tr.Noop() {
			m.status = "No change"
			return m, nil
		}
		m.pending++
		m.status = fmt.Sprintf("Saving #%d → %s...", tr.RecordID, tr.To)
		return m, m.confirm(tr)

	case "esc":
		if dragging {
			m.board.DragCancel()
			m.status = "Move cancelled"
		}

	case "d":
		if _, ok := m.selected(); ok && !dragging {
			m.confirmingDelete = true
		}

	case "r":
		m.loading = true
		return m, m.load()
	}
	return m, nil
}

func (m BoardModel[T]) handleConfirmDeleteKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		r, ok := m.selected()
		if !ok {
			m.confirmingDelete = false
			return m, nil
		}
		m.status = fmt.Sprintf("Deleting #%d...", r.RecordID())
		return m, m.remove(r.RecordID())
	case "n", "N", "esc":
		m.confirmingDelete = false
	}
	return m, nil
}

func (m BoardModel[T]) columnRecords() []T {
	cols := m.board.Columns()
	if m.col < 0 || m.col >= len(cols) {
		return nil
	}
	return cols[m.col].Records
}

func (m BoardModel[T]) selected() (T, bool) {
	records := m.columnRecords()
	if m.row < 0 || m.row >= len(records) {
		var zero T
		return zero, false
	}
	return records[m.row], true
}

func (m *BoardModel[T]) selectRecord(id int64) {
	for c, col := range m.board.Columns() {
		for r, rec := range col.Records {
			if rec.RecordID() == id {
				m.col, m.row = c, r
				return
			}
		}
	}
}

func (m *BoardModel[T]) clampRow() {
	n := len(m.columnRecords())
	m.row = min(m.row, max(n-1, 0))
}

func (m BoardModel[T]) View() string {
	if m.confirmingDelete {
		if r, ok := m.selected(); ok {
			return renderConfirmDelete(string(m.board.Entity()), displayName(r), m.width, m.height)
		}
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render(strings.ToUpper(string(m.board.Entity())) + " PIPELINE"))
	s.WriteString("\n")

	if m.loading {
		s.WriteString("Loading...\n")
	} else {
		s.WriteString(m.renderColumns())
		s.WriteString("\n")
	}

	if m.err != nil {
		s.WriteString(warningStyle.Render("Error: " + m.err.Error()))
		s.WriteString("\n")
	}
	if m.status != "" {
		s.WriteString(statusStyle.Render(m.status))
		if m.pending > 1 {
			s.WriteString(fmt.Sprintf(" (%d saves in flight)", m.pending))
		}
		s.WriteString("\n")
	}

	s.WriteString(helpStyle.Render("←/→: Column • ↑/↓: Card • space: Pick up • enter: Drop • esc: Cancel • d: Delete • r: Reload • q: Quit"))
	return s.String()
}

func (m BoardModel[T]) renderColumns() string {
	cols := m.board.Columns()
	dragID, over, dragging := m.board.Dragging()
	width := max(14, m.width/max(len(cols), 1)-4)
	maxCards := max(3, m.height-10)

	rendered := make([]string, len(cols))
	for i, col := range cols {
		var lines []string
		header := fmt.Sprintf("%s (%d)", col.Stage, len(col.Records))
		lines = append(lines, lipgloss.NewStyle().Bold(true).Render(truncate(header, width)), "")

		for j, r := range col.Records {
			if j >= maxCards {
				lines = append(lines, fmt.Sprintf("… %d more", len(col.Records)-maxCards))
				break
			}
			label := truncate(displayName(r), width)
			switch {
			case dragging && r.RecordID() == dragID:
				lines = append(lines, draggedCardStyle.Render(label))
			case i == m.col && j == m.row:
				lines = append(lines, selectedCardStyle.Render(label))
			default:
				lines = append(lines, cardStyle.Render(label))
			}
		}
		if dragging && col.Stage == over {
			lines = append(lines, draggedCardStyle.Render(truncate("↓ drop here", width)))
		}

		style := columnStyle
		if i == m.col {
			style = activeColumnStyle
		}
		rendered[i] = style.Width(width).Render(strings.Join(lines, "\n"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}
