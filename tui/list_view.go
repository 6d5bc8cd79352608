// ABOUTME: Searchable, sortable record table for every entity type
// ABOUTME: Runs the query engine over the loaded array and warns when the cap truncates
package tui

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/agencycrm/models"
	"github.com/harperreed/agencycrm/query"
)

type recordsLoadedMsg struct {
	entity  models.EntityType
	records []models.Record
	err     error
}

// ListModel shows one entity type at a time.
type ListModel struct {
	source  Source
	entity  models.EntityType
	records []models.Record
	result  query.Result[models.Record]

	search    textinput.Model
	searching bool
	filters   query.FilterSet
	sortIdx   int
	sortDesc  bool
	cursor    int

	loading bool
	err     error
	width   int
	height  int
}

// NewListModel creates a list view starting on entity.
func NewListModel(source Source, entity models.EntityType) ListModel {
	ti := textinput.New()
	ti.Placeholder = "search"
	ti.CharLimit = 120
	return ListModel{
		source:  source,
		entity:  entity,
		search:  ti,
		filters: query.FilterSet{},
		sortIdx: -1,
		loading: true,
		width:   100,
		height:  24,
	}
}

func (m ListModel) Init() tea.Cmd {
	return m.load()
}

func (m ListModel) load() tea.Cmd {
	source, entity := m.source, m.entity
	return func() tea.Msg {
		records, err := source.Records(context.Background(), entity)
		return recordsLoadedMsg{entity: entity, records: records, err: err}
	}
}

func (m ListModel) columns() []string {
	cols := append([]string{"id"}, models.SearchFields(m.entity)...)
	for _, f := range models.FilterFields(m.entity) {
		if !slices.Contains(cols, f) {
			cols = append(cols, f)
		}
	}
	return cols
}

func (m *ListModel) refresh() {
	q := query.Query{
		Search:       m.search.Value(),
		SearchFields: models.SearchFields(m.entity),
		Filters:      m.filters,
	}
	if cols := m.columns(); m.sortIdx >= 0 && m.sortIdx < len(cols) {
		q.Sort = &query.SortSpec{Field: cols[m.sortIdx], Desc: m.sortDesc}
	}
	m.result = query.Run(m.records, q)
	if m.cursor >= len(m.result.Records) {
		m.cursor = max(0, len(m.result.Records)-1)
	}
}

func (m ListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case recordsLoadedMsg:
		if msg.entity != m.entity {
			return m, nil
		}
		m.loading = false
		m.err = msg.err
		m.records = msg.records
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKeys(msg)
		}
		return m.handleListKeys(msg)
	}
	return m, nil
}

func (m ListModel) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.refresh()
	return m, cmd
}

func (m ListModel) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "/":
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink
	case "tab", "shift+tab":
		step := 1
		if msg.String() == "shift+tab" {
			step = len(models.AllEntityTypes) - 1
		}
		m.entity = models.AllEntityTypes[(indexOf(models.AllEntityTypes, m.entity)+step)%len(models.AllEntityTypes)]
		m.records, m.filters, m.sortIdx, m.cursor = nil, query.FilterSet{}, -1, 0
		m.search.SetValue("")
		m.loading = true
		m.refresh()
		return m, m.load()
	case "s":
		m.sortIdx = (m.sortIdx + 1) % len(m.columns())
		m.refresh()
	case "S":
		m.sortDesc = !m.sortDesc
		m.refresh()
	case "f":
		m.cycleFilter()
		m.refresh()
	case "x":
		m.filters = query.FilterSet{}
		m.refresh()
	case "r":
		m.loading = true
		return m, m.load()
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.result.Records)-1 {
			m.cursor++
		}
	}
	return m, nil
}

// cycleFilter steps the first filter field through its unique values and
// back to unset.
func (m *ListModel) cycleFilter() {
	fields := models.FilterFields(m.entity)
	if len(fields) == 0 {
		return
	}
	field := fields[0]
	values := query.UniqueValues(m.records, field)
	if len(values) == 0 {
		return
	}
	current := m.filters[field]
	next := 0
	if current != "" {
		next = indexOf(values, current) + 1
	}
	if next >= len(values) {
		delete(m.filters, field)
		return
	}
	m.filters[field] = values[next]
}

func (m ListModel) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("AGENCY CRM"))
	s.WriteString("\n")
	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")
	s.WriteString("Search: " + m.search.View())
	if active := m.filters.Active(); len(active) > 0 {
		parts := make([]string, 0, len(active))
		for _, k := range slices.Sorted(maps.Keys(active)) {
			parts = append(parts, k+"="+m.filters[k])
		}
		s.WriteString("   Filters: " + strings.Join(parts, ", "))
	}
	s.WriteString("\n\n")

	switch {
	case m.err != nil:
		s.WriteString(warningStyle.Render("Error: " + m.err.Error()))
	case m.loading:
		s.WriteString("Loading...")
	default:
		s.WriteString(m.renderTable())
		s.WriteString("\n")
		summary := m.result.Summary()
		if m.result.Truncated {
			s.WriteString(warningStyle.Render(summary))
		} else {
			s.WriteString(statusStyle.Render(summary))
		}
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("/: Search • tab: Entity • s/S: Sort • f: Filter • x: Clear filters • r: Reload • q: Quit"))
	return s.String()
}

func (m ListModel) renderTabs() string {
	rendered := make([]string, 0, len(models.AllEntityTypes))
	for _, e := range models.AllEntityTypes {
		label := strings.ToUpper(string(e[:1])) + string(e[1:])
		if e == m.entity {
			rendered = append(rendered, tabActiveStyle.Render(label))
		} else {
			rendered = append(rendered, tabInactiveStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m ListModel) renderTable() string {
	cols := m.columns()
	width := max(8, (m.width-2)/len(cols))

	columns := make([]table.Column, len(cols))
	for i, c := range cols {
		title := c
		if i == m.sortIdx {
			if m.sortDesc {
				title += " ↓"
			} else {
				title += " ↑"
			}
		}
		columns[i] = table.Column{Title: title, Width: width}
	}

	rows := make([]table.Row, 0, len(m.result.Records))
	for _, r := range m.result.Records {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			row[i] = truncate(cell(r, c), width)
		}
		rows = append(rows, row)
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(max(3, m.height-12)),
	)
	if m.cursor < len(rows) {
		t.SetCursor(m.cursor)
	}
	return t.View()
}

func indexOf[T comparable](s []T, v T) int {
	return slices.Index(s, v)
}
