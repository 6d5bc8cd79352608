// ABOUTME: Terminal User Interface using bubbletea framework
// ABOUTME: Shared styles and record formatting for the list and board views
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/agencycrm/models"
	"github.com/harperreed/agencycrm/query"
)

// Source loads the full record array for an entity type.
type Source interface {
	Records(ctx context.Context, entity models.EntityType) ([]models.Record, error)
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))
)

// displayName picks the field a person would recognize a record by.
func displayName(r models.Record) string {
	for _, f := range []string{"name", "first_name", "number", "harvest_client_name"} {
		if v := r.Field(f); v != nil {
			s := query.Stringify(v)
			if f == "first_name" {
				if last := r.Field("last_name"); last != nil {
					s += " " + query.Stringify(last)
				}
			}
			return s
		}
	}
	return fmt.Sprintf("#%d", r.RecordID())
}

func cell(r models.Record, field string) string {
	v := r.Field(field)
	if v == nil {
		return ""
	}
	return query.Stringify(v)
}

func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) > width-1 {
		r = r[:width-1]
	}
	return strings.TrimSpace(string(r)) + "…"
}
