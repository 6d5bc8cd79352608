// ABOUTME: Pipeline CLI commands
// ABOUTME: move for one-shot stage changes, browse and board for the interactive views
package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/agencycrm/client"
	"github.com/harperreed/agencycrm/models"
	"github.com/harperreed/agencycrm/pipeline"
	"github.com/harperreed/agencycrm/tui"
	"github.com/spf13/cobra"
)

func (a *app) moveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "move <entity> <id> <stage>",
		Short: "Move a pipeline record to another stage",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntity(args[0])
			if err != nil {
				return err
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			stage := args[2]

			from, outcome, err := client.MoveStage(cmd.Context(), a.client(), entity, id, stage, a.log)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outcome == pipeline.OutcomeNoop {
				fmt.Fprintf(out, "%s %d is already in %s\n", entity, id, stage)
				return nil
			}
			fmt.Fprintf(out, "✓ Moved %s %d: %s → %s\n", entity, id, from, stage)
			return nil
		},
	}
}

func (a *app) browseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse [entity]",
		Short: "Browse records in an interactive table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity := models.EntityClients
			if len(args) == 1 {
				var err error
				if entity, err = parseEntity(args[0]); err != nil {
					return err
				}
			}

			p := tea.NewProgram(tui.NewListModel(a.client(), entity), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err := p.Run()
			return err
		},
	}
}

func (a *app) boardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "board <entity>",
		Short: "Open the kanban board for leads, clients, or applicants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntity(args[0])
			if err != nil {
				return err
			}

			var model tea.Model
			switch entity {
			case models.EntityLeads:
				model, err = boardModel[*models.Lead](a, entity)
			case models.EntityClients:
				model, err = boardModel[*models.Client](a, entity)
			case models.EntityApplicants:
				model, err = boardModel[*models.Applicant](a, entity)
			default:
				return fmt.Errorf("%w: %s", pipeline.ErrNoPipeline, entity)
			}
			if err != nil {
				return err
			}

			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err = p.Run()
			return err
		},
	}
}

func boardModel[T models.Staged](a *app, entity models.EntityType) (tea.Model, error) {
	board, err := pipeline.NewBoard[T](entity, client.NewStore[T](a.client(), entity), a.log)
	if err != nil {
		return nil, err
	}
	return tui.NewBoardModel(board), nil
}
