// ABOUTME: Visualization CLI commands
// ABOUTME: Handles the terminal dashboard and pipeline graph generation
package cli

import (
	"fmt"
	"os"

	"github.com/harperreed/agencycrm/models"
	"github.com/harperreed/agencycrm/viz"
	"github.com/spf13/cobra"
)

func (a *app) vizCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "viz",
		Short: "Dashboards and graphs",
	}

	var output string
	pipelineCmd := &cobra.Command{
		Use:   "pipeline <entity>",
		Short: "Render a pipeline's stages as a GraphViz graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity, err := parseEntity(args[0])
			if err != nil {
				return err
			}
			if !models.HasPipeline(entity) {
				return fmt.Errorf("%s has no pipeline", entity)
			}

			records, err := a.client().Records(cmd.Context(), entity)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", entity, err)
			}
			dot, err := viz.PipelineGraph(cmd.Context(), entity, viz.StageCounts(entity, records))
			if err != nil {
				return err
			}

			if output != "" {
				return os.WriteFile(output, []byte(dot), 0644)
			}
			fmt.Fprintln(cmd.OutOrStdout(), dot)
			return nil
		},
	}
	pipelineCmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")

	dashboardCmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show pipelines and invoice totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := viz.GatherStats(cmd.Context(), a.client())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), viz.RenderDashboard(stats))
			return nil
		},
	}

	cmd.AddCommand(pipelineCmd, dashboardCmd)
	return cmd
}
