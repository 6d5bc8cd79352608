// ABOUTME: API server subcommand
// ABOUTME: Opens the database, wires Harvest when configured, and serves until interrupted
package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/agencycrm/billing"
	"github.com/harperreed/agencycrm/db"
	"github.com/harperreed/agencycrm/web"
	"github.com/spf13/cobra"
)

func (a *app) serveCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the JSON API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen == "" {
				listen = a.cfg.Listen
			}

			database, err := db.OpenDatabase(a.cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer database.Close()
			a.log.Info().Str("path", a.cfg.DBPath).Msg("database opened")

			var source billing.HarvestSource
			if a.cfg.Harvest.Configured() {
				source = billing.NewHarvestClient(a.cfg.Harvest.BaseURL, a.cfg.Harvest.AccountID, a.cfg.Harvest.AccessToken)
			} else {
				a.log.Warn().Msg("Harvest credentials not set, invoice sync disabled")
			}

			reconciler := billing.NewReconciler(database, source, a.log)
			server := web.NewServer(database, reconciler, a.cfg.APIToken, a.log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := server.Start(ctx, listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (default from config, :8080)")
	return cmd
}
