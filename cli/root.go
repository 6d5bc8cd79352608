// ABOUTME: Root command and shared state for the agencycrm CLI
// ABOUTME: Loads config, builds the logger, and registers every subcommand
package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/harperreed/agencycrm/client"
	"github.com/harperreed/agencycrm/config"
	"github.com/harperreed/agencycrm/logging"
	"github.com/harperreed/agencycrm/models"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type app struct {
	cfg *config.Config
	log zerolog.Logger

	apiURL   string
	apiToken string
	dbPath   string
	logLevel string
}

// NewRootCommand builds the agencycrm command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "agencycrm",
		Short:         "Agency CRM: pipelines, records, and Harvest invoice reconciliation",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.apiURL, "api-url", "", "API base URL (default from config)")
	flags.StringVar(&a.apiToken, "token", "", "API bearer token")
	flags.StringVar(&a.dbPath, "db-path", "", "Database path for serve (default: ~/.local/share/agencycrm/agencycrm.db)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		a.serveCommand(),
		a.listCommand(),
		a.valuesCommand(),
		a.createCommand(),
		a.editCommand(),
		a.deleteCommand(),
		a.moveCommand(),
		a.browseCommand(),
		a.boardCommand(),
		a.invoicesCommand(),
		a.harvestCommand(),
		a.rollupCommand(),
		a.vizCommand(),
		a.mcpCommand(version),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.APIURL = a.apiURL
	}
	if a.apiToken != "" {
		cfg.APIToken = a.apiToken
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	if w := cmd.ErrOrStderr(); w == os.Stderr {
		a.log = logging.New(cfg.LogLevel)
	} else {
		a.log = logging.NewWithWriter(w, cfg.LogLevel)
	}
	return nil
}

func (a *app) client() *client.Client {
	return client.New(a.cfg.APIURL, a.cfg.APIToken)
}

func parseEntity(s string) (models.EntityType, error) {
	return models.ParseEntityType(strings.ToLower(s))
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid ID: %s", s)
	}
	return id, nil
}

// parseAssignments turns field=value arguments into a field map.
func parseAssignments(args []string) (map[string]any, []string, error) {
	fields := make(map[string]any, len(args))
	order := make([]string, 0, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		if _, dup := fields[name]; !dup {
			order = append(order, name)
		}
		fields[name] = value
	}
	return fields, order, nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
