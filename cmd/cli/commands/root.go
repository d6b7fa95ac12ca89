package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/xcrape/xcrape/config"
	"github.com/xcrape/xcrape/internal/actions"
	"github.com/xcrape/xcrape/internal/logger"
	"github.com/xcrape/xcrape/internal/notify"
	"github.com/xcrape/xcrape/internal/session"
	"github.com/xcrape/xcrape/pkg/api/v1/client"
	"github.com/xcrape/xcrape/pkg/api/v1/routes"
)

// flag names
const (
	flagServerAddress = "server-address"
	flagTimeout       = "timeout"
	flagExportDir     = "export-dir"
	flagPollInterval  = "poll-interval"
	flagJSON          = "json"
)

var (
	// apiClient is the shared API client instance
	apiClient client.Client
	// settings holds the resolved configuration: flag > env > default
	settings *config.Config

	// serverAddress holds the target backend address. Flag parsing sets this.
	serverAddress string
	timeout       time.Duration
	exportDir     string

	// newClient builds the API client; tests swap it for a mock
	newClient = client.NewClient
)

// initClient initializes the API client
func initClient() error {
	var err error
	opts := client.DefaultOptions()
	opts.BaseURL = settings.ServerAddress
	opts.Timeout = settings.Timeout

	apiClient, err = newClient(opts)
	return err
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "xcrape",
		Short: "xcrape - submit and inspect scrape jobs",
		Long: `xcrape is a command line client for the scraping backend. It submits scrape
jobs, follows their progress and renders or exports their results.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("error loading configuration: %w", err)
			}

			// Flags the user set explicitly win over the environment
			if cmd.Flags().Changed(flagServerAddress) {
				cfg.ServerAddress = serverAddress
			}
			if cmd.Flags().Changed(flagTimeout) {
				cfg.Timeout = timeout
			}
			if cmd.Flags().Changed(flagExportDir) {
				cfg.ExportDir = exportDir
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			settings = cfg

			logger.Configure(cfg.LogLevel, cmd.ErrOrStderr())
			logger.Debugf("xcrape server address: %s", cfg.ServerAddress)

			return initClient()
		},
	}

	root.PersistentFlags().StringVarP(&serverAddress, flagServerAddress, "s", routes.DefaultBaseURL, "Address of the scraping backend (env: "+config.EnvServerAddress+")")
	root.PersistentFlags().DurationVar(&timeout, flagTimeout, config.DefaultTimeout, "Request timeout (env: "+config.EnvTimeout+")")
	root.PersistentFlags().StringVar(&exportDir, flagExportDir, config.DefaultExportDir, "Directory exports and downloads are saved to (env: "+config.EnvExportDir+")")

	root.AddCommand(newScrapeCmd())
	root.AddCommand(newJobsCmd())
	root.AddCommand(newImagesCmd())
	root.AddCommand(newWatchCmd())
	return root
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = NewRootCmd()

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return RootCmd.Execute()
}

// newDispatcher wires an action dispatcher that reports to the terminal
func newDispatcher(cmd *cobra.Command, sess actions.Session) *actions.Dispatcher {
	return actions.NewDispatcher(actions.Deps{
		Client:    apiClient,
		Session:   sess,
		Saver:     actions.NewLocalSaver(settings.ExportDir),
		Clipboard: actions.SystemClipboard{},
		Notifier:  notify.NewTerminalNotifier(cmd.ErrOrStderr()),
	})
}

// newSession creates a detail session that reports to the terminal
func newSession(cmd *cobra.Command) *session.Controller {
	return session.NewController(apiClient, notify.NewTerminalNotifier(cmd.ErrOrStderr()), nil)
}

// parseJobID parses a positional job ID argument
func parseJobID(arg string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid job ID %q", arg)
	}
	return uint(id), nil
}
