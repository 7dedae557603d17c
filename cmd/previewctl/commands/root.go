package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/AgentOS/preview/internal/client"
	"github.com/GriffinCanCode/AgentOS/preview/internal/config"
	"github.com/GriffinCanCode/AgentOS/preview/internal/logging"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/sanitize"
)

// app is the state shared by every subcommand.
type app struct {
	configPath string
	serverURL  string
	output     string
	noColor    bool
	verbose    bool

	cfg    *config.Config
	logger *logging.Logger
}

// Execute runs the root command with os.Args and prints any error to stderr.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errPreviewFailed) {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
	}
	return err
}

// NewRootCommand builds the previewctl command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "previewctl",
		Short:         "Render TSX/JSX preview components",
		Long:          `previewctl runs untrusted component source through the preview pipeline and prints the mounted HTML or the error panel.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "TOML config file applied over the environment")
	flags.StringVar(&a.serverURL, "server", "", "preview server URL (default: PREVIEW_SERVER_URL or http://localhost:8000)")
	flags.StringVarP(&a.output, "output", "o", formatText, "output format: text, html, json or yaml")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log pipeline activity to stderr")

	root.AddCommand(
		newRenderCommand(a),
		newTranspileCommand(a),
		newWatchCommand(a),
		newRemoteCommand(a),
		newModulesCommand(a),
	)

	return root
}

func (a *app) setup() error {
	if !validFormat(a.output) {
		return fmt.Errorf("unknown output format %q", a.output)
	}

	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFile(a.configPath)
		if err != nil {
			return err
		}
	} else {
		a.cfg = config.LoadOrDefault()
	}
	if a.serverURL != "" {
		a.cfg.Remote.URL = a.serverURL
	}

	logCfg := logging.Config{Level: "warn", Development: true, OutputPaths: []string{"stderr"}}
	if a.verbose {
		logCfg.Level = "debug"
	}
	a.logger, err = logging.New(logCfg)
	return err
}

func (a *app) engine() *preview.Engine {
	return preview.NewEngine(a.cfg.Preview.Engine(), preview.DefaultTable(), a.logger.Component("engine"), nil)
}

func (a *app) sanitizer() *sanitize.Sanitizer {
	return sanitize.New(a.cfg.Preview.Sanitize)
}

func (a *app) client() *client.Client {
	opts := client.DefaultOptions()
	opts.BaseURL = a.cfg.Remote.URL
	opts.Timeout = a.cfg.Remote.Timeout
	return client.New(opts, a.logger.Component("client"))
}

func (a *app) printer(w io.Writer) *printer {
	return newPrinter(w, a.output, !a.noColor && !color.NoColor)
}
