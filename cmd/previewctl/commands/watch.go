package commands

import (
	"context"
	"errors"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/preview/internal/client"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/host"
	"github.com/GriffinCanCode/AgentOS/preview/internal/shared/sanitize"
)

func newWatchCommand(a *app) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Re-render a component every time its file changes",
		Long: `watch mounts the file, then re-renders on every save. Rapid saves are
debounced and results of superseded saves are discarded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pipeline host.Pipeline = a.engine()
			if remote {
				pipeline = client.NewPipeline(a.client())
			}
			return watch(cmd.Context(), args[0], pipeline, a.cfg.Preview.Host(),
				a.sanitizer(), a.printer(cmd.OutOrStdout()), a.logger.Component("watch"))
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "render on the preview server")
	return cmd
}

// watch drives a host from file changes until ctx is done. path must name a
// file; stdin cannot be watched.
func watch(ctx context.Context, path string, pipeline host.Pipeline, opts host.Options,
	sanitizer *sanitize.Sanitizer, out *printer, logger *zap.Logger) error {
	if path == "-" {
		return errors.New("cannot watch stdin")
	}
	source, err := readSource(nil, path)
	if err != nil {
		return err
	}

	fw, err := newFileWatcher(path, logger)
	if err != nil {
		return err
	}

	target := &viewPrinter{printer: out, sanitizer: sanitizer, logger: logger}
	h := host.New(pipeline, target, opts, logger)
	defer h.Close()

	if err := h.Update(source); err != nil {
		return err
	}

	return fw.Run(ctx, func(source string) {
		if err := h.Update(source); err != nil {
			logger.Warn("Update rejected", zap.Error(err))
		}
	})
}

// viewPrinter is the host target for watch. Every view but Idle is printed.
type viewPrinter struct {
	mu        sync.Mutex
	printer   *printer
	sanitizer *sanitize.Sanitizer
	logger    *zap.Logger
}

func (v *viewPrinter) Render(view host.View) {
	if view.State == host.StateIdle {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if err := v.printer.View(v.sanitizer.View(view)); err != nil {
		v.logger.Warn("Failed to print view", zap.Error(err))
	}
}
