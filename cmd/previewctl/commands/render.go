package commands

import (
	"errors"

	"github.com/spf13/cobra"

	previewhttp "github.com/GriffinCanCode/AgentOS/preview/internal/http"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/host"
)

// errPreviewFailed makes the process exit non-zero after the error panel has
// already been printed.
var errPreviewFailed = errors.New("preview failed")

func newRenderCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "render <file|->",
		Short: "Render a component once in-process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}

			resp := previewhttp.RunPreview(cmd.Context(), a.engine(), source, a.logger.Component("render"))
			resp.View.Height = a.cfg.Preview.Height
			resp.View = a.sanitizer().View(resp.View)
			return a.report(cmd, resp)
		},
	}
}

func newRemoteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remote <file|->",
		Short: "Render a component once on a preview server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}

			resp, err := a.client().Preview(cmd.Context(), source)
			if err != nil {
				return err
			}
			return a.report(cmd, *resp)
		},
	}
}

func (a *app) report(cmd *cobra.Command, resp previewhttp.PreviewResponse) error {
	if err := a.printer(cmd.OutOrStdout()).Preview(resp); err != nil {
		return err
	}
	if resp.State == host.StateFailed {
		return errPreviewFailed
	}
	return nil
}

func newTranspileCommand(a *app) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "transpile <file|->",
		Short: "Rewrite imports and transpile without evaluating",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}

			var resp previewhttp.TranspileResponse
			if remote {
				out, err := a.client().Transpile(cmd.Context(), source)
				if err != nil {
					return err
				}
				resp = *out
			} else {
				comp := a.engine().Compile(source)
				resp = previewhttp.TranspileResponse{
					OK:           len(comp.Result.Errors) == 0,
					Rewritten:    comp.Rewritten,
					Code:         comp.Result.Code,
					Imports:      comp.Imports,
					Diagnostics:  comp.Result.Errors,
					OriginalCode: comp.Result.OriginalCode,
				}
			}

			if err := a.printer(cmd.OutOrStdout()).Transpile(resp); err != nil {
				return err
			}
			if !resp.OK {
				return errPreviewFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "transpile on the preview server")
	return cmd
}

func newModulesCommand(a *app) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List the modules preview code may import",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if remote {
				modules, err := a.client().Modules(cmd.Context())
				if err != nil {
					return err
				}
				return a.printer(cmd.OutOrStdout()).Modules(modules)
			}
			return a.printer(cmd.OutOrStdout()).Modules(a.engine().Table().Specs())
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "ask the preview server")
	return cmd
}
