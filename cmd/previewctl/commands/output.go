package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/fatih/color"
	"github.com/goccy/go-yaml"

	previewhttp "github.com/GriffinCanCode/AgentOS/preview/internal/http"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/host"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/sandbox"
)

const (
	formatText = "text"
	formatHTML = "html"
	formatJSON = "json"
	formatYAML = "yaml"
)

func validFormat(format string) bool {
	switch format {
	case formatText, formatHTML, formatJSON, formatYAML:
		return true
	}
	return false
}

// printer writes command results in the selected format.
type printer struct {
	w      io.Writer
	format string

	ok    *color.Color
	fail  *color.Color
	faint *color.Color
	warn  *color.Color
	head  *color.Color
}

func newPrinter(w io.Writer, format string, colored bool) *printer {
	p := &printer{
		w:      w,
		format: format,
		ok:     color.New(color.FgGreen, color.Bold),
		fail:   color.New(color.FgRed, color.Bold),
		faint:  color.New(color.Faint),
		warn:   color.New(color.FgYellow),
		head:   color.New(color.FgCyan),
	}
	for _, c := range []*color.Color{p.ok, p.fail, p.faint, p.warn, p.head} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Preview prints one pipeline result.
func (p *printer) Preview(resp previewhttp.PreviewResponse) error {
	switch p.format {
	case formatJSON, formatYAML:
		return p.encode(resp)
	case formatHTML:
		if resp.State == host.StateMounted {
			_, err := fmt.Fprintln(p.w, resp.HTML)
			return err
		}
		return p.panel(resp)
	default:
		return p.panel(resp)
	}
}

// View prints a view produced by a watching host.
func (p *printer) View(view host.View) error {
	if p.format == formatText && view.State == host.StateLoading {
		_, err := p.faint.Fprintf(p.w, "… %s\n", view.Fallback)
		return err
	}
	return p.Preview(previewhttp.PreviewResponse{View: view})
}

func (p *printer) panel(resp previewhttp.PreviewResponse) error {
	var b strings.Builder

	switch resp.State {
	case host.StateMounted:
		p.ok.Fprint(&b, "● mounted")
		if resp.Component != "" {
			fmt.Fprintf(&b, "  %s", resp.Component)
			if resp.Shape != "" {
				fmt.Fprintf(&b, " (%s)", resp.Shape)
			}
		}
		p.duration(&b, resp.DurationMs)
		b.WriteString("\n")
		if resp.HTML != "" {
			b.WriteString(resp.HTML)
			b.WriteString("\n")
		}
	case host.StateFailed:
		info := resp.Error
		if info == nil {
			info = &host.ErrorInfo{Kind: host.KindRuntime, Label: host.KindRuntime.Label()}
		}
		p.fail.Fprintf(&b, "✗ %s", info.Label)
		p.duration(&b, resp.DurationMs)
		b.WriteString("\n")
		if info.Message != "" {
			b.WriteString(info.Message)
			b.WriteString("\n")
		}
		if info.Stack != "" && info.Stack != info.Message {
			p.faint.Fprintln(&b, info.Stack)
		}
		for _, d := range resp.Diagnostics {
			p.warn.Fprintf(&b, "  %s\n", d.String())
		}
		if len(resp.Candidates) > 0 {
			p.head.Fprintln(&b, "exports:")
			for _, c := range resp.Candidates {
				fmt.Fprintf(&b, "  %s: %s", c.Name, c.Shape)
				if c.Reason != "" {
					p.faint.Fprintf(&b, " (%s)", c.Reason)
				}
				b.WriteString("\n")
			}
		}
	default:
		fmt.Fprintf(&b, "%s\n", resp.State)
	}

	p.console(&b, resp.Console)
	_, err := io.WriteString(p.w, b.String())
	return err
}

func (p *printer) duration(b *strings.Builder, ms float64) {
	if ms > 0 {
		p.faint.Fprintf(b, "  %.1fms", ms)
	}
}

func (p *printer) console(b *strings.Builder, entries []sandbox.LogEntry) {
	if len(entries) == 0 {
		return
	}
	p.head.Fprintln(b, "console:")
	for _, e := range entries {
		level := p.faint
		switch e.Level {
		case "warn":
			level = p.warn
		case "error":
			level = p.fail
		}
		level.Fprintf(b, "  [%s]", e.Level)
		fmt.Fprintf(b, " %s\n", e.Message)
	}
}

// Transpile prints compile output.
func (p *printer) Transpile(resp previewhttp.TranspileResponse) error {
	switch p.format {
	case formatJSON, formatYAML:
		return p.encode(resp)
	}

	if !resp.OK {
		var b strings.Builder
		p.fail.Fprintln(&b, "✗ "+host.KindCompile.Label())
		for _, d := range resp.Diagnostics {
			p.warn.Fprintf(&b, "  %s\n", d.String())
		}
		_, err := io.WriteString(p.w, b.String())
		return err
	}
	_, err := io.WriteString(p.w, resp.Code)
	return err
}

// Modules prints the import allow-list.
func (p *printer) Modules(modules []sandbox.ModuleSpec) error {
	switch p.format {
	case formatJSON, formatYAML:
		return p.encode(map[string]any{"modules": modules})
	}

	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODULE\tEXPORTS\tDESCRIPTION")
	for _, m := range modules {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, strings.Join(m.Exports, ", "), m.Description)
	}
	return tw.Flush()
}

// encode writes v as indented JSON, or as YAML converted from that JSON so
// both formats share field names.
func (p *printer) encode(v any) error {
	data, err := sonic.ConfigDefault.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	if p.format == formatYAML {
		data, err = yaml.JSONToYAML(data)
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
	}
	if _, err := p.w.Write(data); err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		_, err = io.WriteString(p.w, "\n")
	}
	return err
}
