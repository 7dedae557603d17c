package client

import (
	"context"

	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/host"
	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/sandbox"
)

// Pipeline runs previews on a remote server. It implements host.Pipeline so
// a local Host can debounce edits and show the server's results.
type Pipeline struct {
	client *Client
}

// NewPipeline wraps c as a host.Pipeline
func NewPipeline(c *Client) *Pipeline {
	return &Pipeline{client: c}
}

// Run posts source to the server. A Failed response becomes a *RemoteError
// carrying the server's error panel.
func (p *Pipeline) Run(ctx context.Context, source string) (host.Mounted, error) {
	resp, err := p.client.Preview(ctx, source)
	if err != nil {
		return nil, err
	}
	if resp.State == host.StateFailed && resp.Error != nil {
		info := *resp.Error
		info.Console = resp.Console
		return nil, &RemoteError{Info: info}
	}
	return &remoteMount{html: resp.HTML, console: resp.Console}, nil
}

// RemoteError is a pipeline failure reported by the server.
type RemoteError struct {
	Info host.ErrorInfo
}

func (e *RemoteError) Error() string {
	return string(e.Info.Kind) + ": " + e.Info.Message
}

// Describe returns the server's error panel
func (e *RemoteError) Describe() host.ErrorInfo {
	return e.Info
}

// remoteMount holds a server-rendered result. The server already unmounted
// it, so Unmount has nothing to release.
type remoteMount struct {
	html    string
	console []sandbox.LogEntry
}

func (m *remoteMount) HTML() string                { return m.html }
func (m *remoteMount) Console() []sandbox.LogEntry { return m.console }
func (m *remoteMount) Unmount() error              { return nil }
