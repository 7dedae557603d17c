// Package transpile compiles TypeScript/JSX preview source to CommonJS.
package transpile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/lexical"
)

// sourceFile is the file name reported by the compiler.
const sourceFile = "preview.tsx"

// blankRuns matches two or more consecutive blank lines.
var blankRuns = regexp.MustCompile(`\n(?:[ \t]*\n){2,}`)

// options is the fixed compiler configuration. esbuild never type checks, so
// type errors never block execution.
var options = api.TransformOptions{
	Sourcefile:  sourceFile,
	Loader:      api.LoaderTSX,
	Format:      api.FormatCommonJS,
	Target:      api.ES2015,
	JSX:         api.JSXTransform,
	JSXFactory:  "React.createElement",
	JSXFragment: "React.Fragment",
	Charset:     api.CharsetUTF8,
	LogLevel:    api.LogLevelSilent,
}

// Diagnostic is one blocking compiler message. Line is 1-based; 0 means the
// position is unknown.
type Diagnostic struct {
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("line %d: %s", d.Line, d.Message)
	}
	return d.Message
}

// Result is the outcome of one compilation. Code is empty whenever Errors is
// not.
type Result struct {
	Code         string       `json:"code"`
	Errors       []Diagnostic `json:"errors,omitempty"`
	OriginalCode string       `json:"originalCode"`
}

// Err returns the diagnostics as a single *Error, or nil.
func (r *Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return &Error{Diagnostics: r.Errors}
}

// Error is a failed compilation.
type Error struct {
	Diagnostics []Diagnostic
}

func (e *Error) Error() string {
	lines := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}

// Transpile compiles source. Compiler panics are reported as a single
// diagnostic without a line.
func Transpile(source string) (result Result) {
	code := Normalize(source)
	result.OriginalCode = code

	defer func() {
		if r := recover(); r != nil {
			result.Code = ""
			result.Errors = []Diagnostic{{Message: fmt.Sprintf("internal compiler error: %v", r)}}
		}
	}()

	out := api.Transform(code, options)
	for _, msg := range out.Errors {
		d := Diagnostic{Message: msg.Text}
		if msg.Location != nil {
			d.Line = msg.Location.Line
		}
		result.Errors = append(result.Errors, d)
	}
	if len(result.Errors) == 0 {
		result.Code = string(out.Code)
	}
	return result
}

// Normalize strips leading whitespace and collapses runs of blank lines into
// one. Literals and comments are copied verbatim, so it never changes what
// the code means.
func Normalize(source string) string {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	source = strings.TrimLeft(source, " \t\r\n")
	return lexical.MapCode(source, func(code string) string {
		return blankRuns.ReplaceAllString(code, "\n\n")
	})
}
