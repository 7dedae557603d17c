/*
Package preview turns one untrusted TypeScript/JSX source string into a mounted,
rendered component.

# Pipeline

	source -> imports.Rewrite -> transpile.Transpile -> sandbox.Evaluator
	       -> component.Normalize -> react.Root.Render

Any stage may fail. Failures are returned as *Error carrying one of four kinds:

  - KindCompile: the transpiler reported blocking diagnostics
  - KindRuntime: evaluating the module threw (disallowed imports included)
  - KindNoComponent: no export qualifies as a component
  - KindRender: the mounted component threw while rendering or in an effect

Type errors never block execution; only syntax errors are fatal at compile time.

# Hosting

Engine implements host.Pipeline. A host.Host debounces edits, supersedes stale
attempts and renders either the mounted HTML or an error panel.

	engine := preview.NewEngine(preview.DefaultConfig(), preview.DefaultTable(), logger, metrics)
	h := host.New(engine, target, host.DefaultOptions(), logger)
	h.Update(source)
*/
package preview
