/*
Package sandbox evaluates transpiled preview code inside an isolated goja runtime.

# Overview

Every evaluation gets its own runtime and its own module environment. Nothing is
reused between attempts, so state written by one run is never visible to the next.

  - Runtime: goja VM with console capture, no timers, no process/require globals
  - Environment: the module/exports/require triple handed to the compiled unit
  - Table: the allow-list of importable module names
  - Evaluator: compiles the unit and invokes it exactly once

# Security Model

The only way evaluated code reaches outside its own scope is require, and require
resolves only names present in the Table. Anything else throws

	Module "fs" is not allowed in preview environment

The capability set (framework object, hooks, module values) is passed as explicit
parameters of the compiled unit:

	(function (React, exports, module, require, useState, ...) { <code> })

# Limits

  - Execution timeout per guarded run (interrupts runaway loops)
  - Call stack depth limit
  - Bounded console capture
*/
package sandbox
