package imports

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewrite(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "namespace",
			source: `import * as React from "react";`,
			want:   `var React = require("react");`,
		},
		{
			name:   "named",
			source: `import { useState, useEffect as effect } from 'react'`,
			want:   `var { useState, useEffect: effect } = require("react");`,
		},
		{
			name:   "default",
			source: `import React from "react";`,
			want:   `var React = require("react").default;`,
		},
		{
			name:   "default and named",
			source: `import React, { useState } from "react";`,
			want:   `var __preview_import_0 = require("react"); var React = __preview_import_0.default; var { useState } = __preview_import_0;`,
		},
		{
			name:   "default and namespace",
			source: `import React, * as All from "react";`,
			want:   `var __preview_import_0 = require("react"); var React = __preview_import_0.default; var All = __preview_import_0;`,
		},
		{
			name:   "side effect",
			source: `import "react-error-boundary";`,
			want:   `require("react-error-boundary");`,
		},
		{
			name:   "type only",
			source: `import type { FC } from "react";`,
			want:   ``,
		},
		{
			name:   "inline type specifier",
			source: `import { type FC, useMemo } from "react";`,
			want:   `var { useMemo } = require("react");`,
		},
		{
			name:   "all specifiers are types",
			source: `import { type FC } from "react";`,
			want:   ``,
		},
		{
			name:   "empty braces",
			source: `import {} from "react";`,
			want:   `require("react");`,
		},
		{
			name:   "default named type",
			source: `import type from "react";`,
			want:   `var type = require("react").default;`,
		},
		{
			name:   "indented",
			source: "  import { jsx } from \"react/jsx-runtime\";",
			want:   "  var { jsx } = require(\"react/jsx-runtime\");",
		},
		{
			name:   "unrecognised clause is left alone",
			source: `import 42 from "react";`,
			want:   `import 42 from "react";`,
		},
		{
			name:   "dynamic import untouched",
			source: `const m = import("react");`,
			want:   `const m = import("react");`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rewrite(tt.source))
		})
	}
}

func TestRewritePreservesLines(t *testing.T) {
	source := strings.Join([]string{
		"import React, {",
		"  useState,",
		"  useEffect,",
		"} from \"react\";",
		"import { ErrorBoundary } from \"react-error-boundary\";",
		"",
		"export default function App() { return null; }",
	}, "\n")

	out := Rewrite(source)

	assert.Equal(t, strings.Count(source, "\n"), strings.Count(out, "\n"))
	lines := strings.Split(out, "\n")
	assert.Contains(t, lines[0], "var { useState, useEffect } = __preview_import_0;")
	assert.Equal(t, `var { ErrorBoundary } = require("react-error-boundary");`, lines[4])
	assert.Equal(t, "export default function App() { return null; }", lines[6])
	assert.NotContains(t, out, "import ")
}

func TestRewriteUsesDistinctTemporaries(t *testing.T) {
	out := Rewrite("import A, { a } from \"x\";\nimport B, { b } from \"y\";")

	assert.Contains(t, out, "__preview_import_0 = require(\"x\")")
	assert.Contains(t, out, "__preview_import_1 = require(\"y\")")
}

func TestSpecifiers(t *testing.T) {
	source := `
import "side-effect";
import React, { useState } from "react";
import type { FC } from "types-only";
import { type Props } from "also-types";
import * as Runtime from "react/jsx-runtime";
import { useMemo } from "react";
`
	assert.Equal(t, []string{"side-effect", "react", "react/jsx-runtime"}, Specifiers(source))
	assert.Empty(t, Specifiers("export default 1"))
}

func TestRewriteSkipsLiteralsAndComments(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"template literal", "const doc = `\nimport React from \"react\";\n`;"},
		{"block comment", "/*\nimport { x } from \"y\";\n*/"},
		{"template side effect", "const s = `a\nimport \"polyfill\"\nb`;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.source, Rewrite(tt.source))
			assert.Empty(t, Specifiers(tt.source))
		})
	}
}

func TestRewriteAfterTemplateLiteral(t *testing.T) {
	source := "const s = `import a from \"b\"`;\nimport { c } from \"d\";"

	assert.Equal(t, "const s = `import a from \"b\"`;\nvar { c } = require(\"d\");", Rewrite(source))
	assert.Equal(t, []string{"d"}, Specifiers(source))
}
