// Package imports rewrites static ES import declarations into require calls.
//
// The rewrite is textual and best-effort. Declarations it does not recognise
// are left as they are; errors surface later, at compile or evaluation time.
package imports

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/lexical"
)

var (
	// import [type] <clause> from "m"
	fromImport = regexp.MustCompile(`(?m)^([ \t]*)import\s+(type\s+)?([^;'"]+?)\s*from\s*(['"])([^'"\n]+)(['"])[ \t]*;?`)
	// import "m"
	bareImport = regexp.MustCompile(`(?m)^([ \t]*)import\s*(['"])([^'"\n]+)(['"])[ \t]*;?`)

	identifier = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
	quotedName = regexp.MustCompile(`^(?:"[^"]*"|'[^']*')$`)
)

// tempPrefix names the temporaries that hold a module shared by a default and
// a named or namespace binding.
const tempPrefix = "__preview_import_"

// clause is a parsed import clause.
type clause struct {
	def       string
	namespace string
	named     []string // destructuring entries, "a" or "a: b"
}

// Rewrite replaces every recognised import declaration with var bindings
// assigned from require(<module>). Binding names are preserved, type-only
// imports are erased and the line count of the source is kept intact.
func Rewrite(source string) string {
	temps := 0

	out := replaceInCode(fromImport, source, func(stmt string) string {
		m := fromImport.FindStringSubmatch(stmt)
		indent, typeOnly, raw, module := m[1], m[2] != "", m[3], m[5]
		if m[4] != m[6] {
			return stmt
		}
		if typeOnly {
			return indent + padLines(stmt, "")
		}

		c, ok := parseClause(raw)
		if !ok {
			return stmt
		}
		code := c.emit(module, &temps)
		return indent + padLines(stmt, code)
	})

	return replaceInCode(bareImport, out, func(stmt string) string {
		m := bareImport.FindStringSubmatch(stmt)
		if m[2] != m[4] {
			return stmt
		}
		return m[1] + padLines(stmt, requireCall(m[3])+";")
	})
}

// replaceInCode is ReplaceAllStringFunc restricted to matches that start in
// code. Lines inside template literals, strings and comments are untouched.
func replaceInCode(re *regexp.Regexp, source string, fn func(string) string) string {
	locs := codeMatches(re, source)
	if len(locs) == 0 {
		return source
	}
	var b strings.Builder
	b.Grow(len(source))
	last := 0
	for _, loc := range locs {
		b.WriteString(source[last:loc[0]])
		b.WriteString(fn(source[loc[0]:loc[1]]))
		last = loc[1]
	}
	b.WriteString(source[last:])
	return b.String()
}

// codeMatches returns the submatch indices of re whose match starts in code.
func codeMatches(re *regexp.Regexp, source string) [][]int {
	all := re.FindAllStringSubmatchIndex(source, -1)
	if len(all) == 0 {
		return nil
	}
	spans := lexical.Scan(source)
	locs := all[:0]
	for _, loc := range all {
		if lexical.KindAt(spans, loc[0]) == lexical.Code {
			locs = append(locs, loc)
		}
	}
	return locs
}

// Specifiers returns the module names of recognised runtime imports, in
// order of first appearance.
func Specifiers(source string) []string {
	type hit struct {
		at   int
		name string
	}
	var hits []hit

	for _, loc := range codeMatches(fromImport, source) {
		if loc[4] >= 0 {
			continue // import type
		}
		c, ok := parseClause(source[loc[6]:loc[7]])
		if !ok || c.typeOnly() {
			continue
		}
		hits = append(hits, hit{at: loc[0], name: source[loc[10]:loc[11]]})
	}
	for _, loc := range codeMatches(bareImport, source) {
		hits = append(hits, hit{at: loc[0], name: source[loc[6]:loc[7]]})
	}

	// Two passes over the same text; restore source order.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].at < hits[j-1].at; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	seen := make(map[string]bool, len(hits))
	names := make([]string, 0, len(hits))
	for _, h := range hits {
		if !seen[h.name] {
			seen[h.name] = true
			names = append(names, h.name)
		}
	}
	return names
}

func parseClause(raw string) (clause, bool) {
	var c clause
	rest := strings.TrimSpace(raw)
	if rest == "" {
		return c, false
	}

	if !strings.HasPrefix(rest, "{") && !strings.HasPrefix(rest, "*") {
		def, tail, _ := strings.Cut(rest, ",")
		def = strings.TrimSpace(def)
		if !identifier.MatchString(def) {
			return c, false
		}
		c.def = def
		rest = strings.TrimSpace(tail)
		if rest == "" {
			return c, true
		}
	}

	switch {
	case strings.HasPrefix(rest, "*"):
		ns := strings.TrimSpace(strings.TrimPrefix(rest, "*"))
		if !strings.HasPrefix(ns, "as") {
			return c, false
		}
		ns = strings.TrimSpace(strings.TrimPrefix(ns, "as"))
		if !identifier.MatchString(ns) {
			return c, false
		}
		c.namespace = ns
		return c, true

	case strings.HasPrefix(rest, "{") && strings.HasSuffix(rest, "}"):
		body := rest[1 : len(rest)-1]
		for _, spec := range strings.Split(body, ",") {
			spec = strings.Join(strings.Fields(spec), " ")
			if spec == "" {
				continue
			}
			if strings.HasPrefix(spec, "type ") {
				c.named = append(c.named, "")
				continue
			}
			entry, ok := namedEntry(spec)
			if !ok {
				return c, false
			}
			c.named = append(c.named, entry)
		}
		return c, true
	}
	return c, false
}

// namedEntry turns "a" or "a as b" into a destructuring entry.
func namedEntry(spec string) (string, bool) {
	name, alias, found := strings.Cut(spec, " as ")
	name, alias = strings.TrimSpace(name), strings.TrimSpace(alias)

	if !found {
		if !identifier.MatchString(name) {
			return "", false
		}
		return name, true
	}
	if !identifier.MatchString(alias) {
		return "", false
	}
	if !identifier.MatchString(name) && !quotedName.MatchString(name) {
		return "", false
	}
	if name == alias {
		return name, true
	}
	return name + ": " + alias, true
}

// typeOnly reports whether every named specifier was a type.
func (c clause) typeOnly() bool {
	if c.def != "" || c.namespace != "" || len(c.named) == 0 {
		return false
	}
	for _, n := range c.named {
		if n != "" {
			return false
		}
	}
	return true
}

func (c clause) entries() []string {
	out := make([]string, 0, len(c.named))
	for _, n := range c.named {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

func (c clause) emit(module string, temps *int) string {
	req := requireCall(module)
	named := c.entries()

	if c.typeOnly() {
		return ""
	}

	switch {
	case c.def == "" && c.namespace != "":
		return fmt.Sprintf("var %s = %s;", c.namespace, req)
	case c.def == "" && len(named) == 0:
		return req + ";"
	case c.def == "":
		return fmt.Sprintf("var { %s } = %s;", strings.Join(named, ", "), req)
	case c.namespace == "" && len(named) == 0:
		return fmt.Sprintf("var %s = %s.default;", c.def, req)
	}

	tmp := fmt.Sprintf("%s%d", tempPrefix, *temps)
	*temps++

	parts := []string{
		fmt.Sprintf("var %s = %s;", tmp, req),
		fmt.Sprintf("var %s = %s.default;", c.def, tmp),
	}
	if c.namespace != "" {
		parts = append(parts, fmt.Sprintf("var %s = %s;", c.namespace, tmp))
	} else {
		parts = append(parts, fmt.Sprintf("var { %s } = %s;", strings.Join(named, ", "), tmp))
	}
	return strings.Join(parts, " ")
}

func requireCall(module string) string {
	return fmt.Sprintf("require(%q)", module)
}

// padLines appends the newlines of stmt that the replacement dropped.
func padLines(stmt, replacement string) string {
	if n := strings.Count(stmt, "\n") - strings.Count(replacement, "\n"); n > 0 {
		return replacement + strings.Repeat("\n", n)
	}
	return replacement
}
