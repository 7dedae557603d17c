package component

import (
	"regexp"
	"strings"

	"github.com/GriffinCanCode/AgentOS/preview/internal/preview/lexical"
)

var (
	// export [async] function [*] Name, export [abstract] class Name,
	// export [const] enum Name, export const|let|var Name
	declExport = regexp.MustCompile(`\bexport\s+(?:declare\s+)?(?:async\s+)?(?:function\b\s*\*?\s*|(?:abstract\s+)?class\s+|(?:const\s+)?enum\s+|(?:const|let|var)\s+)([A-Za-z_$][\w$]*)`)
	// export [type] { a, b as c } [from "m"]
	listExport = regexp.MustCompile(`\bexport\s*(type\s+)?\{([^}]*)\}`)
)

// ExportOrder returns the names a module source exports, in the order they
// are first declared. The default export is left out. The scan is textual:
// destructured and computed exports are missed, and callers fall back to the
// runtime key order for those.
func ExportOrder(source string) []string {
	spans := lexical.Scan(source)

	type hit struct {
		at    int
		names []string
	}
	var hits []hit

	for _, loc := range declExport.FindAllStringSubmatchIndex(source, -1) {
		if lexical.KindAt(spans, loc[0]) != lexical.Code {
			continue
		}
		hits = append(hits, hit{at: loc[0], names: []string{source[loc[2]:loc[3]]}})
	}
	for _, loc := range listExport.FindAllStringSubmatchIndex(source, -1) {
		if loc[2] >= 0 || lexical.KindAt(spans, loc[0]) != lexical.Code {
			continue
		}
		hits = append(hits, hit{at: loc[0], names: listNames(source[loc[4]:loc[5]])})
	}

	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].at < hits[j-1].at; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	seen := make(map[string]bool)
	var names []string
	for _, h := range hits {
		for _, name := range h.names {
			if name != "default" && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// listNames returns the exported names of an export list body.
func listNames(body string) []string {
	var names []string
	for _, spec := range strings.Split(body, ",") {
		fields := strings.Fields(spec)
		switch {
		case len(fields) == 0:
		case fields[0] == "type" && len(fields) > 1:
		case len(fields) == 3 && fields[1] == "as":
			names = append(names, strings.Trim(fields[2], `"'`))
		case len(fields) == 1:
			names = append(names, fields[0])
		}
	}
	return names
}
