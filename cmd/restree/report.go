package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/broady/restree"
)

type reporter struct {
	w      io.Writer
	fatal  *color.Color
	warn   *color.Color
	ok     *color.Color
	faint  *color.Color
	method *color.Color
}

func newReporter(w io.Writer) *reporter {
	return &reporter{
		w:      w,
		fatal:  color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow),
		ok:     color.New(color.FgGreen),
		faint:  color.New(color.Faint),
		method: color.New(color.FgCyan),
	}
}

func (r *reporter) diagnostics(diags []restree.Diagnostic) {
	for _, d := range diags {
		label := r.warn.Sprint("warning")
		if d.Fatal() {
			label = r.fatal.Sprint("fatal")
		}
		fmt.Fprintf(r.w, "%s %s %s\n    %s\n", label, r.faint.Sprintf("[%s]", d.Code), d.Subject, d.Message)
	}
}

func (r *reporter) summary(roots, routes int, diags []restree.Diagnostic) {
	var fatals, warnings int
	for _, d := range diags {
		if d.Fatal() {
			fatals++
		} else {
			warnings++
		}
	}
	switch {
	case fatals > 0:
		fmt.Fprintln(r.w, r.fatal.Sprintf("✗ %d fatal issue(s), %d warning(s)", fatals, warnings))
	case warnings > 0:
		fmt.Fprintln(r.w, r.warn.Sprintf("✓ %d root resource(s), %d route(s), %d warning(s)", roots, routes, warnings))
	default:
		fmt.Fprintln(r.w, r.ok.Sprintf("✓ %d root resource(s), %d route(s), no issues", roots, routes))
	}
}

// tree prints the merged resources, one per line, indented by depth.
func (r *reporter) tree(bag *restree.Bag) {
	var walk func(depth int, res *restree.Resource)
	walk = func(depth int, res *restree.Resource) {
		indent := strings.Repeat("  ", depth)
		path := res.Path()
		if depth == 0 {
			path = restree.JoinPath("", path)
		}

		var verbs []string
		for _, m := range res.ResourceMethods() {
			verbs = append(verbs, r.method.Sprint(m.HTTPMethod()))
		}
		if res.Locator() != nil {
			verbs = append(verbs, r.method.Sprint("*"))
		}

		line := indent + path
		if len(verbs) > 0 {
			line += " [" + strings.Join(verbs, " ") + "]"
		}
		fmt.Fprintln(r.w, line+" "+r.faint.Sprintf("(%s)", strings.Join(res.Names(), ", ")))
		for _, c := range res.Children() {
			walk(depth+1, c)
		}
	}
	for _, res := range bag.RootResources() {
		walk(0, res)
	}
}

// routes prints the dispatch table in matching order.
func (r *reporter) routes(routes []restree.Route) {
	tw := tabwriter.NewWriter(r.w, 0, 4, 2, ' ', 0)
	for _, rt := range routes {
		method := rt.HTTPMethod
		if rt.IsLocator() {
			method = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", method, rt.Path, rt.Handler)
	}
	tw.Flush()
}
