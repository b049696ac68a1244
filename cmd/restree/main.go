package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
	"github.com/fatih/color"

	"github.com/broady/restree"
	"github.com/broady/restree/config"
	"github.com/broady/restree/internal/decl"
	"github.com/broady/restree/typeref"
)

type CLI struct {
	Globals `embed:""`

	Version VersionCmd `cmd:"" help:"Print version information."`
	Check   CheckCmd   `cmd:"" help:"Merge and validate resource declarations."`
	Routes  RoutesCmd  `cmd:"" help:"Print the merged resource tree."`
}

// Globals are the flags shared by all commands.
type Globals struct {
	Package  string `help:"Go package pattern whose types resolve names in declarations." short:"p"`
	Dir      string `help:"Directory to load the package from." default:"."`
	LogLevel string `help:"Log level for build output (debug, info, warn, error). Defaults to RESTREE_LOG_LEVEL, then warn." name:"log-level"`
	NoColor  bool   `help:"Disable colored output." name:"no-color"`
}

// output carries the writers commands print to.
type output struct {
	stdout io.Writer
	stderr io.Writer
}

// errFatal is returned when the merged model has fatal issues.
var errFatal = errors.New("resource model has fatal issues")

type VersionCmd struct{}

func (c *VersionCmd) Run(out *output) error {
	fmt.Fprintln(out.stdout, Version())
	return nil
}

type CheckCmd struct {
	Files []string `arg:"" help:"Declaration files (.yaml, .yml, .toml)." type:"existingfile"`
}

func (c *CheckCmd) Run(g *Globals, out *output) error {
	model, diags, err := g.build(out, c.Files)
	if err != nil {
		return err
	}

	r := newReporter(out.stdout)
	r.diagnostics(diags)
	if model != nil {
		r.summary(len(model.Bag().RootResources()), len(model.Routes()), diags)
	} else {
		r.summary(0, 0, diags)
	}

	if hasFatal(diags) {
		return errFatal
	}
	return nil
}

type RoutesCmd struct {
	Files []string `arg:"" help:"Declaration files (.yaml, .yml, .toml)." type:"existingfile"`
	Table bool     `help:"Print the dispatch table instead of the tree."`
}

func (c *RoutesCmd) Run(g *Globals, out *output) error {
	model, diags, err := g.build(out, c.Files)
	if err != nil {
		return err
	}
	if model == nil {
		newReporter(out.stderr).diagnostics(diags)
		return errFatal
	}

	r := newReporter(out.stdout)
	if c.Table {
		r.routes(model.Routes())
	} else {
		r.tree(model.Bag())
	}
	return nil
}

// build loads files and builds a model. The model is nil when merging
// failed; fatal validation issues are reported but do not prevent the
// model from being built.
func (g *Globals) build(out *output, files []string) (*restree.Model, []restree.Diagnostic, error) {
	if g.NoColor {
		color.NoColor = true
	}

	var scope *typeref.Scope
	if g.Package != "" {
		types, err := typeref.LoadPackage(g.Dir, g.Package)
		if err != nil {
			return nil, nil, err
		}
		scope = &typeref.Scope{Types: types}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	level := slog.LevelWarn
	switch {
	case g.LogLevel != "":
		if level, err = config.ParseLevel(g.LogLevel); err != nil {
			return nil, nil, fmt.Errorf("--log-level: %w", err)
		}
	case cfg.LogLevel != "":
		level = cfg.SlogLevel()
	}
	logger := newLogger(out.stderr, level)

	resources, err := decl.LoadResources(scope, files...)
	if err != nil {
		return nil, nil, err
	}

	model, err := restree.NewApp().
		WithConfig(cfg).
		WithLogger(logger).
		WithResolver(restree.DeclarationResolver()).
		WithIgnoreValidationErrors().
		Register(resources...).
		Build()
	if err != nil {
		var buildErr *restree.BuildError
		if errors.As(err, &buildErr) {
			return nil, buildErr.Diagnostics, nil
		}
		return nil, nil, err
	}
	return model, model.Diagnostics(), nil
}

// newLogger returns a logger writing to w. Levels share slog's values.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(log.NewWithOptions(w, log.Options{
		Level:  log.Level(level),
		Prefix: "restree",
	}))
}

func hasFatal(diags []restree.Diagnostic) bool {
	for _, d := range diags {
		if d.Fatal() {
			return true
		}
	}
	return false
}

// run parses args and runs the selected command, returning the exit code.
func run(args []string, stdout, stderr io.Writer, exit func(int)) int {
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("restree"),
		kong.Description("Check and inspect REST resource declarations."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Exit(exit),
		kong.Bind(&output{stdout: stdout, stderr: stderr}),
	)
	if err != nil {
		fmt.Fprintf(stderr, "restree: %v\n", err)
		return 2
	}

	ctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "restree: %v\n", err)
		return 2
	}
	if err := ctx.Run(&cli.Globals); err != nil {
		fmt.Fprintf(stderr, "restree: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, os.Exit))
}
