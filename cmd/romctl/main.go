package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"slices"
	"syscall"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/mds/slice"
	"github.com/kr/pretty"
	"go.uber.org/zap"

	"github.com/danderson/rom"
	"github.com/danderson/rom/codec"
	"github.com/danderson/rom/internal/romgen"
	"github.com/danderson/rom/kmd"
	"github.com/danderson/rom/objects"
)

var globalArgs struct {
	Config  string `flag:"config,Path to a TOML configuration file"`
	Format  string `flag:"format,Wire format of input files (json or cbor), default by file extension"`
	Verbose bool   `flag:"verbose,Log debug output to stderr"`
}

func main() {
	root := &command.C{
		Name:     "romctl",
		Usage:    "command args...",
		SetFlags: command.Flags(flax.MustBind, &globalArgs),
		Commands: []*command.C{
			{
				Name:  "shape",
				Usage: "shape module [type-regexp]",
				Help: `Show the types of a module.

For every type declared by the module descriptor, print its wire
category and wire shape, along with enum members or register
constructor parameters. If a regexp is given, only types whose name
matches are shown.`,
				Run: command.Adapt(runShape),
			},
			{
				Name:  "check",
				Usage: "check module...",
				Help: `Validate module descriptors.

The modules are validated, then installed together into one registry
to detect conflicting declarations.`,
				Run: command.Adapt(runCheck),
			},
			{
				Name:  "decode",
				Usage: "decode file",
				Help:  "Decode and dump a wire value.",
				Run:   command.Adapt(runDecode),
			},
			{
				Name:  "convert",
				Usage: "convert in out",
				Help: `Convert a wire value between formats.

The output format is chosen by the output file's extension.`,
				Run: command.Adapt(runConvert),
			},
			{
				Name:  "unflatten",
				Usage: "unflatten module type file",
				Help: `Unflatten a wire value as the given type of a module.

Remote object references materialize as handles of the declared
remote class.`,
				Run: command.Adapt(runUnflatten),
			},
			{
				Name:     "generate",
				Usage:    "generate module",
				Help:     "Generate Go types for a module descriptor.",
				SetFlags: command.Flags(flax.MustBind, &generateArgs),
				Run:      command.Adapt(runGenerate),
			},
			command.HelpCommand(nil),
			command.VersionCommand(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	env := root.NewEnv(nil).SetContext(ctx)
	command.RunOrFail(env, os.Args[1:])
}

// tool is the state shared by commands, derived from global flags and
// configuration.
type tool struct {
	cfg config
	log *zap.Logger
}

func newTool() (*tool, error) {
	cfg := defaultConfig()
	if globalArgs.Config != "" {
		c, err := loadConfig(globalArgs.Config)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if globalArgs.Format != "" {
		cfg.Format = globalArgs.Format
	}

	log := zap.NewNop()
	if globalArgs.Verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("creating logger: %w", err)
		}
		log = l
	}
	rom.SetLogger(log)
	return &tool{cfg: cfg, log: log}, nil
}

func (t *tool) engine(reg *rom.Registry) *rom.Engine {
	return rom.New(reg, rom.Options{Logger: t.log, MaxDepth: t.cfg.MaxDepth})
}

// registry returns a registry holding the types of the configured
// modules and of the module at path, and the module at path.
func (t *tool) registry(path string) (*rom.Registry, *kmd.Module, error) {
	reg := rom.NewRegistry()
	var last *kmd.Module
	for _, p := range append(slices.Clone(t.cfg.Modules), path) {
		m, err := kmd.Load(p)
		if err != nil {
			return nil, nil, err
		}
		if err := m.Install(reg); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", p, err)
		}
		t.log.Debug("installed module", zap.String("module", m.Name), zap.String("path", p))
		last = m
	}
	return reg, last, nil
}

func (t *tool) format(path string) (codec.Format, error) {
	if t.cfg.Format != "" {
		return codec.ParseFormat(t.cfg.Format)
	}
	return codec.FormatForPath(path)
}

func (t *tool) readWire(path string) (any, error) {
	f, err := t.format(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	v, err := codec.Decode(f, data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s as %s: %w", path, f, err)
	}
	return v, nil
}

func runShape(env *command.Env, path string, rest ...string) error {
	t, err := newTool()
	if err != nil {
		return err
	}
	if len(rest) > 1 {
		return env.Usagef("too many arguments")
	}
	reg, m, err := t.registry(path)
	if err != nil {
		return err
	}
	filter, err := regexp.Compile(growTo(rest, 1)[0])
	if err != nil {
		return err
	}

	descs := slices.Collect(slice.Select(slices.Collect(reg.All()), func(d *rom.Descriptor) bool {
		return d.Module() == m.Name && filter.MatchString(d.Name())
	}))
	if len(descs) == 0 {
		return fmt.Errorf("no types in module %s match %q", m.Name, filter)
	}
	out := &indenter{w: os.Stdout}
	for _, d := range descs {
		describe(out, reg, d)
	}
	return nil
}

func runCheck(env *command.Env, paths ...string) error {
	t, err := newTool()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return env.Usagef("check requires at least one module")
	}

	reg := rom.NewRegistry()
	var errs []error
	for _, p := range paths {
		m, err := kmd.Load(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := m.Install(reg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		t.log.Debug("checked module", zap.String("module", m.Name), zap.Int("types", reg.Len()))
		fmt.Printf("%s: module %s ok\n", p, m.Name)
	}
	return errors.Join(errs...)
}

func runDecode(env *command.Env, path string) error {
	t, err := newTool()
	if err != nil {
		return err
	}
	v, err := t.readWire(path)
	if err != nil {
		return err
	}
	fmt.Println(v)
	fmt.Printf("%# v\n", pretty.Formatter(display(v)))
	return nil
}

func runConvert(env *command.Env, in, out string) error {
	t, err := newTool()
	if err != nil {
		return err
	}
	v, err := t.readWire(in)
	if err != nil {
		return err
	}
	f, err := codec.FormatForPath(out)
	if err != nil {
		return err
	}
	bs, err := codec.Encode(f, v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", out, err)
	}
	if err := os.WriteFile(out, bs, 0o644); err != nil {
		return err
	}
	t.log.Debug("converted", zap.String("in", in), zap.String("out", out), zap.Stringer("format", f))
	return nil
}

func runUnflatten(env *command.Env, path, typeName, file string) error {
	t, err := newTool()
	if err != nil {
		return err
	}
	reg, m, err := t.registry(path)
	if err != nil {
		return err
	}
	typ, err := m.TypeRef(typeName, reg)
	if err != nil {
		return err
	}
	wire, err := t.readWire(file)
	if err != nil {
		return err
	}

	e := t.engine(reg)
	client := objects.NewClient(t.log)
	v, err := e.Unflatten("", wire, typ, client)
	if err != nil {
		return err
	}
	fmt.Printf("%# v\n", pretty.Formatter(display(v)))
	if client.Len() > 0 {
		fmt.Printf("materialized %d remote objects\n", client.Len())
	}

	return nil
}

var generateArgs struct {
	PackageName string `flag:"package,Package name to output, default the module name"`
	OutFile     string `flag:"out,default=gen.go,Output file path"`
}

func runGenerate(env *command.Env, path string) error {
	t, err := newTool()
	if err != nil {
		return err
	}
	m, err := kmd.Load(path)
	if err != nil {
		return err
	}
	pkg := generateArgs.PackageName
	if pkg == "" {
		pkg = m.Name
	}
	code, err := romgen.Module(m, pkg)
	if err != nil {
		return fmt.Errorf("generating module %s: %w", m.Name, err)
	}
	if err := os.WriteFile(generateArgs.OutFile, []byte(code), 0o644); err != nil {
		return fmt.Errorf("writing generated code: %w", err)
	}
	t.log.Debug("generated module", zap.String("module", m.Name), zap.String("package", pkg))
	fmt.Printf("Wrote generated package to %s\n", generateArgs.OutFile)
	return nil
}
