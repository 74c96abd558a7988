// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package manifest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"

	"github.com/troupe-dev/troupe/internal/command"
	"github.com/troupe-dev/troupe/internal/lua"
	"github.com/troupe-dev/troupe/internal/manifest/dsl"
	"github.com/troupe-dev/troupe/pkg/contract"
	"github.com/troupe-dev/troupe/pkg/troupe"
)

// CodeBuildFailed marks a manifest that validated but could not be turned
// into commands.
const CodeBuildFailed = "MANIFEST_BUILD_FAILED"

// BuildOption configures Build.
type BuildOption func(*builder)

// WithRuntime sets the Lua runtime for scripts and Lua defaults.
func WithRuntime(rt *lua.Runtime) BuildOption {
	return func(b *builder) {
		if rt != nil {
			b.rt = rt
		}
	}
}

// WithBaseDir sets the directory script_file paths are relative to. It
// defaults to the manifest's directory.
func WithBaseDir(dir string) BuildOption {
	return func(b *builder) {
		b.baseDir = dir
	}
}

type builder struct {
	rt      *lua.Runtime
	baseDir string
	source  string
}

// Build compiles every command of m into a registry entry. Each entry's
// factory returns the same command, which is safe for concurrent use.
func Build(ctx context.Context, m *Manifest, opts ...BuildOption) ([]command.Entry, error) {
	b := &builder{source: m.Source()}
	if m.path != "" {
		b.baseDir = filepath.Dir(m.path)
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.rt == nil {
		b.rt = lua.NewRuntime()
	}

	entries := make([]command.Entry, 0, len(m.Commands))
	for _, spec := range m.Commands {
		cmd, err := b.command(ctx, spec)
		if err != nil {
			return nil, oops.Code(CodeBuildFailed).
				With("command", spec.Name).
				With("source", b.source).
				Wrap(err)
		}
		entries = append(entries, command.Entry{
			Name:   spec.Name,
			Source: b.source,
			Help:   spec.Help,
			Usage:  spec.Usage,
			New:    func() troupe.Command { return cmd },
		})
	}
	return entries, nil
}

// Install builds m, registers its commands and adds its global aliases.
func Install(ctx context.Context, m *Manifest, reg *command.Registry, aliases *command.AliasTable, opts ...BuildOption) error {
	entries, err := Build(ctx, m, opts...)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := reg.Register(e); err != nil {
			return err
		}
	}
	if aliases == nil {
		return nil
	}
	for _, name := range sortedKeys(m.Aliases) {
		if err := aliases.SetGlobal(name, m.Aliases[name]); err != nil {
			return oops.With("source", m.Source()).Wrap(err)
		}
	}
	return nil
}

func (b *builder) command(ctx context.Context, spec CommandSpec) (troupe.Command, error) {
	var script *lua.Script
	code, err := b.scriptSource(spec)
	if err != nil {
		return nil, err
	}
	if code != "" {
		script, err = b.rt.Compile(ctx, b.source+"#"+spec.Name, code)
		if err != nil {
			return nil, err
		}
	}

	decls, err := dsl.Parse(spec.Contract)
	if err != nil {
		return nil, err
	}

	type declaration struct {
		name string
		opts []contract.Option
	}
	var declarations []declaration

	for _, d := range decls {
		opts := []contract.Option{contract.WithPresence(d.Presence)}
		switch d.Kind {
		case dsl.LiteralDefault:
			opts = append(opts, contract.WithDefaultValue(d.Value))
		case dsl.MethodDefault:
			if err := requireFunction(script, d.Source); err != nil {
				return nil, err
			}
			opts = append(opts, contract.WithDefaultMethod(d.Source))
		case dsl.LuaDefault:
			fn, err := b.rt.DefaultFunc(spec.Name+"."+d.Name, d.Source)
			if err != nil {
				return nil, err
			}
			opts = append(opts, contract.WithDefault(fn))
		}
		declarations = append(declarations, declaration{name: d.Name, opts: opts})
	}

	for _, p := range spec.Properties {
		var opts []contract.Option
		if p.Presence != "" {
			opts = append(opts, contract.WithPresence(contract.Presence(p.Presence)))
		}
		switch {
		case p.Default != nil:
			opts = append(opts, contract.WithDefaultValue(p.Default))
		case p.DefaultMethod != "":
			if err := requireFunction(script, p.DefaultMethod); err != nil {
				return nil, err
			}
			opts = append(opts, contract.WithDefaultMethod(p.DefaultMethod))
		case p.DefaultLua != "":
			fn, err := b.rt.DefaultFunc(spec.Name+"."+p.Name, p.DefaultLua)
			if err != nil {
				return nil, err
			}
			opts = append(opts, contract.WithDefault(fn))
		}
		if p.OnViolation != nil {
			h, err := violationHandler(*p.OnViolation, script)
			if err != nil {
				return nil, err
			}
			opts = append(opts, contract.WithViolationHandler(h))
		}
		declarations = append(declarations, declaration{name: p.Name, opts: opts})
	}

	var fallback contract.ViolationHandler
	if spec.OnViolation != nil {
		fallback, err = violationHandler(*spec.OnViolation, script)
		if err != nil {
			return nil, err
		}
	}

	c, err := contract.Define(spec.Name, func(c *contract.Contract) {
		for _, d := range declarations {
			//nolint:errcheck // recorded on the contract
			c.Property(d.name, d.opts...)
		}
		if fallback != nil {
			c.OnViolation(fallback)
		}
		//nolint:errcheck // recorded on the contract
		c.AllowUndeclared(spec.AllowUndeclared...)
	})
	if err != nil {
		return nil, err
	}

	if script == nil {
		return troupe.NewCommand(c, nil), nil
	}
	return b.rt.NewCommand(c, script), nil
}

func (b *builder) scriptSource(spec CommandSpec) (string, error) {
	if spec.ScriptFile == "" {
		return spec.Script, nil
	}
	path := spec.ScriptFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(b.baseDir, path)
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", oops.Code(CodeReadFailed).
			With("path", path).
			Wrapf(err, "reading script")
	}
	return string(data), nil
}

func requireFunction(script *lua.Script, name string) error {
	if script == nil || !script.Defines(name) {
		return oops.Code(CodeBuildFailed).
			With("function", name).
			Errorf("script does not define %s", name)
	}
	return nil
}

func violationHandler(spec ViolationSpec, script *lua.Script) (contract.ViolationHandler, error) {
	switch spec.Action {
	case ActionFail:
		return func(inv *contract.Invocation, v *contract.Violation) error {
			return inv.Fail(render(spec.Message, v))
		}, nil
	case ActionRaise:
		if spec.Message == "" {
			return func(_ *contract.Invocation, v *contract.Violation) error { return v }, nil
		}
		return func(inv *contract.Invocation, v *contract.Violation) error {
			return contract.NewViolation(inv.Command(), v.Property(), render(spec.Message, v))
		}, nil
	case ActionCall:
		if err := requireFunction(script, spec.Function); err != nil {
			return nil, err
		}
		return lua.ViolationHandler(spec.Function), nil
	default:
		return nil, invalid("unknown on_violation action %q", spec.Action)
	}
}

// render fills {property} and {message} in template. An empty template
// yields the violation's own message.
func render(template string, v *contract.Violation) string {
	if template == "" {
		return v.Message()
	}
	return strings.NewReplacer("{property}", v.Property(), "{message}", v.Message()).Replace(template)
}
