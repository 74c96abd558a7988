// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

// Package manifest loads declarative command definitions from troupe.yaml.
package manifest

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/troupe-dev/troupe/internal/command"
	"github.com/troupe-dev/troupe/internal/manifest/dsl"
	"github.com/troupe-dev/troupe/pkg/contract"
)

// FileName is the conventional manifest file name.
const FileName = "troupe.yaml"

// FormatVersion is the manifest format this package reads.
const FormatVersion = 1

// Error codes for manifest failures.
const (
	CodeEmpty        = "MANIFEST_EMPTY"
	CodeReadFailed   = "MANIFEST_READ_FAILED"
	CodeInvalidYAML  = "MANIFEST_INVALID_YAML"
	CodeSchema       = "MANIFEST_SCHEMA_VIOLATION"
	CodeInvalid      = "MANIFEST_INVALID"
	CodeIncompatible = "MANIFEST_INCOMPATIBLE"
)

// Violation actions.
const (
	ActionFail  = "fail"
	ActionRaise = "raise"
	ActionCall  = "call"
)

// Manifest is a parsed troupe.yaml.
type Manifest struct {
	Version  int               `yaml:"version" json:"version" jsonschema:"enum=1" jsonschema_description:"Manifest format version"`
	Requires string            `yaml:"requires,omitempty" json:"requires,omitempty" jsonschema_description:"Semantic version constraint on the troupe tool"`
	Aliases  map[string]string `yaml:"aliases,omitempty" json:"aliases,omitempty" jsonschema_description:"Global aliases mapping a name to a command line"`
	Commands []CommandSpec     `yaml:"commands" json:"commands" jsonschema:"minItems=1"`

	path string
}

// CommandSpec declares one command.
type CommandSpec struct {
	Name            string         `yaml:"name" json:"name" jsonschema:"minLength=1"`
	Help            string         `yaml:"help,omitempty" json:"help,omitempty"`
	Usage           string         `yaml:"usage,omitempty" json:"usage,omitempty"`
	Contract        string         `yaml:"contract,omitempty" json:"contract,omitempty" jsonschema_description:"Compact contract notation, e.g. expects a; permits b = 1; provides c"`
	Properties      []PropertySpec `yaml:"properties,omitempty" json:"properties,omitempty"`
	OnViolation     *ViolationSpec `yaml:"on_violation,omitempty" json:"on_violation,omitempty"`
	AllowUndeclared []string       `yaml:"allow_undeclared,omitempty" json:"allow_undeclared,omitempty" jsonschema_description:"Glob patterns for tolerated undeclared inputs"`
	Script          string         `yaml:"script,omitempty" json:"script,omitempty" jsonschema_description:"Inline Lua defining call and optional rollback, before, after"`
	ScriptFile      string         `yaml:"script_file,omitempty" json:"script_file,omitempty" jsonschema_description:"Lua file relative to the manifest"`
}

// PropertySpec is the structured form of a property declaration. With an
// empty presence it amends a property declared in the contract string.
type PropertySpec struct {
	Name          string         `yaml:"name" json:"name" jsonschema:"minLength=1"`
	Presence      string         `yaml:"presence,omitempty" json:"presence,omitempty" jsonschema:"enum=expected,enum=permitted,enum=provided"`
	Default       any            `yaml:"default,omitempty" json:"default,omitempty"`
	DefaultMethod string         `yaml:"default_method,omitempty" json:"default_method,omitempty"`
	DefaultLua    string         `yaml:"default_lua,omitempty" json:"default_lua,omitempty"`
	OnViolation   *ViolationSpec `yaml:"on_violation,omitempty" json:"on_violation,omitempty"`
}

// ViolationSpec says what happens when a property is missing.
type ViolationSpec struct {
	Action   string `yaml:"action" json:"action" jsonschema:"enum=fail,enum=raise,enum=call"`
	Message  string `yaml:"message,omitempty" json:"message,omitempty" jsonschema_description:"Template with {property} and {message} placeholders"`
	Function string `yaml:"function,omitempty" json:"function,omitempty" jsonschema_description:"Script function for the call action"`
}

// Path returns the file the manifest was loaded from, or "".
func (m *Manifest) Path() string {
	return m.path
}

// Source names the manifest in registry entries.
func (m *Manifest) Source() string {
	if m.path == "" {
		return "manifest"
	}
	return m.path
}

// Load reads, validates and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, oops.Code(CodeReadFailed).
			With("path", path).
			Wrapf(err, "reading manifest")
	}
	m, err := Parse(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	m.path = path
	return m, nil
}

// Parse validates data against the manifest schema, decodes it and checks
// the constraints the schema cannot express.
func Parse(data []byte) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, oops.Code(CodeEmpty).Errorf("manifest data is empty")
	}
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, oops.Code(CodeInvalidYAML).Wrapf(err, "decoding manifest")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if m.Version != FormatVersion {
		return invalid("version must be %d, got %d", FormatVersion, m.Version)
	}
	if m.Requires != "" {
		if _, err := semver.NewConstraint(m.Requires); err != nil {
			return oops.Code(CodeInvalid).
				With("requires", m.Requires).
				Wrapf(err, "invalid requires constraint")
		}
	}
	if len(m.Commands) == 0 {
		return invalid("at least one command is required")
	}

	for alias, line := range m.Aliases {
		if err := command.ValidateAliasName(alias); err != nil {
			return oops.Code(CodeInvalid).With("alias", alias).Wrap(err)
		}
		if strings.TrimSpace(line) == "" {
			return invalid("alias %q has an empty command line", alias)
		}
	}

	seen := make(map[string]bool, len(m.Commands))
	for i := range m.Commands {
		spec := &m.Commands[i]
		if seen[spec.Name] {
			return invalid("command %q defined more than once", spec.Name)
		}
		seen[spec.Name] = true
		if err := spec.validate(); err != nil {
			return oops.With("command", spec.Name).Wrap(err)
		}
	}
	return nil
}

func (s *CommandSpec) validate() error {
	if err := command.ValidateCommandName(s.Name); err != nil {
		return oops.Code(CodeInvalid).Wrap(err)
	}
	if s.Script != "" && s.ScriptFile != "" {
		return invalid("script and script_file are mutually exclusive")
	}
	scripted := s.Script != "" || s.ScriptFile != ""

	decls, err := dsl.Parse(s.Contract)
	if err != nil {
		return err
	}
	declared := make(map[string]contract.Presence, len(decls))
	for _, d := range decls {
		declared[d.Name] = d.Presence
		if d.Kind == dsl.MethodDefault && !scripted {
			return invalid("property %q uses method(%s) without a script", d.Name, d.Source)
		}
	}

	for _, p := range s.Properties {
		if err := p.validate(declared, scripted); err != nil {
			return oops.With("property", p.Name).Wrap(err)
		}
	}
	if s.OnViolation != nil {
		if err := s.OnViolation.validate(scripted); err != nil {
			return err
		}
	}
	return nil
}

func (p PropertySpec) validate(declared map[string]contract.Presence, scripted bool) error {
	presence, inContract := declared[p.Name]
	switch {
	case p.Presence == "" && !inContract:
		return invalid("property %q needs a presence or a contract declaration", p.Name)
	case p.Presence != "" && inContract:
		return invalid("property %q is already declared in the contract", p.Name)
	case p.Presence != "":
		parsed, err := contract.ParsePresence(p.Presence)
		if err != nil {
			return oops.Code(CodeInvalid).Wrap(err)
		}
		presence = parsed
	}
	declared[p.Name] = presence

	defaults := 0
	if p.Default != nil {
		defaults++
	}
	if p.DefaultMethod != "" {
		defaults++
		if !scripted {
			return invalid("default_method %q requires a script", p.DefaultMethod)
		}
	}
	if p.DefaultLua != "" {
		defaults++
	}
	if defaults > 1 {
		return invalid("property %q sets more than one of default, default_method and default_lua", p.Name)
	}
	if defaults == 1 && presence == contract.Expected {
		return invalid("expected property %q cannot have a default", p.Name)
	}

	if p.OnViolation != nil {
		if presence != contract.Expected {
			return invalid("on_violation applies only to expected properties")
		}
		return p.OnViolation.validate(scripted)
	}
	return nil
}

func (v *ViolationSpec) validate(scripted bool) error {
	switch v.Action {
	case ActionFail, ActionRaise:
		if v.Function != "" {
			return invalid("function is only used by the %s action", ActionCall)
		}
	case ActionCall:
		if v.Function == "" {
			return invalid("the %s action needs a function", ActionCall)
		}
		if !scripted {
			return invalid("the %s action requires a script", ActionCall)
		}
	default:
		return invalid("unknown on_violation action %q", v.Action)
	}
	return nil
}

// CheckCompatible reports whether a tool at version satisfies the
// manifest's requires constraint. Versions that are not semantic versions,
// such as development builds, satisfy every constraint.
func (m *Manifest) CheckCompatible(version string) error {
	if m.Requires == "" {
		return nil
	}
	v, err := semver.NewVersion(strings.TrimPrefix(version, "v"))
	if err != nil {
		return nil
	}
	c, err := semver.NewConstraint(m.Requires)
	if err != nil {
		return oops.Code(CodeInvalid).
			With("requires", m.Requires).
			Wrapf(err, "invalid requires constraint")
	}
	if ok, errs := c.Validate(v); !ok {
		return oops.Code(CodeIncompatible).
			With("requires", m.Requires).
			With("version", v.String()).
			Errorf("troupe %s does not satisfy %s: %v", v, m.Requires, errs)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return oops.Code(CodeInvalid).Errorf(format, args...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
