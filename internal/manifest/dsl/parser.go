// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

package dsl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/samber/oops"

	"github.com/troupe-dev/troupe/pkg/contract"
)

// Error codes for contract notation failures.
const (
	CodeParseFailed       = "CONTRACT_PARSE_FAILED"
	CodeDuplicateProperty = "DUPLICATE_PROPERTY"
	CodeInvalidDefault    = "INVALID_DEFAULT"
)

// DefaultKind says how a property default is computed.
type DefaultKind int

// Default kinds.
const (
	NoDefault DefaultKind = iota
	LiteralDefault
	MethodDefault
	LuaDefault
)

// Declaration is a property declaration lowered from the AST.
type Declaration struct {
	Name     string
	Presence contract.Presence
	Kind     DefaultKind
	// Value holds the literal for LiteralDefault.
	Value any
	// Source holds the method name for MethodDefault or the Lua code for
	// LuaDefault.
	Source string
}

var parser *participle.Parser[Contract]

func init() {
	var err error
	parser, err = NewParser()
	if err != nil {
		panic(fmt.Sprintf("failed to build contract parser: %v", err))
	}
}

// Parse parses contract notation into declarations in source order.
func Parse(src string) ([]Declaration, error) {
	ast, err := parser.ParseString("", src)
	if err != nil {
		return nil, oops.Code(CodeParseFailed).
			With("source", src).
			Wrapf(err, "parsing contract")
	}
	return lower(ast)
}

func lower(ast *Contract) ([]Declaration, error) {
	var decls []Declaration
	seen := make(map[string]bool)

	for _, clause := range ast.Clauses {
		presence := presenceOf(clause.Presence)
		for _, p := range clause.Properties {
			if seen[p.Name] {
				return nil, oops.Code(CodeDuplicateProperty).
					With("property", p.Name).
					With("position", p.Pos.String()).
					Errorf("property %q declared more than once", p.Name)
			}
			seen[p.Name] = true

			decl := Declaration{Name: p.Name, Presence: presence}
			if p.Default != nil {
				if presence == contract.Expected {
					return nil, oops.Code(CodeInvalidDefault).
						With("property", p.Name).
						With("position", p.Pos.String()).
						Errorf("expected property %q cannot have a default", p.Name)
				}
				if err := lowerDefault(&decl, p.Default); err != nil {
					return nil, err
				}
			}
			decls = append(decls, decl)
		}
	}
	return decls, nil
}

func presenceOf(keyword string) contract.Presence {
	switch keyword {
	case "expects":
		return contract.Expected
	case "provides":
		return contract.Provided
	default:
		return contract.Permitted
	}
}

func lowerDefault(decl *Declaration, d *DefaultExpr) error {
	switch {
	case d.Method != nil:
		decl.Kind = MethodDefault
		decl.Source = *d.Method
	case d.Lua != nil:
		if strings.TrimSpace(*d.Lua) == "" {
			return oops.Code(CodeInvalidDefault).
				With("property", decl.Name).
				Errorf("lua default for %q is empty", decl.Name)
		}
		decl.Kind = LuaDefault
		decl.Source = *d.Lua
	case d.Literal != nil:
		value, err := d.Literal.value()
		if err != nil {
			return oops.Code(CodeInvalidDefault).
				With("property", decl.Name).
				Wrap(err)
		}
		decl.Kind = LiteralDefault
		decl.Value = value
	}
	return nil
}

func (l *Literal) value() (any, error) {
	switch {
	case l.String != nil:
		return *l.String, nil
	case l.Bool != nil:
		return *l.Bool == "true", nil
	case l.Number != nil:
		if strings.Contains(*l.Number, ".") {
			return strconv.ParseFloat(*l.Number, 64)
		}
		return strconv.Atoi(*l.Number)
	default:
		return nil, nil
	}
}
