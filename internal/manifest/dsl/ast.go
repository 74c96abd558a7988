// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Troupe Contributors

// Package dsl parses the compact contract notation used in manifests:
//
//	expects amount; permits currency = "USD", note = method(DefaultNote);
//	permits label = lua("return currency .. '!'"); provides receipt;
//
// Each clause names a presence followed by one or more properties. Permitted
// and provided properties may carry a default: a literal, a named method on
// the command, or a Lua expression body.
package dsl

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var contractLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "RawString", Pattern: "`[^`]*`"},
	{Name: "Number", Pattern: `-?\d+(\.\d+)?`},
	{Name: "Ident", Pattern: `[a-zA-Z_][\w.]*`},
	{Name: "Punct", Pattern: `[(),;=]`},
	{Name: "whitespace", Pattern: `\s+`},
})

// Contract is a parsed contract string.
//
// Grammar: [ clause { ";" clause } [ ";" ] ]
type Contract struct {
	Pos     lexer.Position `parser:""`
	Clauses []*Clause      `parser:"(@@ (';' @@)* ';'?)?"`
}

// Clause declares properties sharing one presence.
//
// Grammar: ("expects" | "permits" | "provides") property { "," property }
type Clause struct {
	Pos        lexer.Position `parser:""`
	Presence   string         `parser:"@('expects' | 'permits' | 'provides')"`
	Properties []*Property    `parser:"@@ (',' @@)*"`
}

// Property is a single name with an optional default.
type Property struct {
	Pos     lexer.Position `parser:""`
	Name    string         `parser:"@Ident"`
	Default *DefaultExpr   `parser:"('=' @@)?"`
}

// DefaultExpr is one of method(name), lua("code") or a literal.
type DefaultExpr struct {
	Pos     lexer.Position `parser:""`
	Method  *string        `parser:"  'method' '(' @Ident ')'"`
	Lua     *string        `parser:"| 'lua' '(' @(String | RawString) ')'"`
	Literal *Literal       `parser:"| @@"`
}

// Literal is a constant default value.
type Literal struct {
	Pos    lexer.Position `parser:""`
	String *string        `parser:"  @(String | RawString)"`
	Number *string        `parser:"| @Number"`
	Bool   *string        `parser:"| @('true' | 'false')"`
	Nil    bool           `parser:"| @'nil'"`
}

// trimRaw strips the backticks of a raw string and keeps its contents
// verbatim.
func trimRaw(tok lexer.Token) (lexer.Token, error) {
	tok.Value = tok.Value[1 : len(tok.Value)-1]
	return tok, nil
}

// NewParser constructs a participle parser for the contract grammar.
func NewParser() (*participle.Parser[Contract], error) {
	return participle.Build[Contract](
		participle.Lexer(contractLexer),
		participle.Unquote("String"),
		participle.Map(trimRaw, "RawString"),
		participle.UseLookahead(2),
	)
}
