// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package oracle is the type-resolution collaborator of a surface scan: it
// answers symbol, signature, type, and constant-expression queries over a
// closed set of parsed source files.
//
// The extraction engine depends only on the Oracle interface; Checker is the
// tree-sitter-backed implementation shipped with this repository. Symbols
// declared outside the context file set are simply unresolvable — callers
// treat a false result as "not ours", never as an error.
package oracle

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// SymbolKind classifies a declared symbol.
type SymbolKind string

const (
	KindFunction   SymbolKind = "function"
	KindMethod     SymbolKind = "method"
	KindInterface  SymbolKind = "interface"
	KindClass      SymbolKind = "class"
	KindEnum       SymbolKind = "enum"
	KindEnumMember SymbolKind = "enumMember"
	KindTypeAlias  SymbolKind = "typeAlias"
	KindVariable   SymbolKind = "variable"
	KindNamespace  SymbolKind = "namespace"
)

// Symbol is a declaration bound to a name in some context file.
//
// The Parent pointer is the lexical declaration parent (a method's interface,
// an interface's namespace); it is what QualifiedOrigin walks to distinguish
// a framework API declaration from a coincidentally same-named local one.
type Symbol struct {
	// Name is the declared name.
	Name string

	// Kind classifies the declaration.
	Kind SymbolKind

	// File is the project-relative path of the declaring file.
	File string

	// Node is the primary declaration node.
	Node *sitter.Node

	// Decls lists all declaration nodes when a name is declared more than
	// once (TypeScript overload signatures). Contains at least Node.
	Decls []*sitter.Node

	// Parent is the lexical declaration parent, nil for file-level symbols.
	Parent *Symbol

	// Exported reports whether the declaration is visible in the file's
	// export table.
	Exported bool

	// moduleFile is set for namespace-import bindings: the symbol stands for
	// another file's whole export table.
	moduleFile string

	// members holds eagerly built members (namespaces, enums).
	members map[string]*Symbol

	// memberOrder preserves declaration order of members.
	memberOrder []string

	// constValue is the resolved constant of an enum member.
	constValue ConstantValue
}

// Member returns the named member of a namespace or enum symbol.
func (s *Symbol) Member(name string) (*Symbol, bool) {
	if s == nil || s.members == nil {
		return nil, false
	}
	m, ok := s.members[name]
	return m, ok
}

// ConstKind classifies an evaluated constant.
type ConstKind int

const (
	ConstInvalid ConstKind = iota
	ConstString
	ConstNumber
)

// ConstantValue is the result of the oracle's constant-expression query.
type ConstantValue struct {
	Kind ConstKind
	Str  string
	Num  float64
}

// Any returns the constant as a plain serializable value: string, float64,
// or nil for invalid constants.
func (v ConstantValue) Any() any {
	switch v.Kind {
	case ConstString:
		return v.Str
	case ConstNumber:
		return v.Num
	default:
		return nil
	}
}

// TypeShape classifies the structural shape of a resolved type handle.
type TypeShape int

const (
	// ShapeUnknown covers types the checker cannot decompose: unresolved
	// names, unions, and generics over unresolved bases.
	ShapeUnknown TypeShape = iota
	ShapePrimitive
	ShapeArray
	ShapeObject
	ShapeEnum
)

// TypeHandle is the opaque reference a scan passes between the oracle and
// the type materializer. Handles are only meaningful to the Oracle that
// produced them.
type TypeHandle struct {
	shape   TypeShape
	name    string // primitive name, declared name, or diagnostic text
	file    string // declaring file for node-backed handles
	node    *sitter.Node
	sym     *Symbol
	elem    *TypeHandle
	args    []TypeHandle
	generic string // generic base name when the base did not resolve
}

// Valid reports whether the handle refers to anything at all.
func (t TypeHandle) Valid() bool {
	return t.shape != ShapeUnknown || t.name != "" || t.generic != "" || t.node != nil
}

// Signature is a resolved call signature.
type Signature struct {
	// Declaring is the symbol whose declaration provides the signature.
	Declaring *Symbol

	// Parameters are the declared parameters in order.
	Parameters []Param

	// Return is the declared return type. Zero handle when no annotation.
	Return TypeHandle

	// HasReturn reports whether a return type annotation exists.
	HasReturn bool
}

// Param is one declared signature parameter.
type Param struct {
	Name    string
	Type    TypeHandle
	HasType bool
}

// Property is one member property of an object-shaped type.
type Property struct {
	Name     string
	Type     TypeHandle
	Optional bool
}

// EnumMemberValue is one enum member with its resolved constant.
type EnumMemberValue struct {
	Name  string
	Value ConstantValue
}

// Oracle is the type-resolution contract the extraction engine depends on.
//
// All query methods are pure lookups over the fixed context file set; a
// false second return means the question has no answer inside the context,
// which is never an error by itself.
type Oracle interface {
	// Files returns the ordered context file list (project-relative paths).
	Files() []string

	// ResolveSignature resolves a call_expression node in the given file to
	// the declared signature of its callee.
	ResolveSignature(file string, call *sitter.Node) (*Signature, bool)

	// QualifiedOrigin returns the lexical declaration path of a symbol,
	// root first, ending with the symbol's own name.
	QualifiedOrigin(sym *Symbol) []string

	// CallSignaturesOf returns every call signature a symbol exposes.
	CallSignaturesOf(sym *Symbol) []*Signature

	// IsValueModule reports whether the file's top-level symbol exports
	// runtime values rather than only type declarations.
	IsValueModule(file string) bool

	// LookupExport returns the named entry of a file's export table.
	LookupExport(file, name string) (*Symbol, bool)

	// EvaluateConstant evaluates a property-access expression as a constant.
	EvaluateConstant(file string, expr *sitter.Node) (ConstantValue, bool)

	// ContextualType computes the contextual/inferred type of an expression.
	ContextualType(file string, expr *sitter.Node) (TypeHandle, bool)

	// Shape classifies a handle's structural form.
	Shape(t TypeHandle) TypeShape

	// TypeKey derives the stable identity key used for deduplication.
	TypeKey(t TypeHandle) string

	// TypeString renders a handle for diagnostics.
	TypeString(t TypeHandle) string

	// TypeName returns the declared name of a named type, "" if anonymous.
	TypeName(t TypeHandle) string

	// PrimitiveName returns the scalar name of a ShapePrimitive handle.
	PrimitiveName(t TypeHandle) string

	// ElementType returns the element type of a ShapeArray handle.
	ElementType(t TypeHandle) (TypeHandle, bool)

	// Properties enumerates the ordered member properties of an
	// object-shaped handle.
	Properties(t TypeHandle) []Property

	// EnumMembers enumerates a ShapeEnum handle's members with constants.
	EnumMembers(t TypeHandle) []EnumMemberValue

	// GenericInfo decomposes a generic instantiation into its base name and
	// type arguments (e.g. the deferred-result wrapper of a handler).
	GenericInfo(t TypeHandle) (base string, args []TypeHandle, ok bool)
}
