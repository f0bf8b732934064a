// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package oracle

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/surface/services/surface/ast"
)

// resolveTypeExpr resolves a type expression node into a TypeHandle.
//
// Description:
//
//	Covers the framework subset: predefined scalars, named references
//	(including namespace-qualified ones), generic instantiations, array
//	types, literal types, and anonymous object types. Everything else
//	degrades to an unknown handle carrying the source text for diagnostics;
//	the materializer renders those as opaque primitives.
func (c *Checker) resolveTypeExpr(file string, node *sitter.Node) TypeHandle {
	if node == nil {
		return TypeHandle{}
	}
	f, ok := c.SourceFile(file)
	if !ok {
		return TypeHandle{}
	}

	switch node.Type() {
	case "type_annotation":
		return c.resolveTypeExpr(file, ast.TypeOfAnnotation(node))

	case "parenthesized_type":
		return c.resolveTypeExpr(file, firstNamedChild(node))

	case "predefined_type":
		return TypeHandle{shape: ShapePrimitive, name: f.Text(node)}

	case "literal_type":
		return c.literalTypePrimitive(f, node)

	case "array_type":
		elem := c.resolveTypeExpr(file, firstNamedChild(node))
		return TypeHandle{shape: ShapeArray, elem: &elem}

	case "type_identifier":
		return c.resolveTypeName(file, node, f.Text(node), nil)

	case "nested_type_identifier":
		return c.resolveQualifiedTypeName(file, node, strings.Split(f.Text(node), "."))

	case "generic_type":
		return c.resolveGenericType(file, node)

	case "object_type":
		return TypeHandle{shape: ShapeObject, file: file, node: node}

	default:
		// Unions, intersections, conditional types, function types: carried
		// as opaque text. Deliberately not an error.
		return TypeHandle{shape: ShapeUnknown, name: f.Text(node)}
	}
}

// literalTypePrimitive maps a literal type to its widened primitive.
func (c *Checker) literalTypePrimitive(f *ast.SourceFile, node *sitter.Node) TypeHandle {
	inner := firstNamedChild(node)
	if inner == nil {
		return TypeHandle{shape: ShapeUnknown, name: f.Text(node)}
	}
	switch inner.Type() {
	case "string", "template_string":
		return TypeHandle{shape: ShapePrimitive, name: "string"}
	case "number", "unary_expression":
		return TypeHandle{shape: ShapePrimitive, name: "number"}
	case "true", "false":
		return TypeHandle{shape: ShapePrimitive, name: "boolean"}
	}
	return TypeHandle{shape: ShapeUnknown, name: f.Text(node)}
}

// resolveGenericType handles Base<Args...> instantiations. Array<T> becomes
// an array handle; other resolvable bases keep their declared shape with the
// arguments attached; unresolved bases (Promise and friends from ambient
// libs) become unknown handles that still expose GenericInfo.
func (c *Checker) resolveGenericType(file string, node *sitter.Node) TypeHandle {
	f, _ := c.SourceFile(file)
	var base *sitter.Node
	var args []TypeHandle
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "type_identifier", "nested_type_identifier":
			base = child
		case "type_arguments":
			for j := 0; j < int(child.ChildCount()); j++ {
				arg := child.Child(j)
				if arg != nil && arg.IsNamed() {
					args = append(args, c.resolveTypeExpr(file, arg))
				}
			}
		}
	}
	if base == nil {
		return TypeHandle{shape: ShapeUnknown, name: f.Text(node)}
	}
	baseText := f.Text(base)

	if baseText == "Array" || baseText == "ReadonlyArray" {
		var elem TypeHandle
		if len(args) > 0 {
			elem = args[0]
		}
		return TypeHandle{shape: ShapeArray, elem: &elem}
	}

	var resolved TypeHandle
	if base.Type() == "type_identifier" {
		resolved = c.resolveTypeName(file, base, baseText, nil)
	} else {
		resolved = c.resolveQualifiedTypeName(file, base, strings.Split(baseText, "."))
	}
	if resolved.sym != nil {
		resolved.args = args
		return resolved
	}
	return TypeHandle{shape: ShapeUnknown, generic: baseText, args: args, name: baseText}
}

// resolveTypeName resolves a bare type name at a given position.
//
// Lookup order: enclosing namespace members (innermost first), file scope,
// import bindings. Unresolved names degrade to unknown handles.
func (c *Checker) resolveTypeName(file string, at *sitter.Node, name string, _ *Symbol) TypeHandle {
	if sym, ok := c.lookupName(file, at, name); ok {
		return c.handleForTypeSymbol(sym)
	}
	return TypeHandle{shape: ShapeUnknown, name: name}
}

// resolveQualifiedTypeName resolves a dotted name like Server.State.
func (c *Checker) resolveQualifiedTypeName(file string, at *sitter.Node, parts []string) TypeHandle {
	if len(parts) == 0 {
		return TypeHandle{}
	}
	sym, ok := c.lookupName(file, at, parts[0])
	if !ok {
		return TypeHandle{shape: ShapeUnknown, name: strings.Join(parts, ".")}
	}
	for _, part := range parts[1:] {
		next, ok := c.memberSymbol(sym, part)
		if !ok {
			return TypeHandle{shape: ShapeUnknown, name: strings.Join(parts, ".")}
		}
		sym = next
	}
	return c.handleForTypeSymbol(sym)
}

// memberSymbol resolves one qualification step through a namespace or a
// namespace-import binding.
func (c *Checker) memberSymbol(sym *Symbol, name string) (*Symbol, bool) {
	if sym == nil {
		return nil, false
	}
	if sym.moduleFile != "" {
		return c.LookupExport(sym.moduleFile, name)
	}
	return sym.Member(name)
}

// handleForTypeSymbol produces the TypeHandle for a named type declaration.
func (c *Checker) handleForTypeSymbol(sym *Symbol) TypeHandle {
	if sym == nil {
		return TypeHandle{}
	}
	if _, ok := c.SourceFile(sym.File); !ok {
		return TypeHandle{shape: ShapeUnknown, name: sym.Name, sym: sym}
	}
	qualified := strings.Join(c.QualifiedOrigin(sym), ".")

	switch sym.Kind {
	case KindInterface:
		body := ast.FirstChild(sym.Node, "interface_body")
		if body == nil {
			body = ast.FirstChild(sym.Node, "object_type")
		}
		return TypeHandle{shape: ShapeObject, name: qualified, file: sym.File, node: body, sym: sym}

	case KindClass:
		body := ast.FirstChild(sym.Node, "class_body")
		return TypeHandle{shape: ShapeObject, name: qualified, file: sym.File, node: body, sym: sym}

	case KindEnum:
		body := ast.FirstChild(sym.Node, "enum_body")
		return TypeHandle{shape: ShapeEnum, name: qualified, file: sym.File, node: body, sym: sym}

	case KindTypeAlias:
		value := aliasValueNode(sym.Node)
		under := c.resolveTypeExpr(sym.File, value)
		if under.name == "" {
			under.name = qualified
		}
		if under.sym == nil {
			under.sym = sym
			under.file = sym.File
		}
		return under

	default:
		return TypeHandle{shape: ShapeUnknown, name: qualified, sym: sym}
	}
}

// aliasValueNode returns the aliased type expression of a
// type_alias_declaration.
func aliasValueNode(node *sitter.Node) *sitter.Node {
	if node == nil {
		return nil
	}
	if v := node.ChildByFieldName("value"); v != nil {
		return v
	}
	// Fallback: last named child after the "=".
	return lastNamedChild(node)
}

// Shape classifies a handle's structural form.
func (c *Checker) Shape(t TypeHandle) TypeShape {
	return t.shape
}

// TypeName returns the declared name of a named type, "" if anonymous.
func (c *Checker) TypeName(t TypeHandle) string {
	if t.sym != nil {
		return t.name
	}
	return ""
}

// PrimitiveName returns the scalar name of a primitive handle, or the
// diagnostic text of an unknown one.
func (c *Checker) PrimitiveName(t TypeHandle) string {
	if t.name != "" {
		return t.name
	}
	return "unknown"
}

// ElementType returns the element type of an array handle.
func (c *Checker) ElementType(t TypeHandle) (TypeHandle, bool) {
	if t.shape != ShapeArray || t.elem == nil {
		return TypeHandle{}, false
	}
	return *t.elem, true
}

// GenericInfo decomposes a generic instantiation.
func (c *Checker) GenericInfo(t TypeHandle) (string, []TypeHandle, bool) {
	if t.generic != "" {
		return t.generic, t.args, true
	}
	if t.sym != nil && len(t.args) > 0 {
		return t.sym.Name, t.args, true
	}
	return "", nil, false
}

// TypeKey derives the stable identity key of a handle.
//
// Description:
//
//	Named types key on their declaration site (file plus byte offset plus
//	qualified name) so a type referenced from many call sites deduplicates
//	to one catalog entry. Primitives and arrays key structurally; anonymous
//	object shapes key on their source position.
func (c *Checker) TypeKey(t TypeHandle) string {
	switch {
	case t.sym != nil && t.sym.Node != nil:
		return fmt.Sprintf("%s:%d:%s", t.sym.File, t.sym.Node.StartByte(), t.name)
	case t.shape == ShapePrimitive:
		return "primitive:" + t.name
	case t.shape == ShapeArray:
		if t.elem != nil {
			return "array:" + c.TypeKey(*t.elem)
		}
		return "array:unknown"
	case t.node != nil:
		return fmt.Sprintf("%s:%d", t.file, t.node.StartByte())
	default:
		return "unknown:" + t.name + t.generic
	}
}

// TypeString renders a handle for diagnostics.
func (c *Checker) TypeString(t TypeHandle) string {
	switch t.shape {
	case ShapePrimitive:
		return t.name
	case ShapeArray:
		if t.elem != nil {
			return c.TypeString(*t.elem) + "[]"
		}
		return "unknown[]"
	case ShapeObject, ShapeEnum:
		if t.name != "" {
			return t.name
		}
		if f, ok := c.SourceFile(t.file); ok && t.node != nil {
			text := f.Text(t.node)
			if len(text) > 80 {
				text = text[:77] + "..."
			}
			return text
		}
		return "object"
	default:
		if t.generic != "" {
			parts := make([]string, 0, len(t.args))
			for _, a := range t.args {
				parts = append(parts, c.TypeString(a))
			}
			return t.generic + "<" + strings.Join(parts, ", ") + ">"
		}
		if t.name != "" {
			return t.name
		}
		return "unknown"
	}
}

// Properties enumerates the ordered member properties of an object-shaped
// handle: interface bodies, class bodies, anonymous object types, and
// object literal expressions.
func (c *Checker) Properties(t TypeHandle) []Property {
	if t.shape != ShapeObject || t.node == nil {
		return nil
	}
	f, ok := c.SourceFile(t.file)
	if !ok {
		return nil
	}

	var props []Property
	for i := 0; i < int(t.node.ChildCount()); i++ {
		child := t.node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "property_signature":
			// Interface / object_type member.
			name := f.Text(child.ChildByFieldName("name"))
			if name == "" {
				continue
			}
			prop := Property{Name: name}
			if ann := ast.FirstChild(child, "type_annotation"); ann != nil {
				prop.Type = c.resolveTypeExpr(t.file, ast.TypeOfAnnotation(ann))
			}
			if ast.FirstChild(child, "?") != nil {
				prop.Optional = true
			}
			props = append(props, prop)

		case "public_field_definition":
			// Class field.
			name := f.Text(child.ChildByFieldName("name"))
			if name == "" {
				continue
			}
			prop := Property{Name: name}
			if ann := ast.FirstChild(child, "type_annotation"); ann != nil {
				prop.Type = c.resolveTypeExpr(t.file, ast.TypeOfAnnotation(ann))
			} else if v := child.ChildByFieldName("value"); v != nil {
				prop.Type, _ = c.ContextualType(t.file, v)
			}
			props = append(props, prop)

		case "method_signature":
			name := f.Text(child.ChildByFieldName("name"))
			if name == "" {
				continue
			}
			props = append(props, Property{
				Name: name,
				Type: TypeHandle{shape: ShapePrimitive, name: "function"},
			})

		case "pair":
			// Object literal expression entry.
			keyNode := child.ChildByFieldName("key")
			name := f.Text(keyNode)
			if keyNode != nil && keyNode.Type() == "string" {
				name = f.StringContent(keyNode)
			}
			if name == "" {
				continue
			}
			prop := Property{Name: name}
			if v := child.ChildByFieldName("value"); v != nil {
				prop.Type, _ = c.ContextualType(t.file, v)
			}
			props = append(props, prop)

		case "shorthand_property_identifier":
			name := f.Text(child)
			prop := Property{Name: name}
			prop.Type, _ = c.ContextualType(t.file, child)
			props = append(props, prop)

		case "method_definition":
			name := f.Text(child.ChildByFieldName("name"))
			if name == "" {
				continue
			}
			props = append(props, Property{
				Name: name,
				Type: TypeHandle{shape: ShapePrimitive, name: "function"},
			})
		}
	}
	return props
}

// EnumMembers enumerates an enum handle's members with their constants.
func (c *Checker) EnumMembers(t TypeHandle) []EnumMemberValue {
	if t.shape != ShapeEnum || t.sym == nil {
		return nil
	}
	out := make([]EnumMemberValue, 0, len(t.sym.memberOrder))
	for _, name := range t.sym.memberOrder {
		member := t.sym.members[name]
		out = append(out, EnumMemberValue{Name: name, Value: member.constValue})
	}
	return out
}

// firstNamedChild returns the first named child of a node.
func firstNamedChild(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && child.IsNamed() {
			return child
		}
	}
	return nil
}
