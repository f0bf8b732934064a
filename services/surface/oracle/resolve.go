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
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/surface/services/surface/ast"
)

// lookupName resolves a bare identifier at a given tree position.
//
// Description:
//
//	Lexical resolution order: enclosing function parameters and block-local
//	declarations (innermost first), enclosing namespace members, file scope,
//	then import bindings. Names bound outside the context file set do not
//	resolve; the callers treat that as "not ours".
func (c *Checker) lookupName(file string, at *sitter.Node, name string) (*Symbol, bool) {
	ft, ok := c.files[file]
	if !ok {
		return nil, false
	}
	f := ft.file

	for n := at; n != nil; n = n.Parent() {
		switch n.Type() {
		case "arrow_function", "function_declaration", "function_expression",
			"method_definition", "generator_function_declaration":
			if params := ast.FirstChild(n, "formal_parameters"); params != nil {
				if sym, ok := paramSymbol(f, params, name); ok {
					return sym, true
				}
			}
		case "statement_block", "program":
			if sym, ok := blockLocalSymbol(f, n, name); ok {
				return sym, true
			}
		case "internal_module":
			if ns := c.namespaceAt(file, n); ns != nil {
				if sym, ok := ns.Member(name); ok {
					return sym, true
				}
			}
		}
	}

	if sym, ok := ft.scope[name]; ok {
		return sym, true
	}

	if binding, ok := ft.imports[name]; ok {
		return c.resolveImportBinding(file, binding)
	}

	if sym, ok := c.globals[name]; ok {
		return sym, true
	}
	return nil, false
}

// paramSymbol finds a formal parameter declaration by name.
func paramSymbol(f *ast.SourceFile, params *sitter.Node, name string) (*Symbol, bool) {
	for i := 0; i < int(params.ChildCount()); i++ {
		param := params.Child(i)
		if param == nil {
			continue
		}
		switch param.Type() {
		case "required_parameter", "optional_parameter":
			if paramName(f, param) == name {
				return &Symbol{
					Name: name, Kind: KindVariable, File: f.Path, Node: param,
				}, true
			}
		}
	}
	return nil, false
}

// paramName extracts the bound identifier of a parameter, unwrapping rest
// patterns. Destructuring patterns yield "".
func paramName(f *ast.SourceFile, param *sitter.Node) string {
	pattern := param.ChildByFieldName("pattern")
	if pattern == nil {
		pattern = ast.FirstChild(param, "identifier")
	}
	if pattern == nil {
		return ""
	}
	switch pattern.Type() {
	case "identifier":
		return f.Text(pattern)
	case "rest_pattern":
		if id := ast.FirstChild(pattern, "identifier"); id != nil {
			return f.Text(id)
		}
	}
	return ""
}

// blockLocalSymbol finds a const/let/var declarator by name among the
// direct statements of a block.
func blockLocalSymbol(f *ast.SourceFile, block *sitter.Node, name string) (*Symbol, bool) {
	for i := 0; i < int(block.ChildCount()); i++ {
		stmt := block.Child(i)
		if stmt == nil {
			continue
		}
		if stmt.Type() != "lexical_declaration" && stmt.Type() != "variable_declaration" {
			continue
		}
		for _, declarator := range ast.Children(stmt, "variable_declarator") {
			nameNode := declarator.ChildByFieldName("name")
			if nameNode != nil && nameNode.Type() == "identifier" && f.Text(nameNode) == name {
				return &Symbol{
					Name: name, Kind: KindVariable, File: f.Path, Node: declarator,
				}, true
			}
		}
	}
	return nil, false
}

// resolveImportBinding follows an import binding into the target file's
// export table.
func (c *Checker) resolveImportBinding(file string, b ast.ImportBinding) (*Symbol, bool) {
	target, ok := c.resolve(file, b.Specifier)
	if !ok {
		return nil, false
	}
	if b.IsNamespace {
		return &Symbol{
			Name: b.LocalName, Kind: KindNamespace, moduleFile: target,
		}, true
	}
	if b.IsDefault {
		// Only identifier default exports resolve to a symbol.
		expr, ok := c.DefaultExport(target)
		if !ok {
			return nil, false
		}
		if expr.Type() == "identifier" {
			if tf, ok := c.files[target]; ok {
				if sym, ok := tf.scope[tf.file.Text(expr)]; ok {
					return sym, true
				}
			}
		}
		return nil, false
	}
	return c.LookupExport(target, b.ExportedName)
}

// valueSymbolForExpr resolves an identifier or dotted member expression to
// the symbol it denotes as a value (enum, namespace, imported module, ...).
func (c *Checker) valueSymbolForExpr(file string, expr *sitter.Node) (*Symbol, bool) {
	if expr == nil {
		return nil, false
	}
	switch expr.Type() {
	case "identifier":
		f, ok := c.SourceFile(file)
		if !ok {
			return nil, false
		}
		return c.lookupName(file, expr, f.Text(expr))
	case "member_expression":
		obj, ok := c.valueSymbolForExpr(file, expr.ChildByFieldName("object"))
		if !ok {
			return nil, false
		}
		f, _ := c.SourceFile(file)
		prop := expr.ChildByFieldName("property")
		if prop == nil || f == nil {
			return nil, false
		}
		return c.memberSymbol(obj, f.Text(prop))
	}
	return nil, false
}

// EvaluateConstant evaluates a property-access expression as a constant.
//
// Description:
//
//	Supports constant enum member references (Events.Done, ns.Events.Done)
//	resolved through imports and namespaces. Anything else is not a
//	compile-time constant from the oracle's point of view.
func (c *Checker) EvaluateConstant(file string, expr *sitter.Node) (ConstantValue, bool) {
	if expr == nil || expr.Type() != "member_expression" {
		return ConstantValue{}, false
	}
	sym, ok := c.valueSymbolForExpr(file, expr)
	if !ok || sym.Kind != KindEnumMember {
		return ConstantValue{}, false
	}
	return sym.constValue, true
}

// ContextualType computes the contextual/inferred type of an expression at
// its position in the file.
func (c *Checker) ContextualType(file string, expr *sitter.Node) (TypeHandle, bool) {
	if expr == nil {
		return TypeHandle{}, false
	}
	f, ok := c.SourceFile(file)
	if !ok {
		return TypeHandle{}, false
	}

	switch expr.Type() {
	case "string", "template_string":
		return TypeHandle{shape: ShapePrimitive, name: "string"}, true
	case "number":
		return TypeHandle{shape: ShapePrimitive, name: "number"}, true
	case "true", "false":
		return TypeHandle{shape: ShapePrimitive, name: "boolean"}, true
	case "null":
		return TypeHandle{shape: ShapePrimitive, name: "null"}, true
	case "undefined":
		return TypeHandle{shape: ShapePrimitive, name: "undefined"}, true

	case "object":
		return TypeHandle{shape: ShapeObject, file: file, node: expr}, true

	case "array":
		var elem TypeHandle
		if first := firstNamedChild(expr); first != nil {
			elem, _ = c.ContextualType(file, first)
		}
		return TypeHandle{shape: ShapeArray, elem: &elem}, true

	case "parenthesized_expression":
		return c.ContextualType(file, firstNamedChild(expr))

	case "as_expression", "satisfies_expression":
		// x as T: the asserted type wins.
		if last := lastNamedChild(expr); last != nil && last != firstNamedChild(expr) {
			return c.resolveTypeExpr(file, last), true
		}
		return c.ContextualType(file, firstNamedChild(expr))

	case "identifier", "shorthand_property_identifier":
		sym, ok := c.lookupName(file, expr, f.Text(expr))
		if !ok {
			return TypeHandle{}, false
		}
		return c.declaredTypeOf(sym)

	case "member_expression":
		return c.typeOfMember(file, expr)

	case "call_expression":
		sig, ok := c.ResolveSignature(file, expr)
		if !ok || !sig.HasReturn {
			return TypeHandle{}, false
		}
		return sig.Return, true

	case "new_expression":
		ctor := expr.ChildByFieldName("constructor")
		if ctor == nil {
			return TypeHandle{}, false
		}
		sym, ok := c.valueSymbolForExpr(file, ctor)
		if !ok || sym.Kind != KindClass {
			return TypeHandle{}, false
		}
		return c.handleForTypeSymbol(sym), true

	case "await_expression":
		return c.ContextualType(file, firstNamedChild(expr))
	}
	return TypeHandle{}, false
}

// declaredTypeOf resolves the declared (or initializer-inferred) type of a
// symbol.
func (c *Checker) declaredTypeOf(sym *Symbol) (TypeHandle, bool) {
	if sym == nil {
		return TypeHandle{}, false
	}
	switch sym.Kind {
	case KindVariable:
		if ann := ast.FirstChild(sym.Node, "type_annotation"); ann != nil {
			return c.resolveTypeExpr(sym.File, ast.TypeOfAnnotation(ann)), true
		}
		if v := sym.Node.ChildByFieldName("value"); v != nil {
			return c.ContextualType(sym.File, v)
		}
		return TypeHandle{}, false
	case KindInterface, KindClass, KindEnum, KindTypeAlias:
		return c.handleForTypeSymbol(sym), true
	case KindFunction, KindMethod:
		return TypeHandle{shape: ShapePrimitive, name: "function"}, true
	case KindEnumMember:
		switch sym.constValue.Kind {
		case ConstString:
			return TypeHandle{shape: ShapePrimitive, name: "string"}, true
		case ConstNumber:
			return TypeHandle{shape: ShapePrimitive, name: "number"}, true
		}
	}
	return TypeHandle{}, false
}

// typeOfMember resolves the type of a member-access expression, through
// namespaces, enums, and object-shaped receiver types.
func (c *Checker) typeOfMember(file string, expr *sitter.Node) (TypeHandle, bool) {
	f, ok := c.SourceFile(file)
	if !ok {
		return TypeHandle{}, false
	}
	prop := expr.ChildByFieldName("property")
	objNode := expr.ChildByFieldName("object")
	if prop == nil || objNode == nil {
		return TypeHandle{}, false
	}
	propName := f.Text(prop)

	// Qualified symbol paths first: ns.Member, Enum.Member, moduleAlias.X.
	if objSym, ok := c.valueSymbolForExpr(file, objNode); ok {
		if member, ok := c.memberSymbol(objSym, propName); ok {
			return c.declaredTypeOf(member)
		}
	}

	// Structural receivers: property of an object-shaped type.
	objType, ok := c.ContextualType(file, objNode)
	if !ok || objType.shape != ShapeObject {
		return TypeHandle{}, false
	}
	for _, p := range c.Properties(objType) {
		if p.Name == propName {
			return p.Type, true
		}
	}
	return TypeHandle{}, false
}

// ResolveSignature resolves a call expression to its callee's declared
// signature.
//
// Description:
//
//	Plain identifier callees resolve lexically; member callees resolve
//	through the receiver's declared type to an interface method or class
//	method declaration. A false result means the callee's declaration is
//	outside the context (or not statically known) — the caller continues
//	without action, per the scanning policy.
func (c *Checker) ResolveSignature(file string, call *sitter.Node) (*Signature, bool) {
	if call == nil || call.Type() != "call_expression" {
		return nil, false
	}
	f, ok := c.SourceFile(file)
	if !ok {
		return nil, false
	}
	callee := call.ChildByFieldName("function")
	if callee == nil {
		return nil, false
	}

	switch callee.Type() {
	case "identifier":
		sym, ok := c.lookupName(file, callee, f.Text(callee))
		if !ok {
			return nil, false
		}
		sigs := c.CallSignaturesOf(sym)
		if len(sigs) == 0 {
			return nil, false
		}
		return sigs[0], true

	case "member_expression":
		return c.resolveMemberCall(file, callee)
	}
	return nil, false
}

// resolveMemberCall resolves obj.method(...) callees.
func (c *Checker) resolveMemberCall(file string, callee *sitter.Node) (*Signature, bool) {
	f, _ := c.SourceFile(file)
	prop := callee.ChildByFieldName("property")
	objNode := callee.ChildByFieldName("object")
	if prop == nil || objNode == nil || f == nil {
		return nil, false
	}
	methodName := f.Text(prop)

	// Namespace- or module-qualified function: ns.helper(...).
	if objSym, ok := c.valueSymbolForExpr(file, objNode); ok {
		if member, ok := c.memberSymbol(objSym, methodName); ok {
			sigs := c.CallSignaturesOf(member)
			if len(sigs) > 0 {
				return sigs[0], true
			}
		}
	}

	// Method on the receiver's declared type.
	objType, ok := c.ContextualType(file, objNode)
	if !ok || objType.shape != ShapeObject || objType.node == nil {
		return nil, false
	}
	return c.methodSignatureIn(objType, methodName)
}

// methodSignatureIn finds a named method declaration inside an interface or
// class body handle and builds its signature.
func (c *Checker) methodSignatureIn(objType TypeHandle, name string) (*Signature, bool) {
	f, ok := c.SourceFile(objType.file)
	if !ok {
		return nil, false
	}
	for i := 0; i < int(objType.node.ChildCount()); i++ {
		child := objType.node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "method_signature", "method_definition":
			if f.Text(child.ChildByFieldName("name")) != name {
				continue
			}
			methodSym := &Symbol{
				Name: name, Kind: KindMethod, File: objType.file,
				Node: child, Decls: []*sitter.Node{child}, Parent: objType.sym,
			}
			sig := c.signatureFromFunctionNode(objType.file, child, methodSym)
			return sig, sig != nil
		}
	}
	return nil, false
}

// CallSignaturesOf returns every call signature a symbol exposes.
//
// Description:
//
//	TypeScript overload syntax declares a name several times: N body-less
//	signature declarations followed by one implementation. Two or more
//	body-less declarations therefore mean an overloaded symbol, and each
//	contributes a signature. A lone declaration (with or without body)
//	contributes exactly one.
func (c *Checker) CallSignaturesOf(sym *Symbol) []*Signature {
	if sym == nil {
		return nil
	}
	switch sym.Kind {
	case KindFunction, KindMethod:
		var bodyless, withBody []*sitter.Node
		for _, decl := range sym.Decls {
			if ast.FirstChild(decl, "statement_block") != nil {
				withBody = append(withBody, decl)
			} else {
				bodyless = append(bodyless, decl)
			}
		}
		declNodes := bodyless
		if len(declNodes) == 0 {
			declNodes = withBody
		}
		var sigs []*Signature
		for _, decl := range declNodes {
			if sig := c.signatureFromFunctionNode(sym.File, decl, sym); sig != nil {
				sigs = append(sigs, sig)
			}
		}
		return sigs

	case KindVariable:
		if v := sym.Node.ChildByFieldName("value"); v != nil {
			switch v.Type() {
			case "arrow_function", "function_expression":
				if sig := c.signatureFromFunctionNode(sym.File, v, sym); sig != nil {
					return []*Signature{sig}
				}
			}
		}
	}
	return nil
}

// SignatureOfFunctionNode builds the signature of a bare function-valued
// node (arrow function, function expression, or object-literal method).
// Used by the command extractor's assignment-export convention, where the
// handler is a property value rather than a named declaration.
func (c *Checker) SignatureOfFunctionNode(file string, node *sitter.Node) (*Signature, bool) {
	if node == nil {
		return nil, false
	}
	switch node.Type() {
	case "arrow_function", "function_expression", "function_declaration", "method_definition":
		sig := c.signatureFromFunctionNode(file, node, nil)
		return sig, sig != nil
	}
	return nil, false
}

// signatureFromFunctionNode extracts parameters and the declared return
// type from any function-shaped declaration node.
func (c *Checker) signatureFromFunctionNode(file string, node *sitter.Node, declaring *Symbol) *Signature {
	f, ok := c.SourceFile(file)
	if !ok || node == nil {
		return nil
	}
	sig := &Signature{Declaring: declaring}

	params := ast.FirstChild(node, "formal_parameters")
	if params != nil {
		for i := 0; i < int(params.ChildCount()); i++ {
			param := params.Child(i)
			if param == nil {
				continue
			}
			switch param.Type() {
			case "required_parameter", "optional_parameter":
				name := paramName(f, param)
				if name == "" {
					continue
				}
				p := Param{Name: name}
				if ann := ast.FirstChild(param, "type_annotation"); ann != nil {
					p.Type = c.resolveTypeExpr(file, ast.TypeOfAnnotation(ann))
					p.HasType = true
				}
				sig.Parameters = append(sig.Parameters, p)
			}
		}
	}

	// The return annotation is the type_annotation that is a direct child of
	// the function node itself (parameter annotations sit inside
	// formal_parameters).
	if ann := ast.FirstChild(node, "type_annotation"); ann != nil {
		sig.Return = c.resolveTypeExpr(file, ast.TypeOfAnnotation(ann))
		sig.HasReturn = true
	}
	return sig
}
