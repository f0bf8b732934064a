// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// ImportBinding records one local name introduced by an import statement.
type ImportBinding struct {
	// LocalName is the identifier visible in the importing file.
	LocalName string

	// ExportedName is the name in the source module's export table. Equals
	// LocalName unless the import is aliased. Empty for namespace imports.
	ExportedName string

	// Specifier is the raw module specifier, e.g. "./events".
	Specifier string

	// IsNamespace marks import * as ns bindings.
	IsNamespace bool

	// IsDefault marks default imports.
	IsDefault bool
}

// ImportSpecifiers returns the module specifiers of all import and re-export
// statements in the file, in source order.
//
// Description:
//
//	Covers ES module imports (import { a } from './x'), re-exports
//	(export { a } from './x'), and CommonJS require bindings assigned to a
//	const. Used by the source context builder to compute the import closure.
func ImportSpecifiers(f *SourceFile) []string {
	var specs []string
	root := f.Root()
	if root == nil {
		return specs
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "import_statement", "export_statement":
			if str := FirstChild(child, "string"); str != nil {
				specs = append(specs, f.StringContent(str))
			}
		case "lexical_declaration":
			specs = append(specs, requireSpecifiers(f, child)...)
		}
	}
	return specs
}

// ImportBindings returns every local name bound by the file's import
// statements, with its origin.
func ImportBindings(f *SourceFile) []ImportBinding {
	var bindings []ImportBinding
	root := f.Root()
	if root == nil {
		return bindings
	}
	for _, stmt := range Children(root, "import_statement") {
		str := FirstChild(stmt, "string")
		if str == nil {
			continue
		}
		spec := f.StringContent(str)
		clause := FirstChild(stmt, "import_clause")
		if clause == nil {
			continue
		}
		for i := 0; i < int(clause.ChildCount()); i++ {
			child := clause.Child(i)
			if child == nil {
				continue
			}
			switch child.Type() {
			case "identifier":
				bindings = append(bindings, ImportBinding{
					LocalName: f.Text(child),
					Specifier: spec,
					IsDefault: true,
				})
			case "namespace_import":
				if id := FirstChild(child, "identifier"); id != nil {
					bindings = append(bindings, ImportBinding{
						LocalName:   f.Text(id),
						Specifier:   spec,
						IsNamespace: true,
					})
				}
			case "named_imports":
				for _, is := range Children(child, "import_specifier") {
					local, exported := importSpecifierNames(f, is)
					if local != "" {
						bindings = append(bindings, ImportBinding{
							LocalName:    local,
							ExportedName: exported,
							Specifier:    spec,
						})
					}
				}
			}
		}
	}
	return bindings
}

// importSpecifierNames extracts (local, exported) names from one specifier,
// handling the "name as alias" form.
func importSpecifierNames(f *SourceFile, spec *sitter.Node) (local, exported string) {
	var names []string
	for i := 0; i < int(spec.ChildCount()); i++ {
		child := spec.Child(i)
		if child != nil && child.Type() == "identifier" {
			names = append(names, f.Text(child))
		}
	}
	switch len(names) {
	case 0:
		return "", ""
	case 1:
		return names[0], names[0]
	default:
		// import { exported as local }
		return names[1], names[0]
	}
}

// requireSpecifiers extracts module specifiers from const x = require('...').
func requireSpecifiers(f *SourceFile, decl *sitter.Node) []string {
	var specs []string
	for _, declarator := range Children(decl, "variable_declarator") {
		call := FirstChild(declarator, "call_expression")
		if call == nil {
			continue
		}
		fn := call.ChildByFieldName("function")
		if fn == nil || fn.Type() != "identifier" || f.Text(fn) != "require" {
			continue
		}
		args := call.ChildByFieldName("arguments")
		if args == nil {
			continue
		}
		if str := FirstChild(args, "string"); str != nil {
			specs = append(specs, f.StringContent(str))
		}
	}
	return specs
}
