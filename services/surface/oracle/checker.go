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
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/AleutianAI/surface/services/surface/ast"
)

// ImportResolver maps an import specifier in a given file to the resolved
// project-relative path of the target context file.
type ImportResolver func(fromFile, specifier string) (string, bool)

// Checker is the tree-sitter-backed Oracle implementation.
//
// Description:
//
//	Built once per parse session over the closed context file set. All
//	queries are resolved against per-file symbol tables constructed here:
//	top-level declarations, export tables, import bindings, and eagerly
//	evaluated enum members.
//
// Thread Safety:
//
//	Safe for concurrent reads after NewChecker returns. The session that
//	owns it is single-threaded anyway.
type Checker struct {
	files   map[string]*fileTable
	ordered []string
	resolve ImportResolver

	// namespaces indexes namespace symbols by file and declaration start
	// byte, so lexical lookup from inside a namespace body can find its
	// member table without relying on node identity.
	namespaces map[string]map[uint32]*Symbol

	// globals holds ambient declarations: top-level symbols of declaration
	// files, visible everywhere without an import. First declaration wins.
	globals map[string]*Symbol
}

// fileTable is the per-file symbol environment.
type fileTable struct {
	file          *ast.SourceFile
	scope         map[string]*Symbol
	exports       map[string]*Symbol
	imports       map[string]ast.ImportBinding
	defaultExport *sitter.Node
	valueModule   bool
}

var _ Oracle = (*Checker)(nil)

// NewChecker builds a Checker over the given context files.
//
// Inputs:
//   - files: Parsed context files in discovery order.
//   - resolve: Import specifier resolution provided by the source context
//     builder. May be nil, in which case cross-file bindings never resolve.
func NewChecker(files []*ast.SourceFile, resolve ImportResolver) *Checker {
	c := &Checker{
		files:      make(map[string]*fileTable, len(files)),
		resolve:    resolve,
		namespaces: make(map[string]map[uint32]*Symbol),
		globals:    make(map[string]*Symbol),
	}
	if c.resolve == nil {
		c.resolve = func(string, string) (string, bool) { return "", false }
	}
	for _, f := range files {
		c.ordered = append(c.ordered, f.Path)
		c.files[f.Path] = c.buildFileTable(f)
	}

	// Declaration files are global scripts: their top-level symbols are
	// ambient and visible without an import.
	for _, path := range c.ordered {
		if !strings.HasSuffix(path, ".d.ts") {
			continue
		}
		for name, sym := range c.files[path].scope {
			if _, taken := c.globals[name]; !taken {
				c.globals[name] = sym
			}
		}
	}
	return c
}

// Files returns the ordered context file list.
func (c *Checker) Files() []string {
	return c.ordered
}

// SourceFile returns the parsed file registered under path.
func (c *Checker) SourceFile(path string) (*ast.SourceFile, bool) {
	ft, ok := c.files[path]
	if !ok {
		return nil, false
	}
	return ft.file, true
}

// buildFileTable constructs the symbol environment of one file.
func (c *Checker) buildFileTable(f *ast.SourceFile) *fileTable {
	ft := &fileTable{
		file:    f,
		scope:   make(map[string]*Symbol),
		exports: make(map[string]*Symbol),
		imports: make(map[string]ast.ImportBinding),
	}

	for _, b := range ast.ImportBindings(f) {
		ft.imports[b.LocalName] = b
	}

	root := f.Root()
	if root == nil {
		return ft
	}
	for i := 0; i < int(root.ChildCount()); i++ {
		c.collectDeclaration(ft, f, root.Child(i), nil, false)
	}
	return ft
}

// collectDeclaration registers the symbols declared by one top-level (or
// namespace-level) statement.
//
// parent is the enclosing namespace symbol, nil at file level. exported
// marks declarations wrapped in an export statement; namespace members are
// always visible to qualified lookup.
func (c *Checker) collectDeclaration(ft *fileTable, f *ast.SourceFile, node *sitter.Node, parent *Symbol, exported bool) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "export_statement":
		c.collectExportStatement(ft, f, node, parent)

	case "ambient_declaration":
		// declare namespace / declare const ...: unwrap and recurse.
		for i := 0; i < int(node.ChildCount()); i++ {
			c.collectDeclaration(ft, f, node.Child(i), parent, exported)
		}

	case "internal_module":
		c.collectNamespace(ft, f, node, parent, exported)

	case "function_declaration", "function_signature":
		// Overload declarations (bodyless) parse as function_signature and
		// merge into the same symbol via register.
		name := f.Text(node.ChildByFieldName("name"))
		if name == "" {
			return
		}
		c.register(ft, parent, &Symbol{
			Name: name, Kind: KindFunction, File: f.Path, Node: node, Exported: exported,
		})
		ft.valueModule = true

	case "class_declaration", "abstract_class_declaration":
		name := f.Text(node.ChildByFieldName("name"))
		if name == "" {
			return
		}
		c.register(ft, parent, &Symbol{
			Name: name, Kind: KindClass, File: f.Path, Node: node, Exported: exported,
		})
		ft.valueModule = true

	case "interface_declaration":
		name := f.Text(node.ChildByFieldName("name"))
		if name == "" {
			return
		}
		c.register(ft, parent, &Symbol{
			Name: name, Kind: KindInterface, File: f.Path, Node: node, Exported: exported,
		})

	case "type_alias_declaration":
		name := f.Text(node.ChildByFieldName("name"))
		if name == "" {
			return
		}
		c.register(ft, parent, &Symbol{
			Name: name, Kind: KindTypeAlias, File: f.Path, Node: node, Exported: exported,
		})

	case "enum_declaration":
		c.collectEnum(ft, f, node, parent, exported)
		ft.valueModule = true

	case "lexical_declaration", "variable_declaration":
		for _, declarator := range ast.Children(node, "variable_declarator") {
			nameNode := declarator.ChildByFieldName("name")
			if nameNode == nil || nameNode.Type() != "identifier" {
				continue
			}
			c.register(ft, parent, &Symbol{
				Name: f.Text(nameNode), Kind: KindVariable, File: f.Path,
				Node: declarator, Exported: exported,
			})
		}
		ft.valueModule = true
	}
}

// collectExportStatement handles the export statement forms: wrapped
// declarations, default-export expressions, and export clauses.
func (c *Checker) collectExportStatement(ft *fileTable, f *ast.SourceFile, node *sitter.Node, parent *Symbol) {
	isDefault := false
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "export", "type":
			// keywords
		case "default":
			isDefault = true
		case "export_clause":
			// export { a, b as c }: mark existing scope entries exported.
			for _, spec := range ast.Children(child, "export_specifier") {
				if id := ast.FirstChild(spec, "identifier"); id != nil {
					if sym, ok := ft.scope[f.Text(id)]; ok {
						sym.Exported = true
						ft.exports[sym.Name] = sym
					}
				}
			}
		case "string":
			// re-export source; handled by the import closure, nothing to bind.
		case "function_declaration", "function_signature", "class_declaration",
			"abstract_class_declaration", "interface_declaration",
			"type_alias_declaration", "enum_declaration", "lexical_declaration",
			"variable_declaration", "internal_module", "ambient_declaration":
			c.collectDeclaration(ft, f, child, parent, true)
		default:
			// export default <expression>
			if isDefault && child.IsNamed() {
				ft.defaultExport = child
				ft.valueModule = true
			}
		}
	}
}

// collectNamespace registers a namespace symbol and its members.
func (c *Checker) collectNamespace(ft *fileTable, f *ast.SourceFile, node *sitter.Node, parent *Symbol, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		nameNode = ast.FirstChild(node, "identifier")
	}
	if nameNode == nil {
		return
	}
	ns := &Symbol{
		Name: f.Text(nameNode), Kind: KindNamespace, File: f.Path,
		Node: node, Parent: parent, Exported: exported,
		members: make(map[string]*Symbol),
	}
	c.register(ft, parent, ns)

	byPos := c.namespaces[f.Path]
	if byPos == nil {
		byPos = make(map[uint32]*Symbol)
		c.namespaces[f.Path] = byPos
	}
	byPos[node.StartByte()] = ns

	body := ast.FirstChild(node, "statement_block")
	if body == nil {
		return
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		c.collectDeclaration(ft, f, body.Child(i), ns, false)
	}
}

// collectEnum registers an enum symbol with eagerly evaluated member
// constants, applying TypeScript's auto-increment rule for uninitialized
// numeric members.
func (c *Checker) collectEnum(ft *fileTable, f *ast.SourceFile, node *sitter.Node, parent *Symbol, exported bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		nameNode = ast.FirstChild(node, "identifier")
	}
	if nameNode == nil {
		return
	}
	enum := &Symbol{
		Name: f.Text(nameNode), Kind: KindEnum, File: f.Path,
		Node: node, Parent: parent, Exported: exported,
		members: make(map[string]*Symbol),
	}
	c.register(ft, parent, enum)

	body := ast.FirstChild(node, "enum_body")
	if body == nil {
		return
	}

	next := float64(0)
	for i := 0; i < int(body.ChildCount()); i++ {
		child := body.Child(i)
		if child == nil {
			continue
		}
		var memberName string
		value := ConstantValue{Kind: ConstNumber, Num: next}
		switch child.Type() {
		case "enum_assignment":
			nameChild := child.ChildByFieldName("name")
			if nameChild == nil {
				nameChild = ast.FirstChild(child, "property_identifier")
			}
			memberName = f.Text(nameChild)
			if v, ok := c.literalConstant(f, child.ChildByFieldName("value")); ok {
				value = v
			} else if lit := lastNamedChild(child); lit != nil {
				if v, ok := c.literalConstant(f, lit); ok {
					value = v
				}
			}
		case "property_identifier":
			memberName = f.Text(child)
		default:
			continue
		}
		if memberName == "" {
			continue
		}
		if value.Kind == ConstNumber {
			next = value.Num + 1
		}
		member := &Symbol{
			Name: memberName, Kind: KindEnumMember, File: f.Path,
			Node: child, Parent: enum, constValue: value,
		}
		enum.members[memberName] = member
		enum.memberOrder = append(enum.memberOrder, memberName)
	}
}

// literalConstant evaluates a literal initializer node.
func (c *Checker) literalConstant(f *ast.SourceFile, node *sitter.Node) (ConstantValue, bool) {
	if node == nil {
		return ConstantValue{}, false
	}
	switch node.Type() {
	case "string", "template_string":
		return ConstantValue{Kind: ConstString, Str: f.StringContent(node)}, true
	case "number":
		n, err := strconv.ParseFloat(f.Text(node), 64)
		if err != nil {
			return ConstantValue{}, false
		}
		return ConstantValue{Kind: ConstNumber, Num: n}, true
	case "unary_expression":
		text := strings.TrimSpace(f.Text(node))
		if strings.HasPrefix(text, "-") {
			n, err := strconv.ParseFloat(text, 64)
			if err == nil {
				return ConstantValue{Kind: ConstNumber, Num: n}, true
			}
		}
	}
	return ConstantValue{}, false
}

// register binds a symbol into the namespace member table or the file scope.
func (c *Checker) register(ft *fileTable, parent *Symbol, sym *Symbol) {
	sym.Decls = append(sym.Decls, sym.Node)
	if parent != nil {
		sym.Parent = parent
		if existing, ok := parent.members[sym.Name]; ok {
			existing.Decls = append(existing.Decls, sym.Node)
			return
		}
		parent.members[sym.Name] = sym
		parent.memberOrder = append(parent.memberOrder, sym.Name)
		return
	}
	if existing, ok := ft.scope[sym.Name]; ok {
		// Overload signatures or merged declarations of the same name.
		existing.Decls = append(existing.Decls, sym.Node)
		if sym.Exported {
			existing.Exported = true
			ft.exports[existing.Name] = existing
		}
		return
	}
	ft.scope[sym.Name] = sym
	if sym.Exported {
		ft.exports[sym.Name] = sym
	}
}

// IsValueModule reports whether the file exports runtime values.
func (c *Checker) IsValueModule(file string) bool {
	ft, ok := c.files[file]
	if !ok {
		return false
	}
	return ft.valueModule
}

// LookupExport returns the named entry of a file's export table.
func (c *Checker) LookupExport(file, name string) (*Symbol, bool) {
	ft, ok := c.files[file]
	if !ok {
		return nil, false
	}
	sym, ok := ft.exports[name]
	return sym, ok
}

// FileScopeSymbol returns the named top-level symbol of a file, exported
// or not.
func (c *Checker) FileScopeSymbol(file, name string) (*Symbol, bool) {
	ft, ok := c.files[file]
	if !ok {
		return nil, false
	}
	sym, ok := ft.scope[name]
	return sym, ok
}

// DefaultExport returns the expression node of the file's default export.
func (c *Checker) DefaultExport(file string) (*sitter.Node, bool) {
	ft, ok := c.files[file]
	if !ok || ft.defaultExport == nil {
		return nil, false
	}
	return ft.defaultExport, true
}

// QualifiedOrigin returns the lexical declaration path of a symbol, root
// first. For a framework method this is e.g. [Server, State, emit]; the
// scanner matches that shape instead of chasing parent pointers itself.
func (c *Checker) QualifiedOrigin(sym *Symbol) []string {
	if sym == nil {
		return nil
	}
	var rev []string
	for s := sym; s != nil; s = s.Parent {
		rev = append(rev, s.Name)
	}
	path := make([]string, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return path
}

// namespaceAt returns the namespace symbol declared by the internal_module
// node at this position, nil if none was collected there.
func (c *Checker) namespaceAt(file string, node *sitter.Node) *Symbol {
	byPos, ok := c.namespaces[file]
	if !ok || node == nil {
		return nil
	}
	return byPos[node.StartByte()]
}

// lastNamedChild returns the last named child of a node.
func lastNamedChild(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := int(n.ChildCount()) - 1; i >= 0; i-- {
		child := n.Child(i)
		if child != nil && child.IsNamed() {
			return child
		}
	}
	return nil
}
