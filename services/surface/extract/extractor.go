// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract resolves the exported handler of a command-endpoint file
// into a catalog UserCommand record.
package extract

import (
	"context"
	"log/slog"

	sitter "github.com/smacker/go-tree-sitter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/surface/services/surface/analysis"
	"github.com/AleutianAI/surface/services/surface/ast"
	"github.com/AleutianAI/surface/services/surface/catalog"
	"github.com/AleutianAI/surface/services/surface/config"
	"github.com/AleutianAI/surface/services/surface/materialize"
	"github.com/AleutianAI/surface/services/surface/oracle"
)

var extractTracer = otel.Tracer("aleutian.surface.extract")

// HandlerName is the export name a command-endpoint file must bind its
// handler to, in either export convention.
const HandlerName = "execute"

// handler is a located execute handler: a named export symbol or a bare
// function node inside a default-export object literal.
type handler struct {
	sym  *oracle.Symbol
	node *sitter.Node
	file string
}

// handlerResolver is one export-convention strategy. Strategies are tried
// in priority order; a false result means "this convention does not apply
// here", never a fault.
type handlerResolver interface {
	resolveHandler(file string) (handler, bool)
}

// Extractor turns command-endpoint files into UserCommand records.
//
// Description:
//
//	Locates the execute handler by trying the export conventions in order
//	(named export first, default-export object literal second), enforces
//	the single-signature and deferred-result-wrapper rules, and
//	materializes parameter and return types into the owning module's
//	catalog.
//
// Thread Safety: Not safe for concurrent use. One per parse session.
type Extractor struct {
	checker      *oracle.Checker
	framework    config.Framework
	materializer *materialize.Materializer
	resolvers    []handlerResolver
}

// New creates an Extractor bound to the session's checker and materializer.
func New(checker *oracle.Checker, fw config.Framework, m *materialize.Materializer) *Extractor {
	e := &Extractor{
		checker:      checker,
		framework:    fw,
		materializer: m,
	}
	e.resolvers = []handlerResolver{
		&namedExportResolver{checker: checker},
		&defaultObjectResolver{checker: checker},
	}
	return e
}

// ExtractCommand extracts the command endpoint declared by one file and
// appends it to the module.
//
// Inputs:
//   - f: The parsed command-endpoint file.
//   - mod: The owning module record.
//   - commandName: Derived from the file path, not from any declaration.
//
// Outputs:
//
//	error - Fatal on any violation of the handler contract: non-value
//	module, missing handler, overloaded handler, or a return type that is
//	not the single-argument deferred-result wrapper.
func (e *Extractor) ExtractCommand(ctx context.Context, f *ast.SourceFile, mod *catalog.Module, commandName string) error {
	_, span := extractTracer.Start(ctx, "extract.Extractor.ExtractCommand",
		trace.WithAttributes(
			attribute.String("file", f.Path),
			attribute.String("command", commandName),
		))
	defer span.End()

	if !e.checker.IsValueModule(f.Path) {
		return analysis.NewError(analysis.ErrNotAModuleFile, mod.Name, f.Path)
	}

	h, ok := e.locateHandler(f.Path)
	if !ok {
		return analysis.NewError(analysis.ErrHandlerNotExported, mod.Name, f.Path)
	}

	sig, err := e.handlerSignature(mod.Name, h)
	if err != nil {
		return err
	}

	returnType, err := e.returnTypeArgument(mod, sig)
	if err != nil {
		return err
	}

	cmd := &catalog.UserCommand{
		Name:       commandName,
		Parameters: []catalog.Parameter{},
		ReturnType: returnType,
	}
	for _, p := range sig.Parameters {
		desc, err := e.parameterType(mod, p)
		if err != nil {
			return err
		}
		cmd.Parameters = append(cmd.Parameters, catalog.Parameter{Name: p.Name, Type: desc})
	}

	mod.UserCommands = append(mod.UserCommands, cmd)
	slog.Debug("command extracted",
		slog.String("module", mod.Name),
		slog.String("command", commandName),
		slog.Int("parameters", len(cmd.Parameters)))
	return nil
}

// locateHandler tries each export convention in priority order.
func (e *Extractor) locateHandler(file string) (handler, bool) {
	for _, r := range e.resolvers {
		if h, ok := r.resolveHandler(file); ok {
			return h, true
		}
	}
	return handler{}, false
}

// handlerSignature resolves the handler's single call signature. More than
// one signature means TypeScript overload declarations, which a remote
// endpoint cannot have.
func (e *Extractor) handlerSignature(moduleName string, h handler) (*oracle.Signature, error) {
	if h.sym != nil {
		sigs := e.checker.CallSignaturesOf(h.sym)
		switch len(sigs) {
		case 0:
			return nil, analysis.NewError(analysis.ErrHandlerNotExported, moduleName, h.sym.Name)
		case 1:
			return sigs[0], nil
		default:
			return nil, analysis.NewError(analysis.ErrOverloadedHandler, moduleName, h.sym.Name)
		}
	}
	sig, ok := e.checker.SignatureOfFunctionNode(h.file, h.node)
	if !ok {
		return nil, analysis.NewError(analysis.ErrHandlerNotExported, moduleName, HandlerName)
	}
	return sig, nil
}

// returnTypeArgument enforces the deferred-result contract: the declared
// return type must be the async wrapper with exactly one type argument, and
// that argument is the command's client-visible return type.
func (e *Extractor) returnTypeArgument(mod *catalog.Module, sig *oracle.Signature) (*catalog.TypeDesc, error) {
	if !sig.HasReturn {
		return nil, analysis.NewError(analysis.ErrMissingReturnTypeArgument, mod.Name, e.checker.TypeString(sig.Return))
	}
	base, args, ok := e.checker.GenericInfo(sig.Return)
	if !ok || base != e.framework.AsyncWrapper || len(args) != 1 {
		return nil, analysis.NewError(analysis.ErrMissingReturnTypeArgument, mod.Name, e.checker.TypeString(sig.Return))
	}
	return e.materializer.Materialize(mod, mod.Name, args[0])
}

// parameterType materializes one declared parameter type. Parameters
// without an annotation are carried as unknown rather than rejected.
func (e *Extractor) parameterType(mod *catalog.Module, p oracle.Param) (*catalog.TypeDesc, error) {
	if !p.HasType {
		return catalog.Primitive("unknown"), nil
	}
	return e.materializer.Materialize(mod, mod.Name, p.Type)
}

// namedExportResolver implements the module-export convention: a named
// export bound to the handler name.
type namedExportResolver struct {
	checker *oracle.Checker
}

func (r *namedExportResolver) resolveHandler(file string) (handler, bool) {
	sym, ok := r.checker.LookupExport(file, HandlerName)
	if !ok {
		return handler{}, false
	}
	return handler{sym: sym, file: file}, true
}

// defaultObjectResolver implements the assignment-export convention: a
// default-export object literal carrying an execute property, searched
// depth-first through nested object literals.
type defaultObjectResolver struct {
	checker *oracle.Checker
}

func (r *defaultObjectResolver) resolveHandler(file string) (handler, bool) {
	expr, ok := r.checker.DefaultExport(file)
	if !ok {
		return handler{}, false
	}
	f, ok := r.checker.SourceFile(file)
	if !ok {
		return handler{}, false
	}

	obj := r.objectLiteralOf(f, expr)
	if obj == nil {
		return handler{}, false
	}
	if fn := findExecuteProperty(f, obj); fn != nil {
		return handler{node: fn, file: file}, true
	}
	return handler{}, false
}

// objectLiteralOf unwraps the default-export expression to an object
// literal, following a local identifier one step.
func (r *defaultObjectResolver) objectLiteralOf(f *ast.SourceFile, expr *sitter.Node) *sitter.Node {
	switch expr.Type() {
	case "object":
		return expr
	case "identifier":
		sym, ok := r.checker.LookupExport(f.Path, f.Text(expr))
		if !ok {
			// Not exported by name; resolve through the file scope.
			sym, ok = r.checker.FileScopeSymbol(f.Path, f.Text(expr))
			if !ok {
				return nil
			}
		}
		if sym.Kind != oracle.KindVariable || sym.Node == nil {
			return nil
		}
		if v := sym.Node.ChildByFieldName("value"); v != nil && v.Type() == "object" {
			return v
		}
	}
	return nil
}

// findExecuteProperty depth-first searches an object literal for the first
// property named execute whose value is function-shaped.
func findExecuteProperty(f *ast.SourceFile, obj *sitter.Node) *sitter.Node {
	for i := 0; i < int(obj.ChildCount()); i++ {
		child := obj.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case "pair":
			key := child.ChildByFieldName("key")
			value := child.ChildByFieldName("value")
			if key == nil || value == nil {
				continue
			}
			name := f.Text(key)
			if key.Type() == "string" {
				name = f.StringContent(key)
			}
			if name == HandlerName {
				switch value.Type() {
				case "arrow_function", "function_expression":
					return value
				}
				continue
			}
			if value.Type() == "object" {
				if fn := findExecuteProperty(f, value); fn != nil {
					return fn
				}
			}
		case "method_definition":
			if name := child.ChildByFieldName("name"); name != nil && f.Text(name) == HandlerName {
				return child
			}
		}
	}
	return nil
}
