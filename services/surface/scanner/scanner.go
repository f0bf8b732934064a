// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scanner walks module source files for framework event emissions
// and records them as catalog messages.
package scanner

import (
	"context"
	"log/slog"
	"strconv"

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

var scanTracer = otel.Tracer("aleutian.surface.scanner")

// The state-capability methods whose calls produce messages.
const (
	methodEmit      = "emit"
	methodBroadcast = "broadcast"
)

// Scanner detects event-emission calls in module files.
//
// Description:
//
//	A call site counts as a framework emission only when the callee's
//	declaration chain proves it: the resolved signature must originate from
//	an emit/broadcast method declared directly on the state-capability
//	interface inside the reserved root namespace. Same-named methods on
//	user types never match. Call sites whose callee does not resolve inside
//	the context are skipped without comment; that is the closed-world
//	policy, not an error.
//
// Thread Safety: Not safe for concurrent use. One per parse session.
type Scanner struct {
	oracle       oracle.Oracle
	framework    config.Framework
	materializer *materialize.Materializer
}

// New creates a Scanner bound to the session's oracle and materializer.
func New(o oracle.Oracle, fw config.Framework, m *materialize.Materializer) *Scanner {
	return &Scanner{oracle: o, framework: fw, materializer: m}
}

// ScanFile walks one module file and appends every detected emission to the
// module's message list, in source order.
//
// Outputs:
//
//	error - Fatal on an event identifier that cannot be statically
//	resolved. A failed scan leaves no partial state worth keeping; the
//	session discards the whole catalog.
func (s *Scanner) ScanFile(ctx context.Context, f *ast.SourceFile, mod *catalog.Module) error {
	_, span := scanTracer.Start(ctx, "scanner.Scanner.ScanFile",
		trace.WithAttributes(
			attribute.String("file", f.Path),
			attribute.String("module", mod.Name),
		))
	defer span.End()

	var calls []*sitter.Node
	ast.Walk(f.Root(), func(n *sitter.Node) {
		if n.Type() == "call_expression" {
			calls = append(calls, n)
		}
	})

	found := 0
	for _, call := range calls {
		method, ok := s.frameworkMethod(f.Path, call)
		if !ok {
			continue
		}
		if err := s.recordEmission(f, mod, call, method); err != nil {
			return err
		}
		found++
	}
	span.SetAttributes(attribute.Int("messages", found))
	if found > 0 {
		slog.Debug("emissions recorded",
			slog.String("file", f.Path),
			slog.String("module", mod.Name),
			slog.Int("count", found))
	}
	return nil
}

// frameworkMethod reports whether the call resolves to a state-capability
// emission method, and which one.
//
// The proof is the declaration-origin chain: [RootNamespace, ...,
// StateInterface, method]. The method must be declared immediately inside
// the state interface, and the chain must be rooted at the reserved
// namespace.
func (s *Scanner) frameworkMethod(file string, call *sitter.Node) (string, bool) {
	sig, ok := s.oracle.ResolveSignature(file, call)
	if !ok || sig.Declaring == nil {
		return "", false
	}
	origin := s.oracle.QualifiedOrigin(sig.Declaring)
	if len(origin) < 3 {
		return "", false
	}
	method := origin[len(origin)-1]
	if method != methodEmit && method != methodBroadcast {
		return "", false
	}
	if origin[0] != s.framework.RootNamespace {
		return "", false
	}
	if origin[len(origin)-2] != s.framework.StateInterface {
		return "", false
	}
	return method, true
}

// recordEmission resolves the event identifier and payload type of one
// emission call and appends the message.
func (s *Scanner) recordEmission(f *ast.SourceFile, mod *catalog.Module, call *sitter.Node, method string) error {
	args := namedArguments(call)

	// emit(actor, event, payload?) addresses a recipient first;
	// broadcast(event, payload?) does not.
	eventIndex := 0
	if method == methodEmit {
		eventIndex = 1
	}
	if len(args) <= eventIndex {
		return analysis.NewError(analysis.ErrUnresolvableEventName, mod.Name, f.Text(call))
	}
	eventArg := args[eventIndex]

	id, value, err := s.resolveEventID(f, mod.Name, eventArg)
	if err != nil {
		return err
	}

	var payload *catalog.TypeDesc
	if len(args) > eventIndex+1 {
		payload, err = s.payloadType(f, mod, args[eventIndex+1])
		if err != nil {
			return err
		}
	} else {
		payload = catalog.Primitive("void")
	}

	mod.Messages = append(mod.Messages, &catalog.Message{
		ID:    id,
		Value: value,
		Type:  payload,
	})
	return nil
}

// resolveEventID statically resolves the event identifier argument.
//
// Description:
//
//	Three forms are accepted: a constant enum member reference (the id is
//	the member name, the value its declared constant), a string literal,
//	and a numeric literal. Everything else - variables, template strings
//	with substitutions, computed expressions - is a fatal fault: an event
//	name the scan cannot pin down is an event clients cannot subscribe to
//	by name.
func (s *Scanner) resolveEventID(f *ast.SourceFile, moduleName string, arg *sitter.Node) (string, any, error) {
	switch arg.Type() {
	case "member_expression":
		constant, ok := s.oracle.EvaluateConstant(f.Path, arg)
		if !ok {
			return "", nil, analysis.NewError(analysis.ErrUnresolvableEventName, moduleName, f.Text(arg))
		}
		prop := arg.ChildByFieldName("property")
		if prop == nil {
			return "", nil, analysis.NewError(analysis.ErrUnresolvableEventName, moduleName, f.Text(arg))
		}
		return f.Text(prop), constant.Any(), nil

	case "string":
		text := f.StringContent(arg)
		return text, text, nil

	case "template_string":
		// Only substitution-free template strings are constants.
		if ast.FirstChild(arg, "template_substitution") != nil {
			return "", nil, analysis.NewError(analysis.ErrUnresolvableEventName, moduleName, f.Text(arg))
		}
		text := f.StringContent(arg)
		return text, text, nil

	case "number":
		text := f.Text(arg)
		if n, err := strconv.ParseFloat(text, 64); err == nil {
			return text, n, nil
		}
		return text, text, nil

	default:
		return "", nil, analysis.NewError(analysis.ErrUnresolvableEventName, moduleName, f.Text(arg))
	}
}

// payloadType materializes the contextual type of the payload argument.
// Payloads the oracle cannot type degrade to an opaque primitive; the
// emission itself is still recorded.
func (s *Scanner) payloadType(f *ast.SourceFile, mod *catalog.Module, arg *sitter.Node) (*catalog.TypeDesc, error) {
	handle, ok := s.oracle.ContextualType(f.Path, arg)
	if !ok {
		slog.Debug("payload type not resolvable",
			slog.String("file", f.Path),
			slog.String("source", f.Text(arg)))
		return catalog.Primitive("unknown"), nil
	}
	return s.materializer.Materialize(mod, mod.Name, handle)
}

// namedArguments returns the named children of a call's argument list.
func namedArguments(call *sitter.Node) []*sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(args.ChildCount()); i++ {
		child := args.Child(i)
		if child != nil && child.IsNamed() {
			out = append(out, child)
		}
	}
	return out
}
