// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog defines the serializable output model of a surface scan:
// modules, user commands, messages, and the structural type descriptions
// they reference.
package catalog

// Module is a named grouping of commands and messages derived from the
// modules/<name>/ directory convention.
//
// Description:
//
//	A Module is owned exclusively by the Registry that created it. Its three
//	lists are append-only during one parse session and are never deduplicated
//	by the core (duplicate message ids across call sites are permitted).
//
// Thread Safety: Not safe for concurrent mutation. One session owns a Module.
type Module struct {
	// Name is the module identity, derived from the path segment after the
	// modules root. Unique within a session.
	Name string `json:"name"`

	// Types is the module's type catalog: every named type referenced by the
	// module's commands and messages, registered exactly once per identity key.
	Types []*TypeDesc `json:"types"`

	// UserCommands lists the module's remotely invocable command endpoints,
	// in file-discovery order.
	UserCommands []*UserCommand `json:"usercommands"`

	// Messages lists the module's emitted event messages, in call-site
	// discovery order.
	Messages []*Message `json:"messages"`
}

// UserCommand describes one remotely invocable command endpoint.
type UserCommand struct {
	// Name is derived from the command file's path segment, not from any
	// declaration inside the file.
	Name string `json:"name"`

	// Parameters are the handler's declared parameters in declaration order.
	// The invocation-context first parameter is included, matching the
	// reference behavior.
	Parameters []Parameter `json:"parameters"`

	// ReturnType is the sole type argument of the handler's declared
	// deferred-result wrapper.
	ReturnType *TypeDesc `json:"returnType"`
}

// Parameter is one named handler parameter with its declared type.
type Parameter struct {
	Name string    `json:"name"`
	Type *TypeDesc `json:"type"`
}

// Message describes one asynchronous event emission found in module code.
type Message struct {
	// ID is the statically resolved event identifier: the enum member name
	// for constant enum references, or the literal text for literals.
	ID string `json:"id"`

	// Value is the resolved constant value bound to the identifier: the enum
	// member's declared numeric or string constant, or the literal text.
	Value any `json:"value"`

	// Type is the materialized payload type at the emission call site.
	Type *TypeDesc `json:"type"`
}

// Catalog is the serialization root: the ordered module list of one session.
type Catalog struct {
	Modules []*Module `json:"modules"`
}

// Registry is the get-or-create map from module name to Module record.
//
// Description:
//
//	Preserves first-seen order. Two files under the same modules/<name>/
//	directory always map to the same Module instance because the name is a
//	pure function of the file path.
//
// Thread Safety:
//
//	Not safe for concurrent use. A Registry belongs to exactly one parse
//	session and must not be shared between overlapping parses.
type Registry struct {
	byName  map[string]*Module
	ordered []*Module
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Module),
	}
}

// GetOrCreate returns the Module registered under name, creating and
// appending a new empty record on first reference.
//
// Inputs:
//
//	name - The module name. Must be non-empty.
//
// Outputs:
//
//	*Module - The existing or newly created record. Never nil.
func (r *Registry) GetOrCreate(name string) *Module {
	if mod, ok := r.byName[name]; ok {
		return mod
	}
	mod := &Module{
		Name:         name,
		Types:        []*TypeDesc{},
		UserCommands: []*UserCommand{},
		Messages:     []*Message{},
	}
	r.byName[name] = mod
	r.ordered = append(r.ordered, mod)
	return mod
}

// Modules returns the registered modules in first-seen order.
//
// The returned slice is the Registry's backing slice; callers must treat it
// as read-only.
func (r *Registry) Modules() []*Module {
	if r.ordered == nil {
		return []*Module{}
	}
	return r.ordered
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	return len(r.ordered)
}
