// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package materialize converts oracle type handles into the catalog's
// portable type descriptions, deduplicating named types per module and
// terminating on recursive shapes.
package materialize

import (
	"log/slog"

	"github.com/AleutianAI/surface/services/surface/analysis"
	"github.com/AleutianAI/surface/services/surface/catalog"
	"github.com/AleutianAI/surface/services/surface/oracle"
)

// Materializer renders TypeHandles as TypeDescs against one oracle.
//
// Description:
//
//	Named object and enum types are registered in the owning module's
//	catalog exactly once per identity key; every further occurrence
//	(including the first, from the caller's point of view) comes back as a
//	reference description. Recursive types terminate because the catalog
//	entry is registered before its fields are materialized, so a cycle hits
//	the memo and short-circuits to a reference.
//
// Thread Safety: Not safe for concurrent use. One per parse session.
type Materializer struct {
	oracle oracle.Oracle

	// memo maps module-name + identity-key to the registered entry, so a
	// type shared by many call sites materializes its fields once.
	memo map[string]*catalog.TypeDesc
}

// New creates a Materializer over the session's oracle.
func New(o oracle.Oracle) *Materializer {
	return &Materializer{
		oracle: o,
		memo:   make(map[string]*catalog.TypeDesc),
	}
}

// Materialize renders a type handle into the module's catalog.
//
// Inputs:
//   - mod: The owning module; named types register into its type list.
//   - moduleName: Module identity for error reporting.
//   - t: The handle to render.
//
// Outputs:
//
//	*catalog.TypeDesc - An inline description (primitive, array) or a
//	reference to the registered catalog entry (named object, enum).
func (m *Materializer) Materialize(mod *catalog.Module, moduleName string, t oracle.TypeHandle) (*catalog.TypeDesc, error) {
	if !t.Valid() {
		return nil, analysis.NewError(analysis.ErrTypeExtractionFailure, moduleName, m.oracle.TypeString(t))
	}

	switch m.oracle.Shape(t) {
	case oracle.ShapePrimitive:
		return catalog.Primitive(m.oracle.PrimitiveName(t)), nil

	case oracle.ShapeArray:
		elem, ok := m.oracle.ElementType(t)
		if !ok {
			return nil, analysis.NewError(analysis.ErrTypeExtractionFailure, moduleName, m.oracle.TypeString(t))
		}
		elemDesc, err := m.Materialize(mod, moduleName, elem)
		if err != nil {
			return nil, err
		}
		return catalog.Array(elemDesc), nil

	case oracle.ShapeEnum:
		return m.materializeEnum(mod, t), nil

	case oracle.ShapeObject:
		return m.materializeObject(mod, moduleName, t)

	default:
		// Unresolvable shapes degrade to an opaque primitive carrying the
		// rendered type text. Generators surface these verbatim.
		rendered := m.oracle.TypeString(t)
		slog.Debug("opaque type carried through",
			slog.String("module", moduleName),
			slog.String("type", rendered))
		return catalog.Primitive(rendered), nil
	}
}

// materializeEnum registers an enum once and returns a reference to it.
func (m *Materializer) materializeEnum(mod *catalog.Module, t oracle.TypeHandle) *catalog.TypeDesc {
	key := m.oracle.TypeKey(t)
	name := m.oracle.TypeName(t)
	if entry, ok := m.lookup(mod, key); ok {
		return catalog.Reference(entry.Key, entry.Name)
	}

	entry := &catalog.TypeDesc{
		Key:  key,
		Name: name,
		Kind: catalog.TypeKindEnum,
	}
	for _, member := range m.oracle.EnumMembers(t) {
		entry.Members = append(entry.Members, catalog.EnumMember{
			Name:  member.Name,
			Value: member.Value.Any(),
		})
	}
	m.register(mod, key, entry)
	return catalog.Reference(key, name)
}

// materializeObject renders an object-shaped handle.
//
// Named objects register in the module catalog and come back as references;
// anonymous shapes inline their fields. The catalog entry for a named object
// is registered before its fields are walked, which is what makes recursive
// types terminate.
func (m *Materializer) materializeObject(mod *catalog.Module, moduleName string, t oracle.TypeHandle) (*catalog.TypeDesc, error) {
	name := m.oracle.TypeName(t)
	if name == "" {
		fields, err := m.materializeFields(mod, moduleName, t)
		if err != nil {
			return nil, err
		}
		return &catalog.TypeDesc{Kind: catalog.TypeKindObject, Fields: fields}, nil
	}

	key := m.oracle.TypeKey(t)
	if entry, ok := m.lookup(mod, key); ok {
		return catalog.Reference(entry.Key, entry.Name), nil
	}

	entry := &catalog.TypeDesc{
		Key:  key,
		Name: name,
		Kind: catalog.TypeKindObject,
	}
	m.register(mod, key, entry)

	fields, err := m.materializeFields(mod, moduleName, t)
	if err != nil {
		return nil, err
	}
	entry.Fields = fields
	return catalog.Reference(key, name), nil
}

// materializeFields walks the ordered properties of an object-shaped handle.
func (m *Materializer) materializeFields(mod *catalog.Module, moduleName string, t oracle.TypeHandle) ([]catalog.Field, error) {
	props := m.oracle.Properties(t)
	fields := make([]catalog.Field, 0, len(props))
	for _, p := range props {
		var desc *catalog.TypeDesc
		if p.Type.Valid() {
			var err error
			desc, err = m.Materialize(mod, moduleName, p.Type)
			if err != nil {
				return nil, err
			}
		} else {
			desc = catalog.Primitive("unknown")
		}
		fields = append(fields, catalog.Field{Name: p.Name, Type: desc})
	}
	return fields, nil
}

// lookup consults the per-module memo.
func (m *Materializer) lookup(mod *catalog.Module, key string) (*catalog.TypeDesc, bool) {
	entry, ok := m.memo[mod.Name+"\x00"+key]
	return entry, ok
}

// register memoizes and appends a catalog entry.
func (m *Materializer) register(mod *catalog.Module, key string, entry *catalog.TypeDesc) {
	m.memo[mod.Name+"\x00"+key] = entry
	mod.RegisterType(entry)
}
