// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

// TypeKind discriminates the tagged-variant forms of a TypeDesc.
type TypeKind string

const (
	// TypeKindPrimitive is a scalar type (string, number, boolean, void, ...).
	TypeKindPrimitive TypeKind = "primitive"

	// TypeKindArray is a homogeneous element container.
	TypeKindArray TypeKind = "array"

	// TypeKindObject is a structural type with ordered named fields.
	TypeKindObject TypeKind = "object"

	// TypeKindEnum is a name -> constant-value mapping.
	TypeKindEnum TypeKind = "enum"

	// TypeKindReference points at a catalog entry by identity key.
	TypeKindReference TypeKind = "reference"
)

// TypeDesc is the portable structural description of a resolved type.
//
// Description:
//
//	Exactly one variant is populated per Kind. Named types are registered
//	once in the owning module's catalog under a stable identity Key derived
//	from the oracle's type handle; all further occurrences are
//	TypeKindReference entries pointing at that key. Cyclic types are
//	representable because a catalog entry may be referenced before its
//	fields are filled in.
type TypeDesc struct {
	// Key is the stable identity of a registered catalog entry. Empty for
	// inline (primitive, array, reference) descriptions.
	Key string `json:"key,omitempty"`

	// Name is the declared name of a named type. Empty for anonymous shapes.
	Name string `json:"name,omitempty"`

	// Kind selects the populated variant.
	Kind TypeKind `json:"kind"`

	// Primitive is the scalar name for TypeKindPrimitive.
	Primitive string `json:"primitive,omitempty"`

	// Element is the element description for TypeKindArray.
	Element *TypeDesc `json:"element,omitempty"`

	// Fields is the ordered field mapping for TypeKindObject.
	Fields []Field `json:"fields,omitempty"`

	// Members is the name -> constant mapping for TypeKindEnum.
	Members []EnumMember `json:"members,omitempty"`

	// Ref is the target catalog entry key for TypeKindReference.
	Ref string `json:"ref,omitempty"`
}

// Field is one named field of an object-shaped type.
type Field struct {
	Name string    `json:"name"`
	Type *TypeDesc `json:"type"`
}

// EnumMember is one enum constant.
type EnumMember struct {
	Name string `json:"name"`

	// Value is the member's resolved constant (string or float64).
	Value any `json:"value"`
}

// Primitive returns an inline primitive description.
func Primitive(name string) *TypeDesc {
	return &TypeDesc{Kind: TypeKindPrimitive, Primitive: name}
}

// Array returns an inline array description over elem.
func Array(elem *TypeDesc) *TypeDesc {
	return &TypeDesc{Kind: TypeKindArray, Element: elem}
}

// Reference returns an inline reference to the catalog entry with the given
// identity key and declared name.
func Reference(key, name string) *TypeDesc {
	return &TypeDesc{Kind: TypeKindReference, Ref: key, Name: name}
}

// RegisterType appends desc to the module's type catalog.
//
// The caller (the Type Materializer) is responsible for deduplication by
// identity key; RegisterType itself is append-only.
func (m *Module) RegisterType(desc *TypeDesc) {
	m.Types = append(m.Types, desc)
}

// TypeByKey returns the registered catalog entry with the given key.
func (m *Module) TypeByKey(key string) (*TypeDesc, bool) {
	for _, t := range m.Types {
		if t.Key == key {
			return t, true
		}
	}
	return nil, false
}
