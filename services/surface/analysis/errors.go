// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis defines the fatal error taxonomy shared by the scanner,
// the command extractor, and the type materializer.
//
// Every error here is fatal: a surface scan is a one-shot static analysis
// over an immutable file set, so there is no local recovery, no partial
// catalog, and nothing to retry against. Errors are annotated with the
// owning module and the offending source fragment, then propagated
// unmodified to the top-level caller.
package analysis

import (
	"errors"
	"fmt"
)

// Sentinel errors for the analysis failure taxonomy. Match with errors.Is.
var (
	// ErrUnresolvableEventName reports an event identifier argument that is
	// neither a literal nor a constant enum member reference. Event names
	// computed at runtime are deliberately rejected.
	ErrUnresolvableEventName = errors.New("event name is not statically resolvable")

	// ErrNotAModuleFile reports a command file whose top-level symbol does
	// not export runtime values.
	ErrNotAModuleFile = errors.New("command file is not a value module")

	// ErrHandlerNotExported reports that neither export convention yielded
	// an execute handler.
	ErrHandlerNotExported = errors.New("execute handler is not exported")

	// ErrOverloadedHandler reports a handler type with more than one call
	// signature.
	ErrOverloadedHandler = errors.New("execute handler is overloaded")

	// ErrMissingReturnTypeArgument reports a handler return type that is not
	// a single-type-argument deferred-result wrapper.
	ErrMissingReturnTypeArgument = errors.New("handler return type has no single type argument")

	// ErrTypeExtractionFailure reports a fault in the type materializer,
	// such as an unsupported type shape.
	ErrTypeExtractionFailure = errors.New("type extraction failed")
)

// Error annotates a fatal analysis failure with its provenance.
//
// Description:
//
//	Carries the owning module name, the project-relative path of the file
//	under analysis, and, where available, the exact offending source
//	fragment. Unwrap exposes the taxonomy sentinel so callers can use
//	errors.Is against the package sentinels.
type Error struct {
	// Module is the owning module name. May be empty for context-level faults.
	Module string

	// File is the project-relative path of the offending file. Filled in by
	// the session if the originating component did not know it.
	File string

	// Source is the exact source text of the offending construct, if known.
	Source string

	// Err is the underlying sentinel (or wrapped detail error).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Err.Error()
	if e.Source != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Source)
	}
	if e.Module != "" {
		msg = fmt.Sprintf("module %s: %s", e.Module, msg)
	}
	return msg
}

// Unwrap exposes the underlying sentinel for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an annotated analysis error.
func NewError(sentinel error, module, source string) *Error {
	return &Error{Module: module, Source: source, Err: sentinel}
}

// WithFile returns e with the file path set if it was empty. Accepts and
// returns plain errors unchanged so call sites can annotate unconditionally.
func WithFile(err error, file string) error {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.File == "" {
			ae.File = file
		}
		return err
	}
	return err
}

// FileOf returns the annotated file path, if err is an analysis Error.
func FileOf(err error) (string, bool) {
	var ae *Error
	if errors.As(err, &ae) && ae.File != "" {
		return ae.File, true
	}
	return "", false
}
