// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNewError_MatchesSentinel(t *testing.T) {
	err := NewError(ErrUnresolvableEventName, "chat", "state.emit(a, name)")

	if !errors.Is(err, ErrUnresolvableEventName) {
		t.Error("expected errors.Is to match the sentinel")
	}
	if errors.Is(err, ErrHandlerNotExported) {
		t.Error("expected no match against a different sentinel")
	}
}

func TestNewError_WrappingSurvivesAnnotation(t *testing.T) {
	err := NewError(ErrTypeExtractionFailure, "chat", "Weird<T>")
	wrapped := fmt.Errorf("session failed: %w", err)

	if !errors.Is(wrapped, ErrTypeExtractionFailure) {
		t.Error("expected sentinel match through an outer wrap")
	}
	var ae *Error
	if !errors.As(wrapped, &ae) {
		t.Fatal("expected errors.As to find the analysis error")
	}
	if ae.Module != "chat" {
		t.Errorf("expected module chat, got %q", ae.Module)
	}
}

func TestError_MessageCarriesProvenance(t *testing.T) {
	err := NewError(ErrUnresolvableEventName, "chat", "eventName")

	msg := err.Error()
	if !strings.Contains(msg, "module chat") {
		t.Errorf("expected module in message, got %q", msg)
	}
	if !strings.Contains(msg, `"eventName"`) {
		t.Errorf("expected source fragment in message, got %q", msg)
	}
}

func TestWithFile_FillsOnlyWhenEmpty(t *testing.T) {
	err := NewError(ErrNotAModuleFile, "chat", "")

	annotated := WithFile(err, "modules/chat/commands/wait.ts")
	file, ok := FileOf(annotated)
	if !ok || file != "modules/chat/commands/wait.ts" {
		t.Fatalf("expected annotated file, got %q (ok=%v)", file, ok)
	}

	again := WithFile(annotated, "other.ts")
	file, _ = FileOf(again)
	if file != "modules/chat/commands/wait.ts" {
		t.Errorf("expected the first annotation to win, got %q", file)
	}
}

func TestWithFile_PassesPlainErrorsThrough(t *testing.T) {
	plain := errors.New("disk on fire")
	if got := WithFile(plain, "x.ts"); got != plain {
		t.Errorf("expected plain error unchanged, got %v", got)
	}
	if _, ok := FileOf(plain); ok {
		t.Error("expected no file for a plain error")
	}
}
