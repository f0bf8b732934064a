// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scanner

import (
	"context"
	"errors"
	"path"
	"strings"
	"testing"

	"github.com/AleutianAI/surface/services/surface/analysis"
	"github.com/AleutianAI/surface/services/surface/ast"
	"github.com/AleutianAI/surface/services/surface/catalog"
	"github.com/AleutianAI/surface/services/surface/config"
	"github.com/AleutianAI/surface/services/surface/materialize"
	"github.com/AleutianAI/surface/services/surface/oracle"
)

const frameworkDecl = `declare namespace Server {
  interface Actor {
    id: string;
  }

  interface State {
    emit(target: Actor, event: unknown, payload?: unknown): void;
    broadcast(event: unknown, payload?: unknown): void;
  }

  interface CommandContext {
    caller: Actor;
    state: State;
  }
}
`

// scanOne parses the sources, scans the named file into a fresh module, and
// returns the module and the scan error.
func scanOne(t *testing.T, sources map[string]string, target string) (*catalog.Module, error) {
	t.Helper()

	var files []*ast.SourceFile
	byPath := make(map[string]*ast.SourceFile)
	for p, src := range sources {
		f, err := ast.Parse(context.Background(), []byte(src), p)
		if err != nil {
			t.Fatalf("parsing %s: %v", p, err)
		}
		t.Cleanup(f.Close)
		files = append(files, f)
		byPath[p] = f
	}

	checker := oracle.NewChecker(files, func(fromFile, specifier string) (string, bool) {
		if !strings.HasPrefix(specifier, ".") {
			return "", false
		}
		base := path.Join(path.Dir(fromFile), specifier)
		for _, candidate := range []string{base + ".ts", base + ".d.ts"} {
			if _, ok := sources[candidate]; ok {
				return candidate, true
			}
		}
		return "", false
	})

	fw := config.Default().Framework
	s := New(checker, fw, materialize.New(checker))
	mod := catalog.NewRegistry().GetOrCreate("chat")
	return mod, s.ScanFile(context.Background(), byPath[target], mod)
}

func TestScanFile_EnumEventReference(t *testing.T) {
	mod, err := scanOne(t, map[string]string{
		"framework.d.ts": frameworkDecl,
		"events.ts": `export enum ChatEvent {
  Posted = "chat:posted",
}
`,
		"handler.ts": `import { ChatEvent } from "./events";

export function run(context: Server.CommandContext): void {
  context.state.emit(context.caller, ChatEvent.Posted, { body: "hi" });
}
`,
	}, "handler.ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mod.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(mod.Messages))
	}
	msg := mod.Messages[0]
	if msg.ID != "Posted" {
		t.Errorf("expected id Posted (the member name), got %q", msg.ID)
	}
	if msg.Value != "chat:posted" {
		t.Errorf("expected value chat:posted, got %v", msg.Value)
	}
	if msg.Type == nil || msg.Type.Kind != catalog.TypeKindObject {
		t.Errorf("expected an object payload, got %+v", msg.Type)
	}
}

func TestScanFile_LiteralEventNames(t *testing.T) {
	mod, err := scanOne(t, map[string]string{
		"framework.d.ts": frameworkDecl,
		"handler.ts": `export function run(state: Server.State): void {
  state.broadcast("chat:cleared", { reason: "manual" });
  state.broadcast(7);
}
`,
	}, "handler.ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mod.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(mod.Messages))
	}
	if mod.Messages[0].ID != "chat:cleared" || mod.Messages[0].Value != "chat:cleared" {
		t.Errorf("expected literal id and value, got %+v", mod.Messages[0])
	}
	if mod.Messages[1].ID != "7" {
		t.Errorf("expected numeric literal id 7, got %q", mod.Messages[1].ID)
	}
	if mod.Messages[1].Value != float64(7) {
		t.Errorf("expected numeric value 7, got %v", mod.Messages[1].Value)
	}
	if mod.Messages[1].Type.Primitive != "void" {
		t.Errorf("expected void payload when no payload argument, got %+v", mod.Messages[1].Type)
	}
}

func TestScanFile_VariableEventNameIsFatal(t *testing.T) {
	_, err := scanOne(t, map[string]string{
		"framework.d.ts": frameworkDecl,
		"handler.ts": `export function run(state: Server.State, eventName: string): void {
  state.broadcast(eventName, { ok: true });
}
`,
	}, "handler.ts")

	if !errors.Is(err, analysis.ErrUnresolvableEventName) {
		t.Fatalf("expected ErrUnresolvableEventName, got %v", err)
	}
	var ae *analysis.Error
	if !errors.As(err, &ae) {
		t.Fatal("expected an annotated analysis error")
	}
	if ae.Source != "eventName" {
		t.Errorf("expected the offending source fragment, got %q", ae.Source)
	}
}

func TestScanFile_SameNamedUserMethodIsIgnored(t *testing.T) {
	mod, err := scanOne(t, map[string]string{
		"framework.d.ts": frameworkDecl,
		"handler.ts": `interface Radio {
  broadcast(event: unknown, payload?: unknown): void;
}

export function run(radio: Radio): void {
  radio.broadcast("song", {});
}
`,
	}, "handler.ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mod.Messages) != 0 {
		t.Errorf("expected no messages from a user-declared broadcast, got %d", len(mod.Messages))
	}
}

func TestScanFile_UnresolvableCalleeIsSkipped(t *testing.T) {
	mod, err := scanOne(t, map[string]string{
		"framework.d.ts": frameworkDecl,
		"handler.ts": `import { bus } from "external-lib";

export function run(): void {
  bus.emit("anything", { ok: true });
}
`,
	}, "handler.ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mod.Messages) != 0 {
		t.Errorf("expected no messages from an out-of-context callee, got %d", len(mod.Messages))
	}
}
