// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"context"
	"errors"
	"reflect"
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

// extractOne parses the framework declaration plus one command file and runs
// extraction on it.
func extractOne(t *testing.T, commandSource, commandName string) (*catalog.Module, error) {
	t.Helper()

	sources := map[string]string{
		"framework.d.ts":             frameworkDecl,
		"modules/chat/commands/x.ts": commandSource,
	}
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

	checker := oracle.NewChecker(files, nil)
	fw := config.Default().Framework
	e := New(checker, fw, materialize.New(checker))
	mod := catalog.NewRegistry().GetOrCreate("chat")
	return mod, e.ExtractCommand(context.Background(), byPath["modules/chat/commands/x.ts"], mod, commandName)
}

func TestExtractCommand_NamedExportConvention(t *testing.T) {
	mod, err := extractOne(t, `export interface WaitResult {
  waitedSeconds: number;
}

export function execute(context: Server.CommandContext, seconds: number): Promise<WaitResult> {
  return Promise.resolve({ waitedSeconds: seconds });
}
`, "wait")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mod.UserCommands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(mod.UserCommands))
	}
	cmd := mod.UserCommands[0]
	if cmd.Name != "wait" {
		t.Errorf("expected name from the file path, got %q", cmd.Name)
	}
	if len(cmd.Parameters) != 2 {
		t.Fatalf("expected both parameters (context included), got %d", len(cmd.Parameters))
	}
	if cmd.Parameters[0].Name != "context" || cmd.Parameters[1].Name != "seconds" {
		t.Errorf("unexpected parameter names: %+v", cmd.Parameters)
	}
	if cmd.Parameters[1].Type.Primitive != "number" {
		t.Errorf("expected number parameter, got %+v", cmd.Parameters[1].Type)
	}
	if cmd.ReturnType.Kind != catalog.TypeKindReference || cmd.ReturnType.Name != "WaitResult" {
		t.Errorf("expected a reference to WaitResult, got %+v", cmd.ReturnType)
	}
}

func TestExtractCommand_ExportStyleTransparency(t *testing.T) {
	named, err := extractOne(t, `interface Ack {
  ok: boolean;
}

export function execute(context: Server.CommandContext, message: string): Promise<Ack> {
  return Promise.resolve({ ok: true });
}
`, "shout")
	if err != nil {
		t.Fatalf("named convention: %v", err)
	}

	assigned, err := extractOne(t, `interface Ack {
  ok: boolean;
}

export default {
  execute(context: Server.CommandContext, message: string): Promise<Ack> {
    return Promise.resolve({ ok: true });
  },
};
`, "shout")
	if err != nil {
		t.Fatalf("assignment convention: %v", err)
	}

	// Identity keys embed declaration offsets, which legitimately differ
	// between the two sources; everything else must match structurally.
	normalize := func(mod *catalog.Module) *catalog.Module {
		for _, typ := range mod.Types {
			typ.Key = ""
		}
		for _, cmd := range mod.UserCommands {
			if cmd.ReturnType != nil {
				cmd.ReturnType.Ref = ""
			}
		}
		return mod
	}
	if !reflect.DeepEqual(normalize(named), normalize(assigned)) {
		t.Errorf("export conventions must be transparent:\nnamed:    %+v\nassigned: %+v",
			named.UserCommands[0], assigned.UserCommands[0])
	}
}

func TestExtractCommand_TypeOnlyFileIsNotAModule(t *testing.T) {
	_, err := extractOne(t, `export interface OnlyTypes {
  nothing: string;
}
`, "wait")
	if !errors.Is(err, analysis.ErrNotAModuleFile) {
		t.Fatalf("expected ErrNotAModuleFile, got %v", err)
	}
}

func TestExtractCommand_MissingHandler(t *testing.T) {
	_, err := extractOne(t, `export const helper = 1;

export function run(): void {}
`, "wait")
	if !errors.Is(err, analysis.ErrHandlerNotExported) {
		t.Fatalf("expected ErrHandlerNotExported, got %v", err)
	}
}

func TestExtractCommand_OverloadedHandlerIsFatal(t *testing.T) {
	_, err := extractOne(t, `export function execute(context: Server.CommandContext): Promise<string>;
export function execute(context: Server.CommandContext, n: number): Promise<number>;
export function execute(context: Server.CommandContext, n?: number): Promise<unknown> {
  return Promise.resolve(n);
}
`, "wait")
	if !errors.Is(err, analysis.ErrOverloadedHandler) {
		t.Fatalf("expected ErrOverloadedHandler, got %v", err)
	}
}

func TestExtractCommand_ReturnTypeMustBeWrapped(t *testing.T) {
	cases := map[string]string{
		"no annotation": `export function execute(context: Server.CommandContext) {
  return Promise.resolve(1);
}
`,
		"bare wrapper": `export function execute(context: Server.CommandContext): Promise {
  return Promise.resolve(1);
}
`,
		"not the wrapper": `export function execute(context: Server.CommandContext): number {
  return 1;
}
`,
	}
	for name, src := range cases {
		if _, err := extractOne(t, src, "wait"); !errors.Is(err, analysis.ErrMissingReturnTypeArgument) {
			t.Errorf("%s: expected ErrMissingReturnTypeArgument, got %v", name, err)
		}
	}
}

func TestExtractCommand_DefaultExportViaIdentifier(t *testing.T) {
	mod, err := extractOne(t, `const handlers = {
  execute(context: Server.CommandContext): Promise<boolean> {
    return Promise.resolve(true);
  },
};

export default handlers;
`, "ping")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mod.UserCommands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(mod.UserCommands))
	}
	if mod.UserCommands[0].ReturnType.Primitive != "boolean" {
		t.Errorf("expected boolean return, got %+v", mod.UserCommands[0].ReturnType)
	}
}
