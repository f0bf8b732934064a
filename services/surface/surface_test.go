// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package surface

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/surface/services/surface/analysis"
	"github.com/AleutianAI/surface/services/surface/catalog"
)

const minimalFixture = "../../test/fixtures/minimal-ts-project"
const sampleFixture = "../../test/fixtures/sample-ts-project"

func TestParse_MinimalProjectEndToEnd(t *testing.T) {
	cat, err := NewAnalyzer().Parse(context.Background(), minimalFixture)
	require.NoError(t, err)

	require.Len(t, cat.Modules, 1)
	mod := cat.Modules[0]
	assert.Equal(t, "clock", mod.Name)

	require.Len(t, mod.UserCommands, 1)
	cmd := mod.UserCommands[0]
	assert.Equal(t, "wait", cmd.Name)
	require.Len(t, cmd.Parameters, 2)
	assert.Equal(t, "context", cmd.Parameters[0].Name)
	assert.Equal(t, "seconds", cmd.Parameters[1].Name)
	assert.Equal(t, catalog.TypeKindReference, cmd.ReturnType.Kind)
	assert.Equal(t, "WaitAck", cmd.ReturnType.Name)

	require.Len(t, mod.Messages, 1, "the helper's emission belongs to the module")
	msg := mod.Messages[0]
	assert.Equal(t, "clock:done", msg.ID)
	assert.Equal(t, "clock:done", msg.Value)
	assert.Equal(t, "void", msg.Type.Primitive)
}

func TestParse_SampleProject(t *testing.T) {
	cat, err := NewAnalyzer().Parse(context.Background(), sampleFixture)
	require.NoError(t, err)

	require.Len(t, cat.Modules, 1)
	mod := cat.Modules[0]
	assert.Equal(t, "chat", mod.Name)

	require.Len(t, mod.UserCommands, 2, "one command per command file")
	assert.Equal(t, "shout", mod.UserCommands[0].Name)
	assert.Equal(t, "wait", mod.UserCommands[1].Name)

	// shout.ts broadcast, wait.ts emit, helpers.ts broadcast x2.
	require.Len(t, mod.Messages, 4)

	byID := make(map[string][]*catalog.Message)
	for _, m := range mod.Messages {
		byID[m.ID] = append(byID[m.ID], m)
	}
	assert.Len(t, byID["MessagePosted"], 2, "enum-named events use the member name as id")
	for _, m := range byID["MessagePosted"] {
		assert.Equal(t, "chat:message-posted", m.Value)
	}
	require.Len(t, byID["Waited"], 1)
	assert.Equal(t, "chat:waited", byID["Waited"][0].Value)
	require.Len(t, byID["chat:cleared"], 1, "literal events use the literal as id")

	// The shared WaitResult interface registers exactly once.
	seen := make(map[string]int)
	for _, typ := range mod.Types {
		if typ.Name != "" {
			seen[typ.Name]++
		}
	}
	assert.Equal(t, 1, seen["WaitResult"])
}

func TestParse_NoCommandFilesYieldsEmptyCatalog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "lib"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lib", "util.ts"),
		[]byte("export const x = 1;\n"), 0o644))

	cat, err := NewAnalyzer().Parse(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, cat.Modules)
}

func TestParse_VariableEventNameAbortsSession(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"framework.d.ts": `declare namespace Server {
  interface Actor { id: string; }
  interface State {
    emit(target: Actor, event: unknown, payload?: unknown): void;
    broadcast(event: unknown, payload?: unknown): void;
  }
  interface CommandContext { caller: Actor; state: State; }
}
`,
		"modules/chat/commands/bad.ts": `export function execute(context: Server.CommandContext, name: string): Promise<boolean> {
  context.state.broadcast(name);
  return Promise.resolve(true);
}
`,
	})

	cat, err := NewAnalyzer().Parse(context.Background(), dir)
	require.Error(t, err)
	assert.Nil(t, cat, "a fatal fault must not yield a partial catalog")
	assert.True(t, errors.Is(err, analysis.ErrUnresolvableEventName))

	file, ok := analysis.FileOf(err)
	require.True(t, ok, "the session must annotate the offending file")
	assert.Equal(t, "modules/chat/commands/bad.ts", file)
}

func TestParse_ConfigOverridesFrameworkNames(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"surface.config.yaml": `framework:
  root_namespace: Game
  async_wrapper: Task
`,
		"framework.d.ts": `declare namespace Game {
  interface Actor { id: string; }
  interface State {
    broadcast(event: unknown, payload?: unknown): void;
  }
  interface CommandContext { caller: Actor; state: State; }
}

declare interface Task<T> { value: T; }
`,
		"modules/lobby/commands/join.ts": `export function execute(context: Game.CommandContext, room: string): Task<boolean> {
  context.state.broadcast("lobby:joined");
  return null as unknown as Task<boolean>;
}
`,
	})

	cat, err := NewAnalyzer().Parse(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, cat.Modules, 1)
	require.Len(t, cat.Modules[0].UserCommands, 1)
	require.Len(t, cat.Modules[0].Messages, 1)
	assert.Equal(t, "lobby:joined", cat.Modules[0].Messages[0].ID)
}

// writeProject materializes an in-memory project layout under a temp dir.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
	return dir
}
