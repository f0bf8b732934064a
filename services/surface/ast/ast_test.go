// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"errors"
	"strings"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
)

func TestParse_EmptyFile(t *testing.T) {
	f, err := Parse(context.Background(), []byte(""), "empty.ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	if f.Root() == nil {
		t.Fatal("expected a root node for an empty file")
	}
}

func TestParse_SelectsTSXGrammar(t *testing.T) {
	source := `export const view = () => <div>hello</div>;
`
	f, err := Parse(context.Background(), []byte(source), "view.tsx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	hasJSX := false
	Walk(f.Root(), func(n *sitter.Node) {
		if strings.HasPrefix(n.Type(), "jsx") {
			hasJSX = true
		}
	})
	if !hasJSX {
		t.Error("expected a jsx node when parsing a .tsx file")
	}
}

func TestParse_RejectsInvalidUTF8(t *testing.T) {
	_, err := Parse(context.Background(), []byte{0xff, 0xfe, 0xfd}, "bad.ts")
	if !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent, got %v", err)
	}
}

func TestWalk_VisitsCallExpressions(t *testing.T) {
	source := `function outer() {
    inner();
    helper.run();
}
`
	f, err := Parse(context.Background(), []byte(source), "calls.ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	count := 0
	Walk(f.Root(), func(n *sitter.Node) {
		if n.Type() == "call_expression" {
			count++
		}
	})
	if count != 2 {
		t.Errorf("expected 2 call expressions, got %d", count)
	}
}

func TestStringContent_TrimsQuotes(t *testing.T) {
	source := `const s = "chat:posted";
`
	f, err := Parse(context.Background(), []byte(source), "str.ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	var str *sitter.Node
	Walk(f.Root(), func(n *sitter.Node) {
		if n.Type() == "string" && str == nil {
			str = n
		}
	})
	if str == nil {
		t.Fatal("expected a string node")
	}
	if got := f.StringContent(str); got != "chat:posted" {
		t.Errorf("expected %q, got %q", "chat:posted", got)
	}
}

func TestImportSpecifiers_CoversAllForms(t *testing.T) {
	source := `import { a } from "./named";
import * as ns from "./star";
export { b } from "./reexport";
const legacy = require("./legacy");
`
	f, err := Parse(context.Background(), []byte(source), "imports.ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	specs := ImportSpecifiers(f)
	want := []string{"./named", "./star", "./reexport", "./legacy"}
	if len(specs) != len(want) {
		t.Fatalf("expected %d specifiers, got %d: %v", len(want), len(specs), specs)
	}
	for i, spec := range want {
		if specs[i] != spec {
			t.Errorf("specifier %d: expected %q, got %q", i, spec, specs[i])
		}
	}
}

func TestImportBindings_AliasAndNamespace(t *testing.T) {
	source := `import def from "./defaults";
import * as util from "./util";
import { original as renamed, plain } from "./names";
`
	f, err := Parse(context.Background(), []byte(source), "bindings.ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer f.Close()

	byLocal := make(map[string]ImportBinding)
	for _, b := range ImportBindings(f) {
		byLocal[b.LocalName] = b
	}

	if b, ok := byLocal["def"]; !ok || !b.IsDefault {
		t.Errorf("expected default binding 'def', got %+v", b)
	}
	if b, ok := byLocal["util"]; !ok || !b.IsNamespace {
		t.Errorf("expected namespace binding 'util', got %+v", b)
	}
	if b, ok := byLocal["renamed"]; !ok || b.ExportedName != "original" {
		t.Errorf("expected alias binding original->renamed, got %+v", b)
	}
	if b, ok := byLocal["plain"]; !ok || b.ExportedName != "plain" {
		t.Errorf("expected plain binding, got %+v", b)
	}
}
