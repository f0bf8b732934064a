// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast provides the tree-sitter parsing layer for TypeScript service
// module sources. It produces SourceFile values that the oracle, scanner, and
// extractor traverse; no symbol or type resolution happens here.
package ast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

const (
	// DefaultMaxFileSize is the largest source file the parser accepts.
	DefaultMaxFileSize = 10 * 1024 * 1024
)

var (
	// ErrFileTooLarge is returned when content exceeds the size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size")

	// ErrInvalidContent is returned for content that is not valid UTF-8.
	ErrInvalidContent = errors.New("invalid file content")
)

// SourceFile is one parsed TypeScript source file.
//
// Description:
//
//	Holds the raw content and the tree-sitter parse tree for the lifetime of
//	a parse session. The tree is owned by the SourceFile; call Close when the
//	session ends.
//
// Thread Safety:
//
//	Safe for concurrent reads after construction. Close must not race with
//	readers.
type SourceFile struct {
	// Path is the project-relative path using forward slashes.
	Path string

	// Content is the raw source bytes backing all node text extraction.
	Content []byte

	tree *sitter.Tree
}

// Parse parses TypeScript source content into a SourceFile.
//
// Description:
//
//	Uses the TSX grammar for .tsx files and the TypeScript grammar otherwise.
//	The parse is error-tolerant; syntactically invalid files still yield a
//	tree.
//
// Inputs:
//   - ctx: Context for cancellation. Tree-sitter cannot be interrupted
//     mid-parse, but the context is honored between files.
//   - content: Raw source bytes. Must be valid UTF-8 and within size limits.
//   - path: Project-relative file path with forward slashes.
//
// Outputs:
//   - *SourceFile: The parsed file. Never nil on success.
//   - error: ErrFileTooLarge, ErrInvalidContent, or a tree-sitter failure.
func Parse(ctx context.Context, content []byte, path string) (*SourceFile, error) {
	if int64(len(content)) > DefaultMaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, path, len(content))
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidContent, path)
	}

	parser := sitter.NewParser()
	if strings.HasSuffix(path, ".tsx") {
		parser.SetLanguage(tsx.GetLanguage())
	} else {
		parser.SetLanguage(typescript.GetLanguage())
	}

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse of %s failed: %w", path, err)
	}

	return &SourceFile{
		Path:    path,
		Content: content,
		tree:    tree,
	}, nil
}

// Root returns the root node of the parse tree.
func (f *SourceFile) Root() *sitter.Node {
	if f == nil || f.tree == nil {
		return nil
	}
	return f.tree.RootNode()
}

// Close releases the underlying tree-sitter tree.
func (f *SourceFile) Close() {
	if f != nil && f.tree != nil {
		f.tree.Close()
		f.tree = nil
	}
}

// Text returns the source text of a node.
func (f *SourceFile) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return string(f.Content[n.StartByte():n.EndByte()])
}

// Walk performs a depth-first pre-order traversal rooted at n.
//
// Description:
//
//	fn is invoked for every node. Traversal always recurses into all
//	children regardless of whether the current node matched the caller's
//	criteria; a qualifying construct can be nested as an argument of
//	another one.
func Walk(n *sitter.Node, fn func(*sitter.Node)) {
	if n == nil {
		return
	}
	fn(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		Walk(n.Child(i), fn)
	}
}

// Children returns the direct children of n with the given node type.
func Children(n *sitter.Node, nodeType string) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && child.Type() == nodeType {
			out = append(out, child)
		}
	}
	return out
}

// FirstChild returns the first direct child of n with the given node type.
func FirstChild(n *sitter.Node, nodeType string) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && child.Type() == nodeType {
			return child
		}
	}
	return nil
}

// StringContent extracts the unquoted content of a string node.
func (f *SourceFile) StringContent(n *sitter.Node) string {
	if frag := FirstChild(n, "string_fragment"); frag != nil {
		return f.Text(frag)
	}
	return strings.Trim(f.Text(n), `"'`+"`")
}

// TypeOfAnnotation unwraps a type_annotation node to its type expression.
func TypeOfAnnotation(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child != nil && child.Type() != ":" {
			return child
		}
	}
	return nil
}
