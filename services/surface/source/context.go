// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package source assembles the closed set of files a scan runs over: the
// command-endpoint files discovered under the modules directory, ambient
// declaration files, and the transitive import closure of both.
package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AleutianAI/surface/services/surface/ast"
	"github.com/AleutianAI/surface/services/surface/config"
	"github.com/AleutianAI/surface/services/surface/oracle"
)

// Context is the closed compilation context of one scan.
//
// Description:
//
//	Holds every parsed file the oracle may consult, the subset of paths
//	that are command-endpoint files, and the Checker built over the set.
//	Symbols declared in files outside this set are unresolvable on purpose:
//	extraction never reaches beyond the context.
type Context struct {
	// Root is the absolute project root.
	Root string

	// Config is the effective scan configuration.
	Config config.Config

	// Files are the parsed context files keyed by project-relative path.
	Files map[string]*ast.SourceFile

	// CommandFiles are the project-relative paths of the discovered
	// command-endpoint files, sorted.
	CommandFiles []string

	// Oracle answers type and symbol queries over the file set.
	Oracle oracle.Oracle

	checker *oracle.Checker
}

// Build discovers, parses, and indexes the scan context rooted at
// projectRoot.
//
// Inputs:
//   - ctx: Cancellation context for parsing.
//   - projectRoot: Directory containing the modules tree.
//   - cfg: Effective configuration (directory convention, framework names).
//
// Outputs:
//
//	*Context - The assembled context. Never nil on success, even when no
//	command files exist; the session layer decides what an empty context
//	means.
func Build(ctx context.Context, projectRoot string, cfg config.Config) (*Context, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", projectRoot)
	}

	sc := &Context{
		Root:   root,
		Config: cfg,
		Files:  make(map[string]*ast.SourceFile),
	}

	commandFiles, ambientFiles, err := discover(root, cfg.Framework)
	if err != nil {
		return nil, err
	}
	sc.CommandFiles = commandFiles

	slog.Debug("discovered scan roots",
		slog.Int("command_files", len(commandFiles)),
		slog.Int("ambient_files", len(ambientFiles)))

	// Parse the roots, then chase relative imports breadth-first until the
	// closure is stable. Package imports (non-relative specifiers) stay
	// outside the context.
	queue := append(append([]string{}, commandFiles...), ambientFiles...)
	for len(queue) > 0 {
		rel := queue[0]
		queue = queue[1:]
		if _, done := sc.Files[rel]; done {
			continue
		}
		f, err := sc.parseFile(ctx, rel)
		if err != nil {
			return nil, err
		}
		sc.Files[rel] = f

		for _, spec := range ast.ImportSpecifiers(f) {
			target, ok := resolveSpecifier(root, rel, spec)
			if !ok {
				continue
			}
			if _, done := sc.Files[target]; !done {
				queue = append(queue, target)
			}
		}
	}

	ordered := make([]*ast.SourceFile, 0, len(sc.Files))
	for _, rel := range sortedKeys(sc.Files) {
		ordered = append(ordered, sc.Files[rel])
	}
	sc.checker = oracle.NewChecker(ordered, func(fromFile, specifier string) (string, bool) {
		target, ok := resolveSpecifier(root, fromFile, specifier)
		if !ok {
			return "", false
		}
		if _, present := sc.Files[target]; !present {
			return "", false
		}
		return target, true
	})
	sc.Oracle = sc.checker

	slog.Info("scan context assembled",
		slog.String("root", root),
		slog.Int("files", len(sc.Files)),
		slog.Int("command_files", len(sc.CommandFiles)))
	return sc, nil
}

// Checker exposes the concrete checker for callers that need queries beyond
// the Oracle interface (default-export nodes, raw source files).
func (sc *Context) Checker() *oracle.Checker {
	return sc.checker
}

// File returns the parsed context file at the project-relative path.
func (sc *Context) File(rel string) (*ast.SourceFile, bool) {
	f, ok := sc.Files[rel]
	return f, ok
}

// Close releases the parse trees of every context file.
func (sc *Context) Close() {
	for _, f := range sc.Files {
		f.Close()
	}
}

// parseFile reads and parses one file by project-relative path.
func (sc *Context) parseFile(ctx context.Context, rel string) (*ast.SourceFile, error) {
	abs := filepath.Join(sc.Root, filepath.FromSlash(rel))
	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	f, err := ast.Parse(ctx, content, rel)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", rel, err)
	}
	return f, nil
}

// discover walks the project tree once, returning the command-endpoint
// files and the ambient declaration (.d.ts) files, both sorted and
// project-relative.
func discover(root string, fw config.Framework) (commands, ambient []string, err error) {
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		name := d.Name()
		if d.IsDir() {
			if name == "node_modules" || strings.HasPrefix(name, ".") && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		switch {
		case strings.HasSuffix(name, ".d.ts"):
			ambient = append(ambient, rel)
		default:
			if _, ok := fw.CommandNameForPath(rel); ok {
				commands = append(commands, rel)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(commands)
	sort.Strings(ambient)
	return commands, ambient, nil
}

// resolveSpecifier maps a relative import specifier to a project-relative
// file path, trying the standard resolution candidates in order.
func resolveSpecifier(root, fromRel, specifier string) (string, bool) {
	if !strings.HasPrefix(specifier, "./") && !strings.HasPrefix(specifier, "../") {
		return "", false
	}
	base := path.Join(path.Dir(fromRel), specifier)
	for _, candidate := range specifierCandidates(base) {
		abs := filepath.Join(root, filepath.FromSlash(candidate))
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// specifierCandidates lists the file paths an extensionless specifier may
// denote, in resolution order.
func specifierCandidates(base string) []string {
	ext := path.Ext(base)
	if ext == ".ts" || ext == ".tsx" || ext == ".mts" || ext == ".cts" {
		return []string{base}
	}
	// Imports written with a .js suffix compile from a .ts source.
	if ext == ".js" || ext == ".mjs" || ext == ".cjs" {
		base = strings.TrimSuffix(base, ext)
	}
	return []string{
		base + ".ts",
		base + ".tsx",
		base + ".d.ts",
		base + "/index.ts",
		base + "/index.tsx",
	}
}

// sortedKeys returns the map keys in ascending order.
func sortedKeys(m map[string]*ast.SourceFile) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
