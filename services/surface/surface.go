// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package surface orchestrates one parse session: context assembly, message
// scanning, command extraction, and catalog assembly.
package surface

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/surface/services/surface/analysis"
	"github.com/AleutianAI/surface/services/surface/catalog"
	"github.com/AleutianAI/surface/services/surface/config"
	"github.com/AleutianAI/surface/services/surface/extract"
	"github.com/AleutianAI/surface/services/surface/materialize"
	"github.com/AleutianAI/surface/services/surface/scanner"
	"github.com/AleutianAI/surface/services/surface/source"
)

var sessionTracer = otel.Tracer("aleutian.surface.session")

// Analyzer runs surface scans over service-module projects.
//
// Description:
//
//	An Analyzer is cheap and stateless between runs; each Parse call builds
//	a fresh context, registry, and materializer, so one Analyzer may be
//	reused across projects.
//
// Thread Safety: Safe for concurrent Parse calls; each call owns its state.
type Analyzer struct {
	cfg       *config.Config
	configDir string
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithConfig fixes the scan configuration, bypassing the per-project
// surface.config.yaml lookup.
func WithConfig(cfg config.Config) Option {
	return func(a *Analyzer) {
		c := cfg
		a.cfg = &c
	}
}

// WithConfigDir reads surface.config.yaml from dir instead of the project
// root.
func WithConfigDir(dir string) Option {
	return func(a *Analyzer) {
		a.configDir = dir
	}
}

// NewAnalyzer creates an Analyzer with the given options.
func NewAnalyzer(opts ...Option) *Analyzer {
	a := &Analyzer{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Parse is the package-level convenience: one scan with a throwaway
// Analyzer.
func Parse(ctx context.Context, projectRoot string, opts ...Option) (*catalog.Catalog, error) {
	return NewAnalyzer(opts...).Parse(ctx, projectRoot)
}

// Parse runs one scan session over the project and returns its catalog.
//
// Description:
//
//	Fail-fast: the first fatal analysis fault aborts the session and no
//	partial catalog is returned. A project with no command-endpoint files
//	is not a fault; it yields an empty catalog with a warning.
//
// Inputs:
//   - ctx: Cancellation context.
//   - projectRoot: Directory containing the modules tree.
//
// Outputs:
//
//	*catalog.Catalog - The complete module catalog. Nil on error.
func (a *Analyzer) Parse(ctx context.Context, projectRoot string) (*catalog.Catalog, error) {
	sessionID := uuid.New().String()
	ctx, span := sessionTracer.Start(ctx, "surface.Analyzer.Parse",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("project.root", projectRoot),
		))
	defer span.End()

	cat, err := a.parse(ctx, projectRoot, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("modules", len(cat.Modules)))
	return cat, nil
}

func (a *Analyzer) parse(ctx context.Context, projectRoot, sessionID string) (*catalog.Catalog, error) {
	cfg, err := a.effectiveConfig(projectRoot)
	if err != nil {
		return nil, err
	}

	sc, err := source.Build(ctx, projectRoot, cfg)
	if err != nil {
		return nil, err
	}
	defer sc.Close()

	if len(sc.CommandFiles) == 0 {
		slog.Warn("no command-endpoint files found",
			slog.String("session_id", sessionID),
			slog.String("root", projectRoot),
			slog.String("convention", cfg.Framework.ModulesDir+"/<module>/"+cfg.Framework.CommandsDir+"/<command>"))
		return &catalog.Catalog{Modules: []*catalog.Module{}}, nil
	}

	registry := catalog.NewRegistry()
	materializer := materialize.New(sc.Oracle)
	scan := scanner.New(sc.Oracle, cfg.Framework, materializer)
	extractor := extract.New(sc.Checker(), cfg.Framework, materializer)

	// Pass 1: every context file under the modules tree is scanned for
	// emissions, command file or not.
	for _, rel := range sc.Oracle.Files() {
		moduleName, ok := cfg.Framework.ModuleNameForPath(rel)
		if !ok {
			continue
		}
		f, _ := sc.File(rel)
		mod := registry.GetOrCreate(moduleName)
		if err := scan.ScanFile(ctx, f, mod); err != nil {
			return nil, analysis.WithFile(err, rel)
		}
	}

	// Pass 2: command files additionally contribute a UserCommand each.
	for _, rel := range sc.CommandFiles {
		moduleName, ok := cfg.Framework.ModuleNameForPath(rel)
		if !ok {
			continue
		}
		commandName, ok := cfg.Framework.CommandNameForPath(rel)
		if !ok {
			continue
		}
		f, _ := sc.File(rel)
		mod := registry.GetOrCreate(moduleName)
		if err := extractor.ExtractCommand(ctx, f, mod, commandName); err != nil {
			return nil, analysis.WithFile(err, rel)
		}
	}

	slog.Info("parse session complete",
		slog.String("session_id", sessionID),
		slog.Int("modules", registry.Len()),
		slog.Int("command_files", len(sc.CommandFiles)))
	return &catalog.Catalog{Modules: registry.Modules()}, nil
}

// effectiveConfig resolves the session configuration from the options or
// the project's config file.
func (a *Analyzer) effectiveConfig(projectRoot string) (config.Config, error) {
	if a.cfg != nil {
		return *a.cfg, nil
	}
	dir := a.configDir
	if dir == "" {
		dir = projectRoot
	}
	return config.Load(dir)
}
