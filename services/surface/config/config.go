// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config names the framework conventions a surface scan targets:
// the reserved namespace and state-capability interface that mark genuine
// framework calls, the deferred-result wrapper, the directory convention,
// and compiler-compatibility options.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the optional per-project override file.
const ConfigFileName = "surface.config.yaml"

// Framework names the target framework's reserved identifiers.
type Framework struct {
	// RootNamespace is the reserved root identifier that must terminate the
	// declaration-origin chain of a genuine framework call.
	RootNamespace string `yaml:"root_namespace"`

	// StateInterface is the state-capability interface that must immediately
	// enclose the emit/broadcast declaration.
	StateInterface string `yaml:"state_interface"`

	// AsyncWrapper is the deferred-result generic wrapper a command handler
	// must declare as its return type.
	AsyncWrapper string `yaml:"async_wrapper"`

	// ModulesDir is the path segment that roots module membership.
	ModulesDir string `yaml:"modules_dir"`

	// CommandsDir is the path segment that marks command-endpoint files.
	CommandsDir string `yaml:"commands_dir"`
}

// Compiler holds compiler-compatibility options recorded on the context.
// Dialect selection (.tsx vs .ts grammar) is driven by file extension; these
// fields describe the language level the sources are written against.
type Compiler struct {
	Target     string `yaml:"target"`
	ModuleKind string `yaml:"module_kind"`
}

// Config is the full scan configuration.
type Config struct {
	Framework Framework `yaml:"framework"`
	Compiler  Compiler  `yaml:"compiler"`
}

// Default returns the zero-config defaults.
func Default() Config {
	return Config{
		Framework: Framework{
			RootNamespace:  "Server",
			StateInterface: "State",
			AsyncWrapper:   "Promise",
			ModulesDir:     "modules",
			CommandsDir:    "commands",
		},
		Compiler: Compiler{
			Target:     "ES2020",
			ModuleKind: "ESNext",
		},
	}
}

// Load reads surface.config.yaml from the project root and merges it over
// the defaults.
//
// Description:
//
//	A missing config file is not an error; zero-config works out of the box.
//	Only returns an error if the file exists but cannot be parsed.
func Load(projectRoot string) (Config, error) {
	cfg := Default()
	if projectRoot == "" {
		return cfg, nil
	}

	path := filepath.Join(projectRoot, ConfigFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading %s: %w", ConfigFileName, err)
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", ConfigFileName, err)
	}
	cfg.merge(override)
	return cfg, nil
}

// merge overlays non-empty override fields onto cfg.
func (c *Config) merge(o Config) {
	if o.Framework.RootNamespace != "" {
		c.Framework.RootNamespace = o.Framework.RootNamespace
	}
	if o.Framework.StateInterface != "" {
		c.Framework.StateInterface = o.Framework.StateInterface
	}
	if o.Framework.AsyncWrapper != "" {
		c.Framework.AsyncWrapper = o.Framework.AsyncWrapper
	}
	if o.Framework.ModulesDir != "" {
		c.Framework.ModulesDir = o.Framework.ModulesDir
	}
	if o.Framework.CommandsDir != "" {
		c.Framework.CommandsDir = o.Framework.CommandsDir
	}
	if o.Compiler.Target != "" {
		c.Compiler.Target = o.Compiler.Target
	}
	if o.Compiler.ModuleKind != "" {
		c.Compiler.ModuleKind = o.Compiler.ModuleKind
	}
}

// ModuleNameForPath derives the owning module name from a project-relative
// file path.
//
// Description:
//
//	The module name is a pure function of the file path: the segment
//	immediately after the modules root. Two files under the same
//	modules/<name>/ directory always derive the same name.
//
// Outputs:
//
//	string - The module name.
//	bool - False if the path does not lie under the modules root.
func (f Framework) ModuleNameForPath(relPath string) (string, bool) {
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if len(parts) < 2 || parts[0] != f.ModulesDir {
		return "", false
	}
	return parts[1], true
}

// CommandNameForPath derives the command name from a project-relative file
// path matching the command-endpoint convention
// modules/<moduleName>/commands/<commandName>.<ext>.
//
// Outputs:
//
//	string - The command name (file base without extension).
//	bool - False if the path is not a command-endpoint file.
func (f Framework) CommandNameForPath(relPath string) (string, bool) {
	parts := strings.Split(filepath.ToSlash(relPath), "/")
	if len(parts) != 4 || parts[0] != f.ModulesDir || parts[2] != f.CommandsDir {
		return "", false
	}
	base := parts[3]
	ext := filepath.Ext(base)
	if !isSourceExt(ext) {
		return "", false
	}
	return strings.TrimSuffix(base, ext), true
}

// isSourceExt reports whether ext is a TypeScript source extension.
func isSourceExt(ext string) bool {
	switch ext {
	case ".ts", ".tsx", ".mts", ".cts":
		return true
	}
	return false
}
