// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package kmod

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
)

// NameIndex maps module names to their path relative to the module tree.
type NameIndex map[string]string

// DepGraph maps module paths to the paths of their direct dependencies, as
// listed in modules.dep. All paths are relative to the module tree.
type DepGraph map[string][]string

// BuildNameIndex walks the "kernel" directory of the given module tree and
// indexes all module files by name. The name is the file name without the
// extension. A missing "kernel" directory results in an empty index.
func BuildNameIndex(fsys fs.FS) (NameIndex, error) {
	index := make(NameIndex)

	err := fs.WalkDir(fsys, kernelDir, func(name string, entry fs.DirEntry, err error) error {
		if err != nil {
			if name == kernelDir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}

			return err
		}

		if entry.IsDir() || !strings.HasSuffix(name, ModuleExtension) {
			return nil
		}

		moduleName := ModuleName(name)

		if existing, exists := index[moduleName]; exists {
			return &DuplicateModuleNameError{
				Name:   moduleName,
				First:  existing,
				Second: name,
			}
		}

		index[moduleName] = name

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index modules: %w", err)
	}

	return index, nil
}

// ModuleName returns the module name for the given module file path.
func ModuleName(file string) string {
	return strings.TrimSuffix(path.Base(file), ModuleExtension)
}

// ParseDepGraph parses modules.dep content. Each non-empty line has the form
// "<path>: <dep0> <dep1> ...". The order of dependencies is preserved.
func ParseDepGraph(r io.Reader) (DepGraph, error) {
	graph := make(DepGraph)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), maxLineLength)

	lineNum := 0

	for scanner.Scan() {
		lineNum++

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)

		modulePath, found := strings.CutSuffix(fields[0], ":")
		if !found || modulePath == "" {
			return nil, &DependencyFormatError{Line: lineNum, Text: line}
		}

		graph[modulePath] = fields[1:]
	}

	err := scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read dependency file: %w", err)
	}

	return graph, nil
}
