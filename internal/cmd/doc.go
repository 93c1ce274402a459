// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cmd provides the CLI command entry point for shoelace. It handles
// flag parsing, configuration loading, error handling and output handling.
package cmd
