// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

func setupLogging(writer io.Writer, debug bool) {
	level := log.InfoLevel
	if debug {
		level = log.DebugLevel
	}

	logger := log.NewWithOptions(writer, log.Options{
		Level:  level,
		Prefix: "shoelace",
	})

	slog.SetDefault(slog.New(logger))
}
