// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package initramfs provides a streaming writer for initramfs archives.
//
// The archive is written in the CPIO "newc" format the Linux kernel expects
// for its initramfs. Entries are appended in the order they are added. Missing
// parent directories are created automatically right before the first entry
// that needs them, so parents always precede their children in the archive.
// Once done, the [Archive] must be closed so the trailer is written.
package initramfs
