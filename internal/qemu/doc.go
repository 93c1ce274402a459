// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package qemu composes and runs the QEMU command that boots the kernel with
// the initramfs. It expects the QEMU binary to be present on the system.
//
// The guest's serial console is connected to the terminal via "-nographic",
// so the guest can be used interactively.
package qemu
