// SPDX-FileCopyrightText: 2024 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: MIT

package qemu

import (
	"os"
)

// kvmDevice is the device QEMU needs access to for KVM acceleration.
var kvmDevice = "/dev/kvm"

// KVMAvailable checks if KVM support is available on the host.
func KVMAvailable() bool {
	f, err := os.OpenFile(kvmDevice, os.O_WRONLY, 0)
	if err != nil {
		return false
	}

	_ = f.Close()

	return true
}
