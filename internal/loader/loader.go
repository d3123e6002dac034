// Package loader runs the host preflight checks every probe's BPF object
// load depends on: root privilege (effective UID 0; capabilities such as
// CAP_BPF are not inspected), kernel BTF availability, and the
// memlock rlimit removal every probe needs before its first load call
// (spec §4.2, §7). Generalizes the teacher's internal/loader.Load
// preflight from a single monolithic loader into a shared precondition
// check each probe package invokes independently from its own Init.
package loader

import (
	"fmt"
	"os"

	"github.com/cilium/ebpf/rlimit"
	"golang.org/x/sys/unix"

	"github.com/sureshkrishnan-v/honeybeepf/internal/errs"
)

// btfPath is the standard kernel BTF exposure point on BTF-enabled kernels.
const btfPath = "/sys/kernel/btf/vmlinux"

// Preflight checks privilege and BTF availability and removes the memlock
// rlimit once per process. Every probe's Init should call this before its
// first bpf2go Load call; calling it more than once is harmless.
func Preflight() error {
	if os.Geteuid() != 0 {
		return errs.PrivilegeError("honeybeepf requires root (effective UID 0) to load BPF programs", nil)
	}
	if _, err := os.Stat(btfPath); err != nil {
		return errs.LoadError(fmt.Sprintf("kernel BTF not available at %s; a BTF-enabled kernel is required", btfPath), err)
	}
	if err := rlimit.RemoveMemlock(); err != nil {
		return errs.LoadError("removing memlock rlimit", err)
	}
	return nil
}

// KernelRelease returns the running kernel's release string (e.g.
// "6.8.0-generic"). Preflight does not call it; no minimum kernel version
// is enforced.
func KernelRelease() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", fmt.Errorf("reading kernel uname: %w", err)
	}
	end := 0
	for end < len(uts.Release) && uts.Release[end] != 0 {
		end++
	}
	b := make([]byte, end)
	for i := 0; i < end; i++ {
		b[i] = byte(uts.Release[i])
	}
	return string(b), nil
}
