// Package registry is the static probe name → constructor table the
// supervisor walks to build every configured probe (spec §4.2). Unknown
// probe names are already rejected at config-validation time
// (internal/config); this table is the other half of that contract.
package registry

import (
	"github.com/sureshkrishnan-v/honeybeepf/internal/constants"
	"github.com/sureshkrishnan-v/honeybeepf/internal/probe"
	"github.com/sureshkrishnan-v/honeybeepf/internal/probes/blockio"
	"github.com/sureshkrishnan-v/honeybeepf/internal/probes/gpuopen"
	"github.com/sureshkrishnan-v/honeybeepf/internal/probes/llm"
	"github.com/sureshkrishnan-v/honeybeepf/internal/probes/nccl"
	"github.com/sureshkrishnan-v/honeybeepf/internal/probes/netlatency"
)

// Constructor builds a fresh, unattached probe.Module instance.
type Constructor func() probe.Module

var builtins = map[string]Constructor{
	constants.ProbeBlockIO:        func() probe.Module { return blockio.New() },
	constants.ProbeNetworkLatency: func() probe.Module { return netlatency.New() },
	constants.ProbeGpuOpen:        func() probe.Module { return gpuopen.New() },
	constants.ProbeNccl:           func() probe.Module { return nccl.New() },
	constants.ProbeLlm:            func() probe.Module { return llm.New() },
}

// Lookup returns the constructor for a probe name, or false if unknown.
func Lookup(name string) (Constructor, bool) {
	c, ok := builtins[name]
	return c, ok
}

// Names returns every registered probe name, for iterating config or
// reporting available probes.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	return names
}
