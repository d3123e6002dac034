// Package llm implements the LLM call probe (spec §4.2/§3): a uprobe pair
// around the configured runtime's request/response path, correlated by
// tid, classifying each call against configured provider match rules and
// adding the record's prompt/completion token counts to the token counter.
// The BPF program (bpf/llm.c) captures timing only: host and path arrive
// empty, the model label is "unknown" and both token counts are 0.
package llm

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/cilium/ebpf/link"
	"go.uber.org/zap"

	"github.com/sureshkrishnan-v/honeybeepf/internal/config"
	"github.com/sureshkrishnan-v/honeybeepf/internal/constants"
	"github.com/sureshkrishnan-v/honeybeepf/internal/errs"
	"github.com/sureshkrishnan-v/honeybeepf/internal/loader"
	"github.com/sureshkrishnan-v/honeybeepf/internal/probe"
	"github.com/sureshkrishnan-v/honeybeepf/internal/ring"
	"github.com/sureshkrishnan-v/honeybeepf/internal/schema"
)

//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -cc clang -cflags "-O2 -g -Wall -Werror" -target amd64 llmTracer ../../../bpf/llm.c -- -I../../../bpf

var llmCallEventSize = binary.Size(schema.LlmCallEvent{})

// Module implements probe.Module for LLM call observation.
type Module struct {
	deps   probe.Dependencies
	logger *zap.Logger

	objs  llmTracerObjects
	links []link.Link
	r     *ring.Ring
}

// New constructs an unattached Module.
func New() *Module { return &Module{} }

func (m *Module) Name() string { return constants.ProbeLlm }

func (m *Module) Init(_ context.Context, deps probe.Dependencies) error {
	m.deps = deps
	m.logger = deps.Logger

	if err := loader.Preflight(); err != nil {
		return err
	}

	pattern := "libssl.so*"
	if deps.Config != nil && deps.Config.LibraryPath != "" {
		pattern = deps.Config.LibraryPath
	}
	libPath, err := deps.Resolver.ResolveLibrary(pattern)
	if err != nil {
		return errs.AttachError(fmt.Sprintf("resolving llm runtime library matching %q", pattern), err)
	}

	if err := loadLlmTracerObjects(&m.objs, nil); err != nil {
		return errs.LoadError("loading llm BPF objects", err)
	}

	ex, err := link.OpenExecutable(libPath)
	if err != nil {
		m.Stop(context.Background())
		return errs.AttachError(fmt.Sprintf("opening %s for uprobe attach", libPath), err)
	}

	upReq, err := ex.Uprobe("llm_request", m.objs.UprobeLlmRequest, nil)
	if err != nil {
		m.Stop(context.Background())
		return errs.AttachError("attaching llm_request uprobe", err)
	}
	m.links = append(m.links, upReq)

	upResp, err := ex.Uretprobe("llm_response", m.objs.UretprobeLlmResponse, nil)
	if err != nil {
		m.Stop(context.Background())
		return errs.AttachError("attaching llm_response uretprobe", err)
	}
	m.links = append(m.links, upResp)

	r, err := ring.New(m.Name(), m.objs.LlmCallEvents, llmCallEventSize, nil)
	if err != nil {
		m.Stop(context.Background())
		return err
	}
	m.r = r

	deps.Aggregator.RegisterCounter(constants.MetricLlmTokensTotal, []string{constants.LabelProvider, constants.LabelModel, constants.LabelKind})

	deps.Demux.Register(m.r, m.handle)
	return nil
}

func (m *Module) handle(rec ring.Record) error {
	ev, err := schema.Decode[schema.LlmCallEvent](rec.Raw)
	if err != nil {
		return fmt.Errorf("decoding llm event: %w", err)
	}

	provider := m.classifyProvider(ev.HostString(), ev.PathString())
	model := ev.ModelNameString()
	if model == "" {
		model = constants.UnknownLabelValue
	}

	m.deps.Aggregator.Inc(constants.MetricLlmTokensTotal,
		map[string]string{constants.LabelProvider: provider, constants.LabelModel: model, constants.LabelKind: "prompt"},
		uint64(ev.PromptTokens))
	m.deps.Aggregator.Inc(constants.MetricLlmTokensTotal,
		map[string]string{constants.LabelProvider: provider, constants.LabelModel: model, constants.LabelKind: "completion"},
		uint64(ev.CompletionTokens))
	return nil
}

// classifyProvider matches host/path against the configured provider match
// rules (spec §6's probes.llm.providers), first match wins, else "unknown".
func (m *Module) classifyProvider(host, path string) string {
	if m.deps.Config == nil {
		return constants.UnknownLabelValue
	}
	for _, rule := range m.deps.Config.Providers {
		if !matchRule(rule, host, path) {
			continue
		}
		return rule.Provider
	}
	return constants.UnknownLabelValue
}

func matchRule(rule config.ProviderMatchRule, host, path string) bool {
	if rule.HostGlob != "" {
		if ok, _ := filepath.Match(rule.HostGlob, host); !ok {
			return false
		}
	}
	if rule.PathGlob != "" {
		if ok, _ := filepath.Match(rule.PathGlob, path); !ok {
			return false
		}
	}
	return rule.HostGlob != "" || rule.PathGlob != ""
}

func (m *Module) Start(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	if m.r != nil {
		m.r.Close()
	}
	for _, l := range m.links {
		l.Close()
	}
	m.objs.Close()
	return nil
}

// Dropped returns this probe's ring's cumulative dropped-record count.
func (m *Module) Dropped() uint64 {
	if m.r == nil {
		return 0
	}
	return m.r.Dropped()
}
