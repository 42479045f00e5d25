package reasoner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/cortexkit/cortex/pkg/llm"
	"github.com/cortexkit/cortex/pkg/neuromod"
	"github.com/cortexkit/cortex/pkg/registry"
)

const defaultMaxWorkers = 4

// Constructor builds one reasoner over a gateway.
type Constructor func(gateway llm.Provider) (*Reasoner, error)

// constructors maps agent type names to their constructors. The six
// built-in types register themselves at init.
var constructors = registry.New[Constructor]()

func init() {
	for _, t := range Types {
		_ = constructors.Register(string(t), func(gateway llm.Provider) (*Reasoner, error) {
			return New(t, gateway)
		})
	}
}

// RegisteredTypes returns the registered agent type names, sorted.
func RegisteredTypes() []string {
	return constructors.Names()
}

// Suite builds one reasoner of every type.
func Suite(gateway llm.Provider) []*Reasoner {
	reasoners, _ := ForTypes(gateway, Types)
	return reasoners
}

// ForTypes builds reasoners for the requested types through the
// constructor registry.
func ForTypes(gateway llm.Provider, types []AgentType) ([]*Reasoner, error) {
	reasoners := make([]*Reasoner, 0, len(types))
	for _, t := range types {
		build, ok := constructors.Get(string(t))
		if !ok {
			return nil, fmt.Errorf("unknown agent type: %s", t)
		}
		r, err := build(gateway)
		if err != nil {
			return nil, err
		}
		reasoners = append(reasoners, r)
	}
	return reasoners, nil
}

// Dispatch runs the reasoners concurrently, at most maxWorkers at a time,
// and returns their outputs ordered by agent type. A reasoner that fails
// contributes a degraded zero-confidence output instead of an error; the
// per-agent modulate hook supplies each reasoner's parameters.
func Dispatch(ctx context.Context, reasoners []*Reasoner, bundle *ContextBundle, modulate func(AgentType) neuromod.Modulation, maxWorkers int) []*AgentOutput {
	if maxWorkers < 1 {
		maxWorkers = defaultMaxWorkers
	}

	outputs := make([]*AgentOutput, len(reasoners))
	sem := semaphore.NewWeighted(int64(maxWorkers))
	g, gctx := errgroup.WithContext(ctx)

	for i, r := range reasoners {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				outputs[i] = degradedOutput(r.Type(), err)
				return nil
			}
			defer sem.Release(1)

			var mod neuromod.Modulation
			if modulate != nil {
				mod = modulate(r.Type())
			}
			out, err := r.Run(gctx, bundle, mod)
			if err != nil {
				slog.Warn("reasoner failed", "agent", r.Type(), "error", err)
				out = degradedOutput(r.Type(), err)
			}
			outputs[i] = out
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(outputs, func(a, b int) bool { return outputs[a].Agent < outputs[b].Agent })
	return outputs
}

// degradedOutput stands in for a reasoner that failed so the cycle can
// proceed without it.
func degradedOutput(t AgentType, err error) *AgentOutput {
	return &AgentOutput{
		Agent:               t,
		TextDraft:           fmt.Sprintf("Error in %s reasoning: %v", t, err),
		ReasoningTrace:      []string{fmt.Sprintf("Error occurred: %v", err)},
		Confidence:          0,
		ConfidenceRationale: "reasoner failed; no assessment available.",
		CreatedAt:           time.Now(),
	}
}
