package warmup

import (
	"fmt"

	"github.com/academy-ai/aicache/pkg/cache"
	"github.com/academy-ai/aicache/pkg/config"
	"github.com/academy-ai/aicache/pkg/params"
)

// Binder returns the compute function for one invocation.
type Binder func(functionName string, p params.Value) cache.ComputeFunc

// FromConfig turns configured warmup jobs into runnable Jobs.
func FromConfig(jobs []config.WarmupJob, bind Binder) ([]Job, error) {
	out := make([]Job, 0, len(jobs))
	for i, j := range jobs {
		p, err := j.Value()
		if err != nil {
			return nil, fmt.Errorf("warmup job %d (%s): %w", i, j.Function, err)
		}
		out = append(out, Job{
			FunctionName: j.Function,
			Params:       p,
			Compute:      bind(j.Function, p),
		})
	}
	return out, nil
}
