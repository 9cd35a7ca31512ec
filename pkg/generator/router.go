package generator

import (
	"fmt"

	"github.com/academy-ai/aicache/pkg/config"
)

// Router resolves function names to ordered endpoint chains.
type Router struct {
	cfg config.GeneratorConfig
}

// NewRouter creates a Router from the given configuration.
func NewRouter(cfg config.GeneratorConfig) *Router {
	return &Router{cfg: cfg}
}

// Resolve returns the endpoints to try for functionName, in order.
// If the function has a configured route, its targets are returned.
// Otherwise the first endpoint is used.
func (r *Router) Resolve(functionName string) ([]config.EndpointConfig, error) {
	if len(r.cfg.Endpoints) == 0 {
		return nil, ErrNoEndpoints
	}

	index := make(map[string]config.EndpointConfig, len(r.cfg.Endpoints))
	for _, ep := range r.cfg.Endpoints {
		index[ep.Name] = ep
	}

	for _, route := range r.cfg.Routes {
		if route.Function != functionName {
			continue
		}
		var chain []config.EndpointConfig
		for _, target := range route.Targets {
			ep, ok := index[target]
			if !ok {
				continue // skip unknown endpoints
			}
			chain = append(chain, ep)
		}
		if len(chain) == 0 {
			return nil, fmt.Errorf("%w: route %q: all endpoints unknown", ErrNoEndpoints, functionName)
		}
		return chain, nil
	}

	return []config.EndpointConfig{r.cfg.Endpoints[0]}, nil
}
