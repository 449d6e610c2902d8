package endpoint

import (
	"github.com/S-Corkum/external-adapter/internal/errs"
	"github.com/S-Corkum/external-adapter/internal/transport"
)

// CustomRouter picks a transport name given the resolved request, with
// access to adapter-level config for provider-specific routing logic.
// Returning "" defers to the next precedence level.
type CustomRouter func(req *transport.Request, config map[string]interface{}) string

// route resolves req to a Transport per §4.4's precedence: a single
// registered transport wins outright; otherwise customRouter, then
// req.data.transport, then defaultTransport; unresolved or unknown names
// are InvalidInput.
func (e *Endpoint) route(req *transport.Request) (transport.Transport, error) {
	if len(e.transports) == 1 {
		for _, t := range e.transports {
			return t, nil
		}
	}

	var name string
	if e.customRouter != nil {
		name = e.customRouter(req, e.routerConfig)
	}
	if name == "" {
		if v, ok := req.Data["transport"].(string); ok {
			name = v
		}
	}
	if name == "" {
		name = e.defaultTransport
	}
	if name == "" {
		return nil, errs.Newf(errs.InvalidInput, "endpoint %q: no transport resolved for request", e.Name)
	}

	t, ok := e.transports[name]
	if !ok {
		return nil, errs.Newf(errs.InvalidInput, "endpoint %q: unknown transport %q", e.Name, name)
	}
	return t, nil
}
