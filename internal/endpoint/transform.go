package endpoint

import "github.com/S-Corkum/external-adapter/internal/transport"

// RequestTransform mutates req.Data in place before validation. Endpoints
// register these in order; the first is always symbolOverrider.
type RequestTransform func(req *transport.Request, staticOverrides map[string]string)

// symbolOverrider looks up req.Data["base"] in the per-request overrides
// first, then the endpoint's static overrides map, replacing it in place
// when a mapping exists. This lets an endpoint alias a common symbol
// ("BTC") to a provider-specific one ("XBT") without every caller knowing
// the provider's quirks.
func symbolOverrider(req *transport.Request, staticOverrides map[string]string) {
	base, ok := req.Data["base"].(string)
	if !ok {
		return
	}
	if req.Overrides != nil {
		if mapped, ok := req.Overrides[base]; ok {
			req.Data["base"] = mapped
			return
		}
	}
	if perRequest, ok := req.Data["overrides"].(map[string]interface{}); ok {
		if mapped, ok := perRequest[base].(string); ok {
			req.Data["base"] = mapped
			return
		}
	}
	if mapped, ok := staticOverrides[base]; ok {
		req.Data["base"] = mapped
	}
}
