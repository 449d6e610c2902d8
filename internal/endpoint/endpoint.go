package endpoint

import (
	"context"

	"github.com/S-Corkum/external-adapter/internal/transport"
)

// Endpoint is AdapterEndpoint: a named set of transports plus the request
// transform pipeline, validation plan, and routing that sits in front of
// them.
type Endpoint struct {
	Name string

	transports       map[string]transport.Transport
	defaultTransport string
	customRouter     CustomRouter
	routerConfig     map[string]interface{}

	requestTransforms []RequestTransform
	staticOverrides   map[string]string

	plan *validationPlan
}

// Options configures a new Endpoint. Aliases are alternate names this
// endpoint may be addressed by (§3, §4.17); Endpoint itself doesn't
// enforce their global uniqueness across an adapter's endpoints — that's
// the Adapter's job at Start.
type Options struct {
	Name             string
	Aliases          []string
	Transports       map[string]transport.Transport
	DefaultTransport string
	CustomRouter     CustomRouter
	RouterConfig     map[string]interface{}
	InputParameters  map[string]InputParameter
	StaticOverrides  map[string]string
	ExtraTransforms  []RequestTransform
}

// New constructs an Endpoint, compiling its validation plan. Fails fast on
// any of the construction-time invariants in buildValidationPlan.
func New(opts Options) (*Endpoint, error) {
	plan, err := buildValidationPlan(opts.InputParameters)
	if err != nil {
		return nil, err
	}

	transforms := append([]RequestTransform{symbolOverrider}, opts.ExtraTransforms...)

	return &Endpoint{
		Name:              opts.Name,
		transports:        opts.Transports,
		defaultTransport:  opts.DefaultTransport,
		customRouter:      opts.CustomRouter,
		routerConfig:      opts.RouterConfig,
		requestTransforms: transforms,
		staticOverrides:   opts.StaticOverrides,
		plan:              plan,
	}, nil
}

// Handle runs the four steps of §4.4: transforms, validation, routing,
// and delegation to the routed transport's ForegroundExecute.
func (e *Endpoint) Handle(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if req.Data == nil {
		req.Data = make(map[string]interface{})
	}

	for _, t := range e.requestTransforms {
		t(req, e.staticOverrides)
	}

	resolved, err := e.plan.validate(req.Data)
	if err != nil {
		return nil, err
	}
	req.Data = resolved

	t, err := e.route(req)
	if err != nil {
		return nil, err
	}

	// A nil response (no cache hit, no in-line fetch available) is not an
	// error: the caller surfaces a 202-equivalent or retry hint per config.
	return t.ForegroundExecute(ctx, req)
}
