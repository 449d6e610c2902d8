// Package adapter implements Adapter: the process-wide owner of an
// external adapter's endpoints, shared cache, subscription set factory,
// and rate limiter, plus its startup and shutdown sequencing.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/S-Corkum/external-adapter/internal/cache"
	"github.com/S-Corkum/external-adapter/internal/endpoint"
	"github.com/S-Corkum/external-adapter/internal/errs"
	"github.com/S-Corkum/external-adapter/internal/executor"
	"github.com/S-Corkum/external-adapter/internal/ratelimit"
	"github.com/S-Corkum/external-adapter/internal/subscription"
	"github.com/S-Corkum/external-adapter/internal/transport"
	"github.com/S-Corkum/external-adapter/pkg/observability"
)

// Config is the subset of top-level configuration the Adapter needs to
// start: it does not see endpoint/transport wiring, which callers supply
// via EndpointDef.
type Config struct {
	Name               string
	Cache              cache.Config
	Subscriptions      subscription.Config
	RateLimitRPS       float64
	RateLimitBurst     int
	ShutdownGraceMS    int64
	BackgroundExecuteMSWS   int64
	BackgroundExecuteMSHTTP int64
}

// TransportDef describes one transport registered under an endpoint,
// along with the subscription TTL and response cache max age it should use.
type TransportDef struct {
	Name            string
	Transport       transport.Transport
	SubscriptionTTL time.Duration
	CacheMaxAge     time.Duration
}

// EndpointDef is everything Adapter needs to wire one AdapterEndpoint:
// its options (minus the Transports map, built per endpoint from
// Transports) and the transport definitions themselves.
type EndpointDef struct {
	Options    endpoint.Options
	Transports []TransportDef
}

// Adapter owns name, endpoints, cache, subscription set factory, rate
// limiter, and metrics registry for the lifetime of the process.
type Adapter struct {
	name    string
	logger  observability.Logger
	metrics observability.MetricsClient

	cacheBackend cache.Cache
	subsFactory  *subscription.Factory
	limiter      *ratelimit.Limiter
	executor     *executor.Executor

	endpoints map[string]*endpoint.Endpoint

	cancel      context.CancelFunc
	shutdownGrace time.Duration
}

// New constructs an Adapter without starting it; call Start to wire
// dependencies and launch the BackgroundExecutor.
func New(name string, logger observability.Logger, metrics observability.MetricsClient) *Adapter {
	return &Adapter{
		name:      name,
		logger:    logger,
		metrics:   metrics,
		endpoints: make(map[string]*endpoint.Endpoint),
	}
}

// Start wires the cache, subscription set factory, and rate limiter,
// calls Initialize on every transport of every endpoint, builds the
// AdapterEndpoint wrappers, and launches the BackgroundExecutor.
func (a *Adapter) Start(ctx context.Context, cfg Config, defs []EndpointDef) error {
	if err := checkAliasUniqueness(defs); err != nil {
		return err
	}

	backend, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return errs.New(errs.Internal, err)
	}
	a.cacheBackend = backend

	cfg.Subscriptions.Namespace = cfg.Name
	a.subsFactory = subscription.NewFactory(cfg.Subscriptions)
	a.limiter = ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, a.metrics)
	a.executor = executor.New(a.logger, a.metrics)

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.shutdownGrace = time.Duration(cfg.ShutdownGraceMS) * time.Millisecond

	for _, def := range defs {
		transports := make(map[string]transport.Transport, len(def.Transports))
		for _, td := range def.Transports {
			subs, err := a.subsFactory.New(def.Options.Name)
			if err != nil {
				return errs.New(errs.Internal, err)
			}

			maxAge := td.CacheMaxAge
			if maxAge == 0 {
				maxAge = time.Minute
			}
			rc := responseCacheFor(a.cacheBackend, cfg.Cache.Type, a.name, def.Options.Name, td.Name, maxAge, a.metrics)

			deps := transport.Deps{Logger: a.logger, Metrics: a.metrics}
			tCfg := transport.Config{
				ResponseCache:       rc,
				Subscriptions:       subs,
				SubscriptionTTL:     td.SubscriptionTTL.Milliseconds(),
				BackgroundExecuteMS: backgroundIntervalFor(td.Name, cfg),
			}

			if err := td.Transport.Initialize(runCtx, deps, tCfg, def.Options.Name, td.Name); err != nil {
				return errs.New(errs.Internal, fmt.Errorf("initializing transport %s/%s: %w", def.Options.Name, td.Name, err))
			}
			transports[td.Name] = td.Transport

			a.executor.Register(def.Options.Name, td.Transport, backgroundIntervalDuration(td.Name, cfg))
		}

		def.Options.Transports = transports
		ep, err := endpoint.New(def.Options)
		if err != nil {
			return errs.New(errs.Internal, err)
		}
		a.endpoints[def.Options.Name] = ep
		for _, alias := range def.Options.Aliases {
			a.endpoints[alias] = ep
		}
	}

	a.executor.Start(runCtx)
	return nil
}

// Endpoint returns the named AdapterEndpoint, or (nil, false) if unknown.
func (a *Adapter) Endpoint(name string) (*endpoint.Endpoint, bool) {
	ep, ok := a.endpoints[name]
	return ep, ok
}

// Allow consults the rate limiter for endpointName, always spending a
// credit regardless of the outcome.
func (a *Adapter) Allow(endpointName string) bool {
	return a.limiter.Allow(endpointName)
}

// Shutdown signals cancellation, awaits in-flight ticks with a grace
// window, then closes the cache backend.
func (a *Adapter) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.executor != nil {
		a.executor.Shutdown(a.shutdownGrace)
	}
	if a.cacheBackend != nil {
		return a.cacheBackend.Close()
	}
	return nil
}

// backgroundIntervalFor returns the tick interval in ms, falling back to
// the configuration defaults (200 for "ws", 1000 otherwise) when unset.
func backgroundIntervalFor(transportName string, cfg Config) int64 {
	if transportName == "ws" {
		if cfg.BackgroundExecuteMSWS > 0 {
			return cfg.BackgroundExecuteMSWS
		}
		return 200
	}
	if cfg.BackgroundExecuteMSHTTP > 0 {
		return cfg.BackgroundExecuteMSHTTP
	}
	return 1000
}

func backgroundIntervalDuration(transportName string, cfg Config) time.Duration {
	return time.Duration(backgroundIntervalFor(transportName, cfg)) * time.Millisecond
}

// checkAliasUniqueness enforces spec §3's rule that aliases are globally
// unique across all of an adapter's endpoints: no endpoint's canonical
// name or alias may collide with another endpoint's canonical name or
// alias, anywhere in one Start call.
func checkAliasUniqueness(defs []EndpointDef) error {
	seen := make(map[string]string) // name -> endpoint that first claimed it

	claim := func(name, owner string) error {
		if prior, ok := seen[name]; ok && prior != owner {
			return errs.New(errs.Internal, fmt.Errorf("adapter: endpoint name/alias %q on %q collides with %q", name, owner, prior))
		}
		seen[name] = owner
		return nil
	}

	for _, def := range defs {
		if err := claim(def.Options.Name, def.Options.Name); err != nil {
			return err
		}
		for _, alias := range def.Options.Aliases {
			if err := claim(alias, def.Options.Name); err != nil {
				return err
			}
		}
	}
	return nil
}
