// Package viaduct is the top-level bootstrapping and execution surface: it
// wires together a schema, a resolver registry, the plan cache, the global
// ID codec, and instrumentation into one immutable Engine, and exposes the
// transport-agnostic Execute entrypoint every transport (HTTP handler, CLI,
// test harness) calls through.
//
// The Builder's chainable With*/allow* methods are grounded in the
// teacher's graphql.Schema bootstrapping surface, generalized from the
// teacher's reflection-driven schemabuilder registration to this
// specification's directly-constructed schema.Schema and registry.Registry.
package viaduct

import (
	"fmt"

	"github.com/viaductgraph/viaduct/engine"
	"github.com/viaductgraph/viaduct/globalid"
	"github.com/viaductgraph/viaduct/instrumentation"
	"github.com/viaductgraph/viaduct/logging"
	"github.com/viaductgraph/viaduct/planner"
	"github.com/viaductgraph/viaduct/registry"
	"github.com/viaductgraph/viaduct/schema"
)

// Recognized feature flags a FlagManager may answer (spec.md §6).
const (
	FlagEnableSubqueryExecutionViaHandle = "ENABLE_SUBQUERY_EXECUTION_VIA_HANDLE"
	FlagExecuteAccessChecksInModstrat    = "EXECUTE_ACCESS_CHECKS_IN_MODSTRAT"

	// FlagAccessChecksSeparatePass switches access-check evaluation from
	// the default inline strategy (each scoped field calls
	// CheckerExecutorFactory's AccessCheckFunc itself, interleaved with
	// resolver dispatch) to the separate-pass strategy (engine.PrecheckAccess
	// walks the whole plan up front and resolves every scoped coordinate's
	// decision before any resolver runs). Both strategies call the same
	// AccessCheckFunc the factory produces and must reach identical
	// decisions (spec.md §9); only gated behind FlagExecuteAccessChecksInModstrat,
	// same as the inline strategy.
	FlagAccessChecksSeparatePass = "ACCESS_CHECKS_SEPARATE_PASS"
)

// FlagManager answers feature-flag lookups by name; Builder treats an
// unrecognized name as simply false rather than an error, since the flag
// set is meant to grow without every caller needing updating.
type FlagManager func(flag string) bool

// CheckerExecutorFactory builds the access-check function the engine
// invokes for every field that declares one or more @scope requirements
// (the access-check plug-in). The returned AccessCheckFunc receives
// whatever request context the caller's Execute call was given, so a host
// application's factory closure is free to read viewer/tenant state off
// that context directly rather than through a separate parameter.
type CheckerExecutorFactory func() engine.AccessCheckFunc

// TenantAPIBootstrapper registers one resolver package's fields and nodes
// into a Registry (spec.md §6's "registers resolver packages").
type TenantAPIBootstrapper func(r *registry.Registry)

// Builder assembles the configuration an Engine needs before any request
// can be served. Every With*/allow* method mutates and returns the same
// Builder for chaining.
type Builder struct {
	schema        *schema.Schema
	scopeBindings []string

	registry *registry.Registry

	checkerFactory CheckerExecutorFactory
	flagManager    FlagManager
	instrumentation instrumentation.Resolver
	codec           globalid.Codec

	allowSubscriptions bool
	planCacheSize      int
	maxInFlight        int

	logger        logging.Logger
	meterRegistry interface{}
}

// NewBuilder returns an empty Builder with an empty resolver registry and
// the default plan cache size.
func NewBuilder() *Builder {
	return &Builder{
		registry:      registry.New(),
		planCacheSize: 512,
	}
}

// WithSchemaConfiguration installs sch as the engine's schema, optionally
// narrowing it to the given scope bindings via schema.Schema.Filter. This
// specification builds schemas directly through schema.Builder rather than
// parsing SDL text at bootstrap, so sdlSources is the already-built
// *schema.Schema rather than a list of source strings; the fields a scope
// binding admits are exactly those whose @scope(to: [...]) list intersects
// scopeBindings, plus every field carrying no @scope directive at all.
func (b *Builder) WithSchemaConfiguration(sdlSources *schema.Schema, scopeBindings []string) *Builder {
	b.schema = sdlSources
	b.scopeBindings = scopeBindings
	return b
}

// WithTenantAPIBootstrapper runs each bootstrapper against the Builder's
// resolver registry, in order, so each one can register the fields and
// nodes its own resolver package owns.
func (b *Builder) WithTenantAPIBootstrapper(bootstrappers []TenantAPIBootstrapper) *Builder {
	for _, boot := range bootstrappers {
		boot(b.registry)
	}
	return b
}

// WithCheckerExecutorFactory installs the access-check plug-in invoked for
// every @scope-bearing field before its resolver runs.
func (b *Builder) WithCheckerExecutorFactory(factory CheckerExecutorFactory) *Builder {
	b.checkerFactory = factory
	return b
}

// WithFlagManager installs the feature-flag lookup fn uses to decide
// ENABLE_SUBQUERY_EXECUTION_VIA_HANDLE and EXECUTE_ACCESS_CHECKS_IN_MODSTRAT
// (and any host-specific flags beyond those two).
func (b *Builder) WithFlagManager(fn FlagManager) *Builder {
	b.flagManager = fn
	return b
}

// WithMeterRegistry installs an opaque metrics sink. The engine itself
// does not depend on any particular metrics library; a meter registry is
// threaded through only so a host's ResolverInstrumentation implementation
// can close over it.
func (b *Builder) WithMeterRegistry(registry interface{}) *Builder {
	b.meterRegistry = registry
	return b
}

// WithResolverInstrumentation installs the begin/end hooks invoked around
// every field and object fetch (spec.md §5, §9).
func (b *Builder) WithResolverInstrumentation(instr instrumentation.Resolver) *Builder {
	b.instrumentation = instr
	return b
}

// AllowSubscriptions controls whether a schema declaring a Subscription
// type is rejected at Build time. Subscriptions are otherwise unsupported
// (spec.md §9's Non-goals); this flag exists only for tests that need to
// exercise schema construction against a Subscription-bearing SDL without
// the engine ever actually executing one.
func (b *Builder) AllowSubscriptions(allow bool) *Builder {
	b.allowSubscriptions = allow
	return b
}

// WithGlobalIDCodec installs the codec the engine uses to serialize and
// deserialize Node global IDs. Defaults to globalid.Default.
func (b *Builder) WithGlobalIDCodec(codec globalid.Codec) *Builder {
	b.codec = codec
	return b
}

// WithPlanCacheSize overrides the bounded plan cache's capacity (default
// 512 plans).
func (b *Builder) WithPlanCacheSize(n int) *Builder {
	b.planCacheSize = n
	return b
}

// WithMaxInFlight bounds how many field/list-element resolutions a single
// request may run concurrently; 0 (the default) leaves it unbounded.
func (b *Builder) WithMaxInFlight(n int) *Builder {
	b.maxInFlight = n
	return b
}

// WithLogger installs the Logger used for bootstrap diagnostics. Defaults
// to logging.Nop.
func (b *Builder) WithLogger(logger logging.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the accumulated configuration and returns an immutable
// Engine ready to serve requests. Every error Build can return is a
// *instrumentation.GraphQLBuildError (spec.md §7: bootstrap failures are
// fatal, never recoverable).
func (b *Builder) Build() (*Engine, error) {
	logger := b.logger
	if logger == nil {
		logger = logging.Nop
	}

	if b.schema == nil {
		err := fmt.Errorf("viaduct: no schema configured; call WithSchemaConfiguration")
		logger.Error("viaduct: build failed", "err", err)
		return nil, &instrumentation.GraphQLBuildError{Err: err}
	}
	if !b.allowSubscriptions {
		if _, ok := b.schema.GetObject("Subscription"); ok {
			err := fmt.Errorf("viaduct: schema declares a Subscription type but subscriptions are not allowed")
			logger.Error("viaduct: build failed", "err", err)
			return nil, &instrumentation.GraphQLBuildError{Err: err}
		}
	}

	sch := b.schema
	if len(b.scopeBindings) > 0 {
		filtered, err := sch.Filter(scopeFilterPredicate(b.scopeBindings))
		if err != nil {
			wrapped := fmt.Errorf("viaduct: applying scope bindings: %w", err)
			logger.Error("viaduct: build failed", "err", wrapped)
			return nil, &instrumentation.GraphQLBuildError{Err: wrapped}
		}
		sch = filtered
		logger.Debug("viaduct: schema scoped", "bindings", b.scopeBindings)
	}

	codec := b.codec
	if codec == nil {
		codec = globalid.Default
	}
	instr := b.instrumentation
	if instr == nil {
		instr = instrumentation.NopResolver{}
	}

	// The node/nodes fields (spec.md §6's Node contract) are synthesized
	// directly onto the Query object by schema.Build whenever any Object is
	// marked IsNode; their resolvers dispatch through the registry's own
	// NodeResolver map, so they're registered here rather than left for a
	// host application to implement by hand. builtRegistry is filled in
	// immediately after registry.Build succeeds below; the closures below
	// are never invoked before then, since Execute cannot run until Build
	// returns an Engine.
	var builtRegistry *registry.Built
	if _, ok := sch.GetUnion(schema.NodeTypeName); ok {
		registerNodeFieldResolvers(b.registry, sch.QueryTypeName(), codec, &builtRegistry)
	}

	built, err := registry.Build(b.registry, sch, true)
	if err != nil {
		logger.Error("viaduct: registry build failed", "err", err)
		return nil, &instrumentation.GraphQLBuildError{Err: err}
	}
	builtRegistry = built

	cache, err := planner.NewCache(b.planCacheSize)
	if err != nil {
		logger.Error("viaduct: plan cache build failed", "err", err)
		return nil, &instrumentation.GraphQLBuildError{Err: err}
	}

	var accessCheck engine.AccessCheckFunc
	if b.checkerFactory != nil && b.flagValue(FlagExecuteAccessChecksInModstrat) {
		accessCheck = b.checkerFactory()
		logger.Info("viaduct: access checks enabled via EXECUTE_ACCESS_CHECKS_IN_MODSTRAT")
	}

	logger.Info("viaduct: engine built", "queryType", sch.QueryTypeName(), "mutationType", sch.MutationTypeName())

	return &Engine{
		fullSchema:                 b.schema,
		schema:                     sch,
		registry:                   built,
		cache:                      cache,
		codec:                      codec,
		instrumentation:            instr,
		accessCheck:                accessCheck,
		maxInFlight:                b.maxInFlight,
		subqueryExecutionViaHandle: b.flagValue(FlagEnableSubqueryExecutionViaHandle),
		accessChecksSeparatePass:   accessCheck != nil && b.flagValue(FlagAccessChecksSeparatePass),
	}, nil
}

func (b *Builder) flagValue(name string) bool {
	if b.flagManager == nil {
		return false
	}
	return b.flagManager(name)
}

// scopeFilterPredicate returns the schema.Filter predicate implementing
// spec.md §4.1's scoped-schema rule: a field (or other type) carrying no
// @scope directive is always visible; one that does is visible only if one
// of its declared scope names is in bindings.
func scopeFilterPredicate(bindings []string) func(schema.Type) bool {
	allowed := make(map[string]bool, len(bindings))
	for _, s := range bindings {
		allowed[s] = true
	}
	return func(t schema.Type) bool {
		scoped, ok := t.(interface{ ScopeNames() []string })
		if !ok {
			return true
		}
		names := scoped.ScopeNames()
		if len(names) == 0 {
			return true
		}
		for _, n := range names {
			if allowed[n] {
				return true
			}
		}
		return false
	}
}
