package svcmock

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Registry owns the set of live service registrations. It assigns
// identities, merges properties on registration, answers filtered lookups
// in ranking order, keeps dynamic references of live components
// consistent and broadcasts mutation events to listeners.
//
// Lookups are safe from any goroutine, including from inside bind
// accessors and listeners. Accessors and listeners must not register or
// unregister services; mutations are serialized and re-entrant mutation
// would deadlock.
type Registry struct {
	ids         IdentityGenerator
	configs     ConfigSource
	descriptors DescriptorProvider
	log         zerolog.Logger

	// resolveMu serializes the scan-validate-apply sequence of Register
	// and Unregister so two concurrent mutations cannot both claim the
	// same mandatory unary slot.
	resolveMu sync.Mutex

	mu        sync.RWMutex
	services  []*ServiceRegistration // kept in ranking order
	listeners map[ServiceListener]*Filter
}

// Option configures a Registry.
type Option func(*Registry)

// WithIdentityGenerator replaces the default serial identity counter.
func WithIdentityGenerator(ids IdentityGenerator) Option {
	return func(r *Registry) { r.ids = ids }
}

// WithConfigSource supplies configuration overrides for the property
// merge on registration.
func WithConfigSource(configs ConfigSource) Option {
	return func(r *Registry) { r.configs = configs }
}

// WithDescriptorProvider replaces the default descriptor registry.
func WithDescriptorProvider(descriptors DescriptorProvider) Option {
	return func(r *Registry) { r.descriptors = descriptors }
}

// WithLogger sets the logger used for listener panics and shutdown
// failures. The default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) { r.log = log }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		ids:         newSerialIdentity(),
		configs:     NewMapConfigSource(),
		descriptors: NewDescriptorRegistry(),
		log:         zerolog.Nop(),
		listeners:   make(map[ServiceListener]*Filter),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Descriptors returns the registry's descriptor provider, so tests can
// register metadata for components that do not describe themselves.
func (r *Registry) Descriptors() DescriptorProvider {
	return r.descriptors
}

// Register publishes an instance under the union of the given contracts
// and those its descriptor declares. Properties are merged from the
// descriptor defaults, configuration overrides and the caller-supplied
// map, in increasing precedence; the identity and contract set are stored
// under reserved keys on top of the merge result.
//
// Registration is atomic: when it would break a mandatory unary reference
// of a live component, when one of the instance's own mandatory
// references cannot be satisfied or when a required accessor cannot be
// resolved, no binding is invoked, no state changes and the error is
// returned.
func (r *Registry) Register(contracts []string, instance any, props Properties) (*ServiceRegistration, error) {
	if instance == nil {
		return nil, &NilServiceError{Contract: strings.Join(contracts, ",")}
	}
	desc, _ := r.descriptors.DescriptorFor(instance)
	merged := mergeProperties(desc, r.configs, props)

	set := make(map[string]struct{})
	for _, c := range contracts {
		if c != "" {
			set[c] = struct{}{}
		}
	}
	if desc != nil {
		for _, c := range desc.Contracts {
			set[c] = struct{}{}
		}
	}
	contractList := make([]string, 0, len(set))
	for c := range set {
		contractList = append(contractList, c)
	}
	sort.Strings(contractList)

	r.resolveMu.Lock()
	defer r.resolveMu.Unlock()

	reg := &ServiceRegistration{
		id:           r.ids.Next(),
		contracts:    set,
		contractList: contractList,
		instance:     instance,
		registry:     r,
		bound:        make(map[string]map[int64]*ServiceRegistration),
	}
	reg.reference = &ServiceReference{reg: reg}
	merged[PropServiceID] = reg.id
	merged[PropServiceContracts] = append([]string(nil), contractList...)
	reg.props = merged
	reg.key = rankingKeyOf(merged)

	plan, err := r.resolveOnRegister(reg, desc)
	if err != nil {
		return nil, err
	}
	plan.apply()

	r.mu.Lock()
	r.insertLocked(reg)
	r.mu.Unlock()

	r.notifyListeners(ServiceEvent{Type: ServiceRegistered, Reference: reg.reference})
	return reg, nil
}

// Unregister removes a registration. It fails with a
// *ReferenceViolationError when removal would leave a mandatory unary
// reference of another live component unbound; the registration then
// stays live and no unbinding is invoked. Unregistering an already
// removed registration is a no-op.
func (r *Registry) Unregister(reg *ServiceRegistration) error {
	if reg == nil {
		return nil
	}
	r.resolveMu.Lock()
	defer r.resolveMu.Unlock()

	if !r.contains(reg) {
		return nil
	}
	plan, err := r.resolveOnUnregister(reg)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.removeLocked(reg)
	r.mu.Unlock()

	plan.apply()
	r.notifyListeners(ServiceEvent{Type: ServiceUnregistering, Reference: reg.reference})
	return nil
}

// Lookup returns the references of every live registration published
// under the contract whose properties satisfy the filter, in ranking
// order. An empty filter matches everything.
func (r *Registry) Lookup(contract, filter string) ([]*ServiceReference, error) {
	var f *Filter
	if filter != "" {
		var err error
		f, err = ParseFilter(filter)
		if err != nil {
			return nil, err
		}
	}
	var out []*ServiceReference
	for _, reg := range r.snapshot() {
		if reg.matches(contract, f) {
			out = append(out, reg.reference)
		}
	}
	return out, nil
}

// LookupFirst returns the highest-ranked registration published under the
// contract, or ok=false when none exists.
func (r *Registry) LookupFirst(contract string) (*ServiceReference, bool) {
	for _, reg := range r.snapshot() {
		if reg.matches(contract, nil) {
			return reg.reference, true
		}
	}
	return nil, false
}

// Service returns the instance behind a reference, or nil when the
// registration is no longer live.
func (r *Registry) Service(ref *ServiceReference) any {
	if ref == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, reg := range r.services {
		if reg == ref.reg {
			return reg.instance
		}
	}
	return nil
}

// AddServiceListener subscribes a listener to registry mutation events,
// optionally narrowed by a filter over the subject's properties.
// Re-adding a listener replaces its filter.
func (r *Registry) AddServiceListener(l ServiceListener, filter string) error {
	var f *Filter
	if filter != "" {
		var err error
		f, err = ParseFilter(filter)
		if err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.listeners[l] = f
	r.mu.Unlock()
	return nil
}

// RemoveServiceListener unsubscribes a listener.
func (r *Registry) RemoveServiceListener(l ServiceListener) {
	r.mu.Lock()
	delete(r.listeners, l)
	r.mu.Unlock()
}

// Shutdown deactivates every remaining registration in reverse
// registration order and clears all registry state. Deactivation
// failures, including components without lifecycle metadata, are logged
// and never block the rest of the teardown. No unregistration events are
// broadcast.
func (r *Registry) Shutdown() {
	r.resolveMu.Lock()
	defer r.resolveMu.Unlock()

	remaining := r.snapshot()
	sort.Slice(remaining, func(i, j int) bool {
		return remaining[i].id > remaining[j].id
	})
	for _, reg := range remaining {
		if _, err := r.Deactivate(reg.instance, reg.Properties()); err != nil {
			r.log.Warn().Err(err).Int64("service", reg.id).Msg("deactivation failed during shutdown")
		}
	}

	r.mu.Lock()
	r.services = nil
	r.listeners = make(map[ServiceListener]*Filter)
	r.mu.Unlock()
}

func (r *Registry) snapshot() []*ServiceRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*ServiceRegistration, len(r.services))
	copy(out, r.services)
	return out
}

func (r *Registry) contains(reg *ServiceRegistration) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, existing := range r.services {
		if existing == reg {
			return true
		}
	}
	return false
}

func (r *Registry) insertLocked(reg *ServiceRegistration) {
	key := reg.rankingKeySnapshot()
	i := sort.Search(len(r.services), func(i int) bool {
		return key.less(r.services[i].rankingKeySnapshot())
	})
	r.services = append(r.services, nil)
	copy(r.services[i+1:], r.services[i:])
	r.services[i] = reg
}

func (r *Registry) removeLocked(reg *ServiceRegistration) {
	for i, existing := range r.services {
		if existing == reg {
			r.services = append(r.services[:i], r.services[i+1:]...)
			return
		}
	}
}

// resort restores ranking order after a property update.
func (r *Registry) resort() {
	r.mu.Lock()
	sort.SliceStable(r.services, func(i, j int) bool {
		return r.services[i].rankingKeySnapshot().less(r.services[j].rankingKeySnapshot())
	})
	r.mu.Unlock()
}

func (r *Registry) notifyListeners(event ServiceEvent) {
	r.mu.RLock()
	type target struct {
		listener ServiceListener
		filter   *Filter
	}
	targets := make([]target, 0, len(r.listeners))
	for l, f := range r.listeners {
		targets = append(targets, target{listener: l, filter: f})
	}
	r.mu.RUnlock()

	props := event.Reference.Properties()
	for _, t := range targets {
		if t.filter != nil && !t.filter.Match(props) {
			continue
		}
		r.safeNotify(t.listener, event)
	}
}

// safeNotify isolates listener panics from the mutation that triggered
// the event.
func (r *Registry) safeNotify(l ServiceListener, event ServiceEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().
				Interface("panic", rec).
				Int64("service", event.Reference.ID()).
				Msg("service listener panicked")
		}
	}()
	l.ServiceChanged(event)
}
