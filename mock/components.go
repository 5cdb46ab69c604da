package mock

import (
	"strconv"
	"strings"
	"sync"

	"github.com/platkit/svcmock"
)

// Contract names used by the fixture components.
const (
	MailerContract  = "mock.Mailer"
	StorageContract = "mock.Storage"
	RelayContract   = "mock.Relay"
)

// Mailer is a plain provider without metadata of its own; tests register
// it with explicit contracts and properties.
type Mailer struct {
	Name string
}

// BindRecorder captures bind and unbind invocations for assertions. The
// relay fixtures embed it.
type BindRecorder struct {
	mu      sync.Mutex
	bound   []*svcmock.ServiceReference
	unbound []*svcmock.ServiceReference
}

func (r *BindRecorder) bind(ref *svcmock.ServiceReference) {
	r.mu.Lock()
	r.bound = append(r.bound, ref)
	r.mu.Unlock()
}

func (r *BindRecorder) unbind(ref *svcmock.ServiceReference) {
	r.mu.Lock()
	r.unbound = append(r.unbound, ref)
	r.mu.Unlock()
}

// BoundIDs returns the identities passed to the bind accessor, in call
// order.
func (r *BindRecorder) BoundIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, len(r.bound))
	for i, ref := range r.bound {
		ids[i] = ref.ID()
	}
	return ids
}

// UnboundIDs returns the identities passed to the unbind accessor, in
// call order.
func (r *BindRecorder) UnboundIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, len(r.unbound))
	for i, ref := range r.unbound {
		ids[i] = ref.ID()
	}
	return ids
}

func (r *BindRecorder) BoundCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bound)
}

func (r *BindRecorder) UnboundCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.unbound)
}

// RelayDescriptor builds the metadata of a relay component with a single
// reference on the Mailer contract.
func RelayDescriptor(name string, cardinality svcmock.Cardinality, policy svcmock.BindingPolicy, target string) *svcmock.ComponentDescriptor {
	return &svcmock.ComponentDescriptor{
		Name:      name,
		Contracts: []string{RelayContract},
		References: []svcmock.ReferenceDescriptor{{
			Name:        "mailer",
			Contract:    MailerContract,
			Cardinality: cardinality,
			Policy:      policy,
			Target:      target,
			Bind:        "bindMailer",
			Unbind:      "unbindMailer",
		}},
	}
}

func (r *BindRecorder) mailerAccessor(name string) any {
	switch name {
	case "bindMailer":
		return r.bind
	case "unbindMailer":
		return r.unbind
	}
	return nil
}

// UnaryRelay consumes exactly one Mailer through a dynamic mandatory
// unary reference.
type UnaryRelay struct {
	BindRecorder
}

func (c *UnaryRelay) ComponentDescriptor() *svcmock.ComponentDescriptor {
	return RelayDescriptor("mock.relay.unary", svcmock.CardinalityMandatoryUnary, svcmock.PolicyDynamic, "")
}

func (c *UnaryRelay) Accessor(name string) any {
	return c.mailerAccessor(name)
}

// MultiRelay consumes every Mailer through a dynamic mandatory multiple
// reference.
type MultiRelay struct {
	BindRecorder
}

func (c *MultiRelay) ComponentDescriptor() *svcmock.ComponentDescriptor {
	return RelayDescriptor("mock.relay.multi", svcmock.CardinalityMandatoryMultiple, svcmock.PolicyDynamic, "")
}

func (c *MultiRelay) Accessor(name string) any {
	return c.mailerAccessor(name)
}

// OptionalRelay tolerates a missing Mailer through a dynamic optional
// unary reference.
type OptionalRelay struct {
	BindRecorder
}

func (c *OptionalRelay) ComponentDescriptor() *svcmock.ComponentDescriptor {
	return RelayDescriptor("mock.relay.optional", svcmock.CardinalityOptionalUnary, svcmock.PolicyDynamic, "")
}

func (c *OptionalRelay) Accessor(name string) any {
	return c.mailerAccessor(name)
}

// OptionalMultiRelay consumes any number of Mailers through a dynamic
// optional multiple reference.
type OptionalMultiRelay struct {
	BindRecorder
}

func (c *OptionalMultiRelay) ComponentDescriptor() *svcmock.ComponentDescriptor {
	return RelayDescriptor("mock.relay.optmulti", svcmock.CardinalityOptionalMultiple, svcmock.PolicyDynamic, "")
}

func (c *OptionalMultiRelay) Accessor(name string) any {
	return c.mailerAccessor(name)
}

// StaticRelay declares a static mandatory unary reference; it is wired
// only through explicit injection and never re-wired by the registry.
type StaticRelay struct {
	BindRecorder
}

func (c *StaticRelay) ComponentDescriptor() *svcmock.ComponentDescriptor {
	return RelayDescriptor("mock.relay.static", svcmock.CardinalityMandatoryUnary, svcmock.PolicyStatic, "")
}

func (c *StaticRelay) Accessor(name string) any {
	return c.mailerAccessor(name)
}

// TargetedRelay narrows its dynamic reference with a target filter on the
// provider's properties.
type TargetedRelay struct {
	BindRecorder
}

func (c *TargetedRelay) ComponentDescriptor() *svcmock.ComponentDescriptor {
	return RelayDescriptor("mock.relay.targeted", svcmock.CardinalityOptionalMultiple, svcmock.PolicyDynamic, "(region=eu)")
}

func (c *TargetedRelay) Accessor(name string) any {
	return c.mailerAccessor(name)
}

// InstanceRelay uses the instance call shape for its accessors.
type InstanceRelay struct {
	mu        sync.Mutex
	instances []any
}

func (c *InstanceRelay) ComponentDescriptor() *svcmock.ComponentDescriptor {
	return &svcmock.ComponentDescriptor{
		Name:      "mock.relay.instance",
		Contracts: []string{RelayContract},
		References: []svcmock.ReferenceDescriptor{{
			Name:        "mailer",
			Contract:    MailerContract,
			Cardinality: svcmock.CardinalityOptionalMultiple,
			Policy:      svcmock.PolicyDynamic,
			Bind:        "attach",
			Unbind:      "detach",
		}},
	}
}

func (c *InstanceRelay) Accessor(name string) any {
	switch name {
	case "attach":
		return func(instance any) {
			c.mu.Lock()
			c.instances = append(c.instances, instance)
			c.mu.Unlock()
		}
	case "detach":
		return func(instance any) {
			c.mu.Lock()
			for i, existing := range c.instances {
				if existing == instance {
					c.instances = append(c.instances[:i], c.instances[i+1:]...)
					break
				}
			}
			c.mu.Unlock()
		}
	}
	return nil
}

// Instances returns the currently attached provider instances.
func (c *InstanceRelay) Instances() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.instances...)
}

// PropsRelay uses the instance-and-properties call shape and records the
// properties of the last bound provider.
type PropsRelay struct {
	mu        sync.Mutex
	LastProps svcmock.Properties
}

func (c *PropsRelay) ComponentDescriptor() *svcmock.ComponentDescriptor {
	return &svcmock.ComponentDescriptor{
		Name:      "mock.relay.props",
		Contracts: []string{RelayContract},
		References: []svcmock.ReferenceDescriptor{{
			Name:        "mailer",
			Contract:    MailerContract,
			Cardinality: svcmock.CardinalityOptionalMultiple,
			Policy:      svcmock.PolicyDynamic,
			Bind:        "attach",
			Unbind:      "detach",
		}},
	}
}

func (c *PropsRelay) Accessor(name string) any {
	switch name {
	case "attach":
		return func(_ any, props svcmock.Properties) {
			c.mu.Lock()
			c.LastProps = props
			c.mu.Unlock()
		}
	case "detach":
		return func(_ any, _ svcmock.Properties) {}
	}
	return nil
}

func (c *PropsRelay) Props() svcmock.Properties {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.LastProps
}

// BrokenRelay declares a dynamic reference but exposes no accessors, so
// any attempt to wire it must fail.
type BrokenRelay struct{}

func (c *BrokenRelay) ComponentDescriptor() *svcmock.ComponentDescriptor {
	return RelayDescriptor("mock.relay.broken", svcmock.CardinalityOptionalMultiple, svcmock.PolicyDynamic, "")
}

func (c *BrokenRelay) Accessor(string) any {
	return nil
}

// ConfiguredProvider carries descriptor defaults that take part in the
// property merge on registration.
type ConfiguredProvider struct{}

func (p *ConfiguredProvider) ComponentDescriptor() *svcmock.ComponentDescriptor {
	return &svcmock.ComponentDescriptor{
		Name:     "mock.provider.configured",
		Identity: "mock.provider",
		Contracts: []string{
			StorageContract,
		},
		Properties: svcmock.Properties{
			"storage.kind":    "memory",
			"storage.timeout": 30,
			"service.ranking": 5,
		},
	}
}

// LifecycleService records lifecycle accessor invocations.
type LifecycleService struct {
	mu            sync.Mutex
	activations   int
	deactivations int
	modifications int
	lastProps     svcmock.Properties
	lastRegistry  *svcmock.Registry
}

func (s *LifecycleService) ComponentDescriptor() *svcmock.ComponentDescriptor {
	return &svcmock.ComponentDescriptor{
		Name:       "mock.lifecycle",
		Identity:   "mock.lifecycle",
		Contracts:  []string{StorageContract},
		Properties: svcmock.Properties{"storage.kind": "memory"},
		Activate:   "start",
		Deactivate: "stop",
		Modified:   "reconfigure",
	}
}

func (s *LifecycleService) Accessor(name string) any {
	switch name {
	case "start":
		return func(ctx *svcmock.ComponentContext) {
			s.mu.Lock()
			s.activations++
			s.lastProps = ctx.Properties()
			s.lastRegistry = ctx.Registry()
			s.mu.Unlock()
		}
	case "stop":
		return func() {
			s.mu.Lock()
			s.deactivations++
			s.mu.Unlock()
		}
	case "reconfigure":
		return func(props svcmock.Properties) {
			s.mu.Lock()
			s.modifications++
			s.lastProps = props
			s.mu.Unlock()
		}
	}
	return nil
}

func (s *LifecycleService) Activations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activations
}

func (s *LifecycleService) Deactivations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deactivations
}

func (s *LifecycleService) Modifications() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modifications
}

func (s *LifecycleService) LastProps() svcmock.Properties {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastProps
}

func (s *LifecycleService) LastRegistry() *svcmock.Registry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRegistry
}

// ConventionalService has no lifecycle names in its descriptor and relies
// on the conventional accessor names.
type ConventionalService struct {
	mu      sync.Mutex
	started int
	stopped int
}

func (s *ConventionalService) ComponentDescriptor() *svcmock.ComponentDescriptor {
	return &svcmock.ComponentDescriptor{
		Name:      "mock.conventional",
		Contracts: []string{StorageContract},
	}
}

func (s *ConventionalService) Accessor(name string) any {
	switch name {
	case "activate":
		return func() {
			s.mu.Lock()
			s.started++
			s.mu.Unlock()
		}
	case "deactivate":
		return func() {
			s.mu.Lock()
			s.stopped++
			s.mu.Unlock()
		}
	}
	return nil
}

func (s *ConventionalService) Started() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *ConventionalService) Stopped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// SilentService carries a descriptor but no accessors at all.
type SilentService struct{}

func (s *SilentService) ComponentDescriptor() *svcmock.ComponentDescriptor {
	return &svcmock.ComponentDescriptor{
		Name:      "mock.silent",
		Contracts: []string{StorageContract},
	}
}

// BrokenService names an activation accessor it does not provide.
type BrokenService struct{}

func (s *BrokenService) ComponentDescriptor() *svcmock.ComponentDescriptor {
	return &svcmock.ComponentDescriptor{
		Name:      "mock.broken",
		Contracts: []string{StorageContract},
		Activate:  "start",
	}
}

func (s *BrokenService) Accessor(string) any {
	return nil
}

// RecordingListener collects the registry events it receives.
type RecordingListener struct {
	mu     sync.Mutex
	events []svcmock.ServiceEvent
}

func (l *RecordingListener) ServiceChanged(event svcmock.ServiceEvent) {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
}

func (l *RecordingListener) Events() []svcmock.ServiceEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]svcmock.ServiceEvent(nil), l.events...)
}

// PanickyListener panics on every event and counts how often it was
// called.
type PanickyListener struct {
	mu    sync.Mutex
	calls int
}

func (l *PanickyListener) ServiceChanged(svcmock.ServiceEvent) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	panic("listener failure")
}

func (l *PanickyListener) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

// FakeIdentity hands out consecutive identities above a fixed base so
// tests can pin identity-derived ordering. It is not safe for concurrent
// use.
type FakeIdentity struct {
	Base int64
	next int64
}

func (g *FakeIdentity) Next() int64 {
	g.next++
	return g.Base + g.next
}

// Courier implements AccessorProvider but carries no descriptor of its
// own; tests register its metadata explicitly.
type Courier struct {
	BindRecorder
}

func (c *Courier) Accessor(name string) any {
	return c.mailerAccessor(name)
}

// Journal is a shared, ordered log of fixture events.
type Journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *Journal) Append(entry string) {
	j.mu.Lock()
	j.entries = append(j.entries, entry)
	j.mu.Unlock()
}

func (j *Journal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// ShutdownProbe writes its name to a shared journal when deactivated, so
// tests can observe teardown order.
type ShutdownProbe struct {
	Name    string
	Journal *Journal
}

func (p *ShutdownProbe) ComponentDescriptor() *svcmock.ComponentDescriptor {
	return &svcmock.ComponentDescriptor{
		Name:       "mock.probe",
		Contracts:  []string{StorageContract},
		Deactivate: "stop",
	}
}

func (p *ShutdownProbe) Accessor(name string) any {
	if name == "stop" {
		return func() {
			p.Journal.Append(p.Name)
		}
	}
	return nil
}

// Version is a property value with its own ordering, parsed from
// "major.minor.patch" operands.
type Version struct {
	Major, Minor, Patch int
}

func (v Version) CompareTo(operand string) (int, bool) {
	parts := strings.Split(operand, ".")
	if len(parts) != 3 {
		return 0, false
	}
	nums := make([]int, 3)
	for i, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0, false
		}
		nums[i] = n
	}
	for i, own := range []int{v.Major, v.Minor, v.Patch} {
		if own != nums[i] {
			if own < nums[i] {
				return -1, true
			}
			return 1, true
		}
	}
	return 0, true
}
