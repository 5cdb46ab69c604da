package svcmock

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ServiceRegistration represents one published service. Registrations are
// created and exclusively owned by a Registry and stay live until
// explicitly unregistered.
type ServiceRegistration struct {
	id           int64
	contracts    map[string]struct{}
	contractList []string
	instance     any
	registry     *Registry
	reference    *ServiceReference

	mu    sync.RWMutex
	props Properties
	key   rankingKey

	// bound tracks the current bound set of every dynamic reference the
	// owning component declares, keyed by reference name. It is read and
	// mutated only while the registry's resolve lock is held.
	bound map[string]map[int64]*ServiceRegistration
}

// ID returns the registry-assigned identity.
func (s *ServiceRegistration) ID() int64 {
	return s.id
}

// Contracts returns the sorted contract set the service is published
// under.
func (s *ServiceRegistration) Contracts() []string {
	return append([]string(nil), s.contractList...)
}

// Instance returns the registered service instance.
func (s *ServiceRegistration) Instance() any {
	return s.instance
}

// Reference returns the read-only handle to this registration.
func (s *ServiceRegistration) Reference() *ServiceReference {
	return s.reference
}

// Properties returns a snapshot copy of the current service properties.
func (s *ServiceRegistration) Properties() Properties {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.props.Copy()
}

func (s *ServiceRegistration) property(key string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.props[key]
}

func (s *ServiceRegistration) propertyKeys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.props))
	for k := range s.props {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func (s *ServiceRegistration) rankingKeySnapshot() rankingKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// SetProperties replaces the service properties. The reserved identity
// and contract keys are reinstated, the ranking key is recomputed and the
// registry re-sorted.
func (s *ServiceRegistration) SetProperties(props Properties) {
	next := props.Copy()
	s.mu.Lock()
	next[PropServiceID] = s.id
	next[PropServiceContracts] = append([]string(nil), s.contractList...)
	s.props = next
	s.key = rankingKeyOf(next)
	s.mu.Unlock()
	s.registry.resort()
}

// SetProperty updates a single property, recomputing the ranking key and
// re-sorting the registry.
func (s *ServiceRegistration) SetProperty(key string, value any) {
	s.mu.Lock()
	s.props[key] = value
	s.key = rankingKeyOf(s.props)
	s.mu.Unlock()
	s.registry.resort()
}

// Unregister removes the registration from its registry. It fails with a
// *ReferenceViolationError when removal would leave a mandatory unary
// reference of another live component unbound; the registration then
// stays live.
func (s *ServiceRegistration) Unregister() error {
	return s.registry.Unregister(s)
}

// matches reports whether the registration is published under the
// contract and satisfies the filter, if any.
func (s *ServiceRegistration) matches(contract string, f *Filter) bool {
	if _, ok := s.contracts[contract]; !ok {
		return false
	}
	if f == nil {
		return true
	}
	return f.Match(s.Properties())
}

// boundSet returns the bound set of the named reference. Callers must
// hold the registry's resolve lock.
func (s *ServiceRegistration) boundSet(refName string) map[int64]*ServiceRegistration {
	return s.bound[refName]
}

func (s *ServiceRegistration) addBound(refName string, target *ServiceRegistration) {
	set := s.bound[refName]
	if set == nil {
		set = make(map[int64]*ServiceRegistration)
		s.bound[refName] = set
	}
	set[target.id] = target
}

func (s *ServiceRegistration) removeBound(refName string, targetID int64) {
	delete(s.bound[refName], targetID)
}

func (s *ServiceRegistration) String() string {
	return fmt.Sprintf("#%d [%s]: %s", s.id, strings.Join(s.contractList, ","), typeName(s.instance))
}

// ServiceReference is a read-only handle to a registration. References
// received through lookups, events or bind accessors stay valid for the
// registration's lifetime.
type ServiceReference struct {
	reg *ServiceRegistration
}

// ID returns the identity of the underlying registration.
func (r *ServiceReference) ID() int64 {
	return r.reg.id
}

// Contracts returns the sorted contract set of the registration.
func (r *ServiceReference) Contracts() []string {
	return r.reg.Contracts()
}

// Property returns the current value of a single property.
func (r *ServiceReference) Property(key string) any {
	return r.reg.property(key)
}

// PropertyKeys returns the sorted keys of the current properties.
func (r *ServiceReference) PropertyKeys() []string {
	return r.reg.propertyKeys()
}

// Properties returns a snapshot copy of the current properties.
func (r *ServiceReference) Properties() Properties {
	return r.reg.Properties()
}

// Ranking returns the registration's current service ranking.
func (r *ServiceReference) Ranking() int {
	return intProperty(r.reg.Properties(), PropServiceRanking, 0)
}

// Compare orders references by ranking: the result is negative when r
// sorts before other, positive when after and zero for the same
// registration.
func (r *ServiceReference) Compare(other *ServiceReference) int {
	a := r.reg.rankingKeySnapshot()
	b := other.reg.rankingKeySnapshot()
	if a == b {
		return 0
	}
	if a.less(b) {
		return -1
	}
	return 1
}

func (r *ServiceReference) String() string {
	return r.reg.String()
}
