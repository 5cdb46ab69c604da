package svcmock

import (
	"fmt"
	"reflect"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// ReferenceDescriptor declares one dependency of a component on a
// contract.
type ReferenceDescriptor struct {
	// Name identifies the reference within its component; it defaults to
	// the contract name.
	Name string
	// Contract is the contract name the reference resolves against.
	Contract string
	// Cardinality defaults to CardinalityMandatoryUnary.
	Cardinality Cardinality
	// Policy defaults to PolicyStatic.
	Policy BindingPolicy
	// Target optionally narrows matching services with a filter string.
	Target string
	// Bind and Unbind name the accessors invoked when a service enters or
	// leaves the bound set. Both are required for dynamic references.
	Bind   string
	Unbind string

	targetFilter *Filter
}

// matchesTarget reports whether the reference's target filter admits the
// given service. A reference without a target filter admits everything.
func (d *ReferenceDescriptor) matchesTarget(ref *ServiceReference) bool {
	if d.targetFilter == nil {
		return true
	}
	return d.targetFilter.Match(ref.reg.Properties())
}

// ComponentDescriptor is the declarative metadata of a component
// implementation type.
type ComponentDescriptor struct {
	// Name is the component name.
	Name string
	// Identity keys configuration lookup; it defaults to Name.
	Identity string
	// Contracts lists the contract names the component publishes under.
	Contracts []string
	// Properties are the component's default properties.
	Properties Properties
	// References declares the component's dependencies.
	References []ReferenceDescriptor
	// Activate, Deactivate and Modified name the lifecycle accessors. When
	// Activate or Deactivate is empty the conventional accessor name
	// ("activate", "deactivate") is tried; a component without Modified
	// does not react to property updates.
	Activate   string
	Deactivate string
	Modified   string
}

// ComponentIdentity returns the identity used for configuration lookup.
func (d *ComponentDescriptor) ComponentIdentity() string {
	if d.Identity != "" {
		return d.Identity
	}
	return d.Name
}

// DescriptorRegistry resolves component descriptors by implementation
// type. Explicitly registered descriptors take precedence over implicit
// discovery through the Describable interface. Resolved descriptors are
// memoized per type; metadata is immutable for a process lifetime, so the
// cache never expires.
type DescriptorRegistry struct {
	mu    sync.Mutex
	cache *gocache.Cache
}

// descriptorMiss marks types known to carry no descriptor.
type descriptorMiss struct{}

func NewDescriptorRegistry() *DescriptorRegistry {
	return &DescriptorRegistry{
		cache: gocache.New(gocache.NoExpiration, 0),
	}
}

// Register validates and stores the descriptor for the prototype's
// implementation type, replacing any previous entry for that type.
func (p *DescriptorRegistry) Register(prototype any, desc *ComponentDescriptor) error {
	key := typeName(prototype)
	normalized, err := normalizeDescriptor(key, desc)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.cache.Set(key, normalized, gocache.NoExpiration)
	p.mu.Unlock()
	return nil
}

// DescriptorFor implements DescriptorProvider. Components implementing
// Describable are discovered and validated on first use; an invalid
// self-described descriptor panics with a *DescriptorInvalidError, as it
// is a defect in the component under test.
func (p *DescriptorRegistry) DescriptorFor(instance any) (*ComponentDescriptor, bool) {
	if instance == nil {
		return nil, false
	}
	key := typeName(instance)
	if cached, ok := p.cache.Get(key); ok {
		desc, isDesc := cached.(*ComponentDescriptor)
		return desc, isDesc
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if cached, ok := p.cache.Get(key); ok {
		desc, isDesc := cached.(*ComponentDescriptor)
		return desc, isDesc
	}
	described, ok := instance.(Describable)
	if !ok {
		p.cache.Set(key, descriptorMiss{}, gocache.NoExpiration)
		return nil, false
	}
	normalized, err := normalizeDescriptor(key, described.ComponentDescriptor())
	if err != nil {
		panic(err)
	}
	p.cache.Set(key, normalized, gocache.NoExpiration)
	return normalized, true
}

// normalizeDescriptor deep-copies the descriptor, applies defaults and
// validates it: every reference needs a contract, dynamic references need
// bind and unbind accessors and reference names must be unique within the
// component. Target filters are parsed here so malformed metadata fails
// up front instead of during resolution.
func normalizeDescriptor(component string, desc *ComponentDescriptor) (*ComponentDescriptor, error) {
	if desc == nil {
		return nil, &DescriptorInvalidError{Component: component, Err: fmt.Errorf("descriptor is nil")}
	}
	out := &ComponentDescriptor{
		Name:       desc.Name,
		Identity:   desc.Identity,
		Contracts:  append([]string(nil), desc.Contracts...),
		Properties: desc.Properties.Copy(),
		Activate:   desc.Activate,
		Deactivate: desc.Deactivate,
		Modified:   desc.Modified,
	}
	seen := make(map[string]struct{}, len(desc.References))
	for _, ref := range desc.References {
		if ref.Contract == "" {
			return nil, &DescriptorInvalidError{Component: component, Err: fmt.Errorf("reference %q has no contract", ref.Name)}
		}
		if ref.Name == "" {
			ref.Name = ref.Contract
		}
		if ref.Cardinality == "" {
			ref.Cardinality = CardinalityMandatoryUnary
		}
		switch ref.Cardinality {
		case CardinalityMandatoryUnary, CardinalityMandatoryMultiple, CardinalityOptionalUnary, CardinalityOptionalMultiple:
		default:
			return nil, &DescriptorInvalidError{Component: component, Err: fmt.Errorf("reference %q has unknown cardinality %q", ref.Name, ref.Cardinality)}
		}
		if ref.Policy == "" {
			ref.Policy = PolicyStatic
		}
		switch ref.Policy {
		case PolicyStatic, PolicyDynamic:
		default:
			return nil, &DescriptorInvalidError{Component: component, Err: fmt.Errorf("reference %q has unknown policy %q", ref.Name, ref.Policy)}
		}
		if ref.Policy == PolicyDynamic && (ref.Bind == "" || ref.Unbind == "") {
			return nil, &DescriptorInvalidError{Component: component, Err: fmt.Errorf("dynamic reference %q needs bind and unbind accessors", ref.Name)}
		}
		if _, dup := seen[ref.Name]; dup {
			return nil, &DescriptorInvalidError{Component: component, Err: fmt.Errorf("duplicate reference name %q", ref.Name)}
		}
		seen[ref.Name] = struct{}{}
		if ref.Target != "" {
			f, err := ParseFilter(ref.Target)
			if err != nil {
				return nil, &DescriptorInvalidError{Component: component, Err: err}
			}
			ref.targetFilter = f
		}
		out.References = append(out.References, ref)
	}
	return out, nil
}

var typeNameCache sync.Map // reflect.Type -> string

// typeName returns the qualified implementation type name of a value,
// memoized per type.
func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	if cached, ok := typeNameCache.Load(t); ok {
		return cached.(string)
	}
	name := t.String()
	typeNameCache.Store(t, name)
	return name
}
