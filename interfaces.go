// Package svcmock emulates the runtime behavior of a component-oriented
// service platform for unit testing. Components publish services under one
// or more contract names with a property map, declare references on other
// contracts with cardinality and binding-policy constraints, and the
// registry keeps bindings consistent as services come and go. All state is
// process-local and memory-resident.
package svcmock

// Cardinality defines how many bound services a reference requires and
// admits.
type Cardinality string

// Available reference cardinalities
const (
	// CardinalityMandatoryUnary requires exactly one bound service.
	CardinalityMandatoryUnary Cardinality = "1..1"
	// CardinalityMandatoryMultiple requires at least one bound service and
	// admits all matching services.
	CardinalityMandatoryMultiple Cardinality = "1..n"
	// CardinalityOptionalUnary admits at most one bound service.
	CardinalityOptionalUnary Cardinality = "0..1"
	// CardinalityOptionalMultiple admits any number of bound services.
	CardinalityOptionalMultiple Cardinality = "0..n"
)

// IsOptional reports whether the reference is satisfied with zero bound
// services.
func (c Cardinality) IsOptional() bool {
	return c == CardinalityOptionalUnary || c == CardinalityOptionalMultiple
}

// IsMultiple reports whether the reference admits more than one bound
// service.
func (c Cardinality) IsMultiple() bool {
	return c == CardinalityMandatoryMultiple || c == CardinalityOptionalMultiple
}

// BindingPolicy defines whether a reference is re-wired at runtime.
type BindingPolicy string

// Available binding policies
const (
	// PolicyStatic fixes the bound set at construction time. Static
	// references are never notified of registry mutations.
	PolicyStatic BindingPolicy = "static"
	// PolicyDynamic re-wires the bound set as matching services register
	// and unregister.
	PolicyDynamic BindingPolicy = "dynamic"
)

// IdentityGenerator produces service identities. Identities must be
// strictly increasing and are never reused.
type IdentityGenerator interface {
	// Next returns the next identity.
	Next() int64
}

// ConfigSource supplies externally overridden properties for a component
// identity. It is consulted only during the property merge step of
// Register.
type ConfigSource interface {
	// ConfigFor returns the override properties for the given component
	// identity, or ok=false when none exist.
	ConfigFor(identity string) (Properties, bool)
}

// DescriptorProvider resolves the declarative metadata of a component
// instance by its implementation type. Implementations must be idempotent
// and may cache by type.
type DescriptorProvider interface {
	// DescriptorFor returns the descriptor for the instance's
	// implementation type, or ok=false when the type has none.
	DescriptorFor(instance any) (*ComponentDescriptor, bool)
}

// Describable is implemented by components that carry their own
// descriptor. A DescriptorRegistry discovers such components lazily.
type Describable interface {
	// ComponentDescriptor returns the component's declarative metadata.
	ComponentDescriptor() *ComponentDescriptor
}

// AccessorProvider exposes named accessors (bind/unbind and lifecycle
// entry points) of a component. Accessor returns nil for unknown names;
// the returned value must be a func of one of the supported call shapes.
type AccessorProvider interface {
	Accessor(name string) any
}

// Comparable is implemented by property values that define their own
// ordering against a filter operand. CompareTo parses the operand and
// compares the receiver against it; ok is false when the operand cannot
// be parsed, which makes the comparison fail gracefully.
type Comparable interface {
	CompareTo(operand string) (cmp int, ok bool)
}

// Char is a single character property value. It exists as a distinct type
// because Go's rune is an alias of int32 and would otherwise compare
// numerically.
type Char rune

// ServiceEventType identifies the kind of a registry mutation event.
type ServiceEventType int

// Available service event types
const (
	// ServiceRegistered is broadcast after a registration became visible.
	ServiceRegistered ServiceEventType = iota + 1
	// ServiceUnregistering is broadcast after a registration was removed.
	ServiceUnregistering
)

// ServiceEvent describes a single registry mutation.
type ServiceEvent struct {
	Type      ServiceEventType
	Reference *ServiceReference
}

// ServiceListener receives registry mutation events, optionally narrowed
// by a filter over the subject registration's properties. A panic raised
// by a listener is isolated and logged, never propagated to the caller
// that triggered the event.
type ServiceListener interface {
	ServiceChanged(event ServiceEvent)
}
