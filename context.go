package svcmock

// ComponentContext carries the owning registry and the component's merged
// properties into lifecycle accessors.
type ComponentContext struct {
	registry *Registry
	props    Properties
}

func newComponentContext(registry *Registry, props Properties) *ComponentContext {
	return &ComponentContext{registry: registry, props: props}
}

// Registry returns the registry the component lives in, so lifecycle code
// can look up collaborating services.
func (c *ComponentContext) Registry() *Registry {
	return c.registry
}

// Properties returns a copy of the component properties the context was
// built with.
func (c *ComponentContext) Properties() Properties {
	return c.props.Copy()
}
