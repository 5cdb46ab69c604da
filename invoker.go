package svcmock

// bindArgs carries the candidate arguments offered to a bind or unbind
// accessor.
type bindArgs struct {
	reference *ServiceReference
	instance  any
	props     Properties
}

// lifecycleArgs carries the candidate arguments offered to a lifecycle
// accessor.
type lifecycleArgs struct {
	ctx   *ComponentContext
	props Properties
}

type bindShape struct {
	// Name describes the accepted signature, for diagnostics.
	Name  string
	adapt func(fn any) (func(bindArgs), bool)
}

type lifecycleShape struct {
	Name  string
	adapt func(fn any) (func(lifecycleArgs), bool)
}

// bindShapes lists the call shapes accepted for bind and unbind
// accessors, tried in priority order.
var bindShapes = []bindShape{
	{
		Name: "func(*ServiceReference)",
		adapt: func(fn any) (func(bindArgs), bool) {
			f, ok := fn.(func(*ServiceReference))
			if !ok {
				return nil, false
			}
			return func(a bindArgs) { f(a.reference) }, true
		},
	},
	{
		Name: "func(any)",
		adapt: func(fn any) (func(bindArgs), bool) {
			f, ok := fn.(func(any))
			if !ok {
				return nil, false
			}
			return func(a bindArgs) { f(a.instance) }, true
		},
	},
	{
		Name: "func(any, Properties)",
		adapt: func(fn any) (func(bindArgs), bool) {
			f, ok := fn.(func(any, Properties))
			if !ok {
				return nil, false
			}
			return func(a bindArgs) { f(a.instance, a.props) }, true
		},
	},
}

// lifecycleShapes lists the call shapes accepted for activate, deactivate
// and modified accessors, tried in priority order.
var lifecycleShapes = []lifecycleShape{
	{
		Name: "func(*ComponentContext)",
		adapt: func(fn any) (func(lifecycleArgs), bool) {
			f, ok := fn.(func(*ComponentContext))
			if !ok {
				return nil, false
			}
			return func(a lifecycleArgs) { f(a.ctx) }, true
		},
	},
	{
		Name: "func(Properties)",
		adapt: func(fn any) (func(lifecycleArgs), bool) {
			f, ok := fn.(func(Properties))
			if !ok {
				return nil, false
			}
			return func(a lifecycleArgs) { f(a.props) }, true
		},
	},
	{
		Name: "func(*ComponentContext, Properties)",
		adapt: func(fn any) (func(lifecycleArgs), bool) {
			f, ok := fn.(func(*ComponentContext, Properties))
			if !ok {
				return nil, false
			}
			return func(a lifecycleArgs) { f(a.ctx, a.props) }, true
		},
	},
	{
		Name: "func()",
		adapt: func(fn any) (func(lifecycleArgs), bool) {
			f, ok := fn.(func())
			if !ok {
				return nil, false
			}
			return func(lifecycleArgs) { f() }, true
		},
	},
}

// BindAccessorShapes returns the signatures accepted for bind and unbind
// accessors, in the order they are tried.
func BindAccessorShapes() []string {
	names := make([]string, len(bindShapes))
	for i, shape := range bindShapes {
		names[i] = shape.Name
	}
	return names
}

// LifecycleAccessorShapes returns the signatures accepted for lifecycle
// accessors, in the order they are tried.
func LifecycleAccessorShapes() []string {
	names := make([]string, len(lifecycleShapes))
	for i, shape := range lifecycleShapes {
		names[i] = shape.Name
	}
	return names
}

// resolveBindAccessor resolves the named accessor on the target to an
// invocable closure without calling it, so resolution failures can abort
// a registration before any side effect.
func resolveBindAccessor(target any, name string) (func(bindArgs), error) {
	fn, err := lookupAccessor(target, name)
	if err != nil {
		return nil, err
	}
	for _, shape := range bindShapes {
		if call, ok := shape.adapt(fn); ok {
			return call, nil
		}
	}
	return nil, &AccessorNotFoundError{Accessor: name, Component: typeName(target)}
}

func resolveLifecycleAccessor(target any, name string) (func(lifecycleArgs), error) {
	fn, err := lookupAccessor(target, name)
	if err != nil {
		return nil, err
	}
	for _, shape := range lifecycleShapes {
		if call, ok := shape.adapt(fn); ok {
			return call, nil
		}
	}
	return nil, &AccessorNotFoundError{Accessor: name, Component: typeName(target)}
}

func lookupAccessor(target any, name string) (any, error) {
	provider, ok := target.(AccessorProvider)
	if !ok {
		return nil, &AccessorNotFoundError{Accessor: name, Component: typeName(target)}
	}
	fn := provider.Accessor(name)
	if fn == nil {
		return nil, &AccessorNotFoundError{Accessor: name, Component: typeName(target)}
	}
	return fn, nil
}
