package svcmock

// conventional lifecycle accessor names, tried when the descriptor does
// not name one explicitly
const (
	defaultActivateAccessor   = "activate"
	defaultDeactivateAccessor = "deactivate"
)

// Activate invokes the component's activation accessor with the given
// properties. The accessor name comes from the descriptor, falling back
// to "activate"; with the fallback name a missing accessor is tolerated
// and invoked=false is returned, while an explicitly named accessor that
// cannot be resolved is an error.
func (r *Registry) Activate(instance any, props Properties) (invoked bool, err error) {
	return r.lifecycle(instance, props, func(d *ComponentDescriptor) (string, string) {
		return d.Activate, defaultActivateAccessor
	})
}

// Deactivate invokes the component's deactivation accessor. It mirrors
// Activate with the "deactivate" fallback.
func (r *Registry) Deactivate(instance any, props Properties) (invoked bool, err error) {
	return r.lifecycle(instance, props, func(d *ComponentDescriptor) (string, string) {
		return d.Deactivate, defaultDeactivateAccessor
	})
}

// Modified invokes the component's modification accessor with updated
// properties. A descriptor that declares no modification accessor yields
// invoked=false; components opt into property updates explicitly.
func (r *Registry) Modified(instance any, props Properties) (invoked bool, err error) {
	desc, ok := r.descriptors.DescriptorFor(instance)
	if !ok {
		return false, &DescriptorMissingError{Component: typeName(instance)}
	}
	if desc.Modified == "" {
		return false, nil
	}
	call, err := resolveLifecycleAccessor(instance, desc.Modified)
	if err != nil {
		return false, err
	}
	call(lifecycleArgs{ctx: newComponentContext(r, props), props: props})
	return true, nil
}

func (r *Registry) lifecycle(instance any, props Properties, pick func(*ComponentDescriptor) (declared, fallback string)) (bool, error) {
	desc, ok := r.descriptors.DescriptorFor(instance)
	if !ok {
		return false, &DescriptorMissingError{Component: typeName(instance)}
	}
	name, fallback := pick(desc)
	usedFallback := false
	if name == "" {
		name = fallback
		usedFallback = true
	}
	call, err := resolveLifecycleAccessor(instance, name)
	if err != nil {
		if usedFallback {
			return false, nil
		}
		return false, err
	}
	call(lifecycleArgs{ctx: newComponentContext(r, props), props: props})
	return true, nil
}
