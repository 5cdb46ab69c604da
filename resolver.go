package svcmock

// refInfo pairs a live registration with one of its declared references.
type refInfo struct {
	dependent *ServiceRegistration
	ref       *ReferenceDescriptor
}

// bindAction is one deferred bind or unbind invocation. Actions are
// resolved up front so a whole mutation can be abandoned before any side
// effect.
type bindAction struct {
	dependent *ServiceRegistration
	ref       *ReferenceDescriptor
	target    *ServiceRegistration
	call      func(bindArgs)
	unbind    bool
}

type bindPlan struct {
	actions []bindAction
}

func (p *bindPlan) add(a bindAction) {
	p.actions = append(p.actions, a)
}

// apply updates the bound sets and invokes the accessors, in resolution
// order. Callers hold the registry's resolve lock.
func (p *bindPlan) apply() {
	for _, a := range p.actions {
		if a.unbind {
			a.dependent.removeBound(a.ref.Name, a.target.id)
		} else {
			a.dependent.addBound(a.ref.Name, a.target)
		}
		a.call(bindArgs{
			reference: a.target.reference,
			instance:  a.target.instance,
			props:     a.target.Properties(),
		})
	}
}

// matchingDynamicReferences collects every dynamic reference of any live
// registration whose contract is one of the subject's contracts.
func (r *Registry) matchingDynamicReferences(subject *ServiceRegistration) []refInfo {
	var out []refInfo
	for _, existing := range r.snapshot() {
		if existing == subject {
			continue
		}
		desc, ok := r.descriptors.DescriptorFor(existing.instance)
		if !ok {
			continue
		}
		for i := range desc.References {
			ref := &desc.References[i]
			if ref.Policy != PolicyDynamic {
				continue
			}
			if _, matches := subject.contracts[ref.Contract]; matches {
				out = append(out, refInfo{dependent: existing, ref: ref})
			}
		}
	}
	return out
}

// matchingRegistrations returns the live registrations a reference
// resolves against, in ranking order.
func (r *Registry) matchingRegistrations(ref *ReferenceDescriptor) []*ServiceRegistration {
	var out []*ServiceRegistration
	for _, reg := range r.snapshot() {
		if reg.matches(ref.Contract, ref.targetFilter) {
			out = append(out, reg)
		}
	}
	return out
}

// resolveOnRegister builds the bind plan for a new registration: binds
// into the dynamic references of live dependents the new service matches,
// plus the initial bound set of the new component's own dynamic
// references. Phase one only validates and resolves; nothing is invoked,
// so a violation or an unresolvable accessor leaves the registry
// untouched.
func (r *Registry) resolveOnRegister(reg *ServiceRegistration, desc *ComponentDescriptor) (*bindPlan, error) {
	plan := &bindPlan{}
	for _, info := range r.matchingDynamicReferences(reg) {
		if !info.ref.matchesTarget(reg.reference) {
			continue
		}
		if info.ref.Cardinality == CardinalityMandatoryUnary && len(info.dependent.boundSet(info.ref.Name)) > 0 {
			return nil, &ReferenceViolationError{
				Contract:  info.ref.Contract,
				Component: typeName(info.dependent.instance),
				Msg:       "mandatory unary reference already fulfilled, registration of new service failed",
			}
		}
		call, err := resolveBindAccessor(info.dependent.instance, info.ref.Bind)
		if err != nil {
			return nil, err
		}
		plan.add(bindAction{dependent: info.dependent, ref: info.ref, target: reg, call: call})
	}
	if desc != nil {
		for i := range desc.References {
			ref := &desc.References[i]
			if ref.Policy != PolicyDynamic {
				continue
			}
			matches := r.matchingRegistrations(ref)
			if len(matches) == 0 {
				if !ref.Cardinality.IsOptional() {
					return nil, &ReferenceViolationError{
						Contract:  ref.Contract,
						Component: typeName(reg.instance),
						Msg:       "no matching services found for mandatory reference " + ref.Name,
					}
				}
				continue
			}
			if len(matches) > 1 && !ref.Cardinality.IsMultiple() {
				return nil, &ReferenceViolationError{
					Contract:  ref.Contract,
					Component: typeName(reg.instance),
					Msg:       "multiple matching services found for unary reference " + ref.Name,
				}
			}
			call, err := resolveBindAccessor(reg.instance, ref.Bind)
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				plan.add(bindAction{dependent: reg, ref: ref, target: m, call: call})
			}
		}
	}
	return plan, nil
}

// resolveOnUnregister builds the unbind plan for a leaving registration.
// A dependent bound to it through a mandatory unary reference vetoes the
// removal. Removing the last provider of a mandatory multiple reference
// is intentionally not detected.
func (r *Registry) resolveOnUnregister(reg *ServiceRegistration) (*bindPlan, error) {
	plan := &bindPlan{}
	for _, info := range r.matchingDynamicReferences(reg) {
		if _, bound := info.dependent.boundSet(info.ref.Name)[reg.id]; !bound {
			continue
		}
		if info.ref.Cardinality == CardinalityMandatoryUnary {
			return nil, &ReferenceViolationError{
				Contract:  info.ref.Contract,
				Component: typeName(info.dependent.instance),
				Msg:       "reference is mandatory unary, unregistration of service failed",
			}
		}
		call, err := resolveBindAccessor(info.dependent.instance, info.ref.Unbind)
		if err != nil {
			return nil, err
		}
		plan.add(bindAction{dependent: info.dependent, ref: info.ref, target: reg, call: call, unbind: true})
	}
	return plan, nil
}

// InjectReferences resolves every declared reference of the target
// against the currently matching registrations once, invoking the bind
// accessor per match in ranking order. This is the only wiring static
// references receive; they are never re-wired afterwards. The target does
// not need to be registered itself.
func (r *Registry) InjectReferences(target any) error {
	desc, ok := r.descriptors.DescriptorFor(target)
	if !ok {
		return &DescriptorMissingError{Component: typeName(target)}
	}
	for i := range desc.References {
		if err := r.injectReference(target, &desc.References[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) injectReference(target any, ref *ReferenceDescriptor) error {
	matches := r.matchingRegistrations(ref)
	if len(matches) == 0 {
		if !ref.Cardinality.IsOptional() {
			return &ReferenceViolationError{
				Contract:  ref.Contract,
				Component: typeName(target),
				Msg:       "no matching services found for mandatory reference " + ref.Name,
			}
		}
		return nil
	}
	if len(matches) > 1 && !ref.Cardinality.IsMultiple() {
		return &ReferenceViolationError{
			Contract:  ref.Contract,
			Component: typeName(target),
			Msg:       "multiple matching services found for unary reference " + ref.Name,
		}
	}
	call, err := resolveBindAccessor(target, ref.Bind)
	if err != nil {
		return err
	}
	for _, m := range matches {
		call(bindArgs{reference: m.reference, instance: m.instance, props: m.Properties()})
	}
	return nil
}
