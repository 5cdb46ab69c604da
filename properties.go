package svcmock

// Properties is a bag of service properties keyed by case-sensitive
// strings.
type Properties map[string]any

// Reserved property keys maintained by the registry. Caller-supplied
// values under the first two are overwritten on registration.
const (
	// PropServiceID holds the registry-assigned identity of a registration
	// as an int64.
	PropServiceID = "service.id"
	// PropServiceContracts holds the full contract set of a registration
	// as a sorted []string.
	PropServiceContracts = "service.contracts"
	// PropServiceRanking orders registrations; higher ranks sort first.
	PropServiceRanking = "service.ranking"
)

// Copy returns a shallow copy of the properties. Copying nil yields an
// empty, non-nil map.
func (p Properties) Copy() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// mergeProperties merges service properties from three sources with this
// precedence, highest first: caller-supplied properties, configuration
// overrides for the component's identity, descriptor defaults.
// Configuration is consulted only for components that carry a descriptor.
func mergeProperties(desc *ComponentDescriptor, configs ConfigSource, props Properties) Properties {
	merged := make(Properties)
	if desc != nil {
		for k, v := range desc.Properties {
			merged[k] = v
		}
		if configs != nil {
			if override, ok := configs.ConfigFor(desc.ComponentIdentity()); ok {
				for k, v := range override {
					merged[k] = v
				}
			}
		}
	}
	for k, v := range props {
		merged[k] = v
	}
	return merged
}
