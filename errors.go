package svcmock

import "fmt"

// FilterSyntaxError represents a malformed filter string.
// Pos is the character offset at which parsing failed.
type FilterSyntaxError struct {
	Filter string
	Pos    int
	Msg    string
}

func (e *FilterSyntaxError) Error() string {
	return fmt.Sprintf("invalid filter %q at position %d: %s", e.Filter, e.Pos, e.Msg)
}

// ReferenceViolationError represents a broken cardinality or policy
// constraint during injection, registration or unregistration.
type ReferenceViolationError struct {
	Contract  string
	Component string
	Msg       string
}

func (e *ReferenceViolationError) Error() string {
	return fmt.Sprintf("reference violation on contract %s for component %s: %s", e.Contract, e.Component, e.Msg)
}

// DescriptorMissingError represents a component without discoverable
// declarative metadata.
type DescriptorMissingError struct {
	Component string
}

func (e *DescriptorMissingError) Error() string {
	return fmt.Sprintf("no component descriptor found for type: %s", e.Component)
}

// AccessorNotFoundError represents a named accessor that could not be
// resolved to any supported call shape on the target component.
type AccessorNotFoundError struct {
	Accessor  string
	Component string
}

func (e *AccessorNotFoundError) Error() string {
	return fmt.Sprintf("no accessor %q with a supported call shape found on component %s", e.Accessor, e.Component)
}

// DuplicateKeyError represents case-variant duplicates of the same key in
// a caller-supplied dictionary.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("dictionary contains case variants of the same key: %s", e.Key)
}

// NilServiceError represents an attempt to register a nil service instance.
type NilServiceError struct {
	Contract string
}

func (e *NilServiceError) Error() string {
	return fmt.Sprintf("nil service instance provided for contract: %s", e.Contract)
}

// DescriptorInvalidError represents a component descriptor that failed
// validation when it was registered or first discovered.
type DescriptorInvalidError struct {
	Component string
	Err       error
}

func (e *DescriptorInvalidError) Error() string {
	return fmt.Sprintf("invalid component descriptor for type %s: %v", e.Component, e.Err)
}

func (e *DescriptorInvalidError) Unwrap() error {
	return e.Err
}

// ConfigLoadError represents a configuration file that could not be read
// or decoded.
type ConfigLoadError struct {
	Path string
	Err  error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("unable to load configuration from %s: %v", e.Path, e.Err)
}

func (e *ConfigLoadError) Unwrap() error {
	return e.Err
}
