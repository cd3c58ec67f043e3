package domain

import "fmt"

// CoercionError reports a raw filter value that cannot be converted to its
// declared variable type.
type CoercionError struct {
	Type VariableType
	Raw  string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("value %q is not a valid %s", e.Raw, e.Type)
}

// ValidationError rejects a search request before any query is built. It names
// the offending filter so the HTTP layer can surface it as a 400.
type ValidationError struct {
	Filter string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Filter == "" {
		return e.Reason
	}
	return fmt.Sprintf("filter %q: %s", e.Filter, e.Reason)
}
