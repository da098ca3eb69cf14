// Package simerr holds the error kinds a simulation run can fail with.
package simerr

import "fmt"

// ConfigurationError reports malformed or contradictory bounds or coefficients.
// It is raised before the first simulated day.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// MissingInputError reports a disabled file reference the run cannot do without.
type MissingInputError struct {
	Input  string
	Reason string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input %s: %s", e.Input, e.Reason)
}

// NumericalInstabilityError reports a state value outside its physical bound
// beyond rounding tolerance.
type NumericalInstabilityError struct {
	Day         int
	Compartment int
	Quantity    string
	Value       float64
	Bound       float64
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("numerical instability on day %d, compartment %d: %s=%.6g violates bound %.6g",
		e.Day, e.Compartment, e.Quantity, e.Value, e.Bound)
}

// ForcingGapError reports a forcing value missing on a day with no fallback policy.
type ForcingGapError struct {
	Day      int
	Variable string
}

func (e *ForcingGapError) Error() string {
	return fmt.Sprintf("forcing gap on day %d: %s missing and no default policy", e.Day, e.Variable)
}
