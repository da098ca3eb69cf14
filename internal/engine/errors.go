package engine

import "github.com/LeonardoBeccarini/cropsim/internal/simerr"

type (
	ConfigurationError        = simerr.ConfigurationError
	MissingInputError         = simerr.MissingInputError
	NumericalInstabilityError = simerr.NumericalInstabilityError
	ForcingGapError           = simerr.ForcingGapError
)

// epsilon is the tolerance for snapping water contents back into their bounds.
const epsilon = 1e-6
