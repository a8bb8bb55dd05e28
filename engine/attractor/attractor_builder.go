package attractor

import (
	"github.com/Carmen-Shannon/oxy-attractors/engine/parameter"
	"github.com/google/uuid"
)

// AttractorBuilderOption is a functional option for configuring an Attractor during construction.
type AttractorBuilderOption func(*attractor)

// WithID is an option builder that sets the attractor's document identity.
//
// Parameters:
//   - id: the identity to use instead of a freshly generated one
//
// Returns:
//   - AttractorBuilderOption: a function that applies the id to an attractor
func WithID(id uuid.UUID) AttractorBuilderOption {
	return func(a *attractor) {
		a.id = id
	}
}

// WithFormula is an option builder that selects the formula by name.
// Unregistered names are kept as-is and reported by Validate.
//
// Parameters:
//   - name: the formula name
//
// Returns:
//   - AttractorBuilderOption: a function that applies the formula to an attractor
func WithFormula(name string) AttractorBuilderOption {
	return func(a *attractor) {
		a.formula = name
	}
}

// WithParameters is an option builder that appends parameters in order.
// Panics on duplicate names, since this is a construction-time programmer error.
//
// Parameters:
//   - params: the parameters to add
//
// Returns:
//   - AttractorBuilderOption: a function that adds the parameters to an attractor
func WithParameters(params ...parameter.Parameter) AttractorBuilderOption {
	return func(a *attractor) {
		for _, p := range params {
			if err := a.addLocked(p); err != nil {
				panic(err)
			}
		}
	}
}

// WithColoring is an option builder that sets the coloring configuration.
//
// Parameters:
//   - c: the coloring
//
// Returns:
//   - AttractorBuilderOption: a function that applies the coloring to an attractor
func WithColoring(c Coloring) AttractorBuilderOption {
	return func(a *attractor) {
		a.coloring = normalizeColoring(c)
	}
}

// WithCoefficients is an option builder that adds the four float coefficients plus the
// iteration counts the built-in formulas require.
//
// Parameters:
//   - a, b, c, d: the static coefficients
//   - iterations: the total number of iterations
//   - skip: the number of leading iterations to discard
//
// Returns:
//   - AttractorBuilderOption: a function that adds the parameters to an attractor
func WithCoefficients(a, b, c, d float64, iterations, skip int64) AttractorBuilderOption {
	return WithParameters(
		parameter.NewParameter(ParamA, parameter.NewFloat(a)),
		parameter.NewParameter(ParamB, parameter.NewFloat(b)),
		parameter.NewParameter(ParamC, parameter.NewFloat(c)),
		parameter.NewParameter(ParamD, parameter.NewFloat(d)),
		parameter.NewParameter(ParamIterations, parameter.NewInt(iterations)),
		parameter.NewParameter(ParamSkipIterations, parameter.NewInt(skip)),
	)
}
