package attractor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-attractors/engine/parameter"
	"github.com/chewxy/math32"
)

// Well-known parameter names shared by the built-in formulas.
const (
	ParamA              = "a"
	ParamB              = "b"
	ParamC              = "c"
	ParamD              = "d"
	ParamIterations     = "iterations"
	ParamSkipIterations = "skip_iterations"
	ParamX0             = "x0"
	ParamY0             = "y0"
	ParamZ0             = "z0"
)

// DefaultFormula is the formula used when none is configured.
const DefaultFormula = "pickover"

// Point is a position in attractor space.
type Point [3]float32

// Coefficients are the resolved formula coefficients for one compute task.
type Coefficients struct {
	A, B, C, D float32
}

// Requirement names a parameter a formula cannot run without.
type Requirement struct {
	Name string
	Kind parameter.Kind
}

// Formula is one iterated map.
type Formula interface {
	// Name returns the registry key.
	Name() string

	// Planar reports whether Step only produces x and y. Planar formulas get their depth
	// from the step's position in the retained sequence.
	Planar() bool

	// Step advances p by one iteration.
	//
	// Parameters:
	//   - p: the current point
	//   - c: the coefficients
	//
	// Returns:
	//   - Point: the next point
	Step(p Point, c Coefficients) Point
}

// Requirements returns the parameters every built-in formula needs.
func Requirements() []Requirement {
	return []Requirement{
		{Name: ParamA, Kind: parameter.KindFloat},
		{Name: ParamB, Kind: parameter.KindFloat},
		{Name: ParamC, Kind: parameter.KindFloat},
		{Name: ParamD, Kind: parameter.KindFloat},
		{Name: ParamIterations, Kind: parameter.KindInt},
		{Name: ParamSkipIterations, Kind: parameter.KindInt},
	}
}

type pickover struct{}

func (pickover) Name() string { return "pickover" }
func (pickover) Planar() bool { return false }
func (pickover) Step(p Point, c Coefficients) Point {
	x, y, z := p[0], p[1], p[2]
	return Point{
		math32.Sin(c.A*y) - z*math32.Cos(c.B*x),
		z*math32.Sin(c.C*x) - math32.Cos(c.D*y),
		math32.Sin(x),
	}
}

type deJong struct{}

func (deJong) Name() string { return "dejong" }
func (deJong) Planar() bool { return true }
func (deJong) Step(p Point, c Coefficients) Point {
	x, y := p[0], p[1]
	return Point{
		math32.Sin(c.A*y) - math32.Cos(c.B*x),
		math32.Sin(c.C*x) - math32.Cos(c.D*y),
		0,
	}
}

type clifford struct{}

func (clifford) Name() string { return "clifford" }
func (clifford) Planar() bool { return true }
func (clifford) Step(p Point, c Coefficients) Point {
	x, y := p[0], p[1]
	return Point{
		math32.Sin(c.A*y) + c.C*math32.Cos(c.A*x),
		math32.Sin(c.B*x) + c.D*math32.Cos(c.B*y),
		0,
	}
}

var (
	formulaMu = &sync.RWMutex{}
	formulas  = map[string]Formula{
		"pickover": pickover{},
		"dejong":   deJong{},
		"clifford": clifford{},
	}
)

// RegisterFormula adds f to the registry, replacing any formula with the same name.
// Panics if f is nil or has an empty name.
func RegisterFormula(f Formula) {
	if f == nil || f.Name() == "" {
		panic("attractor: RegisterFormula requires a named formula")
	}
	formulaMu.Lock()
	defer formulaMu.Unlock()
	formulas[f.Name()] = f
}

// LookupFormula returns the registered formula with the given name.
//
// Parameters:
//   - name: the registry key
//
// Returns:
//   - Formula: the formula
//   - error: an error if no formula has that name
func LookupFormula(name string) (Formula, error) {
	formulaMu.RLock()
	defer formulaMu.RUnlock()
	f, ok := formulas[name]
	if !ok {
		return nil, fmt.Errorf("attractor: unknown formula %q", name)
	}
	return f, nil
}

// FormulaNames returns the registered formula names in sorted order.
func FormulaNames() []string {
	formulaMu.RLock()
	defer formulaMu.RUnlock()
	names := make([]string, 0, len(formulas))
	for name := range formulas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
