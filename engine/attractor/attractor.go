package attractor

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-attractors/engine/parameter"
	"github.com/google/uuid"
)

var (
	// ErrUnknownParameter is returned when a parameter name is not present on the attractor.
	ErrUnknownParameter = errors.New("attractor: unknown parameter")

	// ErrDuplicateParameter is returned when adding a parameter whose name is already taken.
	ErrDuplicateParameter = errors.New("attractor: duplicate parameter")
)

// attractor is the implementation of the Attractor interface.
type attractor struct {
	mu *sync.RWMutex

	id       uuid.UUID
	name     string
	formula  string
	params   []parameter.Parameter
	index    map[string]int
	coloring Coloring

	dirty atomic.Bool
}

// Attractor is a named formula with an ordered list of parameters and a coloring configuration.
//
// Every mutation is routed through the Attractor's own methods, which set the dirty flag when
// something actually changed. The dirty flag is cleared only by the compute cache after it has
// launched a recompute. Thread-safe for concurrent access.
type Attractor interface {
	// ID returns the document identity of this attractor.
	//
	// Returns:
	//   - uuid.UUID: the identity, stable for the attractor's lifetime
	ID() uuid.UUID

	// Name returns the attractor's display name.
	Name() string

	// Formula returns the name of the formula driving this attractor.
	Formula() string

	// SetFormula switches the formula. Marks the attractor dirty when it changes.
	//
	// Parameters:
	//   - name: a registered formula name
	//
	// Returns:
	//   - error: an error if the formula is not registered
	SetFormula(name string) error

	// Parameter returns an independent copy of the named parameter.
	//
	// Parameters:
	//   - name: the parameter name
	//
	// Returns:
	//   - parameter.Parameter: the copy
	//   - bool: false if no parameter has that name
	Parameter(name string) (parameter.Parameter, bool)

	// Parameters returns independent copies of every parameter in order.
	//
	// Returns:
	//   - []parameter.Parameter: the copies
	Parameters() []parameter.Parameter

	// AddParameter appends a parameter. Marks the attractor dirty.
	//
	// Parameters:
	//   - p: the parameter; the attractor stores its own copy
	//
	// Returns:
	//   - error: ErrDuplicateParameter if the name is taken
	AddParameter(p parameter.Parameter) error

	// RemoveParameter removes the named parameter. Marks the attractor dirty if it existed.
	//
	// Parameters:
	//   - name: the parameter name
	//
	// Returns:
	//   - bool: true if a parameter was removed
	RemoveParameter(name string) bool

	// SetParameterValue sets the named parameter's static value, coercing input into its kind.
	// Marks the attractor dirty when the value changes.
	//
	// Parameters:
	//   - name: the parameter name
	//   - input: a string, integer, float or parameter.Value input
	//
	// Returns:
	//   - error: ErrUnknownParameter or a coercion error
	SetParameterValue(name string, input any) error

	// SetParameterAnimation replaces the named parameter's animation. Pass nil to clear it.
	// Marks the attractor dirty when the animation changes.
	//
	// Parameters:
	//   - name: the parameter name
	//   - seq: the new animation or nil
	//
	// Returns:
	//   - error: ErrUnknownParameter or parameter.ErrKindMismatch
	SetParameterAnimation(name string, seq *parameter.AnimationSequence) error

	// Coloring returns a copy of the coloring configuration.
	Coloring() Coloring

	// SetColoring replaces the coloring configuration. Marks the attractor dirty when it changes.
	//
	// Parameters:
	//   - c: the new coloring; stops are sorted by position
	SetColoring(c Coloring)

	// Dirty reports whether anything changed since the flag was last cleared.
	Dirty() bool

	// ClearDirty resets the dirty flag.
	ClearDirty()

	// MarkDirty sets the dirty flag without changing any state.
	MarkDirty()

	// Validate checks that the formula is registered and every required parameter exists
	// with the required kind.
	//
	// Returns:
	//   - error: the first problem found, or nil
	Validate() error

	// Snapshot takes a deep, independent copy of the attractor's current state.
	//
	// Returns:
	//   - *Snapshot: the snapshot
	Snapshot() *Snapshot
}

var _ Attractor = &attractor{}

// NewAttractor creates an Attractor with the default formula, no parameters and the default
// coloring, then applies the options. The new attractor starts dirty.
//
// Parameters:
//   - name: the display name
//   - options: functional options to further configure the attractor
//
// Returns:
//   - Attractor: the new attractor
func NewAttractor(name string, options ...AttractorBuilderOption) Attractor {
	a := &attractor{
		mu:       &sync.RWMutex{},
		id:       uuid.New(),
		name:     name,
		formula:  DefaultFormula,
		index:    make(map[string]int),
		coloring: DefaultColoring(),
	}
	for _, opt := range options {
		opt(a)
	}
	a.dirty.Store(true)
	return a
}

func (a *attractor) ID() uuid.UUID {
	return a.id
}

func (a *attractor) Name() string {
	return a.name
}

func (a *attractor) Formula() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.formula
}

func (a *attractor) SetFormula(name string) error {
	if _, err := LookupFormula(name); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.formula != name {
		a.formula = name
		a.dirty.Store(true)
	}
	return nil
}

func (a *attractor) Parameter(name string) (parameter.Parameter, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i, ok := a.index[name]
	if !ok {
		return nil, false
	}
	return a.params[i].Clone(), true
}

func (a *attractor) Parameters() []parameter.Parameter {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return cloneParameters(a.params)
}

func (a *attractor) AddParameter(p parameter.Parameter) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.addLocked(p); err != nil {
		return err
	}
	a.dirty.Store(true)
	return nil
}

func (a *attractor) addLocked(p parameter.Parameter) error {
	if _, ok := a.index[p.Name()]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateParameter, p.Name())
	}
	a.index[p.Name()] = len(a.params)
	a.params = append(a.params, p.Clone())
	return nil
}

func (a *attractor) RemoveParameter(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	i, ok := a.index[name]
	if !ok {
		return false
	}
	a.params = slices.Delete(a.params, i, i+1)
	a.reindexLocked()
	a.dirty.Store(true)
	return true
}

func (a *attractor) reindexLocked() {
	clear(a.index)
	for i, p := range a.params {
		a.index[p.Name()] = i
	}
}

func (a *attractor) SetParameterValue(name string, input any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	i, ok := a.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	changed, err := a.params[i].SetValue(input)
	if err != nil {
		return err
	}
	if changed {
		a.dirty.Store(true)
	}
	return nil
}

func (a *attractor) SetParameterAnimation(name string, seq *parameter.AnimationSequence) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	i, ok := a.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	changed, err := a.params[i].SetAnimation(seq)
	if err != nil {
		return err
	}
	if changed {
		a.dirty.Store(true)
	}
	return nil
}

func (a *attractor) Coloring() Coloring {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.coloring.Clone()
}

func (a *attractor) SetColoring(c Coloring) {
	c = normalizeColoring(c)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.coloring.Equal(c) {
		return
	}
	a.coloring = c
	a.dirty.Store(true)
}

func (a *attractor) Dirty() bool {
	return a.dirty.Load()
}

func (a *attractor) ClearDirty() {
	a.dirty.Store(false)
}

func (a *attractor) MarkDirty() {
	a.dirty.Store(true)
}

func (a *attractor) Validate() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if _, err := LookupFormula(a.formula); err != nil {
		return err
	}
	for _, req := range Requirements() {
		i, ok := a.index[req.Name]
		if !ok {
			return fmt.Errorf("%w: %q is required by %s", ErrUnknownParameter, req.Name, a.formula)
		}
		if k := a.params[i].Kind(); k != req.Kind {
			return fmt.Errorf("attractor: parameter %q is %s, want %s: %w", req.Name, k, req.Kind, parameter.ErrKindMismatch)
		}
	}
	return nil
}

func (a *attractor) Snapshot() *Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return newSnapshot(a.id, a.name, a.formula, a.params, a.coloring)
}

// normalizeColoring returns a deep copy of c with its stops sorted by position.
func normalizeColoring(c Coloring) Coloring {
	c = c.Clone()
	sort.SliceStable(c.Stops, func(i, j int) bool {
		return c.Stops[i].Position < c.Stops[j].Position
	})
	return c
}

func cloneParameters(params []parameter.Parameter) []parameter.Parameter {
	out := make([]parameter.Parameter, len(params))
	for i, p := range params {
		out[i] = p.Clone()
	}
	return out
}
