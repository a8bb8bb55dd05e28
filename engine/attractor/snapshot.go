package attractor

import (
	"github.com/Carmen-Shannon/oxy-attractors/common"
	"github.com/Carmen-Shannon/oxy-attractors/engine/parameter"
	"github.com/google/uuid"
)

// Snapshot is a deep, independent copy of an Attractor taken at submission time.
// It is immutable; edits to the live Attractor never reach it.
type Snapshot struct {
	id       uuid.UUID
	name     string
	formula  string
	params   []parameter.Parameter
	index    map[string]int
	coloring Coloring
}

func newSnapshot(id uuid.UUID, name, formula string, params []parameter.Parameter, coloring Coloring) *Snapshot {
	s := &Snapshot{
		id:       id,
		name:     name,
		formula:  formula,
		params:   cloneParameters(params),
		index:    make(map[string]int, len(params)),
		coloring: coloring.Clone(),
	}
	for i, p := range s.params {
		s.index[p.Name()] = i
	}
	return s
}

// ID returns the identity of the attractor the snapshot was taken from.
func (s *Snapshot) ID() uuid.UUID {
	return s.id
}

// Name returns the attractor's display name at snapshot time.
func (s *Snapshot) Name() string {
	return s.name
}

// Formula returns the formula name at snapshot time.
func (s *Snapshot) Formula() string {
	return s.formula
}

// Coloring returns a copy of the coloring at snapshot time.
func (s *Snapshot) Coloring() Coloring {
	return s.coloring.Clone()
}

// Parameter returns a copy of the named parameter.
func (s *Snapshot) Parameter(name string) (parameter.Parameter, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.params[i].Clone(), true
}

// ValueAt resolves the named parameter at frame.
//
// Parameters:
//   - name: the parameter name
//   - frame: the frame to resolve
//
// Returns:
//   - parameter.Value: the effective value
//   - bool: false if no parameter has that name
func (s *Snapshot) ValueAt(name string, frame common.FrameID) (parameter.Value, bool) {
	i, ok := s.index[name]
	if !ok {
		return parameter.Value{}, false
	}
	return s.params[i].ValueAt(frame), true
}

// Len returns the number of parameters in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.params)
}
