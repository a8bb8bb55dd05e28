package parameter

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-attractors/common"
)

// Parameter is a named Value with an optional AnimationSequence.
//
// Parameter is not safe for concurrent mutation; its owner (the Attractor) serializes
// access. Mutators report whether anything changed so the owner can aggregate a dirty flag.
type Parameter interface {
	// Name returns the parameter's lookup key.
	//
	// Returns:
	//   - string: the name, unique within an Attractor
	Name() string

	// Kind returns the variant of the parameter's value.
	//
	// Returns:
	//   - Kind: KindFloat or KindInt
	Kind() Kind

	// Value returns the static value, ignoring any animation.
	//
	// Returns:
	//   - Value: the static value
	Value() Value

	// SetValue coerces input into the parameter's kind and stores it as the static value.
	//
	// Parameters:
	//   - input: a string, integer, float or Value input
	//
	// Returns:
	//   - bool: true if the static value changed
	//   - error: an error if the input cannot be coerced
	SetValue(input any) (bool, error)

	// Animation returns the parameter's animation, or nil if it is static.
	//
	// Returns:
	//   - *AnimationSequence: a copy of the animation or nil
	Animation() *AnimationSequence

	// SetAnimation replaces the parameter's animation. Pass nil to make the parameter static.
	// Every keyframe value must have the parameter's kind.
	//
	// Parameters:
	//   - seq: the new animation or nil
	//
	// Returns:
	//   - bool: true if the animation changed
	//   - error: ErrKindMismatch if a keyframe has the wrong kind
	SetAnimation(seq *AnimationSequence) (bool, error)

	// ValueAt resolves the parameter's effective value at frame.
	// Without an animation, or with an empty one, this is the static value.
	//
	// Parameters:
	//   - frame: the frame to resolve
	//
	// Returns:
	//   - Value: the effective value
	ValueAt(frame common.FrameID) Value

	// Clone returns an independent deep copy.
	//
	// Returns:
	//   - Parameter: the copy
	Clone() Parameter
}

type parameter struct {
	name      string
	value     Value
	animation *AnimationSequence
}

var _ Parameter = &parameter{}

// NewParameter creates a Parameter with the given name and static value.
// Panics if name is empty.
//
// Parameters:
//   - name: the lookup key
//   - value: the static value; its kind becomes the parameter's kind
//   - options: functional options (animation, interpolator)
//
// Returns:
//   - Parameter: the new parameter
func NewParameter(name string, value Value, options ...ParameterBuilderOption) Parameter {
	if name == "" {
		panic("parameter: NewParameter requires a non-empty name")
	}
	p := &parameter{
		name:  name,
		value: value,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *parameter) Name() string {
	return p.name
}

func (p *parameter) Kind() Kind {
	return p.value.Kind()
}

func (p *parameter) Value() Value {
	return p.value
}

func (p *parameter) SetValue(input any) (bool, error) {
	next := p.value
	changed, err := next.Set(input)
	if err != nil {
		return false, fmt.Errorf("parameter %q: %w", p.name, err)
	}
	p.value = next
	return changed, nil
}

func (p *parameter) Animation() *AnimationSequence {
	return p.animation.Clone()
}

func (p *parameter) SetAnimation(seq *AnimationSequence) (bool, error) {
	for i, kf := range seq.KeyFrames() {
		if kf.Value.Kind() != p.Kind() {
			return false, fmt.Errorf("parameter %q: keyframe %d is %s, want %s: %w", p.name, i, kf.Value.Kind(), p.Kind(), ErrKindMismatch)
		}
	}
	if p.animation.Equal(seq) && (p.animation == nil) == (seq == nil) {
		return false, nil
	}
	p.animation = seq.Clone()
	return true, nil
}

func (p *parameter) ValueAt(frame common.FrameID) Value {
	if v, ok := p.animation.ValueAt(frame); ok {
		return v
	}
	return p.value
}

func (p *parameter) Clone() Parameter {
	return &parameter{
		name:      p.name,
		value:     p.value,
		animation: p.animation.Clone(),
	}
}
