package parameter

import (
	"reflect"

	"github.com/Carmen-Shannon/oxy-attractors/common"
)

// KeyFrame is one value in an AnimationSequence, held for Duration frames before
// blending into the next keyframe.
type KeyFrame struct {
	// Value is the parameter value at the start of this keyframe's window.
	Value Value

	// Duration is the width of this keyframe's window in frames.
	Duration uint32
}

// Interpolator blends two values at a position in [0, 1).
type Interpolator interface {
	// Interpolate returns the value at position between from and to.
	// The result must have the same kind as from.
	//
	// Parameters:
	//   - from: the value at position 0
	//   - to: the value at position 1
	//   - position: the fractional position within the window
	//
	// Returns:
	//   - Value: the blended value
	Interpolate(from, to Value, position float64) Value
}

// LinearInterpolator blends values along a straight line.
// Integer values are interpolated in float space and truncated toward zero.
type LinearInterpolator struct{}

var _ Interpolator = LinearInterpolator{}

func (LinearInterpolator) Interpolate(from, to Value, position float64) Value {
	if position == 0 {
		return from
	}
	blended := common.Lerp(from.Float(), to.Float(), position)
	if from.Kind() == KindInt {
		return NewInt(int64(blended))
	}
	return NewFloat(blended)
}

// AnimationSequence is an ordered list of keyframes laid out as consecutive frame windows
// starting at frame 0. Window i spans [sum(d[0..i]), sum(d[0..i+1])).
type AnimationSequence struct {
	keyFrames    []KeyFrame
	interpolator Interpolator
}

// NewAnimationSequence creates a sequence from the given keyframes using linear interpolation.
//
// Parameters:
//   - keyFrames: the keyframes in playback order; the slice is copied
//
// Returns:
//   - *AnimationSequence: the new sequence
func NewAnimationSequence(keyFrames ...KeyFrame) *AnimationSequence {
	return &AnimationSequence{
		keyFrames:    append([]KeyFrame(nil), keyFrames...),
		interpolator: LinearInterpolator{},
	}
}

// WithInterpolator returns a copy of the sequence that blends with the given interpolator.
func (s *AnimationSequence) WithInterpolator(interp Interpolator) *AnimationSequence {
	c := s.Clone()
	if interp != nil {
		c.interpolator = interp
	}
	return c
}

// KeyFrames returns a copy of the keyframes.
func (s *AnimationSequence) KeyFrames() []KeyFrame {
	if s == nil {
		return nil
	}
	return append([]KeyFrame(nil), s.keyFrames...)
}

// Len returns the number of keyframes.
func (s *AnimationSequence) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keyFrames)
}

// TotalFrames returns the sum of all keyframe durations.
func (s *AnimationSequence) TotalFrames() uint64 {
	if s == nil {
		return 0
	}
	var total uint64
	for _, kf := range s.keyFrames {
		total += uint64(kf.Duration)
	}
	return total
}

// Clone returns an independent copy of the sequence.
func (s *AnimationSequence) Clone() *AnimationSequence {
	if s == nil {
		return nil
	}
	return &AnimationSequence{
		keyFrames:    append([]KeyFrame(nil), s.keyFrames...),
		interpolator: s.interpolator,
	}
}

// Equal reports whether two sequences hold the same keyframes and blend them the same way.
func (s *AnimationSequence) Equal(other *AnimationSequence) bool {
	if s.Len() != other.Len() {
		return false
	}
	if s != nil && other != nil && !sameInterpolator(s.interpolator, other.interpolator) {
		return false
	}
	for i := range s.Len() {
		a, b := s.keyFrames[i], other.keyFrames[i]
		if a.Duration != b.Duration || !a.Value.Equal(b.Value) {
			return false
		}
	}
	return true
}

// sameInterpolator treats nil as linear. Interpolators of a non-comparable type are only
// equal to themselves by identity, which cannot be checked, so they never compare equal.
func sameInterpolator(a, b Interpolator) bool {
	if a == nil {
		a = LinearInterpolator{}
	}
	if b == nil {
		b = LinearInterpolator{}
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}

// ValueAt resolves the animated value at frame.
// Frames past the last window clamp to the last keyframe's value. Zero-duration keyframes
// occupy no frames and are never selected as a window.
//
// Parameters:
//   - frame: the frame to resolve
//
// Returns:
//   - Value: the interpolated value
//   - bool: false if the sequence has no keyframes
func (s *AnimationSequence) ValueAt(frame common.FrameID) (Value, bool) {
	if s.Len() == 0 {
		return Value{}, false
	}

	interp := s.interpolator
	if interp == nil {
		interp = LinearInterpolator{}
	}

	var start uint64
	target := uint64(frame)
	for i, minKF := range s.keyFrames {
		end := start + uint64(minKF.Duration)
		if target < end {
			maxKF := minKF
			if i+1 < len(s.keyFrames) {
				maxKF = s.keyFrames[i+1]
			}
			position := float64(target-start) / float64(minKF.Duration)
			return interp.Interpolate(minKF.Value, maxKF.Value, position), true
		}
		start = end
	}

	return s.keyFrames[len(s.keyFrames)-1].Value, true
}
