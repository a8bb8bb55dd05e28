package parameter

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-attractors/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueCoercion(t *testing.T) {
	f := NewFloat(0)
	changed, err := f.Set("2.5")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, KindFloat, f.Kind())
	assert.Equal(t, 2.5, f.Float())

	_, err = f.Set(3)
	require.NoError(t, err)
	assert.Equal(t, 3.0, f.Float())
	assert.Equal(t, KindFloat, f.Kind())

	i := NewInt(0)
	_, err = i.Set(7.9)
	require.NoError(t, err)
	assert.Equal(t, int64(7), i.Int())
	assert.Equal(t, KindInt, i.Kind())

	_, err = i.Set("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), i.Int())

	_, err = i.Set("1e3")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), i.Int())

	changed, err = i.Set(int64(1000))
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = i.Set("nope")
	assert.Error(t, err)
	_, err = i.Set([]int{1})
	assert.ErrorIs(t, err, ErrUnsupportedInput)
	assert.Equal(t, int64(1000), i.Int())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Float")
	require.NoError(t, err)
	assert.Equal(t, KindFloat, k)
	k, err = ParseKind("integer")
	require.NoError(t, err)
	assert.Equal(t, KindInt, k)
	_, err = ParseKind("bool")
	assert.Error(t, err)
}

func TestKeyFrameBoundaries(t *testing.T) {
	p := NewParameter("a", NewFloat(0), WithKeyFrames(
		KeyFrame{Value: NewFloat(1.7), Duration: 500},
		KeyFrame{Value: NewFloat(2.0), Duration: 200},
		KeyFrame{Value: NewFloat(1.9), Duration: 100},
	))

	assert.Equal(t, 1.7, p.ValueAt(0).Float())
	assert.Equal(t, 2.0, p.ValueAt(500).Float())

	lo, hi := 1.7, 2.0
	want := lo + (250.0/500.0)*(hi-lo)
	assert.Equal(t, want, p.ValueAt(250).Float())
	assert.InDelta(t, 1.85, p.ValueAt(250).Float(), 1e-12)

	// second window blends 2.0 -> 1.9
	assert.InDelta(t, 1.95, p.ValueAt(600).Float(), 1e-12)

	// last window holds its own value, then clamps past the end
	assert.Equal(t, 1.9, p.ValueAt(700).Float())
	assert.Equal(t, 1.9, p.ValueAt(750).Float())
	assert.Equal(t, 1.9, p.ValueAt(800).Float())
	assert.Equal(t, 1.9, p.ValueAt(1_000_000).Float())
}

func TestValueAtWithoutAnimation(t *testing.T) {
	p := NewParameter("iterations", NewInt(1000))
	assert.Equal(t, int64(1000), p.ValueAt(0).Int())
	assert.Equal(t, int64(1000), p.ValueAt(99).Int())

	empty := NewParameter("iterations", NewInt(5), WithKeyFrames())
	assert.Equal(t, int64(5), empty.ValueAt(3).Int())
}

func TestIntegerAnimationTruncates(t *testing.T) {
	p := NewParameter("iterations", NewInt(0), WithKeyFrames(
		KeyFrame{Value: NewInt(0), Duration: 4},
		KeyFrame{Value: NewInt(10), Duration: 1},
	))
	assert.Equal(t, KindInt, p.ValueAt(1).Kind())
	assert.Equal(t, int64(2), p.ValueAt(1).Int())
	assert.Equal(t, int64(7), p.ValueAt(3).Int())
	assert.Equal(t, int64(10), p.ValueAt(4).Int())
}

func TestZeroDurationKeyFrameIsSkipped(t *testing.T) {
	seq := NewAnimationSequence(
		KeyFrame{Value: NewFloat(1), Duration: 0},
		KeyFrame{Value: NewFloat(3), Duration: 2},
	)
	v, ok := seq.ValueAt(0)
	require.True(t, ok)
	assert.Equal(t, 3.0, v.Float())
	assert.Equal(t, uint64(2), seq.TotalFrames())
}

type stepInterpolator struct{}

func (stepInterpolator) Interpolate(from, _ Value, _ float64) Value { return from }

func TestCustomInterpolator(t *testing.T) {
	seq := NewAnimationSequence(
		KeyFrame{Value: NewFloat(1), Duration: 10},
		KeyFrame{Value: NewFloat(2), Duration: 10},
	).WithInterpolator(stepInterpolator{})
	v, _ := seq.ValueAt(9)
	assert.Equal(t, 1.0, v.Float())
}

// funcInterpolator is not comparable, so two instances never compare equal.
type funcInterpolator func(from, to Value, position float64) Value

func (f funcInterpolator) Interpolate(from, to Value, position float64) Value {
	return f(from, to, position)
}

func TestSetAnimationDetectsInterpolatorChange(t *testing.T) {
	keyFrames := []KeyFrame{
		{Value: NewFloat(1), Duration: 10},
		{Value: NewFloat(2), Duration: 10},
	}
	p := NewParameter("a", NewFloat(0), WithKeyFrames(keyFrames...))

	changed, err := p.SetAnimation(NewAnimationSequence(keyFrames...))
	require.NoError(t, err)
	assert.False(t, changed, "same keyframes, same linear blending")

	changed, err = p.SetAnimation(NewAnimationSequence(keyFrames...).WithInterpolator(stepInterpolator{}))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1.0, p.ValueAt(9).Float())

	changed, err = p.SetAnimation(NewAnimationSequence(keyFrames...).WithInterpolator(stepInterpolator{}))
	require.NoError(t, err)
	assert.False(t, changed)

	step := funcInterpolator(func(from, _ Value, _ float64) Value { return from })
	changed, err = p.SetAnimation(NewAnimationSequence(keyFrames...).WithInterpolator(step))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NotPanics(t, func() {
		assert.False(t, p.Animation().Equal(NewAnimationSequence(keyFrames...).WithInterpolator(step)))
	})
}

func TestSetAnimationReportsChangesAndKind(t *testing.T) {
	p := NewParameter("b", NewFloat(1))

	changed, err := p.SetAnimation(NewAnimationSequence(KeyFrame{Value: NewInt(1), Duration: 1}))
	assert.ErrorIs(t, err, ErrKindMismatch)
	assert.False(t, changed)

	seq := NewAnimationSequence(KeyFrame{Value: NewFloat(1), Duration: 1})
	changed, err = p.SetAnimation(seq)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = p.SetAnimation(seq)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = p.SetAnimation(nil)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Nil(t, p.Animation())
}

func TestCloneIsIndependent(t *testing.T) {
	p := NewParameter("c", NewFloat(1), WithKeyFrames(KeyFrame{Value: NewFloat(5), Duration: 3}))
	c := p.Clone()

	_, err := p.SetValue(9.0)
	require.NoError(t, err)
	_, err = p.SetAnimation(nil)
	require.NoError(t, err)

	assert.Equal(t, 1.0, c.Value().Float())
	assert.Equal(t, 5.0, c.ValueAt(common.FrameID(1)).Float())
}
