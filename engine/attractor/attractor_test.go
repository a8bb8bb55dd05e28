package attractor

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-attractors/common"
	"github.com/Carmen-Shannon/oxy-attractors/engine/parameter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAttractor() Attractor {
	return NewAttractor("test", WithCoefficients(1.4, -2.3, 2.4, -2.1, 1000, 100))
}

func TestNewAttractorStartsDirtyAndValid(t *testing.T) {
	a := newTestAttractor()
	assert.True(t, a.Dirty())
	assert.NoError(t, a.Validate())
	assert.Equal(t, DefaultFormula, a.Formula())
	a.ClearDirty()
	assert.False(t, a.Dirty())
}

type holdInterpolator struct{}

func (holdInterpolator) Interpolate(from, _ parameter.Value, _ float64) parameter.Value {
	return from
}

func TestDirtyPropagation(t *testing.T) {
	a := newTestAttractor()
	a.ClearDirty()

	require.NoError(t, a.SetParameterValue(ParamA, 1.4))
	assert.False(t, a.Dirty(), "setting an identical value must not mark dirty")

	require.NoError(t, a.SetParameterValue(ParamA, "1.5"))
	assert.True(t, a.Dirty())
	a.ClearDirty()

	seq := parameter.NewAnimationSequence(parameter.KeyFrame{Value: parameter.NewFloat(1), Duration: 10})
	require.NoError(t, a.SetParameterAnimation(ParamB, seq))
	assert.True(t, a.Dirty())
	a.ClearDirty()

	require.NoError(t, a.SetParameterAnimation(ParamB, seq.WithInterpolator(holdInterpolator{})))
	assert.True(t, a.Dirty(), "a new interpolator changes the animation")
	a.ClearDirty()

	c := a.Coloring()
	a.SetColoring(c)
	assert.False(t, a.Dirty())
	c.Mode = ColorModeVelocity
	a.SetColoring(c)
	assert.True(t, a.Dirty())
	a.ClearDirty()

	require.NoError(t, a.SetFormula("pickover"))
	assert.False(t, a.Dirty())
	require.NoError(t, a.SetFormula("dejong"))
	assert.True(t, a.Dirty())
	assert.Error(t, a.SetFormula("missing"))
}

func TestUnknownParameter(t *testing.T) {
	a := newTestAttractor()
	assert.ErrorIs(t, a.SetParameterValue("zzz", 1), ErrUnknownParameter)
	assert.ErrorIs(t, a.SetParameterAnimation("zzz", nil), ErrUnknownParameter)
	assert.ErrorIs(t, a.AddParameter(parameter.NewParameter(ParamA, parameter.NewFloat(0))), ErrDuplicateParameter)
}

func TestValidateReportsMissingAndWrongKind(t *testing.T) {
	a := newTestAttractor()
	require.True(t, a.RemoveParameter(ParamIterations))
	assert.ErrorIs(t, a.Validate(), ErrUnknownParameter)

	require.NoError(t, a.AddParameter(parameter.NewParameter(ParamIterations, parameter.NewFloat(10))))
	assert.ErrorIs(t, a.Validate(), parameter.ErrKindMismatch)
}

func TestSnapshotIsIndependent(t *testing.T) {
	a := newTestAttractor()
	snap := a.Snapshot()

	require.NoError(t, a.SetParameterValue(ParamA, 9.0))
	c := a.Coloring()
	c.Stops[0].Color = common.Color{0, 0, 0, 0}
	a.SetColoring(c)

	v, ok := snap.ValueAt(ParamA, 0)
	require.True(t, ok)
	assert.Equal(t, 1.4, v.Float())
	assert.Equal(t, DefaultColoring().Stops[0].Color, snap.Coloring().Stops[0].Color)
	assert.Equal(t, a.ID(), snap.ID())
	assert.Equal(t, 6, snap.Len())

	_, ok = snap.ValueAt("missing", 0)
	assert.False(t, ok)
}

func TestColoringSample(t *testing.T) {
	c := Coloring{
		Mode: ColorModeGradient,
		Stops: []ColorStop{
			{Position: 1, Color: common.Color{1, 1, 1, 1}},
			{Position: 0, Color: common.Color{0, 0, 0, 1}},
		},
	}
	c = normalizeColoring(c)
	assert.Equal(t, common.Color{0, 0, 0, 1}, c.Sample(-1))
	assert.Equal(t, common.Color{0.5, 0.5, 0.5, 1}, c.Sample(0.5))
	assert.Equal(t, common.Color{1, 1, 1, 1}, c.Sample(2))

	c.Mode = ColorModeSolid
	assert.Equal(t, common.Color{0, 0, 0, 1}, c.ColorFor(0.9, 0))

	c.Mode = ColorModeVelocity
	c.VelocityScale = 2
	assert.Equal(t, common.Color{0.5, 0.5, 0.5, 1}, c.ColorFor(0, 1))

	assert.Equal(t, common.Color{1, 1, 1, 1}, Coloring{}.ColorFor(0.3, 0))
}

func TestColoringCloneIsDeep(t *testing.T) {
	c := DefaultColoring()
	d := c.Clone()
	d.Stops[0].Position = 0.5
	assert.Equal(t, float32(0), c.Stops[0].Position)
	assert.True(t, c.Equal(DefaultColoring()))
}

func TestFormulaRegistry(t *testing.T) {
	assert.Equal(t, []string{"clifford", "dejong", "pickover"}, FormulaNames()[:3])
	f, err := LookupFormula("pickover")
	require.NoError(t, err)
	assert.False(t, f.Planar())

	// all coefficients zero: x' = -z, y' = -1, z' = sin(x)
	p := f.Step(Point{0.5, 0.25, 2}, Coefficients{})
	assert.Equal(t, Point{-2, -1, p[2]}, p)
	assert.InDelta(t, 0.4794255, p[2], 1e-6)

	_, err = LookupFormula("nope")
	assert.Error(t, err)
}

func TestParseColorMode(t *testing.T) {
	m, err := ParseColorMode("Velocity")
	require.NoError(t, err)
	assert.Equal(t, ColorModeVelocity, m)
	m, err = ParseColorMode("")
	require.NoError(t, err)
	assert.Equal(t, ColorModeSolid, m)
	_, err = ParseColorMode("rainbow")
	assert.Error(t, err)
}
