package attractor

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-attractors/common"
	"github.com/jinzhu/copier"
)

// ColorMode selects how a retained iteration is mapped to a color.
type ColorMode int

const (
	// ColorModeSolid paints every vertex with the first stop's color.
	ColorModeSolid ColorMode = iota

	// ColorModeGradient samples the stops by the vertex's position in the retained sequence.
	ColorModeGradient

	// ColorModeVelocity samples the stops by the distance travelled in the step that produced the vertex.
	ColorModeVelocity
)

// String returns the lowercase name of the mode.
func (m ColorMode) String() string {
	switch m {
	case ColorModeSolid:
		return "solid"
	case ColorModeGradient:
		return "gradient"
	case ColorModeVelocity:
		return "velocity"
	default:
		return fmt.Sprintf("ColorMode(%d)", int(m))
	}
}

// ParseColorMode converts a mode name into a ColorMode.
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "solid":
		return ColorModeSolid, nil
	case "gradient":
		return ColorModeGradient, nil
	case "velocity":
		return ColorModeVelocity, nil
	default:
		return 0, fmt.Errorf("attractor: unknown color mode %q", s)
	}
}

// ColorStop is one control point of a color ramp.
type ColorStop struct {
	// Position is the stop's location on the ramp in [0, 1].
	Position float32
	// Color is the RGBA color at Position.
	Color common.Color
}

// Coloring configures the color channel of the compute output.
type Coloring struct {
	// Mode selects the sampling input.
	Mode ColorMode
	// Stops are the ramp's control points, sorted by Position.
	Stops []ColorStop
	// VelocityScale is the step length mapped to the end of the ramp in ColorModeVelocity.
	VelocityScale float32
}

// DefaultColoring returns a white-to-blue gradient.
func DefaultColoring() Coloring {
	return Coloring{
		Mode: ColorModeGradient,
		Stops: []ColorStop{
			{Position: 0, Color: common.Color{1, 1, 1, 0.6}},
			{Position: 1, Color: common.Color{0.2, 0.4, 1, 0.6}},
		},
		VelocityScale: 1,
	}
}

// Clone returns a deep copy of the coloring.
func (c Coloring) Clone() Coloring {
	var out Coloring
	if err := copier.CopyWithOption(&out, &c, copier.Option{DeepCopy: true}); err != nil {
		out = c
		out.Stops = slices.Clone(c.Stops)
	}
	return out
}

// Equal reports whether two colorings produce the same colors.
func (c Coloring) Equal(other Coloring) bool {
	return c.Mode == other.Mode && c.VelocityScale == other.VelocityScale && slices.Equal(c.Stops, other.Stops)
}

// Sample returns the ramp color at t, clamped to the first and last stops.
//
// Parameters:
//   - t: the ramp position
//
// Returns:
//   - common.Color: the interpolated color, or opaque white if there are no stops
func (c Coloring) Sample(t float32) common.Color {
	if len(c.Stops) == 0 {
		return common.Color{1, 1, 1, 1}
	}
	if t <= c.Stops[0].Position || len(c.Stops) == 1 {
		return c.Stops[0].Color
	}
	for i := 1; i < len(c.Stops); i++ {
		lo, hi := c.Stops[i-1], c.Stops[i]
		if t > hi.Position {
			continue
		}
		span := hi.Position - lo.Position
		if span <= 0 {
			return hi.Color
		}
		f := (t - lo.Position) / span
		var out common.Color
		for k := range out {
			out[k] = lo.Color[k] + f*(hi.Color[k]-lo.Color[k])
		}
		return out
	}
	return c.Stops[len(c.Stops)-1].Color
}

// ColorFor resolves the color of one retained vertex.
//
// Parameters:
//   - progress: the vertex's position in the retained sequence, in [0, 1]
//   - speed: the length of the step that produced the vertex
//
// Returns:
//   - common.Color: the vertex color
func (c Coloring) ColorFor(progress, speed float32) common.Color {
	switch c.Mode {
	case ColorModeGradient:
		return c.Sample(progress)
	case ColorModeVelocity:
		scale := c.VelocityScale
		if scale <= 0 {
			scale = 1
		}
		return c.Sample(common.Clamp(speed/scale, 0, 1))
	default:
		if len(c.Stops) == 0 {
			return common.Color{1, 1, 1, 1}
		}
		return c.Stops[0].Color
	}
}
