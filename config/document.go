package config

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-attractors/common"
	"github.com/Carmen-Shannon/oxy-attractors/engine/attractor"
	"github.com/Carmen-Shannon/oxy-attractors/engine/parameter"
)

// ErrInvalidDocument is returned when an attractor document cannot be turned into an attractor.
var ErrInvalidDocument = errors.New("config: invalid attractor document")

// AttractorDocument is the serialized form of an attractor.
type AttractorDocument struct {
	Name       string              `yaml:"name" toml:"name"`
	Formula    string              `yaml:"formula" toml:"formula"`
	Parameters []ParameterDocument `yaml:"parameters" toml:"parameters"`
	Coloring   *ColoringDocument   `yaml:"coloring,omitempty" toml:"coloring,omitempty"`
}

// ParameterDocument is one named parameter with an optional keyframe animation.
// Kind may be omitted for the formula's required parameters.
type ParameterDocument struct {
	Name      string             `yaml:"name" toml:"name"`
	Kind      string             `yaml:"kind,omitempty" toml:"kind,omitempty"`
	Value     any                `yaml:"value" toml:"value"`
	KeyFrames []KeyFrameDocument `yaml:"keyframes,omitempty" toml:"keyframes,omitempty"`
}

// KeyFrameDocument is one keyframe: the value held at the start of a window of Duration frames.
type KeyFrameDocument struct {
	Value    any    `yaml:"value" toml:"value"`
	Duration uint32 `yaml:"duration" toml:"duration"`
}

// ColoringDocument is the serialized form of attractor.Coloring.
type ColoringDocument struct {
	Mode          string         `yaml:"mode" toml:"mode"`
	VelocityScale float32        `yaml:"velocity_scale,omitempty" toml:"velocity_scale,omitempty"`
	Stops         []StopDocument `yaml:"stops" toml:"stops"`
}

// StopDocument is one color ramp stop.
type StopDocument struct {
	Position float32    `yaml:"position" toml:"position"`
	Color    [4]float32 `yaml:"color" toml:"color"`
}

// DefaultDocument returns a Pickover attractor whose first coefficient sweeps over 300 frames.
func DefaultDocument() AttractorDocument {
	return AttractorDocument{
		Name:    "pickover",
		Formula: attractor.DefaultFormula,
		Parameters: []ParameterDocument{
			{Name: attractor.ParamA, Value: 2.24, KeyFrames: []KeyFrameDocument{
				{Value: 2.24, Duration: 150},
				{Value: 2.4, Duration: 150},
			}},
			{Name: attractor.ParamB, Value: 0.43},
			{Name: attractor.ParamC, Value: -0.65},
			{Name: attractor.ParamD, Value: -2.43},
			{Name: attractor.ParamIterations, Value: 1_000_000},
			{Name: attractor.ParamSkipIterations, Value: 100},
		},
	}
}

// Build creates a new attractor from the document and validates it.
//
// Returns:
//   - attractor.Attractor: the attractor, dirty so that the first request computes it
//   - error: ErrInvalidDocument wrapping the first problem found
func (d AttractorDocument) Build() (attractor.Attractor, error) {
	params, err := d.parameters()
	if err != nil {
		return nil, err
	}
	coloring, err := d.coloring()
	if err != nil {
		return nil, err
	}
	formula := common.Coalesce(d.Formula, attractor.DefaultFormula)
	if _, err := attractor.LookupFormula(formula); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	a := attractor.NewAttractor(
		common.Coalesce(d.Name, formula),
		attractor.WithFormula(formula),
		attractor.WithParameters(params...),
		attractor.WithColoring(coloring),
	)
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return a, nil
}

// Apply updates a live attractor in place so that it matches the document.
// Every change goes through the attractor's mutators, so it is marked dirty only when
// something actually differs. Parameters missing from the document are removed.
// The document is checked completely before anything is changed.
//
// Parameters:
//   - a: the attractor to update
//
// Returns:
//   - error: ErrInvalidDocument wrapping the first problem found
func (d AttractorDocument) Apply(a attractor.Attractor) error {
	params, err := d.parameters()
	if err != nil {
		return err
	}
	coloring, err := d.coloring()
	if err != nil {
		return err
	}
	if err := a.SetFormula(common.Coalesce(d.Formula, attractor.DefaultFormula)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	keep := make(map[string]struct{}, len(params))
	for _, p := range params {
		keep[p.Name()] = struct{}{}
		existing, ok := a.Parameter(p.Name())
		if ok && existing.Kind() != p.Kind() {
			a.RemoveParameter(p.Name())
			ok = false
		}
		if !ok {
			if err := a.AddParameter(p); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
			}
			continue
		}
		if err := a.SetParameterValue(p.Name(), p.Value()); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
		if err := a.SetParameterAnimation(p.Name(), p.Animation()); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
		}
	}
	for _, p := range a.Parameters() {
		if _, ok := keep[p.Name()]; !ok {
			a.RemoveParameter(p.Name())
		}
	}

	a.SetColoring(coloring)
	return nil
}

// parameters converts the parameter documents, rejecting duplicates and bad values.
func (d AttractorDocument) parameters() ([]parameter.Parameter, error) {
	required := make(map[string]parameter.Kind)
	for _, req := range attractor.Requirements() {
		required[req.Name] = req.Kind
	}

	seen := make(map[string]struct{}, len(d.Parameters))
	params := make([]parameter.Parameter, 0, len(d.Parameters))
	for _, pd := range d.Parameters {
		if pd.Name == "" {
			return nil, fmt.Errorf("%w: parameter without a name", ErrInvalidDocument)
		}
		if _, dup := seen[pd.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate parameter %q", ErrInvalidDocument, pd.Name)
		}
		seen[pd.Name] = struct{}{}

		kind, err := pd.kind(required)
		if err != nil {
			return nil, err
		}
		value, err := parameter.NewValue(kind, pd.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: parameter %q: %w", ErrInvalidDocument, pd.Name, err)
		}

		var options []parameter.ParameterBuilderOption
		if len(pd.KeyFrames) > 0 {
			keyFrames := make([]parameter.KeyFrame, 0, len(pd.KeyFrames))
			for i, kd := range pd.KeyFrames {
				v, err := parameter.NewValue(kind, kd.Value)
				if err != nil {
					return nil, fmt.Errorf("%w: parameter %q keyframe %d: %w", ErrInvalidDocument, pd.Name, i, err)
				}
				keyFrames = append(keyFrames, parameter.KeyFrame{Value: v, Duration: kd.Duration})
			}
			options = append(options, parameter.WithKeyFrames(keyFrames...))
		}
		params = append(params, parameter.NewParameter(pd.Name, value, options...))
	}
	return params, nil
}

// kind resolves the declared kind, falling back to the formula requirement and then to the value's type.
func (pd ParameterDocument) kind(required map[string]parameter.Kind) (parameter.Kind, error) {
	if pd.Kind != "" {
		k, err := parameter.ParseKind(pd.Kind)
		if err != nil {
			return 0, fmt.Errorf("%w: parameter %q: %w", ErrInvalidDocument, pd.Name, err)
		}
		return k, nil
	}
	if k, ok := required[pd.Name]; ok {
		return k, nil
	}
	switch pd.Value.(type) {
	case int, int64, uint64:
		return parameter.KindInt, nil
	default:
		return parameter.KindFloat, nil
	}
}

// coloring converts the coloring document, defaulting when absent.
func (d AttractorDocument) coloring() (attractor.Coloring, error) {
	if d.Coloring == nil {
		return attractor.DefaultColoring(), nil
	}
	mode, err := attractor.ParseColorMode(d.Coloring.Mode)
	if err != nil {
		return attractor.Coloring{}, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	c := attractor.Coloring{
		Mode:          mode,
		VelocityScale: common.Coalesce(d.Coloring.VelocityScale, 1),
	}
	for _, s := range d.Coloring.Stops {
		c.Stops = append(c.Stops, attractor.ColorStop{Position: s.Position, Color: common.Color(s.Color)})
	}
	return c, nil
}

// Document converts a live attractor back into its serialized form.
//
// Parameters:
//   - a: the attractor
//
// Returns:
//   - AttractorDocument: the document
func Document(a attractor.Attractor) AttractorDocument {
	d := AttractorDocument{
		Name:    a.Name(),
		Formula: a.Formula(),
	}
	for _, p := range a.Parameters() {
		pd := ParameterDocument{Name: p.Name(), Kind: p.Kind().String(), Value: scalar(p.Value())}
		for _, kf := range p.Animation().KeyFrames() {
			pd.KeyFrames = append(pd.KeyFrames, KeyFrameDocument{Value: scalar(kf.Value), Duration: kf.Duration})
		}
		d.Parameters = append(d.Parameters, pd)
	}
	c := a.Coloring()
	cd := &ColoringDocument{Mode: c.Mode.String(), VelocityScale: c.VelocityScale}
	for _, s := range c.Stops {
		cd.Stops = append(cd.Stops, StopDocument{Position: s.Position, Color: [4]float32(s.Color)})
	}
	d.Coloring = cd
	return d
}

func scalar(v parameter.Value) any {
	if v.Kind() == parameter.KindInt {
		return v.Int()
	}
	return v.Float()
}
