package parameter

// ParameterBuilderOption is a functional option for configuring a Parameter during construction.
type ParameterBuilderOption func(*parameter)

// WithAnimation is an option builder that attaches an animation to the Parameter.
// Keyframes whose kind differs from the parameter's kind are coerced into it.
//
// Parameters:
//   - seq: the animation sequence; it is copied
//
// Returns:
//   - ParameterBuilderOption: a function that applies the animation to a parameter
func WithAnimation(seq *AnimationSequence) ParameterBuilderOption {
	return func(p *parameter) {
		if seq == nil {
			p.animation = nil
			return
		}
		c := seq.Clone()
		for i := range c.keyFrames {
			if c.keyFrames[i].Value.Kind() != p.Kind() {
				v := Zero(p.Kind())
				v.Set(c.keyFrames[i].Value)
				c.keyFrames[i].Value = v
			}
		}
		p.animation = c
	}
}

// WithKeyFrames is an option builder that attaches a linearly interpolated animation built
// from the given keyframes.
//
// Parameters:
//   - keyFrames: the keyframes in playback order
//
// Returns:
//   - ParameterBuilderOption: a function that applies the animation to a parameter
func WithKeyFrames(keyFrames ...KeyFrame) ParameterBuilderOption {
	return WithAnimation(NewAnimationSequence(keyFrames...))
}
