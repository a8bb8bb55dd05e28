package parameter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrKindMismatch is returned when a value of one kind is used where another kind is required.
	ErrKindMismatch = errors.New("parameter: value kind mismatch")

	// ErrUnsupportedInput is returned when a setter receives an input type it cannot coerce.
	ErrUnsupportedInput = errors.New("parameter: unsupported input type")
)

// Kind is the variant tag of a Value.
type Kind int

const (
	// KindFloat marks a Value holding a float64 payload.
	KindFloat Kind = iota

	// KindInt marks a Value holding an int64 payload.
	KindInt
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind converts a kind name ("float", "int") into a Kind.
//
// Parameters:
//   - s: the kind name, case-insensitive
//
// Returns:
//   - Kind: the parsed kind
//   - error: an error if the name is not recognized
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float", "float64", "double":
		return KindFloat, nil
	case "int", "integer", "int64":
		return KindInt, nil
	default:
		return 0, fmt.Errorf("parameter: unknown kind %q", s)
	}
}

// Value is a tagged scalar over {float, integer}.
// The kind is fixed at construction; only the payload changes. Setters coerce
// string, integer and float inputs into the declared kind.
type Value struct {
	kind    Kind
	payload any
}

// NewFloat creates a float Value.
func NewFloat(v float64) Value {
	return Value{kind: KindFloat, payload: v}
}

// NewInt creates an integer Value.
func NewInt(v int64) Value {
	return Value{kind: KindInt, payload: v}
}

// NewValue creates a Value of the given kind from an untyped input, coercing it into the kind.
//
// Parameters:
//   - kind: the variant of the new value
//   - input: a string, integer or float input
//
// Returns:
//   - Value: the new value
//   - error: an error if the input cannot be coerced
func NewValue(kind Kind, input any) (Value, error) {
	v := Zero(kind)
	if _, err := v.Set(input); err != nil {
		return Value{}, err
	}
	return v, nil
}

// Zero returns the zero Value of the given kind.
func Zero(kind Kind) Value {
	if kind == KindInt {
		return NewInt(0)
	}
	return NewFloat(0)
}

// Kind returns the variant tag of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// Float returns the payload coerced to float64.
func (v Value) Float() float64 {
	switch p := v.payload.(type) {
	case float64:
		return p
	case int64:
		return float64(p)
	default:
		return 0
	}
}

// Int returns the payload coerced to int64. Float payloads are truncated toward zero.
func (v Value) Int() int64 {
	switch p := v.payload.(type) {
	case int64:
		return p
	case float64:
		return int64(p)
	default:
		return 0
	}
}

// String formats the payload according to its kind.
func (v Value) String() string {
	if v.kind == KindInt {
		return strconv.FormatInt(v.Int(), 10)
	}
	return strconv.FormatFloat(v.Float(), 'g', -1, 64)
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	if v.kind == KindInt {
		return v.Int() == other.Int()
	}
	return v.Float() == other.Float()
}

// Set coerces input into the value's kind and stores it as the new payload.
//
// Parameters:
//   - input: a string, any integer type, float32/float64 or another Value
//
// Returns:
//   - bool: true if the payload changed
//   - error: ErrUnsupportedInput for unknown input types, or a parse error for malformed strings
func (v *Value) Set(input any) (bool, error) {
	var f float64
	var i int64
	isInt := false

	switch in := input.(type) {
	case Value:
		if in.kind == KindInt {
			i, isInt = in.Int(), true
		} else {
			f = in.Float()
		}
	case string:
		s := strings.TrimSpace(in)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			i, isInt = n, true
		} else {
			parsed, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return false, fmt.Errorf("parameter: cannot parse %q as %s: %w", in, v.kind, err)
			}
			f = parsed
		}
	case int:
		i, isInt = int64(in), true
	case int8:
		i, isInt = int64(in), true
	case int16:
		i, isInt = int64(in), true
	case int32:
		i, isInt = int64(in), true
	case int64:
		i, isInt = in, true
	case uint:
		i, isInt = int64(in), true
	case uint8:
		i, isInt = int64(in), true
	case uint16:
		i, isInt = int64(in), true
	case uint32:
		i, isInt = int64(in), true
	case uint64:
		if in > math.MaxInt64 {
			return false, fmt.Errorf("parameter: %d overflows int64: %w", in, ErrUnsupportedInput)
		}
		i, isInt = int64(in), true
	case float32:
		f = float64(in)
	case float64:
		f = in
	default:
		return false, fmt.Errorf("parameter: %T: %w", input, ErrUnsupportedInput)
	}

	var next any
	switch v.kind {
	case KindInt:
		if isInt {
			next = i
		} else {
			next = int64(f)
		}
	default:
		if isInt {
			next = float64(i)
		} else {
			next = f
		}
	}

	changed := v.payload != next
	v.payload = next
	return changed, nil
}

// SetFloat stores f, coerced into the value's kind.
func (v *Value) SetFloat(f float64) bool {
	changed, _ := v.Set(f)
	return changed
}

// SetInt stores i, coerced into the value's kind.
func (v *Value) SetInt(i int64) bool {
	changed, _ := v.Set(i)
	return changed
}
