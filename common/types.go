// package common contains common types that are used throughout the attractor pipeline. They are not interface-wrapped structs, just plain
// values and constants shared by the parameter model, the buffer pool, the compute task and the cache.
package common

// FrameID identifies one animation step. It is the key of the compute cache.
type FrameID uint64

const (
	// MiB is one mebibyte in bytes.
	MiB = 1 << 20

	// MaxBufferBytes is the hard cap on the size of a single pooled buffer.
	MaxBufferBytes = 512 * MiB

	// PositionComponents is the number of float32 values in one vertex position (x, y, z).
	PositionComponents = 3

	// ColorComponents is the number of float32 values in one color record (r, g, b, a).
	ColorComponents = 4

	// PositionStride is the size in bytes of one vertex position record.
	PositionStride = PositionComponents * 4

	// ColorStride is the size in bytes of one color record.
	ColorStride = ColorComponents * 4
)

// Color is an RGBA color with components in the range [0, 1].
type Color [4]float32
