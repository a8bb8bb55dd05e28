package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "b", Coalesce("", "b", "c"))
	assert.Equal(t, uint64(7), Coalesce(uint64(0), 0, 7))
	assert.Zero(t, Coalesce(0, 0))
	assert.Zero(t, Coalesce[string]())
}

func TestClamp(t *testing.T) {
	assert.Equal(t, float32(0), Clamp(float32(-0.5), 0, 1))
	assert.Equal(t, float32(0.25), Clamp(float32(0.25), 0, 1))
	assert.Equal(t, 10, Clamp(42, 0, 10))
}

func TestSliceBytesRoundTrip(t *testing.T) {
	in := []float32{1, 2.5, -3}
	b := SliceToBytes(in)
	assert.Len(t, b, 12)
	assert.Equal(t, in, BytesToSlice[float32](b))
	assert.Len(t, BytesToSlice[float32](b[:7]), 1, "trailing bytes are ignored")
	assert.Nil(t, SliceToBytes([]float32{}))
	assert.Nil(t, BytesToSlice[float32](b[:3]))
}

func TestLerpEndpointsAreExact(t *testing.T) {
	assert.Equal(t, 500.0, Lerp(500, 200, 0))
	assert.Equal(t, 350.0, Lerp(500, 200, 0.5))
	assert.InDelta(t, 200.0, Lerp(500, 200, 1), 1e-12)
}
