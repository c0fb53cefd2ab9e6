package godem

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorldFrameValidatesAxisSum(t *testing.T) {
	_, err := NewWorldFrame(10, 10, 10, 1e-6)
	require.Error(t, err)

	_, err = NewWorldFrame(10, 10, 12, 1e-6)
	require.NoError(t, err)
}

func TestNewWorldFrameRejectsNonPositiveLengthUnit(t *testing.T) {
	_, err := NewWorldFrame(10, 10, 12, 0)
	require.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	frame, err := NewWorldFrame(10, 10, 12, 1e-6)
	require.NoError(t, err)

	p := mgl64.Vec3{1.234, 5.678, 0.001}
	enc := frame.Encode(p)
	dec := frame.Decode(enc)

	assert.InDelta(t, p.X(), dec.X(), frame.LengthUnit())
	assert.InDelta(t, p.Y(), dec.Y(), frame.LengthUnit())
	assert.InDelta(t, p.Z(), dec.Z(), frame.LengthUnit())
}

func TestPositionNormalizesOffsetCarry(t *testing.T) {
	frame, err := NewWorldFrame(10, 10, 12, 1e-6)
	require.NoError(t, err)

	base := frame.Encode(mgl64.Vec3{0, 0, 0})
	overflowed := Position{VoxelID: base.VoxelID, Ox: frame.VoxelSize() * 1.5, Oy: 0, Oz: 0}
	norm := frame.normalize(overflowed)

	assert.GreaterOrEqual(t, norm.Ox, 0.0)
	assert.Less(t, norm.Ox, frame.VoxelSize())
	assert.NotEqual(t, base.VoxelID, norm.VoxelID)
}
