package godem

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBinGridRejectsSubVoxelBinSize(t *testing.T) {
	frame, err := NewWorldFrame(10, 10, 12, 1e-3)
	require.NoError(t, err)
	_, err = NewBinGrid(frame, frame.VoxelSize()/2)
	require.Error(t, err)
}

func TestBinsForSphereCoversExpandedRadius(t *testing.T) {
	frame, err := NewWorldFrame(10, 10, 12, 1e-6)
	require.NoError(t, err)
	grid, err := NewBinGrid(frame, 1.0)
	require.NoError(t, err)

	bins := grid.BinsForSphere(mgl64.Vec3{0, 0, 0}, 0.1)
	assert.NotEmpty(t, bins)

	wideBins := grid.BinsForSphere(mgl64.Vec3{0, 0, 0}, 5.0)
	assert.Greater(t, len(wideBins), len(bins))
}

func TestHalveBinSizeStopsAtVoxelFloor(t *testing.T) {
	frame, err := NewWorldFrame(10, 10, 12, 1e-3)
	require.NoError(t, err)
	grid, err := NewBinGrid(frame, frame.VoxelSize()*2)
	require.NoError(t, err)

	require.NoError(t, grid.HalveBinSize())
	err = grid.HalveBinSize()
	require.Error(t, err)
}
