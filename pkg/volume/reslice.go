package volume

import (
	"fmt"

	"mrivolumestopng/internal/models"
)

// Axis names the direction frames are taken along
type Axis string

const (
	// AxisX yields height x depth frames, one per column, with rows along
	// the file's third axis
	AxisX Axis = "x"
	// AxisY yields width x depth frames, one per row
	AxisY Axis = "y"
	// AxisZ yields width x height frames, one per acquisition frame
	AxisZ Axis = "z"
)

// DefaultAxis takes one frame per sample of the file's first axis
const DefaultAxis = AxisX

// ParseAxis accepts x, y or z in either case. An empty string selects
// DefaultAxis
func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "X", "":
		return AxisX, nil
	case "y", "Y":
		return AxisY, nil
	case "z", "Z":
		return AxisZ, nil
	}
	return "", fmt.Errorf("invalid axis: %s (must be x, y, or z)", s)
}

// Count returns the number of frames along the axis
func Count(v *models.Volume, axis Axis) int {
	switch axis {
	case AxisX:
		return v.Width
	case AxisY:
		return v.Height
	default:
		return v.Depth
	}
}

// ExtractFrame copies the frame at position along axis out of the volume
func ExtractFrame(v *models.Volume, axis Axis, position int) (models.Frame, error) {
	if position < 0 {
		return models.Frame{}, fmt.Errorf("position must be non-negative")
	}

	plane := v.Width * v.Height
	var f models.Frame

	switch axis {
	case AxisX:
		// YZ plane
		if position >= v.Width {
			return models.Frame{}, fmt.Errorf("position %d exceeds width %d", position, v.Width)
		}
		f = models.NewFrame(v.Height, v.Depth)
		for z := 0; z < v.Depth; z++ {
			for y := 0; y < v.Height; y++ {
				f.Data[z*v.Height+y] = v.Data[z*plane+y*v.Width+position]
			}
		}

	case AxisY:
		// XZ plane
		if position >= v.Height {
			return models.Frame{}, fmt.Errorf("position %d exceeds height %d", position, v.Height)
		}
		f = models.NewFrame(v.Width, v.Depth)
		for z := 0; z < v.Depth; z++ {
			copy(f.Data[z*v.Width:(z+1)*v.Width], v.Data[z*plane+position*v.Width:])
		}

	case AxisZ:
		// XY plane
		if position >= v.Depth {
			return models.Frame{}, fmt.Errorf("position %d exceeds depth %d", position, v.Depth)
		}
		f = models.NewFrame(v.Width, v.Height)
		copy(f.Data, v.Data[position*plane:(position+1)*plane])

	default:
		return models.Frame{}, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return f, nil
}

// Reslice returns a new volume whose frames run along axis. Reslicing
// along z returns the volume itself
func Reslice(v *models.Volume, axis Axis) (*models.Volume, error) {
	if axis == AxisZ {
		return v, nil
	}

	n := Count(v, axis)
	var out *models.Volume
	for pos := 0; pos < n; pos++ {
		f, err := ExtractFrame(v, axis, pos)
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = models.NewVolume(f.Width, f.Height, n)
		}
		copy(out.Data[pos*len(f.Data):], f.Data)
	}
	if out == nil {
		return nil, fmt.Errorf("volume has no frames along %s", axis)
	}

	switch axis {
	case AxisX:
		out.VoxelSize.X, out.VoxelSize.Y, out.VoxelSize.Z = v.VoxelSize.Y, v.VoxelSize.Z, v.VoxelSize.X
	case AxisY:
		out.VoxelSize.X, out.VoxelSize.Y, out.VoxelSize.Z = v.VoxelSize.X, v.VoxelSize.Z, v.VoxelSize.Y
	}
	return out, nil
}
