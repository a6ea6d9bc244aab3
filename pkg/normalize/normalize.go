// Package normalize rescales arbitrary-range frames into 8-bit grayscale
package normalize

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"mrivolumestopng/internal/models"
)

// Normalizer maps a numeric frame to an 8-bit frame of the same shape
type Normalizer interface {
	Normalize(frame models.Frame) models.GrayFrame
}

// MinMax is the linear min/max Normalizer
type MinMax struct{}

// Normalize implements Normalizer
func (MinMax) Normalize(frame models.Frame) models.GrayFrame {
	return Frame(frame)
}

// Frame linearly rescales frame so that its minimum maps to 0 and its
// maximum to 255, truncating toward zero. A constant frame, or one holding
// a NaN sample, maps to black. The input is never modified
func Frame(frame models.Frame) models.GrayFrame {
	out := models.NewGrayFrame(frame.Width, frame.Height)
	if len(frame.Data) == 0 || floats.HasNaN(frame.Data) {
		return out
	}

	minVal := floats.Min(frame.Data)
	maxVal := floats.Max(frame.Data)
	if !(maxVal > minVal) {
		return out
	}

	span := maxVal - minVal
	for i, v := range frame.Data {
		scaled := (v - minVal) / span * 255.0
		if scaled >= 255 {
			out.Pix[i] = 255
			continue
		}
		if scaled <= 0 {
			continue
		}
		out.Pix[i] = uint8(scaled)
	}
	return out
}

// Stats summarises the intensity range of a frame
type Stats struct {
	Min, Max, Mean float64
}

// Summarize returns min, max and mean of the frame samples. An empty
// frame yields the zero Stats
func Summarize(frame models.Frame) Stats {
	if len(frame.Data) == 0 {
		return Stats{}
	}
	return Stats{
		Min:  floats.Min(frame.Data),
		Max:  floats.Max(frame.Data),
		Mean: stat.Mean(frame.Data, nil),
	}
}
