// Package pairing matches image volumes with their label volumes by name
// and walks the matched frames index by index
package pairing

import (
	"iter"
	"strings"

	"mrivolumestopng/internal/models"
)

// LabelSuffix is appended to the series/index prefix of an image name
const LabelSuffix = "_labels"

// NamingStrategy derives the label volume name for an image volume name.
// ok is false when no label name can be derived
type NamingStrategy func(imageName string) (labelName string, ok bool)

// LabelName keeps the first two '_' separated tokens of the image name and
// appends "_labels": "acq_01" and "acq_01_frames" both yield "acq_01_labels"
func LabelName(imageName string) (string, bool) {
	tokens := strings.Split(imageName, "_")
	if len(tokens) < 2 {
		return "", false
	}
	return tokens[0] + "_" + tokens[1] + LabelSuffix, true
}

// Pair is an image volume together with its label volume
type Pair struct {
	Name      string
	LabelName string
	Image     *models.Volume
	Label     *models.Volume
}

// FramePair is one position-aligned image/label frame couple
type FramePair struct {
	Index int
	Image models.Frame
	Label models.Frame
}

// Depth is the number of frames that are paired, min(image, label)
func (p Pair) Depth() int {
	return min(p.Image.Depth, p.Label.Depth)
}

// Dropped is the number of trailing frames of the longer volume that have
// no counterpart and are never paired
func (p Pair) Dropped() int {
	if p.Image.Depth > p.Label.Depth {
		return p.Image.Depth - p.Label.Depth
	}
	return p.Label.Depth - p.Image.Depth
}

// Frames yields frame couples from index 0 up to Depth()
func (p Pair) Frames() iter.Seq[FramePair] {
	return func(yield func(FramePair) bool) {
		for i := 0; i < p.Depth(); i++ {
			fp := FramePair{Index: i, Image: p.Image.Frame(i), Label: p.Label.Frame(i)}
			if !yield(fp) {
				return
			}
		}
	}
}

// Result is the outcome of matching two volume sets
type Result struct {
	// Pairs holds the matched volumes ordered by image name
	Pairs []Pair

	// Unmatched lists image volumes with no label volume
	Unmatched []string
}

// Truncated sums the frames dropped across all pairs
func (r Result) Truncated() int {
	n := 0
	for _, p := range r.Pairs {
		n += p.Dropped()
	}
	return n
}

// Match pairs every image volume with the label volume named by naming.
// A nil naming selects LabelName. Label volumes that match no image are
// ignored
func Match(images, labels models.NamedVolumeSet, naming NamingStrategy) Result {
	if naming == nil {
		naming = LabelName
	}

	var res Result
	for _, name := range images.Names() {
		labelName, ok := naming(name)
		if !ok {
			res.Unmatched = append(res.Unmatched, name)
			continue
		}
		label, ok := labels[labelName]
		if !ok {
			res.Unmatched = append(res.Unmatched, name)
			continue
		}
		res.Pairs = append(res.Pairs, Pair{
			Name:      name,
			LabelName: labelName,
			Image:     images[name],
			Label:     label,
		})
	}
	return res
}
