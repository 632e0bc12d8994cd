package dataset

import "github.com/pkg/errors"

// ImageSet holds normalised pixel data for a run of same-shaped images.
// Pixels are stored image after image; within an image the layout is the
// archive's own (row-major for IDX, channel-major for CIFAR).
type ImageSet struct {
	Rows     int
	Cols     int
	Channels int
	Pixels   []float64
}

// Len returns the number of images.
func (s *ImageSet) Len() int {
	size := s.Size()
	if size == 0 {
		return 0
	}
	return len(s.Pixels) / size
}

// Size returns the number of values in a single image.
func (s *ImageSet) Size() int {
	return s.Rows * s.Cols * s.Channels
}

// Image returns a view of image i.
func (s *ImageSet) Image(i int) []float64 {
	size := s.Size()
	return s.Pixels[i*size : (i+1)*size : (i+1)*size]
}

// Slice returns a view of images [start, end).
func (s *ImageSet) Slice(start, end int) *ImageSet {
	size := s.Size()
	out := *s
	out.Pixels = s.Pixels[start*size : end*size : end*size]
	return &out
}

// LabelSet holds class indices in [0, NumClasses).
type LabelSet struct {
	NumClasses int
	Labels     []int
}

func (l *LabelSet) Len() int { return len(l.Labels) }

// OneHot returns the one-hot vector for label i.
func (l *LabelSet) OneHot(i int) []float64 {
	return OneHot(l.Labels[i], l.NumClasses)
}

// Slice returns a view of labels [start, end).
func (l *LabelSet) Slice(start, end int) *LabelSet {
	return &LabelSet{NumClasses: l.NumClasses, Labels: l.Labels[start:end:end]}
}

// OneHot encodes label as a vector of length numClasses with a single 1.
func OneHot(label, numClasses int) []float64 {
	v := make([]float64, numClasses)
	v[label] = 1
	return v
}

// Set pairs images with their labels.
type Set struct {
	Images *ImageSet
	Labels *LabelSet
}

// NewSet pairs images and labels, failing when their lengths differ.
func NewSet(images *ImageSet, labels *LabelSet) (*Set, error) {
	if images.Len() != labels.Len() {
		return nil, errors.Wrapf(ErrCountMismatch, "%d images, %d labels", images.Len(), labels.Len())
	}
	return &Set{Images: images, Labels: labels}, nil
}

func (s *Set) Len() int { return s.Labels.Len() }

// NumClasses returns the label arity.
func (s *Set) NumClasses() int { return s.Labels.NumClasses }

// Slice returns a view of records [start, end).
func (s *Set) Slice(start, end int) *Set {
	return &Set{Images: s.Images.Slice(start, end), Labels: s.Labels.Slice(start, end)}
}

// Inputs returns per-image views suitable for feeding a model.
func (s *Set) Inputs() [][]float64 {
	out := make([][]float64, s.Len())
	for i := range out {
		out[i] = s.Images.Image(i)
	}
	return out
}
