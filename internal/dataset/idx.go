package dataset

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// IDX magic numbers for unsigned-byte image (3-dim) and label (1-dim) archives.
const (
	ImageMagic = 0x00000803
	LabelMagic = 0x00000801
)

// PixelDepth is the maximum raw pixel value.
const PixelDepth = 255

// MaxPayload caps the payload size a header may declare.
const MaxPayload = math.MaxInt32

var (
	// ErrMalformed reports an archive whose bytes disagree with its header.
	ErrMalformed = errors.New("dataset: malformed archive")
	// ErrCountMismatch reports image and label sets of different length.
	ErrCountMismatch = errors.New("dataset: image/label count mismatch")
)

type imageHeader struct{ Magic, Count, Rows, Cols uint32 }

type labelHeader struct{ Magic, Count uint32 }

// Normalize maps a raw pixel byte onto [-0.5, 0.5].
func Normalize(b byte) float64 {
	return (float64(b) - PixelDepth/2.0) / PixelDepth
}

// DecodeImages reads an IDX image archive from r. Exactly count images are
// read; count == 0 reads as many as the header declares. Rows and Cols are
// taken from the header as is, so rectangular images are accepted.
func DecodeImages(r io.Reader, count int) (*ImageSet, error) {
	var head imageHeader
	if err := binary.Read(r, binary.BigEndian, &head); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "image header: %v", err)
	}
	if head.Magic != ImageMagic {
		return nil, errors.Wrapf(ErrMalformed, "image magic %#08x, want %#08x", head.Magic, ImageMagic)
	}
	n, err := recordCount(count, head.Count)
	if err != nil {
		return nil, err
	}
	rows, cols := int(head.Rows), int(head.Cols)
	if rows == 0 || cols == 0 {
		return nil, errors.Wrapf(ErrMalformed, "image dimensions %dx%d", rows, cols)
	}
	per := uint64(head.Rows) * uint64(head.Cols)
	if per > MaxPayload || uint64(n) > MaxPayload/per {
		return nil, errors.Wrapf(ErrMalformed, "%d images of %dx%d exceed %d bytes", n, rows, cols, MaxPayload)
	}
	buf, err := readPayload(r, n*rows*cols)
	if err != nil {
		return nil, errors.Wrapf(err, "read %d images of %dx%d", n, rows, cols)
	}
	pixels := make([]float64, len(buf))
	for i, b := range buf {
		pixels[i] = Normalize(b)
	}
	return &ImageSet{Rows: rows, Cols: cols, Channels: 1, Pixels: pixels}, nil
}

// DecodeLabels reads an IDX label archive from r, rejecting labels outside
// [0, numClasses).
func DecodeLabels(r io.Reader, count, numClasses int) (*LabelSet, error) {
	var head labelHeader
	if err := binary.Read(r, binary.BigEndian, &head); err != nil {
		return nil, errors.Wrapf(ErrMalformed, "label header: %v", err)
	}
	if head.Magic != LabelMagic {
		return nil, errors.Wrapf(ErrMalformed, "label magic %#08x, want %#08x", head.Magic, LabelMagic)
	}
	n, err := recordCount(count, head.Count)
	if err != nil {
		return nil, err
	}
	if n > MaxPayload {
		return nil, errors.Wrapf(ErrMalformed, "%d labels exceed %d bytes", n, MaxPayload)
	}
	buf, err := readPayload(r, n)
	if err != nil {
		return nil, errors.Wrapf(err, "read %d labels", n)
	}
	labels := make([]int, n)
	for i, b := range buf {
		if int(b) >= numClasses {
			return nil, errors.Wrapf(ErrMalformed, "label %d at record %d outside [0,%d)", b, i, numClasses)
		}
		labels[i] = int(b)
	}
	return &LabelSet{NumClasses: numClasses, Labels: labels}, nil
}

func recordCount(want int, declared uint32) (int, error) {
	if want < 0 {
		return 0, errors.Errorf("dataset: negative record count %d", want)
	}
	if want == 0 {
		return int(declared), nil
	}
	if want > int(declared) {
		return 0, errors.Wrapf(ErrMalformed, "want %d records, header declares %d", want, declared)
	}
	return want, nil
}

// readPayload reads exactly size bytes. The buffer grows with the data
// actually read, so a header declaring more than the stream holds fails
// without allocating the declared size up front.
func readPayload(r io.Reader, size int) ([]byte, error) {
	var buf bytes.Buffer
	got, err := io.CopyN(&buf, r, int64(size))
	if err != nil {
		return nil, errors.Wrapf(ErrMalformed, "got %d of %d bytes: %v", got, size, err)
	}
	return buf.Bytes(), nil
}
