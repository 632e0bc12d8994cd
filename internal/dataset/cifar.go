package dataset

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CIFAR-100 binary layout: one coarse label byte, one fine label byte, then a
// 32x32 image stored channel-major (1024 red, 1024 green, 1024 blue).
const (
	CIFARSide       = 32
	CIFARChannels   = 3
	CIFARFine       = 100
	CIFARCoarse     = 20
	cifarImageBytes = CIFARSide * CIFARSide * CIFARChannels
	cifarRecord     = 2 + cifarImageBytes
)

// DecodeCIFAR100 reads count records from r; count == 0 reads to EOF. fine
// selects the 100-class labels instead of the 20 coarse superclasses.
func DecodeCIFAR100(r io.Reader, count int, fine bool) (*Set, error) {
	numClasses, labelAt := CIFARCoarse, 0
	if fine {
		numClasses, labelAt = CIFARFine, 1
	}
	images := &ImageSet{Rows: CIFARSide, Cols: CIFARSide, Channels: CIFARChannels}
	labels := &LabelSet{NumClasses: numClasses}
	if count > 0 {
		images.Pixels = make([]float64, 0, count*cifarImageBytes)
		labels.Labels = make([]int, 0, count)
	}
	rec := make([]byte, cifarRecord)
	for i := 0; count == 0 || i < count; i++ {
		_, err := io.ReadFull(r, rec)
		if err == io.EOF && count == 0 {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "cifar record %d: %v", i, err)
		}
		label := int(rec[labelAt])
		if label >= numClasses {
			return nil, errors.Wrapf(ErrMalformed, "cifar record %d: label %d outside [0,%d)", i, label, numClasses)
		}
		labels.Labels = append(labels.Labels, label)
		for _, b := range rec[2:] {
			images.Pixels = append(images.Pixels, Normalize(b))
		}
	}
	return NewSet(images, labels)
}

// LoadCIFAR100 reads train.bin and test.bin from dir or dir/cifar-100-binary.
func LoadCIFAR100(dir string, fine bool) (train, test *Set, err error) {
	base := dir
	if _, err := os.Stat(filepath.Join(dir, "train.bin")); err != nil {
		base = filepath.Join(dir, "cifar-100-binary")
	}
	if train, err = readCIFAR(filepath.Join(base, "train.bin"), fine); err != nil {
		return nil, nil, err
	}
	if test, err = readCIFAR(filepath.Join(base, "test.bin"), fine); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func readCIFAR(path string, fine bool) (*Set, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	set, err := DecodeCIFAR100(rc, 0, fine)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return set, nil
}
