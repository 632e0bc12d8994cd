package dataset

import "github.com/pkg/errors"

// MNISTClasses is the number of digit classes.
const MNISTClasses = 10

// LoadMNIST decodes the train and test archives found under dir. A zero
// count reads every record the archive declares.
func LoadMNIST(dir string, trainCount, testCount int) (train, test *Set, err error) {
	found, err := Discover(dir)
	if err != nil {
		return nil, nil, err
	}
	if err := Require(found, Archives...); err != nil {
		return nil, nil, err
	}
	if train, err = loadIDX(found[TrainImages], found[TrainLabels], trainCount); err != nil {
		return nil, nil, err
	}
	if test, err = loadIDX(found[TestImages], found[TestLabels], testCount); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func loadIDX(imagePath, labelPath string, count int) (*Set, error) {
	images, err := readImages(imagePath, count)
	if err != nil {
		return nil, err
	}
	labels, err := readLabels(labelPath, count)
	if err != nil {
		return nil, err
	}
	return NewSet(images, labels)
}

func readImages(path string, count int) (*ImageSet, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	images, err := DecodeImages(rc, count)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return images, nil
}

func readLabels(path string, count int) (*LabelSet, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	labels, err := DecodeLabels(rc, count, MNISTClasses)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return labels, nil
}
