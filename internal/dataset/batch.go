package dataset

import "github.com/pkg/errors"

// Split partitions a set into a leading validation slice and the remaining
// training pool.
type Split struct {
	Validation *Set
	Training   *Set
}

// SplitValidation reserves the first size records of set for validation.
func SplitValidation(set *Set, size int) (Split, error) {
	if size < 0 || size > set.Len() {
		return Split{}, errors.Errorf("dataset: validation size %d outside [0,%d]", size, set.Len())
	}
	return Split{
		Validation: set.Slice(0, size),
		Training:   set.Slice(size, set.Len()),
	}, nil
}

// BatchOffset returns the start of the mini-batch for step. Offsets advance
// sequentially and wrap modulo trainSize-batchSize, so the schedule is
// identical on every run.
func BatchOffset(step, batchSize, trainSize int) int {
	return (step * batchSize) % (trainSize - batchSize)
}

// NextBatch returns the view of train used at step.
func NextBatch(train *Set, step, batchSize int) *Set {
	offset := BatchOffset(step, batchSize, train.Len())
	return train.Slice(offset, offset+batchSize)
}
