package dataset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// Archive identifies one of the four MNIST archive files.
type Archive string

const (
	TrainImages Archive = "train-images-idx3-ubyte"
	TrainLabels Archive = "train-labels-idx1-ubyte"
	TestImages  Archive = "t10k-images-idx3-ubyte"
	TestLabels  Archive = "t10k-labels-idx1-ubyte"
)

// Archives lists every archive a full MNIST run needs.
var Archives = []Archive{TrainImages, TrainLabels, TestImages, TestLabels}

var archiveRegexp = regexp.MustCompile(`^((?:train|t10k)-(?:images-idx3|labels-idx1)-ubyte)(\.gz|\.xz)?$`)

// Discover returns the path of each MNIST archive found directly under root.
// When several encodings of one archive exist, the uncompressed file wins,
// then .gz, then .xz.
func Discover(root string) (map[Archive]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("discover archives: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	// "x" < "x.gz" < "x.xz"
	sort.Strings(names)
	found := make(map[Archive]string, len(Archives))
	for _, name := range names {
		m := archiveRegexp.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		key := Archive(m[1])
		if _, ok := found[key]; !ok {
			found[key] = filepath.Join(root, name)
		}
	}
	return found, nil
}

// Require checks that every wanted archive was discovered.
func Require(found map[Archive]string, want ...Archive) error {
	for _, a := range want {
		if _, ok := found[a]; !ok {
			return fmt.Errorf("archive %s (optionally .gz/.xz): %w", a, fs.ErrNotExist)
		}
	}
	return nil
}
