package dataset

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestDiscoverArchives(t *testing.T) {
	dir := t.TempDir()
	mustWriteData(t, filepath.Join(dir, "train-images-idx3-ubyte.gz"), nil)
	mustWriteData(t, filepath.Join(dir, "train-labels-idx1-ubyte.xz"), nil)
	mustWriteData(t, filepath.Join(dir, "t10k-images-idx3-ubyte"), nil)
	mustWriteData(t, filepath.Join(dir, "t10k-labels-idx1-ubyte.gz"), nil)
	mustWriteData(t, filepath.Join(dir, "ignore.txt"), nil)
	mustWriteData(t, filepath.Join(dir, "nested", "t10k-images-idx3-ubyte.gz"), nil)

	found, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover error: %v", err)
	}
	want := map[Archive]string{
		TrainImages: filepath.Join(dir, "train-images-idx3-ubyte.gz"),
		TrainLabels: filepath.Join(dir, "train-labels-idx1-ubyte.xz"),
		TestImages:  filepath.Join(dir, "t10k-images-idx3-ubyte"),
		TestLabels:  filepath.Join(dir, "t10k-labels-idx1-ubyte.gz"),
	}
	if len(found) != len(want) {
		t.Fatalf("expected %d archives, got %d: %v", len(want), len(found), found)
	}
	for k, path := range want {
		if found[k] != path {
			t.Fatalf("archive %s=%s want %s", k, found[k], path)
		}
	}
	if err := Require(found, Archives...); err != nil {
		t.Fatalf("Require: %v", err)
	}
}

func TestDiscoverPrefersUncompressed(t *testing.T) {
	dir := t.TempDir()
	mustWriteData(t, filepath.Join(dir, "train-images-idx3-ubyte.xz"), nil)
	mustWriteData(t, filepath.Join(dir, "train-images-idx3-ubyte.gz"), nil)

	first, err := Discover(dir)
	if err != nil {
		t.Fatalf("first discover error: %v", err)
	}
	if got := filepath.Base(first[TrainImages]); got != "train-images-idx3-ubyte.gz" {
		t.Fatalf("expected .gz before .xz, got %s", got)
	}

	mustWriteData(t, filepath.Join(dir, "train-images-idx3-ubyte"), nil)

	second, err := Discover(dir)
	if err != nil {
		t.Fatalf("second discover error: %v", err)
	}
	if got := filepath.Base(second[TrainImages]); got != "train-images-idx3-ubyte" {
		t.Fatalf("expected uncompressed archive, got %s", got)
	}
}

func TestRequireMissing(t *testing.T) {
	err := Require(map[Archive]string{TrainImages: "x"}, TrainImages, TestLabels)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestDiscoverMissingDir(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "absent")); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}
