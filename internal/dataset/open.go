package dataset

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	xzMagic   = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Open opens an archive file, transparently decompressing gzip or xz content
// detected from its leading bytes.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}
	rc, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return &archiveFile{Reader: rc, file: f}, nil
}

// NewReader wraps r with a decompressor chosen by sniffing its magic bytes.
func NewReader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(xzMagic))
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "gzip")
		}
		return zr, nil
	case bytes.HasPrefix(head, xzMagic):
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "xz")
		}
		return xr, nil
	default:
		return br, nil
	}
}

type archiveFile struct {
	io.Reader
	file *os.File
}

func (a *archiveFile) Close() error {
	if c, ok := a.Reader.(io.Closer); ok {
		c.Close()
	}
	return a.file.Close()
}
