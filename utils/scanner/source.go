package scanner

import (
	"context"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
)

// Source is one file handed to the scanner. Read may block and may fail;
// the scanner bounds it with the read timeout.
type Source interface {
	Name() string
	Size() int64
	Read(ctx context.Context) ([]byte, error)
}

type fileSource struct {
	path    string
	size    int64
	statErr error
}

// FileSource reads a file from disk. The size is taken when the source is
// created so oversized files are rejected without opening them.
func FileSource(path string) Source {
	fs := &fileSource{path: path}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		fs.statErr = err
	case !info.Mode().IsRegular():
		fs.statErr = errors.Errorf("%s is not a regular file", path)
	default:
		fs.size = info.Size()
	}
	return fs
}

func (fs *fileSource) Name() string {
	return fs.path
}

func (fs *fileSource) Size() int64 {
	return fs.size
}

func (fs *fileSource) Read(ctx context.Context) ([]byte, error) {
	if fs.statErr != nil {
		return nil, errors.Wrap(fs.statErr, "error reading file")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := ioutil.ReadFile(fs.path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading file")
	}
	return data, nil
}

type bytesSource struct {
	name string
	data []byte
}

func BytesSource(name string, data []byte) Source {
	return &bytesSource{name: name, data: data}
}

func (bs *bytesSource) Name() string {
	return bs.name
}

func (bs *bytesSource) Size() int64 {
	return int64(len(bs.data))
}

func (bs *bytesSource) Read(context.Context) ([]byte, error) {
	return bs.data, nil
}

type funcSource struct {
	name string
	size int64
	read func(context.Context) ([]byte, error)
}

// NewSource adapts a read function, for content that comes from somewhere
// other than the local file system.
func NewSource(name string, size int64, read func(context.Context) ([]byte, error)) Source {
	return &funcSource{name: name, size: size, read: read}
}

func (f *funcSource) Name() string {
	return f.name
}

func (f *funcSource) Size() int64 {
	return f.size
}

func (f *funcSource) Read(ctx context.Context) ([]byte, error) {
	return f.read(ctx)
}
