package nfsmount

import (
	"io"

	billy "github.com/go-git/go-billy/v5"
)

// emptyFile implements billy.File for plain tree entries. Entries carry no
// content, so every read reports EOF.
type emptyFile struct {
	name string
	pos  int64
}

func (f *emptyFile) Name() string { return f.name }

func (f *emptyFile) Read([]byte) (int, error) { return 0, io.EOF }

func (f *emptyFile) ReadAt([]byte, int64) (int, error) { return 0, io.EOF }

func (f *emptyFile) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart, io.SeekEnd:
		newPos = offset
	case io.SeekCurrent:
		newPos = f.pos + offset
	}
	if newPos < 0 {
		newPos = 0
	}
	f.pos = newPos
	return f.pos, nil
}

func (f *emptyFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (f *emptyFile) Truncate(int64) error      { return errReadOnly }
func (f *emptyFile) Lock() error               { return nil }
func (f *emptyFile) Unlock() error             { return nil }
func (f *emptyFile) Close() error              { return nil }

var _ billy.File = (*emptyFile)(nil)
