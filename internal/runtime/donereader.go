package runtime

import (
	"errors"
	"io"
	"sync"
)

// An [io.Reader] that closes done the first time the wrapped reader returns
// [io.EOF]. Other errors leave done open.
type doneReader struct {
	io.Reader
	once sync.Once
	done chan struct{}
}

func newDoneReader(r io.Reader) *doneReader {
	return &doneReader{Reader: r, done: make(chan struct{})}
}

func (d *doneReader) Read(p []byte) (int, error) {
	n, err := d.Reader.Read(p)
	if errors.Is(err, io.EOF) {
		d.once.Do(func() { close(d.done) })
	}
	return n, err
}
