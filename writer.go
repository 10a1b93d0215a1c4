package tailmerge

import (
	"io"
	"os"
)

// maxBatch caps the number of queued slices at what one vectored write
// can take. IOV_MAX is 1024 on Linux and the BSDs.
const maxBatch = 1024

// A Batcher queues byte slices and writes them out in as few syscalls as
// possible. Writes to an *os.File go through writev where the platform has
// it, so queued slices are never copied into an intermediate buffer.
type Batcher struct {
	out   io.Writer
	fd    int
	vec   bool
	batch [][]byte
}

// NewBatcher returns a Batcher writing to w.
func NewBatcher(w io.Writer) *Batcher {
	b := &Batcher{out: w, batch: make([][]byte, 0, maxBatch)}
	if f, ok := w.(*os.File); ok && haveWritev {
		b.fd = int(f.Fd())
		b.vec = true
	}
	return b
}

// Add queues p for the next flush. p must stay valid until then. Empty
// slices are dropped, so a queued batch always makes progress when written.
// A full batch is flushed immediately.
func (b *Batcher) Add(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	b.batch = append(b.batch, p)
	if len(b.batch) == maxBatch {
		return b.Flush()
	}
	return nil
}

// Flush writes out all queued slices. The batch is emptied whether or not
// the write succeeds.
func (b *Batcher) Flush() error {
	if len(b.batch) == 0 {
		return nil
	}
	var err error
	if b.vec {
		err = b.writev()
	} else {
		err = b.seq()
	}
	b.batch = b.batch[:0]
	return err
}

func (b *Batcher) seq() error {
	for _, p := range b.batch {
		if _, err := b.out.Write(p); err != nil {
			return WriteError(err)
		}
	}
	return nil
}
