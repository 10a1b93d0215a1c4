//go:build unix

package tailmerge

import (
	"errors"

	"golang.org/x/sys/unix"
)

const haveWritev = true

// writev hands the whole batch to the kernel in one call. Pipes and ttys
// take short writes, so it advances through the queued slices and calls
// again until everything is out. EINTR means nothing was transferred.
func (b *Batcher) writev() error {
	iov := b.batch
	for len(iov) > 0 {
		n, err := unix.Writev(b.fd, iov)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return WriteError(err)
		}
		for n > 0 {
			if n >= len(iov[0]) {
				n -= len(iov[0])
				iov = iov[1:]
			} else {
				iov[0] = iov[0][n:]
				n = 0
			}
		}
	}
	return nil
}
