//go:build !unix

package tailmerge

const haveWritev = false

func (b *Batcher) writev() error { return b.seq() }
