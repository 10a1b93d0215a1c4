// Package tailmerge interleaves the lines of multiple byte streams in
// sorted order, without reordering lines from the same stream and without
// keeping whole files in memory. Only the next unprinted line of each
// stream is buffered at any time.
package tailmerge

import (
	"bytes"
	"container/heap"
	"io"

	"go.uber.org/zap"
)

// headerMark precedes every source name in the output. The very first
// header skips the leading newline.
var headerMark = []byte("\n>>> ")

var newline = []byte("\n")

// An entry is one source's next unprinted line, queued for ordering. It
// stores a range into the source's buffer rather than a slice; the buffer
// may be reallocated between queueing and printing.
type entry struct {
	src    int // index into merger.sources
	start  int // offset of the line in the source's buffer
	length int // line length, trailing '\n' included
}

// lineQueue is a min-heap of queued lines, at most one per live source.
// Byte-wise smallest first; on equal bytes the source that printed last
// keeps going, and otherwise the lower index wins.
type lineQueue struct {
	m       *merger
	entries []entry
}

func (q *lineQueue) Len() int { return len(q.entries) }

func (q *lineQueue) Less(i, j int) bool {
	a, b := q.entries[i], q.entries[j]
	switch c := bytes.Compare(q.m.lineOf(a), q.m.lineOf(b)); {
	case c != 0:
		return c < 0
	case a.src == q.m.lastPrinted:
		return true
	case b.src == q.m.lastPrinted:
		return false
	default:
		return a.src < b.src
	}
}

func (q *lineQueue) Swap(i, j int) {
	q.entries[i], q.entries[j] = q.entries[j], q.entries[i]
}

func (q *lineQueue) Push(x any) {
	q.entries = append(q.entries, x.(entry))
}

func (q *lineQueue) Pop() any {
	old := q.entries
	n := len(old)
	e := old[n-1]
	q.entries = old[:n-1]
	return e
}

type merger struct {
	sources []*Source
	out     *Batcher
	log     *zap.Logger
	debug   bool
	queue   lineQueue

	// lastPrinted is the index of the source the previous line came from,
	// or len(sources) when there is none: before the first line, and after
	// any source runs dry.
	lastPrinted   int
	startedOutput bool
}

func (m *merger) lineOf(e entry) []byte {
	return m.sources[e.src].line(e.start, e.length)
}

func (m *merger) header(src *Source) error {
	mark := headerMark
	if !m.startedOutput {
		mark = mark[1:]
		m.startedOutput = true
	}
	if err := m.out.Add(mark); err != nil {
		return err
	}
	if err := m.out.Add(src.path); err != nil {
		return err
	}
	return m.out.Add(newline)
}

// Merge writes the sources' lines to w in sorted order, a ">>> path"
// header above each group of lines from the same source. Lines from one
// source keep their original relative order even when unsorted. Debug
// records go to log; pass nil for none. The returned error is a *OpError
// for read and write failures.
func Merge(sources []*Source, w io.Writer, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	m := &merger{
		sources:     sources,
		out:         NewBatcher(w),
		log:         log,
		debug:       log.Level().Enabled(zap.DebugLevel),
		lastPrinted: len(sources),
	}
	m.queue.m = m

	for i, src := range sources {
		n, err := src.ReadNextLine(0)
		switch {
		case err == io.EOF:
			if m.debug {
				log.Debug("source is empty", zap.String("path", src.Path()))
			}
		case err != nil:
			return err
		default:
			m.queue.entries = append(m.queue.entries, entry{src: i, start: 0, length: n})
		}
	}
	heap.Init(&m.queue)

	for m.queue.Len() > 0 {
		e := heap.Pop(&m.queue).(entry)
		src := m.sources[e.src]
		if e.src != m.lastPrinted {
			if m.debug {
				m.log.Debug("switching source", zap.String("path", src.Path()))
			}
			if err := m.header(src); err != nil {
				return err
			}
			m.lastPrinted = e.src
		}
		if err := m.out.Add(src.line(e.start, e.length)); err != nil {
			return err
		}

		consumed := e.start + e.length
		if n, ok := src.nextBuffered(consumed); ok {
			heap.Push(&m.queue, entry{src: e.src, start: consumed, length: n})
			continue
		}
		// The next line needs I/O, which may move or reuse the buffer.
		// Everything queued for output has to go out first.
		if err := m.out.Flush(); err != nil {
			return err
		}
		n, err := src.ReadNextLine(consumed)
		switch {
		case err == io.EOF:
			m.lastPrinted = len(m.sources)
			if m.debug {
				m.log.Debug("source exhausted", zap.String("path", src.Path()))
			}
		case err != nil:
			return err
		default:
			heap.Push(&m.queue, entry{src: e.src, start: 0, length: n})
		}
	}
	return m.out.Flush()
}
