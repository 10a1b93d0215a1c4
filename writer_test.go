package tailmerge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestBatcher(t *testing.T) {
	var buf bytes.Buffer
	b := NewBatcher(&buf)
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Fatalf("flush of an empty batch wrote %q", buf.String())
	}
	var want bytes.Buffer
	for i := 0; i < 3000; i++ {
		s := []byte(fmt.Sprintf("%04d\n", i))
		want.Write(s)
		if err := b.Add(s); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf.Bytes(), want.Bytes()) {
		t.Errorf("got %d bytes, want %d", buf.Len(), want.Len())
	}
}

func TestBatcherAutoFlush(t *testing.T) {
	var buf bytes.Buffer
	b := NewBatcher(&buf)
	line := []byte("x\n")
	for i := 0; i < maxBatch-1; i++ {
		if err := b.Add(line); err != nil {
			t.Fatal(err)
		}
	}
	if buf.Len() != 0 {
		t.Fatalf("flushed before the batch was full: %d bytes", buf.Len())
	}
	if err := b.Add(line); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != maxBatch*len(line) {
		t.Fatalf("full batch not flushed: %d bytes written", buf.Len())
	}
}

func TestBatcherEmptySlices(t *testing.T) {
	var buf bytes.Buffer
	b := NewBatcher(&buf)
	for _, p := range [][]byte{nil, {}, []byte("x\n"), {}} {
		if err := b.Add(p); err != nil {
			t.Fatal(err)
		}
	}
	if len(b.batch) != 1 {
		t.Errorf("empty slices were queued: %d slices for one line", len(b.batch))
	}
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "x\n" {
		t.Errorf("flushed %q; want: %q", buf.String(), "x\n")
	}
}

func TestBatcherFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	b := NewBatcher(f)
	var want bytes.Buffer
	for i := 0; i < 2500; i++ {
		s := []byte(fmt.Sprintf("record %d\n", i))
		want.Write(s)
		if err := b.Add(s); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want.Bytes()) {
		t.Errorf("file content differs: got %d bytes, want %d", len(got), want.Len())
	}
}

// TestBatcherPipe pushes far more than a pipe buffers so the kernel takes
// the queued slices in several short writes.
func TestBatcherPipe(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	b := NewBatcher(w)

	var got bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(&got, r)
		done <- err
	}()

	var want bytes.Buffer
	big := bytes.Repeat([]byte("0123456789abcdef"), 1024)
	for i := 0; i < 40; i++ {
		for j := 0; j < 50; j++ {
			s := []byte(fmt.Sprintf("line %d.%d\n", i, j))
			want.Write(s)
			if err := b.Add(s); err != nil {
				t.Fatal(err)
			}
		}
		want.Write(big)
		if err := b.Add(big); err != nil {
			t.Fatal(err)
		}
	}
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Bytes(), want.Bytes()) {
		t.Errorf("pipe output differs: got %d bytes, want %d", got.Len(), want.Len())
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestBatcherWriteError(t *testing.T) {
	fail := errors.New("boom")
	b := NewBatcher(failWriter{fail})
	if err := b.Add([]byte("x\n")); err != nil {
		t.Fatal(err)
	}
	err := b.Flush()
	var op *OpError
	if !errors.As(err, &op) || op.Code != ExitWrite {
		t.Fatalf("Flush error = %#v; want *OpError with code %d", err, ExitWrite)
	}
	if !errors.Is(err, fail) {
		t.Error("OpError does not unwrap to the cause")
	}
	// The failed batch is dropped, not retried.
	if err := b.Flush(); err != nil {
		t.Errorf("flush after failure = %v; want: nil", err)
	}
}
