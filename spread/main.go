package main

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/spf13/pflag"
)

const outSuffixes = "abcdefghijklmnopqrstuvwxyz"

var (
	recursive = pflag.BoolP("recursive", "r", false, "look for rotated logs in subdirectories too")
	outputDir = pflag.StringP("output-dir", "o", ".", "directory to write the output files into")
	seed      = pflag.Int64("seed", 0, "fixed seed for the random interleave (0 picks one)")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: spread [OPTION]... [/var/log/]FILE.log N_FILES

Read all logs for a program, decompressing them if necessary, and write
them out into N_FILES files named FILE.log.a, FILE.log.b and so on, with
the lines sorted and then randomly interleaved. Useful for turning one
log into test inputs for logmerge.

Options:
%s`, pflag.CommandLine.FlagUsages())
}

type Reader struct {
	b   *bufio.Reader
	buf []byte
}

func NewReader(b *bufio.Reader) *Reader {
	return &Reader{
		b:   b,
		buf: make([]byte, 128),
	}
}

// includes delim
func (r *Reader) ReadBytes(delim byte) ([]byte, error) {
	var frag []byte
	var err error
	r.buf = r.buf[:0]
	for {
		var e error
		frag, e = r.b.ReadSlice(delim)
		if e == nil { // got final fragment
			break
		}
		if e != bufio.ErrBufferFull { // unexpected error
			err = e
			break
		}
		r.buf = append(r.buf, frag...)
	}
	r.buf = append(r.buf, frag...)
	return r.buf, err
}

// findLogs returns the files under dir whose name starts with prefix,
// sorted by path.
func findLogs(dir, prefix string, recursive bool) ([]string, error) {
	var paths []string
	if !recursive {
		ents, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, e := range ents {
			if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
				paths = append(paths, filepath.Join(dir, e.Name()))
			}
		}
		return paths, nil
	}
	var mu sync.Mutex
	err := fastwalk.Walk(nil, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.HasPrefix(d.Name(), prefix) {
			mu.Lock()
			paths = append(paths, path)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// readLines appends every line of the named file, decompressing .gz files,
// to lines. A missing trailing newline is added so lines stay lines when
// written back out.
func readLines(path string, lines [][]byte) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var rd io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		rd = gz
	}
	r := NewReader(bufio.NewReaderSize(rd, 1<<16))
	for {
		b, err := r.ReadBytes('\n')
		if len(b) != 0 {
			line := make([]byte, len(b), len(b)+1)
			copy(line, b)
			if line[len(line)-1] != '\n' {
				line = append(line, '\n')
			}
			lines = append(lines, line)
		}
		if err != nil {
			if err == io.EOF {
				return lines, nil
			}
			return nil, err
		}
	}
}

type outFile struct {
	name  string
	f     *os.File
	w     *bufio.Writer
	lines int
}

func realMain(logfile, nStr string) error {
	dir, base := filepath.Split(logfile)
	if dir == "" {
		dir = "/var/log/"
	}
	n, err := strconv.Atoi(nStr)
	if err != nil {
		return fmt.Errorf("invalid file count %q: %w", nStr, err)
	}
	if n < 1 || n > len(outSuffixes) {
		return fmt.Errorf("file count must be between 1 and %d, got %d", len(outSuffixes), n)
	}

	paths, err := findLogs(dir, base, *recursive)
	if err != nil {
		return err
	}
	var lines [][]byte
	for _, path := range paths {
		fmt.Println("reading", path)
		if lines, err = readLines(path, lines); err != nil {
			return err
		}
	}
	sort.Slice(lines, func(i, j int) bool {
		return bytes.Compare(lines[i], lines[j]) < 0
	})

	outfiles := make([]*outFile, n)
	for i := range outfiles {
		name := base + "." + outSuffixes[i:i+1]
		f, err := os.Create(filepath.Join(*outputDir, name))
		if err != nil {
			return err
		}
		outfiles[i] = &outFile{name: name, f: f, w: bufio.NewWriter(f)}
	}

	sv := *seed
	if sv == 0 {
		sv = rand.Int63()
	}
	rng := rand.New(rand.NewSource(sv))
	for _, line := range lines {
		out := outfiles[rng.Intn(n)]
		if _, err := out.w.Write(line); err != nil {
			return err
		}
		out.lines++
	}

	fmt.Printf("\ndivided %d lines across %d files:\n", len(lines), n)
	for _, out := range outfiles {
		if err := out.w.Flush(); err != nil {
			return err
		}
		if err := out.f.Close(); err != nil {
			return err
		}
		fmt.Printf("%s: %d lines\n", out.name, out.lines)
	}
	return nil
}

func main() {
	pflag.Usage = usage
	pflag.Parse()
	if pflag.NArg() != 2 {
		usage()
		os.Exit(1)
	}
	if err := realMain(pflag.Arg(0), pflag.Arg(1)); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
