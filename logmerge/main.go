package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/tormol/tailmerge"
)

func parseSize(sizeStr string) (uint, error) {
	s := strings.TrimSpace(sizeStr)

	var suffix string
	var size string
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if '0' <= c && c <= '9' {
			suffix = s[i+1:]
			size = s[:i+1]
			break
		}
	}

	if strings.HasSuffix(suffix, "b") || strings.HasSuffix(suffix, "B") {
		suffix = suffix[:len(suffix)-1]
	}

	multiplier := uint64(1)
	switch suffix {
	case "k", "K":
		multiplier = 1 << 10
	case "m", "M":
		multiplier = 1 << 20
	case "g", "G":
		multiplier = 1 << 30
	case "":
		// Ok
	default:
		return 0, errors.New("invalid size suffix: " + suffix)
	}

	u, err := strconv.ParseUint(size, 10, 32)
	if err != nil {
		return 0, err
	}
	u *= multiplier

	return uint(u), nil
}

// byteSize accepts "64k", "1m", "1M", "2mb" and the like as a flag value.
type byteSize int

func (v *byteSize) String() string { return strconv.Itoa(int(*v)) }

func (v *byteSize) Type() string { return "size" }

func (v *byteSize) Set(val string) error {
	u, err := parseSize(val)
	if err != nil {
		return err
	}
	*v = byteSize(u)
	return nil
}

func usage(flags *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Usage: logmerge [OPTION]... FILE...

"Sorts" the files but prints the file name above each group of lines from
a file, like tail -f does. Files are merged by sorting the next unprinted
line from each file, without reordering lines from the same file or
keeping everything in RAM. (Memory usage is linear with the number of
files, not with the file sizes.)

Options:
%s`, flags.FlagUsages())
}

// loggerConfig picks the console encoder for interactive use and JSON
// otherwise. NewDevelopmentConfig defaults to debug level; the flag alone
// decides it here.
func loggerConfig(interactive, debug bool) zap.Config {
	var config zap.Config
	if interactive {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)
	return config
}

func newLogger(debug bool) *zap.Logger {
	config := loggerConfig(term.IsTerminal(int(os.Stderr.Fd())), debug)
	log, err := config.Build()
	if err != nil {
		panic(err)
	}
	return log
}

func merge(paths []string, bufSize int, log *zap.Logger) error {
	sources := make([]*tailmerge.Source, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return tailmerge.OpenError(path, err)
		}
		defer f.Close()
		sources = append(sources, tailmerge.NewSourceSize(path, f, bufSize))
	}
	return tailmerge.Merge(sources, os.Stdout, log)
}

func main() {
	flags := pflag.NewFlagSet("logmerge", pflag.ContinueOnError)
	debug := flags.BoolP("debug", "d", false, "log scheduling decisions to stderr")
	bufSize := byteSize(tailmerge.DefaultBufferSize)
	flags.Var(&bufSize, "buffer-size", "initial per-file buffer capacity, grows as needed")
	flags.Usage = func() { usage(flags) }

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		flags.Usage()
		os.Exit(tailmerge.ExitUsage)
	}
	if flags.NArg() == 0 {
		flags.Usage()
		os.Exit(tailmerge.ExitUsage)
	}

	if err := merge(flags.Args(), int(bufSize), newLogger(*debug)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var op *tailmerge.OpError
		if errors.As(err, &op) {
			os.Exit(op.Code)
		}
		os.Exit(tailmerge.ExitUsage)
	}
}
