// Command heapstat drives an allocator.Allocator through a small scripted
// sequence of allocate/free/reallocate operations and reports the
// resulting fragmentation and utilization. It exists purely as a manual
// harness for reproducing the core library's own test scenarios
// interactively; it is not part of the library's public contract, which
// stays free of any CLI, file, or environment surface.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/FardinIqbal/dynamic-memory-allocator"
	"github.com/FardinIqbal/dynamic-memory-allocator/internal/layoutfmt"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "heapstat:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("heapstat", flag.ContinueOnError)
	fs.StringP("script", "s", "", "path to a script file of alloc/free/realloc commands")
	fs.IntP("heap-bytes", "m", 64<<20, "maximum heap reservation in bytes, must be a multiple of 4096")
	fs.BoolP("verbose", "v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return errors.Wrap(err, "binding flags")
	}

	log := zerolog.Nop()
	if v.GetBool("verbose") {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	provider, err := allocator.NewFixedHeapProvider(v.GetInt("heap-bytes"))
	if err != nil {
		return errors.Wrap(err, "configuring heap provider")
	}

	a := allocator.New(provider)
	a.SetLogger(log)

	var script io.Reader = os.Stdin
	if sp := v.GetString("script"); sp != "" {
		f, err := os.Open(sp)
		if err != nil {
			return errors.Wrap(err, "opening script")
		}
		defer f.Close()
		script = f
	}

	handles := map[string]unsafe.Pointer{}
	scanner := bufio.NewScanner(script)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := runLine(a, handles, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "reading script")
	}

	layoutfmt.Render(os.Stdout, a.Blocks())
	fmt.Println(layoutfmt.Summarize(a.Blocks()))
	fmt.Printf("fragmentation=%.4f utilization=%.4f errno=%s\n", a.Fragmentation(), a.Utilization(), a.Errno())
	return nil
}

func runLine(a *allocator.Allocator, handles map[string]unsafe.Pointer, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "alloc":
		if len(fields) != 3 {
			return errors.Errorf("alloc: expected `alloc <name> <size>`, got %q", line)
		}
		size, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return errors.Wrapf(err, "alloc: bad size in %q", line)
		}
		handles[fields[1]] = a.Allocate(uint32(size))

	case "free":
		if len(fields) != 2 {
			return errors.Errorf("free: expected `free <name>`, got %q", line)
		}
		a.Free(handles[fields[1]])
		delete(handles, fields[1])

	case "realloc":
		if len(fields) != 3 {
			return errors.Errorf("realloc: expected `realloc <name> <size>`, got %q", line)
		}
		size, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return errors.Wrapf(err, "realloc: bad size in %q", line)
		}
		handles[fields[1]] = a.Reallocate(handles[fields[1]], uint32(size))

	default:
		return errors.Errorf("unknown command %q", fields[0])
	}
	return nil
}
