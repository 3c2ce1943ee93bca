// Command tlsf-bench drives an internal/tlsf.Allocator against a scripted
// sequence of alloc/free operations read from a JSON workload file, and
// reports unused and largest-allocatable space: after each step with -v,
// and once at the end of every run. With -watch it re-runs the workload
// every time the file changes on disk.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"unsafe"

	"github.com/fsnotify/fsnotify"
	"github.com/orizon-lang/orizon/internal/tlsf"
	"github.com/orizon-lang/orizon/internal/tlsf/region"
)

// step is one operation in a workload file: "alloc" reserves Size bytes
// under a handle named by the step's 0-based position in Steps, and
// "free" releases the handle produced by the alloc step at position Ref
// in Steps.
type step struct {
	Op   string `json:"op"`
	Size uint64 `json:"size,omitempty"`
	Ref  int    `json:"ref,omitempty"`
}

type workload struct {
	RegionBytes int    `json:"region_bytes"`
	Mode        string `json:"mode"`
	Steps       []step `json:"steps"`
}

func main() {
	var (
		path    string
		watch   bool
		verbose bool
	)

	flag.StringVar(&path, "workload", "", "path to a JSON workload file (required)")
	flag.BoolVar(&watch, "watch", false, "re-run the workload whenever the file changes")
	flag.BoolVar(&verbose, "v", false, "print occupancy after every step")
	flag.Parse()

	if path == "" {
		fatal("-workload is required")
	}

	if err := runOnce(path, verbose); err != nil {
		fatal(err.Error())
	}

	if !watch {
		return
	}

	if err := watchLoop(path, verbose); err != nil {
		fatal(err.Error())
	}
}

func runOnce(path string, verbose bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read workload: %w", err)
	}

	var w workload
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("parse workload: %w", err)
	}

	if w.RegionBytes <= 0 {
		w.RegionBytes = 1 << 20
	}

	switch w.Mode {
	case "", "int":
		return runInternal(w, verbose)
	case "ext":
		return runExternal(w, verbose)
	default:
		return fmt.Errorf("unknown mode %q (want \"int\" or \"ext\")", w.Mode)
	}
}

func runInternal(w workload, verbose bool) error {
	r, err := region.NewMmapRegion(w.RegionBytes)
	if err != nil {
		return fmt.Errorf("mmap region: %w", err)
	}
	defer r.Close()

	a, err := tlsf.New(r.Bytes())
	if err != nil {
		return fmt.Errorf("tlsf.New: %w", err)
	}

	handles := make(map[int]uintptrHandle)

	for i, s := range w.Steps {
		switch s.Op {
		case "alloc":
			p, err := a.Alloc(s.Size)
			if err != nil {
				report(i, s, err)
				continue
			}

			handles[i] = uintptrHandle{int: p}
		case "free":
			h, ok := handles[s.Ref]
			if !ok || h.int == nil {
				report(i, s, fmt.Errorf("no live allocation at ref %d", s.Ref))
				continue
			}

			if err := a.Free(h.int); err != nil {
				report(i, s, err)
				continue
			}

			delete(handles, s.Ref)
		default:
			return fmt.Errorf("step %d: unknown op %q", i, s.Op)
		}

		if verbose {
			printOccupancy(i, s, a.UnusedSpace(), a.AvailSpace())
		}
	}

	printSummary(a.UnusedSpace(), a.AvailSpace())

	return nil
}

func runExternal(w workload, verbose bool) error {
	a, err := tlsf.NewExt(0x1000_0000, uint64(w.RegionBytes))
	if err != nil {
		return fmt.Errorf("tlsf.NewExt: %w", err)
	}

	handles := make(map[int]uintptrHandle)

	for i, s := range w.Steps {
		switch s.Op {
		case "alloc":
			b, err := a.ExtAlloc(s.Size)
			if err != nil {
				report(i, s, err)
				continue
			}

			handles[i] = uintptrHandle{ext: b}
		case "free":
			h, ok := handles[s.Ref]
			if !ok || h.ext == nil {
				report(i, s, fmt.Errorf("no live allocation at ref %d", s.Ref))
				continue
			}

			if err := a.ExtFree(h.ext); err != nil {
				report(i, s, err)
				continue
			}

			delete(handles, s.Ref)
		default:
			return fmt.Errorf("step %d: unknown op %q", i, s.Op)
		}

		if verbose {
			printOccupancy(i, s, a.UnusedSpace(), a.AvailSpace())
		}
	}

	printSummary(a.UnusedSpace(), a.AvailSpace())

	return nil
}

// uintptrHandle holds whichever handle type the active mode produced;
// exactly one field is populated per entry.
type uintptrHandle struct {
	int unsafe.Pointer
	ext *tlsf.Block
}

func report(i int, s step, err error) {
	fmt.Fprintf(os.Stderr, "step %d (%s size=%d ref=%d): %v\n", i, s.Op, s.Size, s.Ref, err)
}

func printOccupancy(i int, s step, unused, avail uint64) {
	fmt.Printf("step %3d: %-5s size=%-8d unused=%-10d avail=%d\n", i, s.Op, s.Size, unused, avail)
}

func printSummary(unused, avail uint64) {
	fmt.Printf("final: unused=%d avail=%d\n", unused, avail)
}

// watchLoop re-runs the workload each time path is written to, until an
// unrecoverable watcher error occurs.
func watchLoop(path string, verbose bool) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			fmt.Printf("--- %s changed, re-running ---\n", path)

			if err := runOnce(path, verbose); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}

			return fmt.Errorf("watch error: %w", err)
		}
	}
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "tlsf-bench: "+msg)
	os.Exit(1)
}
