// histo-check is a diagnostic tool for inspecting and validating HMS1 histogram
// store files. It performs a streaming verification of the binary format,
// checking structural integrity and the CRC64 checksum without loading the
// whole store into memory.
//
// It answers questions like:
//
//   - Is the store file corrupted, and at which byte offset?
//   - Which directories and classes does it hold?
//   - Which histogram kinds are present and how many entries do they have?
//
// Usage Examples
// ==============
//
// Basic validation (structure and checksum):
//
//	histo-check --file out.hms
//
// Verbose mode (lists every histogram with its kind):
//
//	histo-check --file out.hms -v
//
// Dump mode (also prints the in-range bin contents):
//
//	histo-check --file out.hms --dump
//
// Exit Codes
// ==========
//
// 0: The file is valid.
// 1: The file is corrupted or unreadable, or holds undecodable histograms.
package main

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc64"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"hmgr.lopezb.com/internal/histo"
	"hmgr.lopezb.com/internal/store"
)

// CountReader wraps an io.Reader to track the cumulative byte offset, so
// errors can name the exact file position of a corruption.
type CountReader struct {
	r     io.Reader
	count int64
}

// Read implements io.Reader.
func (cr *CountReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.count += int64(n)
	return n, err
}

// OffsetError is a fatal verification failure at a byte offset.
type OffsetError struct {
	Offset int64
	Msg    string
	Err    error
}

func (e *OffsetError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[offset %d] %s: %v", e.Offset, e.Msg, e.Err)
	}
	return fmt.Sprintf("[offset %d] %s", e.Offset, e.Msg)
}

func (e *OffsetError) Unwrap() error { return e.Err }

// Summary is the result of a successful structural check.
type Summary struct {
	Directories int
	Groups      int
	Objects     int
	Invalid     int // objects whose histogram data does not decode
	Kinds       map[string]int
	Checksum    uint64
	Tail        bool // bytes follow the checksum
}

type checker struct {
	out     io.Writer
	verbose bool
	dump    bool

	counter *CountReader
	reader  *bufio.Reader
	hasher  hash.Hash64
	lenBuf  [4]byte
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		filePath string
		verbose  bool
		dump     bool
	)

	cmd := &cobra.Command{
		Use:          "histo-check",
		Short:        "Verify the structure and checksum of an HMS1 histogram store",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(filePath)
			if err != nil {
				return fmt.Errorf("cannot open file: %w", err)
			}
			defer func() { _ = f.Close() }()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "[offset 0] Checking histogram store %s\n", filePath)

			start := time.Now()
			c := &checker{out: out, verbose: verbose, dump: dump}
			s, err := c.run(f)
			if err != nil {
				return err
			}
			printSummary(out, s, time.Since(start))

			if s.Invalid > 0 {
				return fmt.Errorf("%d histograms do not decode", s.Invalid)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "out.hms", "path to the HMS1 store file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list every histogram")
	cmd.Flags().BoolVar(&dump, "dump", false, "print in-range bin contents (implies -v)")
	return cmd
}

// offset is the position of the next unread byte: bytes handed to the
// buffer minus those it still holds.
func (c *checker) offset() int64 {
	return c.counter.count - int64(c.reader.Buffered())
}

func (c *checker) fail(msg string, err error) error {
	return &OffsetError{Offset: c.offset(), Msg: msg, Err: err}
}

// readFull reads len(p) bytes and feeds them to the checksum.
func (c *checker) readFull(p []byte, what string) error {
	if _, err := io.ReadFull(c.reader, p); err != nil {
		return c.fail("truncated "+what, err)
	}
	c.hasher.Write(p)
	return nil
}

func (c *checker) readLen(what string) (uint32, error) {
	if err := c.readFull(c.lenBuf[:], what); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(c.lenBuf[:]), nil
}

// readBlob reads a length-prefixed byte string. The length is not trusted
// for allocation: a short file fails the copy before memory is committed.
func (c *checker) readBlob(what string) ([]byte, error) {
	n, err := c.readLen(what + " length")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := io.CopyN(io.MultiWriter(&buf, c.hasher), c.reader, int64(n)); err != nil {
		return nil, c.fail("truncated "+what, err)
	}
	return buf.Bytes(), nil
}

func (c *checker) run(r io.Reader) (*Summary, error) {
	c.counter = &CountReader{r: r}
	c.reader = bufio.NewReader(c.counter)
	c.hasher = crc64.New(crc64.MakeTable(crc64.ISO))

	header := make([]byte, len(store.Magic))
	if err := c.readFull(header, "header"); err != nil {
		return nil, err
	}
	if string(header) != store.Magic {
		return nil, c.fail(fmt.Sprintf("invalid magic header: expected %q, got %q", store.Magic, header), nil)
	}

	s := &Summary{Kinds: make(map[string]int)}
	var dir string
	groupsLeft := 0

	for {
		opcode, err := c.reader.ReadByte()
		if err != nil {
			return nil, c.fail("failed reading opcode", err)
		}
		c.hasher.Write([]byte{opcode})

		if opcode == store.OpCodeEOF {
			if groupsLeft > 0 {
				return nil, c.fail(fmt.Sprintf("directory %q is missing %d groups", dir, groupsLeft), nil)
			}
			break
		}

		switch opcode {
		case store.OpCodeDirectory:
			if groupsLeft > 0 {
				return nil, c.fail(fmt.Sprintf("directory %q is missing %d groups", dir, groupsLeft), nil)
			}
			name, err := c.readBlob("directory name")
			if err != nil {
				return nil, err
			}
			n, err := c.readLen("group count")
			if err != nil {
				return nil, err
			}
			dir, groupsLeft = string(name), int(n)
			s.Directories++
			fmt.Fprintf(c.out, "[offset %d] Directory %q: %d classes\n", c.offset(), dir, n)

		case store.OpCodeGroup:
			if groupsLeft == 0 {
				return nil, c.fail("group block outside a directory", nil)
			}
			groupsLeft--
			if err := c.group(s, dir); err != nil {
				return nil, err
			}

		default:
			return nil, c.fail(fmt.Sprintf("unexpected opcode: %#x", opcode), nil)
		}
	}

	calculated := c.hasher.Sum64()
	var stored [8]byte
	if _, err := io.ReadFull(c.reader, stored[:]); err != nil {
		return nil, c.fail("failed to read checksum", err)
	}
	s.Checksum = binary.LittleEndian.Uint64(stored[:])
	if s.Checksum != calculated {
		return nil, c.fail(fmt.Sprintf("checksum mismatch: file %016x, calculated %016x", s.Checksum, calculated), nil)
	}
	fmt.Fprintf(c.out, "[offset %d] Checksum OK (%016x)\n", c.offset(), s.Checksum)

	if _, err := c.reader.Peek(1); err == nil {
		s.Tail = true
		fmt.Fprintf(c.out, "[offset %d] Found trailing data after the checksum (ignored by readers)\n", c.offset())
	} else if !errors.Is(err, io.EOF) {
		fmt.Fprintf(c.out, "[warn] Error checking for trailing data: %v\n", err)
	}

	return s, nil
}

func (c *checker) group(s *Summary, dir string) error {
	name, err := c.readBlob("class name")
	if err != nil {
		return err
	}
	count, err := c.readLen("histogram count")
	if err != nil {
		return err
	}
	s.Groups++
	fmt.Fprintf(c.out, "[offset %d] Class %s/%s: %d histograms\n", c.offset(), dir, name, count)

	for i := uint32(0); i < count; i++ {
		objName, err := c.readBlob("histogram name")
		if err != nil {
			return err
		}
		data, err := c.readBlob("histogram data")
		if err != nil {
			return err
		}
		s.Objects++

		h, typeName, details := identifyObject(data)
		if h == nil {
			s.Invalid++
		}
		s.Kinds[typeName]++

		if c.verbose || c.dump {
			info := ""
			if details != "" {
				info = "(" + details + ")"
			}
			fmt.Fprintf(c.out, "[offset %d] Histogram '%s' [%s] %s\n", c.offset(), objName, typeName, info)
		}
		if c.dump && h != nil {
			dumpBins(c.out, h)
		}
	}
	return nil
}

// identifyObject decodes histogram data. It returns a nil histogram for
// objects that are not valid HST1 data.
func identifyObject(data []byte) (*histo.Hist, string, string) {
	if !histo.HasValidMagic(data) {
		return nil, "Raw", fmt.Sprintf("Len:%d", len(data))
	}

	h, err := histo.Unmarshal(data)
	if err != nil {
		return nil, "Invalid", err.Error()
	}

	details := fmt.Sprintf("Rank:%d, Cells:%d, Entries:%d", h.Rank(), h.Cells(), h.Entries())
	if w := h.WeightVar(); w != histo.NoVariable {
		details += fmt.Sprintf(", Weight:%d", w)
	}
	if v := h.ValueVar(); v != histo.NoVariable {
		details += fmt.Sprintf(", Value:%d", v)
	}
	return h, h.Kind().String(), details
}

// dumpBins prints every non-empty cell with its per-axis bin numbers.
func dumpBins(w io.Writer, h *histo.Hist) {
	bins := make([]int, h.Rank())
	for g := 0; g < h.Cells(); g++ {
		if h.BinSumW(g) == 0 {
			continue
		}
		h.AxisBins(g, bins)
		fmt.Fprintf(w, "      Bin %v: %g ± %g\n", bins, h.BinContent(g), h.BinError(g))
	}
}

func printSummary(w io.Writer, s *Summary, elapsed time.Duration) {
	fmt.Fprintln(w, "\nSummary:")
	fmt.Fprintf(w, "  Process Time: %v\n", elapsed)
	fmt.Fprintf(w, "  Directories:  %d\n", s.Directories)
	fmt.Fprintf(w, "  Classes:      %d\n", s.Groups)
	fmt.Fprintf(w, "  Histograms:   %d\n", s.Objects)

	kinds := make([]string, 0, len(s.Kinds))
	for k := range s.Kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "    %d\t%s\n", s.Kinds[k], k)
	}
}
