// file.go implements the single-file store backend and its binary snapshot
// format.
//
// The Binary Format (HMS1)
// ========================
//
// A file store is one snapshot of every directory it holds:
//
//	+--------+-------------+-------------+     +-----+----------+
//	| Header | Directory 0 | Directory 1 | ... | EOF | Checksum |
//	+--------+-------------+-------------+     +-----+----------+
//	 4 bytes   variable      variable           1 B   8 bytes
//
// Header: the 4-byte magic string "HMS1".
//
// Directory Block: a directory header followed by its group blocks:
//
//	+--------+------+------+--------+
//	| OpCode | NLen | Name | Groups |
//	+--------+------+------+--------+
//	  1 byte  4 bytes  var   4 bytes
//
//	OpCode: 0xFD.
//	Groups: the number of group blocks that follow.
//
// Group Block:
//
//	+--------+------+------+-------+-------+-------+-------+-------+-----+
//	| OpCode | NLen | Name | Count | OLen  | Obj   | DLen  | Data  | ... |
//	+--------+------+------+-------+-------+-------+-------+-------+-----+
//	  1 byte  4 bytes  var  4 bytes 4 bytes  var    4 bytes  var
//
//	OpCode: 0xFE.
//	Count:  number of objects in the group.
//
// All integers are little-endian uint32 length or count prefixes.
//
// EOF Marker: a single 0xFF byte ends the binary data.
//
// Checksum: a 64-bit CRC (ISO polynomial) over every preceding byte (Header,
// blocks and EOF), detecting partial writes and disk errors.
//
// Atomic Commit
// =============
//
// A store created for writing keeps its directories in memory and writes the
// snapshot on Close. The snapshot goes to a temporary file that is synced,
// closed and renamed over the destination, so a crash leaves either the old
// store or the new one on disk, never a half-written file.

package store

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
)

// Magic identifies an HMS1 snapshot.
const Magic = "HMS1"

// Opcodes of the snapshot format.
const (
	OpCodeDirectory = 0xFD
	OpCodeGroup     = 0xFE
	OpCodeEOF       = 0xFF
)

// File is a store backed by a single HMS1 snapshot file.
type File struct {
	path     string
	writable bool
	closed   bool
	dirs     []Directory
}

// Create returns a store that writes a new snapshot to path on Close,
// replacing any existing file.
func Create(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrNotFound)
	}
	return &File{path: path, writable: true}, nil
}

// Open loads and verifies the snapshot at path for reading.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	dirs, err := ReadSnapshot(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &File{path: path, dirs: dirs}, nil
}

// Path returns the file the store reads from or commits to.
func (s *File) Path() string { return s.path }

// WriteDirectory stores dir, replacing a directory of the same name.
func (s *File) WriteDirectory(dir Directory) error {
	if s.closed {
		return ErrClosed
	}
	if !s.writable {
		return ErrReadOnly
	}

	for i := range s.dirs {
		if s.dirs[i].Name == dir.Name {
			s.dirs[i] = dir
			return nil
		}
	}
	s.dirs = append(s.dirs, dir)
	return nil
}

// Directories returns the directory names in the order they were written.
func (s *File) Directories() ([]string, error) {
	if s.closed {
		return nil, ErrClosed
	}
	names := make([]string, len(s.dirs))
	for i, d := range s.dirs {
		names[i] = d.Name
	}
	return names, nil
}

// ReadDirectory returns the named directory.
func (s *File) ReadDirectory(name string) (Directory, error) {
	if s.closed {
		return Directory{}, ErrClosed
	}
	for _, d := range s.dirs {
		if d.Name == name {
			return d, nil
		}
	}
	return Directory{}, fmt.Errorf("%w: directory %q", ErrNotFound, name)
}

// Close releases the store. A writable store commits its snapshot first.
func (s *File) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if !s.writable {
		return nil
	}
	return s.commit()
}

func (s *File) commit() error {
	tmpName := s.path + ".tmp"
	f, err := os.Create(tmpName)
	if err != nil {
		return err
	}

	var (
		fileClosed    bool
		renameSuccess bool
	)
	defer func() {
		if !fileClosed {
			_ = f.Close()
		}
		if !renameSuccess {
			_ = os.Remove(tmpName)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := WriteSnapshot(bw, s.dirs); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	// Ensure data is physically on disk before we swap.
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fileClosed = true

	if err := os.Rename(tmpName, s.path); err != nil {
		return err
	}
	renameSuccess = true

	return nil
}

// WriteSnapshot serializes dirs to w in the HMS1 format.
func WriteSnapshot(w io.Writer, dirs []Directory) error {
	//
	// DESIGN
	// ------
	//
	// The output is wrapped in a MultiWriter that feeds both the destination
	// and a CRC64 hasher, so the checksum needs no second pass. Every block
	// is assembled in a reusable RAM buffer and copied out in one write.
	// The checksum itself goes straight to w so it is not hashed.
	//
	checksum := crc64.New(crc64.MakeTable(crc64.ISO))
	bw := bufio.NewWriter(io.MultiWriter(w, checksum))

	if _, err := bw.WriteString(Magic); err != nil {
		return err
	}

	blockBuf := new(bytes.Buffer)
	lenBuf := make([]byte, 4)
	putLen := func(n int) {
		binary.LittleEndian.PutUint32(lenBuf, uint32(n))
		blockBuf.Write(lenBuf)
	}

	for _, d := range dirs {
		blockBuf.Reset()
		blockBuf.WriteByte(OpCodeDirectory)
		putLen(len(d.Name))
		blockBuf.WriteString(d.Name)
		putLen(len(d.Groups))
		if _, err := blockBuf.WriteTo(bw); err != nil {
			return err
		}

		for _, g := range d.Groups {
			blockBuf.Reset()
			blockBuf.WriteByte(OpCodeGroup)
			putLen(len(g.Name))
			blockBuf.WriteString(g.Name)
			putLen(len(g.Objects))
			for _, o := range g.Objects {
				putLen(len(o.Name))
				blockBuf.WriteString(o.Name)
				putLen(len(o.Data))
				blockBuf.Write(o.Data)
			}
			if _, err := blockBuf.WriteTo(bw); err != nil {
				return err
			}
		}
	}

	if err := bw.WriteByte(OpCodeEOF); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	return binary.Write(w, binary.LittleEndian, checksum.Sum64())
}

// ReadSnapshot restores the directories of an HMS1 snapshot. It consumes
// exactly the snapshot, checksum included, and reports truncation, unknown
// opcodes and checksum mismatches as ErrCorrupt.
func ReadSnapshot(r *bufio.Reader) ([]Directory, error) {
	sr := &snapshotReader{r: r, hasher: crc64.New(crc64.MakeTable(crc64.ISO))}

	if magic := sr.bytes(len(Magic)); sr.err != nil || string(magic) != Magic {
		return nil, fmt.Errorf("%w: invalid snapshot header", ErrCorrupt)
	}

	var dirs []Directory
	for {
		op := sr.byte()
		if sr.err != nil {
			return nil, sr.corrupt()
		}
		if op == OpCodeEOF {
			break
		}
		if op != OpCodeDirectory {
			return nil, fmt.Errorf("%w: unexpected opcode %#x", ErrCorrupt, op)
		}

		dir := Directory{Name: sr.string()}
		ngroups := sr.uint32()
		for i := uint32(0); i < ngroups && sr.err == nil; i++ {
			if op := sr.byte(); sr.err == nil && op != OpCodeGroup {
				return nil, fmt.Errorf("%w: unexpected opcode %#x in directory %q", ErrCorrupt, op, dir.Name)
			}
			g := Group{Name: sr.string()}
			nobjs := sr.uint32()
			for j := uint32(0); j < nobjs && sr.err == nil; j++ {
				name := sr.string()
				data := sr.blob()
				g.Objects = append(g.Objects, Object{Name: name, Data: data})
			}
			dir.Groups = append(dir.Groups, g)
		}
		if sr.err != nil {
			return nil, sr.corrupt()
		}
		dirs = append(dirs, dir)
	}

	calculated := sr.hasher.Sum64()
	stored := make([]byte, 8)
	if _, err := io.ReadFull(r, stored); err != nil {
		return nil, fmt.Errorf("%w: missing checksum", ErrCorrupt)
	}
	if binary.LittleEndian.Uint64(stored) != calculated {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	return dirs, nil
}

// snapshotReader hashes every byte it consumes and latches the first error.
type snapshotReader struct {
	r      *bufio.Reader
	hasher hash.Hash64
	lenBuf [4]byte
	err    error
}

func (sr *snapshotReader) corrupt() error {
	return fmt.Errorf("%w: %v", ErrCorrupt, sr.err)
}

func (sr *snapshotReader) byte() byte {
	if sr.err != nil {
		return 0
	}
	b, err := sr.r.ReadByte()
	if err != nil {
		sr.err = io.ErrUnexpectedEOF
		return 0
	}
	sr.hasher.Write([]byte{b})
	return b
}

func (sr *snapshotReader) bytes(n int) []byte {
	if sr.err != nil {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(sr.r, buf); err != nil {
		sr.err = io.ErrUnexpectedEOF
		return nil
	}
	sr.hasher.Write(buf)
	return buf
}

func (sr *snapshotReader) uint32() uint32 {
	if sr.err != nil {
		return 0
	}
	if _, err := io.ReadFull(sr.r, sr.lenBuf[:]); err != nil {
		sr.err = io.ErrUnexpectedEOF
		return 0
	}
	sr.hasher.Write(sr.lenBuf[:])
	return binary.LittleEndian.Uint32(sr.lenBuf[:])
}

// blob reads a length-prefixed byte string. The buffer grows with the data
// actually read, so a corrupt length cannot force a huge allocation.
func (sr *snapshotReader) blob() []byte {
	n := sr.uint32()
	if sr.err != nil {
		return nil
	}
	var buf bytes.Buffer
	if _, err := io.CopyN(io.MultiWriter(&buf, sr.hasher), sr.r, int64(n)); err != nil {
		sr.err = io.ErrUnexpectedEOF
		return nil
	}
	return buf.Bytes()
}

func (sr *snapshotReader) string() string {
	return string(sr.blob())
}
