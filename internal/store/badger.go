package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

// Key layout
//
//	m/<dir>                               manifest: ordered group and object names
//	o/<len(dir)><dir><len(group)><group><object>  object data
//
// Lengths are little-endian uint32 so a directory's object keys share the
// prefix "o/<len(dir)><dir>" whatever the names contain.
const (
	manifestPrefix = "m/"
	objectPrefix   = "o/"
)

// BadgerConfig configures a Badger-backed store.
type BadgerConfig struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory keeps the whole database in RAM; nothing touches the disk.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// ReadOnly rejects WriteDirectory.
	ReadOnly bool

	// Logger receives Badger's internal log lines. Nil silences them.
	Logger *slog.Logger
}

// Badger is a store keeping every object under its own BadgerDB key.
// Directories are listed in key order.
type Badger struct {
	db       *badger.DB
	readOnly bool
	closed   bool
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens (creating if needed) a Badger store.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("store: path is required for a persistent badger store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}

	return &Badger{db: db, readOnly: cfg.ReadOnly}, nil
}

func dirObjectPrefix(dir string) []byte {
	key := []byte(objectPrefix)
	key = binary.LittleEndian.AppendUint32(key, uint32(len(dir)))
	return append(key, dir...)
}

func objectKey(dir, group, name string) []byte {
	key := dirObjectPrefix(dir)
	key = binary.LittleEndian.AppendUint32(key, uint32(len(group)))
	key = append(key, group...)
	return append(key, name...)
}

// WriteDirectory replaces the named directory with dir. Objects of the
// previous version that dir no longer contains are deleted.
func (s *Badger) WriteDirectory(dir Directory) error {
	//
	// DESIGN
	// ------
	//
	// A directory can hold far more data than a single transaction accepts,
	// so the rewrite goes through a WriteBatch, which splits commits as
	// needed. Stale keys are collected first in a read transaction; only
	// keys absent from the new version are deleted, so no key is both
	// deleted and set within the batch.
	//
	if s.closed {
		return ErrClosed
	}
	if s.readOnly {
		return ErrReadOnly
	}

	fresh := make(map[string]struct{})
	for _, g := range dir.Groups {
		for _, o := range g.Objects {
			fresh[string(objectKey(dir.Name, g.Name, o.Name))] = struct{}{}
		}
	}

	var stale [][]byte
	prefix := dirObjectPrefix(dir.Name)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, ok := fresh[string(key)]; !ok {
				stale = append(stale, key)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan directory %q: %w", dir.Name, err)
	}

	wb := s.db.NewWriteBatch()
	for _, g := range dir.Groups {
		for _, o := range g.Objects {
			if err := wb.Set(objectKey(dir.Name, g.Name, o.Name), o.Data); err != nil {
				wb.Cancel()
				return fmt.Errorf("write object %s/%s/%s: %w", dir.Name, g.Name, o.Name, err)
			}
		}
	}
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			wb.Cancel()
			return fmt.Errorf("delete stale object: %w", err)
		}
	}
	if err := wb.Set([]byte(manifestPrefix+dir.Name), encodeManifest(dir)); err != nil {
		wb.Cancel()
		return fmt.Errorf("write manifest %q: %w", dir.Name, err)
	}

	return wb.Flush()
}

// Directories returns the directory names in key order.
func (s *Badger) Directories() ([]string, error) {
	if s.closed {
		return nil, ErrClosed
	}

	var names []string
	prefix := []byte(manifestPrefix)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	return names, err
}

// ReadDirectory loads the named directory in manifest order.
func (s *Badger) ReadDirectory(name string) (Directory, error) {
	if s.closed {
		return Directory{}, ErrClosed
	}

	dir := Directory{Name: name}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(manifestPrefix + name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: directory %q", ErrNotFound, name)
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		groups, err := decodeManifest(raw)
		if err != nil {
			return err
		}

		for _, g := range groups {
			for i := range g.Objects {
				item, err := txn.Get(objectKey(name, g.Name, g.Objects[i].Name))
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("%w: missing object %s/%s/%s", ErrCorrupt, name, g.Name, g.Objects[i].Name)
				}
				if err != nil {
					return err
				}
				if g.Objects[i].Data, err = item.ValueCopy(nil); err != nil {
					return err
				}
			}
		}
		dir.Groups = groups
		return nil
	})
	if err != nil {
		return Directory{}, err
	}

	return dir, nil
}

// Close closes the database.
func (s *Badger) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// encodeManifest records the ordered group and object names of dir.
func encodeManifest(dir Directory) []byte {
	le := binary.LittleEndian
	buf := le.AppendUint32(nil, uint32(len(dir.Groups)))
	for _, g := range dir.Groups {
		buf = le.AppendUint32(buf, uint32(len(g.Name)))
		buf = append(buf, g.Name...)
		buf = le.AppendUint32(buf, uint32(len(g.Objects)))
		for _, o := range g.Objects {
			buf = le.AppendUint32(buf, uint32(len(o.Name)))
			buf = append(buf, o.Name...)
		}
	}
	return buf
}

// decodeManifest returns the groups of a manifest with object names set and
// data left empty.
func decodeManifest(data []byte) ([]Group, error) {
	off := 0
	next := func(n int) ([]byte, bool) {
		if n < 0 || off+n > len(data) {
			return nil, false
		}
		b := data[off : off+n]
		off += n
		return b, true
	}
	count := func() (int, bool) {
		b, ok := next(4)
		if !ok {
			return 0, false
		}
		return int(binary.LittleEndian.Uint32(b)), true
	}
	str := func() (string, bool) {
		n, ok := count()
		if !ok {
			return "", false
		}
		b, ok := next(n)
		return string(b), ok
	}

	ngroups, ok := count()
	if !ok {
		return nil, fmt.Errorf("%w: truncated manifest", ErrCorrupt)
	}
	var groups []Group
	for i := 0; i < ngroups; i++ {
		name, ok := str()
		if !ok {
			return nil, fmt.Errorf("%w: truncated manifest", ErrCorrupt)
		}
		nobjs, ok := count()
		if !ok {
			return nil, fmt.Errorf("%w: truncated manifest", ErrCorrupt)
		}
		g := Group{Name: name}
		for j := 0; j < nobjs; j++ {
			oname, ok := str()
			if !ok {
				return nil, fmt.Errorf("%w: truncated manifest", ErrCorrupt)
			}
			g.Objects = append(g.Objects, Object{Name: oname})
		}
		groups = append(groups, g)
	}

	return groups, nil
}
