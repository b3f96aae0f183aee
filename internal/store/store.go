// Package store persists the two-level namespace written by the histogram
// manager: a named top-level directory holding one group per histogram
// class, each group holding the encoded histograms of that class.
//
//	directory/
//	  group/
//	    object  (opaque bytes, usually an HST1 histogram)
//
// Two backends implement the same Store interface. The file backend keeps a
// whole store in a single checksummed HMS1 snapshot and is the default. The
// Badger backend keeps every object under its own key in a BadgerDB
// directory, which suits stores that are rewritten often.
//
// A store handle is opened either for writing or for reading. Directories
// written through a Writer replace any previous directory of the same name.
package store

import (
	"errors"
	"log/slog"
	"os"
)

var (
	// ErrNotFound is returned when a store or a directory does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrCorrupt is returned when persisted data fails validation.
	ErrCorrupt = errors.New("store: corrupt data")

	// ErrReadOnly is returned when writing through a handle opened for reading.
	ErrReadOnly = errors.New("store: opened read-only")

	// ErrClosed is returned when using a handle after Close.
	ErrClosed = errors.New("store: closed")
)

// Object is a named blob inside a group.
type Object struct {
	Name string
	Data []byte
}

// Group is an ordered collection of objects, one per histogram of a class.
type Group struct {
	Name    string
	Objects []Object
}

// Directory is the top-level group written by one manager.
type Directory struct {
	Name   string
	Groups []Group
}

// Writer accepts whole directories.
type Writer interface {
	WriteDirectory(dir Directory) error
}

// Reader exposes the directories of an opened store.
type Reader interface {
	// Directories returns the names of all top-level directories.
	Directories() ([]string, error)

	// ReadDirectory loads one directory with all its groups and objects.
	ReadDirectory(name string) (Directory, error)
}

// Store is a backend handle.
type Store interface {
	Writer
	Reader
	Close() error
}

// OpenPath opens the store at path, choosing the backend from the path
// itself: an existing directory is a Badger store, anything else is an HMS1
// file. With create set the store is opened for writing and a missing path
// becomes a new file store.
func OpenPath(path string, create bool, logger *slog.Logger) (Store, error) {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir():
		return OpenBadger(BadgerConfig{Path: path, Logger: logger, ReadOnly: !create})
	case create:
		return Create(path)
	default:
		return Open(path)
	}
}
