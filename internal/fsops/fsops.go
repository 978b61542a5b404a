// Package fsops is the filesystem black box yaftp's handlers operate
// against. The interface shape is adapted from goftp/server's Driver
// interface (Stat, ListDir, GetFile with an offset, PutFile, DeleteFile,
// DeleteDir, MakeDir, Rename) as implemented by a typical driver, extended
// with the absolutize-without-requiring-existence semantics and the
// offset-seeking read/write handles yaftp's resume support needs.
package fsops

import (
	"io"
	"os"
	"time"
)

// Kind is the coarse file type carried on the wire for info/ls.
type Kind byte

const (
	KindDir   Kind = 0
	KindFile  Kind = 1
	KindOther Kind = 0xff
)

// FileStat is the result of Info, per spec section 3.
type FileStat struct {
	Type       Kind
	Size       uint64
	ModTime    time.Time
	AccessTime time.Time
	AbsPath    string
}

// DirEntry is one row of an ls result, per spec section 3.
type DirEntry struct {
	Name       string
	Kind       string // folder, file, symlink, other
	Size       uint64
	ModTime    time.Time
	AccessTime time.Time
}

// dirTimeLayout is the fixed UTC timestamp format ls rows use.
const dirTimeLayout = "2006-01-02 15:04:05"

// Format renders the entry as the pipe-delimited row the wire carries.
func (e DirEntry) Format() string {
	return e.Name + "|" + e.Kind + "|" +
		itoa(e.Size) + "|" +
		e.ModTime.UTC().Format(dirTimeLayout) + "|" +
		e.AccessTime.UTC().Format(dirTimeLayout)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// ReadSeekCloser is what OpenRead hands back: a handle positioned at the
// start of the file that callers seek and read from directly.
type ReadSeekCloser interface {
	io.Reader
	io.Seeker
	io.Closer
}

// WriteSeekCloser is what OpenWrite hands back for put's resume support.
type WriteSeekCloser interface {
	io.Writer
	io.Seeker
	io.Closer
}

// Filesystem is the black box the server's operation handlers use. It
// never sees wire-format errors; callers translate os errors to the
// protocol's error kinds at the handler boundary.
type Filesystem interface {
	// Absolutize resolves path to a canonical absolute path without
	// requiring that anything exist there.
	Absolutize(path string) (string, error)

	// ReadDir lists the immediate children of path.
	ReadDir(path string) ([]DirEntry, error)

	// Stat describes the file or directory at path.
	Stat(path string) (FileStat, error)

	// Copy copies the file at src to dst, overwriting dst.
	Copy(src, dst string) error

	// RemoveFile removes a single file.
	RemoveFile(path string) error

	// RemoveTree removes a directory and its contents.
	RemoveTree(path string) error

	// MkdirAll creates path and any missing parents. It is idempotent:
	// an already-existing directory is not an error (see DESIGN.md).
	MkdirAll(path string) error

	// Getwd returns the process current working directory.
	Getwd() (string, error)

	// OpenRead opens path for reading, positioned at offset 0.
	OpenRead(path string) (ReadSeekCloser, error)

	// OpenWrite opens path for writing, creating it if it does not
	// exist. The caller seeks to the desired start position.
	OpenWrite(path string) (WriteSeekCloser, error)
}

// IsNotExist and IsPermission let callers classify the errors returned
// by a Filesystem implementation without depending on the os package
// directly, matching the driver-agnostic style of the interface above.
func IsNotExist(err error) bool   { return os.IsNotExist(err) }
func IsPermission(err error) bool { return os.IsPermission(err) }
