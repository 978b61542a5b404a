// Package protoerr is the bidirectional mapping between yaftp's wire-level
// return codes and the semantic error kinds handlers and sessions work with.
package protoerr

import "fmt"

// Kind is one of the 17 semantic error kinds the wire protocol can carry.
type Kind byte

const (
	OK                  Kind = 0
	NoSupportVersion    Kind = 1
	NoSupportCommand    Kind = 2
	NoPermission        Kind = 3
	NotFound            Kind = 4
	StartPosError       Kind = 5
	EndPosError         Kind = 6
	ArgumentSizeError   Kind = 7
	ArgumentError       Kind = 8
	ArgumentCountError  Kind = 9
	ReadFolderFailed    Kind = 10
	ReadCwdFailed       Kind = 11
	UTF8FormatError     Kind = 12
	ReadFileError       Kind = 13
	WriteFileError      Kind = 14
	UnknownNetworkError Kind = 15
	UnknownError        Kind = 255
)

var names = map[Kind]string{
	OK:                  "OK",
	NoSupportVersion:    "no support version",
	NoSupportCommand:    "no support command",
	NoPermission:        "no permission",
	NotFound:            "not found",
	StartPosError:       "start pos error",
	EndPosError:         "end pos error",
	ArgumentSizeError:   "argument size error",
	ArgumentError:       "argument error",
	ArgumentCountError:  "argument count error",
	ReadFolderFailed:    "read folder failed",
	ReadCwdFailed:       "read cwd failed",
	UTF8FormatError:     "utf8 format error",
	ReadFileError:       "read file error",
	WriteFileError:      "write file error",
	UnknownNetworkError: "unknown network error",
	UnknownError:        "unknown error",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "unknown error"
}

// Error wraps a Kind as a standard error, optionally carrying the
// underlying cause (never sent over the wire, used for logging).
type Error struct {
	Kind  Kind
	Cause error
}

func New(k Kind) *Error {
	return &Error{Kind: k}
}

func Wrap(k Kind, cause error) *Error {
	return &Error{Kind: k, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ToRetcode returns the 1-byte wire code for a Kind. Every Kind has a code;
// this mapping is total.
func ToRetcode(k Kind) byte {
	return byte(k)
}

// FromRetcode maps a wire byte back to a Kind. Any byte outside the known
// code space maps to UnknownError, per spec.
func FromRetcode(code byte) Kind {
	if _, ok := names[Kind(code)]; ok {
		return Kind(code)
	}
	return UnknownError
}

// KindOf extracts the Kind carried by err, if any, defaulting to
// UnknownError for errors that did not originate from this package.
func KindOf(err error) Kind {
	if err == nil {
		return OK
	}
	if pe, ok := err.(*Error); ok {
		return pe.Kind
	}
	return UnknownError
}
