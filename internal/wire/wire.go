// Package wire implements yaftp's framing codec: fixed-width big-endian
// headers, length-prefixed arguments, and the bulk body frame used by
// put/get. It knows nothing about command semantics -- that lives in
// session and server.
package wire

import (
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/ntess/yaftp/internal/protoerr"
)

// Version is the only protocol version yaftp speaks.
const Version byte = 1

// Command identifiers (CMD byte).
const (
	CmdLs   byte = 1
	CmdCwd  byte = 2
	CmdCp   byte = 3
	CmdMkd  byte = 4
	CmdMv   byte = 5
	CmdRm   byte = 6
	CmdPut  byte = 7
	CmdGet  byte = 8
	CmdInfo byte = 9
	CmdHash byte = 10
	CmdCat  byte = 11
)

// ValidCommand reports whether cmd is one of the eleven defined commands.
func ValidCommand(cmd byte) bool {
	return cmd >= CmdLs && cmd <= CmdCat
}

// Per-argument maxima enforced by callers, per spec section 4.1.
const (
	MaxPathArg  = 1024
	MaxDirRow   = 2048
	MaxHashArg  = 32
	MaxCatBody  = 100 * 1024
	BulkBufSize = 2048 // fixed copy-loop granularity for put/get bodies
)

// SupportedMethods is the informational method list the server
// advertises: the ten bytes 1 through 10.
var SupportedMethods = []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

// ClientMethods is the informational method list a client proposes.
var ClientMethods = []byte{1, 2, 3, 4, 5, 6, 7, 8}

// Conn wraps a byte stream with the read/write primitives the protocol
// needs. It does not own the underlying stream's lifecycle beyond Close.
type Conn struct {
	rw io.ReadWriter
	c  io.Closer
}

// New wraps rw (typically a net.Conn) as a wire.Conn.
func New(rw io.ReadWriter) *Conn {
	c, _ := rw.(io.Closer)
	return &Conn{rw: rw, c: c}
}

// Close closes the underlying connection in both directions, if it
// supports closing.
func (c *Conn) Close() error {
	if c.c != nil {
		return c.c.Close()
	}
	return nil
}

// ReadExact reads exactly n bytes or fails with UnknownNetworkError.
func (c *Conn) ReadExact(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.rw, buf); err != nil {
		return nil, protoerr.Wrap(protoerr.UnknownNetworkError, err)
	}
	return buf, nil
}

// WriteAll writes all of b or fails with UnknownNetworkError.
func (c *Conn) WriteAll(b []byte) error {
	if _, err := c.rw.Write(b); err != nil {
		return protoerr.Wrap(protoerr.UnknownNetworkError, err)
	}
	return nil
}

func (c *Conn) readU8() (byte, error) {
	b, err := c.ReadExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Conn) writeU8(v byte) error {
	return c.WriteAll([]byte{v})
}

func (c *Conn) readU32() (uint32, error) {
	b, err := c.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (c *Conn) writeU32(v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return c.WriteAll(b[:])
}

func (c *Conn) readU64() (uint64, error) {
	b, err := c.ReadExact(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (c *Conn) writeU64(v uint64) error {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return c.WriteAll(b[:])
}

// ReadU64 and WriteU64 expose the bare big-endian scalar helpers used by
// the framing primitives below (RETCODE/NARG and friends); command
// arguments always travel as length-prefixed Arguments, never as bare
// scalars, so callers outside this package should reach for
// ReadArgument/WriteArgument instead.
func (c *Conn) ReadU64() (uint64, error)    { return c.readU64() }
func (c *Conn) WriteU64(v uint64) error     { return c.writeU64(v) }
func (c *Conn) ReadU8() (byte, error)       { return c.readU8() }
func (c *Conn) WriteU8(v byte) error        { return c.writeU8(v) }

// WriteMethodRequest writes VER NMETHODS METHODS[...].
func (c *Conn) WriteMethodRequest(methods []byte) error {
	return c.writeMethodFrame(methods)
}

// WriteMethodResponse has the identical wire shape as MethodRequest.
func (c *Conn) WriteMethodResponse(methods []byte) error {
	return c.writeMethodFrame(methods)
}

func (c *Conn) writeMethodFrame(methods []byte) error {
	if len(methods) > 0xff {
		return protoerr.New(protoerr.ArgumentError)
	}
	if err := c.writeU8(Version); err != nil {
		return err
	}
	if err := c.writeU8(byte(len(methods))); err != nil {
		return err
	}
	return c.WriteAll(methods)
}

// ReadMethodRequest reads VER NMETHODS METHODS[...], validating VER.
func (c *Conn) ReadMethodRequest() ([]byte, error) {
	return c.readMethodFrame()
}

// ReadMethodResponse has the identical wire shape as MethodRequest.
func (c *Conn) ReadMethodResponse() ([]byte, error) {
	return c.readMethodFrame()
}

func (c *Conn) readMethodFrame() ([]byte, error) {
	ver, err := c.readU8()
	if err != nil {
		return nil, err
	}
	if ver != Version {
		return nil, protoerr.New(protoerr.NoSupportVersion)
	}
	n, err := c.readU8()
	if err != nil {
		return nil, err
	}
	return c.ReadExact(int(n))
}

// WriteCommand writes CMD NARG.
func (c *Conn) WriteCommand(cmd byte, narg uint32) error {
	if err := c.writeU8(cmd); err != nil {
		return err
	}
	return c.writeU32(narg)
}

// ReadCommand reads CMD NARG.
func (c *Conn) ReadCommand() (cmd byte, narg uint32, err error) {
	cmd, err = c.readU8()
	if err != nil {
		return 0, 0, err
	}
	narg, err = c.readU32()
	if err != nil {
		return 0, 0, err
	}
	return cmd, narg, nil
}

// WriteReply writes RETCODE NARG.
func (c *Conn) WriteReply(code byte, narg uint32) error {
	if err := c.writeU8(code); err != nil {
		return err
	}
	return c.writeU32(narg)
}

// ReadReply reads RETCODE NARG. A non-zero RETCODE is surfaced as a
// *protoerr.Error and NARG is still returned for callers that want to
// drain trailing arguments (none currently do).
func (c *Conn) ReadReply() (narg uint32, err error) {
	code, err := c.readU8()
	if err != nil {
		return 0, err
	}
	narg, err = c.readU32()
	if err != nil {
		return 0, err
	}
	if code != 0 {
		return narg, protoerr.New(protoerr.FromRetcode(code))
	}
	return narg, nil
}

// ReadArgument reads LEN then LEN bytes, rejecting LEN > max with
// ArgumentSizeError before the oversize body is consumed.
func (c *Conn) ReadArgument(max uint64) ([]byte, error) {
	n, err := c.readU64()
	if err != nil {
		return nil, err
	}
	if n > max {
		return nil, protoerr.New(protoerr.ArgumentSizeError)
	}
	return c.ReadExact(int(n))
}

// WriteArgument writes len(b) as u64 then b.
func (c *Conn) WriteArgument(b []byte) error {
	if err := c.writeU64(uint64(len(b))); err != nil {
		return err
	}
	return c.WriteAll(b)
}

// WriteArgumentString is a convenience wrapper for the common case of a
// UTF-8 path or row argument.
func (c *Conn) WriteArgumentString(s string) error {
	return c.WriteArgument([]byte(s))
}

// ReadArgumentString reads an argument and validates it as UTF-8,
// surfacing UTF8FormatError on failure (server side; clients map the
// same condition to ArgumentError per spec section 7).
func (c *Conn) ReadArgumentString(max uint64, onInvalid protoerr.Kind) (string, error) {
	b, err := c.ReadArgument(max)
	if err != nil {
		return "", err
	}
	if !utf8Valid(b) {
		return "", protoerr.New(onInvalid)
	}
	return string(b), nil
}

// WriteBulkHeader writes the LEN prefix of a BulkBody frame.
func (c *Conn) WriteBulkHeader(n uint64) error {
	return c.writeU64(n)
}

// ReadBulkHeader reads the LEN prefix of a BulkBody frame.
func (c *Conn) ReadBulkHeader() (uint64, error) {
	return c.readU64()
}

// CopyBulkFrom streams exactly n bytes from r onto the wire in fixed-size
// chunks, writing the LEN header first.
func (c *Conn) CopyBulkFrom(r io.Reader, n uint64) error {
	if err := c.WriteBulkHeader(n); err != nil {
		return err
	}
	return c.copyExact(c.rw, r, n)
}

// CopyBulkTo reads the LEN header then streams exactly that many bytes
// onto w in fixed-size chunks, returning the number of bytes copied.
func (c *Conn) CopyBulkTo(w io.Writer) (uint64, error) {
	n, err := c.ReadBulkHeader()
	if err != nil {
		return 0, err
	}
	if err := c.copyExact(w, c.rw, n); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *Conn) copyExact(dst io.Writer, src io.Reader, n uint64) error {
	buf := make([]byte, BulkBufSize)
	var copied uint64
	for copied < n {
		want := uint64(len(buf))
		if rem := n - copied; rem < want {
			want = rem
		}
		nr, err := io.ReadFull(src, buf[:want])
		if err != nil {
			return protoerr.Wrap(protoerr.UnknownNetworkError, err)
		}
		if _, err := dst.Write(buf[:nr]); err != nil {
			return protoerr.Wrap(protoerr.UnknownNetworkError, err)
		}
		copied += uint64(nr)
	}
	return nil
}

func utf8Valid(b []byte) bool {
	return utf8.Valid(b)
}
