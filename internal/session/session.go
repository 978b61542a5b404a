// Package session implements the client side of one yaftp command
// exchange: handshake, send command + arguments, read the reply, and
// (for put/get) stream the bulk body. Every exported function here
// owns exactly one net.Conn for exactly one operation, the same
// "construct -> drive -> drop" scoped-acquisition pattern the teacher
// uses for its dialed connections.
package session

import (
	"net"
	"time"

	"github.com/ntess/yaftp/internal/fsops"
	"github.com/ntess/yaftp/internal/wire"
	"github.com/ntess/yaftp/internal/yflog"
)

// Handshake performs the version/method negotiation that precedes
// every operation, per spec section 4.4.
func Handshake(c *wire.Conn) error {
	if err := c.WriteMethodRequest(wire.ClientMethods); err != nil {
		return err
	}

	methods, err := c.ReadMethodResponse()
	if err != nil {
		return err
	}

	for _, m := range methods {
		if m > wire.CmdCat {
			// informational only: a method byte beyond what we know
			// about is not fatal, just surprising.
			yflog.Warn("server advertised unknown method %d", m)
		}
	}

	return nil
}

// open wraps a freshly spawned net.Conn as a wire.Conn and performs
// the mandatory handshake, closing the connection on any handshake
// failure so callers never leak a half-negotiated socket.
func open(nc net.Conn) (*wire.Conn, error) {
	c := wire.New(nc)
	if err := Handshake(c); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Ls lists the directory at path, returning each row's pipe-delimited
// fields unparsed -- formatting is fsops.DirEntry's concern on the
// server side; the client only needs to display rows.
func Ls(nc net.Conn, path string) ([]string, error) {
	c, err := open(nc)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if err := c.WriteCommand(wire.CmdLs, 1); err != nil {
		return nil, err
	}
	if err := c.WriteArgumentString(path); err != nil {
		return nil, err
	}

	n, err := c.ReadReply()
	if err != nil {
		return nil, err
	}

	rows := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		row, err := c.ReadArgument(wire.MaxDirRow)
		if err != nil {
			return nil, err
		}
		rows = append(rows, string(row))
	}
	return rows, nil
}

// Cwd returns the server process's current working directory.
func Cwd(nc net.Conn) (string, error) {
	c, err := open(nc)
	if err != nil {
		return "", err
	}
	defer c.Close()

	if err := c.WriteCommand(wire.CmdCwd, 0); err != nil {
		return "", err
	}

	if _, err := c.ReadReply(); err != nil {
		return "", err
	}

	p, err := c.ReadArgument(wire.MaxDirRow)
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// Cp copies src to dst on the server.
func Cp(nc net.Conn, src, dst string) error {
	c, err := open(nc)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.WriteCommand(wire.CmdCp, 2); err != nil {
		return err
	}
	if err := c.WriteArgumentString(src); err != nil {
		return err
	}
	if err := c.WriteArgumentString(dst); err != nil {
		return err
	}
	_, err = c.ReadReply()
	return err
}

// Mkd creates path (and parents) on the server.
func Mkd(nc net.Conn, path string) error {
	c, err := open(nc)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.WriteCommand(wire.CmdMkd, 1); err != nil {
		return err
	}
	if err := c.WriteArgumentString(path); err != nil {
		return err
	}
	_, err = c.ReadReply()
	return err
}

// Mv moves src to dst on the server.
func Mv(nc net.Conn, src, dst string) error {
	c, err := open(nc)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.WriteCommand(wire.CmdMv, 2); err != nil {
		return err
	}
	if err := c.WriteArgumentString(src); err != nil {
		return err
	}
	if err := c.WriteArgumentString(dst); err != nil {
		return err
	}
	_, err = c.ReadReply()
	return err
}

// Rm removes path on the server.
func Rm(nc net.Conn, path string) error {
	c, err := open(nc)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.WriteCommand(wire.CmdRm, 1); err != nil {
		return err
	}
	if err := c.WriteArgumentString(path); err != nil {
		return err
	}
	_, err = c.ReadReply()
	return err
}

// Info stats path on the server.
func Info(nc net.Conn, path string) (fsops.FileStat, error) {
	c, err := open(nc)
	if err != nil {
		return fsops.FileStat{}, err
	}
	defer c.Close()

	if err := c.WriteCommand(wire.CmdInfo, 1); err != nil {
		return fsops.FileStat{}, err
	}
	if err := c.WriteArgumentString(path); err != nil {
		return fsops.FileStat{}, err
	}

	if _, err := c.ReadReply(); err != nil {
		return fsops.FileStat{}, err
	}

	typeByte, err := c.ReadArgument(1)
	if err != nil {
		return fsops.FileStat{}, err
	}
	size, err := c.ReadArgument(8)
	if err != nil {
		return fsops.FileStat{}, err
	}
	mtime, err := c.ReadArgument(8)
	if err != nil {
		return fsops.FileStat{}, err
	}
	atime, err := c.ReadArgument(8)
	if err != nil {
		return fsops.FileStat{}, err
	}
	abs, err := c.ReadArgument(wire.MaxDirRow)
	if err != nil {
		return fsops.FileStat{}, err
	}

	return fsops.FileStat{
		Type:       fsops.Kind(typeByte[0]),
		Size:       beUint64(size),
		ModTime:    time.Unix(int64(beUint64(mtime)), 0).UTC(),
		AccessTime: time.Unix(int64(beUint64(atime)), 0).UTC(),
		AbsPath:    string(abs),
	}, nil
}

// Hash returns the lowercase hex MD5 of the first end bytes of path on
// the server.
func Hash(nc net.Conn, path string, end uint64) (string, error) {
	c, err := open(nc)
	if err != nil {
		return "", err
	}
	defer c.Close()

	if err := c.WriteCommand(wire.CmdHash, 2); err != nil {
		return "", err
	}
	if err := c.WriteArgumentString(path); err != nil {
		return "", err
	}
	if err := c.WriteArgument(beBytes64(end)); err != nil {
		return "", err
	}

	if _, err := c.ReadReply(); err != nil {
		return "", err
	}

	digest, err := c.ReadArgument(wire.MaxHashArg)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Cat returns the full contents of path, which must be small (server
// enforces MaxCatBody).
func Cat(nc net.Conn, path string) ([]byte, error) {
	c, err := open(nc)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if err := c.WriteCommand(wire.CmdCat, 1); err != nil {
		return nil, err
	}
	if err := c.WriteArgumentString(path); err != nil {
		return nil, err
	}

	if _, err := c.ReadReply(); err != nil {
		return nil, err
	}

	return c.ReadArgument(wire.MaxCatBody)
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

func beBytes64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}
