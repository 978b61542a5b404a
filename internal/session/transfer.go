package session

import (
	"net"
	"os"

	"github.com/ntess/yaftp/internal/wire"
)

// Put uploads localPath to remote on the server, starting at byte start.
// Per spec section 4.4.2, the client opens the local file, seeks to
// start, and streams exactly (size - start) bytes as the BulkBody
// immediately following the command arguments; it then reads a final
// Reply (the Open Question in spec section 9 is resolved in favor of
// always replying after put).
func Put(nc net.Conn, localPath, remote string, start uint64) error {
	c, err := open(nc)
	if err != nil {
		return err
	}
	defer c.Close()

	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := uint64(info.Size())
	if start > size {
		start = size
	}

	if _, err := f.Seek(int64(start), os.SEEK_SET); err != nil {
		return err
	}

	if err := c.WriteCommand(wire.CmdPut, 3); err != nil {
		return err
	}
	if err := c.WriteArgumentString(remote); err != nil {
		return err
	}
	if err := c.WriteArgument(beBytes64(start)); err != nil {
		return err
	}

	if err := c.CopyBulkFrom(f, size-start); err != nil {
		return err
	}

	_, err = c.ReadReply()
	return err
}

// Get downloads remote from the server into localPath, starting at
// byte start. If start == 0 the local file is created fresh; otherwise
// it is opened read/write and the writer seeks to start, per spec
// section 4.4.2. No Reply follows the body: the sender signals
// completion by closing.
func Get(nc net.Conn, localPath, remote string, start uint64) error {
	c, err := open(nc)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.WriteCommand(wire.CmdGet, 2); err != nil {
		return err
	}
	if err := c.WriteArgumentString(remote); err != nil {
		return err
	}
	if err := c.WriteArgument(beBytes64(start)); err != nil {
		return err
	}

	if _, err := c.ReadReply(); err != nil {
		return err
	}

	flags := os.O_RDWR | os.O_CREATE
	if start == 0 {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(localPath, flags, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Seek(int64(start), os.SEEK_SET); err != nil {
		return err
	}

	_, err = c.CopyBulkTo(f)
	return err
}
