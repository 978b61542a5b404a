// Package server implements the session dispatcher (spec component C5)
// and the per-command operation handlers (C6). Its accept loop is a
// task-per-connection design grounded on the teacher's internal/ron
// Server.serve/handshake/clientHandler trio: one goroutine per accepted
// connection, sharing no mutable state beyond the Filesystem.
package server

import (
	"io"
	"net"
	"strings"

	"github.com/google/uuid"

	"github.com/ntess/yaftp/internal/fsops"
	"github.com/ntess/yaftp/internal/protoerr"
	"github.com/ntess/yaftp/internal/wire"
	"github.com/ntess/yaftp/internal/yflog"
)

// Server dispatches accepted connections to operation handlers against
// a single Filesystem. It holds no per-connection state: each exchange
// is handled start to finish by one goroutine before the connection is
// closed, matching spec section 3's "the server never retains
// per-session state across exchanges."
type Server struct {
	FS fsops.Filesystem
}

func New(fs fsops.Filesystem) *Server {
	return &Server{FS: fs}
}

// Serve accepts connections from ln until it returns an error (e.g. the
// listener was closed), spawning one handler goroutine per connection.
func (s *Server) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if strings.Contains(err.Error(), "use of closed network connection") {
				return nil
			}
			return err
		}

		go s.HandleConn(conn)
	}
}

// HandleConn runs the state machine of spec section 4.5 for a single
// accepted connection: Accepted -> HandshakeIn -> HandshakeOut ->
// CommandIn -> Handling{op} -> Done. It always closes conn on return.
func (s *Server) HandleConn(conn net.Conn) {
	defer conn.Close()

	remote := conn.RemoteAddr()
	cid := uuid.NewString()[:8]
	c := wire.New(conn)

	if err := s.handshake(c); err != nil {
		if err != io.EOF {
			yflog.Error("[%s] handshake with %v failed: %v", cid, remote, err)
		}
		return
	}

	cmd, narg, err := c.ReadCommand()
	if err != nil {
		if err != io.EOF {
			yflog.Error("[%s] reading command from %v failed: %v", cid, remote, err)
		}
		return
	}

	if !wire.ValidCommand(cmd) {
		yflog.Warn("[%s] unsupported command %v from %v, closing", cid, cmd, remote)
		return
	}

	if err := s.dispatch(c, cmd, narg); err != nil {
		yflog.Debug("[%s] operation %v from %v failed: %v", cid, cmd, remote, err)
	}
}

// handshake reads the client's MethodRequest and replies with the full
// supported method list, per spec section 4.5 steps 1-2.
func (s *Server) handshake(c *wire.Conn) error {
	if _, err := c.ReadMethodRequest(); err != nil {
		return err
	}
	return c.WriteMethodResponse(wire.SupportedMethods)
}

// dispatch routes a decoded command to its handler and returns the
// handler's error. Handlers validate NARG themselves and reply
// ArgumentCountError on mismatch (spec section 4.5 step 4), and each
// handler writes its own error Reply; dispatch writes no Reply. A
// handler that fails while reading a u64 scalar argument (put/get/hash)
// or a put bulk body returns without a Reply, so the peer sees only the
// connection close.
func (s *Server) dispatch(c *wire.Conn, cmd byte, narg uint32) error {
	var err error

	switch cmd {
	case wire.CmdLs:
		err = s.handleLs(c, narg)
	case wire.CmdCwd:
		err = s.handleCwd(c, narg)
	case wire.CmdCp:
		err = s.handleCp(c, narg)
	case wire.CmdMkd:
		err = s.handleMkd(c, narg)
	case wire.CmdMv:
		err = s.handleMv(c, narg)
	case wire.CmdRm:
		err = s.handleRm(c, narg)
	case wire.CmdPut:
		err = s.handlePut(c, narg)
	case wire.CmdGet:
		err = s.handleGet(c, narg)
	case wire.CmdInfo:
		err = s.handleInfo(c, narg)
	case wire.CmdHash:
		err = s.handleHash(c, narg)
	case wire.CmdCat:
		err = s.handleCat(c, narg)
	default:
		return protoerr.New(protoerr.NoSupportCommand)
	}

	return err
}

// requireNarg writes ArgumentCountError and returns it if narg != want.
// Handlers call this before consuming any arguments, per spec section
// 4.5 step 4 and section 7's argument-count-first policy.
func requireNarg(c *wire.Conn, narg uint32, want uint32) error {
	if narg == want {
		return nil
	}
	perr := protoerr.New(protoerr.ArgumentCountError)
	c.WriteReply(protoerr.ToRetcode(perr.Kind), 0)
	return perr
}

// replyError classifies err (a plain os/fs error or an already-typed
// *protoerr.Error) and writes the corresponding Reply.
func replyError(c *wire.Conn, err error) error {
	kind := classify(err)
	c.WriteReply(protoerr.ToRetcode(kind), 0)
	return err
}

// classify maps a raw filesystem/runtime error to a protoerr.Kind. If
// err already carries a Kind (from absolutize or an earlier stage) that
// Kind is kept as-is.
func classify(err error) protoerr.Kind {
	if pe, ok := err.(*protoerr.Error); ok {
		return pe.Kind
	}
	switch {
	case fsops.IsNotExist(err):
		return protoerr.NotFound
	case fsops.IsPermission(err):
		return protoerr.NoPermission
	default:
		return protoerr.UnknownError
	}
}

// absolutize resolves path through the filesystem's absolutize routine,
// mapping permission/not-found failures per spec section 4.6.
func absolutize(fs fsops.Filesystem, path string) (string, error) {
	abs, err := fs.Absolutize(path)
	if err != nil {
		return "", protoerr.Wrap(classify(err), err)
	}
	return abs, nil
}
