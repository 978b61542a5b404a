package server

import (
	"crypto/md5"
	"encoding/hex"
	"io"

	"github.com/ntess/yaftp/internal/fsops"
	"github.com/ntess/yaftp/internal/protoerr"
	"github.com/ntess/yaftp/internal/wire"
)

// hashChunkSize is fixed at 20 MiB per SPEC_FULL.md's supplemented
// behavior, carried over from the original implementation's hash loop.
const hashChunkSize = 20 * 1024 * 1024

func (s *Server) handleLs(c *wire.Conn, narg uint32) error {
	if err := requireNarg(c, narg, 1); err != nil {
		return err
	}

	path, err := c.ReadArgumentString(wire.MaxPathArg, protoerr.UTF8FormatError)
	if err != nil {
		return replyError(c, err)
	}

	abs, err := absolutize(s.FS, path)
	if err != nil {
		return replyError(c, err)
	}

	entries, err := s.FS.ReadDir(abs)
	if err != nil {
		return replyError(c, protoerr.Wrap(protoerr.ReadFolderFailed, err))
	}

	if err := c.WriteReply(0, uint32(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := c.WriteArgumentString(e.Format()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleCwd(c *wire.Conn, narg uint32) error {
	if err := requireNarg(c, narg, 0); err != nil {
		return err
	}

	wd, err := s.FS.Getwd()
	if err != nil {
		return replyError(c, protoerr.Wrap(protoerr.ReadCwdFailed, err))
	}

	if err := c.WriteReply(0, 1); err != nil {
		return err
	}
	return c.WriteArgumentString(wd)
}

func (s *Server) handleCp(c *wire.Conn, narg uint32) error {
	if err := requireNarg(c, narg, 2); err != nil {
		return err
	}

	src, err := c.ReadArgumentString(wire.MaxPathArg, protoerr.UTF8FormatError)
	if err != nil {
		return replyError(c, err)
	}
	dst, err := c.ReadArgumentString(wire.MaxPathArg, protoerr.UTF8FormatError)
	if err != nil {
		return replyError(c, err)
	}

	absSrc, err := absolutize(s.FS, src)
	if err != nil {
		return replyError(c, err)
	}
	absDst, err := absolutize(s.FS, dst)
	if err != nil {
		return replyError(c, err)
	}

	if err := s.FS.Copy(absSrc, absDst); err != nil {
		return replyError(c, protoerr.Wrap(classify(err), err))
	}

	return c.WriteReply(0, 0)
}

func (s *Server) handleMkd(c *wire.Conn, narg uint32) error {
	if err := requireNarg(c, narg, 1); err != nil {
		return err
	}

	path, err := c.ReadArgumentString(wire.MaxPathArg, protoerr.UTF8FormatError)
	if err != nil {
		return replyError(c, err)
	}

	abs, err := absolutize(s.FS, path)
	if err != nil {
		return replyError(c, err)
	}

	// MkdirAll is idempotent: an already-existing directory is success,
	// per SPEC_FULL.md's resolution of spec.md's Open Question.
	if err := s.FS.MkdirAll(abs); err != nil {
		return replyError(c, protoerr.Wrap(classify(err), err))
	}

	return c.WriteReply(0, 0)
}

func (s *Server) handleMv(c *wire.Conn, narg uint32) error {
	if err := requireNarg(c, narg, 2); err != nil {
		return err
	}

	src, err := c.ReadArgumentString(wire.MaxPathArg, protoerr.UTF8FormatError)
	if err != nil {
		return replyError(c, err)
	}
	dst, err := c.ReadArgumentString(wire.MaxPathArg, protoerr.UTF8FormatError)
	if err != nil {
		return replyError(c, err)
	}

	absSrc, err := absolutize(s.FS, src)
	if err != nil {
		return replyError(c, err)
	}
	absDst, err := absolutize(s.FS, dst)
	if err != nil {
		return replyError(c, err)
	}

	// mv is copy-then-remove, not an atomic rename, per spec section 4.6.
	if err := s.FS.Copy(absSrc, absDst); err != nil {
		return replyError(c, protoerr.Wrap(classify(err), err))
	}
	if err := s.FS.RemoveFile(absSrc); err != nil {
		return replyError(c, protoerr.Wrap(classify(err), err))
	}

	return c.WriteReply(0, 0)
}

func (s *Server) handleRm(c *wire.Conn, narg uint32) error {
	if err := requireNarg(c, narg, 1); err != nil {
		return err
	}

	path, err := c.ReadArgumentString(wire.MaxPathArg, protoerr.UTF8FormatError)
	if err != nil {
		return replyError(c, err)
	}

	abs, err := absolutize(s.FS, path)
	if err != nil {
		return replyError(c, err)
	}

	st, err := s.FS.Stat(abs)
	if err != nil {
		return replyError(c, protoerr.Wrap(classify(err), err))
	}

	switch st.Type {
	case fsops.KindDir:
		err = s.FS.RemoveTree(abs)
	case fsops.KindFile:
		err = s.FS.RemoveFile(abs)
	default:
		err = protoerr.New(protoerr.UnknownError)
	}
	if err != nil {
		return replyError(c, protoerr.Wrap(classify(err), err))
	}

	return c.WriteReply(0, 0)
}

func (s *Server) handleInfo(c *wire.Conn, narg uint32) error {
	if err := requireNarg(c, narg, 1); err != nil {
		return err
	}

	path, err := c.ReadArgumentString(wire.MaxPathArg, protoerr.UTF8FormatError)
	if err != nil {
		return replyError(c, err)
	}

	abs, err := absolutize(s.FS, path)
	if err != nil {
		return replyError(c, err)
	}

	st, err := s.FS.Stat(abs)
	if err != nil {
		return replyError(c, protoerr.Wrap(classify(err), err))
	}

	if err := c.WriteReply(0, 5); err != nil {
		return err
	}
	if err := c.WriteArgument([]byte{byte(st.Type)}); err != nil {
		return err
	}
	if err := c.WriteArgument(beBytes64(st.Size)); err != nil {
		return err
	}
	if err := c.WriteArgument(beBytes64(uint64(st.ModTime.Unix()))); err != nil {
		return err
	}
	if err := c.WriteArgument(beBytes64(uint64(st.AccessTime.Unix()))); err != nil {
		return err
	}
	return c.WriteArgumentString(st.AbsPath)
}

func (s *Server) handlePut(c *wire.Conn, narg uint32) error {
	if err := requireNarg(c, narg, 3); err != nil {
		return err
	}

	remote, err := c.ReadArgumentString(wire.MaxPathArg, protoerr.UTF8FormatError)
	if err != nil {
		return replyError(c, err)
	}
	startArg, err := c.ReadArgument(8)
	if err != nil {
		return err
	}
	start := beUint64(startArg)

	abs, err := absolutize(s.FS, remote)
	if err != nil {
		return replyError(c, err)
	}

	w, err := s.FS.OpenWrite(abs)
	if err != nil {
		return replyError(c, protoerr.Wrap(protoerr.WriteFileError, err))
	}
	defer w.Close()

	if _, err := w.Seek(int64(start), 0); err != nil {
		return replyError(c, protoerr.Wrap(protoerr.StartPosError, err))
	}

	if _, err := c.CopyBulkTo(w); err != nil {
		return err
	}

	return c.WriteReply(0, 0)
}

func (s *Server) handleGet(c *wire.Conn, narg uint32) error {
	if err := requireNarg(c, narg, 2); err != nil {
		return err
	}

	remote, err := c.ReadArgumentString(wire.MaxPathArg, protoerr.UTF8FormatError)
	if err != nil {
		return replyError(c, err)
	}
	startArg, err := c.ReadArgument(8)
	if err != nil {
		return err
	}
	start := beUint64(startArg)

	abs, err := absolutize(s.FS, remote)
	if err != nil {
		return replyError(c, err)
	}

	st, err := s.FS.Stat(abs)
	if err != nil {
		return replyError(c, protoerr.Wrap(classify(err), err))
	}
	if start > st.Size {
		return replyError(c, protoerr.New(protoerr.StartPosError))
	}

	r, err := s.FS.OpenRead(abs)
	if err != nil {
		return replyError(c, protoerr.Wrap(protoerr.ReadFileError, err))
	}
	defer r.Close()

	if _, err := r.Seek(int64(start), 0); err != nil {
		return replyError(c, protoerr.Wrap(protoerr.StartPosError, err))
	}

	if err := c.WriteReply(0, 1); err != nil {
		return err
	}

	return c.CopyBulkFrom(r, st.Size-start)
}

func (s *Server) handleHash(c *wire.Conn, narg uint32) error {
	if err := requireNarg(c, narg, 2); err != nil {
		return err
	}

	path, err := c.ReadArgumentString(wire.MaxPathArg, protoerr.UTF8FormatError)
	if err != nil {
		return replyError(c, err)
	}
	endArg, err := c.ReadArgument(8)
	if err != nil {
		return err
	}
	end := beUint64(endArg)

	abs, err := absolutize(s.FS, path)
	if err != nil {
		return replyError(c, err)
	}

	r, err := s.FS.OpenRead(abs)
	if err != nil {
		return replyError(c, protoerr.Wrap(protoerr.ReadFileError, err))
	}
	defer r.Close()

	digest, err := hashPrefix(r, end)
	if err != nil {
		return replyError(c, protoerr.Wrap(protoerr.ReadFileError, err))
	}

	if err := c.WriteReply(0, 1); err != nil {
		return err
	}
	return c.WriteArgumentString(digest)
}

// hashPrefix computes the lowercase hex MD5 of the first end bytes of
// r, stopping at EOF if the file is shorter, using a 20 MiB buffer per
// SPEC_FULL.md's supplemented behavior.
func hashPrefix(r io.Reader, end uint64) (string, error) {
	h := md5.New()
	buf := make([]byte, hashChunkSize)

	var read uint64
	for read < end {
		want := uint64(len(buf))
		if rem := end - read; rem < want {
			want = rem
		}
		n, err := r.Read(buf[:want])
		if n > 0 {
			h.Write(buf[:n])
			read += uint64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *Server) handleCat(c *wire.Conn, narg uint32) error {
	if err := requireNarg(c, narg, 1); err != nil {
		return err
	}

	path, err := c.ReadArgumentString(wire.MaxPathArg, protoerr.UTF8FormatError)
	if err != nil {
		return replyError(c, err)
	}

	abs, err := absolutize(s.FS, path)
	if err != nil {
		return replyError(c, err)
	}

	st, err := s.FS.Stat(abs)
	if err != nil {
		return replyError(c, protoerr.Wrap(classify(err), err))
	}
	if st.Size > wire.MaxCatBody {
		return replyError(c, protoerr.New(protoerr.ArgumentSizeError))
	}

	r, err := s.FS.OpenRead(abs)
	if err != nil {
		return replyError(c, protoerr.Wrap(protoerr.ReadFileError, err))
	}
	defer r.Close()

	body := make([]byte, st.Size)
	if _, err := io.ReadFull(r, body); err != nil {
		return replyError(c, protoerr.Wrap(protoerr.ReadFileError, err))
	}

	if err := c.WriteReply(0, 1); err != nil {
		return err
	}
	return c.WriteArgument(body)
}

func beBytes64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}
