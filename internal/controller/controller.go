// Package controller implements the interactive command-line front end
// (spec component C7): a line-oriented command parser, server-side path
// resolution against a held remote working directory, and the resume
// composition logic that drives a resumed put/get. Its REPL is grounded
// on the teacher's pkg/miniclient Conn.Attach: a peterh/liner prompt
// loop with history, one command parsed and dispatched per line.
package controller

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/ntess/yaftp/internal/protoerr"
	"github.com/ntess/yaftp/internal/session"
	"github.com/ntess/yaftp/internal/spawner"
)

// Controller drives one interactive client against a Spawner, tracking
// a remote working directory that relative paths resolve against.
type Controller struct {
	sp      spawner.Spawner
	wd      string
	lwd     string
	lastCmd string
}

// New starts a Controller against sp, fetching the server's initial
// working directory over a fresh connection.
func New(sp spawner.Spawner) (*Controller, error) {
	c := &Controller{sp: sp, wd: "/"}

	lwd, err := os.Getwd()
	if err == nil {
		c.lwd = lwd
	}

	if nc, derr := sp.Spawn(context.Background()); derr == nil {
		if wd, werr := session.Cwd(nc); werr == nil {
			c.wd = wd
		}
	}

	return c, nil
}

// resolve turns a user-typed path into the absolute remote path it
// names, honoring ".." ascension and leaving absolute paths untouched.
func (c *Controller) resolve(p string) string {
	if p == "" {
		return c.wd
	}
	if strings.HasPrefix(p, "/") {
		return path.Clean(p)
	}
	return path.Clean(path.Join(c.wd, p))
}

// resolveLocal mirrors resolve for the local filesystem, used by the
// supplemented lcd/lls/put/get local-path arguments.
func (c *Controller) resolveLocal(p string) string {
	if p == "" {
		return c.lwd
	}
	if path.IsAbs(p) || (len(p) > 1 && p[1] == ':') {
		return p
	}
	return path.Clean(path.Join(c.lwd, p))
}

// Run starts the liner-based prompt loop. It blocks until the user
// disconnects (Ctrl-D) or types "quit".
func (c *Controller) Run() {
	input := liner.NewLiner()
	defer input.Close()

	input.SetCtrlCAborts(true)
	input.SetTabCompletionStyle(liner.TabPrints)

	fmt.Println("yaftp controller -- type 'help' for commands, 'quit' to exit")

	for {
		line, err := input.Prompt(fmt.Sprintf("yaftp:%s$ ", c.wd))
		if err == liner.ErrPromptAborted {
			continue
		}
		if err == io.EOF {
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		input.AppendHistory(line)

		if line == "quit" {
			return
		}

		if err := c.Dispatch(line); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}

// Dispatch parses and executes one line against the controller's
// spawner, printing results to stdout. It is split out from Run so
// tests and scripted callers can drive it without a liner prompt.
func (c *Controller) Dispatch(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := fields[0], fields[1:]
	c.lastCmd = cmd

	switch cmd {
	case "help":
		c.help()
		return nil
	case "pwd":
		fmt.Println(c.wd)
		return nil
	case "lpwd":
		fmt.Println(c.lwd)
		return nil
	case "cd":
		return c.cd(args)
	case "lcd":
		return c.lcd(args)
	case "ls":
		return c.ls(args)
	case "lls":
		return c.lls(args)
	case "cp":
		return c.withConn2(args, session.Cp)
	case "mv":
		return c.withConn2(args, session.Mv)
	case "mkdir":
		return c.withConn1(args, session.Mkd)
	case "rm":
		return c.withConn1(args, session.Rm)
	case "hash":
		return c.hash(args)
	case "cat":
		return c.cat(args)
	case "get":
		return c.get(args)
	case "put":
		return c.put(args)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (c *Controller) help() {
	fmt.Println(`commands:
  ls [path]             list a remote directory
  cd <path>             change the remote working directory
  pwd                   print the remote working directory
  lls [path]            list a local directory
  lcd <path>            change the local working directory
  lpwd                  print the local working directory
  cp <src> <dst>        copy a remote file
  mv <src> <dst>        move a remote file
  mkdir <path>          create a remote directory (idempotent)
  rm <path>             remove a remote file or directory
  hash <path> <end>     md5 of the first end bytes of a remote file
  cat <path>            print a small remote file
  get <remote> [local]  download, resuming if local already exists
  put <local> [remote]  upload, resuming if remote already exists
  quit                  exit`)
}

func (c *Controller) dial() (net.Conn, error) {
	return c.sp.Spawn(context.Background())
}

func (c *Controller) cd(args []string) error {
	target := "/"
	if len(args) > 0 {
		target = args[0]
	}
	abs := c.resolve(target)

	nc, err := c.dial()
	if err != nil {
		return err
	}
	defer nc.Close()

	// Validate the destination exists and is a directory before
	// committing to it.
	st, err := session.Info(nc, abs)
	if err != nil {
		return err
	}
	if st.Type != 0 {
		return fmt.Errorf("%s is not a directory", abs)
	}
	c.wd = abs
	return nil
}

func (c *Controller) lcd(args []string) error {
	target := c.lwd
	if len(args) > 0 {
		target = args[0]
	}
	abs := c.resolveLocal(target)

	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", abs)
	}
	c.lwd = abs
	return nil
}

func (c *Controller) ls(args []string) error {
	target := c.wd
	if len(args) > 0 {
		target = c.resolve(args[0])
	}

	nc, err := c.dial()
	if err != nil {
		return err
	}
	defer nc.Close()

	rows, err := session.Ls(nc, target)
	if err != nil {
		return err
	}
	for _, r := range rows {
		fmt.Println(r)
	}
	return nil
}

func (c *Controller) lls(args []string) error {
	target := c.lwd
	if len(args) > 0 {
		target = c.resolveLocal(args[0])
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
	return nil
}

func (c *Controller) withConn1(args []string, op func(net.Conn, string) error) error {
	if len(args) != 1 {
		return fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	nc, err := c.dial()
	if err != nil {
		return err
	}
	defer nc.Close()
	return op(nc, c.resolve(args[0]))
}

func (c *Controller) withConn2(args []string, op func(net.Conn, string, string) error) error {
	if len(args) != 2 {
		return fmt.Errorf("expected 2 arguments, got %d", len(args))
	}
	nc, err := c.dial()
	if err != nil {
		return err
	}
	defer nc.Close()
	return op(nc, c.resolve(args[0]), c.resolve(args[1]))
}

func (c *Controller) hash(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: hash <path> <end>")
	}
	end, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid end offset: %w", err)
	}

	nc, err := c.dial()
	if err != nil {
		return err
	}
	defer nc.Close()

	digest, err := session.Hash(nc, c.resolve(args[0]), end)
	if err != nil {
		return err
	}
	fmt.Println(digest)
	return nil
}

func (c *Controller) cat(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: cat <path>")
	}
	nc, err := c.dial()
	if err != nil {
		return err
	}
	defer nc.Close()

	body, err := session.Cat(nc, c.resolve(args[0]))
	if err != nil {
		return err
	}
	os.Stdout.Write(body)
	fmt.Println()
	return nil
}

// get downloads remote into local, computing a resume start per spec
// section 4.4.3: stat both sides, refuse if the local copy is already
// at least as large as the remote, compare the shared prefix's hash,
// and only then issue the transfer starting at the overlap.
func (c *Controller) get(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: get <remote> [local]")
	}
	remote := c.resolve(args[0])
	local := c.resolveLocal(path.Base(remote))
	if len(args) == 2 {
		local = c.resolveLocal(args[1])
	}

	nc, err := c.dial()
	if err != nil {
		return err
	}
	remoteStat, err := session.Info(nc, remote)
	nc.Close()
	if err != nil {
		return err
	}

	var localSize uint64
	if info, err := os.Stat(local); err == nil {
		localSize = uint64(info.Size())
	}

	start, err := c.planResume(remoteStat.Size, localSize, func(end uint64) (string, error) {
		f, err := os.Open(local)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return localPrefixHash(f, end)
	}, func(end uint64) (string, error) {
		nc, err := c.dial()
		if err != nil {
			return "", err
		}
		defer nc.Close()
		return session.Hash(nc, remote, end)
	})
	if err != nil {
		return err
	}

	gnc, err := c.dial()
	if err != nil {
		return err
	}
	defer gnc.Close()
	return session.Get(gnc, local, remote, start)
}

// put uploads local into remote with the same resume composition as get.
func (c *Controller) put(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: put <local> [remote]")
	}
	local := c.resolveLocal(args[0])
	remote := c.resolve(path.Base(local))
	if len(args) == 2 {
		remote = c.resolve(args[1])
	}

	info, err := os.Stat(local)
	if err != nil {
		return err
	}
	localSize := uint64(info.Size())

	var remoteSize uint64
	nc, err := c.dial()
	if err != nil {
		return err
	}
	if st, err := session.Info(nc, remote); err == nil {
		remoteSize = st.Size
	} else if protoerr.KindOf(err) != protoerr.NotFound {
		nc.Close()
		return err
	}
	nc.Close()

	start, err := c.planResume(localSize, remoteSize, func(end uint64) (string, error) {
		f, err := os.Open(local)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return localPrefixHash(f, end)
	}, func(end uint64) (string, error) {
		nc, err := c.dial()
		if err != nil {
			return "", err
		}
		defer nc.Close()
		return session.Hash(nc, remote, end)
	})
	if err != nil {
		return err
	}

	pnc, err := c.dial()
	if err != nil {
		return err
	}
	defer pnc.Close()
	return session.Put(pnc, local, remote, start)
}

// planResume computes the start offset for a resumed transfer: the
// overlap is the smaller of the two sizes; a transfer is refused if
// the destination is already at least as large as the source, and the
// shared prefix must hash identically on both sides before resuming
// from it, per spec section 4.4.3.
func (c *Controller) planResume(srcSize, dstSize uint64, srcHash, dstHash func(end uint64) (string, error)) (uint64, error) {
	if dstSize == 0 {
		return 0, nil
	}

	overlap := srcSize
	if dstSize < overlap {
		overlap = dstSize
	}
	if dstSize >= srcSize {
		return 0, fmt.Errorf("destination already at least as large as source, nothing to resume")
	}

	h1, err := srcHash(overlap)
	if err != nil {
		return 0, err
	}
	h2, err := dstHash(overlap)
	if err != nil {
		return 0, err
	}
	if h1 != h2 {
		return 0, fmt.Errorf("resume prefix mismatch (%s != %s), refusing to resume", h1, h2)
	}
	return overlap, nil
}

func localPrefixHash(r io.ReadSeeker, end uint64) (string, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	h := md5.New()
	buf := make([]byte, 20*1024*1024)
	if _, err := io.CopyBuffer(h, io.LimitReader(r, int64(end)), buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
