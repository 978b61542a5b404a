package server_test

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ntess/yaftp/internal/fsops"
	"github.com/ntess/yaftp/internal/protoerr"
	"github.com/ntess/yaftp/internal/server"
	"github.com/ntess/yaftp/internal/session"
)

// startServer spins up a Server bound to root on a loopback listener
// and returns a dialer for tests plus a cleanup func.
func startServer(t *testing.T, root string) (dial func() net.Conn, cleanup func()) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	fs := fsops.NewOSFilesystem()
	s := server.New(fs)
	go s.Serve(ln)

	prevWd, _ := os.Getwd()
	if err := os.Chdir(root); err != nil {
		t.Fatal(err)
	}

	dial = func() net.Conn {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		return c
	}
	cleanup = func() {
		ln.Close()
		os.Chdir(prevWd)
	}
	return dial, cleanup
}

func TestLsCwdInfoRoundTrip(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	dial, cleanup := startServer(t, root)
	defer cleanup()

	wd, err := session.Cwd(dial())
	if err != nil {
		t.Fatal(err)
	}

	rows, err := session.Ls(dial(), wd)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2: %v", len(rows), rows)
	}

	var sawFile, sawDir bool
	for _, r := range rows {
		if strings.HasPrefix(r, "hello.txt|file|11|") {
			sawFile = true
		}
		if strings.HasPrefix(r, "sub|folder|") {
			sawDir = true
		}
	}
	if !sawFile || !sawDir {
		t.Fatalf("rows missing expected entries: %v", rows)
	}

	st, err := session.Info(dial(), filepath.Join(wd, "hello.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if st.Size != 11 || st.Type != fsops.KindFile {
		t.Fatalf("unexpected stat: %+v", st)
	}
}

func TestCpMvRm(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "a.txt")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	dial, cleanup := startServer(t, root)
	defer cleanup()

	dst := filepath.Join(root, "b.txt")
	if err := session.Cp(dial(), src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("copy did not land: %v", err)
	}

	moved := filepath.Join(root, "c.txt")
	if err := session.Mv(dial(), dst, moved); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("mv left source behind")
	}
	if _, err := os.Stat(moved); err != nil {
		t.Fatalf("mv destination missing: %v", err)
	}

	if err := session.Rm(dial(), moved); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(moved); !os.IsNotExist(err) {
		t.Fatalf("rm left file behind")
	}
}

func TestMkdIdempotent(t *testing.T) {
	root := t.TempDir()
	dial, cleanup := startServer(t, root)
	defer cleanup()

	target := filepath.Join(root, "created")
	if err := session.Mkd(dial(), target); err != nil {
		t.Fatal(err)
	}
	if err := session.Mkd(dial(), target); err != nil {
		t.Fatalf("second mkd on existing dir should succeed, got: %v", err)
	}
}

func TestPutGetResume(t *testing.T) {
	root := t.TempDir()
	dial, cleanup := startServer(t, root)
	defer cleanup()

	localSrc := filepath.Join(t.TempDir(), "up.bin")
	payload := strings.Repeat("yaftp", 1000)
	if err := os.WriteFile(localSrc, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	remote := filepath.Join(root, "up.bin")
	if err := session.Put(dial(), localSrc, remote, 0); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(remote)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != payload {
		t.Fatalf("uploaded content mismatch, got %d bytes, want %d", len(got), len(payload))
	}

	// Resume: re-put from byte 100 onward should leave the prefix intact.
	if err := session.Put(dial(), localSrc, remote, 100); err != nil {
		t.Fatal(err)
	}
	got2, err := os.ReadFile(remote)
	if err != nil {
		t.Fatal(err)
	}
	if string(got2) != payload {
		t.Fatalf("resumed put corrupted file: got %d bytes, want %d", len(got2), len(payload))
	}

	localDst := filepath.Join(t.TempDir(), "down.bin")
	if err := session.Get(dial(), localDst, remote, 0); err != nil {
		t.Fatal(err)
	}
	got3, err := os.ReadFile(localDst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got3) != payload {
		t.Fatalf("downloaded content mismatch")
	}
}

func TestHashStability(t *testing.T) {
	root := t.TempDir()
	payload := strings.Repeat("abcdefgh", 4096)
	if err := os.WriteFile(filepath.Join(root, "f.bin"), []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}

	dial, cleanup := startServer(t, root)
	defer cleanup()

	remote := filepath.Join(root, "f.bin")
	h1, err := session.Hash(dial(), remote, uint64(len(payload)))
	if err != nil {
		t.Fatal(err)
	}
	h2, err := session.Hash(dial(), remote, uint64(len(payload)))
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("hash not stable across calls: %s != %s", h1, h2)
	}
	if len(h1) != 32 {
		t.Fatalf("hash not 32 hex chars: %q", h1)
	}
}

func TestCatSizeLimit(t *testing.T) {
	root := t.TempDir()
	small := filepath.Join(root, "small.txt")
	if err := os.WriteFile(small, []byte("fits easily"), 0o644); err != nil {
		t.Fatal(err)
	}

	dial, cleanup := startServer(t, root)
	defer cleanup()

	body, err := session.Cat(dial(), small)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "fits easily" {
		t.Fatalf("got %q", body)
	}

	big := filepath.Join(root, "big.txt")
	if err := os.WriteFile(big, make([]byte, 200*1024), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = session.Cat(dial(), big)
	if protoerr.KindOf(err) != protoerr.ArgumentSizeError {
		t.Fatalf("got %v, want ArgumentSizeError", err)
	}
}

func TestInfoNotFound(t *testing.T) {
	root := t.TempDir()
	dial, cleanup := startServer(t, root)
	defer cleanup()

	_, err := session.Info(dial(), filepath.Join(root, "nope.txt"))
	if protoerr.KindOf(err) != protoerr.NotFound {
		t.Fatalf("got %v, want NotFound", err)
	}
}
