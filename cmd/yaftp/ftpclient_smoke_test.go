package main

import (
	"io"
	"io/ioutil"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/dutchcoders/goftp"
	ftpserver "github.com/goftp/server"

	"github.com/ntess/yaftp/internal/fsops"
)

// TestFTPDriverSmoke sanity-checks fsops.FTPDriver -- and through it the
// directory-listing row format ls shares with the wire protocol -- by
// serving it through goftp/server and driving it with a generic FTP
// client, the same way the teacher's src/protonuke/ftp.go drives its own
// FileDriver with github.com/dutchcoders/goftp.
func TestFTPDriverSmoke(t *testing.T) {
	root := t.TempDir()
	if err := ioutil.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello from yaftp"), 0o644); err != nil {
		t.Fatal(err)
	}

	prevWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(root); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(prevWd)

	port, err := freePort()
	if err != nil {
		t.Fatal(err)
	}

	factory := &fsops.FTPDriverFactory{FS: fsops.NewOSFilesystem()}

	opt := &ftpserver.ServerOpts{
		Factory:  factory,
		Auth:     anonAuth{},
		Name:     "yaftp-smoke",
		PublicIp: "127.0.0.1",
		Port:     port,
	}
	srv := ftpserver.NewServer(opt)

	// srv.ListenAndServe blocks for the process lifetime; the test
	// binary exiting tears down this goroutine along with everything
	// else, so it is never explicitly joined.
	go srv.ListenAndServe()

	// give the listener a moment to come up.
	time.Sleep(150 * time.Millisecond)

	ftp, err := goftp.Connect("127.0.0.1:" + strconv.Itoa(port))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer ftp.Quit()

	if err := ftp.Login("anonymous", "anonymous"); err != nil {
		t.Fatalf("login: %v", err)
	}

	pwd, err := ftp.Pwd()
	if err != nil {
		t.Fatalf("pwd: %v", err)
	}
	if pwd == "" {
		t.Fatalf("empty pwd")
	}

	files, err := ftp.List(".")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var sawHello bool
	for _, f := range files {
		if contains(f, "hello.txt") {
			sawHello = true
		}
	}
	if !sawHello {
		t.Fatalf("listing did not mention hello.txt: %v", files)
	}

	var body []byte
	collect := func(r io.Reader) error {
		b, err := ioutil.ReadAll(r)
		body = b
		return err
	}
	if _, err := ftp.Retr("hello.txt", collect); err != nil {
		t.Fatalf("retr: %v", err)
	}
	if string(body) != "hello from yaftp" {
		t.Fatalf("got %q", body)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

// freePort asks the OS for an ephemeral port by briefly binding and
// releasing it, since goftp/server.ServerOpts wants a fixed port number
// rather than an existing net.Listener.
func freePort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

type anonAuth struct{}

func (anonAuth) CheckPasswd(user, pass string) (bool, error) { return true, nil }
