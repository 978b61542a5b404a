// Command yaftp is the process entry point for all four roles the
// protocol defines: a listening server, a direct-mode controller, a
// reverse-mode master controller, and a reverse-mode slave agent. Flag
// layout follows the teacher's cmd/minimega/main.go convention of flat
// f_foo = flag.X(...) package vars rather than a flag.FlagSet struct.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/ntess/yaftp/internal/controller"
	"github.com/ntess/yaftp/internal/fsops"
	"github.com/ntess/yaftp/internal/server"
	"github.com/ntess/yaftp/internal/spawner"
	"github.com/ntess/yaftp/internal/yflog"
)

var (
	f_listen  = flag.Int("l", 0, "run a server, listening on this port")
	f_connect = flag.Bool("c", false, "run a direct-mode controller: yaftp -c <ip> <port>")
	f_tunnel  = flag.Int("t", 0, "run a reverse-mode master controller, listening for the slave's control connection on this port")
	f_reverse = flag.Bool("r", false, "run a reverse-mode slave agent: yaftp -r <ip> <port>")
	f_verbose = flag.Bool("v", false, "enable debug logging")
)

const usage = "usage: yaftp [-l port | -c ip port | -t port | -r ip port] [-v]"

func main() {
	flag.Parse()

	if *f_verbose {
		yflog.SetLevel(yflog.DEBUG)
	} else {
		yflog.SetLevel(yflog.INFO)
	}

	args := flag.Args()

	switch {
	case *f_listen != 0:
		runServer(*f_listen)
	case *f_connect:
		ip, port := requireIPPort(args)
		runDirectController(ip, port)
	case *f_tunnel != 0:
		runReverseMaster(*f_tunnel)
	case *f_reverse:
		ip, port := requireIPPort(args)
		runReverseSlave(fmt.Sprintf("%s:%s", ip, port))
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
}

// requireIPPort parses the "<ip> <port>" positional pair the -c and -r
// roles take, per spec section 6's CLI surface.
func requireIPPort(args []string) (ip string, port string) {
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}
	if _, err := strconv.Atoi(args[1]); err != nil {
		yflog.Fatal("invalid port %q: %v", args[1], err)
	}
	return args[0], args[1]
}

func runServer(port int) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		yflog.Fatal("listen: %v", err)
	}
	yflog.Info("yaftp server listening on %v", ln.Addr())

	s := server.New(fsops.NewOSFilesystem())
	if err := s.Serve(ln); err != nil {
		yflog.Fatal("serve: %v", err)
	}
}

func runDirectController(ip, portStr string) {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		yflog.Fatal("invalid port %q: %v", portStr, err)
	}

	sp := spawner.NewDirect(ip, port)
	defer sp.Close()

	ctl, err := controller.New(sp)
	if err != nil {
		yflog.Fatal("controller: %v", err)
	}
	ctl.Run()
}

// runReverseMaster listens once on controlPort: the slave's first
// connection becomes the control channel that carries wake signals,
// and every later connection on that same listener is a dial-back
// answering one wake signal. Using one address for both means the
// slave never needs to learn a second port, per spec section 4.3's
// reverse mode.
func runReverseMaster(controlPort int) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", controlPort))
	if err != nil {
		yflog.Fatal("listen: %v", err)
	}
	yflog.Info("waiting for slave control connection on %v", ln.Addr())

	ctrl, err := ln.Accept()
	if err != nil {
		yflog.Fatal("accept (control): %v", err)
	}
	yflog.Info("control connection established from %v", ctrl.RemoteAddr())

	sp := spawner.NewReverse(ctrl, ln)
	defer sp.Close()

	ctl, err := controller.New(sp)
	if err != nil {
		yflog.Fatal("controller: %v", err)
	}
	ctl.Run()
}

// runReverseSlave dials the master's control port, then services wake
// signals by dialing back and handing each resulting connection to a
// Server, per spec section 4.3.
func runReverseSlave(masterAddr string) {
	ctx := context.Background()

	ctrl, err := spawner.DialControl(ctx, masterAddr)
	if err != nil {
		yflog.Fatal("dialing control connection: %v", err)
	}
	yflog.Info("control connection established to %v", masterAddr)

	s := server.New(fsops.NewOSFilesystem())

	err = spawner.RunSlave(ctx, ctrl, masterAddr, s.HandleConn)
	if err != nil {
		yflog.Error("slave loop ended: %v", err)
	}
}
