// dllbridge - bridges clients to functions exported by a native library.
//
// The server loads the library once at startup, listens on localhost, and
// performs dynamically constructed foreign calls on behalf of connected
// clients, one call at a time. A mismatched signature can crash the
// process from inside the native call; the bridge validates everything it
// can before calling and makes no attempt to recover after.
//
// Usage:
//
//	dllbridge [options] <library> [port]
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/MarioMottl/dllbridge32/config"
	"github.com/MarioMottl/dllbridge32/native"
	"github.com/MarioMottl/dllbridge32/server"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

func main() {
	configPath := flag.String("config", "dllbridge.toml", "Path to optional TOML configuration")
	host := flag.String("host", "", "Bind address (overrides config)")
	tracePath := flag.String("trace", "", "Record invocations to a CBOR trace file (overrides config)")
	verbosity := flag.Int("v", -1, "Log verbosity (overrides config)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dllbridge [options] <library> [port]\n\n")
		fmt.Fprintf(os.Stderr, "Loads the native library and serves the call protocol on localhost.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  dllbridge ./libsample.so              # serve on 127.0.0.1:5000\n")
		fmt.Fprintf(os.Stderr, "  dllbridge ./libsample.so 6000         # explicit port\n")
		fmt.Fprintf(os.Stderr, "  dllbridge -trace /tmp/bridge.trace ./libsample.so\n")
		fmt.Fprintf(os.Stderr, "\nProtocol (one request and one response per line):\n")
		fmt.Fprintf(os.Stderr, "  call <name> [sig:<t>,<t>,...(<convention>)-><rettype>] <arg> ...\n")
	}
	flag.Parse()

	os.Exit(run(*configPath, *host, *tracePath, *verbosity, flag.Args()))
}

// run holds all the deferred cleanup so it executes on every exit path,
// including startup failures after the library is already open.
func run(configPath, host, tracePath string, verbosity int, args []string) int {
	if len(args) < 1 || len(args) > 2 {
		flag.Usage()
		return 2
	}
	libPath := args[0]

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dllbridge: %v\n", err)
		return 1
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if tracePath != "" {
		cfg.Trace.Path = tracePath
	}
	if verbosity >= 0 {
		cfg.Log.Verbosity = verbosity
	}
	if len(args) == 2 {
		port, err := strconv.Atoi(args[1])
		if err != nil || port < 1 || port > 65535 {
			fmt.Fprintf(os.Stderr, "dllbridge: invalid port %q\n", args[1])
			return 2
		}
		cfg.Server.Port = port
	}

	commonlog.Configure(cfg.Log.Verbosity, nil)
	log := commonlog.GetLogger("dllbridge")

	module, err := native.Open(libPath)
	if err != nil {
		log.Criticalf("%v", err)
		return 1
	}
	defer module.Close()

	invoker := native.NewInvoker()
	defer invoker.Stop()

	var trace *server.TraceRecorder
	if cfg.Trace.Path != "" {
		trace, err = server.OpenTrace(cfg.Trace.Path)
		if err != nil {
			log.Criticalf("%v", err)
			return 1
		}
		defer trace.Close()
	}

	srv := server.New(module, invoker, server.WithTrace(trace))

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Info("shutting down on signal")
		srv.Close()
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := srv.ListenAndServe(addr); err != nil {
		log.Criticalf("%v", err)
		return 1
	}
	return 0
}
