// Command server runs the render-bridge HTTP server: spec.md §6's CLI
// surface, bound to the HTTP Endpoint Layer of internal/httpapi. CLI flags
// follow the teacher's own main.go: the standard flag package, no config
// library, the same "parse flags, print a startup line, run" shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/df07/render-bridge-server/internal/httpapi"
	"github.com/df07/render-bridge-server/internal/pipeline"
	"github.com/df07/render-bridge-server/internal/renderlog"
)

func main() {
	host := flag.String("host", "127.0.0.1", "bind address")
	port := flag.Int("port", 8000, "bind port; 0 = OS-assigned")
	debug := flag.Bool("debug", false, "enable verbose logging")
	blendFile := flag.String("blend_file", "", "base scene file loaded before every render")
	bpySettingsFile := flag.String("bpy_settings_file", "", "user settings file executed after the base scene")
	flag.Parse()

	baseLogger := logrus.New()
	if *debug {
		baseLogger.SetLevel(logrus.DebugLevel)
	}

	tempDir, err := os.MkdirTemp("", "render-bridge-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}
	defer os.RemoveAll(tempDir)

	orchestrator := pipeline.New(pipeline.Config{
		BlendFile:       *blendFile,
		BpySettingsFile: *bpySettingsFile,
	}, renderlog.New(baseLogger))

	server := httpapi.New(orchestrator, tempDir, baseLogger)

	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", *host, *port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind %s:%d: %v\n", *host, *port, err)
		os.Exit(1)
	}

	boundPort := listener.Addr().(*net.TCPAddr).Port
	fmt.Printf("Running on http://%s:%d\n", *host, boundPort)

	httpServer := &http.Server{Handler: server.Router()}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	case <-sigCh:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
			os.Exit(1)
		}
	}
}
