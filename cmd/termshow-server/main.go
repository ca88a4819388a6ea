/*
Roles of server:
- Receive uploads from termshow clients and hand back a link
- Serve the stored script and timing to players
- Delete a session when asked with the secret it was uploaded with
*/

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/qnkhuat/termshow/internal/cfg"
	"github.com/qnkhuat/termshow/internal/logging"
	"github.com/qnkhuat/termshow/pkg/server"
)

func main() {
	if err := logging.Config(cfg.SERVER_LOG_FILE, "SERVER: "); err != nil {
		fmt.Fprintf(os.Stderr, "termshow-server: %s\n", err)
	}
	var dbPath = flag.String("db", cfg.SERVER_DEFAULT_DB, "Path to database")
	var addr = flag.String("addr", cfg.SERVER_DEFAULT_ADDR, "Host address to serve server")
	var publicURL = flag.String("public-url", "", "Prefix of the links handed to clients, defaults to http://<addr>")
	var version = flag.Bool("version", false, fmt.Sprintf("termshow server version: %s", cfg.SERVER_VERSION))

	flag.Parse()

	if *version {
		fmt.Printf("termshow server %s\n", cfg.SERVER_VERSION)
		os.Exit(0)
	}

	s, err := server.New(*addr, *dbPath, *publicURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to create server: %s\n", err)
		log.Printf("Failed to create server: %s", err)
		os.Exit(1)
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigs
		log.Printf("Got signal %s, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.SERVER_SHUTDOWN_TIMEOUT)
		defer cancel()
		if err := s.Stop(ctx); err != nil {
			log.Printf("Failed to stop server: %s", err)
		}
	}()

	if err := s.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
	<-stopped
}
