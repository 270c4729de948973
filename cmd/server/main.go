// Command server runs the bulletin-board chat service: a TCP listener for
// the line protocol, an HTTP listener for WebSocket clients, and an
// operator console that accepts "shutdown" on standard input.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/troyjj43/networks-project2/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile    string
		listenAddr string
		httpAddr   string
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Bulletin board chat server",
		Long: `Runs the multi-user bulletin-board/chat server.

Clients connect over TCP (or WebSocket via the HTTP listener), send their
display name as the first line, and then issue %-prefixed commands to post
and retrieve messages, join groups, and chat. Typing "shutdown" on the
server console drains all connections and exits.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			if listenAddr != "" {
				cfg.ListenAddr = listenAddr
			}
			if httpAddr != "" {
				cfg.HTTPAddr = httpAddr
			}
			return run(cfg, cfgFile)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default searches ./bboard.yaml)")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "TCP listen address (overrides config)")
	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP/WebSocket listen address (overrides config)")
	return cmd
}

func run(cfg server.Config, cfgFile string) error {
	hub := server.NewHub(cfg)

	tcpServer, err := server.NewTCPServer(cfg.ListenAddr, hub)
	if err != nil {
		return err
	}
	httpServer := server.CreateServer(cfg.HTTPAddr, server.SetupRoutes(hub, cfg))

	errCh := make(chan error, 2)
	go func() {
		errCh <- tcpServer.Serve()
	}()
	go func() {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var watcher *server.CatalogWatcher
	if cfgFile != "" {
		if watcher, err = server.NewCatalogWatcher(cfgFile, hub); err != nil {
			log.Printf("Group catalog hot-reload disabled: %v", err)
		}
	}

	console := make(chan struct{}, 1)
	go watchConsole(console)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-console:
		fmt.Println("Shutdown command received. Shutting down server...")
	case sig := <-sigCh:
		log.Printf("Received signal %s; shutting down", sig)
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	if watcher != nil {
		watcher.Stop()
	}
	if err := tcpServer.Close(); err != nil {
		log.Printf("Error closing TCP listener: %v", err)
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		log.Printf("Hub shutdown incomplete: %v", err)
	}
	_ = server.ShutdownServer(httpServer, cfg.ShutdownTimeout)

	fmt.Println("Server shutdown complete.")
	return nil
}

// watchConsole signals when the operator types "shutdown" on stdin.
func watchConsole(trigger chan<- struct{}) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "shutdown" {
			trigger <- struct{}{}
			return
		}
	}
}
