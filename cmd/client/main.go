// Command client is a plain line client for the bulletin-board server: it
// sends the username handshake, prints everything the server says, and
// forwards each console line as a command.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	serverKey = "server"
	nameKey   = "name"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "client",
		Short:        "Line client for the bulletin board server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(viper.GetString(serverKey), viper.GetString(nameKey))
		},
	}

	cmd.Flags().String("server", "127.0.0.1:12345", "server address")
	cmd.Flags().String("name", "", "display name (prompted for when empty)")

	_ = viper.BindPFlag(serverKey, cmd.Flags().Lookup("server"))
	_ = viper.BindPFlag(nameKey, cmd.Flags().Lookup("name"))
	viper.SetEnvPrefix("BBOARD")
	viper.AutomaticEnv()
	return cmd
}

func run(addr, name string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to the server at %s\n", addr)

	stdin := bufio.NewScanner(os.Stdin)
	for name == "" {
		fmt.Print("Enter username to join the board: ")
		if !stdin.Scan() {
			return nil
		}
		name = strings.TrimSpace(stdin.Text())
	}
	if _, err := fmt.Fprintf(conn, "%s\n", name); err != nil {
		return fmt.Errorf("send username: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		server := bufio.NewScanner(conn)
		for server.Scan() {
			fmt.Println(server.Text())
		}
		fmt.Println("Disconnected from the server.")
	}()

	for stdin.Scan() {
		line := strings.TrimSpace(stdin.Text())
		if line == "" {
			continue
		}
		if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
			break
		}
		if line == "%exit" || line == "%leave" {
			break
		}
	}

	_ = conn.Close()
	<-done
	return nil
}
