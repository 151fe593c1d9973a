package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"nexuschat/internal/client"
	"nexuschat/internal/events"
	"nexuschat/internal/store"

	"github.com/spf13/cobra"
)

var (
	serverAddr string
	account    string
	password   string
	insecure   bool
	dataDir    string
	to         int64
	message    string
)

// consolePublisher prints client events to the terminal. It stands in for
// the UI shell the client would normally be embedded in.
type consolePublisher struct{}

func (consolePublisher) Publish(channel events.Channel, result events.Result) {
	if result.HasError() {
		fmt.Printf("[%s] error: %s\n", channel, result.Error)
		return
	}
	switch channel {
	case events.Arrive:
		fmt.Printf("[%s] %s\n", channel, result.JSON())
	case events.Update:
		fmt.Printf("[%s] %s\n", channel, result.JSON())
	default:
		fmt.Printf("[%s] ok\n", channel)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nexus",
	Short: "Nexus chat protocol client",
	Long: `A terminal client for the Nexus real-time chat protocol with
end-to-end encrypted message payloads over a single websocket.`,
}

func newClient() (*client.Client, store.Store, error) {
	if serverAddr == "" {
		return nil, nil, fmt.Errorf("server address is required")
	}

	var blobs store.Store
	if dataDir != "" {
		opened, err := store.Open(filepath.Join(dataDir, "state"))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open local state: %w", err)
		}
		blobs = opened
	}

	c := client.New(client.Options{
		ServerAddress: serverAddr,
		UseTLS:        !insecure,
		Publisher:     consolePublisher{},
		Blobs:         blobs,
	})
	return c, blobs, nil
}

// establish logs in with credentials when given, otherwise tries the
// remembered token.
func establish(ctx context.Context, c *client.Client) error {
	if account != "" {
		return c.Login(ctx, account, password)
	}
	if err := c.TryAutoLogin(ctx); err != nil {
		return fmt.Errorf("no credentials and auto login failed: %w", err)
	}
	return nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and listen for messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, blobs, err := newClient()
		if err != nil {
			return err
		}
		if blobs != nil {
			defer blobs.Close()
		}

		ctx := cmd.Context()
		if err := establish(ctx, c); err != nil {
			return err
		}

		fmt.Println("Connected. Listening for messages... (Press Ctrl+C to stop)")
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig

		fmt.Println("\nLogging out...")
		c.Logout()
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a message to a peer",
	RunE: func(cmd *cobra.Command, args []string) error {
		if message == "" {
			return fmt.Errorf("message is required")
		}

		c, blobs, err := newClient()
		if err != nil {
			return err
		}
		if blobs != nil {
			defer blobs.Close()
		}

		ctx := cmd.Context()
		if err := establish(ctx, c); err != nil {
			return err
		}
		defer c.Logout()

		receipt, err := c.Send(ctx, to, message)
		if err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
		if receipt.Encrypted {
			fmt.Printf("Message sent to %d (encrypted)\n", to)
		} else {
			fmt.Printf("Message sent to %d (unencrypted: no public key available)\n", to)
		}

		// Give the acknowledgement a moment to arrive so it lands in the
		// history before we tear down.
		time.Sleep(2 * time.Second)
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List online users",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, blobs, err := newClient()
		if err != nil {
			return err
		}
		if blobs != nil {
			defer blobs.Close()
		}

		ctx := cmd.Context()
		if err := establish(ctx, c); err != nil {
			return err
		}
		defer c.Logout()

		// The presence snapshot arrives shortly after the socket opens.
		time.Sleep(2 * time.Second)

		fmt.Println("Online users:")
		for _, id := range c.Roster().AliveIDs() {
			if info, ok := c.Roster().Info(id); ok {
				fmt.Printf("- %d: %s\n", id, info.Name)
			} else {
				fmt.Printf("- %d\n", id)
			}
		}
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the remembered session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if dataDir == "" {
			return fmt.Errorf("data directory is required")
		}
		blobs, err := store.Open(filepath.Join(dataDir, "state"))
		if err != nil {
			return fmt.Errorf("failed to open local state: %w", err)
		}
		defer blobs.Close()

		if err := blobs.Remove("User"); err != nil {
			return fmt.Errorf("failed to forget session: %w", err)
		}
		fmt.Println("Session forgotten.")
		return nil
	},
}

func init() {
	homeDir, _ := os.UserHomeDir()
	defaultDataDir := filepath.Join(homeDir, ".nexuschat")

	rootCmd.PersistentFlags().StringVarP(&serverAddr, "server", "s", "", "Server address (host[:port])")
	rootCmd.PersistentFlags().StringVarP(&account, "account", "a", "", "Account name")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "Account password")
	rootCmd.PersistentFlags().BoolVar(&insecure, "insecure", false, "Use plain http/ws instead of https/wss")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir, "Directory for remembered session state")

	sendCmd.Flags().Int64VarP(&to, "to", "t", 0, "Recipient user id")
	sendCmd.Flags().StringVarP(&message, "message", "m", "", "Message to send")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("message")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(logoutCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
