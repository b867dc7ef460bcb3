package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Open an interactive protocol session",
		Long: `Open a raw line-protocol session. Each line typed is sent to the server
as-is and every server message is printed as it arrives, e.g.

  {"type":"CHALLENGE","target":"bob","difficulty":"EASY"}
  {"type":"CARD_FLIP","card1":0,"card2":1}

When --user is set the session logs in first. Press Ctrl+D or Ctrl+C to leave.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runConsole(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd)
		},
	}
}

func runConsole(ctx context.Context, in io.Reader, out io.Writer, cmd *cobra.Command) error {
	conn, err := net.DialTimeout("tcp", cfg.Addr, cfg.Timeout)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Addr, err)
	}
	// no read deadline: the session may sit idle
	client := NewConnClient(conn, 0)
	defer func() { _ = client.Close() }()
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	if cfg.Username != "" {
		user, pass, err := credentials(cmd)
		if err != nil {
			return err
		}
		if _, err := client.Login(user, pass); err != nil {
			return err
		}
		fmt.Fprintf(out, "logged in as %s\n", user)
	}

	serverDone := make(chan error, 1)
	go func() {
		for {
			line, err := client.ReadLine()
			if err != nil {
				serverDone <- err
				return
			}
			fmt.Fprintln(out, string(line))
		}
	}()

	inputDone := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := client.SendRaw([]byte(line)); err != nil {
				inputDone <- err
				return
			}
		}
		inputDone <- scanner.Err()
	}()

	select {
	case err := <-inputDone:
		return err
	case <-serverDone:
		fmt.Fprintln(out, "connection closed by server")
		return nil
	case <-ctx.Done():
		return nil
	}
}
