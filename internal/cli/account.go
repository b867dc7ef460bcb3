package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errUserRequired = errors.New("--user is required (or set MMATCH_USER)")

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, pass, err := credentials(cmd)
			if err != nil {
				return err
			}

			client, err := Dial(cfg.Addr, cfg.Timeout)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if err := client.Register(user, pass); err != nil {
				return err
			}

			output(cmd).PrintMessage(fmt.Sprintf("Registered %s", user))
			return nil
		},
	}
}

func newLeaderboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the top players",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loggedIn(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			entries, err := client.Leaderboard()
			if err != nil {
				return err
			}

			output(cmd).Print(entries)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show your recent matches",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loggedIn(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			history, err := client.MatchHistory()
			if err != nil {
				return err
			}

			output(cmd).Print(history)
			return nil
		},
	}
}

// loggedIn dials the server and logs in with the configured credentials
func loggedIn(cmd *cobra.Command) (*Client, error) {
	user, pass, err := credentials(cmd)
	if err != nil {
		return nil, err
	}

	client, err := Dial(cfg.Addr, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	if _, err := client.Login(user, pass); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// credentials returns the configured username and password, prompting for
// the password when none was given
func credentials(cmd *cobra.Command) (string, string, error) {
	if cfg.Username == "" {
		return "", "", errUserRequired
	}
	if cfg.Password != "" {
		return cfg.Username, cfg.Password, nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	defer fmt.Fprintln(cmd.ErrOrStderr())

	if cmd.InOrStdin() == os.Stdin && term.IsTerminal(int(os.Stdin.Fd())) {
		pass, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		return cfg.Username, string(pass), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", "", fmt.Errorf("read password: %w", err)
	}
	return cfg.Username, strings.TrimRight(line, "\r\n"), nil
}
