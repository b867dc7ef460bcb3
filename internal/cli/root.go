package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var cfg *Config

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "mmatch",
		Short: "CLI client for the memory match server",
		Long: `mmatch talks to a memory match server.

Account and statistics commands use the line protocol on the game port;
presence and health commands use the admin HTTP API. The console command
opens a raw protocol session for manual play.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfg.Addr, "server", "s", cfg.Addr, "Game server address (env: MMATCH_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.APIURL, "api", cfg.APIURL, "Admin API URL (env: MMATCH_API)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Username, "user", "u", cfg.Username, "Username (env: MMATCH_USER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Password, "pass", cfg.Password, "Password; prompted when omitted (env: MMATCH_PASSWORD)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Network timeout")

	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newLeaderboardCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newPlayersCmd())
	rootCmd.AddCommand(newRoomsCmd())
	rootCmd.AddCommand(newHealthCmd())
	rootCmd.AddCommand(newConsoleCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func output(cmd *cobra.Command) *Output {
	return NewOutput(cfg.Output, cmd.OutOrStdout(), cmd.ErrOrStderr())
}
